package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/opsledger/opsledger/client"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and maintain the audit chain",
	}
	cmd.AddCommand(auditListCmd())
	cmd.AddCommand(auditVerifyCmd())
	cmd.AddCommand(auditExpireCmd())
	cmd.AddCommand(auditHoldCmd())
	return cmd
}

func auditListCmd() *cobra.Command {
	var entityType, entityID, action string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			opts := &client.AuditQueryOptions{
				EntityType: entityType,
				EntityID:   entityID,
				Action:     action,
				Limit:      limit,
				Offset:     offset,
			}
			entries, hasMore, err := apiClient.Audit.Query(context.Background(), opts)
			if err != nil {
				fatal("query audit", err)
			}
			if flagFmt == "table" {
				headers := []string{"SEQ", "ACTION", "ENTITY", "USER", "TIMESTAMP"}
				var rows [][]string
				for _, e := range entries {
					rows = append(rows, []string{
						strconv.FormatInt(e.SequenceNumber, 10),
						e.Action,
						e.EntityType + "/" + e.EntityID,
						e.UserID,
						e.Timestamp.Format("2006-01-02 15:04:05"),
					})
				}
				formatTable(headers, rows)
				if hasMore {
					fmt.Fprintln(os.Stderr, "(more entries available)")
				}
				return
			}
			output(entries, "")
		},
	}
	cmd.Flags().StringVar(&entityType, "entity-type", "", "Filter by collection")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "Filter by entity ID")
	cmd.Flags().StringVar(&action, "action", "", "Filter by action: create|update|delete")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset")
	return cmd
}

func auditVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the tenant's hash chain end to end",
		Run: func(cmd *cobra.Command, args []string) {
			report, err := apiClient.Audit.Verify(context.Background())
			if err != nil {
				fatal("verify chain", err)
			}
			output(report, fmt.Sprintf("%t", report.Valid))
			if !report.Valid {
				os.Exit(2)
			}
		},
	}
}

func auditExpireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Purge entries past their retention window",
		Run: func(cmd *cobra.Command, args []string) {
			purged, err := apiClient.Audit.Expire(context.Background())
			if err != nil {
				fatal("expire audit", err)
			}
			fmt.Printf("purged %d entries\n", purged)
		},
	}
}

func auditHoldCmd() *cobra.Command {
	var release bool
	cmd := &cobra.Command{
		Use:   "hold <entry-id>",
		Short: "Set or release a legal hold on an audit entry",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := apiClient.Audit.SetLegalHold(context.Background(), args[0], !release); err != nil {
				fatal("set legal hold", err)
			}
			if release {
				fmt.Println("hold released")
			} else {
				fmt.Println("hold set")
			}
		},
	}
	cmd.Flags().BoolVar(&release, "release", false, "Release the hold instead of setting it")
	return cmd
}
