package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/opsledger/opsledger/client"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Inspect and drive the sync queue",
	}
	cmd.AddCommand(syncRunCmd())
	cmd.AddCommand(syncOnlineCmd())
	cmd.AddCommand(syncOfflineCmd())
	cmd.AddCommand(syncFailedCmd())
	cmd.AddCommand(syncRetryCmd())
	cmd.AddCommand(syncClearCmd())
	cmd.AddCommand(syncConflictsCmd())
	cmd.AddCommand(syncResolveCmd())
	return cmd
}

func syncRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Schedule a delivery pass",
		Run: func(cmd *cobra.Command, args []string) {
			if err := apiClient.Sync.Run(context.Background()); err != nil {
				fatal("schedule sync", err)
			}
			fmt.Println("scheduled")
		},
	}
}

func syncOnlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "online",
		Short: "Mark the node online",
		Run: func(cmd *cobra.Command, args []string) {
			if err := apiClient.Sync.SetOnline(context.Background(), true); err != nil {
				fatal("set online", err)
			}
			fmt.Println("online")
		},
	}
}

func syncOfflineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offline",
		Short: "Mark the node offline",
		Run: func(cmd *cobra.Command, args []string) {
			if err := apiClient.Sync.SetOnline(context.Background(), false); err != nil {
				fatal("set offline", err)
			}
			fmt.Println("offline")
		},
	}
}

func syncFailedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "failed",
		Short: "List dead-lettered operations",
		Run: func(cmd *cobra.Command, args []string) {
			failed, err := apiClient.Sync.ListFailed(context.Background())
			if err != nil {
				fatal("list failed", err)
			}
			if flagFmt == "table" {
				headers := []string{"ID", "ENTITY", "ACTION", "ATTEMPTS", "REASON"}
				var rows [][]string
				for _, f := range failed {
					rows = append(rows, []string{
						f.ID,
						f.StoreName + "/" + f.EntityID,
						f.Action,
						strconv.Itoa(f.Attempts),
						f.Reason,
					})
				}
				formatTable(headers, rows)
				return
			}
			output(failed, "")
		},
	}
}

func syncRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <failed-id>",
		Short: "Re-enqueue a dead-lettered operation",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			item, err := apiClient.Sync.RetryFailed(context.Background(), args[0])
			if err != nil {
				fatal("retry failed operation", err)
			}
			output(item, item.ID)
		},
	}
}

func syncClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <failed-id>",
		Short: "Discard a dead-lettered operation",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := apiClient.Sync.ClearFailed(context.Background(), args[0]); err != nil {
				fatal("clear failed operation", err)
			}
			fmt.Println("cleared")
		},
	}
}

func syncConflictsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List operations held in the conflict state",
		Run: func(cmd *cobra.Command, args []string) {
			items, err := apiClient.Sync.Conflicts(context.Background())
			if err != nil {
				fatal("list conflicts", err)
			}
			output(items, "")
		},
	}
}

func syncResolveCmd() *cobra.Command {
	var acceptRemote bool
	cmd := &cobra.Command{
		Use:   "resolve <item-id>",
		Short: "Resolve a conflicted operation (local wins unless --accept-remote)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			resolution := client.ResolutionAcceptLocal
			if acceptRemote {
				resolution = client.ResolutionAcceptRemote
			}
			if err := apiClient.Sync.Resolve(context.Background(), args[0], resolution); err != nil {
				fatal("resolve conflict", err)
			}
			fmt.Println("resolved " + resolution)
		},
	}
	cmd.Flags().BoolVar(&acceptRemote, "accept-remote", false, "Discard the local change and accept the remote version")
	return cmd
}
