package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsledger/opsledger/client"
)

func newEntityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Manage documents in a collection",
	}
	cmd.AddCommand(entityPutCmd())
	cmd.AddCommand(entityGetCmd())
	cmd.AddCommand(entityListCmd())
	cmd.AddCommand(entityDeleteCmd())
	return cmd
}

func entityPutCmd() *cobra.Command {
	var fieldsJSON, user, description string
	var localOnly bool
	cmd := &cobra.Command{
		Use:   "put <collection> <id>",
		Short: "Create or update a document",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			var fields map[string]any
			if fieldsJSON != "" {
				if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
					fatal("parse fields", err)
				}
			}
			opts := &client.MutateOptions{
				UserID:      user,
				Description: description,
				LocalOnly:   localOnly,
			}
			result, err := apiClient.Collections.Put(context.Background(), args[0], args[1], fields, opts)
			if err != nil {
				fatal("put entity", err)
			}
			output(result, args[1])
		},
	}
	cmd.Flags().StringVar(&fieldsJSON, "fields", "", "Document fields as JSON")
	cmd.Flags().StringVar(&user, "user", "", "Acting user for the audit entry")
	cmd.Flags().StringVar(&description, "description", "", "Audit description")
	cmd.Flags().BoolVar(&localOnly, "local-only", false, "Skip the sync queue")
	return cmd
}

func entityGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Get a document by ID",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			entity, err := apiClient.Collections.Get(context.Background(), args[0], args[1])
			if err != nil {
				fatal("get entity", err)
			}
			output(entity, entity.ID)
		},
	}
}

func entityListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <collection>",
		Short: "List documents in a collection",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			entities, err := apiClient.Collections.List(context.Background(), args[0])
			if err != nil {
				fatal("list entities", err)
			}
			if flagFmt == "table" {
				headers := []string{"ID", "SYNC", "UPDATED"}
				var rows [][]string
				for _, e := range entities {
					rows = append(rows, []string{e.ID, e.SyncStatus, e.UpdatedAt.Format("2006-01-02 15:04:05")})
				}
				formatTable(headers, rows)
				return
			}
			if flagFmt == "quiet" {
				for _, e := range entities {
					fmt.Println(e.ID)
				}
				return
			}
			output(entities, "")
		},
	}
}

func entityDeleteCmd() *cobra.Command {
	var user, description string
	cmd := &cobra.Command{
		Use:   "delete <collection> <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if _, err := apiClient.Collections.Delete(context.Background(), args[0], args[1], user, description); err != nil {
				fatal("delete entity", err)
			}
			fmt.Fprintln(os.Stdout, "deleted")
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Acting user for the audit entry")
	cmd.Flags().StringVar(&description, "description", "", "Audit description")
	return cmd
}
