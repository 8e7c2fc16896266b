package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsledger/opsledger/client"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server health and the tenant's sync state",
		Run: func(cmd *cobra.Command, args []string) {
			health, err := apiClient.Health(context.Background())
			if err != nil {
				fatal("server health", err)
			}

			// Sync status needs a tenant; skip when none is configured.
			if flagTenant == "" {
				output(health, health.Status)
				return
			}

			sync, err := apiClient.Sync.Status(context.Background())
			if err != nil {
				fatal("sync status", err)
			}

			if flagFmt == "quiet" {
				fmt.Println(sync.State)
				return
			}

			output(struct {
				Server *client.HealthResponse   `json:"server"`
				Sync   *client.SyncStatusReport `json:"sync"`
			}{Server: health, Sync: sync}, sync.State)
		},
	}
}
