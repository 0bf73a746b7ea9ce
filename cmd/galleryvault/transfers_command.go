package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"galleryvault/internal/catalog"
	"galleryvault/internal/services"
)

func newTransfersCommand(ctx *commandContext) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "transfers",
		Short: "List asynchronous transfers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services.Services) error {
				transfers, err := svc.Store.ListTransfers(cmd.Context(), catalog.TransferStatus(status))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, transfers)
				}
				rows := make([][]string, 0, len(transfers))
				for _, t := range transfers {
					rows = append(rows, []string{
						strconv.FormatInt(t.ID, 10), strconv.FormatInt(t.ArchiveID, 10), t.Method,
						t.TransferID, string(t.Status), fmt.Sprintf("%.0f%%", t.Progress), t.Destination,
						formatTime(t.UpdatedAt),
					})
				}
				printTable(cmd.OutOrStdout(), []column{{title: "ID", align: alignRight},
					{title: "Archive", align: alignRight}, {title: "Method"}, {title: "Transfer", maxWidth: 16},
					{title: "Status"}, {title: "Progress", align: alignRight}, {title: "Destination", maxWidth: 50},
					{title: "Updated"}}, rows)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only list transfers in this status (in_progress, complete, failed)")
	return cmd
}
