package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"galleryvault/internal/registry"
	"galleryvault/internal/services"
)

func newFolderCommand(ctx *commandContext) *cobra.Command {
	var providerName, matcherType string

	cmd := &cobra.Command{
		Use:   "folder [dir]",
		Short: "Catalogue archives already on disk, matching each against the providers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services.Services) error {
				dir := svc.Config.Paths.ArchiveDir
				if len(args) == 1 {
					dir = args[0]
				}
				result, err := svc.Folder.Scan(cmd.Context(), dir, registry.Query{Provider: providerName, Type: matcherType})
				if err != nil {
					return fmt.Errorf("scan %s: %w", dir, err)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				printTable(cmd.OutOrStdout(), []column{{title: "Scanned", align: alignRight},
					{title: "Known", align: alignRight}, {title: "Matched", align: alignRight},
					{title: "Unmatched", align: alignRight}},
					[][]string{{strconv.Itoa(result.Scanned), strconv.Itoa(result.Known),
						strconv.Itoa(result.Matched), strconv.Itoa(result.Unmatched)}})
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "", "Only use providers whose name contains this value")
	cmd.Flags().StringVar(&matcherType, "type", "", "Only use this matcher type")
	return cmd
}
