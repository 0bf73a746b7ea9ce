package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"galleryvault/internal/services"
	"galleryvault/internal/wanted"
)

func newWantedCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wanted",
		Short: "Manage wanted-gallery filters",
	}
	cmd.AddCommand(newWantedAddCommand(ctx))
	cmd.AddCommand(newWantedListCommand(ctx))
	return cmd
}

func newWantedAddCommand(ctx *commandContext) *cobra.Command {
	var f wanted.Filter

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a wanted filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Name = strings.TrimSpace(args[0])
			return ctx.withServices(cmd, func(svc *services.Services) error {
				created, err := svc.Store.CreateWanted(cmd.Context(), f)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, created)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created wanted filter %d (%s)\n", created.ID, created.Name)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.SearchTitle, "title", "", "Title substring")
	flags.StringVar(&f.TitleRegexp, "title-regexp", "", "Case-insensitive title regular expression")
	flags.StringSliceVar(&f.WantedTags, "tag", nil, "Required tag (repeatable)")
	flags.BoolVar(&f.ExclusiveScope, "exclusive-scope", false, "Reject galleries carrying other tags in the scopes of the required tags")
	flags.StringSliceVar(&f.UnwantedTags, "exclude-tag", nil, "Tag that rejects a gallery (repeatable)")
	flags.IntVar(&f.MinPages, "min-pages", 0, "Minimum page count")
	flags.IntVar(&f.MaxPages, "max-pages", 0, "Maximum page count")
	flags.StringVar(&f.Category, "category", "", "Required category")
	flags.StringVar(&f.Provider, "provider", "", "Only match galleries of this provider")
	flags.BoolVar(&f.HideOnFound, "hide-on-found", false, "Hide matched galleries once downloaded")
	flags.StringVar(&f.Reason, "reason", "", "Reason recorded on archives downloaded for this filter")
	return cmd
}

func newWantedListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List wanted filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services.Services) error {
				filters, err := svc.Store.ListWanted(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, filters)
				}
				rows := make([][]string, 0, len(filters))
				for _, f := range filters {
					title := f.SearchTitle
					if f.TitleRegexp != "" {
						title = "/" + f.TitleRegexp + "/"
					}
					rows = append(rows, []string{
						strconv.FormatInt(f.ID, 10), f.Name, title, strings.Join(f.WantedTags, ", "),
						strings.Join(f.UnwantedTags, ", "), f.Provider, yesNo(f.Found),
					})
				}
				printTable(cmd.OutOrStdout(), []column{{title: "ID", align: alignRight}, {title: "Name"},
					{title: "Title", maxWidth: 40}, {title: "Tags", maxWidth: 40}, {title: "Excluded", maxWidth: 30},
					{title: "Provider"}, {title: "Found"}}, rows)
				return nil
			})
		},
	}
}
