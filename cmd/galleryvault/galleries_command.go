package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"galleryvault/internal/catalog"
	"galleryvault/internal/gallery"
	"galleryvault/internal/services"
)

func newGalleriesCommand(ctx *commandContext) *cobra.Command {
	var (
		providerName string
		dlType       string
		denied       bool
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "galleries",
		Short: "List catalogued galleries",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := catalog.GalleryFilter{
				Provider: strings.TrimSpace(providerName),
				DLType:   gallery.DLType(strings.TrimSpace(dlType)),
				Limit:    limit,
			}
			if denied {
				filter.Status = catalog.GalleryDenied
			}
			return ctx.withServices(cmd, func(svc *services.Services) error {
				galleries, err := svc.Store.ListGalleries(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, galleries)
				}
				rows := make([][]string, 0, len(galleries))
				for _, g := range galleries {
					rows = append(rows, []string{
						strconv.FormatInt(g.ID, 10), g.Provider, g.GID, g.Title,
						strconv.Itoa(g.Filecount), string(g.DLType), string(g.Status), yesNo(g.Hidden),
					})
				}
				printTable(cmd.OutOrStdout(), []column{{title: "ID", align: alignRight}, {title: "Provider"},
					{title: "GID"}, {title: "Title", maxWidth: 60}, {title: "Pages", align: alignRight},
					{title: "DL type"}, {title: "Status"}, {title: "Hidden"}}, rows)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "", "Only list galleries of this provider")
	cmd.Flags().StringVar(&dlType, "dl-type", "", "Only list galleries with this download type (failed, info, folder)")
	cmd.Flags().BoolVar(&denied, "denied", false, "Only list denied galleries")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows")
	return cmd
}
