package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"galleryvault/internal/catalog"
	"galleryvault/internal/reconcile"
	"galleryvault/internal/services"
)

func newArchivesCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses  []string
		galleryID int64
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "archives",
		Short: "List catalogued archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := catalog.ArchiveFilter{GalleryID: galleryID, Limit: limit}
			for _, s := range statuses {
				filter.Statuses = append(filter.Statuses, catalog.ArchiveStatus(s))
			}
			return ctx.withServices(cmd, func(svc *services.Services) error {
				archives, err := svc.Store.ListArchives(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, archives)
				}
				rows := make([][]string, 0, len(archives))
				for _, a := range archives {
					gid := "-"
					if a.HasGallery() {
						gid = strconv.FormatInt(a.GalleryID, 10)
					}
					rows = append(rows, []string{
						strconv.FormatInt(a.ID, 10), a.Path, gid, formatBytes(a.Filesize),
						strconv.Itoa(a.Filecount), a.MatchType, string(a.Status), a.Reason,
					})
				}
				printTable(cmd.OutOrStdout(), []column{{title: "ID", align: alignRight}, {title: "Path", maxWidth: 60},
					{title: "Gallery", align: alignRight}, {title: "Images", align: alignRight},
					{title: "Count", align: alignRight}, {title: "Match"}, {title: "Status"}, {title: "Reason", maxWidth: 40}}, rows)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only list archives in these statuses (ok, transferring, corrupt, failed)")
	cmd.Flags().Int64Var(&galleryID, "gallery", 0, "Only list archives of this gallery id")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows")

	cmd.AddCommand(newArchivesVerifyCommand(ctx))
	return cmd
}

func newArchivesVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [archive-id...]",
		Short: "Re-check archives on disk and queue redownloads for size mismatches",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid archive id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withServices(cmd, func(svc *services.Services) error {
				var (
					reports []reconcile.Report
					err     error
				)
				if len(ids) == 0 {
					reports, err = svc.Verifier.VerifyAll(cmd.Context(), catalog.ArchiveOK, catalog.ArchiveCorrupt)
				} else {
					for _, id := range ids {
						var report reconcile.Report
						report, err = svc.Verifier.VerifyArchive(cmd.Context(), id)
						reports = append(reports, report)
						if err != nil {
							break
						}
					}
				}
				if ctx.jsonOutput() {
					if jsonErr := writeJSON(cmd, reports); jsonErr != nil {
						return jsonErr
					}
					return err
				}
				printReports(cmd, reports)
				return err
			})
		},
	}
}

func printReports(cmd *cobra.Command, reports []reconcile.Report) {
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		state := "ok"
		switch {
		case r.Missing:
			state = "missing"
		case r.Corrupt:
			state = "corrupt"
		case r.SizeMismatch:
			state = "size mismatch"
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ArchiveID, 10), state, formatBytes(r.ImageSize),
			strconv.Itoa(r.ImageCount), yesNo(r.RedownloadQueued),
		})
	}
	printTable(cmd.OutOrStdout(), []column{{title: "Archive", align: alignRight}, {title: "State"},
		{title: "Images", align: alignRight}, {title: "Count", align: alignRight}, {title: "Redownload"}}, rows)
}
