package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"galleryvault/internal/logging"
	"galleryvault/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		filter logs.Filter
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			out := cmd.OutOrStdout()
			if follow {
				return logs.Follow(cmd.Context(), path, lines, filter, func(line string) {
					fmt.Fprintln(out, line)
				})
			}
			result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: -1, Limit: lines, Filter: filter})
			if err != nil {
				return err
			}
			for _, line := range result.Lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	flags.BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	flags.StringVar(&filter.Component, "component", "", "Only show lines from this component")
	flags.StringVar(&filter.JobID, "job", "", "Only show lines for this crawl job")
	flags.StringVar(&filter.Provider, "provider", "", "Only show lines for this provider")
	flags.StringVar(&filter.Level, "level", "", "Only show lines at this level")
	return cmd
}
