package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"galleryvault/internal/daemonctl"
	"galleryvault/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the galleryvault daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in logs")

	cmd.AddCommand(newDaemonStatusCommand(ctx))
	cmd.AddCommand(newDaemonJobsCommand(ctx))
	cmd.AddCommand(newDaemonRunSchedulerCommand(ctx))
	return cmd
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.daemonClient()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon: not running")
				return nil
			}
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			printTable(out, []column{{title: "Field"}, {title: "Value", maxWidth: 80}}, [][]string{
				{"Running", yesNo(status.Running)},
				{"PID", strconv.Itoa(status.PID)},
				{"Started", formatTime(status.StartedAt)},
				{"API", status.APIAddress},
				{"Catalog", status.CatalogPath},
				{"Providers", strings.Join(status.Providers, ", ")},
				{"Queued crawls", strconv.Itoa(status.QueuePending)},
				{"Transfers in progress", strconv.Itoa(status.Transfers)},
				{"Pending redownloads", strconv.Itoa(status.Redownloads)},
			})
			rows := make([][]string, 0, len(status.Schedulers))
			for _, s := range status.Schedulers {
				rows = append(rows, []string{
					s.Name, s.Schedule, yesNo(s.Busy), strconv.Itoa(s.Runs), strconv.Itoa(s.Failures),
					formatTime(s.LastRun), formatTime(s.NextRun), s.LastError,
				})
			}
			printTable(out, []column{{title: "Scheduler"}, {title: "Schedule"}, {title: "Busy"},
				{title: "Runs", align: alignRight}, {title: "Failures", align: alignRight},
				{title: "Last run"}, {title: "Next run"}, {title: "Last error", maxWidth: 40}}, rows)
			for _, check := range status.Preflight {
				if !check.Passed {
					fmt.Fprintf(out, "preflight: %s: %s\n", check.Name, check.Detail)
				}
			}
			return nil
		},
	}
}

func newDaemonJobsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs [job-id]",
		Short: "List crawl jobs queued on the daemon",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.daemonClient()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				job, err := client.Job(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s: %s\n", job.ID, job.Status)
				printSummary(cmd.OutOrStdout(), job.Summary)
				return nil
			}
			jobs, err := client.Jobs(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, jobs)
			}
			rows := make([][]string, 0, len(jobs))
			for _, j := range jobs {
				rows = append(rows, []string{
					j.ID, string(j.Status), j.Request.Source, strconv.Itoa(len(j.Request.URLs)),
					strconv.Itoa(j.Summary.Downloaded), formatTime(j.Submitted), j.Error,
				})
			}
			printTable(cmd.OutOrStdout(), []column{{title: "Job"}, {title: "Status"}, {title: "Source"},
				{title: "URLs", align: alignRight}, {title: "Downloaded", align: alignRight},
				{title: "Submitted"}, {title: "Error", maxWidth: 40}}, rows)
			return nil
		},
	}
}

func newDaemonRunSchedulerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <scheduler>",
		Short: "Trigger a daemon scheduler now (tracker, redownloads, verify, feed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.daemonClient()
			if err != nil {
				return err
			}
			if err := client.RunScheduler(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Triggered %s\n", args[0])
			return nil
		},
	}
}
