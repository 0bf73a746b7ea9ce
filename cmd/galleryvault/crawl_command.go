package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"galleryvault/internal/crawler"
	"galleryvault/internal/services"
	"galleryvault/internal/webqueue"
)

func newCrawlCommand(ctx *commandContext) *cobra.Command {
	var (
		urlFile    string
		wantedOnly bool
		forceRetry bool
		downloader string
		viaDaemon  bool
		wait       bool
	)

	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Fetch gallery URLs and download what survives the filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := append([]string(nil), args...)
			if urlFile != "" {
				fromFile, err := readURLFile(urlFile, cmd.InOrStdin())
				if err != nil {
					return err
				}
				urls = append(urls, fromFile...)
			}
			if len(urls) == 0 {
				return errors.New("no urls given")
			}

			if viaDaemon {
				return submitToDaemon(cmd, ctx, webqueue.Request{
					URLs:       urls,
					WantedOnly: wantedOnly,
					ForceRetry: forceRetry,
					Downloader: downloader,
					Source:     "cli",
				}, wait)
			}

			return ctx.withServices(cmd, func(svc *services.Services) error {
				summary, err := svc.Crawl(cmd.Context(), urls, crawler.Options{
					WantedOnly: wantedOnly,
					ForceRetry: forceRetry,
					Downloader: downloader,
				})
				if ctx.jsonOutput() {
					if jsonErr := writeJSON(cmd, summary); jsonErr != nil {
						return jsonErr
					}
				} else {
					printSummary(cmd.OutOrStdout(), summary)
				}
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&urlFile, "file", "f", "", "Read URLs from a file, one per line (- for stdin)")
	cmd.Flags().BoolVar(&wantedOnly, "wanted-only", false, "Only keep galleries matched by a wanted filter")
	cmd.Flags().BoolVar(&forceRetry, "force", false, "Bypass the catalog pre-check")
	cmd.Flags().StringVar(&downloader, "downloader", "", "Restrict downloads to one downloader type")
	cmd.Flags().BoolVar(&viaDaemon, "daemon", false, "Submit the crawl to the running daemon")
	cmd.Flags().BoolVar(&wait, "wait", false, "With --daemon, wait for the crawl to finish")
	return cmd
}

func submitToDaemon(cmd *cobra.Command, ctx *commandContext, req webqueue.Request, wait bool) error {
	client, err := ctx.daemonClient()
	if err != nil {
		return err
	}
	job, err := client.Submit(cmd.Context(), req)
	if err != nil {
		return err
	}
	if wait {
		job, err = client.WaitForJob(cmd.Context(), job.ID, time.Second)
		if err != nil {
			return err
		}
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, job)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %s: %s\n", job.ID, job.Status)
	if wait {
		printSummary(out, job.Summary)
		if job.Error != "" {
			return fmt.Errorf("crawl %s: %s", job.Status, job.Error)
		}
	}
	return nil
}

func readURLFile(path string, stdin io.Reader) ([]string, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open url file: %w", err)
		}
		defer f.Close()
		r = f
	}
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url file: %w", err)
	}
	return urls, nil
}

func printSummary(w io.Writer, s crawler.Summary) {
	printTable(w, []column{{title: "Submitted", align: alignRight}, {title: "Fetched", align: alignRight},
		{title: "Forwarded", align: alignRight}, {title: "Downloaded", align: alignRight},
		{title: "Failed", align: alignRight}, {title: "Wanted", align: alignRight}},
		[][]string{{
			strconv.Itoa(s.Submitted), strconv.Itoa(s.Fetched), strconv.Itoa(s.Forwarded),
			strconv.Itoa(s.Downloaded), strconv.Itoa(s.Failed), strconv.Itoa(s.Wanted),
		}})
	if len(s.Rejected) > 0 {
		fmt.Fprintf(w, "Rejected (no provider): %s\n", strings.Join(s.Rejected, ", "))
	}
	if len(s.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped providers: %s\n", strings.Join(s.Skipped, ", "))
	}
	if len(s.Discarded) > 0 {
		rows := make([][]string, 0, len(s.Discarded))
		for _, d := range s.Discarded {
			rows = append(rows, []string{d.Key.String(), d.Code, d.Reason})
		}
		printTable(w, []column{{title: "Gallery"}, {title: "Code"}, {title: "Reason", maxWidth: 60}}, rows)
	}
}
