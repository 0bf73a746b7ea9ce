package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"galleryvault/internal/matcher"
	"galleryvault/internal/provider"
	"galleryvault/internal/registry"
	"galleryvault/internal/services"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var (
		providerName string
		matcherType  string
		all          bool
		cutoff       float64
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "match <title|archive>",
		Short: "Look up a title or a local archive on the providers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := provider.Query{Title: args[0]}
			if info, err := os.Stat(args[0]); err == nil && !info.IsDir() {
				q = provider.Query{Path: args[0]}
			}
			rq := registry.Query{Provider: providerName, Type: matcherType}

			return ctx.withServices(cmd, func(svc *services.Services) error {
				if all {
					if limit <= 0 {
						limit = svc.Config.Matching.MaxMatches
					}
					ranked, err := svc.Matcher.Rank(cmd.Context(), q, rq, cutoff, limit)
					if err != nil {
						return err
					}
					if ctx.jsonOutput() {
						return writeJSON(cmd, ranked)
					}
					printRanked(cmd, ranked)
					return nil
				}

				result, err := svc.Matcher.Match(cmd.Context(), q, rq)
				if err != nil {
					return err
				}
				if result == nil {
					return errors.New("no match")
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				printMatch(cmd, result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "", "Only use providers whose name contains this value")
	cmd.Flags().StringVar(&matcherType, "type", "", "Only use this matcher type")
	cmd.Flags().BoolVar(&all, "all", false, "List ranked candidates of every matcher")
	cmd.Flags().Float64Var(&cutoff, "cutoff", 0, "Minimum similarity for --all (0 uses the matcher default)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum candidates per matcher for --all")
	return cmd
}

func printMatch(cmd *cobra.Command, r *matcher.Result) {
	printTable(cmd.OutOrStdout(), []column{{title: "Field"}, {title: "Value", maxWidth: 80}}, [][]string{
		{"Title", r.Title},
		{"Link", r.Link},
		{"Provider", r.Provider},
		{"Matcher", r.MatcherType},
		{"Score", strconv.FormatFloat(r.Score, 'f', 3, 64)},
		{"Candidates", strconv.Itoa(r.Count)},
		{"Pages", strconv.Itoa(r.Record.Filecount)},
		{"Tags", strings.Join(r.Record.Tags, ", ")},
	})
}

func printRanked(cmd *cobra.Command, ranked map[string][]matcher.Ranked) {
	out := cmd.OutOrStdout()
	if len(ranked) == 0 {
		fmt.Fprintln(out, "No candidates")
		return
	}
	keys := make([]string, 0, len(ranked))
	for k := range ranked {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var rows [][]string
	for _, k := range keys {
		for _, r := range ranked[k] {
			rows = append(rows, []string{k, strconv.FormatFloat(r.Score, 'f', 3, 64), r.Title, r.Record.Link})
		}
	}
	printTable(out, []column{{title: "Matcher"}, {title: "Score", align: alignRight},
		{title: "Title", maxWidth: 60}, {title: "Link"}}, rows)
}
