package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vaibhaw-/panoptes/internal/panoptes/query"
)

var (
	queryFlagInputs   []string
	queryFlagOutput   string
	queryFlagTypes    []string
	queryFlagTables   []string
	queryFlagActor    string
	queryFlagApp      string
	queryFlagRequest  string
	queryFlagFailures bool
	queryFlagSince    string
	queryFlagLast     string
	queryFlagSummary  bool
	queryFlagLimit    int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Filter and summarize NDJSON audit logs",
	Long: `Filter audit events written by the file or console transport.

Examples:
  panoptes query --input audit.log --type UPDATE --type DELETE --table users
  panoptes query --input audit.log --failures --last 24h --summary
  panoptes query --input audit.log --actor 42 --since 2026-01-02T15:04:05Z`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := query.Options{
			InputFiles:   queryFlagInputs,
			OutputFile:   queryFlagOutput,
			Types:        queryFlagTypes,
			Tables:       queryFlagTables,
			Actor:        queryFlagActor,
			AppName:      queryFlagApp,
			RequestID:    queryFlagRequest,
			FailuresOnly: queryFlagFailures,
			Summary:      queryFlagSummary,
			Limit:        queryFlagLimit,
		}
		if len(opts.InputFiles) == 0 && loaded.Transports.File.Path != "" {
			if _, err := os.Stat(loaded.Transports.File.Path); err == nil {
				opts.InputFiles = []string{loaded.Transports.File.Path}
			}
		}

		if queryFlagSince != "" {
			t, err := query.ParseTimestamp(queryFlagSince)
			if err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			opts.Since = t
		}
		if queryFlagLast != "" {
			d, err := query.ParseDuration(queryFlagLast)
			if err != nil {
				return fmt.Errorf("invalid --last: %w", err)
			}
			opts.LastDuration = d
		}

		_, err := query.Run(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		return err
	},
}

func init() {
	queryCmd.Flags().StringSliceVar(&queryFlagInputs, "input", nil, "input NDJSON file(s) (default transports.file.path, else stdin)")
	queryCmd.Flags().StringVar(&queryFlagOutput, "output", "", "output file (default stdout)")
	queryCmd.Flags().StringSliceVar(&queryFlagTypes, "type", nil, "operation type(s): SELECT, INSERT, UPDATE, DELETE, DDL, OTHER")
	queryCmd.Flags().StringSliceVar(&queryFlagTables, "table", nil, "table name(s), matched against main table and tables involved")
	queryCmd.Flags().StringVar(&queryFlagActor, "actor", "", "application user id or username")
	queryCmd.Flags().StringVar(&queryFlagApp, "app", "", "application name")
	queryCmd.Flags().StringVar(&queryFlagRequest, "request-id", "", "request id")
	queryCmd.Flags().BoolVar(&queryFlagFailures, "failures", false, "only failed statements")
	queryCmd.Flags().StringVar(&queryFlagSince, "since", "", "only events at or after this time")
	queryCmd.Flags().StringVar(&queryFlagLast, "last", "", "only events from the last duration, e.g. 90m, 24h, 7d")
	queryCmd.Flags().BoolVar(&queryFlagSummary, "summary", false, "print summary counts to stderr")
	queryCmd.Flags().IntVar(&queryFlagLimit, "limit", 0, "stop after N matches (0 = no limit)")
}
