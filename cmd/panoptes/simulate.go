package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vaibhaw-/panoptes/internal/panoptes/config"
	"github.com/vaibhaw-/panoptes/internal/panoptes/dialect"
	"github.com/vaibhaw-/panoptes/internal/panoptes/engine"
	"github.com/vaibhaw-/panoptes/internal/panoptes/logger"
	"github.com/vaibhaw-/panoptes/internal/panoptes/simulate"
	"github.com/vaibhaw-/panoptes/internal/panoptes/transport"
)

var (
	simulateFlagWorkload string
	simulateFlagOps      int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a synthetic audited workload against a local SQLite database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		wl, err := simulate.ReadConfig(simulateFlagWorkload)
		if err != nil {
			return err
		}
		if simulateFlagOps > 0 {
			wl.TotalOps = simulateFlagOps
		}

		cfg := loaded
		if enabled(cfg, config.TransportDatabase) {
			eng, err := dialect.ParseEngine(cfg.Transports.Database.Engine)
			if err != nil {
				return err
			}
			client, closeFn, err := openClient(ctx, eng, loadedDSN(), false)
			if err != nil {
				return err
			}
			defer closeFn()
			cfg.Transports.Database.Client = client
		}

		store := config.NewStore()
		if err := store.Init(cfg); err != nil {
			return err
		}
		eng := engine.New(store, engine.WithDispatcher(transport.NewDispatcher(
			transport.WithConsoleWriter(cmd.OutOrStdout()),
		)))
		defer func() {
			if err := eng.Close(context.WithoutCancel(ctx)); err != nil {
				logger.L().Warnw("closing audit engine", "error", err)
			}
		}()

		res, err := simulate.Run(ctx, eng, wl)
		if err != nil {
			return err
		}

		out := cmd.ErrOrStderr()
		fmt.Fprintf(out, "run %s: %d statements in %s (%d failed)\n", wl.RunID, res.Total(), res.Elapsed, res.Errors)
		ops := make([]string, 0, len(res.Ops))
		for op := range res.Ops {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		for _, op := range ops {
			fmt.Fprintf(out, "  %-6s %d\n", op, res.Ops[op])
		}
		return nil
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateFlagWorkload, "workload", "", "workload YAML file (required)")
	simulateCmd.Flags().IntVar(&simulateFlagOps, "ops", 0, "override totalOps from the workload file")
	simulateCmd.MarkFlagRequired("workload")
}

func enabled(cfg config.Config, name string) bool {
	for _, t := range cfg.Transports.Enabled {
		if t == name {
			return true
		}
	}
	return false
}
