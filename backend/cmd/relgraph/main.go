// Package main provides the relgraph batch CLI: relationship syncs,
// community detection and alias checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"squadgraph/backend/internal/app"
	"squadgraph/backend/pkg/config"
	"squadgraph/backend/pkg/errors"
	"squadgraph/backend/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "relgraph",
		Short: "Co-play relationship graph maintenance",
		Long: `relgraph syncs observed rounds into the co-play graph, rebuilds
player communities and scores alias suspicion between two players.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringP("output", "o", "json", "Output format: json or yaml")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync co-play pairs for rounds starting in [from, to)",
		RunE:  runSync,
	}
	addRangeFlags(syncCmd)
	rootCmd.AddCommand(syncCmd)

	serversCmd := &cobra.Command{
		Use:   "sync-servers",
		Short: "Sync PLAYS_ON edges for sessions in [from, to)",
		RunE:  runSyncServers,
	}
	addRangeFlags(serversCmd)
	rootCmd.AddCommand(serversCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "communities",
		Short: "Rebuild all communities from strong co-play edges",
		RunE:  runCommunities,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "alias [playerA] [playerB]",
		Short: "Score how likely two names belong to the same person",
		Args:  cobra.ExactArgs(2),
		RunE:  runAlias,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "timeline [playerA] [playerB]",
		Short: "Show the activity timeline of two players",
		Args:  cobra.ExactArgs(2),
		RunE:  runTimeline,
	})

	return rootCmd
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "Range start (RFC3339), defaults to 24h before --to")
	cmd.Flags().String("to", "", "Range end (RFC3339), defaults to now")
}

func rangeFlags(cmd *cobra.Command, now time.Time) (time.Time, time.Time, error) {
	to := now.UTC()
	if raw, _ := cmd.Flags().GetString("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.NewInvalidArgument("to", "must be RFC3339")
		}
		to = t
	}
	from := to.Add(-24 * time.Hour)
	if raw, _ := cmd.Flags().GetString("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.NewInvalidArgument("from", "must be RFC3339")
		}
		from = t
	}
	return from, to, nil
}

// withApp loads config, wires the application and runs fn until it returns
// or the process is interrupted
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) (any, error)) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := fn(ctx, a)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("output")
	return render(cmd.OutOrStdout(), format, result)
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return errors.NewInvalidArgument("output", "must be json or yaml")
}

func runSync(cmd *cobra.Command, _ []string) error {
	from, to, err := rangeFlags(cmd, time.Now())
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
		result, err := a.Pipeline.SyncRange(ctx, from, to)
		if bf, ok := errors.AsBatchFailure(err); ok {
			logger.Get().Error("Sync stopped at a failed flush; resume from the first round of the batch",
				zap.String("run_id", bf.RunID),
				zap.Int("flush_index", bf.FlushIndex),
				zap.String("first_round", bf.FirstRoundID),
				zap.Time("resume_from", bf.FirstRoundStart),
			)
		}
		return result, err
	})
}

func runSyncServers(cmd *cobra.Command, _ []string) error {
	from, to, err := rangeFlags(cmd, time.Now())
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
		return a.Pipeline.SyncPlayerServers(ctx, from, to)
	})
}

func runCommunities(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
		return a.Communities.Run(ctx)
	})
}

func runAlias(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
		return a.Aliases.Check(ctx, args[0], args[1])
	})
}

func runTimeline(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
		return a.Aliases.Timeline(ctx, args[0], args[1])
	})
}
