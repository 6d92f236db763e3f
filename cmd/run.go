package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/NoPKT/agentim/internal/agent"
	"github.com/NoPKT/agentim/internal/bootstrap"
	"github.com/NoPKT/agentim/internal/config"
)

func runCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			d, err := bootstrap.New(cfg, echoAdapterFactory)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return d.Run(ctx, configPath)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

// echoAdapterFactory is the built-in development adapter: it logs each
// work item and completes immediately. Deployments embed the daemon via
// internal/bootstrap and supply their own executor factory.
func echoAdapterFactory(ac config.AgentConfig, sink agent.Completion) agent.Adapter {
	return agent.NewFuncAdapter(func(ctx context.Context, item agent.WorkItem) error {
		slog.Info("work item received", "agent", item.AgentID, "id", item.ID, "bytes", len(item.Content))
		return ctx.Err()
	}, sink)
}
