package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tedvkremer/swarmag-website/internal/config"
	"github.com/tedvkremer/swarmag-website/internal/node"
)

var (
	cfgFile string
	debug   bool

	autostart bool

	frames uint64
	record bool

	from uint64
	to   uint64
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "swarm",
		Short:        "Swarm: flocking animation engine and headless host",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to config file (default: configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Development logging")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the swarm in real time behind the REST API and websocket stream",
		RunE:  runServe,
	}
	serveCmd.Flags().BoolVar(&autostart, "start", false, "Start the swarm immediately instead of waiting for the anchor")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the swarm for a number of frames on virtual time",
		RunE:  runSimulate,
	}
	simulateCmd.Flags().Uint64VarP(&frames, "frames", "n", 3600, "Number of frames to simulate")
	simulateCmd.Flags().BoolVar(&record, "record", false, "Record frames (overrides recording.enabled)")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Print recorded frames as JSON lines",
		RunE:  runReplay,
	}
	replayCmd.Flags().Uint64Var(&from, "from", 0, "First frame")
	replayCmd.Flags().Uint64Var(&to, "to", 0, "Last frame (0 reads to the end)")

	rootCmd.AddCommand(serveCmd, simulateCmd, replayCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup builds the logger and loads the configuration.
func setup() (*zap.Logger, *config.Config, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("logger init: %w", err)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("config load: %w", err)
	}
	return logger, cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting swarm host",
		zap.String("addr", cfg.Server.Addr),
		zap.Int("agents", cfg.Swarm.Count),
		zap.Bool("recording", cfg.Recording.Enabled),
	)
	return node.NewController(cfg, logger).Serve(ctx, autostart)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	logger, cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cmd.Flags().Changed("record") {
		cfg.Recording.Enabled = record
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, err := node.NewController(cfg, logger).Simulate(ctx, frames)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

func runReplay(cmd *cobra.Command, args []string) error {
	logger, cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	recorded, err := node.NewController(cfg, logger).Replay(from, to)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, fr := range recorded {
		if err := enc.Encode(fr); err != nil {
			return err
		}
	}
	logger.Info("Replayed frames", zap.Int("count", len(recorded)))
	return nil
}
