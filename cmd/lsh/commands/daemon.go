package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lsh-sh/lsh/internal/daemon"
	"github.com/lsh-sh/lsh/internal/daemonconfig"
	"github.com/lsh-sh/lsh/internal/ipc"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the lsh daemon process",
	}
	cmd.AddCommand(newServeCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the daemon in the foreground",
		Long: `Start the job daemon: loads any persisted snapshot, starts the
scheduler and persistence writer, and serves the control socket until
it receives SIGINT or SIGTERM, at which point it drains running jobs
before exiting.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := daemonconfig.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if socket, _ := cmd.Root().PersistentFlags().GetString("socket"); socket != "" {
		cfg.IPC.SocketPath = socket
	}

	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logger := buildLogger(cfg.Logging, verbose)

	d := daemon.New(cfg, logger)
	server := ipc.NewServer(d, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := d.Run(ctx); err != nil {
			logger.Error("daemon run exited with error", "error", err)
		}
	}()

	serveDone := make(chan error, 1)
	go func() { serveDone <- server.Serve(ctx, cfg.IPC.SocketPath) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("lsh daemon running", "socket", cfg.IPC.SocketPath, "persistence", cfg.Persistence.Path)

	select {
	case <-sigCh:
		logger.Info("shutdown signal received, draining")
	case err := <-serveDone:
		if err != nil {
			logger.Error("control socket stopped unexpectedly", "error", err)
		}
	}

	cancel()
	<-runDone
	logger.Info("daemon stopped")
	return nil
}

func buildLogger(cfg daemonconfig.LoggingConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}
