package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	appconfig "github.com/Iron-Ham/haunt/internal/config"
	"github.com/Iron-Ham/haunt/internal/daemon"
	"github.com/Iron-Ham/haunt/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the haunt daemon",
	Long: `Run the haunt daemon in the foreground.

The daemon watches idle time and system audio, drives the companion and
serves the control API used by the other commands. It stops on Ctrl+C or
SIGTERM. Edits to the config file are applied while it runs.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

var (
	runLogDir    string
	runLogStderr bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runLogDir, "log-dir", "", "directory for haunt.log (default: the config directory)")
	runCmd.Flags().BoolVar(&runLogStderr, "log-stderr", false, "log to stderr instead of a file")
}

// logDir is where the daemon writes haunt.log.
func logDir() string {
	if runLogDir != "" {
		return runLogDir
	}
	return appconfig.ConfigDir()
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg, runLogStderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	d, err := daemon.New(daemon.Options{
		Config:     cfg,
		ConfigPath: viper.ConfigFileUsed(),
		Logger:     logger,
		Out:        cmd.OutOrStdout(),
	})
	if err != nil {
		logger.Error("failed to start", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "haunt is running (control API on %s). Press Ctrl+C to stop.\n", cfg.Control.Addr)
	return d.Run(ctx)
}

// newLogger writes to haunt.log in logDir, or to stderr when asked.
func newLogger(cfg *appconfig.Config, stderr bool) (*logging.Logger, error) {
	opts := logging.Options{
		Dir:   logDir(),
		Level: cfg.Logging.Level,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		},
	}
	if stderr {
		opts.Dir = ""
	}
	logger, err := logging.NewLogger(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
