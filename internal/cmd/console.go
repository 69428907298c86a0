package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	appconfig "github.com/Iron-Ham/haunt/internal/config"
	"github.com/Iron-Ham/haunt/internal/tui"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Play with the companion in an interactive console",
	Long: `Start an interactive console that runs the companion in-process.

Keys stand in for the outside world: skip ahead in idle time, start and
stop system audio, or show the camera a face. The console does not serve
the control API and can run next to a daemon. Logs go to haunt.log.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

var consoleJournal bool

func init() {
	rootCmd.AddCommand(consoleCmd)

	consoleCmd.Flags().BoolVar(&consoleJournal, "journal", false, "record console activity in the journal")
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Journal.Enabled = consoleJournal

	logger, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	app, err := tui.New(cfg, logger.WithComponent("console"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx)
}
