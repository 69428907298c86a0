package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Iron-Ham/haunt/internal/logging"
	"github.com/Iron-Ham/haunt/internal/tui/styles"
	"github.com/Iron-Ham/haunt/internal/util"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View daemon logs",
	Long: `View and filter the haunt daemon log.

Examples:
  # Show the last 50 lines
  haunt logs

  # Show everything from one run
  haunt logs --run 3f2a... -n 0

  # Follow logs in real-time
  haunt logs -f

  # Only warnings and errors from the orchestrator in the last hour
  haunt logs --level warn --component orchestrator --since 1h

  # Search messages and attributes
  haunt logs --grep "rejected|stale"`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsTail      int
	logsFollow    bool
	logsLevel     string
	logsSince     string
	logsRun       string
	logsComponent string
	logsGrep      string
	logsFile      string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (trace/debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsRun, "run", "", "Only show entries from this run id")
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "Only show entries from this component")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
	logsCmd.Flags().StringVar(&logsFile, "file", "", "Log file to read (default: haunt.log in the config directory)")
}

var levelStyles = map[string]lipgloss.Style{
	logging.LevelTrace: styles.Muted,
	logging.LevelDebug: styles.Muted,
	logging.LevelInfo:  lipgloss.NewStyle().Foreground(styles.BlueColor),
	logging.LevelWarn:  lipgloss.NewStyle().Foreground(styles.WarningColor),
	logging.LevelError: lipgloss.NewStyle().Foreground(styles.ErrorColor),
}

// maxAttrRunes keeps one oversized attribute from flooding the terminal.
const maxAttrRunes = 120

var attrStyle = lipgloss.NewStyle().Foreground(styles.SecondaryColor)

// formatLogEntry renders an entry for terminal output.
func formatLogEntry(e logging.Entry) string {
	var sb strings.Builder
	sb.WriteString(styles.Muted.Render("[" + e.Time.Format("15:04:05.000") + "]"))
	sb.WriteString(" ")
	level := strings.ToUpper(e.Level)
	if st, ok := levelStyles[level]; ok {
		sb.WriteString(st.Render("[" + level + "]"))
	} else {
		sb.WriteString("[" + level + "]")
	}
	if e.Component != "" {
		sb.WriteString(" ")
		sb.WriteString(attrStyle.Render(e.Component + ":"))
	}
	sb.WriteString(" ")
	sb.WriteString(e.Message)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(" ")
		sb.WriteString(attrStyle.Render(k + "="))
		sb.WriteString(util.ClipRunes(fmt.Sprintf("%v", e.Attrs[k]), maxAttrRunes))
	}
	return sb.String()
}

// logFilter is the parsed form of the logs flags.
type logFilter struct {
	entry logging.EntryFilter
	grep  *regexp.Regexp
}

func (f logFilter) apply(entries []logging.Entry) []logging.Entry {
	entries = logging.FilterEntries(entries, f.entry)
	if f.grep == nil {
		return entries
	}
	var out []logging.Entry
	for _, e := range entries {
		if f.matchesGrep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (f logFilter) matchesGrep(e logging.Entry) bool {
	searchText := e.Message
	for _, v := range e.Attrs {
		searchText += " " + fmt.Sprintf("%v", v)
	}
	return f.grep.MatchString(searchText)
}

func parseLogFilter(now time.Time) (logFilter, error) {
	f := logFilter{entry: logging.EntryFilter{
		RunID:     logsRun,
		Component: logsComponent,
	}}
	if logsLevel != "" {
		f.entry.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return f, fmt.Errorf("invalid duration format: %w", err)
		}
		f.entry.Since = now.Add(-d)
	}
	if logsGrep != "" {
		re, err := regexp.Compile(logsGrep)
		if err != nil {
			return f, fmt.Errorf("invalid grep pattern: %w", err)
		}
		f.grep = re
	}
	return f, nil
}

func logPath() string {
	if logsFile != "" {
		return logsFile
	}
	return filepath.Join(logDir(), logging.LogFileName)
}

func runLogs(cmd *cobra.Command, args []string) error {
	path := logPath()
	out := cmd.OutOrStdout()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "No logs found.")
		fmt.Fprintln(out, "Logs are stored at:", path)
		return nil
	}

	filter, err := parseLogFilter(time.Now())
	if err != nil {
		return err
	}

	if logsFollow {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return followLogs(ctx, out, path, filter)
	}
	return displayLogs(out, path, logsTail, filter)
}

// displayLogs prints the filtered tail of the log.
func displayLogs(out io.Writer, path string, tail int, filter logFilter) error {
	entries, err := logging.ReadEntries(path)
	if err != nil {
		return err
	}
	entries = filter.apply(entries)

	if tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}
	for _, e := range entries {
		fmt.Fprintln(out, formatLogEntry(e))
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
	}
	return nil
}

// followLogs implements tail -f behavior for the log file. It stops when
// ctx is done.
func followLogs(ctx context.Context, out io.Writer, path string, filter logFilter) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}
	fmt.Fprintf(out, "Following logs... (Ctrl+C to stop)\n\n")

	reader := bufio.NewReader(file)
	var pending string
	for {
		chunk, err := reader.ReadString('\n')
		pending += chunk
		if err == io.EOF {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("error reading log file: %w", err)
		}

		line := pending
		pending = ""
		entries, err := logging.DecodeEntries(strings.NewReader(line))
		if err != nil || len(entries) == 0 {
			continue
		}
		for _, e := range filter.apply(entries) {
			fmt.Fprintln(out, formatLogEntry(e))
		}
	}
}
