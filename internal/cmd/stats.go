package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	appconfig "github.com/Iron-Ham/haunt/internal/config"
	"github.com/Iron-Ham/haunt/internal/journal"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize recent companion activity",
	Long: `Summarize the activity journal written by the daemon.

Shows:
- How often each lifecycle state was entered
- How many daemon runs were recorded
- The most recent mood`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

var (
	statsJSON  bool
	statsSince time.Duration
)

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output statistics as JSON")
	statsCmd.Flags().DurationVar(&statsSince, "since", 24*time.Hour, "How far back to look")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	out := cmd.OutOrStdout()

	path := cfg.Journal.JournalPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "No journal found. Run 'haunt run' with journaling enabled first.")
		return nil
	}

	j, err := journal.Open(path, "", nil)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	stats, err := j.Stats(cmd.Context(), time.Now().Add(-statsSince))
	if err != nil {
		return err
	}

	if statsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	printStatsText(out, stats)
	return nil
}

func printStatsText(out io.Writer, s journal.Stats) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "ACTIVITY SUMMARY")
	fmt.Fprintln(out, strings.Repeat("─", 50))
	fmt.Fprintf(out, "Since: %s\n", s.Since.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Runs: %d\n", s.Runs)
	fmt.Fprintf(out, "Transitions: %d\n", s.Transitions)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "STATES ENTERED")
	fmt.Fprintln(out, strings.Repeat("─", 50))
	if len(s.Entered) == 0 {
		fmt.Fprintln(out, "No transitions recorded in this window.")
	}
	states := make([]string, 0, len(s.Entered))
	for state := range s.Entered {
		states = append(states, state)
	}
	// Most frequent first, ties by name
	sort.Slice(states, func(i, k int) bool {
		a, b := s.Entered[states[i]], s.Entered[states[k]]
		if a != b {
			return a > b
		}
		return states[i] < states[k]
	})
	for _, state := range states {
		fmt.Fprintf(out, "%-12s %d\n", state, s.Entered[state])
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "MOOD")
	fmt.Fprintln(out, strings.Repeat("─", 50))
	if s.MoodSamples == 0 {
		fmt.Fprintln(out, "No mood changes recorded in this window.")
	} else {
		fmt.Fprintf(out, "Latest: %.2f (%s) at %s\n",
			s.LatestMood, s.LatestMoodLabel, s.LatestMoodAt.Format("15:04:05"))
		fmt.Fprintf(out, "Samples: %d\n", s.MoodSamples)
	}
	fmt.Fprintln(out)
}
