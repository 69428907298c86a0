// Package config provides CLI commands for managing haunt configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	appconfig "github.com/Iron-Ham/haunt/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Wrapper functions for exec to allow testing
var execLookPath = exec.LookPath
var execCommand = exec.Command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify haunt configuration",
	Long: `View or modify haunt configuration.

Without arguments, displays the current configuration.
A running daemon picks up edits to the config file on its own.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  haunt config set trigger.idle_threshold 5m
  haunt config set vision.camera_enabled false
  haunt config set logging.level debug

Run 'haunt config keys' to list every key.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List settable configuration keys",
	RunE:  runConfigKeys,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/haunt/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR",
	RunE:  runConfigEdit,
}

var configResetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Reset configuration to defaults",
	Long: `Reset one key, or every key when none is given, to its default value
and save the result.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigReset,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configResetCmd)
}

// Register adds all config-related commands to the given parent command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

type keyKind int

const (
	kindString keyKind = iota
	kindBool
	kindInt
	kindDuration
	kindLevel
)

type keySpec struct {
	kind keyKind
	def  any
}

// settableKeys maps each key to its value type and its default.
func settableKeys() map[string]keySpec {
	d := appconfig.Default()
	return map[string]keySpec{
		"trigger.idle_threshold":       {kindDuration, d.Trigger.IdleThreshold},
		"trigger.auto_dismiss":         {kindDuration, d.Trigger.AutoDismiss},
		"trigger.fullscreen_suppress":  {kindBool, d.Trigger.FullscreenSuppress},
		"trigger.prolonged_idle":       {kindDuration, d.Trigger.ProlongedIdle},
		"trigger.flee_timeout":         {kindDuration, d.Trigger.FleeTimeout},
		"trigger.idle_command":         {kindString, d.Trigger.IdleCommand},
		"audio.reactive":               {kindBool, d.Audio.Reactive},
		"audio.flag_path":              {kindString, d.Audio.FlagPath},
		"vision.camera_enabled":        {kindBool, d.Vision.CameraEnabled},
		"vision.sample_freshness":      {kindDuration, d.Vision.SampleFreshness},
		"behavior.scripts_path":        {kindString, d.Behavior.ScriptsPath},
		"behavior.trajectory_path":     {kindString, d.Behavior.TrajectoryPath},
		"behavior.jitter_low":          {kindDuration, d.Behavior.JitterLow},
		"behavior.jitter_high":         {kindDuration, d.Behavior.JitterHigh},
		"behavior.mood_decay_interval": {kindDuration, d.Behavior.MoodDecayInterval},
		"commentary.interval":          {kindDuration, d.Commentary.Interval},
		"commentary.burst":             {kindInt, d.Commentary.Burst},
		"commentary.timeout":           {kindDuration, d.Commentary.Timeout},
		"commands.min_score":           {kindInt, d.Commands.MinScore},
		"invasion.enabled":             {kindBool, d.Invasion.Enabled},
		"invasion.start_delay":         {kindDuration, d.Invasion.StartDelay},
		"invasion.initial_interval":    {kindDuration, d.Invasion.InitialInterval},
		"invasion.min_interval":        {kindDuration, d.Invasion.MinInterval},
		"invasion.max_invaders":        {kindInt, d.Invasion.MaxInvaders},
		"invasion.grid_cols":           {kindInt, d.Invasion.GridCols},
		"invasion.grid_rows":           {kindInt, d.Invasion.GridRows},
		"invasion.retreat_style":       {kindString, d.Invasion.RetreatStyle},
		"invasion.retreat_timeout":     {kindDuration, d.Invasion.RetreatTimeout},
		"control.addr":                 {kindString, d.Control.Addr},
		"control.rate_limit":           {kindInt, d.Control.RateLimit},
		"journal.enabled":              {kindBool, d.Journal.Enabled},
		"journal.path":                 {kindString, d.Journal.Path},
		"logging.level":                {kindLevel, d.Logging.Level},
		"logging.max_size_mb":          {kindInt, d.Logging.MaxSizeMB},
		"logging.max_backups":          {kindInt, d.Logging.MaxBackups},
		"logging.compress":             {kindBool, d.Logging.Compress},
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := appconfig.Get()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "trigger:")
	fmt.Fprintf(out, "  idle_threshold: %s\n", cfg.Trigger.IdleThreshold)
	fmt.Fprintf(out, "  auto_dismiss: %s\n", cfg.Trigger.AutoDismiss)
	fmt.Fprintf(out, "  fullscreen_suppress: %v\n", cfg.Trigger.FullscreenSuppress)
	fmt.Fprintf(out, "  prolonged_idle: %s\n", cfg.Trigger.ProlongedIdle)
	fmt.Fprintf(out, "  flee_timeout: %s\n", cfg.Trigger.FleeTimeout)
	fmt.Fprintf(out, "  idle_command: %s\n", cfg.Trigger.IdleCommand)

	fmt.Fprintln(out, "audio:")
	fmt.Fprintf(out, "  reactive: %v\n", cfg.Audio.Reactive)
	fmt.Fprintf(out, "  flag_path: %s\n", cfg.Audio.FlagFile())

	fmt.Fprintln(out, "vision:")
	fmt.Fprintf(out, "  camera_enabled: %v\n", cfg.Vision.CameraEnabled)
	fmt.Fprintf(out, "  sample_freshness: %s\n", cfg.Vision.SampleFreshness)

	fmt.Fprintln(out, "behavior:")
	fmt.Fprintf(out, "  scripts_path: %s\n", orBuiltin(cfg.Behavior.ScriptsPath))
	fmt.Fprintf(out, "  trajectory_path: %s\n", orNone(cfg.Behavior.TrajectoryPath))
	fmt.Fprintf(out, "  jitter: %s .. %s\n", cfg.Behavior.JitterLow, cfg.Behavior.JitterHigh)
	fmt.Fprintf(out, "  mood_decay_interval: %s\n", cfg.Behavior.MoodDecayInterval)

	fmt.Fprintln(out, "commentary:")
	fmt.Fprintf(out, "  interval: %s\n", cfg.Commentary.Interval)
	fmt.Fprintf(out, "  burst: %d\n", cfg.Commentary.Burst)
	fmt.Fprintf(out, "  timeout: %s\n", cfg.Commentary.Timeout)

	fmt.Fprintln(out, "commands:")
	fmt.Fprintf(out, "  min_score: %d\n", cfg.Commands.MinScore)
	if len(cfg.Commands.Aliases) > 0 {
		fmt.Fprintln(out, "  aliases:")
		actions := make([]string, 0, len(cfg.Commands.Aliases))
		for a := range cfg.Commands.Aliases {
			actions = append(actions, a)
		}
		sort.Strings(actions)
		for _, a := range actions {
			fmt.Fprintf(out, "    %s: %s\n", a, strings.Join(cfg.Commands.Aliases[a], ", "))
		}
	}

	fmt.Fprintln(out, "invasion:")
	fmt.Fprintf(out, "  enabled: %v\n", cfg.Invasion.Enabled)
	fmt.Fprintf(out, "  start_delay: %s\n", cfg.Invasion.StartDelay)
	fmt.Fprintf(out, "  interval: %s .. %s\n", cfg.Invasion.MinInterval, cfg.Invasion.InitialInterval)
	fmt.Fprintf(out, "  max_invaders: %d on a %dx%d grid\n", cfg.Invasion.MaxInvaders, cfg.Invasion.GridCols, cfg.Invasion.GridRows)
	fmt.Fprintf(out, "  retreat: %s within %s\n", cfg.Invasion.RetreatStyle, cfg.Invasion.RetreatTimeout)

	fmt.Fprintln(out, "control:")
	fmt.Fprintf(out, "  addr: %s\n", cfg.Control.Addr)
	fmt.Fprintf(out, "  rate_limit: %d\n", cfg.Control.RateLimit)

	fmt.Fprintln(out, "journal:")
	fmt.Fprintf(out, "  enabled: %v\n", cfg.Journal.Enabled)
	fmt.Fprintf(out, "  path: %s\n", cfg.Journal.JournalPath())

	fmt.Fprintln(out, "logging:")
	fmt.Fprintf(out, "  level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	fmt.Fprintf(out, "  max_backups: %d\n", cfg.Logging.MaxBackups)
	fmt.Fprintf(out, "  compress: %v\n", cfg.Logging.Compress)

	return nil
}

func orBuiltin(s string) string {
	if s == "" {
		return "(built-in)"
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func parseValue(key, value string, kind keyKind) (any, error) {
	switch kind {
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return b, nil
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		return n, nil
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected a duration such as 90s or 5m", key)
		}
		return d.String(), nil
	case kindLevel:
		level := strings.ToLower(value)
		if !slices.Contains(appconfig.ValidLogLevels(), level) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(appconfig.ValidLogLevels(), ", "))
		}
		return level, nil
	}
	return value, nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	spec, ok := settableKeys()[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'haunt config keys' to see valid keys", key)
	}
	typed, err := parseValue(key, value, spec.kind)
	if err != nil {
		return err
	}

	previous := viper.Get(key)
	viper.Set(key, typed)
	// Decoding validates the whole config with the new value in place
	if _, err := appconfig.Load(); err != nil {
		viper.Set(key, previous)
		return fmt.Errorf("rejected %s = %v: %w", key, typed, err)
	}

	configFile, err := writeConfig()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typed)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)
	return nil
}

func runConfigKeys(cmd *cobra.Command, args []string) error {
	keys := settableKeys()
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-28s default: %v\n", k, formatDefault(keys[k].def))
	}
	return nil
}

func formatDefault(v any) string {
	switch x := v.(type) {
	case string:
		if x == "" {
			return `""`
		}
		return x
	case time.Duration:
		return x.String()
	}
	return fmt.Sprint(v)
}

// storedValue keeps durations human-readable in the written file.
func storedValue(v any) any {
	if d, ok := v.(time.Duration); ok {
		return d.String()
	}
	return v
}

// writeConfig saves the global viper state to the active config file, or to
// the default location when none is in use.
func writeConfig() (string, error) {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = appconfig.ConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return configFile, nil
}

const defaultConfigContent = `# haunt configuration

# When the companion appears and leaves
trigger:
  # Idle time before the companion may appear (minimum 60s)
  idle_threshold: 3m
  # Leave on its own after this long without interaction (0 disables)
  auto_dismiss: 30s
  # Stay hidden while a fullscreen app is in front
  fullscreen_suppress: true
  # Idle time after which the user counts as away
  prolonged_idle: 10m
  # Give up waiting for the flee animation after this long
  flee_timeout: 3s
  # Command printing idle milliseconds
  idle_command: xprintidle

# System audio
audio:
  # Show up and mirror the user while something is playing
  reactive: true
  # A file whose presence means audio is playing (default: in the config dir)
  flag_path: ""

# Camera presence sampling
vision:
  camera_enabled: true
  # How long a camera sample stays usable
  sample_freshness: 5s

# Script lines and entrances
behavior:
  # YAML script catalog (empty uses the built-in lines)
  scripts_path: ""
  # Recorded entrance trajectory (empty disables scripted entrances)
  trajectory_path: ""
  # Random offset added to the idle threshold after each dismissal
  jitter_low: -30s
  jitter_high: 1m
  # How often mood drifts back toward neutral
  mood_decay_interval: 1h

# Screen commentary
commentary:
  interval: 10s
  burst: 2
  timeout: 20s

# Extra spoken or typed phrases per action, as glob patterns
commands:
  aliases: {}
  #   summon: ["hey buddy*"]
  #   hide: ["not now"]
  # Similarity (0-100) a misspelled command needs; 0 disables fuzzy matching
  min_score: 68

# Invaders that crowd the screen while you are away
invasion:
  enabled: true
  # Idle time before the first invader appears (minimum 60s)
  start_delay: 3m
  # Spawn cadence at the start and at its fastest
  initial_interval: 10s
  min_interval: 2s
  max_invaders: 12
  grid_cols: 6
  grid_rows: 4
  # instant, scatter or ripple
  retreat_style: scatter
  # Clear any invader still on screen after this long
  retreat_timeout: 5s

# Local control API (loopback only)
control:
  addr: 127.0.0.1:7717
  # Requests per minute per client (0 disables limiting)
  rate_limit: 20

# Transition and mood history for 'haunt stats'
journal:
  enabled: true
  path: ""

logging:
  # trace, debug, info, warn or error
  level: info
  max_size_mb: 10
  max_backups: 3
  compress: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'haunt config set' to modify values", configFile)
	}
	if err := os.MkdirAll(appconfig.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	fmt.Fprintln(cmd.OutOrStdout(), "Edit this file to customize haunt's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	printPaths(cmd.OutOrStdout())
	return nil
}

func printPaths(out io.Writer) {
	configFile := appconfig.ConfigFile()
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", configFile)
	fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_TRIGGER_IDLE_THRESHOLD)\n",
		appconfig.EnvPrefix, appconfig.EnvPrefix)
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		fmt.Fprintln(cmd.OutOrStdout(), "Config file doesn't exist, creating with defaults...")
		if err := runConfigInit(cmd, args); err != nil {
			return err
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"vim", "nano", "vi"} {
			if _, err := execLookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Set $EDITOR environment variable")
	}

	editorCmd := execCommand(editor, configFile)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Config file saved: %s\n", configFile)
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	keys := settableKeys()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		for key, spec := range keys {
			viper.Set(key, storedValue(spec.def))
		}
		fmt.Fprintln(out, "Reset all configuration to defaults.")
	} else {
		key := args[0]
		spec, ok := keys[key]
		if !ok {
			return fmt.Errorf("unknown configuration key: %s\nRun 'haunt config keys' to see valid keys", key)
		}
		viper.Set(key, storedValue(spec.def))
		fmt.Fprintf(out, "Reset %s to default: %s\n", key, formatDefault(spec.def))
	}

	configFile, err := writeConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}
