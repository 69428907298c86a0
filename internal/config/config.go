package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/haunt/internal/command"
	"github.com/Iron-Ham/haunt/internal/invasion"
)

// EnvPrefix prefixes environment overrides.
// e.g., HAUNT_TRIGGER_IDLE_THRESHOLD for trigger.idle_threshold
const EnvPrefix = "HAUNT"

// envKeyReplacer maps nested keys to env var names.
var envKeyReplacer = strings.NewReplacer(".", "_")

// EnvKeyReplacer returns the replacer used for environment overrides.
func EnvKeyReplacer() *strings.Replacer {
	return envKeyReplacer
}

// Config represents the complete haunt configuration
type Config struct {
	Trigger    TriggerConfig    `mapstructure:"trigger"`
	Audio      AudioConfig      `mapstructure:"audio"`
	Vision     VisionConfig     `mapstructure:"vision"`
	Behavior   BehaviorConfig   `mapstructure:"behavior"`
	Commentary CommentaryConfig `mapstructure:"commentary"`
	Commands   CommandsConfig   `mapstructure:"commands"`
	Invasion   InvasionConfig   `mapstructure:"invasion"`
	Control    ControlConfig    `mapstructure:"control"`
	Journal    JournalConfig    `mapstructure:"journal"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// TriggerConfig controls when the companion appears and leaves
type TriggerConfig struct {
	// IdleThreshold is how long the user must be idle before the companion
	// considers appearing. Jitter is applied on every re-arm.
	IdleThreshold time.Duration `mapstructure:"idle_threshold"`
	// AutoDismiss hides an engaged companion after this long (0 = never)
	AutoDismiss time.Duration `mapstructure:"auto_dismiss"`
	// FullscreenSuppress keeps the companion hidden while a fullscreen app is focused
	FullscreenSuppress bool `mapstructure:"fullscreen_suppress"`
	// ProlongedIdle is how long the companion stays hidden before a prolonged idle notice
	ProlongedIdle time.Duration `mapstructure:"prolonged_idle"`
	// FleeTimeout is the fallback for a flee animation that never reports completion
	FleeTimeout time.Duration `mapstructure:"flee_timeout"`
	// IdleCommand prints the user's idle time in milliseconds (default: "xprintidle")
	IdleCommand string `mapstructure:"idle_command"`
}

// AudioConfig controls reaction to system audio
type AudioConfig struct {
	// Reactive summons the companion while system audio plays
	Reactive bool `mapstructure:"reactive"`
	// FlagPath is a file whose presence means system audio is playing
	FlagPath string `mapstructure:"flag_path"`
}

// VisionConfig controls the camera producer
type VisionConfig struct {
	// CameraEnabled allows presence samples to be collected while visible
	CameraEnabled bool `mapstructure:"camera_enabled"`
	// SampleFreshness is how long a camera sample counts as current
	SampleFreshness time.Duration `mapstructure:"sample_freshness"`
}

// BehaviorConfig controls scripts and entrance choreography
type BehaviorConfig struct {
	// ScriptsPath is a YAML script catalog. Empty uses the built-in lines.
	ScriptsPath string `mapstructure:"scripts_path"`
	// TrajectoryPath is a recorded entrance trajectory. Empty disables scripted entrances.
	TrajectoryPath string `mapstructure:"trajectory_path"`
	// JitterLow and JitterHigh bound the random offset added to the idle threshold
	JitterLow  time.Duration `mapstructure:"jitter_low"`
	JitterHigh time.Duration `mapstructure:"jitter_high"`
	// MoodDecayInterval is how often mood drifts back toward neutral
	MoodDecayInterval time.Duration `mapstructure:"mood_decay_interval"`
}

// CommentaryConfig throttles screen commentary requests
type CommentaryConfig struct {
	// Interval is the minimum spacing between commentary calls
	Interval time.Duration `mapstructure:"interval"`
	// Burst is how many calls may happen back to back
	Burst int `mapstructure:"burst"`
	// Timeout bounds a single commentary call
	Timeout time.Duration `mapstructure:"timeout"`
}

// CommandsConfig extends the command vocabulary
type CommandsConfig struct {
	// Aliases maps an action name to extra glob patterns
	// Example: {"summon": ["hey ghost*"]}
	Aliases map[string][]string `mapstructure:"aliases"`
	// MinScore is the fuzzy match threshold out of 100 (0 disables
	// fuzzy matching)
	MinScore int `mapstructure:"min_score"`
}

// InvasionConfig controls the idle invasion
type InvasionConfig struct {
	// Enabled lets invaders appear during long idle stretches
	Enabled bool `mapstructure:"enabled"`
	// StartDelay is the idle time before the first invader appears
	StartDelay time.Duration `mapstructure:"start_delay"`
	// InitialInterval is the first spawn cadence; it shortens as idle time grows
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	// MinInterval is the fastest spawn cadence
	MinInterval time.Duration `mapstructure:"min_interval"`
	// MaxInvaders caps how many invaders can be on screen
	MaxInvaders int `mapstructure:"max_invaders"`
	// GridCols and GridRows split the screen into invader cells
	GridCols int `mapstructure:"grid_cols"`
	GridRows int `mapstructure:"grid_rows"`
	// RetreatStyle is "instant", "scatter" or "ripple"
	RetreatStyle string `mapstructure:"retreat_style"`
	// RetreatTimeout clears invaders that have not left after this long
	RetreatTimeout time.Duration `mapstructure:"retreat_timeout"`
}

// Controller converts the settings for the invasion controller.
func (c *InvasionConfig) Controller() invasion.Config {
	style, ok := invasion.ParseRetreatStyle(c.RetreatStyle)
	if !ok {
		style = invasion.Scatter
	}
	return invasion.Config{
		Enabled:         c.Enabled,
		StartDelay:      c.StartDelay,
		InitialInterval: c.InitialInterval,
		MinInterval:     c.MinInterval,
		MaxInvaders:     c.MaxInvaders,
		GridCols:        c.GridCols,
		GridRows:        c.GridRows,
		RetreatStyle:    style,
		RetreatTimeout:  c.RetreatTimeout,
	}
}

// ControlConfig controls the local HTTP API
type ControlConfig struct {
	// Addr is the listen address. It must be a loopback address.
	Addr string `mapstructure:"addr"`
	// RateLimit is the number of requests allowed per second per client (0 = unlimited)
	RateLimit int `mapstructure:"rate_limit"`
}

// JournalConfig controls the transition journal
type JournalConfig struct {
	// Enabled records transitions and mood samples to SQLite
	Enabled bool `mapstructure:"enabled"`
	// Path is the database file. Empty uses {ConfigDir}/journal.db.
	Path string `mapstructure:"path"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: "trace", "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size before rotation
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Trigger: TriggerConfig{
			IdleThreshold:      180 * time.Second,
			AutoDismiss:        30 * time.Second,
			FullscreenSuppress: true,
			ProlongedIdle:      10 * time.Minute,
			FleeTimeout:        3 * time.Second,
			IdleCommand:        "xprintidle",
		},
		Audio: AudioConfig{
			Reactive: true,
			FlagPath: "",
		},
		Vision: VisionConfig{
			CameraEnabled:   true,
			SampleFreshness: 5 * time.Second,
		},
		Behavior: BehaviorConfig{
			ScriptsPath:       "",
			TrajectoryPath:    "",
			JitterLow:         -30 * time.Second,
			JitterHigh:        60 * time.Second,
			MoodDecayInterval: time.Hour,
		},
		Commentary: CommentaryConfig{
			Interval: 10 * time.Second,
			Burst:    2,
			Timeout:  20 * time.Second,
		},
		Commands: CommandsConfig{
			Aliases:  map[string][]string{},
			MinScore: command.DefaultMinScore,
		},
		Invasion: InvasionConfig{
			Enabled:         true,
			StartDelay:      3 * time.Minute,
			InitialInterval: 10 * time.Second,
			MinInterval:     2 * time.Second,
			MaxInvaders:     12,
			GridCols:        6,
			GridRows:        4,
			RetreatStyle:    "scatter",
			RetreatTimeout:  5 * time.Second,
		},
		Control: ControlConfig{
			Addr:      "127.0.0.1:7717",
			RateLimit: 20,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	defaults := Default()

	// Trigger defaults
	v.SetDefault("trigger.idle_threshold", defaults.Trigger.IdleThreshold)
	v.SetDefault("trigger.auto_dismiss", defaults.Trigger.AutoDismiss)
	v.SetDefault("trigger.fullscreen_suppress", defaults.Trigger.FullscreenSuppress)
	v.SetDefault("trigger.prolonged_idle", defaults.Trigger.ProlongedIdle)
	v.SetDefault("trigger.flee_timeout", defaults.Trigger.FleeTimeout)
	v.SetDefault("trigger.idle_command", defaults.Trigger.IdleCommand)

	// Audio defaults
	v.SetDefault("audio.reactive", defaults.Audio.Reactive)
	v.SetDefault("audio.flag_path", defaults.Audio.FlagPath)

	// Vision defaults
	v.SetDefault("vision.camera_enabled", defaults.Vision.CameraEnabled)
	v.SetDefault("vision.sample_freshness", defaults.Vision.SampleFreshness)

	// Behavior defaults
	v.SetDefault("behavior.scripts_path", defaults.Behavior.ScriptsPath)
	v.SetDefault("behavior.trajectory_path", defaults.Behavior.TrajectoryPath)
	v.SetDefault("behavior.jitter_low", defaults.Behavior.JitterLow)
	v.SetDefault("behavior.jitter_high", defaults.Behavior.JitterHigh)
	v.SetDefault("behavior.mood_decay_interval", defaults.Behavior.MoodDecayInterval)

	// Commentary defaults
	v.SetDefault("commentary.interval", defaults.Commentary.Interval)
	v.SetDefault("commentary.burst", defaults.Commentary.Burst)
	v.SetDefault("commentary.timeout", defaults.Commentary.Timeout)

	// Commands defaults
	v.SetDefault("commands.aliases", defaults.Commands.Aliases)
	v.SetDefault("commands.min_score", defaults.Commands.MinScore)

	// Invasion defaults
	v.SetDefault("invasion.enabled", defaults.Invasion.Enabled)
	v.SetDefault("invasion.start_delay", defaults.Invasion.StartDelay)
	v.SetDefault("invasion.initial_interval", defaults.Invasion.InitialInterval)
	v.SetDefault("invasion.min_interval", defaults.Invasion.MinInterval)
	v.SetDefault("invasion.max_invaders", defaults.Invasion.MaxInvaders)
	v.SetDefault("invasion.grid_cols", defaults.Invasion.GridCols)
	v.SetDefault("invasion.grid_rows", defaults.Invasion.GridRows)
	v.SetDefault("invasion.retreat_style", defaults.Invasion.RetreatStyle)
	v.SetDefault("invasion.retreat_timeout", defaults.Invasion.RetreatTimeout)

	// Control defaults
	v.SetDefault("control.addr", defaults.Control.Addr)
	v.SetDefault("control.rate_limit", defaults.Control.RateLimit)

	// Journal defaults
	v.SetDefault("journal.enabled", defaults.Journal.Enabled)
	v.SetDefault("journal.path", defaults.Journal.Path)

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	v.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return decode(viper.GetViper())
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// LoadFile reads and validates a single config file on top of the defaults.
// Environment overrides with the HAUNT_ prefix still apply.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return decode(v)
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "haunt")
	}
	// Fall back to ~/.config/haunt
	home, err := os.UserHomeDir()
	if err != nil {
		return ".haunt"
	}
	return filepath.Join(home, ".config", "haunt")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// JournalPath resolves the journal database location.
func (c *JournalConfig) JournalPath() string {
	if c.Path != "" {
		return c.Path
	}
	return filepath.Join(ConfigDir(), "journal.db")
}

// FlagFile resolves the audio flag location.
func (c *AudioConfig) FlagFile() string {
	if c.FlagPath != "" {
		return c.FlagPath
	}
	return filepath.Join(ConfigDir(), "audio.playing")
}
