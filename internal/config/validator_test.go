package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "trigger.idle_threshold",
		Value:   10 * time.Second,
		Message: "must be at least 1m0s",
	}

	expected := "trigger.idle_threshold: must be at least 1m0s (got: 10s)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() = %q, want empty", errs.Error())
		}
	})

	t.Run("single", func(t *testing.T) {
		errs := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
		if errs.Error() != "a: bad (got: 1)" {
			t.Errorf("Error() = %q", errs.Error())
		}
	})

	t.Run("multiple", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "a", Value: 1, Message: "bad"},
			{Field: "b", Value: 2, Message: "worse"},
		}
		got := errs.Error()
		if !strings.HasPrefix(got, "2 validation errors:") {
			t.Errorf("Error() = %q, want count prefix", got)
		}
		if !strings.Contains(got, "2. b: worse (got: 2)") {
			t.Errorf("Error() = %q, want numbered entries", got)
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"idle threshold below minimum", func(c *Config) { c.Trigger.IdleThreshold = 30 * time.Second }, "trigger.idle_threshold"},
		{"negative auto dismiss", func(c *Config) { c.Trigger.AutoDismiss = -time.Second }, "trigger.auto_dismiss"},
		{"zero prolonged idle", func(c *Config) { c.Trigger.ProlongedIdle = 0 }, "trigger.prolonged_idle"},
		{"flee timeout too long", func(c *Config) { c.Trigger.FleeTimeout = 2 * time.Minute }, "trigger.flee_timeout"},
		{"zero sample freshness", func(c *Config) { c.Vision.SampleFreshness = 0 }, "vision.sample_freshness"},
		{"inverted jitter", func(c *Config) { c.Behavior.JitterLow = time.Minute; c.Behavior.JitterHigh = 0 }, "behavior.jitter_low"},
		{"zero mood decay", func(c *Config) { c.Behavior.MoodDecayInterval = 0 }, "behavior.mood_decay_interval"},
		{"zero burst", func(c *Config) { c.Commentary.Burst = 0 }, "commentary.burst"},
		{"zero commentary timeout", func(c *Config) { c.Commentary.Timeout = 0 }, "commentary.timeout"},
		{"unknown alias action", func(c *Config) { c.Commands.Aliases = map[string][]string{"dance": {"boogie"}} }, "commands.aliases.dance"},
		{"bad alias pattern", func(c *Config) { c.Commands.Aliases = map[string][]string{"summon": {"[oops"}} }, "commands.aliases.summon"},
		{"min score above 100", func(c *Config) { c.Commands.MinScore = 101 }, "commands.min_score"},
		{"negative min score", func(c *Config) { c.Commands.MinScore = -1 }, "commands.min_score"},
		{"short invasion delay", func(c *Config) { c.Invasion.StartDelay = 10 * time.Second }, "invasion.start_delay"},
		{"min interval above initial", func(c *Config) { c.Invasion.MinInterval = time.Minute }, "invasion.min_interval"},
		{"no invaders", func(c *Config) { c.Invasion.MaxInvaders = 0 }, "invasion.max_invaders"},
		{"empty grid", func(c *Config) { c.Invasion.GridRows = 0 }, "invasion.grid"},
		{"unknown retreat style", func(c *Config) { c.Invasion.RetreatStyle = "explode" }, "invasion.retreat_style"},
		{"zero retreat timeout", func(c *Config) { c.Invasion.RetreatTimeout = 0 }, "invasion.retreat_timeout"},
		{"public control addr", func(c *Config) { c.Control.Addr = "0.0.0.0:7717" }, "control.addr"},
		{"malformed control addr", func(c *Config) { c.Control.Addr = "localhost" }, "control.addr"},
		{"negative rate limit", func(c *Config) { c.Control.RateLimit = -1 }, "control.rate_limit"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"zero log size", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("Expected 1 validation error, got %d: %v", len(errs), errs)
			}
			if errs[0].Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, errs[0].Field)
			}
		})
	}
}

func TestConfig_Validate_Accepts(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"auto dismiss disabled", func(c *Config) { c.Trigger.AutoDismiss = 0 }},
		{"localhost control", func(c *Config) { c.Control.Addr = "localhost:9000" }},
		{"ipv6 loopback control", func(c *Config) { c.Control.Addr = "[::1]:9000" }},
		{"upper case log level", func(c *Config) { c.Logging.Level = "DEBUG" }},
		{"trace log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"custom alias", func(c *Config) { c.Commands.Aliases = map[string][]string{"Summon": {"hey ghost*"}} }},
		{"zero jitter", func(c *Config) { c.Behavior.JitterLow, c.Behavior.JitterHigh = 0, 0 }},
		{"fuzzy matching off", func(c *Config) { c.Commands.MinScore = 0 }},
		{"invasion off", func(c *Config) { c.Invasion.Enabled = false }},
		{"ripple retreat", func(c *Config) { c.Invasion.RetreatStyle = "Ripple" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if errs := cfg.Validate(); len(errs) != 0 {
				t.Errorf("Expected no validation errors, got %v", errs)
			}
		})
	}
}
