package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Expiry policies for abandoned interrupt tokens.
const (
	// ExpiryDrop silently discards the expired token and restarts the
	// conversation at the entry node on next contact.
	ExpiryDrop = "drop"
	// ExpiryHandoff routes the conversation to a human on next contact.
	ExpiryHandoff = "handoff"
)

// Engine holds the workflow tuning knobs. All of these are external
// policy, not engine defaults baked into code paths.
type Engine struct {
	// ConfidenceThreshold below which refund intents escalate to a human.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// DistressMarkers are substrings that signal explicit anger.
	DistressMarkers []string `yaml:"distress_markers"`

	// MaxStepsPerTurn bounds advance chains against cyclic graphs.
	MaxStepsPerTurn int `yaml:"max_steps_per_turn"`

	// RepromptLimit caps clarification loops on unrecognized answers.
	RepromptLimit int `yaml:"reprompt_limit"`

	// InterruptTTL is how long a pending confirmation stays valid,
	// as a Go duration string (e.g. "15m"). Empty means no expiry.
	InterruptTTL string `yaml:"interrupt_ttl"`

	// ExpiryPolicy is what happens when a token expires: "drop" or
	// "handoff".
	ExpiryPolicy string `yaml:"expiry_policy"`
}

// Server holds HTTP transport settings.
type Server struct {
	Listen string `yaml:"listen"`
}

// Redis holds connection settings for the redis adapters.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Config is the top-level configuration document.
type Config struct {
	Engine Engine `yaml:"engine"`
	Server Server `yaml:"server"`
	Redis  Redis  `yaml:"redis"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: Engine{
			ConfidenceThreshold: 0.5,
			DistressMarkers: []string{
				"furious", "angry", "outraged", "scam", "complaint",
				"report you", "terrible", "worst",
			},
			MaxStepsPerTurn: 16,
			RepromptLimit:   3,
			InterruptTTL:    "15m",
			ExpiryPolicy:    ExpiryHandoff,
		},
		Server: Server{Listen: ":8080"},
		Redis:  Redis{Addr: "localhost:6379", Prefix: "caseflow:"},
	}
}

// Load reads a YAML config file and merges it over the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Engine.ExpiryPolicy != ExpiryDrop && c.Engine.ExpiryPolicy != ExpiryHandoff {
		return fmt.Errorf("invalid expiry_policy %q: must be %q or %q", c.Engine.ExpiryPolicy, ExpiryDrop, ExpiryHandoff)
	}
	if c.Engine.ConfidenceThreshold < 0 || c.Engine.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0,1], got %v", c.Engine.ConfidenceThreshold)
	}
	if c.Engine.MaxStepsPerTurn <= 0 {
		return fmt.Errorf("max_steps_per_turn must be positive, got %d", c.Engine.MaxStepsPerTurn)
	}
	if _, err := c.Engine.TTL(); err != nil {
		return err
	}
	return nil
}

// TTL parses the configured interrupt TTL. Zero means no expiry.
func (e Engine) TTL() (time.Duration, error) {
	if e.InterruptTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(e.InterruptTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid interrupt_ttl %q: %w", e.InterruptTTL, err)
	}
	return d, nil
}
