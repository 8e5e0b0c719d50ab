// Package config provides configuration types and defaults for acetate.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/acetatelabs/acetate/internal/log"
	"github.com/acetatelabs/acetate/internal/overlay/position"
	"github.com/acetatelabs/acetate/internal/overlay/textrange"
	"github.com/acetatelabs/acetate/internal/tracing"
)

// Config holds all configuration options for acetate.
type Config struct {
	// LogPath is where the engine writes its log. Empty disables logging.
	LogPath    string           `mapstructure:"log_path"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Tracing    tracing.Config   `mapstructure:"tracing"`
	Playground PlaygroundConfig `mapstructure:"playground"`
}

// EngineConfig tunes positioning, text tracking and retention.
type EngineConfig struct {
	// ViewportMargin shrinks the viewport on all sides for the fit test.
	ViewportMargin int `mapstructure:"viewport_margin"`
	// CollisionMargin pads registered overlay bounds during collision checks.
	CollisionMargin int `mapstructure:"collision_margin"`
	// MaxMatches caps the results of one text pattern scan.
	MaxMatches int `mapstructure:"max_matches"`
	// MinNodeTextLen skips nodes with shorter text during scans.
	MinNodeTextLen int `mapstructure:"min_node_text_len"`
	// MergeOverlapping collapses overlapping matches within one node.
	MergeOverlapping bool `mapstructure:"merge_overlapping"`
	// CaseSensitive controls pattern matching.
	CaseSensitive bool `mapstructure:"case_sensitive"`
	// TrackChanges keeps matches alive across document mutations.
	TrackChanges bool `mapstructure:"track_changes"`
	// DebounceMs batches mutation bursts before re-scanning.
	DebounceMs int `mapstructure:"debounce_ms"`
	// RetentionMinutes bounds how long inactive instances survive sweeps.
	RetentionMinutes int `mapstructure:"retention_minutes"`
	// Debug enables verbose diagnostics.
	Debug bool `mapstructure:"debug"`
}

// PlaygroundConfig configures the demonstration host.
type PlaygroundConfig struct {
	// Scene is the YAML scene file to load.
	Scene string `mapstructure:"scene"`
	// Watch reloads the scene when the file changes.
	Watch bool `mapstructure:"watch"`
	// MouseMotion enables cell-motion mouse reporting.
	MouseMotion bool `mapstructure:"mouse_motion"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		LogPath: "",
		Engine: EngineConfig{
			ViewportMargin:   10,
			CollisionMargin:  5,
			MaxMatches:       100,
			MinNodeTextLen:   2,
			MergeOverlapping: true,
			CaseSensitive:    true,
			TrackChanges:     true,
			DebounceMs:       300,
			RetentionMinutes: 30,
			Debug:            false,
		},
		Tracing: tracing.DefaultConfig(),
		Playground: PlaygroundConfig{
			Scene:       "",
			Watch:       true,
			MouseMotion: true,
		},
	}
}

// PositionConfig converts the engine settings for the positioner.
func (e EngineConfig) PositionConfig() position.Config {
	return position.Config{
		ViewportMargin:  e.ViewportMargin,
		CollisionMargin: e.CollisionMargin,
	}
}

// TrackerConfig converts the engine settings for the text range tracker.
func (e EngineConfig) TrackerConfig() textrange.Config {
	cfg := textrange.DefaultConfig()
	cfg.MaxMatches = e.MaxMatches
	cfg.MinNodeTextLen = e.MinNodeTextLen
	cfg.MergeOverlapping = e.MergeOverlapping
	cfg.CaseSensitive = e.CaseSensitive
	cfg.TrackChanges = e.TrackChanges
	cfg.Debounce = time.Duration(e.DebounceMs) * time.Millisecond
	return cfg
}

// Retention converts the retention window.
func (e EngineConfig) Retention() time.Duration {
	return time.Duration(e.RetentionMinutes) * time.Minute
}

// ValidateEngine checks the engine section.
func ValidateEngine(e EngineConfig) error {
	if e.ViewportMargin < 0 {
		return fmt.Errorf("engine.viewport_margin must not be negative, got %d", e.ViewportMargin)
	}
	if e.CollisionMargin < 0 {
		return fmt.Errorf("engine.collision_margin must not be negative, got %d", e.CollisionMargin)
	}
	if e.MaxMatches <= 0 {
		return fmt.Errorf("engine.max_matches must be positive, got %d", e.MaxMatches)
	}
	if e.DebounceMs < 0 {
		return fmt.Errorf("engine.debounce_ms must not be negative, got %d", e.DebounceMs)
	}
	if e.RetentionMinutes <= 0 {
		return fmt.Errorf("engine.retention_minutes must be positive, got %d", e.RetentionMinutes)
	}
	return nil
}

// ValidateTracing checks the tracing section.
func ValidateTracing(t tracing.Config) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}

	if t.Exporter != "" {
		switch t.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if t.Enabled {
		if t.Exporter == "file" && t.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if t.Exporter == "otlp" && t.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// Validate checks the whole config.
func Validate(cfg Config) error {
	if err := ValidateEngine(cfg.Engine); err != nil {
		return err
	}
	return ValidateTracing(cfg.Tracing)
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Acetate Configuration

# Engine log file (empty disables logging)
# log_path: ~/.config/acetate/acetate.log

# Overlay engine tuning
engine:
  viewport_margin: 10    # Cells kept clear at every viewport edge
  collision_margin: 5    # Padding around placed overlays for collision checks
  max_matches: 100       # Cap on matches per text pattern scan
  min_node_text_len: 2   # Skip nodes with shorter text
  merge_overlapping: true
  case_sensitive: true
  track_changes: true    # Revalidate matches as the document mutates
  debounce_ms: 300       # Mutation burst debounce before re-scanning
  retention_minutes: 30  # Inactive instance retention window
  debug: false

# Distributed tracing (disabled by default)
# tracing:
#   enabled: true
#   exporter: file
#   file_path: ~/.config/acetate/traces/traces.jsonl
#
# Example: Send traces to Jaeger via OTLP
# tracing:
#   enabled: true
#   exporter: otlp
#   otlp_endpoint: jaeger.internal:4317
#   sample_rate: 0.1  # Sample 10% of traces

# Playground host
playground:
  # scene: ./scene.yaml
  watch: true          # Live-reload the scene file
  mouse_motion: true   # Cell-motion mouse reporting
`
}

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments. Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
