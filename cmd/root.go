package cmd

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/acetatelabs/acetate/internal/config"
	"github.com/acetatelabs/acetate/internal/log"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop and appearing as
	// garbage text in input fields.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:     "acetate",
	Short:   "A terminal overlay positioning and interaction engine",
	Long: `Acetate positions, stacks and tracks overlays against a terminal
document surface: element anchors, text-match anchors and free-floating
draggable boxes. The playground command hosts the engine interactively.`,
	Version: version,
	RunE:    runPlayground,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/acetate/config.yaml)")
	rootCmd.PersistentFlags().String("log", "",
		"log file path (empty disables logging)")

	_ = viper.BindPFlag("log_path", rootCmd.PersistentFlags().Lookup("log"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("log_path", defaults.LogPath)
	viper.SetDefault("engine.viewport_margin", defaults.Engine.ViewportMargin)
	viper.SetDefault("engine.collision_margin", defaults.Engine.CollisionMargin)
	viper.SetDefault("engine.max_matches", defaults.Engine.MaxMatches)
	viper.SetDefault("engine.min_node_text_len", defaults.Engine.MinNodeTextLen)
	viper.SetDefault("engine.merge_overlapping", defaults.Engine.MergeOverlapping)
	viper.SetDefault("engine.case_sensitive", defaults.Engine.CaseSensitive)
	viper.SetDefault("engine.track_changes", defaults.Engine.TrackChanges)
	viper.SetDefault("engine.debounce_ms", defaults.Engine.DebounceMs)
	viper.SetDefault("engine.retention_minutes", defaults.Engine.RetentionMinutes)
	viper.SetDefault("engine.debug", defaults.Engine.Debug)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)
	viper.SetDefault("playground.scene", defaults.Playground.Scene)
	viper.SetDefault("playground.watch", defaults.Playground.Watch)
	viper.SetDefault("playground.mouse_motion", defaults.Playground.MouseMotion)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .acetate/config.yaml (current directory)
		// 2. ~/.config/acetate/config.yaml (user config)
		if _, err := os.Stat(".acetate/config.yaml"); err == nil {
			viper.SetConfigFile(".acetate/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "acetate"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .acetate/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".acetate/config.yaml"
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// initLogging sets up the log file when one is configured. The returned
// cleanup closes the file.
func initLogging() (func(), error) {
	if cfg.LogPath == "" {
		return func() {}, nil
	}
	return log.Init(cfg.LogPath)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
