package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/acetatelabs/acetate/internal/config"
	"github.com/acetatelabs/acetate/internal/ui/playground"
)

var playgroundCmd = &cobra.Command{
	Use:   "playground",
	Short: "Interactive playground for the overlay engine",
	Long: `Launch an interactive playground that hosts the overlay engine over a
YAML scene. Overlays can be dragged, dismissed and reloaded live while the
scene file is edited.`,
	RunE: runPlayground,
}

func init() {
	playgroundCmd.Flags().StringP("scene", "s", "",
		"YAML scene file (default: built-in demo scene)")
	playgroundCmd.Flags().Bool("no-watch", false,
		"disable scene file watching")

	_ = viper.BindPFlag("playground.scene", playgroundCmd.Flags().Lookup("scene"))

	rootCmd.AddCommand(playgroundCmd)
}

func runPlayground(cmd *cobra.Command, args []string) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	closeLog, err := initLogging()
	if err != nil {
		return fmt.Errorf("initializing log: %w", err)
	}
	defer closeLog()

	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		cfg.Playground.Watch = false
	}

	zone.NewGlobal()
	model, err := playground.New(cfg)
	if err != nil {
		return fmt.Errorf("building playground: %w", err)
	}

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.Playground.MouseMotion {
		opts = append(opts, tea.WithMouseCellMotion())
	}

	if _, err := tea.NewProgram(model, opts...).Run(); err != nil {
		return fmt.Errorf("running playground: %w", err)
	}
	return nil
}
