package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/learnd/internal/monitor"
)

// watchCmd opens the live learning dashboard
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of insights, experiments and knowledge",
	Long: `Open a terminal dashboard that polls the learnd server and shows
insight confidence, running experiments, knowledge growth and the latest
meta-insights.

Examples:
  learnctl watch
  learnctl watch --interval 2s`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Duration("interval", 5*time.Second, "refresh interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", interval)
	}

	p := tea.NewProgram(monitor.NewModel(serverURL, interval),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}
	return nil
}
