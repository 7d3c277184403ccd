// Learnd is the adaptive learning daemon.
//
// It serves the learning engine over HTTP, persists beliefs to the configured
// memory store and optionally publishes learning events to NATS.
//
// Usage:
//
//	# Start the daemon with ~/.config/learnd/config.yaml
//	learnd serve
//
//	# Override settings through the environment
//	SERVER_HTTP_PORT=9292 MEMORYSTORE_DRIVER=memory learnd serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "learnd",
	Short: "Adaptive belief and preference learning daemon",
	Long: `learnd learns durable beliefs and preferences about a user from their
interactions, organizes their memories into knowledge domains and reflects on
gaps, conflicts and growth in what it knows.`,
	Version:      version,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/learnd/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func printVersion(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "learnd by Fyrsmith Labs\n")
	fmt.Fprintf(out, "Version:    %s\n", version)
	fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(out, "Build Date: %s\n", buildDate)
}
