// Package cmd provides the CLI commands for notetime.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version info (set at build time via ldflags)
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"

	// Global flags
	dataDirFlag string
	jsonOutput  bool
	backendFlag string
)

// skipServices marks commands that run without opening storage.
const skipServices = "skip-services"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notetime",
	Short: "notetime - time tracking for your note vault",
	Long: `notetime records how long you spend on each note of a vault and
aggregates it per file, folder, tag and day.

Run "notetime track --vault <dir>" to start tracking.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipServices] == "true" {
			return loadConfig()
		}
		return initializeServices(cmd.Context())
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return cleanupServices()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if cerr := cleanupServices(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Directory holding tracker data (default: ~/.notetime)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results in JSON format")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Storage backend: json or sqlite (default from config)")

	// Set version - cobra handles --version automatically
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("notetime\nVersion: {{.Version}}\nBuilt: %s\nCommit: %s\n", BuildDate, GitCommit))
}
