package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/uvmon/uvmon/internal/config"
	"github.com/uvmon/uvmon/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "uvmon",
	Short:   "Structured progress from uv pip install debug output",
	Long: `uvmon turns the line-oriented debug output of a uv pip install
subprocess into structured progress: installation phase, per-package
download progress with transfer rate and ETA, and a post-run timeline
of parallel downloads.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initializeGlobalState()
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.SetVersionTemplate("uvmon version {{.Version}}\n")
}

// initializeGlobalState sets up the config directories and debug logging.
func initializeGlobalState() {
	if err := config.EnsureDirs(); err != nil {
		// Non-fatal: parsing still works, only history/logs are lost.
		return
	}
	utils.ConfigureDebug(config.GetLogsDir())
}
