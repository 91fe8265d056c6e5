package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uvmon/uvmon/internal/config"
	"github.com/uvmon/uvmon/internal/history"
	"github.com/uvmon/uvmon/internal/parser"
	"github.com/uvmon/uvmon/internal/timeline"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [logfile]",
	Short: "Analyze the parallel-download timeline of a uv debug log",
	Long: `Analyze replays a complete uv pip install debug log and reports
how the package downloads actually ran: per-package timing, data-frame
counts, transfer speeds, overlap between concurrent transfers, and the
peak download concurrency.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		}

		in, source, err := openInput(path)
		if err != nil {
			return err
		}
		defer in.Close()

		settings, err := config.LoadSettings()
		if err != nil {
			return err
		}

		p := parser.New(settings)
		if err := eachLine(in, func(line string) { p.ParseLine(line) }); err != nil {
			return err
		}

		report := timeline.Build(p.AllDownloads())
		fmt.Print(report.Render())

		noSave, _ := cmd.Flags().GetBool("no-save")
		if !noSave && settings.History.Enabled {
			if id, err := history.SaveRun(source, p.OverallState(), p.AllDownloads(), report); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to save run: %v\n", err)
			} else {
				fmt.Printf("\nrun saved: %s\n", id)
			}
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Bool("no-save", false, "Do not record this run in history")
}
