package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uvmon/uvmon/internal/config"
	"github.com/uvmon/uvmon/internal/gate"
	"github.com/uvmon/uvmon/internal/history"
	"github.com/uvmon/uvmon/internal/parser"
	"github.com/uvmon/uvmon/internal/timeline"
	"github.com/uvmon/uvmon/internal/utils"
)

var parseCmd = &cobra.Command{
	Use:   "parse [logfile]",
	Short: "Replay a uv debug log and print the gated status events",
	Long: `Parse reads a complete uv pip install debug log (a file, or stdin
when no argument is given), runs every line through the parser and the
update gate, and prints the events a UI would have received, followed by
a stage summary.`,
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

		showAll, _ := cmd.Flags().GetBool("all")
		noSave, _ := cmd.Flags().GetBool("no-save")

		p := parser.New(settings)
		g := gate.New(settings.Gate)

		lineNum := 0
		err = eachLine(in, func(line string) {
			lineNum++
			ev := p.ParseLine(line)
			st := p.OverallState()
			forwarded := g.Offer(ev, st)
			if forwarded || (showAll && ev.Phase != parser.PhaseUnknown) {
				fmt.Printf("%6d  %-20s %s\n", lineNum, st.CurrentPhase, ev.Message)
			}
		})
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Print(stageSummary(p))

		if !noSave && settings.History.Enabled {
			report := timeline.Build(p.AllDownloads())
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
	parseCmd.Flags().Bool("all", false, "Print every classified event, not only gated ones")
	parseCmd.Flags().Bool("no-save", false, "Do not record this run in history")
}

// stageSummary renders the phase progression and aggregate counts.
func stageSummary(p *parser.InstallParser) string {
	st := p.OverallState()

	var b strings.Builder
	b.WriteString("Installation stage summary\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")
	fmt.Fprintf(&b, "Stages entered: %d\n", len(st.PhaseHistory))
	fmt.Fprintf(&b, "Packages resolved: %d\n", st.ResolvedPackages)
	fmt.Fprintf(&b, "Packages prepared: %d\n", st.PreparedPackages)
	fmt.Fprintf(&b, "Packages installed: %d\n", st.InstalledPackages)
	if st.Regressions > 0 {
		fmt.Fprintf(&b, "Phase regressions detected: %d\n", st.Regressions)
	}

	b.WriteString("\nStage progression:\n")
	for i, ph := range st.PhaseHistory {
		fmt.Fprintf(&b, "%2d. %s\n", i+1, ph)
	}

	if downloads := p.AllDownloads(); len(downloads) > 0 {
		b.WriteString("\nDownloads:\n")
		for _, d := range downloads {
			fmt.Fprintf(&b, "  %-24s %8s  %s\n", d.Package,
				utils.ConvertBytesToHumanReadable(d.TotalBytes), d.Status)
		}
	}
	return b.String()
}
