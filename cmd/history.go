package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/uvmon/uvmon/internal/history"
	"github.com/uvmon/uvmon/internal/utils"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded runs, or show one run's downloads",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rm, _ := cmd.Flags().GetString("delete"); rm != "" {
			if err := history.DeleteRun(rm); err != nil {
				return err
			}
			fmt.Printf("deleted run %s\n", rm)
			return nil
		}

		if len(args) == 1 {
			return showRun(args[0])
		}
		return listRuns()
	},
}

func init() {
	historyCmd.Flags().String("delete", "", "Delete the run with the given id")
}

func listRuns() error {
	runs, err := history.LoadRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	for _, r := range runs {
		when := time.Unix(r.RecordedAt, 0).Format("2006-01-02 15:04")
		fmt.Printf("%s  %s  %-12s %3d packages, %d downloads",
			r.ID[:8], when, r.FinalPhase, r.TotalPackages, r.DownloadCount)
		if r.Error != "" {
			fmt.Printf("  (%s)", r.Error)
		}
		fmt.Println()
	}
	return nil
}

func showRun(prefix string) error {
	runs, err := history.LoadRuns()
	if err != nil {
		return err
	}

	var id string
	for _, r := range runs {
		if r.ID == prefix || (len(prefix) >= 8 && len(r.ID) >= len(prefix) && r.ID[:len(prefix)] == prefix) {
			id = r.ID
			break
		}
	}
	if id == "" {
		return fmt.Errorf("run not found: %s", prefix)
	}

	downloads, err := history.LoadDownloads(id)
	if err != nil {
		return err
	}

	for _, d := range downloads {
		fmt.Printf("%-24s %-10s %8s  %6d frames  %6dms  %.1f Mbps  %s\n",
			d.Package, d.Version,
			utils.ConvertBytesToHumanReadable(d.TotalSize),
			d.Frames, d.DurationMS, d.SpeedMbps, d.Status)
	}
	return nil
}
