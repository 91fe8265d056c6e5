package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/uvmon/uvmon/internal/config"
	"github.com/uvmon/uvmon/internal/orchestrator"
)

var runCmd = &cobra.Command{
	Use:   "run <logfile>...",
	Short: "Replay several uv debug logs as one sequenced task list",
	Long: `Run treats each log file as one installation task and replays them
strictly in order through a shared progress pipeline, printing the
combined percentage as it advances. A failing log aborts the sequence
unless --keep-going marks the remaining tasks optional.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.LoadSettings()
		if err != nil {
			return err
		}
		keepGoing, _ := cmd.Flags().GetBool("keep-going")

		tasks := make([]orchestrator.Task, 0, len(args))
		for _, path := range args {
			t := orchestrator.NewTask(filepath.Base(path), path,
				func(ctx context.Context, rep *orchestrator.Reporter) error {
					in, _, err := openInput(path)
					if err != nil {
						return err
					}
					defer in.Close()
					return eachLine(in, rep.Line)
				})
			t.Optional = keepGoing
			tasks = append(tasks, t)
		}

		o := orchestrator.New(settings, tasks)
		lastPct := -1
		o.OnChange(func(st orchestrator.Status) {
			if st.OverallPercent == lastPct {
				return
			}
			lastPct = st.OverallPercent
			msg := ""
			if st.LatestEvent != nil {
				msg = st.LatestEvent.Message
			}
			fmt.Printf("[%3d%%] task %d/%d %s  %s\n",
				st.OverallPercent, st.TaskIndex+1, st.TaskCount, st.CurrentTask, msg)
		})

		if err := o.Execute(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("completed %d tasks\n", len(tasks))
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("keep-going", false, "Continue with the remaining logs when one fails")
}
