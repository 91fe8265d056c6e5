package cmd

import (
	"bufio"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/uvmon/uvmon/internal/config"
	"github.com/uvmon/uvmon/internal/events"
	"github.com/uvmon/uvmon/internal/gate"
	"github.com/uvmon/uvmon/internal/parser"
	"github.com/uvmon/uvmon/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch [logfile]",
	Short: "Watch a uv install live in a terminal UI",
	Long: `Watch tails a uv debug log (or reads stdin) and renders live
progress: current phase, per-package download bars with rate and ETA,
and the stream of gated status events.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		}
		follow, _ := cmd.Flags().GetBool("follow")

		locked, err := AcquireLock()
		if err != nil {
			return err
		}
		if !locked {
			return fmt.Errorf("another uvmon watch session is already running")
		}
		defer ReleaseLock()

		in, _, err := openInput(path)
		if err != nil {
			return err
		}
		defer in.Close()

		settings, err := config.LoadSettings()
		if err != nil {
			return err
		}

		prog := tea.NewProgram(tui.InitialModel(), tea.WithAltScreen())

		go feedProgram(prog, in, settings, follow)

		if _, err := prog.Run(); err != nil {
			return fmt.Errorf("failed to run UI: %w", err)
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().BoolP("follow", "f", false, "Keep reading as the log grows")
}

// feedProgram pumps log lines through the parser and gate, sending every
// forwarded event to the UI as a message.
func feedProgram(prog *tea.Program, in io.Reader, settings *config.Settings, follow bool) {
	p := parser.New(settings)
	g := gate.New(settings.Gate)

	handle := func(line string) {
		ev := p.ParseLine(line)
		st := p.OverallState()
		if !g.Offer(ev, st) {
			return
		}

		prog.Send(events.StatusUpdateMsg{
			Event:     ev,
			State:     st,
			Downloads: p.ActiveDownloads(),
		})
		switch st.CurrentPhase {
		case parser.PhaseInstalled:
			prog.Send(events.InstallCompleteMsg{State: st})
		case parser.PhaseError:
			if d, ok := ev.Detail.(parser.ErrorDetail); ok {
				prog.Send(events.InstallErrorMsg{Text: d.Text, State: st})
			}
		}
	}

	reader := bufio.NewReader(in)
	var partial string
	for {
		chunk, err := reader.ReadString('\n')
		if err == nil {
			handle(partial + chunk[:len(chunk)-1])
			partial = ""
			continue
		}
		if err == io.EOF {
			partial += chunk
			if follow {
				time.Sleep(200 * time.Millisecond)
				continue
			}
			if partial != "" {
				handle(partial)
			}
			prog.Send(events.SourceClosedMsg{})
			return
		}
		prog.Send(events.SourceClosedMsg{Err: err})
		return
	}
}
