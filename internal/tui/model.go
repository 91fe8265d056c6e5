package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/uvmon/uvmon/internal/parser"
	pkgprogress "github.com/uvmon/uvmon/internal/progress"
	"github.com/uvmon/uvmon/internal/utils"
)

const maxRecentEvents = 8

// Model is the live watch view: current phase, recent gated events, and a
// progress bar per active download. All data arrives as messages from the
// feeding goroutine; the model itself holds no parser state.
type Model struct {
	width  int
	height int

	state       parser.OverallState
	lastMessage string
	recent      []string
	downloads   []pkgprogress.Snapshot

	bars map[string]progress.Model

	done         bool
	errText      string
	sourceClosed bool
	flash        string
}

// InitialModel builds the watch model.
func InitialModel() Model {
	return Model{
		state: parser.OverallState{CurrentPhase: parser.PhaseIdle},
		bars:  make(map[string]progress.Model),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// bar returns the progress bar for a package, creating it on first sight.
func (m *Model) bar(pkg string) progress.Model {
	b, ok := m.bars[pkg]
	if !ok {
		b = progress.New(progress.WithDefaultGradient())
		m.bars[pkg] = b
	}
	return b
}

// summary renders the plain-text status used for clipboard copy.
func (m Model) summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "phase: %s\n", m.state.CurrentPhase)
	fmt.Fprintf(&b, "packages: %d resolved, %d prepared, %d installed\n",
		m.state.ResolvedPackages, m.state.PreparedPackages, m.state.InstalledPackages)
	for _, d := range m.downloads {
		fmt.Fprintf(&b, "%s: %.0f%% of %s at %s\n",
			d.Package, d.Percent,
			utils.ConvertBytesToHumanReadable(d.TotalBytes),
			utils.FormatRate(d.Rate))
	}
	if m.errText != "" {
		fmt.Fprintf(&b, "error: %s\n", m.errText)
	}
	return b.String()
}
