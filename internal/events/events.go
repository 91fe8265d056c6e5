// Package events defines the typed messages carried from the parsing
// pipeline to its consumers. There is no listener registry: producers write
// these to an explicit channel, the TUI receives them as bubbletea messages.
package events

import (
	"github.com/uvmon/uvmon/internal/parser"
	"github.com/uvmon/uvmon/internal/progress"
)

// StatusUpdateMsg carries one gated status event plus the snapshots a
// consumer needs to render it without calling back into the parser.
type StatusUpdateMsg struct {
	Event     parser.StatusEvent
	State     parser.OverallState
	Downloads []progress.Snapshot
}

// InstallCompleteMsg signals that the installed phase was reached.
type InstallCompleteMsg struct {
	State parser.OverallState
}

// InstallErrorMsg signals that an error line terminated the run.
type InstallErrorMsg struct {
	Text  string
	State parser.OverallState
}

// SourceClosedMsg signals that the input source reached EOF or failed.
type SourceClosedMsg struct {
	Err error
}
