package tui

import (
	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/uvmon/uvmon/internal/events"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "c":
			if err := clipboard.WriteAll(m.summary()); err != nil {
				m.flash = "clipboard unavailable"
			} else {
				m.flash = "summary copied"
			}
			return m, nil
		}

	case events.StatusUpdateMsg:
		m.state = msg.State
		m.downloads = msg.Downloads
		if msg.Event.Message != "" {
			m.lastMessage = msg.Event.Message
			m.recent = append(m.recent, msg.Event.Message)
			if len(m.recent) > maxRecentEvents {
				m.recent = m.recent[len(m.recent)-maxRecentEvents:]
			}
		}
		return m, nil

	case events.InstallCompleteMsg:
		m.state = msg.State
		m.done = true
		return m, nil

	case events.InstallErrorMsg:
		m.state = msg.State
		m.errText = msg.Text
		return m, nil

	case events.SourceClosedMsg:
		m.sourceClosed = true
		if m.done || m.errText != "" {
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}
