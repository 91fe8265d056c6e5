package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/uvmon/uvmon/internal/utils"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	phaseStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	doneStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78"))
	pkgStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("222"))
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("uvmon"))
	b.WriteString("  ")
	b.WriteString(phaseStyle.Render(m.state.CurrentPhase.String()))
	b.WriteString("\n\n")

	if m.state.TotalPackages > 0 {
		fmt.Fprintf(&b, "packages: %d resolved", m.state.ResolvedPackages)
		if m.state.PreparedPackages > 0 {
			fmt.Fprintf(&b, ", %d prepared", m.state.PreparedPackages)
		}
		if m.state.InstalledPackages > 0 {
			fmt.Fprintf(&b, ", %d installed", m.state.InstalledPackages)
		}
		b.WriteString("\n\n")
	}

	for _, d := range m.downloads {
		bar := m.bar(d.Package)
		b.WriteString(pkgStyle.Render(d.Package))
		b.WriteString("\n")
		b.WriteString(bar.ViewAs(d.Percent / 100))
		fmt.Fprintf(&b, "  %s/%s  %s  ETA %s\n",
			utils.ConvertBytesToHumanReadable(d.BytesReceived),
			utils.ConvertBytesToHumanReadable(d.TotalBytes),
			utils.FormatRate(d.Rate),
			utils.FormatETA(d.ETASeconds))
	}
	if len(m.downloads) > 0 {
		b.WriteString("\n")
	}

	for _, line := range m.recent {
		b.WriteString(dimStyle.Render("  " + line))
		b.WriteString("\n")
	}

	switch {
	case m.errText != "":
		b.WriteString("\n")
		b.WriteString(errStyle.Render("error: " + m.errText))
		b.WriteString("\n")
	case m.done:
		b.WriteString("\n")
		b.WriteString(doneStyle.Render("installation complete"))
		b.WriteString("\n")
	case m.sourceClosed:
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("input closed"))
		b.WriteString("\n")
	}

	footer := "q quit · c copy summary"
	if m.flash != "" {
		footer = m.flash + " · " + footer
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(footer))
	b.WriteString("\n")

	return b.String()
}
