// Package report renders conversion summaries for the terminal
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/mei2perf/pkg/converter"
	"github.com/james-see/mei2perf/pkg/mpm"
	"github.com/james-see/mei2perf/pkg/msm"
)

var (
	accent = lipgloss.Color("#39FF14")
	warn   = lipgloss.Color("#FFFF00")
	silver = lipgloss.Color("#C0C0C0")
	dark   = lipgloss.Color("#333333")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Background(dark).
			Padding(0, 2).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(silver).
			Width(14)

	valueStyle = lipgloss.NewStyle().
			Foreground(accent)

	warnStyle = lipgloss.NewStyle().
			Foreground(warn).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2)
)

// Render summarizes every movement and performance of res, one box per movement
func Render(source string, res *converter.Result) string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" %s ", source)))
	s.WriteString("\n")
	s.WriteString(row("ppq", fmt.Sprint(res.PPQ)))
	s.WriteString(row("movements", fmt.Sprint(len(res.Movements))))

	for i, mv := range res.Movements {
		var perf *mpm.Performance
		if i < len(res.Performances) {
			perf = res.Performances[i]
		}
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(movement(mv, perf)))
	}

	if len(res.Unresolved) > 0 {
		s.WriteString("\n\n")
		s.WriteString(warnStyle.Render(fmt.Sprintf("unresolved references: %s", strings.Join(res.Unresolved, ", "))))
	}
	s.WriteString("\n")
	return s.String()
}

func movement(mv *msm.Movement, perf *mpm.Performance) string {
	var s strings.Builder

	title := mv.Title
	if title == "" {
		title = mv.ID
	}
	s.WriteString(titleStyle.Render(fmt.Sprintf(" %s ", title)))
	s.WriteString("\n")
	s.WriteString(row("id", mv.ID))
	s.WriteString(row("length", fmt.Sprintf("%.0f ticks", mv.Duration())))
	s.WriteString(row("gotos", fmt.Sprint(mv.Global.Sequencing.Len())))
	s.WriteString(row("sections", fmt.Sprint(mv.Global.Sections.Len())))
	s.WriteString(row("markers", fmt.Sprint(mv.Global.Markers.Len())))
	if perf != nil {
		s.WriteString(row("tempo marks", fmt.Sprint(perf.Global.Tempo.Len())))
		s.WriteString(row("dynamics", fmt.Sprint(dynamicsCount(perf))))
	}

	s.WriteString("\n")
	for _, p := range mv.Parts {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("part %d", p.Number)
		}
		s.WriteString(row(name, fmt.Sprintf("ch %d  %d notes  %d rests", p.MidiChannel, len(p.Notes()), len(p.Rests()))))
	}
	return strings.TrimRight(s.String(), "\n")
}

func dynamicsCount(perf *mpm.Performance) int {
	n := 0
	for _, r := range perf.Regions() {
		n += r.Dynamics.Len()
	}
	return n
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value)) + "\n"
}
