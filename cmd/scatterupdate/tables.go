package main

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
	headerStyle = lipgloss.NewStyle().Reverse(true).Padding(0, 2, 0, 2).Align(lipgloss.Center)
	rowStyle    = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
	fadedStyle  = rowStyle.Faint(true)
	failedStyle = rowStyle.Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"})

	reportHeaders    = []string{"Case", "Shape", "Bytes", "Status", "Output"}
	reportAlignments = []lipgloss.Position{lipgloss.Left, lipgloss.Left, lipgloss.Right, lipgloss.Center, lipgloss.Left}
)

// renderReport renders one row per case result, with the failed ones in red.
// Rows alternate between normal and faint, to make long reports easier to follow.
func renderReport(results []caseResult) string {
	table := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers(reportHeaders...).
		StyleFunc(func(row, col int) lipgloss.Style {
			var s lipgloss.Style
			switch {
			case row < 0:
				return headerStyle
			case results[row].failed:
				s = failedStyle
			case row%2 == 1:
				s = fadedStyle
			default:
				s = rowStyle
			}
			return s.Align(reportAlignments[col])
		})
	for _, result := range results {
		table.Row(result.name, result.shape, result.bytes, result.status, result.values)
	}
	return table.Render()
}
