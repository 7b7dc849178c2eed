package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/specd/internal/workflow"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")).
			Bold(true)

	agentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	stepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	badgeBase = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Bold(true).
			Padding(0, 1)
)

// stageColors gives each stage its badge background.
var stageColors = map[workflow.Stage]lipgloss.Color{
	workflow.StageDiscovery: lipgloss.Color("39"),
	workflow.StageScoping:   lipgloss.Color("214"),
	workflow.StageSpec:      lipgloss.Color("171"),
	workflow.StageDone:      lipgloss.Color("46"),
}

// stageBadge renders the stage as a colored label.
func stageBadge(stage workflow.Stage) string {
	color, ok := stageColors[stage]
	if !ok {
		color = lipgloss.Color("245")
	}
	label := string(stage)
	if label == "" {
		label = "connecting"
	}
	return badgeBase.Background(color).Render(label)
}
