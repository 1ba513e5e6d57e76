package style

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Primary = lipgloss.Color("#2563EB")
	Green   = lipgloss.Color("#10B981")
	Red     = lipgloss.Color("#EF4444")
	Yellow  = lipgloss.Color("#F59E0B")
	Sky     = lipgloss.Color("#7DD3FC")
	Slate   = lipgloss.Color("#E2E8F0")
	Dim     = lipgloss.Color("#6B7280")
	White   = lipgloss.Color("#F9FAFB")
	Border  = lipgloss.Color("#374151")

	Banner = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Subtitle = lipgloss.NewStyle().
			Foreground(Dim).
			Italic(true)

	Bold    = lipgloss.NewStyle().Bold(true).Foreground(White)
	DimText = lipgloss.NewStyle().Foreground(Dim)

	Key = lipgloss.NewStyle().Foreground(Dim).Width(12)
	Val = lipgloss.NewStyle().Foreground(White)

	// Step icons and labels
	StepPending = DimText
	StepRunning = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	StepDone    = lipgloss.NewStyle().Foreground(Green)
	StepFailed  = lipgloss.NewStyle().Foreground(Red).Bold(true)

	// Log line colouring
	LogError   = lipgloss.NewStyle().Foreground(Red)
	LogSuccess = lipgloss.NewStyle().Foreground(Green)
	LogInfo    = lipgloss.NewStyle().Foreground(Sky)
	LogWarning = lipgloss.NewStyle().Foreground(Yellow)
	LogPlain   = lipgloss.NewStyle().Foreground(Slate)

	Badge = lipgloss.NewStyle().
		Padding(0, 1).
		Bold(true)

	BadgeStreaming = Badge.Foreground(lipgloss.Color("#065F46")).Background(lipgloss.Color("#D1FAE5"))
	BadgePaused    = Badge.Foreground(lipgloss.Color("#92400E")).Background(lipgloss.Color("#FEF3C7"))
	BadgeManual    = Badge.Foreground(White).Background(Border)

	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)

	TableHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			BorderBottom(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(Dim)

	ErrorBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Red).
			Foreground(Red).
			Padding(0, 1)

	SuccessBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Green).
			Foreground(Green).
			Padding(0, 1)

	Toast      = lipgloss.NewStyle().Foreground(Green).Bold(true)
	ToastError = lipgloss.NewStyle().Foreground(Red).Bold(true)
)

// RunStatus picks the label style for a deployment lifecycle status.
func RunStatus(status string) lipgloss.Style {
	switch status {
	case "succeeded":
		return StepDone
	case "failed":
		return StepFailed
	case "running":
		return StepRunning
	default:
		return DimText
	}
}
