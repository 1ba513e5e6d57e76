package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"orchestrator/cli/style"
	"orchestrator/cli/watch"
)

func padRight(s string, n int) string {
	if lipgloss.Width(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-lipgloss.Width(s))
}

// renderLine colours a log line by its class.
func renderLine(line string) string {
	switch watch.Classify(line) {
	case watch.ClassError:
		return style.LogError.Render(line)
	case watch.ClassSuccess:
		return style.LogSuccess.Render(line)
	case watch.ClassInfo:
		return style.LogInfo.Render(line)
	case watch.ClassWarning:
		return style.LogWarning.Render(line)
	}
	return style.LogPlain.Render(line)
}

func renderLines(lines []string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = renderLine(l)
	}
	return strings.Join(out, "\n")
}

// renderSteps lists steps with their markers. spin replaces the running
// marker when animated.
func renderSteps(steps []watch.Step, spin string) string {
	if len(steps) == 0 {
		return style.DimText.Render("  No step data available.")
	}
	var b strings.Builder
	for _, st := range steps {
		name := padRight(st.Name, 16)
		var line string
		switch st.Icon() {
		case watch.IconDone:
			line = fmt.Sprintf("  %s %s %s", style.StepDone.Render("✓"), style.StepDone.Render(name), style.DimText.Render(st.EndedAt))
		case watch.IconFailed:
			line = fmt.Sprintf("  %s %s %s", style.StepFailed.Render("✗"), style.StepFailed.Render(name), style.DimText.Render(st.EndedAt))
		case watch.IconRunning:
			marker := spin
			if marker == "" {
				marker = style.StepRunning.Render("●")
			}
			line = fmt.Sprintf("  %s %s %s", marker, style.StepRunning.Render(name), style.StepRunning.Render("running"))
		default:
			line = fmt.Sprintf("  %s %s %s", style.StepPending.Render("◷"), style.StepPending.Render(name), style.StepPending.Render("waiting"))
		}
		if st.Message != "" {
			msgStyle := style.DimText
			if st.Icon() == watch.IconFailed {
				msgStyle = style.LogError
			}
			line += "  " + msgStyle.Render(st.Message)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func newProgressBar(width int) progress.Model {
	bar := progress.New(progress.WithGradient(string(style.Primary), string(style.Green)))
	if width > 0 {
		bar.Width = width
	}
	return bar
}

// renderHeader is the deployment title line shared by status and watch.
func renderHeader(run watch.Run) string {
	status := run.Status
	if status == "" {
		status = "unknown"
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		style.Banner.Render("⚡ DEPLOYMENT"),
		"  ",
		style.Bold.Render("#"+run.ID),
		"  ",
		style.RunStatus(run.Status).Render(status),
	)
}
