package watch

import (
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/atotto/clipboard"
)

// LogText joins lines with newlines, the body of a log download.
func LogText(lines []string) string {
	return strings.Join(lines, "\n")
}

// LogFileName is the default download name for a deployment's log.
func LogFileName(deploymentID string) string {
	if deploymentID == "" {
		deploymentID = "logs"
	}
	return fmt.Sprintf("deployment-%s.log", deploymentID)
}

// WriteLogFile writes the log text to path.
func WriteLogFile(path string, lines []string) error {
	if err := os.WriteFile(path, []byte(LogText(lines)), 0644); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// LogHTML renders the log as a standalone page with escaped <pre> content.
func LogHTML(deploymentID string, lines []string) string {
	escaped := make([]string, len(lines))
	for i, l := range lines {
		escaped[i] = html.EscapeString(l)
	}
	title := html.EscapeString(fmt.Sprintf("deployment-%s-logs", deploymentID))
	return "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>" + title +
		"</title></head><body><pre>" + strings.Join(escaped, "\n") + "</pre></body></html>\n"
}

// clipboardWrite is swapped in tests.
var clipboardWrite = clipboard.WriteAll

// CopyLog places the log text on the system clipboard.
func CopyLog(lines []string) error {
	if err := clipboardWrite(LogText(lines)); err != nil {
		return fmt.Errorf("copy log: %w", err)
	}
	return nil
}
