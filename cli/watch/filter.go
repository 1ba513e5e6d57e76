package watch

import (
	"fmt"
	"strings"
)

// Level selects which log lines the view shows.
type Level string

const (
	LevelAll     Level = "ALL"
	LevelInfo    Level = "INFO"
	LevelSuccess Level = "SUCCESS"
	LevelError   Level = "ERROR"
)

// Levels lists the filter choices in display order.
var Levels = []Level{LevelAll, LevelInfo, LevelSuccess, LevelError}

func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	switch l {
	case "":
		return LevelAll, nil
	case LevelAll, LevelInfo, LevelSuccess, LevelError:
		return l, nil
	}
	return "", fmt.Errorf("unknown log level %q (want all, info, success or error)", s)
}

// Next cycles to the following level, wrapping after ERROR.
func (l Level) Next() Level {
	for i, v := range Levels {
		if v == l {
			return Levels[(i+1)%len(Levels)]
		}
	}
	return LevelAll
}

// Match tests the rendered line, case-insensitively, for the level's markers.
// This is a substring heuristic over the whole line, not a comparison with the
// event kind: a message that itself contains "error:" matches ERROR.
func (l Level) Match(line string) bool {
	if l == LevelAll {
		return true
	}
	s := strings.ToLower(line)
	switch l {
	case LevelInfo:
		return strings.Contains(s, "[info]") || strings.Contains(s, "info:")
	case LevelSuccess:
		return strings.Contains(s, "[success]") || strings.Contains(s, "success:")
	case LevelError:
		return strings.Contains(s, "[error]") ||
			strings.Contains(s, "error:") ||
			strings.Contains(s, "[fail") ||
			strings.Contains(s, "traceback")
	}
	return true
}

// FilterLines returns the lines matching level in their original order. The
// input is never modified.
func FilterLines(lines []string, level Level) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if level.Match(line) {
			out = append(out, line)
		}
	}
	return out
}

// Class is the colouring bucket of a rendered line.
type Class int

const (
	ClassPlain Class = iota
	ClassError
	ClassSuccess
	ClassInfo
	ClassWarning
)

// Classify picks a colour bucket with looser matching than the filter; the
// first matching bucket wins in the order error, success, info, warning.
func Classify(line string) Class {
	s := strings.ToLower(line)
	switch {
	case strings.Contains(s, "error") || strings.Contains(s, "traceback"):
		return ClassError
	case strings.Contains(s, "success"):
		return ClassSuccess
	case strings.Contains(s, "info"):
		return ClassInfo
	case strings.Contains(s, "warn"):
		return ClassWarning
	}
	return ClassPlain
}
