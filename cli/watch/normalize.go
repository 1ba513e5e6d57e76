package watch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"orchestrator/cli/api"
)

// DefaultTimeLayout renders event and step timestamps.
const DefaultTimeLayout = "2006-01-02 15:04:05"

// neutralTag replaces a missing event kind.
const neutralTag = "LOG"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Normalizer turns a raw status response into a Snapshot. It does no I/O and
// never fails: records it cannot read are rendered from their raw text and
// reported as warnings.
type Normalizer struct {
	Location *time.Location // nil means time.Local
	Layout   string         // empty means DefaultTimeLayout
}

// Result is a normalized snapshot plus the warnings raised building it.
type Result struct {
	Snapshot
	Warnings []MalformedDataWarning
}

func (n Normalizer) Normalize(s *api.DeploymentStatus) Result {
	var res Result
	if s == nil {
		return res
	}
	res.Run = Run{ID: string(s.ID), Status: strings.ToLower(strings.TrimSpace(string(s.Status)))}

	events := n.array(s.Logs, "logs", &res.Warnings)
	res.Lines = make([]string, 0, len(events))
	for i, raw := range events {
		res.Lines = append(res.Lines, n.line(i, raw, &res.Warnings))
	}

	records := n.array(s.Steps, "steps", &res.Warnings)
	res.Steps = make([]Step, 0, len(records))
	for i, raw := range records {
		res.Steps = append(res.Steps, n.step(i, raw, &res.Warnings))
	}
	sort.SliceStable(res.Steps, func(a, b int) bool {
		return res.Steps[a].Order < res.Steps[b].Order
	})

	res.Percent = Progress(res.Steps)
	return res
}

func (n Normalizer) array(raw json.RawMessage, field string, warn *[]MalformedDataWarning) []json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		*warn = append(*warn, MalformedDataWarning{Field: field, Index: -1, Raw: clip(trimmed), Reason: "not a list"})
		return nil
	}
	return items
}

// line renders one event as "[time] [KIND] message".
func (n Normalizer) line(i int, raw json.RawMessage, warn *[]MalformedDataWarning) string {
	fields, ok := object(raw)
	if !ok {
		*warn = append(*warn, MalformedDataWarning{Field: "logs", Index: i, Raw: clip(raw), Reason: "record is not an object"})
		return fmt.Sprintf("[-] [%s] %s", neutralTag, strings.TrimSpace(string(raw)))
	}

	ts, _ := text(fields, "ts")
	kind, _ := text(fields, "type")
	msg, _ := text(fields, "message")

	tag := strings.ToUpper(strings.TrimSpace(kind))
	if tag == "" {
		tag = neutralTag
	}
	return fmt.Sprintf("[%s] [%s] %s", n.timestamp(ts, "logs.ts", i, warn), tag, msg)
}

func (n Normalizer) step(i int, raw json.RawMessage, warn *[]MalformedDataWarning) Step {
	st := Step{Order: i, EndedAt: "-", Status: StepPending}

	fields, ok := object(raw)
	if !ok {
		*warn = append(*warn, MalformedDataWarning{Field: "steps", Index: i, Raw: clip(raw), Reason: "record is not an object"})
		st.Name = fmt.Sprintf("step %d", i+1)
		return st
	}

	st.Key, _ = text(fields, "step_key")
	st.Name, _ = text(fields, "name")
	if st.Name == "" {
		st.Name = st.Key
	}
	if st.Name == "" {
		st.Name = fmt.Sprintf("step %d", i+1)
	}
	if status, ok := text(fields, "status"); ok && status != "" {
		st.Status = StepStatus(strings.ToLower(strings.TrimSpace(status)))
	}
	if order, ok := text(fields, "order"); ok && order != "" {
		if v, err := strconv.Atoi(strings.TrimSpace(order)); err == nil {
			st.Order = v
		} else {
			*warn = append(*warn, MalformedDataWarning{Field: "steps.order", Index: i, Raw: order, Reason: "not an integer"})
		}
	}
	if ended, ok := text(fields, "ended_at"); ok && ended != "" {
		st.EndedAt = n.timestamp(ended, "steps.ended_at", i, warn)
	}
	st.Message, _ = text(fields, "message")
	return st
}

// timestamp renders a backend instant in the configured zone, falling back
// to the raw value when it does not parse. Values without an offset are read
// as already being in that zone.
func (n Normalizer) timestamp(raw, field string, i int, warn *[]MalformedDataWarning) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "-"
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, n.location()); err == nil {
			return t.In(n.location()).Format(n.layout())
		}
	}
	*warn = append(*warn, MalformedDataWarning{Field: field, Index: i, Raw: raw, Reason: "unparseable timestamp"})
	return raw
}

func (n Normalizer) location() *time.Location {
	if n.Location != nil {
		return n.Location
	}
	return time.Local
}

func (n Normalizer) layout() string {
	if n.Layout != "" {
		return n.Layout
	}
	return DefaultTimeLayout
}

func object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// text reads a scalar field as a string; numbers and booleans keep their
// JSON spelling.
func text(m map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := m[key]
	if !ok {
		return "", false
	}
	var t api.Text
	_ = t.UnmarshalJSON(raw)
	return string(t), true
}

func clip(b []byte) string {
	const limit = 120
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
