// Package watch follows one deployment run: it polls the status endpoint,
// turns the raw event log and step list into renderable lines and progress,
// and carries the interactive controls of the deployment view.
package watch

// Run is the most recently applied lifecycle view of a deployment.
type Run struct {
	ID     string
	Status string // pending | running | succeeded | failed, as reported
}

// Failed reports whether the run can be resumed.
func (r Run) Failed() bool { return r.Status == "failed" }

// StepStatus is the backend's step state. Unknown values are kept verbatim
// and render as pending.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Finished reports whether the step counts toward progress.
func (s StepStatus) Finished() bool {
	return s == StepSuccess || s == StepFailed || s == StepSkipped
}

// Icon is the display state of a step marker.
type Icon int

const (
	IconPending Icon = iota
	IconRunning
	IconDone
	IconFailed
)

func (s StepStatus) Icon() Icon {
	switch s {
	case StepSuccess:
		return IconDone
	case StepFailed, StepSkipped:
		return IconFailed
	case StepRunning:
		return IconRunning
	default:
		return IconPending
	}
}

// Step is the view-model of one unit of deployment work.
type Step struct {
	Key     string
	Name    string
	Status  StepStatus
	Order   int
	EndedAt string // rendered; "-" when the step has not left running
	Message string
}

func (s Step) Icon() Icon { return s.Status.Icon() }

// Snapshot is one normalized view of a deployment status response.
type Snapshot struct {
	Run     Run
	Lines   []string
	Steps   []Step
	Percent int
}

// Progress returns round(100 * finished / total), or 0 for an empty list.
func Progress(steps []Step) int {
	total := len(steps)
	if total == 0 {
		return 0
	}
	done := 0
	for _, s := range steps {
		if s.Status.Finished() {
			done++
		}
	}
	// Round half up in integer arithmetic.
	return (200*done + total) / (2 * total)
}
