// Package devserver is an in-memory deployment backend for local work on the
// watch view. It serves the same endpoints as the real service and steps its
// deployments through a fixed pipeline.
package devserver

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("deployment not found")
	ErrNotFailed = errors.New("only failed deployments can be resumed")
)

// Pipeline is the ordered step list every simulated deployment runs.
var Pipeline = []string{"clone", "build", "test", "migrate", "deploy"}

type Event struct {
	TS      time.Time `json:"ts"`
	Type    string    `json:"type"`
	Message string    `json:"message"`
}

type Step struct {
	Key     string     `json:"step_key"`
	Status  string     `json:"status"`
	Order   int        `json:"order"`
	EndedAt *time.Time `json:"ended_at"`
	Message string     `json:"message"`
}

type Deployment struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Tenant    string    `json:"tenant"`
	Project   string    `json:"project"`
	CreatedAt time.Time `json:"created_at"`
	Logs      []Event   `json:"logs"`
	Steps     []Step    `json:"steps"`
}

// Store holds simulated deployments. All methods return copies.
type Store struct {
	mu    sync.Mutex
	now   func() time.Time
	deps  map[string]*Deployment
	order []string
}

func NewStore() *Store {
	return &Store{now: time.Now, deps: make(map[string]*Deployment)}
}

// Create adds a pending deployment for tenant/project.
func (s *Store) Create(tenant, project string) Deployment {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	d := &Deployment{
		ID:        uuid.NewString(),
		Status:    "pending",
		Tenant:    tenant,
		Project:   project,
		CreatedAt: now,
		Logs:      []Event{{TS: now, Type: "info", Message: fmt.Sprintf("deployment queued for %s/%s", tenant, project)}},
	}
	for i, key := range Pipeline {
		d.Steps = append(d.Steps, Step{Key: key, Status: "pending", Order: i + 1})
	}
	s.deps[d.ID] = d
	s.order = append(s.order, d.ID)
	return clone(d)
}

// Get returns one deployment.
func (s *Store) Get(id string) (Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deps[id]
	if !ok {
		return Deployment{}, ErrNotFound
	}
	return clone(d), nil
}

// List returns deployments newest first, at most limit when limit > 0.
func (s *Store) List(limit int) []Deployment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Deployment, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		d := clone(s.deps[s.order[i]])
		d.Logs, d.Steps = nil, nil
		out = append(out, d)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Advance moves a deployment one step forward: the running step finishes and
// the next one starts. It reports whether anything changed.
func (s *Store) Advance(id string) (Deployment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deps[id]
	if !ok {
		return Deployment{}, false, ErrNotFound
	}
	if d.Status != "pending" && d.Status != "running" {
		return clone(d), false, nil
	}

	now := s.now().UTC()
	if cur := running(d); cur != nil {
		cur.Status = "success"
		cur.EndedAt = &now
		cur.Message = "completed"
		d.Logs = append(d.Logs, Event{TS: now, Type: "success", Message: cur.Key + " completed"})
	}
	next := firstPending(d)
	if next == nil {
		d.Status = "succeeded"
		d.Logs = append(d.Logs, Event{TS: now, Type: "success", Message: "deployment finished"})
		return clone(d), true, nil
	}
	d.Status = "running"
	next.Status = "running"
	d.Logs = append(d.Logs, Event{TS: now, Type: "info", Message: next.Key + " started"})
	return clone(d), true, nil
}

// Fail marks the running step and the deployment failed.
func (s *Store) Fail(id, reason string) (Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deps[id]
	if !ok {
		return Deployment{}, ErrNotFound
	}
	now := s.now().UTC()
	if cur := running(d); cur != nil {
		cur.Status = "failed"
		cur.EndedAt = &now
		cur.Message = reason
		d.Logs = append(d.Logs, Event{TS: now, Type: "error", Message: cur.Key + " failed: " + reason})
	} else {
		d.Logs = append(d.Logs, Event{TS: now, Type: "error", Message: reason})
	}
	d.Status = "failed"
	return clone(d), nil
}

// Resume restarts a failed deployment from its failed step.
func (s *Store) Resume(id string) (Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deps[id]
	if !ok {
		return Deployment{}, ErrNotFound
	}
	if d.Status != "failed" {
		return clone(d), ErrNotFailed
	}
	now := s.now().UTC()
	for i := range d.Steps {
		if d.Steps[i].Status == "failed" {
			d.Steps[i].Status = "running"
			d.Steps[i].EndedAt = nil
			d.Steps[i].Message = ""
			break
		}
	}
	d.Status = "running"
	d.Logs = append(d.Logs, Event{TS: now, Type: "info", Message: "deployment resumed"})
	return clone(d), nil
}

// Active lists deployments still moving through the pipeline.
func (s *Store) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, id := range s.order {
		if st := s.deps[id].Status; st == "pending" || st == "running" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func running(d *Deployment) *Step {
	for i := range d.Steps {
		if d.Steps[i].Status == "running" {
			return &d.Steps[i]
		}
	}
	return nil
}

func firstPending(d *Deployment) *Step {
	for i := range d.Steps {
		if d.Steps[i].Status == "pending" {
			return &d.Steps[i]
		}
	}
	return nil
}

func clone(d *Deployment) Deployment {
	c := *d
	c.Logs = append([]Event(nil), d.Logs...)
	c.Steps = append([]Step(nil), d.Steps...)
	return c
}
