package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestrator/cli/api"
	"orchestrator/cli/watch"
)

type staticFetcher struct {
	status *api.DeploymentStatus
	err    error
}

func (f staticFetcher) FetchStatus(context.Context, string) (*api.DeploymentStatus, error) {
	return f.status, f.err
}

func failedStatus() *api.DeploymentStatus {
	return &api.DeploymentStatus{
		ID:     "8",
		Status: "failed",
		Logs:   []byte(`[{"type":"info","message":"build started"},{"type":"error","message":"build failed"}]`),
		Steps:  []byte(`[{"step_key":"build","status":"failed","order":1},{"step_key":"deploy","status":"pending","order":2}]`),
	}
}

func startPoller(t *testing.T, f watch.StatusFetcher) (*watch.Poller, chan struct{}) {
	t.Helper()
	changed := make(chan struct{}, 1)
	p := watch.New("8", f, watch.WithInterval(time.Hour), watch.WithObserver(func(watch.View) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))
	t.Cleanup(p.Close)
	require.NoError(t, p.Start())
	return p, changed
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestWatchModelKeys(t *testing.T) {
	p, changed := startPoller(t, staticFetcher{status: failedStatus()})
	require.Eventually(t, func() bool { return p.View().Loaded }, time.Second, time.Millisecond)

	var m tea.Model = newWatchModel(p, nil, changed, watch.LevelAll)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m, _ = m.Update(viewChanged{})

	wm := m.(watchModel)
	assert.Equal(t, "failed", wm.view.Run.Status)
	assert.Contains(t, wm.View(), "R resume")
	assert.Contains(t, wm.View(), "showing 2 of 2 lines")

	m, _ = m.Update(key("f"))
	assert.Equal(t, watch.LevelInfo, m.(watchModel).level)
	m, _ = m.Update(key("f"))
	m, _ = m.Update(key("f"))
	assert.Equal(t, watch.LevelError, m.(watchModel).level)
	assert.Contains(t, m.View(), "showing 1 of 2 lines")

	m, _ = m.Update(key("p"))
	assert.Equal(t, watch.StatePaused, p.State())
	assert.Contains(t, m.View(), "PAUSED")
	m, _ = m.Update(key("s"))
	assert.Equal(t, watch.StateManual, p.State())
	assert.Contains(t, m.View(), "MANUAL")

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestWatchModelQuitsOnUnauthorized(t *testing.T) {
	p, changed := startPoller(t, staticFetcher{err: &api.Error{StatusCode: 401, Message: "expired"}})
	require.Eventually(t, func() bool { return p.View().Err != nil }, time.Second, time.Millisecond)

	var m tea.Model = newWatchModel(p, nil, changed, watch.LevelAll)
	m, cmd := m.Update(viewChanged{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, api.IsUnauthorized(m.(watchModel).fatal))
}

func TestWatchModelNoticeExpires(t *testing.T) {
	p, changed := startPoller(t, staticFetcher{status: failedStatus()})
	var m tea.Model = newWatchModel(p, nil, changed, watch.LevelAll)

	m, _ = m.Update(resumeDone{notice: watch.Notice{Level: watch.NoticeSuccess, Text: "Deployment is now being resumed"}})
	assert.Contains(t, m.View(), "Deployment is now being resumed")

	m, _ = m.Update(noticeExpired{seq: 0})
	assert.Contains(t, m.View(), "Deployment is now being resumed", "stale expiry is ignored")
	m, _ = m.Update(noticeExpired{seq: 1})
	assert.NotContains(t, m.View(), "Deployment is now being resumed")
}

func TestPlainWatchStopsWhenSettled(t *testing.T) {
	p, changed := startPoller(t, staticFetcher{status: failedStatus()})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, runPlainWatch(ctx, p, changed, watch.LevelError))
	assert.NoError(t, ctx.Err(), "returned before the deadline")
}

func TestPlainWatchUnauthorized(t *testing.T) {
	p, changed := startPoller(t, staticFetcher{err: &api.Error{StatusCode: 401}})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := runPlainWatch(ctx, p, changed, watch.LevelAll)
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
}

func TestDescribe(t *testing.T) {
	assert.Contains(t, describe(&api.Error{StatusCode: 401}).Error(), "orch login")
	assert.Contains(t, describe(&api.Error{StatusCode: 404}).Error(), "deployment not found")
	plain := errors.New("x")
	assert.Equal(t, plain, describe(plain))
}

func TestRenderSteps(t *testing.T) {
	out := renderSteps([]watch.Step{
		{Name: "build", Status: watch.StepSuccess, EndedAt: "10:00"},
		{Name: "test", Status: watch.StepFailed, Message: "exit 1"},
		{Name: "deploy", Status: watch.StepRunning, Message: "rolling out 2/3"},
		{Name: "notify", Status: "queued"},
	}, "")
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "✓")
	assert.Contains(t, lines[1], "exit 1")
	assert.Contains(t, lines[2], "running")
	assert.Contains(t, lines[2], "rolling out 2/3")
	assert.Contains(t, lines[3], "waiting")

	assert.Contains(t, renderSteps(nil, ""), "No step data available.")
}

func TestWatchModelFitsStepsIntoWindow(t *testing.T) {
	p, changed := startPoller(t, staticFetcher{status: failedStatus()})
	require.Eventually(t, func() bool { return p.View().Loaded }, time.Second, time.Millisecond)

	m := newWatchModel(p, nil, changed, watch.LevelAll)
	m.view = watch.View{}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	before := next.(watchModel).viewport.Height

	next, _ = next.Update(viewChanged{})
	wm := next.(watchModel)
	require.Len(t, wm.view.Steps, 2)
	assert.Equal(t, before-2, wm.viewport.Height)
	assert.Equal(t, 40-wm.chromeHeight(), wm.viewport.Height)
}

func TestWatchModelShowsInterval(t *testing.T) {
	p, changed := startPoller(t, staticFetcher{status: failedStatus()})
	m := newWatchModel(p, nil, changed, watch.LevelAll)
	m.view.State = watch.StateStreaming
	assert.Contains(t, m.View(), "STREAMING 1h0m0s")
}

func TestPlainWatchManualReturnsAfterFirstSnapshot(t *testing.T) {
	running := failedStatus()
	running.Status = "running"

	changed := make(chan struct{}, 1)
	p := watch.New("8", staticFetcher{status: running}, watch.WithManual(true), watch.WithObserver(func(watch.View) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))
	t.Cleanup(p.Close)
	require.NoError(t, p.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, runPlainWatch(ctx, p, changed, watch.LevelAll))
	assert.NoError(t, ctx.Err(), "returned before the deadline")
	assert.True(t, p.View().Loaded)
}

func TestPlainWatchManualReturnsFetchError(t *testing.T) {
	changed := make(chan struct{}, 1)
	p := watch.New("8", staticFetcher{err: errors.New("connection refused")}, watch.WithManual(true), watch.WithObserver(func(watch.View) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))
	t.Cleanup(p.Close)
	require.NoError(t, p.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := runPlainWatch(ctx, p, changed, watch.LevelAll)
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, ctx.Err())
}
