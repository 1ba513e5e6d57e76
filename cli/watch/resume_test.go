package watch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestrator/cli/api"
)

type fakeResumer struct {
	ids []string
	err error
}

func (r *fakeResumer) ResumeDeployment(_ context.Context, id string) error {
	r.ids = append(r.ids, id)
	return r.err
}

type countingRefresher struct{ n int }

func (r *countingRefresher) Refresh() error {
	r.n++
	return nil
}

func TestResumeFailedRunRefreshes(t *testing.T) {
	res := &fakeResumer{}
	ref := &countingRefresher{}
	g := NewGateway(res, ref, nil)

	n, err := g.Resume(context.Background(), Run{ID: "12", Status: "failed"})
	require.NoError(t, err)
	assert.Equal(t, Notice{Level: NoticeSuccess, Text: "Deployment is now being resumed"}, n)
	assert.Equal(t, []string{"12"}, res.ids)
	assert.Equal(t, 1, ref.n)
}

func TestResumeNotFailedIsLocal(t *testing.T) {
	res := &fakeResumer{}
	ref := &countingRefresher{}
	g := NewGateway(res, ref, nil)

	for _, status := range []string{"running", "succeeded", "pending", ""} {
		n, err := g.Resume(context.Background(), Run{ID: "12", Status: status})
		require.NoError(t, err)
		assert.Equal(t, NoticeInfo, n.Level)
		assert.Contains(t, n.Text, "only failed deployments")
	}
	assert.Empty(t, res.ids)
	assert.Zero(t, ref.n)
}

func TestResumeMissingID(t *testing.T) {
	g := NewGateway(&fakeResumer{}, nil, nil)

	n, err := g.Resume(context.Background(), Run{Status: "failed"})
	var ae *ActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "deployment id not found", ae.Message)
	assert.Equal(t, NoticeError, n.Level)
}

func TestResumeRejected(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"api message", &api.Error{StatusCode: 409, Message: "already running"}, "already running"},
		{"transport", errors.New("connection refused"), "connection refused"},
		{"empty", errors.New(""), "error occurred"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ref := &countingRefresher{}
			g := NewGateway(&fakeResumer{err: tc.err}, ref, nil)

			n, err := g.Resume(context.Background(), Run{ID: "3", Status: "failed"})
			var ae *ActionError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, "3", ae.DeploymentID)
			assert.Equal(t, tc.want, ae.Message)
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, Notice{Level: NoticeError, Text: tc.want}, n)
			assert.Zero(t, ref.n, "no refetch after a rejected resume")
		})
	}
}

func TestResumeRefreshesPoller(t *testing.T) {
	clock := newFakeClock()
	f := newFakeFetcher(false)
	p := New("5", f, WithClock(clock), WithManual(true))
	defer p.Close()
	require.NoError(t, p.Start())
	waitCalls(t, f, 1)

	g := NewGateway(&fakeResumer{}, p, nil)
	_, err := g.Resume(context.Background(), Run{ID: "5", Status: "failed"})
	require.NoError(t, err)
	waitCalls(t, f, 2)
}

func TestResumeRunWithoutIDInResponse(t *testing.T) {
	clock := newFakeClock()
	f := newFakeFetcher(true)
	p := New("5", f, WithClock(clock), WithManual(true))
	defer p.Close()
	require.NoError(t, p.Start())
	waitCalls(t, f, 1)
	f.resolve(1, &api.DeploymentStatus{Status: "failed"}, nil)
	waitIdle(t, p)

	res := &fakeResumer{}
	n, err := NewGateway(res, nil, nil).Resume(context.Background(), p.View().Run)
	require.NoError(t, err)
	assert.Equal(t, NoticeSuccess, n.Level)
	assert.Equal(t, []string{"5"}, res.ids)
}
