package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestrator/cli/session"
)

func newMockServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithSession(session.FromToken("tok-123")))
}

func TestFetchStatus(t *testing.T) {
	c := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/deployments/42/logs/", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		io.WriteString(w, `{"id": 42, "status": "failed", "logs": [{"type":"error"}], "steps": null}`)
	})

	s, err := c.FetchStatus(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, ID("42"), s.ID)
	assert.Equal(t, Text("failed"), s.Status)
	assert.JSONEq(t, `[{"type":"error"}]`, string(s.Logs))
}

func TestFetchStatusLenientScalars(t *testing.T) {
	c := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id": "abc", "status": null}`)
	})
	s, err := c.FetchStatus(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, ID("abc"), s.ID)
	assert.Equal(t, Text(""), s.Status)

	var d Deployment
	require.NoError(t, json.Unmarshal([]byte(`{"id": 7, "status": true, "tenant": {"x": 1}}`), &d))
	assert.Equal(t, ID("7"), d.ID)
	assert.Equal(t, Text("true"), d.Status)
	assert.Equal(t, Text(`{"x": 1}`), d.Tenant)
}

func TestFetchStatusEscapesID(t *testing.T) {
	c := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/deployments/a%2Fb/logs/", r.URL.EscapedPath())
		io.WriteString(w, `{}`)
	})
	_, err := c.FetchStatus(context.Background(), "a/b")
	require.NoError(t, err)
}

func TestErrors(t *testing.T) {
	cases := []struct {
		name   string
		code   int
		body   string
		want   string
		unauth bool
		nf     bool
	}{
		{"detail", 401, `{"detail": "given token not valid"}`, "given token not valid", true, false},
		{"error string", 404, `{"error": "no such deployment"}`, "no such deployment", false, true},
		{"error object", 500, `{"error": {"message": "boom"}}`, "boom", false, false},
		{"plain text", 502, "bad gateway\n", "bad gateway", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.code)
				io.WriteString(w, tc.body)
			})
			_, err := c.FetchStatus(context.Background(), "1")
			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.code, apiErr.StatusCode)
			assert.Equal(t, tc.want, apiErr.Message)
			assert.Equal(t, tc.unauth, IsUnauthorized(err))
			assert.Equal(t, tc.nf, IsNotFound(err))
		})
	}
}

func TestRequestFailed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	_, err := New(srv.URL).FetchStatus(context.Background(), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
	assert.False(t, IsUnauthorized(err))
}

func TestNoSessionSendsNoAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()
	_, err := New(srv.URL).FetchStatus(context.Background(), "1")
	require.NoError(t, err)
}

func TestResumeDeployment(t *testing.T) {
	called := false
	c := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/deployments/9/resume/", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `{"detail": "ok"}`)
	})
	require.NoError(t, c.ResumeDeployment(context.Background(), "9"))
	assert.True(t, called)
}

func TestListDeployments(t *testing.T) {
	bodies := map[string]string{
		"bare":      `[{"id": 1, "status": "running"}, {"id": 2, "status": "failed"}]`,
		"paginated": `{"count": 2, "results": [{"id": 1, "status": "running"}, {"id": 2, "status": "failed"}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/deployments/", r.URL.Path)
				assert.Equal(t, "5", r.URL.Query().Get("page_size"))
				io.WriteString(w, body)
			})
			list, err := c.ListDeployments(context.Background(), 5)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, ID("2"), list[1].ID)
			assert.Equal(t, Text("failed"), list[1].Status)
		})
	}

	c := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `"nope"`)
	})
	_, err := c.ListDeployments(context.Background(), 0)
	assert.ErrorContains(t, err, "decode deployments")
}

func TestWebSocketURL(t *testing.T) {
	assert.Equal(t, "ws://h:8000/ws/x/", New("http://h:8000/").WebSocketURL("/ws/x/"))
	assert.Equal(t, "wss://h/ws/x/", New("https://h").WebSocketURL("/ws/x/"))
}

func TestWithTimeout(t *testing.T) {
	c := New("http://h", WithTimeout(3*time.Second))
	assert.Equal(t, 3*time.Second, c.HTTPClient.Timeout)
	custom := &http.Client{}
	assert.Same(t, custom, New("http://h", WithHTTPClient(custom)).HTTPClient)
}

func TestSubscribeFiltersByDeployment(t *testing.T) {
	upgrader := websocket.Upgrader{}
	c := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/deployments/7/", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"deployment.updated","deploymentId":8,"status":"running"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"deployment.updated","deploymentId":7,"status":"failed"}`))
		conn.ReadMessage()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := c.Subscribe(ctx, "7")
	require.NoError(t, err)

	select {
	case n := <-ch:
		assert.Equal(t, ID("7"), n.DeploymentID)
		assert.Equal(t, Text("failed"), n.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no notice")
	}
	cancel()
	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}
