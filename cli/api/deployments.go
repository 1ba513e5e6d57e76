package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Run lifecycle values reported by the backend.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// ID is an opaque identifier that the backend may encode as a JSON number or
// string. It never fails to decode; unexpected shapes keep their raw text.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	*id = ID(scalarText(b))
	return nil
}

// Text is a string field that tolerates numbers, booleans and null.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	*t = Text(scalarText(b))
	return nil
}

func scalarText(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s
	}
	return string(b)
}

// DeploymentStatus is the body of GET /api/deployments/{id}/logs/. Logs and
// Steps are kept raw; the watch normalizer decodes them element by element so
// one bad record cannot blank the whole view.
type DeploymentStatus struct {
	ID     ID              `json:"id"`
	Status Text            `json:"status"`
	Logs   json.RawMessage `json:"logs"`
	Steps  json.RawMessage `json:"steps"`
}

// Deployment is one row of GET /api/deployments/.
type Deployment struct {
	ID        ID   `json:"id"`
	Status    Text `json:"status"`
	Tenant    Text `json:"tenant"`
	Project   Text `json:"project"`
	CreatedAt Text `json:"created_at"`
}

// FetchStatus reads the current event log, step list and lifecycle status of
// one deployment run. It does not retry.
func (c *Client) FetchStatus(ctx context.Context, deploymentID string) (*DeploymentStatus, error) {
	var s DeploymentStatus
	if err := c.get(ctx, "/api/deployments/"+url.PathEscape(deploymentID)+"/logs/", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ResumeDeployment asks the backend to resume a failed run.
func (c *Client) ResumeDeployment(ctx context.Context, deploymentID string) error {
	return c.post(ctx, "/api/deployments/"+url.PathEscape(deploymentID)+"/resume/", nil, nil)
}

// ListDeployments returns deployment runs, newest first as the backend orders
// them. Both bare arrays and paginated {"results": [...]} bodies are accepted.
func (c *Client) ListDeployments(ctx context.Context, limit int) ([]Deployment, error) {
	path := "/api/deployments/"
	if limit > 0 {
		path += "?page_size=" + strconv.Itoa(limit)
	}
	var raw json.RawMessage
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}

	var list []Deployment
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var page struct {
		Results []Deployment `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decode deployments: %w", err)
	}
	return page.Results, nil
}
