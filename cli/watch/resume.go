package watch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"orchestrator/cli/api"
	"orchestrator/cli/logger"
)

// Resumer sends the resume command for a failed deployment.
type Resumer interface {
	ResumeDeployment(ctx context.Context, deploymentID string) error
}

// Refresher re-enters the status fetch path.
type Refresher interface {
	Refresh() error
}

type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeError
)

// Notice is a transient message for the user (a toast).
type Notice struct {
	Level NoticeLevel
	Text  string
}

// Gateway issues the out-of-band resume action and, on success, triggers an
// immediate re-fetch. It never touches the snapshot itself.
type Gateway struct {
	resumer   Resumer
	refresher Refresher
	log       *zap.Logger
}

// NewGateway builds a Gateway. refresher may be nil for one-shot use.
func NewGateway(resumer Resumer, refresher Refresher, log *zap.Logger) *Gateway {
	return &Gateway{resumer: resumer, refresher: refresher, log: logger.OrNop(log)}
}

// Resume asks the backend to resume run. Only a failed run is sent; any other
// status yields an informational notice without a request.
func (g *Gateway) Resume(ctx context.Context, run Run) (Notice, error) {
	if run.ID == "" {
		err := &ActionError{Message: "deployment id not found", Err: errors.New("missing deployment id")}
		return Notice{Level: NoticeError, Text: err.Message}, err
	}
	if !run.Failed() {
		status := run.Status
		if status == "" {
			status = "unknown"
		}
		return Notice{
			Level: NoticeInfo,
			Text:  fmt.Sprintf("Deployment #%s is %s; only failed deployments can be resumed", run.ID, status),
		}, nil
	}

	if err := g.resumer.ResumeDeployment(ctx, run.ID); err != nil {
		msg := actionMessage(err)
		g.log.Warn("resume rejected", zap.String("deployment", run.ID), zap.Error(err))
		aerr := &ActionError{DeploymentID: run.ID, Message: msg, Err: err}
		return Notice{Level: NoticeError, Text: msg}, aerr
	}

	g.log.Info("resume accepted", zap.String("deployment", run.ID))
	if g.refresher != nil {
		if err := g.refresher.Refresh(); err != nil {
			g.log.Debug("refresh after resume skipped", zap.Error(err))
		}
	}
	return Notice{Level: NoticeSuccess, Text: "Deployment is now being resumed"}, nil
}

func actionMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "error occurred"
}
