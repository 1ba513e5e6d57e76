package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
)

// Notice is a server push saying a deployment changed. It carries no data the
// view renders; receivers re-fetch the status instead.
type Notice struct {
	Type         string `json:"type"`
	DeploymentID ID     `json:"deploymentId"`
	Status       Text   `json:"status"`
}

// Subscribe opens the deployment's update channel. The returned channel is
// closed when ctx ends or the connection drops.
func (c *Client) Subscribe(ctx context.Context, deploymentID string) (<-chan Notice, error) {
	wsURL := c.WebSocketURL("/ws/deployments/" + url.PathEscape(deploymentID) + "/")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, c.session.Header())
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	ch := make(chan Notice, 8)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(ch)
		defer conn.Close()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var n Notice
			if err := json.Unmarshal(message, &n); err != nil {
				continue
			}
			if string(n.DeploymentID) != deploymentID {
				continue
			}
			select {
			case ch <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
