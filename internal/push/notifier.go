// Package push carries progress events from the worker to the processes
// holding WebSocket sessions. In split deployments the worker POSTs to
// each server's internal push route; in single-process mode events go
// straight to the local hub.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"algojudge/internal/logging"
	"algojudge/internal/metrics"
	"algojudge/internal/ws"
	"algojudge/pkg/models"

	"go.uber.org/zap"
)

// Publisher delivers one progress event to a user's live sessions.
type Publisher interface {
	Publish(ctx context.Context, userID, submissionID string, event models.ProgressEvent) error
}

// Envelope is the body of an internal push request.
type Envelope struct {
	UserID       string               `json:"userId"`
	SubmissionID string               `json:"submissionId"`
	Data         models.ProgressEvent `json:"data"`
}

// Notifier broadcasts events to a statically configured set of server
// endpoints over HTTP.
type Notifier struct {
	endpoints []string
	http      *http.Client
}

func NewNotifier(endpoints []string) *Notifier {
	return &Notifier{
		endpoints: endpoints,
		http:      &http.Client{Timeout: 5 * time.Second},
	}
}

// Publish POSTs the event to every endpoint. Delivery is best effort;
// per-endpoint failures are logged and counted, never returned, because
// the persisted submission remains the source of truth.
func (n *Notifier) Publish(ctx context.Context, userID, submissionID string, event models.ProgressEvent) error {
	body, err := json.Marshal(Envelope{
		UserID:       userID,
		SubmissionID: submissionID,
		Data:         event,
	})
	if err != nil {
		return fmt.Errorf("marshal push envelope: %w", err)
	}

	for _, endpoint := range n.endpoints {
		url := endpoint + "/internal/push"
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			metrics.PushFailures.Inc()
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.http.Do(req)
		if err != nil {
			metrics.PushFailures.Inc()
			logging.L().Warn("push delivery failed",
				zap.String("endpoint", endpoint), zap.Error(err))
			continue
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			metrics.PushFailures.Inc()
			logging.L().Warn("push endpoint rejected event",
				zap.String("endpoint", endpoint), zap.Int("status", resp.StatusCode))
		}
	}
	return nil
}

// LocalPublisher short-circuits the HTTP hop when the worker runs inside
// the server process.
type LocalPublisher struct {
	Hub *ws.Hub
}

func (p *LocalPublisher) Publish(_ context.Context, userID, submissionID string, event models.ProgressEvent) error {
	p.Hub.SendSubmissionUpdate(userID, submissionID, event)
	return nil
}
