// Package ws is the live progress channel: a WebSocket hub keyed by
// user id. Clients authenticate with an initial auth frame; a user may
// hold several sessions and all of them receive every update. Delivery
// is best effort, the persisted submission is the authoritative record.
package ws

import (
	"encoding/json"
	"sync"

	"algojudge/internal/logging"
	"algojudge/internal/metrics"
	"algojudge/pkg/models"

	"go.uber.org/zap"
)

// Hub owns the session registry. The map is the only shared mutable
// state and is guarded by a single mutex; sessions are added on auth and
// removed on disconnect.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string][]*session
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string][]*session)}
}

func (h *Hub) add(s *session) {
	h.mu.Lock()
	h.sessions[s.userID] = append(h.sessions[s.userID], s)
	h.mu.Unlock()
	metrics.WSSessions.Inc()
	logging.L().Debug("ws session registered", zap.String("user_id", s.userID))
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.sessions[s.userID]
	for i, existing := range list {
		if existing == s {
			h.sessions[s.userID] = append(list[:i], list[i+1:]...)
			metrics.WSSessions.Dec()
			break
		}
	}
	if len(h.sessions[s.userID]) == 0 {
		delete(h.sessions, s.userID)
	}
}

// updateFrame is the wire shape of a progress push.
type updateFrame struct {
	Type         string               `json:"type"`
	SubmissionID string               `json:"submissionId"`
	Data         models.ProgressEvent `json:"data"`
}

// SendSubmissionUpdate delivers one progress event to every session the
// user currently holds. Sessions with a full send buffer are skipped;
// slow readers must not stall grading.
func (h *Hub) SendSubmissionUpdate(userID, submissionID string, event models.ProgressEvent) {
	payload, err := json.Marshal(updateFrame{
		Type:         "submission_update",
		SubmissionID: submissionID,
		Data:         event,
	})
	if err != nil {
		logging.L().Error("marshal update frame", zap.Error(err))
		return
	}
	h.SendToUser(userID, payload)
}

// SendToUser fans a raw frame out to the user's sessions.
func (h *Hub) SendToUser(userID string, payload []byte) {
	h.mu.RLock()
	sessions := make([]*session, len(h.sessions[userID]))
	copy(sessions, h.sessions[userID])
	h.mu.RUnlock()

	for _, s := range sessions {
		select {
		case s.send <- payload:
		default:
			metrics.WSDropped.Inc()
			logging.L().Warn("dropping frame for slow ws session",
				zap.String("user_id", userID))
		}
	}
}

// SessionCount reports how many sessions a user currently holds.
func (h *Hub) SessionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}
