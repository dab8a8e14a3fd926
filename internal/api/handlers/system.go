package handlers

import (
	"net/http"

	"github.com/casafield/leadpipe/internal/api/dto"
	"github.com/hibiken/asynq"
)

type SystemHandler struct {
	inspector *asynq.Inspector
}

func NewSystemHandler(inspector *asynq.Inspector) *SystemHandler {
	return &SystemHandler{inspector: inspector}
}

// QueueStatus is one background queue's depth and failure counts.
type QueueStatus struct {
	Name      string `json:"name"`
	Size      int    `json:"size"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Paused    bool   `json:"paused"`
}

// Queues handles GET /api/v1/system/queues. Audit writes, exports and
// retention sweeps all flow through these queues, so a growing backlog
// here means the compliance trail is falling behind.
func (h *SystemHandler) Queues(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Queue inspection unavailable"})
		return
	}

	names, err := h.inspector.Queues()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list queues"})
		return
	}

	statuses := make([]QueueStatus, 0, len(names))
	for _, name := range names {
		info, err := h.inspector.GetQueueInfo(name)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to inspect queue"})
			return
		}
		statuses = append(statuses, QueueStatus{
			Name:      info.Queue,
			Size:      info.Size,
			Pending:   info.Pending,
			Active:    info.Active,
			Retry:     info.Retry,
			Archived:  info.Archived,
			Processed: info.Processed,
			Failed:    info.Failed,
			Paused:    info.Paused,
		})
	}

	writeJSON(w, http.StatusOK, statuses)
}
