package handler

import (
	"net/http"

	"github.com/mariachi-loyalty/dispatch/internal/queue"
)

// QueuesHandler serves a human-readable JSON queue-depth snapshot. Raw
// Prometheus metrics are available separately at /metrics.
type QueuesHandler struct {
	broker *queue.Broker
}

func NewQueuesHandler(broker *queue.Broker) *QueuesHandler {
	return &QueuesHandler{broker: broker}
}

// Depths handles GET /api/v1/queues
func (h *QueuesHandler) Depths(w http.ResponseWriter, r *http.Request) {
	depths := h.broker.Depths()
	total := 0
	for _, d := range depths {
		total += d
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"queue_depth": depths,
		"total":       total,
	})
}
