package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apimw "github.com/mariachi-loyalty/dispatch/internal/api/middleware"
	"github.com/mariachi-loyalty/dispatch/internal/batch"
	"github.com/mariachi-loyalty/dispatch/internal/domain"
	"github.com/mariachi-loyalty/dispatch/internal/queue"
	"github.com/mariachi-loyalty/dispatch/internal/task"
	"github.com/mariachi-loyalty/dispatch/internal/tasks"
)

// BatchHandler accepts batch requests and exposes their live progress. The
// actual fan-out happens on the notifications queue; submission only
// enqueues one notifications.send_batch task.
type BatchHandler struct {
	broker  *queue.Broker
	tracker *batch.Tracker
	logger  *zap.Logger
}

func NewBatchHandler(broker *queue.Broker, tracker *batch.Tracker, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{broker: broker, tracker: tracker, logger: logger}
}

// Submit handles POST /api/v1/batches: validates the batch, assigns it an
// ID, and enqueues the fan-out task fire-and-forget. Progress is queryable
// immediately via GET /api/v1/batches/{id}.
func (h *BatchHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var b domain.Batch
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := b.Validate(); err != nil {
		mapError(w, err)
		return
	}

	tenantID := apimw.GetTenantID(r.Context())
	batchID := uuid.New().String()

	handle, err := h.broker.Enqueue(task.SendBatch, tasks.BatchPayload{
		BatchID:  batchID,
		TenantID: tenantID,
		Batch:    b,
	}, "")
	if err != nil {
		h.logger.Warn("batch submit failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err))
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"batch_id": batchID,
		"task_id":  handle.TaskID,
		"queue":    handle.Queue,
	})
}

// Progress handles GET /api/v1/batches/{id}
func (h *BatchHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, ok := h.tracker.Progress(id)
	if !ok {
		respondError(w, http.StatusNotFound, "batch not found")
		return
	}
	if result.TenantID != apimw.GetTenantID(r.Context()) {
		respondError(w, http.StatusNotFound, "batch not found")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
