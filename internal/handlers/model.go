package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stayml/bookingcast/internal/pipeline"
	"github.com/stayml/bookingcast/internal/platform/logger"
	"github.com/stayml/bookingcast/internal/serving"
	"github.com/stayml/bookingcast/internal/tracking"
)

// ModelHandler exposes the registry and the loaded model over HTTP.
type ModelHandler struct {
	log       *logger.Logger
	store     *tracking.Store
	predictor *serving.Predictor
}

func NewModelHandler(log *logger.Logger, store *tracking.Store, predictor *serving.Predictor) *ModelHandler {
	return &ModelHandler{
		log:       log.With("handler", "Model"),
		store:     store,
		predictor: predictor,
	}
}

// GetModel reports the loaded bundle and the registry's view of it.
func (h *ModelHandler) GetModel(c *gin.Context) {
	resp := gin.H{"model_key": pipeline.ModelKey, "loaded": h.predictor.Loaded()}
	if b := h.predictor.Bundle(); b != nil {
		resp["trained_at"] = b.TrainedAt
		resp["params"] = b.Params
		resp["metrics"] = b.Metrics
		resp["positive_label"] = b.PositiveLabel
		resp["features"] = b.Transformer.FeatureNames()
	}

	active, err := h.store.GetActiveSnapshot(c.Request.Context(), pipeline.ModelKey)
	if err != nil {
		RespondError(c, statusForError(err), err)
		return
	}
	latest, err := h.store.GetLatestSnapshot(c.Request.Context(), pipeline.ModelKey)
	if err != nil {
		RespondError(c, statusForError(err), err)
		return
	}
	if active != nil {
		resp["active_snapshot"] = active
	}
	if latest != nil {
		resp["latest_snapshot"] = latest
	}
	RespondOK(c, resp)
}

// ListRuns returns the most recent experiment runs.
func (h *ModelHandler) ListRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil {
			RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
	}
	runs, err := h.store.ListRecentRuns(c.Request.Context(), limit)
	if err != nil {
		RespondError(c, statusForError(err), err)
		return
	}
	RespondOK(c, gin.H{"runs": runs})
}

// Reload re-reads the artifact from disk, picking up a retrained model.
func (h *ModelHandler) Reload(c *gin.Context) {
	if err := h.predictor.Load(); err != nil {
		RespondError(c, statusForError(err), err)
		return
	}
	h.log.Info("Model reloaded by request")
	RespondOK(c, gin.H{"status": "ok", "model_loaded": true})
}

type promoteRequest struct {
	SnapshotID string `json:"snapshot_id" form:"snapshot_id"`
	Stage      string `json:"stage" form:"stage"`
}

// Promote moves a registry snapshot to staging or production.
func (h *ModelHandler) Promote(c *gin.Context) {
	var req promoteRequest
	if err := c.ShouldBind(&req); err != nil {
		RespondError(c, http.StatusBadRequest, err)
		return
	}
	id, err := uuid.Parse(req.SnapshotID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid snapshot_id %q", req.SnapshotID))
		return
	}
	if err := h.store.Promote(c.Request.Context(), id, req.Stage); err != nil {
		RespondError(c, statusForError(err), err)
		return
	}
	h.log.Info("Snapshot promoted", "snapshot_id", id.String(), "stage", req.Stage)
	RespondOK(c, gin.H{"status": "ok", "snapshot_id": id, "stage": req.Stage})
}
