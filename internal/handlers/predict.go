package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stayml/bookingcast/internal/platform/logger"
	"github.com/stayml/bookingcast/internal/serving"
)

// fieldAliases maps request field names onto dataset column names where
// the public API uses a shorter form.
var fieldAliases = map[string]string{
	"room_type": "room_type_reserved",
}

type PredictHandler struct {
	log       *logger.Logger
	predictor *serving.Predictor
}

func NewPredictHandler(log *logger.Logger, predictor *serving.Predictor) *PredictHandler {
	return &PredictHandler{
		log:       log.With("handler", "Predict"),
		predictor: predictor,
	}
}

type predictResponse struct {
	Prediction  int     `json:"prediction"`
	Probability float64 `json:"probability"`
	Label       string  `json:"label,omitempty"`
	Status      string  `json:"status"`
}

// Predict scores one booking record supplied as JSON or form data.
func (h *PredictHandler) Predict(c *gin.Context) {
	if !h.predictor.Loaded() {
		RespondError(c, http.StatusServiceUnavailable, fmt.Errorf("no model is loaded; train one first"))
		return
	}

	rec, err := h.parseRecord(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, err)
		return
	}

	out, err := h.predictor.Predict(rec)
	if err != nil {
		h.log.Warn("Prediction rejected", "error", err)
		RespondError(c, statusForError(err), err)
		return
	}
	RespondOK(c, predictResponse{
		Prediction:  out.Prediction,
		Probability: out.Probability,
		Label:       out.Label,
		Status:      "ok",
	})
}

// parseRecord normalizes the two accepted request encodings into a flat
// string record keyed by dataset column name.
func (h *PredictHandler) parseRecord(c *gin.Context) (map[string]string, error) {
	ct := c.ContentType()
	if strings.Contains(ct, "application/json") {
		return h.parseJSON(c)
	}
	return h.parseForm(c)
}

func (h *PredictHandler) parseJSON(c *gin.Context) (map[string]string, error) {
	dec := json.NewDecoder(c.Request.Body)
	// Preserve numeric literals exactly instead of round-tripping floats.
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}

	rec := make(map[string]string, len(raw))
	for k, v := range raw {
		col := columnFor(k)
		switch val := v.(type) {
		case string:
			rec[col] = val
		case json.Number:
			rec[col] = val.String()
		case bool:
			if val {
				rec[col] = "1"
			} else {
				rec[col] = "0"
			}
		case nil:
			rec[col] = ""
		default:
			return nil, fmt.Errorf("field %q has unsupported type", k)
		}
	}
	return rec, nil
}

func (h *PredictHandler) parseForm(c *gin.Context) (map[string]string, error) {
	if err := c.Request.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	rec := map[string]string{}
	for k, vals := range c.Request.PostForm {
		if len(vals) == 0 {
			continue
		}
		rec[columnFor(k)] = vals[0]
	}
	return rec, nil
}

func columnFor(field string) string {
	if col, ok := fieldAliases[field]; ok {
		return col
	}
	return field
}
