package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stayml/bookingcast/internal/artifact"
	"github.com/stayml/bookingcast/internal/dataset"
	"github.com/stayml/bookingcast/internal/handlers"
	"github.com/stayml/bookingcast/internal/model"
	"github.com/stayml/bookingcast/internal/platform/logger"
	"github.com/stayml/bookingcast/internal/preprocess"
	"github.com/stayml/bookingcast/internal/server"
	"github.com/stayml/bookingcast/internal/serving"
	"github.com/stayml/bookingcast/internal/tracking"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func writeArtifact(t *testing.T, dir string) string {
	t.Helper()
	tbl := dataset.New([]string{"lead_time", "avg_price_per_room", "room_type_reserved", "booking_status"})
	for i := 0; i < 80; i++ {
		lead := "10"
		status := "Not_Canceled"
		if i%2 == 0 {
			lead = "220"
			status = "Canceled"
		}
		room := "Room_Type 1"
		if i%4 == 0 {
			room = "Room_Type 2"
		}
		tbl.Rows = append(tbl.Rows, []string{lead, "110.5", room, status})
	}
	tr := preprocess.NewTransformer(
		[]string{"lead_time", "avg_price_per_room"},
		[]string{"room_type_reserved"},
		"booking_status", 5)
	if err := tr.Fit(tbl); err != nil {
		t.Fatalf("fit: %v", err)
	}
	m, err := tr.Transform(tbl, true)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	params := model.Params{NumTrees: 10, LearningRate: 0.3, MaxDepth: 2, MinLeaf: 2, Subsample: 1}
	e, err := model.Fit(m, params, 1)
	if err != nil {
		t.Fatalf("fit model: %v", err)
	}
	path := artifact.Path(dir)
	b := &artifact.Bundle{
		SchemaVersion: artifact.SchemaVersion,
		ModelKey:      "booking-cancellation",
		TrainedAt:     time.Now().UTC(),
		Params:        params,
		PositiveLabel: tr.PositiveLabel(),
		Transformer:   tr,
		Ensemble:      e,
	}
	if err := artifact.Save(b, path); err != nil {
		t.Fatalf("save artifact: %v", err)
	}
	return path
}

type testEnv struct {
	router *gin.Engine
	store  *tracking.Store
}

func newTestEnv(t *testing.T, withModel bool) *testEnv {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	store, err := tracking.Open("sqlite", filepath.Join(t.TempDir(), "tracking.db"), log)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	dir := t.TempDir()
	path := artifact.Path(dir)
	if withModel {
		path = writeArtifact(t, dir)
	}
	predictor := serving.NewPredictor(log, path)
	if withModel {
		if err := predictor.Load(); err != nil {
			t.Fatalf("load artifact: %v", err)
		}
	}

	router := server.NewRouter(server.RouterConfig{
		HealthHandler:  handlers.NewHealthHandler(predictor),
		PredictHandler: handlers.NewPredictHandler(log, predictor),
		ModelHandler:   handlers.NewModelHandler(log, store, predictor),
	})
	return &testEnv{router: router, store: store}
}

func (env *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func validRecordJSON() string {
	return `{
		"lead_time": 45,
		"room_type": "Room_Type 1",
		"avg_price_per_room": 120.5
	}`
}

func TestPredictJSON(t *testing.T) {
	env := newTestEnv(t, true)

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(validRecordJSON()))
	req.Header.Set("Content-Type", "application/json")
	rr := env.do(t, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var out struct {
		Prediction  int     `json:"prediction"`
		Probability float64 `json:"probability"`
		Status      string  `json:"status"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Prediction != 0 && out.Prediction != 1 {
		t.Fatalf("prediction=%d", out.Prediction)
	}
	if out.Probability < 0 || out.Probability > 1 {
		t.Fatalf("probability=%v", out.Probability)
	}
	if out.Status != "ok" {
		t.Fatalf("status=%q", out.Status)
	}
}

func TestPredictForm(t *testing.T) {
	env := newTestEnv(t, true)

	form := url.Values{}
	form.Set("lead_time", "45")
	form.Set("room_type", "Room_Type 1")
	form.Set("avg_price_per_room", "120.5")

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := env.do(t, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestPredictMissingFieldIs400(t *testing.T) {
	env := newTestEnv(t, true)

	body := `{"room_type": "Room_Type 1", "avg_price_per_room": 120.5}`
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := env.do(t, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rr.Code)
	}
	var out struct {
		Error  string `json:"error"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != "error" || out.Error == "" {
		t.Fatalf("error envelope %+v", out)
	}
	if !strings.Contains(out.Error, "lead_time") {
		t.Fatalf("error %q does not name the missing field", out.Error)
	}
}

func TestPredictUnknownCategoryIs400(t *testing.T) {
	env := newTestEnv(t, true)

	body := `{"lead_time": 45, "room_type": "Penthouse", "avg_price_per_room": 120.5}`
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := env.do(t, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400, body=%s", rr.Code, rr.Body.String())
	}
}

func TestPredictInvalidJSONIs400(t *testing.T) {
	env := newTestEnv(t, true)

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rr := env.do(t, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rr.Code)
	}
}

func TestPredictWithoutModelIs503(t *testing.T) {
	env := newTestEnv(t, false)

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(validRecordJSON()))
	req.Header.Set("Content-Type", "application/json")
	rr := env.do(t, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var out struct {
		Status      string `json:"status"`
		ModelLoaded bool   `json:"model_loaded"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != "ok" || !out.ModelLoaded {
		t.Fatalf("health %+v", out)
	}
}

func TestFormPageServed(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Fatalf("content-type=%q", ct)
	}
	if !strings.Contains(rr.Body.String(), `action="/predict"`) {
		t.Fatalf("form page does not post to /predict")
	}
}

func TestGetModelAndRuns(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/api/model", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("model status=%d", rr.Code)
	}
	var modelOut map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&modelOut); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if modelOut["model_key"] != "booking-cancellation" {
		t.Fatalf("model_key=%v", modelOut["model_key"])
	}
	if modelOut["loaded"] != true {
		t.Fatalf("loaded=%v", modelOut["loaded"])
	}

	rr = env.do(t, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("runs status=%d", rr.Code)
	}
}

func TestModelReload(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.do(t, httptest.NewRequest(http.MethodPost, "/api/model/reload", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("reload status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestPromoteSnapshot(t *testing.T) {
	env := newTestEnv(t, true)

	snap, err := env.store.RegisterSnapshot(
		httptest.NewRequest(http.MethodGet, "/", nil).Context(),
		"booking-cancellation", uuid.New(), nil, nil, "/tmp/model.json")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	body := `{"snapshot_id":"` + snap.ID.String() + `","stage":"production"}`
	req := httptest.NewRequest(http.MethodPost, "/api/model/promote", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := env.do(t, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("promote status=%d body=%s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/model/promote", strings.NewReader(`{"snapshot_id":"nope","stage":"production"}`))
	req.Header.Set("Content-Type", "application/json")
	rr = env.do(t, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d want 400", rr.Code)
	}
}
