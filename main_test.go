package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"chest-xray-pipeline/dataset"
	"chest-xray-pipeline/imbalance"
	"chest-xray-pipeline/models"
	"chest-xray-pipeline/predictions"

	"github.com/spf13/afero"
)

type memRuns struct {
	runs []models.AnalysisRun
}

func (m *memRuns) Close() error { return nil }

func (m *memRuns) StoreRun(_ context.Context, run *models.AnalysisRun) error {
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memRuns) GetRuns(_ context.Context, limit int) ([]models.AnalysisRun, error) {
	if limit > 0 && limit < len(m.runs) {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

func (m *memRuns) GetRun(_ context.Context, id string) (models.AnalysisRun, bool, error) {
	for _, r := range m.runs {
		if r.ID == id {
			return r, true, nil
		}
	}
	return models.AnalysisRun{}, false, nil
}

func newTestService(t *testing.T) (*statusService, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for class, n := range map[string]int{"normal": 12, "clavicle_fracture": 3} {
		for i := 0; i < n; i++ {
			path := filepath.Join("data", "images", "train", class, "img"+string(rune('a'+i))+".png")
			if err := afero.WriteFile(fs, path, []byte("png"), 0644); err != nil {
				t.Fatalf("write fixture: %v", err)
			}
		}
	}
	if err := fs.MkdirAll(filepath.Join("data", "labels", "train"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	return &statusService{
		fs:      fs,
		dataDir: "data",
		configPaths: map[dataset.Mode]string{
			dataset.Detection:      filepath.Join("configs", "clavicle_config.yaml"),
			dataset.Classification: filepath.Join("configs", "classification_config.yaml"),
		},
		minSamples:  imbalance.DefaultMinSamples,
		runs:        &memRuns{},
		predictions: predictions.NewStore(filepath.Join(t.TempDir(), predictions.DefaultFile)),
	}, fs
}

func TestAnalysisHandlerClassification(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, "/api/analysis?mode=classify", nil)
	rec := httptest.NewRecorder()
	newAnalysisHandler(svc)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Mode     string `json:"mode"`
		Analysis struct {
			Counts       map[string]int `json:"counts"`
			TotalSamples int            `json:"totalSamples"`
			Strategy     string         `json:"strategy"`
		} `json:"analysis"`
		ConfigWritten bool `json:"configWritten"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Mode != string(dataset.Classification) {
		t.Fatalf("mode = %q", body.Mode)
	}
	if body.Analysis.TotalSamples != 15 {
		t.Fatalf("total = %d, want 15", body.Analysis.TotalSamples)
	}
	if body.Analysis.Strategy != string(imbalance.ModerateImbalance) {
		t.Fatalf("strategy = %q, want moderate (ratio 4)", body.Analysis.Strategy)
	}
	if body.ConfigWritten {
		t.Fatal("status server must not write the dataset config")
	}
}

func TestAnalysisHandlerRejectsBadMode(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	rec := httptest.NewRecorder()
	newAnalysisHandler(svc)(rec, httptest.NewRequest(http.MethodGet, "/api/analysis?mode=segment", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlersMethodAndPreflight(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	h := newRunsHandler(svc)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodOptions, "/api/runs", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("OPTIONS status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("CORS origin = %q", got)
	}

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/runs", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d, want 405", rec.Code)
	}
}

func TestRunsHandlerLimit(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	store := svc.runs.(*memRuns)
	for _, id := range []string{"a", "b", "c"} {
		store.runs = append(store.runs, models.AnalysisRun{ID: id, CreatedAt: time.Now()})
	}

	rec := httptest.NewRecorder()
	newRunsHandler(svc)(rec, httptest.NewRequest(http.MethodGet, "/api/runs?limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var runs []models.AnalysisRun
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
}

func TestRunsHandlerWithoutHistory(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	svc.runs = nil

	rec := httptest.NewRecorder()
	newRunsHandler(svc)(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "[]\n" {
		t.Fatalf("got %d %q, want empty list", rec.Code, rec.Body.String())
	}
}

func TestPredictionsHandler(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	if err := svc.predictions.Save(
		&models.PredictionRecord{Source: "one.png", Label: "normal"},
		&models.PredictionRecord{Source: "two.png", Label: "foreign_body"},
	); err != nil {
		t.Fatalf("save: %v", err)
	}

	rec := httptest.NewRecorder()
	newPredictionsHandler(svc)(rec, httptest.NewRequest(http.MethodGet, "/api/predictions?limit=1", nil))
	var records []models.PredictionRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 || records[0].Source != "two.png" {
		t.Fatalf("got %+v, want newest record only", records)
	}
}

func TestConfigHandler(t *testing.T) {
	t.Parallel()
	svc, fs := newTestService(t)
	h := newConfigHandler(svc)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/config?mode=detect", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing config status = %d, want 404", rec.Code)
	}

	cfg := dataset.DefaultConfig(imbalance.SevereImbalance)
	if err := dataset.WriteConfig(fs, svc.configPaths[dataset.Detection], cfg); err != nil {
		t.Fatalf("write config: %v", err)
	}
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/config?mode=detect", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got dataset.DatasetConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ImbalanceStrategy != imbalance.SevereImbalance || got.Names[1] != "clavicle_fracture" {
		t.Fatalf("config = %+v", got)
	}
}

func TestMuxRoutes(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	srv := httptest.NewServer(newMux(svc, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/analysis?mode=detection")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
