package trainer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeService struct {
	mu       sync.Mutex
	open     map[string]string
	released []string
	trained  []TrainRequest
	gpus     int
}

func newFakeService(gpus int) *fakeService {
	return &fakeService{open: make(map[string]string), gpus: gpus}
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/health":
		json.NewEncoder(w).Encode(Health{Status: "ok", GPUCount: f.gpus})
	case r.Method == http.MethodPost && r.URL.Path == "/models":
		var req openRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Weights == "missing.pt" {
			http.Error(w, "weights not found", http.StatusNotFound)
			return
		}
		f.open["m1"] = req.Weights
		json.NewEncoder(w).Encode(openResponse{ID: "m1"})
	case r.Method == http.MethodPost && r.URL.Path == "/models/m1/train":
		var req TrainRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.trained = append(f.trained, req)
		json.NewEncoder(w).Encode(TrainResult{
			Epochs:      []EpochMetrics{{Epoch: 1, Metrics: map[string]float64{"loss": 0.9}}},
			Metrics:     map[string]float64{"metrics/accuracy_top1": 0.8, "fitness": 0.8},
			WeightsPath: "runs/classify/train/weights/best.pt",
		})
	case r.Method == http.MethodPost && r.URL.Path == "/models/m1/predict":
		json.NewEncoder(w).Encode(predictResponse{Predictions: []Prediction{{
			Source: "a.png", Top1: "normal", Confidence: 0.91,
			Probs: map[string]float64{"normal": 0.91, "clavicle_fracture": 0.05, "foreign_body": 0.04},
		}}})
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/models/"):
		id := strings.TrimPrefix(r.URL.Path, "/models/")
		delete(f.open, id)
		f.released = append(f.released, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func TestClientAcquireTrainPredictRelease(t *testing.T) {
	t.Parallel()

	svc := newFakeService(1)
	server := httptest.NewServer(svc)
	defer server.Close()

	ctx := context.Background()
	client := NewClient(server.URL)

	health, err := client.HealthCheck(ctx)
	if err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
	if ResolveDevice(health) != DeviceCUDA {
		t.Fatalf("expected cuda with one GPU, got %s", ResolveDevice(health))
	}

	preset := ClassificationPreset("data")
	model, err := client.Open(ctx, preset.Weights)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	result, err := model.Train(ctx, preset.Request)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if result.WeightsPath == "" || len(result.Epochs) != 1 {
		t.Fatalf("unexpected train result: %+v", result)
	}
	if diff := cmp.Diff([]string{"fitness", "metrics/accuracy_top1"}, result.MetricNames()); diff != "" {
		t.Fatalf("unexpected metric names (-want +got):\n%s", diff)
	}

	preds, err := model.Predict(ctx, PredictRequest{Source: "a.png", Confidence: 0.5})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(preds) != 1 || !preds[0].IsClassification() || preds[0].Top1 != "normal" {
		t.Fatalf("unexpected predictions: %+v", preds)
	}

	if err := model.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := model.Close(); err != nil {
		t.Fatalf("second Close should be a no-op: %v", err)
	}
	if _, err := model.Predict(ctx, PredictRequest{Source: "a.png"}); err == nil {
		t.Fatalf("expected error predicting on a closed model")
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.open) != 0 || len(svc.released) != 1 {
		t.Fatalf("expected handle released exactly once, open=%v released=%v", svc.open, svc.released)
	}
	if svc.trained[0].ImageSize != 224 || svc.trained[0].Batch != 8 || svc.trained[0].Task != TaskClassify {
		t.Fatalf("preset not forwarded: %+v", svc.trained[0])
	}
}

func TestClientOpenReportsServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(newFakeService(0))
	defer server.Close()

	_, err := NewClient(server.URL).Open(context.Background(), "missing.pt")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}

func TestResolveDeviceWithoutGPU(t *testing.T) {
	t.Parallel()

	if got := ResolveDevice(Health{Status: "ok"}); got != DeviceCPU {
		t.Fatalf("expected cpu, got %s", got)
	}
	if got := DetectionPreset("configs/clavicle_config.yaml"); got.Weights != "yolov8n.pt" || got.Request.ImageSize != 320 {
		t.Fatalf("unexpected detection preset: %+v", got)
	}
}

func TestHealthCheckUnreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	if _, err := NewClient(url).HealthCheck(context.Background()); err == nil {
		t.Fatalf("expected error for closed server")
	}
}
