package trainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultServiceURL = "http://localhost:5003"

// Client communicates with the Python model service
type Client struct {
	serviceURL string
	client     *http.Client
}

// Health is the service status report.
type Health struct {
	Status   string `json:"status"`
	GPUCount int    `json:"gpu_count"`
}

type openRequest struct {
	Weights string `json:"weights"`
}

type openResponse struct {
	ID string `json:"id"`
}

type predictResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// NewClient creates a model service client. Train and Predict are bounded by
// the caller's context only.
func NewClient(serviceURL string) *Client {
	if serviceURL == "" {
		serviceURL = DefaultServiceURL
	}

	return &Client{
		serviceURL: serviceURL,
		client:     &http.Client{},
	}
}

// HealthCheck verifies the model service is running
func (c *Client) HealthCheck(ctx context.Context) (Health, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var health Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return Health{}, fmt.Errorf("model service not reachable: %w", err)
	}
	return health, nil
}

// Open loads weights in the service and returns a handle to them.
func (c *Client) Open(ctx context.Context, weights string) (*RemoteModel, error) {
	var resp openResponse
	if err := c.do(ctx, http.MethodPost, "/models", openRequest{Weights: weights}, &resp); err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", weights, err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("model service returned empty handle for %s", weights)
	}
	return &RemoteModel{client: c, id: resp.ID, weights: weights}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serviceURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("model service returned status %d: %s", resp.StatusCode, bytes.TrimSpace(bodyBytes))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// RemoteModel is a Model backed by a service-side handle.
type RemoteModel struct {
	client  *Client
	id      string
	weights string
	closed  bool
}

func (m *RemoteModel) ID() string      { return m.id }
func (m *RemoteModel) Weights() string { return m.weights }

func (m *RemoteModel) Train(ctx context.Context, req TrainRequest) (TrainResult, error) {
	if m.closed {
		return TrainResult{}, fmt.Errorf("model %s is closed", m.id)
	}
	var result TrainResult
	if err := m.client.do(ctx, http.MethodPost, "/models/"+m.id+"/train", req, &result); err != nil {
		return TrainResult{}, fmt.Errorf("training failed: %w", err)
	}
	return result, nil
}

func (m *RemoteModel) Predict(ctx context.Context, req PredictRequest) ([]Prediction, error) {
	if m.closed {
		return nil, fmt.Errorf("model %s is closed", m.id)
	}
	var resp predictResponse
	if err := m.client.do(ctx, http.MethodPost, "/models/"+m.id+"/predict", req, &resp); err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}
	return resp.Predictions, nil
}

// Close releases the service-side handle. Closing twice is a no-op.
func (m *RemoteModel) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.client.do(ctx, http.MethodDelete, "/models/"+m.id, nil, nil); err != nil {
		return fmt.Errorf("failed to release model %s: %w", m.id, err)
	}
	return nil
}
