package trainer

import (
	"context"
	"sort"
)

// Task is the kind of model the service trains.
type Task string

const (
	TaskDetect   Task = "detect"
	TaskClassify Task = "classify"
)

const (
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// Model is a handle to one model loaded in the external service. A handle is
// acquired per stage and must be closed when the stage ends.
type Model interface {
	Train(ctx context.Context, req TrainRequest) (TrainResult, error)
	Predict(ctx context.Context, req PredictRequest) ([]Prediction, error)
	Close() error
}

// TrainRequest carries the hyperparameters handed to the trainer.
type TrainRequest struct {
	Task         Task            `json:"task"`
	Data         string          `json:"data"`
	Epochs       int             `json:"epochs"`
	ImageSize    int             `json:"imgsz"`
	Batch        int             `json:"batch"`
	Device       string          `json:"device"`
	LearningRate float64         `json:"lr0"`
	Patience     int             `json:"patience"`
	Workers      int             `json:"workers"`
	Project      string          `json:"project,omitempty"`
	Name         string          `json:"name,omitempty"`
	ClassWeights map[int]float64 `json:"class_weights,omitempty"`
}

// EpochMetrics is the metric snapshot for one finished epoch.
type EpochMetrics struct {
	Epoch   int                `json:"epoch"`
	Metrics map[string]float64 `json:"metrics"`
}

type TrainResult struct {
	Epochs      []EpochMetrics     `json:"epochs"`
	Metrics     map[string]float64 `json:"metrics"`
	WeightsPath string             `json:"weights_path"`
	SaveDir     string             `json:"save_dir"`
}

// MetricNames returns the final metric keys in sorted order.
func (r TrainResult) MetricNames() []string {
	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type PredictRequest struct {
	Source     string  `json:"source"`
	Confidence float64 `json:"conf"`
	Save       bool    `json:"save"`
}

// Box is one detection.
type Box struct {
	ClassID    int        `json:"class_id"`
	ClassName  string     `json:"class_name"`
	Confidence float64    `json:"confidence"`
	XYXY       [4]float64 `json:"xyxy"`
}

// Prediction is the service's answer for one image. Classification results
// carry Top1 and Probs, detection results carry Boxes.
type Prediction struct {
	Source     string             `json:"source"`
	Top1       string             `json:"top1,omitempty"`
	Confidence float64            `json:"top1_confidence,omitempty"`
	Probs      map[string]float64 `json:"probs,omitempty"`
	Boxes      []Box              `json:"boxes,omitempty"`
}

func (p Prediction) IsClassification() bool {
	return p.Top1 != ""
}

// Preset is a starting checkpoint plus its default hyperparameters.
type Preset struct {
	Weights string
	Request TrainRequest
}

// DetectionPreset trains the nano detector on small CPU-friendly images.
func DetectionPreset(data string) Preset {
	return Preset{
		Weights: "yolov8n.pt",
		Request: TrainRequest{
			Task:         TaskDetect,
			Data:         data,
			Epochs:       10,
			ImageSize:    320,
			Batch:        4,
			Patience:     5,
			LearningRate: 0.01,
			Device:       DeviceCPU,
		},
	}
}

func ClassificationPreset(data string) Preset {
	return Preset{
		Weights: "yolov8n-cls.pt",
		Request: TrainRequest{
			Task:         TaskClassify,
			Data:         data,
			Epochs:       10,
			ImageSize:    224,
			Batch:        8,
			Patience:     3,
			LearningRate: 0.001,
			Device:       DeviceCPU,
		},
	}
}

// ResolveDevice picks cuda when the service reports at least one GPU.
func ResolveDevice(h Health) string {
	if h.GPUCount > 0 {
		return DeviceCUDA
	}
	return DeviceCPU
}
