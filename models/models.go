package models

import (
	"encoding/json"
	"time"

	"chest-xray-pipeline/imbalance"
)

// AnalysisRun is the stored summary of one dataset analysis
type AnalysisRun struct {
	ID              string                     `json:"id" bson:"_id"`
	CreatedAt       time.Time                  `json:"createdAt" bson:"created_at"`
	Mode            string                     `json:"mode" bson:"mode"`
	Source          string                     `json:"source" bson:"source"`
	Counts          imbalance.NamedCounts      `json:"counts" bson:"counts"`
	TotalSamples    int                        `json:"totalSamples" bson:"total_samples"`
	Ratio           imbalance.ImbalanceRatio   `json:"ratio" bson:"-"`
	RatioText       string                     `json:"-" bson:"ratio"`
	Strategy        imbalance.Strategy         `json:"strategy" bson:"strategy"`
	Weights         map[string]float64         `json:"weights" bson:"weights"`
	Recommendations []imbalance.Recommendation `json:"recommendations" bson:"recommendations"`
	ConfigPath      string                     `json:"configPath,omitempty" bson:"config_path,omitempty"`
}

// PredictionRecord is one stored inference result
type PredictionRecord struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Model      string          `json:"model"`
	Source     string          `json:"source"`
	Label      string          `json:"label,omitempty"`
	Confidence float64         `json:"confidence"`
	Threshold  float64         `json:"threshold"`
	Result     json.RawMessage `json:"result"` // Store as JSON
}
