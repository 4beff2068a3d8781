package predictions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"chest-xray-pipeline/models"
	"chest-xray-pipeline/trainer"
	"chest-xray-pipeline/utils"
)

// DefaultFile is the prediction log kept next to the trainer's run outputs.
const DefaultFile = "predictions.json"

// Store appends prediction records to a JSON file.
type Store struct {
	path string
	mu   sync.RWMutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// load reads all records from the JSON file (without lock)
func (s *Store) load() ([]models.PredictionRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []models.PredictionRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading predictions file: %w", err)
	}

	if len(data) == 0 {
		return []models.PredictionRecord{}, nil
	}

	var records []models.PredictionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("error unmarshaling predictions: %w", err)
	}

	return records, nil
}

// Load returns every stored record, oldest first.
func (s *Store) Load() ([]models.PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

// Save appends records to the file, filling in missing ids and timestamps.
func (s *Store) Save(records ...*models.PredictionRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return err
	}

	for _, record := range records {
		if record.ID == "" {
			record.ID = utils.NewID()
		}
		if record.Timestamp.IsZero() {
			record.Timestamp = time.Now().UTC()
		}
		existing = append(existing, *record)
	}

	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := utils.CreateFolder(dir); err != nil {
			return fmt.Errorf("error creating directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling predictions: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("error writing predictions file: %w", err)
	}

	return nil
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (s *Store) Recent(limit int) ([]models.PredictionRecord, error) {
	records, err := s.Load()
	if err != nil {
		return nil, err
	}
	out := make([]models.PredictionRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, records[i])
	}
	return out, nil
}

// FromPrediction converts a service prediction into a record. Detection
// results take the most confident box as their label.
func FromPrediction(model string, threshold float64, p trainer.Prediction) (*models.PredictionRecord, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("error marshaling prediction: %w", err)
	}

	record := &models.PredictionRecord{
		Model:     model,
		Source:    p.Source,
		Threshold: threshold,
		Result:    raw,
	}
	if p.IsClassification() {
		record.Label = p.Top1
		record.Confidence = p.Confidence
		return record, nil
	}
	for _, box := range p.Boxes {
		if box.Confidence > record.Confidence {
			record.Label = box.ClassName
			record.Confidence = box.Confidence
		}
	}
	return record, nil
}
