package main

import (
	"context"
	"path/filepath"

	"chest-xray-pipeline/dataset"
	"chest-xray-pipeline/db"
	"chest-xray-pipeline/imbalance"
	"chest-xray-pipeline/models"
	"chest-xray-pipeline/predictions"
	"chest-xray-pipeline/utils"
	"chest-xray-pipeline/workflow"

	"github.com/spf13/afero"
)

// statusService answers read-only questions about the dataset and past runs.
type statusService struct {
	fs          afero.Fs
	dataDir     string
	configPaths map[dataset.Mode]string
	minSamples  int
	runs        db.DBClient
	predictions *predictions.Store
}

func newStatusServiceFromEnv(runs db.DBClient) *statusService {
	runsDir := utils.GetEnv("XRAY_RUNS_DIR", "runs")
	return &statusService{
		fs:      afero.NewOsFs(),
		dataDir: utils.GetEnv("XRAY_DATA_DIR", "./data"),
		configPaths: map[dataset.Mode]string{
			dataset.Detection:      utils.GetEnv("XRAY_CONFIG_PATH", filepath.Join("configs", "clavicle_config.yaml")),
			dataset.Classification: utils.GetEnv("XRAY_CLASSIFICATION_CONFIG_PATH", filepath.Join("configs", "classification_config.yaml")),
		},
		minSamples:  utils.GetEnvInt("XRAY_MIN_SAMPLES", imbalance.DefaultMinSamples),
		runs:        runs,
		predictions: predictions.NewStore(filepath.Join(runsDir, predictions.DefaultFile)),
	}
}

func parseModeOrDefault(s string) (dataset.Mode, error) {
	if s == "" {
		return dataset.Classification, nil
	}
	return dataset.ParseMode(s)
}

func (s *statusService) analyze(mode dataset.Mode) (*workflow.Result, error) {
	return workflow.Analyze(workflow.Options{
		Fs:         s.fs,
		DataDir:    s.dataDir,
		Mode:       mode,
		ConfigPath: s.configPaths[mode],
		MinSamples: s.minSamples,
	})
}

func (s *statusService) recentRuns(ctx context.Context, limit int) ([]models.AnalysisRun, error) {
	if s.runs == nil {
		return []models.AnalysisRun{}, nil
	}
	runs, err := s.runs.GetRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []models.AnalysisRun{}
	}
	return runs, nil
}

func (s *statusService) config(mode dataset.Mode) (dataset.DatasetConfig, error) {
	return dataset.ReadConfig(s.fs, s.configPaths[mode])
}
