package workflow

import (
	"context"
	"fmt"
	"path/filepath"

	"chest-xray-pipeline/dataset"
	"chest-xray-pipeline/db"
	"chest-xray-pipeline/imbalance"
	"chest-xray-pipeline/models"

	"github.com/spf13/afero"
)

const (
	SourceScan   = "scan"
	SourceSample = "sample"
)

// Options configure one dataset analysis.
type Options struct {
	Fs         afero.Fs
	DataDir    string
	Mode       dataset.Mode
	ConfigPath string
	UseSample  bool
	MinSamples int
	Targets    imbalance.TargetCounts
	// Provision creates the dataset layout first.
	Provision bool
	// WriteConfig emits the dataset config to ConfigPath.
	WriteConfig bool
}

// Result collects everything an analysis produced.
type Result struct {
	Mode          dataset.Mode            `json:"mode"`
	Source        string                  `json:"source"`
	Layout        []string                `json:"layout,omitempty"`
	Structure     dataset.StructureReport `json:"structure"`
	Training      []dataset.ClassCheck    `json:"training,omitempty"`
	Analysis      imbalance.Analysis      `json:"analysis"`
	Config        dataset.DatasetConfig   `json:"-"`
	ConfigPath    string                  `json:"configPath,omitempty"`
	ConfigWritten bool                    `json:"configWritten"`
}

// NewCounter picks the count source for mode: label files for detection,
// class image folders for classification.
func NewCounter(fs afero.Fs, dataDir string, mode dataset.Mode) imbalance.Counter {
	if mode == dataset.Classification {
		return dataset.NewImageFolderCounter(fs, filepath.Join(dataDir, "images", "train"))
	}
	return imbalance.NewLabelDirCounter(fs, filepath.Join(dataDir, "labels", "train"))
}

// Analyze runs the analysis described by opts.
func Analyze(opts Options) (*Result, error) {
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("unknown dataset mode %q", opts.Mode)
	}
	res := &Result{Mode: opts.Mode, Source: SourceScan, ConfigPath: opts.ConfigPath}

	if opts.Provision {
		layout, err := dataset.Provision(opts.Fs, opts.DataDir, opts.Mode)
		if err != nil {
			return nil, err
		}
		res.Layout = layout
	}

	var counter imbalance.Counter = NewCounter(opts.Fs, opts.DataDir, opts.Mode)
	if opts.UseSample {
		counter = imbalance.FixedCounter{Counts: imbalance.SampleBalance}
		res.Source = SourceSample
	}

	analysis, err := imbalance.Analyze(counter, imbalance.Options{Targets: opts.Targets, MinSamples: opts.MinSamples})
	if err != nil {
		return nil, err
	}
	res.Analysis = analysis

	structure, err := dataset.CheckStructure(opts.Fs, opts.DataDir)
	if err != nil {
		return nil, err
	}
	res.Structure = structure

	if opts.Mode == dataset.Classification {
		checks, err := dataset.CheckTrainingData(opts.Fs, opts.DataDir, "train")
		if err != nil {
			return nil, err
		}
		res.Training = checks
	}

	res.Config = dataset.DefaultConfig(analysis.ConfigStrategy())
	if opts.WriteConfig {
		if err := dataset.WriteConfig(opts.Fs, opts.ConfigPath, res.Config); err != nil {
			return nil, err
		}
		res.ConfigWritten = true
	}
	return res, nil
}

// Record stores the analysis in the run history.
func Record(ctx context.Context, client db.DBClient, res *Result) (*models.AnalysisRun, error) {
	configPath := ""
	if res.ConfigWritten {
		configPath = res.ConfigPath
	}
	run := models.NewAnalysisRun(res.Analysis, string(res.Mode), res.Source, configPath)
	if err := client.StoreRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to store analysis run: %w", err)
	}
	return run, nil
}
