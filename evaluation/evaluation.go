package evaluation

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"chest-xray-pipeline/dataset"
	"chest-xray-pipeline/trainer"

	"github.com/spf13/afero"
	"gonum.org/v1/gonum/stat"
)

// DefaultLimit is how many images per class are evaluated.
const DefaultLimit = 10

// ProgressFunc is called after each evaluated image.
type ProgressFunc func(done, total int)

// Options configure Evaluate.
type Options struct {
	Classes  []string
	Limit    int
	Progress ProgressFunc
}

// Outcome is the prediction for one test image.
type Outcome struct {
	Image      string  `json:"image"`
	TrueClass  string  `json:"trueClass"`
	PredClass  string  `json:"predClass"`
	Confidence float64 `json:"confidence"`
	Correct    bool    `json:"correct"`
}

// ClassMetrics tracks per-class performance
type ClassMetrics struct {
	ClassName     string    `json:"className"`
	Available     int       `json:"available"`
	Evaluated     int       `json:"evaluated"`
	CorrectCount  int       `json:"correctCount"`
	Accuracy      float64   `json:"accuracy"`
	AvgConfidence float64   `json:"avgConfidence"`
	Outcomes      []Outcome `json:"outcomes"`
}

// Report contains the evaluation results over all class folders
type Report struct {
	Timestamp       time.Time                 `json:"timestamp"`
	TestDir         string                    `json:"testDir"`
	Evaluated       int                       `json:"evaluated"`
	CorrectCount    int                       `json:"correctCount"`
	OverallAccuracy float64                   `json:"overallAccuracy"`
	ClassMetrics    []ClassMetrics            `json:"classMetrics"`
	ConfusionMatrix map[string]map[string]int `json:"confusionMatrix"`
	ProcessingTime  time.Duration             `json:"processingTime"`
}

// Confidences returns the confidence of every evaluated image of the class.
func (m ClassMetrics) Confidences() []float64 {
	values := make([]float64, 0, len(m.Outcomes))
	for _, o := range m.Outcomes {
		values = append(values, o.Confidence)
	}
	return values
}

// Evaluate predicts up to opts.Limit images from each class folder in testDir.
// Folders that do not exist are skipped. Images without a classification
// result are not scored.
func Evaluate(ctx context.Context, fs afero.Fs, model trainer.Model, testDir string, opts Options) (*Report, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	start := time.Now()

	type job struct {
		class  string
		images []string
		total  int
	}
	var jobs []job
	total := 0
	for _, class := range opts.Classes {
		dir := filepath.Join(testDir, class)
		exists, err := afero.DirExists(fs, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
		}
		if !exists {
			continue
		}
		images, err := dataset.ListImages(fs, dir)
		if err != nil {
			return nil, err
		}
		selected := images
		if len(selected) > opts.Limit {
			selected = selected[:opts.Limit]
		}
		jobs = append(jobs, job{class: class, images: selected, total: len(images)})
		total += len(selected)
	}

	report := &Report{
		Timestamp:       start,
		TestDir:         testDir,
		ConfusionMatrix: make(map[string]map[string]int),
	}

	done := 0
	for _, j := range jobs {
		metrics := ClassMetrics{ClassName: j.class, Available: j.total}
		for _, image := range j.images {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			preds, err := model.Predict(ctx, trainer.PredictRequest{Source: image})
			if err != nil {
				return nil, fmt.Errorf("failed to predict %s: %w", image, err)
			}
			done++
			if opts.Progress != nil {
				opts.Progress(done, total)
			}
			if len(preds) == 0 || !preds[0].IsClassification() {
				continue
			}

			pred := preds[0]
			outcome := Outcome{
				Image:      image,
				TrueClass:  j.class,
				PredClass:  pred.Top1,
				Confidence: pred.Confidence,
				Correct:    pred.Top1 == j.class,
			}
			metrics.Outcomes = append(metrics.Outcomes, outcome)
			if outcome.Correct {
				metrics.CorrectCount++
			}
			if report.ConfusionMatrix[j.class] == nil {
				report.ConfusionMatrix[j.class] = make(map[string]int)
			}
			report.ConfusionMatrix[j.class][pred.Top1]++
		}

		metrics.Evaluated = len(j.images)
		if metrics.Evaluated > 0 {
			metrics.Accuracy = float64(metrics.CorrectCount) / float64(metrics.Evaluated)
		}
		if len(metrics.Outcomes) > 0 {
			metrics.AvgConfidence = stat.Mean(metrics.Confidences(), nil)
		}

		report.Evaluated += metrics.Evaluated
		report.CorrectCount += metrics.CorrectCount
		report.ClassMetrics = append(report.ClassMetrics, metrics)
	}

	if report.Evaluated > 0 {
		report.OverallAccuracy = float64(report.CorrectCount) / float64(report.Evaluated)
	}
	report.ProcessingTime = time.Since(start)
	return report, nil
}
