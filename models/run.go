package models

import (
	"math"
	"strconv"
	"time"

	"chest-xray-pipeline/imbalance"
	"chest-xray-pipeline/utils"
)

// NewAnalysisRun captures an analysis for storage. mode is detection or classification.
func NewAnalysisRun(a imbalance.Analysis, mode, source, configPath string) *AnalysisRun {
	weights := make(map[string]float64, len(a.Weights))
	for id, w := range a.Weights {
		weights[strconv.Itoa(id)] = w
	}
	run := &AnalysisRun{
		ID:              utils.NewID(),
		CreatedAt:       time.Now().UTC(),
		Mode:            mode,
		Source:          source,
		Counts:          a.Counts,
		TotalSamples:    a.TotalSamples,
		Strategy:        a.Strategy,
		Weights:         weights,
		Recommendations: a.Recommendations,
		ConfigPath:      configPath,
	}
	run.SetRatio(a.Ratio, a.HasRatio)
	return run
}

// SetRatio stores ratio along with its text form. Without a ratio the text is empty.
func (r *AnalysisRun) SetRatio(ratio imbalance.ImbalanceRatio, ok bool) {
	r.Ratio = ratio
	switch {
	case !ok:
		r.RatioText = ""
	case ratio.IsInf():
		r.RatioText = "inf"
	default:
		r.RatioText = strconv.FormatFloat(float64(ratio), 'g', -1, 64)
	}
}

// ParseRatio restores Ratio from its text form.
func (r *AnalysisRun) ParseRatio() {
	switch r.RatioText {
	case "":
		r.Ratio = 0
	case "inf":
		r.Ratio = imbalance.ImbalanceRatio(math.Inf(1))
	default:
		if v, err := strconv.ParseFloat(r.RatioText, 64); err == nil {
			r.Ratio = imbalance.ImbalanceRatio(v)
		}
	}
}
