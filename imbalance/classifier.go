package imbalance

// Imbalance classification for chest X-ray datasets
//
// The classifier turns per-class sample counts into a named remediation strategy.
//
// 1. Ratio:
//    - ratio = max(count) / min(count) over every class in the mapping
//    - a zero minimum makes the ratio +Inf
//
// 2. Thresholds:
//    - ratio > 10        -> severe_imbalance
//    - 3 < ratio <= 10   -> moderate_imbalance
//    - ratio <= 3        -> balanced
//
// 3. Empty input:
//    - no classes at all -> no_data (no ratio is computed)
//
// SelectStrategy layers the data checks on top: classes that are present but
// hold zero samples in total are no_data, and a dataset that has some samples
// but fewer than the configured minimum is minimal_data.

import "math"

const (
	severeRatioThreshold   = 10.0
	moderateRatioThreshold = 3.0

	// DefaultMinSamples is the smallest total sample count worth balancing.
	DefaultMinSamples = 10
)

var strategyAdvice = map[Strategy]string{
	SevereImbalance:   "Use oversampling together with class weights",
	ModerateImbalance: "Use a weighted loss",
	MinimalData:       "Collect more data and apply augmentation",
	Balanced:          "Classes are balanced, no remediation needed",
	NoData:            "No samples found, add images and labels first",
}

// Ratio returns max(count)/min(count). ok is false when counts is empty.
func Ratio[K comparable](counts map[K]int) (ratio float64, ok bool) {
	if len(counts) == 0 {
		return 0, false
	}

	first := true
	var maxCount, minCount int
	for _, count := range counts {
		if first {
			maxCount, minCount = count, count
			first = false
			continue
		}
		if count > maxCount {
			maxCount = count
		}
		if count < minCount {
			minCount = count
		}
	}

	if minCount <= 0 {
		return math.Inf(1), true
	}
	return float64(maxCount) / float64(minCount), true
}

// Classify maps counts to a strategy by thresholding the imbalance ratio.
func Classify[K comparable](counts map[K]int) Strategy {
	ratio, ok := Ratio(counts)
	if !ok {
		return NoData
	}
	return ClassifyRatio(ratio)
}

// ClassifyRatio applies the strategy thresholds to a precomputed ratio.
func ClassifyRatio(ratio float64) Strategy {
	switch {
	case ratio > severeRatioThreshold:
		return SevereImbalance
	case ratio > moderateRatioThreshold:
		return ModerateImbalance
	default:
		return Balanced
	}
}

// SelectStrategy is Classify with data guards: no samples at all (including
// classes that are all present with zero samples) is no_data, and fewer than
// minSamples is minimal_data. minSamples <= 0 disables the minimum.
func SelectStrategy[K comparable](counts map[K]int, minSamples int) Strategy {
	total := 0
	for _, count := range counts {
		total += count
	}
	if total == 0 {
		return NoData
	}
	if minSamples > 0 && total < minSamples {
		return MinimalData
	}
	return Classify(counts)
}

// StrategyAdvice returns the human-readable remediation for s.
func StrategyAdvice(s Strategy) string {
	if advice, ok := strategyAdvice[s]; ok {
		return advice
	}
	return "Unknown strategy"
}

// Valid reports whether s is one of the known strategy labels, no_data included.
func (s Strategy) Valid() bool {
	_, ok := strategyAdvice[s]
	return ok
}
