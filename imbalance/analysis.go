package imbalance

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
)

// ImbalanceRatio is a ratio that encodes +Inf as the JSON string "inf".
type ImbalanceRatio float64

func (r ImbalanceRatio) IsInf() bool {
	return math.IsInf(float64(r), 1)
}

func (r ImbalanceRatio) MarshalJSON() ([]byte, error) {
	if r.IsInf() {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(float64(r))
}

func (r *ImbalanceRatio) UnmarshalJSON(data []byte) error {
	if string(data) == `"inf"` {
		*r = ImbalanceRatio(math.Inf(1))
		return nil
	}
	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*r = ImbalanceRatio(value)
	return nil
}

func (r ImbalanceRatio) String() string {
	if r.IsInf() {
		return "inf"
	}
	return fmt.Sprintf("%.2f", float64(r))
}

// Analysis is the full balance picture for one dataset snapshot.
type Analysis struct {
	Counts          NamedCounts      `json:"counts"`
	TotalSamples    int              `json:"totalSamples"`
	Ratio           ImbalanceRatio   `json:"ratio"`
	HasRatio        bool             `json:"hasRatio"`
	Strategy        Strategy         `json:"strategy"`
	Advice          string           `json:"advice"`
	Weights         ClassWeights     `json:"weights"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Options configure Analyze. Zero values fall back to the package defaults.
// A negative MinSamples disables the minimal-data guard.
type Options struct {
	Targets    TargetCounts
	Weights    WeightCalculator
	MinSamples int
}

// Analyze pulls counts from counter and derives strategy, weights and
// balancing recommendations.
func Analyze(counter Counter, opts Options) (Analysis, error) {
	counts, err := counter.Count()
	if err != nil {
		return Analysis{}, fmt.Errorf("failed to count samples: %w", err)
	}
	if opts.Targets == nil {
		opts.Targets = DefaultTargets
	}
	if opts.Weights == nil {
		opts.Weights = NewStaticWeights()
	}
	if opts.MinSamples == 0 {
		opts.MinSamples = DefaultMinSamples
	}

	ratio, hasRatio := Ratio(counts)
	strategy := SelectStrategy(counts, opts.MinSamples)

	return Analysis{
		Counts:          counts,
		TotalSamples:    counts.Total(),
		Ratio:           ImbalanceRatio(ratio),
		HasRatio:        hasRatio,
		Strategy:        strategy,
		Advice:          StrategyAdvice(strategy),
		Weights:         opts.Weights.Weights(idCounts(counts)),
		Recommendations: Plan(counts, opts.Targets),
	}, nil
}

// ConfigStrategy is the strategy to record in a dataset config. no_data has no
// meaning to the trainer, so the default strategy is used instead.
func (a Analysis) ConfigStrategy() Strategy {
	if a.Strategy == NoData {
		return DefaultStrategy
	}
	return a.Strategy
}

func idCounts(named NamedCounts) ClassCounts {
	counts := make(ClassCounts, len(named))
	for name, count := range named {
		if id, ok := ClassID(name); ok {
			counts[id] = count
		}
	}
	return counts
}

// WriteReport prints the analysis in the format used by the command line tools.
func WriteReport(w io.Writer, a Analysis) {
	fmt.Fprintln(w, "Current class balance:")
	if len(a.Counts) == 0 {
		fmt.Fprintln(w, "  (no samples found)")
	}
	for _, name := range a.Counts.Names() {
		fmt.Fprintf(w, "  %-20s: %d images\n", name, a.Counts[name])
	}

	fmt.Fprintln(w)
	if a.HasRatio {
		fmt.Fprintf(w, "Imbalance ratio: %s\n", a.Ratio)
	}
	fmt.Fprintf(w, "Strategy: %s (%s)\n", a.Strategy, a.Advice)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Class weights:")
	ids := make([]int, 0, len(a.Weights))
	for id := range a.Weights {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  %d %-18s: %.1f\n", id, ClassName(id), a.Weights[id])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Balancing recommendations:")
	if len(a.Recommendations) == 0 {
		fmt.Fprintln(w, "  every class matches its target")
	}
	for _, rec := range a.Recommendations {
		switch rec.Action {
		case ActionAdd:
			fmt.Fprintf(w, "  + %s: add %d images\n", rec.Class, rec.Amount())
		case ActionRemove:
			fmt.Fprintf(w, "  - %s: can reduce by %d images\n", rec.Class, rec.Amount())
		}
	}
}
