package advisor

import (
	"context"
	"fmt"
	"strings"

	"chest-xray-pipeline/imbalance"
)

// Advisor turns an analysis into human-readable improvement advice.
type Advisor interface {
	Advise(ctx context.Context, a imbalance.Analysis) ([]string, error)
}

// ImprovementMethods are the generic remediation steps printed after every analysis.
var ImprovementMethods = []string{
	"Augment images of the minority classes",
	"Collect additional data",
	"Train with a weighted loss function",
	"Apply oversampling techniques",
}

// StaticAdvisor returns the strategy advice, the per-class gaps and the
// standard improvement methods. It never fails.
type StaticAdvisor struct{}

func (StaticAdvisor) Advise(_ context.Context, a imbalance.Analysis) ([]string, error) {
	lines := []string{fmt.Sprintf("Strategy %s: %s", a.Strategy, a.Advice)}

	for _, rec := range a.Recommendations {
		if rec.Action == imbalance.ActionAdd {
			lines = append(lines, fmt.Sprintf("Add %d images of %s (have %d, target %d)", rec.Amount(), rec.Class, rec.Current, rec.Target))
		}
	}
	for i, method := range ImprovementMethods {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, method))
	}
	return lines, nil
}

// Prompt describes the analysis for a language model.
func Prompt(a imbalance.Analysis) string {
	var b strings.Builder
	b.WriteString("Chest X-ray dataset class balance:\n")
	for _, name := range imbalance.ClassNames {
		if count, ok := a.Counts[name]; ok {
			fmt.Fprintf(&b, "- %s: %d images\n", name, count)
		}
	}
	for name, count := range a.Counts {
		if _, known := imbalance.ClassID(name); !known {
			fmt.Fprintf(&b, "- %s: %d images\n", name, count)
		}
	}
	if a.HasRatio {
		fmt.Fprintf(&b, "Imbalance ratio (max/min): %s\n", a.Ratio)
	}
	fmt.Fprintf(&b, "Selected strategy: %s\n", a.Strategy)
	if len(a.Recommendations) > 0 {
		b.WriteString("Gaps to target counts:\n")
		for _, rec := range a.Recommendations {
			fmt.Fprintf(&b, "- %s: %s\n", rec.Class, rec)
		}
	}
	b.WriteString("Give at most five short, concrete steps to improve this dataset before training an image classifier. One step per line, no markdown.")
	return b.String()
}

// WithFallback uses primary and falls back to StaticAdvisor when it fails
// or returns nothing.
type WithFallback struct {
	Primary Advisor
	OnError func(error)
}

func (f WithFallback) Advise(ctx context.Context, a imbalance.Analysis) ([]string, error) {
	if f.Primary != nil {
		lines, err := f.Primary.Advise(ctx, a)
		if err == nil && len(lines) > 0 {
			return lines, nil
		}
		if err != nil && f.OnError != nil {
			f.OnError(err)
		}
	}
	return StaticAdvisor{}.Advise(ctx, a)
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, "*", ""))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
