package imbalance

import "fmt"

// ClassNames is the fixed, ordered class table. A class id is its index.
var ClassNames = []string{"normal", "clavicle_fracture", "foreign_body"}

// ClassCounts maps a class id to the number of observed annotations.
type ClassCounts map[int]int

// NamedCounts maps a class name to the number of observed samples.
type NamedCounts map[string]int

// Strategy names the remediation chosen for a class distribution.
type Strategy string

const (
	Balanced          Strategy = "balanced"
	ModerateImbalance Strategy = "moderate_imbalance"
	SevereImbalance   Strategy = "severe_imbalance"
	MinimalData       Strategy = "minimal_data"
	// NoData is returned instead of a strategy when there is nothing to count.
	NoData Strategy = "no_data"
)

// DefaultStrategy is written to dataset configs when no counts are available.
const DefaultStrategy = ModerateImbalance

// ClassWeights maps a class id to a loss multiplier.
type ClassWeights map[int]float64

// TargetCounts maps a class name to its desired minimum sample count.
type TargetCounts map[string]int

// DefaultTargets are the per-class goals used for balancing advice.
var DefaultTargets = TargetCounts{
	"normal":            200,
	"clavicle_fracture": 100,
	"foreign_body":      70,
}

// Action is what a Recommendation asks for.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// Recommendation is the advisory gap between observed and target counts for one class.
type Recommendation struct {
	Class   string `json:"class"`
	Current int    `json:"current"`
	Target  int    `json:"target"`
	Needed  int    `json:"needed"`
	Action  Action `json:"action"`
}

// Amount is the absolute number of samples to add or remove.
func (r Recommendation) Amount() int {
	if r.Needed < 0 {
		return -r.Needed
	}
	return r.Needed
}

func (r Recommendation) String() string {
	return fmt.Sprintf("%s %d", r.Action, r.Amount())
}

// ClassName returns the table name for id, or class_<id> for ids outside the table.
func ClassName(id int) string {
	if id >= 0 && id < len(ClassNames) {
		return ClassNames[id]
	}
	return fmt.Sprintf("class_%d", id)
}

// ClassID returns the table id for name.
func ClassID(name string) (int, bool) {
	for idx, candidate := range ClassNames {
		if candidate == name {
			return idx, true
		}
	}
	return 0, false
}

// Named converts id-keyed counts to name-keyed counts.
func (c ClassCounts) Named() NamedCounts {
	named := make(NamedCounts, len(c))
	for id, count := range c {
		named[ClassName(id)] += count
	}
	return named
}

// Total returns the sum of all counts.
func (c NamedCounts) Total() int {
	total := 0
	for _, count := range c {
		total += count
	}
	return total
}
