package imbalance

// WeightCalculator produces per-class loss multipliers for a weighted-loss trainer.
type WeightCalculator interface {
	Weights(counts ClassCounts) ClassWeights
}

// StaticWeights returns a fixed table and ignores the observed counts. This is
// not inverse-frequency weighting; derive weights from counts only once there
// is a requirement for it.
type StaticWeights struct {
	Table ClassWeights
}

// DefaultWeights is the weight table handed to the trainer.
var DefaultWeights = ClassWeights{0: 1.0, 1: 2.0, 2: 2.5}

func NewStaticWeights() StaticWeights {
	return StaticWeights{Table: DefaultWeights}
}

func (w StaticWeights) Weights(_ ClassCounts) ClassWeights {
	table := w.Table
	if table == nil {
		table = DefaultWeights
	}
	out := make(ClassWeights, len(table))
	for id, weight := range table {
		out[id] = weight
	}
	return out
}
