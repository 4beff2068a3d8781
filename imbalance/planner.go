package imbalance

import "sort"

// Plan compares current counts with targets and returns one recommendation per
// class whose gap is non-zero. A class missing from either side counts as 0.
// Results follow the class table order, then the remaining names alphabetically.
func Plan(current NamedCounts, targets TargetCounts) []Recommendation {
	var recommendations []Recommendation
	for _, name := range planOrder(current, targets) {
		cur := current[name]
		target := targets[name]
		needed := target - cur

		switch {
		case needed > 0:
			recommendations = append(recommendations, Recommendation{
				Class: name, Current: cur, Target: target, Needed: needed, Action: ActionAdd,
			})
		case needed < 0:
			recommendations = append(recommendations, Recommendation{
				Class: name, Current: cur, Target: target, Needed: needed, Action: ActionRemove,
			})
		}
	}
	return recommendations
}

// Names lists the counted classes in plan order: the class table first,
// then any other names alphabetically.
func (c NamedCounts) Names() []string {
	return planOrder(c, nil)
}

func planOrder(current NamedCounts, targets TargetCounts) []string {
	seen := make(map[string]bool, len(current)+len(targets))
	var order []string
	for _, name := range ClassNames {
		_, inCurrent := current[name]
		_, inTargets := targets[name]
		if inCurrent || inTargets {
			order = append(order, name)
			seen[name] = true
		}
	}

	var rest []string
	for name := range current {
		if !seen[name] {
			seen[name] = true
			rest = append(rest, name)
		}
	}
	for name := range targets {
		if !seen[name] {
			seen[name] = true
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	return append(order, rest...)
}
