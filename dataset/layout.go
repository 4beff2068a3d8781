package dataset

import (
	"fmt"
	"path/filepath"

	"chest-xray-pipeline/imbalance"

	"github.com/spf13/afero"
)

// Mode selects the dataset layout the trainer expects.
type Mode string

const (
	Detection      Mode = "detection"
	Classification Mode = "classification"
)

// Splits are the dataset partitions, in layout order.
var Splits = []string{"train", "val", "test"}

func (m Mode) Valid() bool {
	return m == Detection || m == Classification
}

// ParseMode accepts the long names and the trainer's short task names.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "detection", "detect":
		return Detection, nil
	case "classification", "classify":
		return Classification, nil
	default:
		return "", fmt.Errorf("unknown dataset mode %q", s)
	}
}

// Layout returns the directories a dataset of the given mode needs under base.
func Layout(base string, mode Mode) ([]string, error) {
	var dirs []string
	switch mode {
	case Detection:
		for _, kind := range []string{"images", "labels"} {
			for _, split := range Splits {
				dirs = append(dirs, filepath.Join(base, kind, split))
			}
		}
	case Classification:
		for _, split := range Splits {
			for _, class := range imbalance.ClassNames {
				dirs = append(dirs, filepath.Join(base, "images", split, class))
			}
		}
	default:
		return nil, fmt.Errorf("unknown dataset mode %q", mode)
	}
	return dirs, nil
}

// Provision creates the layout directories for mode. Existing directories are left alone.
func Provision(fs afero.Fs, base string, mode Mode) ([]string, error) {
	dirs, err := Layout(base, mode)
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return dirs, nil
}
