package evaluation

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// TrainingArtifacts lists the training plots the trainer left in runDir.
func TrainingArtifacts(fs afero.Fs, runDir string) ([]string, error) {
	matches, err := afero.Glob(fs, filepath.Join(runDir, "*.png"))
	if err != nil {
		return nil, fmt.Errorf("failed to list training plots: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}
