package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"chest-xray-pipeline/imbalance"

	"github.com/spf13/afero"
)

// ImageExtensions are the file types counted as images, compared case-insensitively.
var ImageExtensions = []string{".jpg", ".jpeg", ".png"}

// MinTrainingImages is the per-class count below which training data is insufficient.
const MinTrainingImages = 10

// Verdict summarizes the training data found for one class.
type Verdict string

const (
	VerdictNoData       Verdict = "no_data"
	VerdictInsufficient Verdict = "insufficient"
	VerdictOK           Verdict = "ok"
)

func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, candidate := range ImageExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// StructureReport lists the required dataset folders that were not found.
type StructureReport struct {
	Missing []string
}

func (r StructureReport) OK() bool {
	return len(r.Missing) == 0
}

// CheckStructure verifies that base contains the folders training needs.
func CheckStructure(fs afero.Fs, base string) (StructureReport, error) {
	var report StructureReport
	for _, rel := range []string{filepath.Join("images", "train"), filepath.Join("labels", "train")} {
		exists, err := afero.DirExists(fs, filepath.Join(base, rel))
		if err != nil {
			return report, fmt.Errorf("failed to stat %s: %w", rel, err)
		}
		if !exists {
			report.Missing = append(report.Missing, rel)
		}
	}
	return report, nil
}

// ListImages returns the image files directly inside dir, sorted by name.
// A missing directory yields nil.
func ListImages(fs afero.Fs, dir string) ([]string, error) {
	exists, err := afero.DirExists(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !exists {
		return nil, nil
	}
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImage(entry.Name()) {
			continue
		}
		images = append(images, filepath.Join(dir, entry.Name()))
	}
	return images, nil
}

func CountImages(fs afero.Fs, dir string) (int, error) {
	images, err := ListImages(fs, dir)
	if err != nil {
		return 0, err
	}
	return len(images), nil
}

// ClassCheck is the training-data verdict for one class folder.
type ClassCheck struct {
	Class   string  `json:"class"`
	Images  int     `json:"images"`
	Verdict Verdict `json:"verdict"`
}

func verdictFor(images int) Verdict {
	switch {
	case images == 0:
		return VerdictNoData
	case images < MinTrainingImages:
		return VerdictInsufficient
	default:
		return VerdictOK
	}
}

// TotalVerdict judges a split by its image count over all classes.
func TotalVerdict(checks []ClassCheck) (total int, verdict Verdict) {
	for _, check := range checks {
		total += check.Images
	}
	return total, verdictFor(total)
}

// CheckTrainingData counts images per class under base/images/<split>/<class>.
func CheckTrainingData(fs afero.Fs, base, split string) ([]ClassCheck, error) {
	checks := make([]ClassCheck, 0, len(imbalance.ClassNames))
	for _, class := range imbalance.ClassNames {
		count, err := CountImages(fs, filepath.Join(base, "images", split, class))
		if err != nil {
			return nil, err
		}
		checks = append(checks, ClassCheck{Class: class, Images: count, Verdict: verdictFor(count)})
	}
	return checks, nil
}

// ImageFolderCounter counts images per class folder for classification datasets.
// Class folders that do not exist are left out of the counts.
type ImageFolderCounter struct {
	Fs  afero.Fs
	Dir string
}

func NewImageFolderCounter(fs afero.Fs, dir string) *ImageFolderCounter {
	return &ImageFolderCounter{Fs: fs, Dir: dir}
}

func (c *ImageFolderCounter) Count() (imbalance.NamedCounts, error) {
	counts := make(imbalance.NamedCounts)
	for _, class := range imbalance.ClassNames {
		dir := filepath.Join(c.Dir, class)
		exists, err := afero.DirExists(c.Fs, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
		}
		if !exists {
			continue
		}
		count, err := CountImages(c.Fs, dir)
		if err != nil {
			return nil, err
		}
		counts[class] = count
	}
	return counts, nil
}
