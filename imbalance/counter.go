package imbalance

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// LabelExtension is the extension of per-image annotation files.
const LabelExtension = ".txt"

// Counter is a source of per-class sample counts. Implementations either scan
// the filesystem or return a provided mapping.
type Counter interface {
	Count() (NamedCounts, error)
}

// CountLabels aggregates class-id occurrences across the label files in dir.
// A missing directory yields empty counts and no error.
func CountLabels(fs afero.Fs, dir string) (ClassCounts, error) {
	counts := make(ClassCounts)

	exists, err := afero.DirExists(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat label directory %s: %w", dir, err)
	}
	if !exists {
		return counts, nil
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read label directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), LabelExtension) {
			continue
		}
		if err := countFile(fs, filepath.Join(dir, entry.Name()), counts); err != nil {
			return nil, err
		}
	}

	return counts, nil
}

func countFile(fs afero.Fs, path string, counts ClassCounts) error {
	file, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open label file %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		// blank and whitespace-only lines carry no annotation
		if len(fields) == 0 {
			continue
		}
		classID, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("%s:%d: invalid class id %q: %w", path, lineNo, fields[0], err)
		}
		counts[classID]++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read label file %s: %w", path, err)
	}

	return nil
}

// LabelDirCounter counts annotations in a label directory and names them
// through the class table.
type LabelDirCounter struct {
	Fs  afero.Fs
	Dir string
}

func NewLabelDirCounter(fs afero.Fs, dir string) *LabelDirCounter {
	return &LabelDirCounter{Fs: fs, Dir: dir}
}

func (c *LabelDirCounter) Count() (NamedCounts, error) {
	counts, err := CountLabels(c.Fs, c.Dir)
	if err != nil {
		return nil, err
	}
	return counts.Named(), nil
}

// FixedCounter returns a provided mapping. Use it for fixtures and offline demos.
type FixedCounter struct {
	Counts NamedCounts
}

// SampleBalance is the demonstration distribution used when no dataset is scanned.
var SampleBalance = NamedCounts{
	"normal":            150,
	"clavicle_fracture": 80,
	"foreign_body":      50,
}

func (c FixedCounter) Count() (NamedCounts, error) {
	out := make(NamedCounts, len(c.Counts))
	for name, count := range c.Counts {
		out[name] = count
	}
	return out, nil
}
