package metadata

// NIH ChestX-ray14 metadata preparation
//
// The metadata file (Data_Entry_2017.csv) lists one row per image with its
// finding labels. Preparation makes sure a usable file exists and derives the
// lists the dataset builders need:
//
// 1. Validate:
//    - the first three lines must not contain HTML (failed downloads)
//    - the header must carry "Image Index" and "Finding Labels"
//
// 2. Demo fallback:
//    - an invalid or missing file is replaced by 200 synthetic rows with a
//      realistic finding distribution
//
// 3. Analyse:
//    - distribution of "Finding Labels", most frequent first
//    - normal images are the "No Finding" rows; without any, the first 50
//      rows stand in

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

const (
	ImageIndexColumn    = "Image Index"
	FindingLabelsColumn = "Finding Labels"
	NoFinding           = "No Finding"

	MetadataFile     = "Data_Entry_2017.csv"
	NormalListFile   = "normal_images_list.txt"
	DistributionFile = "class_distribution.csv"

	fallbackNormalRows = 50
)

var (
	ErrHTMLContent   = errors.New("metadata file contains HTML instead of CSV")
	ErrMissingColumn = errors.New("metadata file is missing a required column")
)

// Record is one metadata row.
type Record struct {
	ImageIndex    string
	FindingLabels string
	Fields        map[string]string
}

// Table is a parsed metadata file, rows in file order.
type Table struct {
	Header  []string
	Records []Record
}

// Validate checks that the file at path looks like real NIH metadata.
func Validate(fs afero.Fs, path string) error {
	file, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open metadata %s: %w", path, err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	for i := 0; i < 3; i++ {
		line, err := reader.ReadString('\n')
		if strings.Contains(line, "<!DOCTYPE") || strings.Contains(line, "<html") {
			return ErrHTMLContent
		}
		if err != nil {
			break
		}
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind metadata %s: %w", path, err)
	}
	header, err := csv.NewReader(file).Read()
	if err != nil {
		return fmt.Errorf("failed to read metadata header: %w", err)
	}
	return checkColumns(header)
}

func checkColumns(header []string) error {
	var missing []string
	for _, required := range []string{ImageIndexColumn, FindingLabelsColumn} {
		if indexOf(header, required) < 0 {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

func indexOf(header []string, column string) int {
	for i, name := range header {
		if strings.TrimSpace(name) == column {
			return i
		}
	}
	return -1
}

// Read parses the metadata file at path.
func Read(fs afero.Fs, path string) (*Table, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("metadata %s is empty", path)
	}

	header := rows[0]
	if err := checkColumns(header); err != nil {
		return nil, err
	}
	imageIdx := indexOf(header, ImageIndexColumn)
	labelIdx := indexOf(header, FindingLabelsColumn)

	table := &Table{Header: header}
	for _, row := range rows[1:] {
		fields := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				fields[name] = row[i]
			}
		}
		table.Records = append(table.Records, Record{
			ImageIndex:    fields[header[imageIdx]],
			FindingLabels: fields[header[labelIdx]],
			Fields:        fields,
		})
	}
	return table, nil
}

// Ensure returns the metadata at path, replacing a missing or invalid file
// with demo metadata. created reports whether the demo file was written.
func Ensure(fs afero.Fs, path string) (table *Table, created bool, err error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to stat metadata %s: %w", path, err)
	}
	if exists {
		if err := Validate(fs, path); err == nil {
			table, err := Read(fs, path)
			if err == nil {
				return table, false, nil
			}
		}
	}

	table = DemoTable()
	if err := Write(fs, path, table); err != nil {
		return nil, false, err
	}
	return table, true, nil
}

// Write stores table as CSV at path, creating the parent directory.
func Write(fs afero.Fs, path string, table *Table) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	file, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metadata %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(table.Header); err != nil {
		return fmt.Errorf("failed to write metadata header: %w", err)
	}
	for _, rec := range table.Records {
		row := make([]string, len(table.Header))
		for i, name := range table.Header {
			row[i] = rec.Fields[name]
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write metadata row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// FindingCount is one entry of the finding distribution.
type FindingCount struct {
	Finding string
	Count   int
}

// Distribution counts rows per finding label, most frequent first. Ties keep
// first-seen order.
func (t *Table) Distribution() []FindingCount {
	index := make(map[string]int)
	var dist []FindingCount
	for _, rec := range t.Records {
		pos, ok := index[rec.FindingLabels]
		if !ok {
			pos = len(dist)
			index[rec.FindingLabels] = pos
			dist = append(dist, FindingCount{Finding: rec.FindingLabels})
		}
		dist[pos].Count++
	}
	sort.SliceStable(dist, func(i, j int) bool { return dist[i].Count > dist[j].Count })
	return dist
}

// NormalImages returns image names of rows without findings. fallback is true
// when there were none and the first rows were used instead.
func (t *Table) NormalImages() (images []string, fallback bool) {
	for _, rec := range t.Records {
		if rec.FindingLabels == NoFinding {
			images = append(images, rec.ImageIndex)
		}
	}
	if len(images) > 0 {
		return images, false
	}
	for i, rec := range t.Records {
		if i >= fallbackNormalRows {
			break
		}
		images = append(images, rec.ImageIndex)
	}
	return images, true
}

// Summary is what Prepare wrote.
type Summary struct {
	Rows         int
	Created      bool
	Distribution []FindingCount
	Normal       []string
	Fallback     bool
	NormalPath   string
	DistPath     string
}

// Prepare ensures metadata exists in dir and writes the normal image list and
// the finding distribution next to it.
func Prepare(fs afero.Fs, dir string) (Summary, error) {
	table, created, err := Ensure(fs, filepath.Join(dir, MetadataFile))
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Rows:         len(table.Records),
		Created:      created,
		Distribution: table.Distribution(),
		NormalPath:   filepath.Join(dir, NormalListFile),
		DistPath:     filepath.Join(dir, DistributionFile),
	}
	summary.Normal, summary.Fallback = table.NormalImages()

	var list strings.Builder
	for _, name := range summary.Normal {
		list.WriteString(name)
		list.WriteByte('\n')
	}
	if err := afero.WriteFile(fs, summary.NormalPath, []byte(list.String()), 0644); err != nil {
		return Summary{}, fmt.Errorf("failed to write normal image list: %w", err)
	}

	if err := writeDistribution(fs, summary.DistPath, summary.Distribution); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

func writeDistribution(fs afero.Fs, path string, dist []FindingCount) error {
	file, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{FindingLabelsColumn, "Count"}); err != nil {
		return fmt.Errorf("failed to write distribution header: %w", err)
	}
	for _, entry := range dist {
		if err := w.Write([]string{entry.Finding, fmt.Sprint(entry.Count)}); err != nil {
			return fmt.Errorf("failed to write distribution row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
