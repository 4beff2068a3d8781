package imbalance

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func writeLabelFile(t *testing.T, fs afero.Fs, path string, lines ...string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestCountLabelsSingleFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	dir := filepath.Join("data", "labels", "train")
	writeLabelFile(t, fs, filepath.Join(dir, "img1.txt"),
		"0 0.5 0.5 0.1 0.1",
		"1 0.2 0.3 0.1 0.2",
		"0 0.7 0.1 0.3 0.3",
	)

	counts, err := CountLabels(fs, dir)
	if err != nil {
		t.Fatalf("CountLabels returned error: %v", err)
	}
	if diff := cmp.Diff(ClassCounts{0: 2, 1: 1}, counts); diff != "" {
		t.Fatalf("unexpected counts (-want +got):\n%s", diff)
	}
}

func TestCountLabelsAggregatesAndIgnoresOtherFiles(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	dir := "labels"
	writeLabelFile(t, fs, filepath.Join(dir, "a.txt"), "2 0 0 1 1", "", "2 0 0 1 1")
	writeLabelFile(t, fs, filepath.Join(dir, "b.txt"), "1 0 0 1 1")
	writeLabelFile(t, fs, filepath.Join(dir, "notes.md"), "not a label")
	writeLabelFile(t, fs, filepath.Join(dir, "nested", "c.txt"), "0 0 0 1 1")

	counts, err := CountLabels(fs, dir)
	if err != nil {
		t.Fatalf("CountLabels returned error: %v", err)
	}
	if diff := cmp.Diff(ClassCounts{1: 1, 2: 2}, counts); diff != "" {
		t.Fatalf("unexpected counts (-want +got):\n%s", diff)
	}
}

func TestCountLabelsMissingDirectory(t *testing.T) {
	t.Parallel()

	counts, err := CountLabels(afero.NewMemMapFs(), "does/not/exist")
	if err != nil {
		t.Fatalf("missing directory must not be an error, got %v", err)
	}
	if len(counts) != 0 {
		t.Fatalf("expected empty counts, got %v", counts)
	}
	if got := Classify(counts); got != NoData {
		t.Fatalf("expected no_data for missing directory, got %s", got)
	}
}

func TestCountLabelsMalformedLine(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeLabelFile(t, fs, filepath.Join("labels", "bad.txt"), "0 0 0 1 1", "x 0 0 1 1")

	_, err := CountLabels(fs, "labels")
	if err == nil {
		t.Fatalf("expected parse error for non-integer class id")
	}
	if !strings.Contains(err.Error(), "bad.txt:2") {
		t.Fatalf("expected error to name file and line, got %v", err)
	}
}

func TestCountLabelsSkipsBlankLines(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	dir := filepath.Join("data", "labels", "train")
	writeLabelFile(t, fs, filepath.Join(dir, "img1.txt"),
		"2 0.5 0.5 0.1 0.1",
		"",
		"   ",
		"2 0.1 0.1 0.2 0.2",
	)
	writeLabelFile(t, fs, filepath.Join(dir, "empty.txt"), "")

	counts, err := CountLabels(fs, dir)
	if err != nil {
		t.Fatalf("blank lines must not be errors: %v", err)
	}
	if diff := cmp.Diff(ClassCounts{2: 2}, counts); diff != "" {
		t.Fatalf("unexpected counts (-want +got):\n%s", diff)
	}
}

func TestLabelDirCounterNamesClasses(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeLabelFile(t, fs, filepath.Join("labels", "a.txt"), "0 1 1 1 1", "2 1 1 1 1", "7 1 1 1 1")

	counts, err := NewLabelDirCounter(fs, "labels").Count()
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	want := NamedCounts{"normal": 1, "foreign_body": 1, "class_7": 1}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Fatalf("unexpected named counts (-want +got):\n%s", diff)
	}
}

func TestFixedCounterReturnsCopy(t *testing.T) {
	t.Parallel()

	counter := FixedCounter{Counts: SampleBalance}
	counts, err := counter.Count()
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	counts["normal"] = 0
	if SampleBalance["normal"] != 150 {
		t.Fatalf("FixedCounter leaked its backing map")
	}
}
