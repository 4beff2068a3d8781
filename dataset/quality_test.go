package dataset

import (
	"fmt"
	"path/filepath"
	"testing"

	"chest-xray-pipeline/imbalance"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func addImages(t *testing.T, fs afero.Fs, dir string, n int, ext string) {
	t.Helper()
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("img_%03d%s", i, ext))
		if err := afero.WriteFile(fs, path, []byte{0xff, 0xd8}, 0644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
}

func TestCheckStructure(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	report, err := CheckStructure(fs, "data")
	if err != nil {
		t.Fatalf("CheckStructure failed: %v", err)
	}
	if report.OK() || len(report.Missing) != 2 {
		t.Fatalf("expected both folders missing, got %+v", report)
	}

	if _, err := Provision(fs, "data", Detection); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	report, err = CheckStructure(fs, "data")
	if err != nil {
		t.Fatalf("CheckStructure failed: %v", err)
	}
	if !report.OK() {
		t.Fatalf("expected structure to be complete, missing %v", report.Missing)
	}
}

func TestCountImagesIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	addImages(t, fs, "imgs", 2, ".PNG")
	addImages(t, fs, "imgs", 3, ".jpeg")
	if err := afero.WriteFile(fs, filepath.Join("imgs", "readme.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write readme: %v", err)
	}

	count, err := CountImages(fs, "imgs")
	if err != nil {
		t.Fatalf("CountImages failed: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected 5 images, got %d", count)
	}
}

func TestCheckTrainingDataVerdicts(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	base := "data"
	addImages(t, fs, filepath.Join(base, "images", "train", "normal"), 12, ".png")
	addImages(t, fs, filepath.Join(base, "images", "train", "clavicle_fracture"), 9, ".jpg")

	checks, err := CheckTrainingData(fs, base, "train")
	if err != nil {
		t.Fatalf("CheckTrainingData failed: %v", err)
	}
	want := []ClassCheck{
		{Class: "normal", Images: 12, Verdict: VerdictOK},
		{Class: "clavicle_fracture", Images: 9, Verdict: VerdictInsufficient},
		{Class: "foreign_body", Images: 0, Verdict: VerdictNoData},
	}
	if diff := cmp.Diff(want, checks); diff != "" {
		t.Fatalf("unexpected verdicts (-want +got):\n%s", diff)
	}
}

func TestTotalVerdict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		images []int
		want   Verdict
	}{
		{"nothing", []int{0, 0, 0}, VerdictNoData},
		{"nine in total", []int{4, 3, 2}, VerdictInsufficient},
		{"ten spread over classes", []int{4, 3, 3}, VerdictOK},
		{"one class carries the split", []int{10, 0, 0}, VerdictOK},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var checks []ClassCheck
			sum := 0
			for _, n := range tc.images {
				checks = append(checks, ClassCheck{Images: n, Verdict: verdictFor(n)})
				sum += n
			}
			total, got := TotalVerdict(checks)
			if total != sum || got != tc.want {
				t.Fatalf("TotalVerdict(%v) = %d, %s, want %d, %s", tc.images, total, got, sum, tc.want)
			}
		})
	}
}

func TestImageFolderCounterSkipsMissingFolders(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	dir := filepath.Join("data", "images", "train")
	addImages(t, fs, filepath.Join(dir, "normal"), 4, ".png")
	if err := fs.MkdirAll(filepath.Join(dir, "foreign_body"), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	counts, err := NewImageFolderCounter(fs, dir).Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if diff := cmp.Diff(imbalance.NamedCounts{"normal": 4, "foreign_body": 0}, counts); diff != "" {
		t.Fatalf("unexpected counts (-want +got):\n%s", diff)
	}
	if got := imbalance.Classify(counts); got != imbalance.SevereImbalance {
		t.Fatalf("empty class folder should force severe_imbalance, got %s", got)
	}
}
