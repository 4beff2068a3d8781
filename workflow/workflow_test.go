package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"chest-xray-pipeline/dataset"
	"chest-xray-pipeline/db"
	"chest-xray-pipeline/imbalance"

	"github.com/spf13/afero"
)

func TestAnalyzeDetectionEmptyWritesDefaultStrategy(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfgPath := filepath.Join("configs", "clavicle_config.yaml")
	res, err := Analyze(Options{
		Fs: fs, DataDir: "data", Mode: dataset.Detection, ConfigPath: cfgPath,
		MinSamples: imbalance.DefaultMinSamples, Provision: true, WriteConfig: true,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(res.Layout) != 6 || !res.Structure.OK() {
		t.Fatalf("expected provisioned detection layout, got %v / %+v", res.Layout, res.Structure)
	}
	if res.Analysis.Strategy != imbalance.NoData {
		t.Fatalf("expected no_data, got %s", res.Analysis.Strategy)
	}

	cfg, err := dataset.ReadConfig(fs, cfgPath)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if cfg.ImbalanceStrategy != imbalance.ModerateImbalance {
		t.Fatalf("expected moderate_imbalance fallback, got %s", cfg.ImbalanceStrategy)
	}
}

func TestAnalyzeDetectionCountsLabels(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	labels := filepath.Join("data", "labels", "train")
	for i := 0; i < 12; i++ {
		content := "0 0.5 0.5 0.1 0.1\n"
		if i == 0 {
			content += "1 0.5 0.5 0.1 0.1\n"
		}
		if err := afero.WriteFile(fs, filepath.Join(labels, fmt.Sprintf("img%02d.txt", i)), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write label: %v", err)
		}
	}

	res, err := Analyze(Options{Fs: fs, DataDir: "data", Mode: dataset.Detection, MinSamples: 10})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.Analysis.Counts["normal"] != 12 || res.Analysis.Strategy != imbalance.SevereImbalance {
		t.Fatalf("unexpected analysis: %+v", res.Analysis)
	}
	if res.ConfigWritten {
		t.Fatalf("config must not be written unless asked")
	}
}

func TestAnalyzeClassificationSample(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	res, err := Analyze(Options{
		Fs: fs, DataDir: "data", Mode: dataset.Classification, UseSample: true, Provision: true,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.Source != SourceSample || res.Analysis.TotalSamples != 280 {
		t.Fatalf("expected sample counts, got %+v", res)
	}
	if len(res.Layout) != 9 || len(res.Training) != 3 {
		t.Fatalf("unexpected classification layout %d / checks %d", len(res.Layout), len(res.Training))
	}
	if res.Training[0].Verdict != dataset.VerdictNoData {
		t.Fatalf("empty folders should report no_data, got %s", res.Training[0].Verdict)
	}
}

func TestAnalyzeClassificationEmptyIsNoData(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfgPath := filepath.Join("configs", "classification_config.yaml")
	res, err := Analyze(Options{
		Fs: fs, DataDir: "data", Mode: dataset.Classification, ConfigPath: cfgPath,
		Provision: true, WriteConfig: true,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.Analysis.TotalSamples != 0 || len(res.Analysis.Counts) != 3 {
		t.Fatalf("expected three empty class folders, got %v", res.Analysis.Counts)
	}
	if res.Analysis.Strategy != imbalance.NoData {
		t.Fatalf("zero images should be no_data, got %s", res.Analysis.Strategy)
	}

	cfg, err := dataset.ReadConfig(fs, cfgPath)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if cfg.ImbalanceStrategy != imbalance.ModerateImbalance {
		t.Fatalf("expected moderate_imbalance fallback, got %s", cfg.ImbalanceStrategy)
	}
}

func TestRecordStoresRun(t *testing.T) {
	t.Parallel()

	client, err := db.NewSQLiteClient(filepath.Join(t.TempDir(), "runs.sqlite3"))
	if err != nil {
		t.Fatalf("NewSQLiteClient failed: %v", err)
	}
	defer client.Close()

	res, err := Analyze(Options{Fs: afero.NewMemMapFs(), DataDir: "data", Mode: dataset.Detection, UseSample: true})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	run, err := Record(context.Background(), client, res)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	stored, ok, err := client.GetRun(context.Background(), run.ID)
	if err != nil || !ok {
		t.Fatalf("GetRun failed: ok=%v err=%v", ok, err)
	}
	if stored.Source != SourceSample || stored.Mode != string(dataset.Detection) {
		t.Fatalf("unexpected stored run: %+v", stored)
	}
}
