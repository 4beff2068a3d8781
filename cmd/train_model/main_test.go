package main

import (
	"path/filepath"
	"testing"

	"chest-xray-pipeline/dataset"
	"chest-xray-pipeline/imbalance"

	"github.com/spf13/afero"
)

func writeImages(t *testing.T, fs afero.Fs, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, "img"+string(rune('a'+i))+".jpg")
		if err := afero.WriteFile(fs, path, []byte("jpg"), 0644); err != nil {
			t.Fatalf("failed to write image: %v", err)
		}
	}
}

func TestResolveDataRejectsEmptyClassFolders(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	if _, err := dataset.Provision(fs, "data", dataset.Classification); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	if _, _, ok := resolveData(fs, Config{Mode: dataset.Classification, DataDir: "data"}); ok {
		t.Fatal("training must not start without any images")
	}
}

func TestResolveDataClassification(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	train := filepath.Join("data", "images", "train")
	writeImages(t, fs, filepath.Join(train, "normal"), 12)
	writeImages(t, fs, filepath.Join(train, "foreign_body"), 2)

	data, strategy, ok := resolveData(fs, Config{Mode: dataset.Classification, DataDir: "data"})
	if !ok {
		t.Fatal("expected training data to resolve")
	}
	if data != "data" || strategy != imbalance.ModerateImbalance {
		t.Fatalf("got data %q strategy %s", data, strategy)
	}
}

func TestResolveDataDetectionNeedsConfig(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfgPath := filepath.Join("configs", "clavicle_config.yaml")
	config := Config{Mode: dataset.Detection, DataDir: "data", ConfigPath: cfgPath}
	if _, _, ok := resolveData(fs, config); ok {
		t.Fatal("detection training needs the dataset config")
	}

	if err := dataset.WriteConfig(fs, cfgPath, dataset.DefaultConfig(imbalance.SevereImbalance)); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}
	data, strategy, ok := resolveData(fs, config)
	if !ok || data != cfgPath || strategy != imbalance.SevereImbalance {
		t.Fatalf("got %q %s %v", data, strategy, ok)
	}
}
