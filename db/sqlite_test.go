package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"chest-xray-pipeline/imbalance"
	"chest-xray-pipeline/models"

	"github.com/google/go-cmp/cmp"
)

func newTestClient(t *testing.T) *SQLiteClient {
	t.Helper()
	client, err := NewSQLiteClient(filepath.Join(t.TempDir(), "nested", "runs.sqlite3"))
	if err != nil {
		t.Fatalf("NewSQLiteClient failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func sampleRun(t *testing.T, counts imbalance.NamedCounts) *models.AnalysisRun {
	t.Helper()
	analysis, err := imbalance.Analyze(imbalance.FixedCounter{Counts: counts}, imbalance.Options{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	return models.NewAnalysisRun(analysis, "detection", "fixture", "configs/clavicle_config.yaml")
}

func TestStoreAndGetRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)
	run := sampleRun(t, imbalance.SampleBalance)

	if err := client.StoreRun(ctx, run); err != nil {
		t.Fatalf("StoreRun failed: %v", err)
	}

	got, ok, err := client.GetRun(ctx, run.ID)
	if err != nil || !ok {
		t.Fatalf("GetRun failed: ok=%v err=%v", ok, err)
	}
	if got.Strategy != imbalance.Balanced || got.Ratio != 3 {
		t.Fatalf("unexpected stored run: %+v", got)
	}
	if diff := cmp.Diff(run.Counts, got.Counts); diff != "" {
		t.Fatalf("counts differ (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(run.Recommendations, got.Recommendations); diff != "" {
		t.Fatalf("recommendations differ (-want +got):\n%s", diff)
	}
	if got.Weights["2"] != 2.5 {
		t.Fatalf("unexpected weights: %v", got.Weights)
	}

	if _, ok, err := client.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%v err=%v", ok, err)
	}
}

func TestGetRunsNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		run := sampleRun(t, imbalance.NamedCounts{"normal": 10 * (i + 1), "foreign_body": 0})
		run.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := client.StoreRun(ctx, run); err != nil {
			t.Fatalf("StoreRun failed: %v", err)
		}
		ids = append(ids, run.ID)
	}

	runs, err := client.GetRuns(ctx, 2)
	if err != nil {
		t.Fatalf("GetRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Fatalf("unexpected order: %+v", runs)
	}
	if !runs[0].Ratio.IsInf() || runs[0].Strategy != imbalance.SevereImbalance {
		t.Fatalf("infinite ratio not restored: %+v", runs[0])
	}

	all, err := client.GetRuns(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d (%v)", len(all), err)
	}
}

func TestNewDBClientRejectsUnknownType(t *testing.T) {
	t.Setenv("DB_TYPE", "postgres")
	if _, err := NewDBClient(context.Background()); err == nil {
		t.Fatalf("expected error for unsupported backend")
	}
}

func TestNewDBClientDefaultsToSQLite(t *testing.T) {
	t.Setenv("DB_TYPE", "")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "pipeline.sqlite3"))

	client, err := NewDBClient(context.Background())
	if err != nil {
		t.Fatalf("NewDBClient failed: %v", err)
	}
	defer client.Close()
	if _, ok := client.(*SQLiteClient); !ok {
		t.Fatalf("expected SQLite backend, got %T", client)
	}
}
