package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"chest-xray-pipeline/dataset"
	"chest-xray-pipeline/db"
	"chest-xray-pipeline/imbalance"
	"chest-xray-pipeline/utils"
	"chest-xray-pipeline/workflow"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
	"github.com/spf13/afero"
)

func main() {
	_ = godotenv.Load()

	dataDir := flag.String("data", utils.GetEnv("XRAY_DATA_DIR", "./data"), "Dataset root directory")
	configPath := flag.String("config", utils.GetEnv("XRAY_CLASSIFICATION_CONFIG_PATH", filepath.Join("configs", "classification_config.yaml")), "Dataset config to write")
	noStore := flag.Bool("no-store", false, "Do not record the run in the run history")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime)
	log.SetOutput(os.Stdout)
	log.Println("=== Chest X-ray classification dataset analysis ===")
	log.Printf("Dataset: %s\n", *dataDir)
	log.Println()

	ctx := context.Background()
	logger := utils.GetLogger()

	log.Println("Step 1: Creating classification folders...")
	res, err := workflow.Analyze(workflow.Options{
		Fs:          afero.NewOsFs(),
		DataDir:     *dataDir,
		Mode:        dataset.Classification,
		ConfigPath:  *configPath,
		MinSamples:  utils.GetEnvInt("XRAY_MIN_SAMPLES", imbalance.DefaultMinSamples),
		Provision:   true,
		WriteConfig: true,
	})
	if err != nil {
		log.Fatalf("ERROR: Analysis failed: %v", err)
	}
	log.Printf("✓ %d folders ready\n", len(res.Layout))
	log.Println()

	log.Println("Step 2: Dataset structure")
	if res.Structure.OK() {
		log.Println("✓ Required folders present")
	} else {
		for _, missing := range res.Structure.Missing {
			log.Printf("✗ Missing folder: %s\n", missing)
		}
	}
	log.Println()

	log.Println("Step 3: Class balance")
	imbalance.WriteReport(os.Stdout, res.Analysis)
	log.Println()

	log.Println("Step 4: Training data check")
	for _, check := range res.Training {
		mark := "✓"
		if check.Verdict != dataset.VerdictOK {
			mark = "✗"
		}
		log.Printf("  %s %-20s %4d images (%s)\n", mark, check.Class, check.Images, check.Verdict)
	}
	log.Println()
	log.Printf("✓ Config written to %s (imbalance_strategy: %s)\n", res.ConfigPath, res.Config.ImbalanceStrategy)

	if *noStore {
		return
	}
	client, err := db.NewDBClient(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "run history unavailable", slog.Any("error", xerrors.New(err)))
		return
	}
	defer client.Close()
	if _, err := workflow.Record(ctx, client, res); err != nil {
		logger.ErrorContext(ctx, "failed to record analysis run", slog.Any("error", xerrors.New(err)))
	}
}
