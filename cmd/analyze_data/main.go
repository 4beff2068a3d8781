package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"chest-xray-pipeline/advisor"
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
	configPath := flag.String("config", utils.GetEnv("XRAY_CONFIG_PATH", filepath.Join("configs", "clavicle_config.yaml")), "Dataset config to write")
	sample := flag.Bool("sample", false, "Analyze the built-in sample counts instead of scanning label files")
	explain := flag.Bool("explain", false, "Ask the language model for improvement advice (needs GEMINI_API_KEY)")
	noStore := flag.Bool("no-store", false, "Do not record the run in the run history")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime)
	log.SetOutput(os.Stdout)
	log.Println("=== Clavicle detection dataset analysis ===")
	log.Printf("Dataset: %s\n", *dataDir)
	log.Println()

	ctx := context.Background()
	logger := utils.GetLogger()

	log.Println("Step 1: Creating dataset structure...")
	res, err := workflow.Analyze(workflow.Options{
		Fs:          afero.NewOsFs(),
		DataDir:     *dataDir,
		Mode:        dataset.Detection,
		ConfigPath:  *configPath,
		UseSample:   *sample,
		MinSamples:  utils.GetEnvInt("XRAY_MIN_SAMPLES", imbalance.DefaultMinSamples),
		Provision:   true,
		WriteConfig: true,
	})
	if err != nil {
		log.Fatalf("ERROR: Analysis failed: %v", err)
	}
	for _, dir := range res.Layout {
		log.Printf("  ✓ %s\n", dir)
	}
	log.Println()

	log.Printf("Step 2: Class balance (%s counts)\n", res.Source)
	imbalance.WriteReport(os.Stdout, res.Analysis)
	if res.Analysis.Strategy == imbalance.NoData {
		log.Printf("No label files found, config uses %s\n", res.Config.ImbalanceStrategy)
	}
	log.Println()

	log.Printf("Step 3: ✓ Config written to %s (imbalance_strategy: %s)\n", res.ConfigPath, res.Config.ImbalanceStrategy)
	log.Println()

	log.Println("Step 4: Improvement advice")
	var primary advisor.Advisor
	if *explain {
		if key := utils.GetEnv("GEMINI_API_KEY", ""); key != "" {
			gemini, err := advisor.NewGeminiAdvisor(ctx, key)
			if err != nil {
				logger.ErrorContext(ctx, "failed to create gemini advisor", slog.Any("error", xerrors.New(err)))
			} else {
				primary = gemini
			}
		} else {
			log.Println("GEMINI_API_KEY not set, using built-in advice")
		}
	}
	lines, _ := advisor.WithFallback{
		Primary: primary,
		OnError: func(err error) {
			logger.ErrorContext(ctx, "advisor failed, using built-in advice", slog.Any("error", xerrors.New(err)))
		},
	}.Advise(ctx, res.Analysis)
	for _, line := range lines {
		log.Printf("  %s\n", line)
	}

	if *noStore {
		return
	}
	client, err := db.NewDBClient(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "run history unavailable", slog.Any("error", xerrors.New(err)))
		return
	}
	defer client.Close()
	run, err := workflow.Record(ctx, client, res)
	if err != nil {
		logger.ErrorContext(ctx, "failed to record analysis run", slog.Any("error", xerrors.New(err)))
		return
	}
	log.Printf("\nRun recorded: %s\n", run.ID)
}
