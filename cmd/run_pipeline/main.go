package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"chest-xray-pipeline/pipeline"
	"chest-xray-pipeline/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

func main() {
	_ = godotenv.Load()
	defaults := pipeline.DefaultConfig()
	runsDir := utils.GetEnv("XRAY_RUNS_DIR", "runs")

	binDir := flag.String("bin", "", "Directory with the built tools (default: look them up on PATH)")
	goRun := flag.Bool("go-run", false, "Start the tools with `go run ./cmd/<tool>` from the project root")
	dataDir := flag.String("data", utils.GetEnv("XRAY_DATA_DIR", defaults.DataDir), "Dataset root directory")
	dataYAML := flag.String("config", defaults.DataYAML, "Dataset config that must exist before running")
	modelPath := flag.String("model", filepath.Join(runsDir, "classify", "train", "weights", "best.pt"), "Trained weights location")
	conf := flag.Float64("conf", utils.GetEnvFloat("XRAY_PIPELINE_CONF", defaults.Confidence), "Confidence threshold for the prediction steps")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	driver := &pipeline.Driver{
		Fs:     afero.NewOsFs(),
		Runner: pipeline.ExecRunner{BinDir: *binDir, GoRun: *goRun},
		Config: pipeline.Config{
			DataDir:    *dataDir,
			DataYAML:   *dataYAML,
			ModelPath:  *modelPath,
			Confidence: *conf,
		},
		Out: os.Stdout,
	}

	summary, err := driver.Run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrPrerequisites):
		fmt.Println("\nPrerequisites missing, fix the items marked ✗ and retry")
		return
	case errors.Is(err, context.Canceled):
		fmt.Println("\nPipeline interrupted by user")
		os.Exit(130)
	case err != nil:
		log.Fatalf("ERROR: %v", err)
	}

	fmt.Println()
	for _, stage := range summary.Stages {
		fmt.Printf("Stage %d %-18s %s\n", stage.Number, stage.Name, stage.Status)
	}
	if summary.ModelSize != "" {
		fmt.Printf("Model size: %s\n", summary.ModelSize)
	}
	if !summary.Completed() {
		fmt.Printf("Stopped at: %s\n", summary.StoppedAt)
	}
}
