package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"chest-xray-pipeline/models"
	"chest-xray-pipeline/predictions"
	"chest-xray-pipeline/trainer"
	"chest-xray-pipeline/utils"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
)

func main() {
	_ = godotenv.Load()

	runsDir := utils.GetEnv("XRAY_RUNS_DIR", "runs")
	defaultModel := filepath.Join(runsDir, "classify", "train", "weights", "best.pt")

	modelFlag := flag.String("model", defaultModel, "Path to trained weights")
	sourceFlag := flag.String("source", "", "Image file or folder to predict")
	confFlag := flag.Float64("conf", 0.5, "Confidence threshold")
	saveFlag := flag.Bool("save", false, "Ask the service to save annotated images")
	serviceFlag := flag.String("service", utils.GetEnv("MODEL_SERVICE_URL", trainer.DefaultServiceURL), "Model service URL")
	logFlag := flag.String("log", filepath.Join(runsDir, predictions.DefaultFile), "Prediction log file (empty to skip)")
	flag.Parse()

	if *sourceFlag == "" {
		log.Fatalf("ERROR: -source is required")
	}
	if !utils.FileExists(*modelFlag) {
		fmt.Printf("Model %s not found, train it first with train_model\n", *modelFlag)
		return
	}
	if !utils.FileExists(*sourceFlag) {
		fmt.Printf("Source %s not found\n", *sourceFlag)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	model, err := trainer.NewClient(*serviceFlag).Open(ctx, *modelFlag)
	if err != nil {
		log.Fatalf("ERROR: Failed to load model: %v", err)
	}
	defer model.Close()

	fmt.Printf("Predicting %s with %s (conf=%.2f)\n\n", *sourceFlag, *modelFlag, *confFlag)
	start := time.Now()
	preds, err := model.Predict(ctx, trainer.PredictRequest{Source: *sourceFlag, Confidence: *confFlag, Save: *saveFlag})
	if err != nil {
		model.Close()
		log.Fatalf("ERROR: Prediction failed: %v", err)
	}

	records := make([]*models.PredictionRecord, 0, len(preds))
	for _, p := range preds {
		printPrediction(p)
		record, err := predictions.FromPrediction(*modelFlag, *confFlag, p)
		if err != nil {
			log.Printf("WARNING: %v\n", err)
			continue
		}
		records = append(records, record)
	}

	fmt.Printf("\n%d predictions in %s\n", len(preds), time.Since(start).Round(time.Millisecond))

	if *logFlag != "" {
		if err := predictions.NewStore(*logFlag).Save(records...); err != nil {
			logger := utils.GetLogger()
			logger.ErrorContext(ctx, "failed to save predictions", slog.Any("error", xerrors.New(err)))
		}
	}
}

func printPrediction(p trainer.Prediction) {
	fmt.Printf("=== %s ===\n", filepath.Base(p.Source))
	if p.IsClassification() {
		fmt.Printf("  Prediction: %s (%.1f%%)\n", p.Top1, p.Confidence*100)
		names := make([]string, 0, len(p.Probs))
		for name := range p.Probs {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool { return p.Probs[names[i]] > p.Probs[names[j]] })
		for _, name := range names {
			fmt.Printf("    %-20s %.3f\n", name, p.Probs[name])
		}
		return
	}
	if len(p.Boxes) == 0 {
		fmt.Println("  No detections")
		return
	}
	for _, box := range p.Boxes {
		fmt.Printf("  %s (%.2f) at [%.0f %.0f %.0f %.0f]\n",
			box.ClassName, box.Confidence, box.XYXY[0], box.XYXY[1], box.XYXY[2], box.XYXY[3])
	}
}
