package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"chest-xray-pipeline/dataset"
	"chest-xray-pipeline/evaluation"
	"chest-xray-pipeline/imbalance"
	"chest-xray-pipeline/trainer"
	"chest-xray-pipeline/utils"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
)

// TestConfig holds test configuration
type TestConfig struct {
	ModelPath     string
	ImagePath     string
	DataDir       string
	RunsDir       string
	ServiceURL    string
	Comprehensive bool
	Limit         int
	OutputJSON    string
}

// SplitReport is the evaluation of one dataset split.
type SplitReport struct {
	Split  string             `json:"split"`
	Report *evaluation.Report `json:"report"`
}

func main() {
	_ = godotenv.Load()
	config := parseFlags()

	log.SetFlags(log.Ldate | log.Ltime)
	log.SetOutput(os.Stdout)
	log.Println("=== Model Testing Pipeline ===")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	osFs := afero.NewOsFs()
	if config.ModelPath == "" {
		config.ModelPath = findBestModel(osFs, config.RunsDir)
		if config.ModelPath == "" {
			fmt.Printf("No trained model found under %s, run train_model first\n", config.RunsDir)
			return
		}
	}
	if !utils.FileExists(config.ModelPath) {
		fmt.Printf("Model %s not found\n", config.ModelPath)
		return
	}
	log.Printf("Model: %s\n", config.ModelPath)
	log.Println()

	model, err := trainer.NewClient(config.ServiceURL).Open(ctx, config.ModelPath)
	if err != nil {
		log.Fatalf("ERROR: Failed to load model: %v", err)
	}
	defer model.Close()

	if !config.Comprehensive {
		testImage(ctx, model, config.ImagePath)
		return
	}

	var reports []SplitReport
	for _, split := range dataset.Splits {
		splitDir := filepath.Join(config.DataDir, "images", split)
		if exists, _ := afero.DirExists(osFs, splitDir); !exists {
			log.Printf("Skipping %s: %s not found\n", split, splitDir)
			continue
		}

		log.Printf("Testing %s split...\n", split)
		var bar *progressbar.ProgressBar
		report, err := evaluation.Evaluate(ctx, osFs, model, splitDir, evaluation.Options{
			Classes: imbalance.ClassNames,
			Limit:   config.Limit,
			Progress: func(done, total int) {
				if bar == nil {
					bar = progressbar.Default(int64(total), split)
				}
				_ = bar.Set(done)
			},
		})
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			model.Close()
			log.Fatalf("ERROR: Testing %s failed: %v", split, err)
		}

		printSplit(split, report)
		reports = append(reports, SplitReport{Split: split, Report: report})
	}

	if len(reports) == 0 {
		fmt.Println("No test images found")
		return
	}
	if config.OutputJSON != "" {
		if err := saveJSON(config.OutputJSON, reports); err != nil {
			log.Printf("WARNING: Failed to save report: %v\n", err)
		} else {
			fmt.Printf("Report saved to: %s\n", config.OutputJSON)
		}
	}
}

func parseFlags() TestConfig {
	config := TestConfig{}
	runsDir := utils.GetEnv("XRAY_RUNS_DIR", "runs")

	flag.StringVar(&config.ModelPath, "model", "",
		"Path to trained weights (default: newest best.pt under the runs directory)")
	flag.StringVar(&config.ImagePath, "image", "",
		"Single image to test")
	flag.StringVar(&config.DataDir, "data", utils.GetEnv("XRAY_DATA_DIR", "./data"),
		"Dataset root directory")
	flag.StringVar(&config.RunsDir, "runs", runsDir,
		"Directory holding training runs")
	flag.StringVar(&config.ServiceURL, "service", utils.GetEnv("MODEL_SERVICE_URL", trainer.DefaultServiceURL),
		"Model service URL")
	flag.BoolVar(&config.Comprehensive, "comprehensive", false,
		"Test every class folder of every split")
	flag.IntVar(&config.Limit, "limit", evaluation.DefaultLimit,
		"Images per class to test")
	flag.StringVar(&config.OutputJSON, "output", filepath.Join(runsDir, "test_report.json"),
		"Path to save the comprehensive report (empty to skip)")

	flag.Parse()

	if !config.Comprehensive && config.ImagePath == "" {
		log.Fatalf("ERROR: pass -comprehensive or -image")
	}
	return config
}

// findBestModel returns the most recently written best.pt below runsDir.
func findBestModel(fsys afero.Fs, runsDir string) string {
	type candidate struct {
		path    string
		modTime int64
	}
	var found []candidate
	_ = afero.Walk(fsys, runsDir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() && info.Name() == "best.pt" {
			found = append(found, candidate{path: path, modTime: info.ModTime().UnixNano()})
		}
		return nil
	})
	if len(found) == 0 {
		return ""
	}
	sort.Slice(found, func(i, j int) bool { return found[i].modTime > found[j].modTime })
	return found[0].path
}

func testImage(ctx context.Context, model trainer.Model, image string) {
	if !utils.FileExists(image) {
		fmt.Printf("Image %s not found\n", image)
		return
	}
	preds, err := model.Predict(ctx, trainer.PredictRequest{Source: image})
	if err != nil {
		model.Close()
		log.Fatalf("ERROR: Prediction failed: %v", err)
	}
	if len(preds) == 0 || !preds[0].IsClassification() {
		fmt.Printf("%s: no classification result\n", filepath.Base(image))
		return
	}
	fmt.Printf("%s: %s (%.1f%%)\n", filepath.Base(image), preds[0].Top1, preds[0].Confidence*100)
}

func printSplit(split string, report *evaluation.Report) {
	fmt.Printf("\n=== %s ===\n", split)
	for _, m := range report.ClassMetrics {
		fmt.Printf("  %-20s %d/%d correct (%.1f%%), avg confidence %.3f, %d available\n",
			m.ClassName, m.CorrectCount, m.Evaluated, m.Accuracy*100, m.AvgConfidence, m.Available)
	}
	fmt.Printf("  Overall: %d/%d (%.1f%%)\n", report.CorrectCount, report.Evaluated, report.OverallAccuracy*100)
}

func saveJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := utils.CreateFolder(dir); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
