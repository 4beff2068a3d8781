package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"chest-xray-pipeline/evaluation"
	"chest-xray-pipeline/imbalance"
	"chest-xray-pipeline/trainer"
	"chest-xray-pipeline/utils"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"gonum.org/v1/gonum/stat"
)

// EvaluationConfig holds evaluation parameters
type EvaluationConfig struct {
	ModelPath  string
	TestDir    string
	RunDir     string
	ServiceURL string
	Limit      int
	PlotPath   string
	ReportPath string
}

func main() {
	_ = godotenv.Load()
	config := parseFlags()

	log.SetFlags(log.Ldate | log.Ltime)
	log.SetOutput(os.Stdout)
	log.Println("=== Model Results Analysis ===")
	log.Printf("Model: %s\n", config.ModelPath)
	log.Printf("Test data: %s\n", config.TestDir)
	log.Println()

	if !utils.FileExists(config.ModelPath) {
		fmt.Printf("Model %s not found, train it first with train_model -mode classify\n", config.ModelPath)
		return
	}
	osFs := afero.NewOsFs()
	if exists, _ := afero.DirExists(osFs, config.TestDir); !exists {
		fmt.Printf("Test folder %s not found\n", config.TestDir)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Println("Loading trained model...")
	model, err := trainer.NewClient(config.ServiceURL).Open(ctx, config.ModelPath)
	if err != nil {
		log.Fatalf("ERROR: Failed to load model: %v", err)
	}
	defer model.Close()

	log.Println("Evaluating model performance...")
	var bar *progressbar.ProgressBar
	report, err := evaluation.Evaluate(ctx, osFs, model, config.TestDir, evaluation.Options{
		Classes: imbalance.ClassNames,
		Limit:   config.Limit,
		Progress: func(done, total int) {
			if bar == nil {
				bar = progressbar.Default(int64(total), "evaluating")
			}
			_ = bar.Set(done)
		},
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		model.Close()
		log.Fatalf("ERROR: Evaluation failed: %v", err)
	}

	printEvaluationReport(report)

	if config.PlotPath != "" {
		plotted, err := evaluation.PlotConfidence(report, config.PlotPath)
		switch {
		case err != nil:
			log.Printf("WARNING: Failed to plot confidence: %v\n", err)
		case plotted:
			fmt.Printf("Confidence histogram saved to: %s\n", config.PlotPath)
		}
	}

	if config.ReportPath != "" {
		if err := saveReport(report, config.ReportPath); err != nil {
			log.Printf("WARNING: Failed to save report: %v\n", err)
		} else {
			fmt.Printf("Report saved to: %s\n", config.ReportPath)
		}
	}

	artifacts, err := evaluation.TrainingArtifacts(osFs, config.RunDir)
	if err != nil {
		log.Printf("WARNING: %v\n", err)
	}
	if len(artifacts) > 0 {
		fmt.Println("\nTraining plots:")
		for _, path := range artifacts {
			fmt.Printf("  %s\n", path)
		}
	}

	fmt.Println()
	printVerdict(report)
}

func parseFlags() EvaluationConfig {
	config := EvaluationConfig{}
	runsDir := utils.GetEnv("XRAY_RUNS_DIR", "runs")
	runDir := filepath.Join(runsDir, "classify", "train")

	flag.StringVar(&config.ModelPath, "model", filepath.Join(runDir, "weights", "best.pt"),
		"Path to trained weights")
	flag.StringVar(&config.TestDir, "test-dir", filepath.Join(utils.GetEnv("XRAY_DATA_DIR", "./data"), "images", "test"),
		"Directory containing test images organized by class folders")
	flag.StringVar(&config.RunDir, "run-dir", runDir,
		"Training run directory with the trainer's plots")
	flag.StringVar(&config.ServiceURL, "service", utils.GetEnv("MODEL_SERVICE_URL", trainer.DefaultServiceURL),
		"Model service URL")
	flag.IntVar(&config.Limit, "limit", evaluation.DefaultLimit,
		"Images per class to evaluate")
	flag.StringVar(&config.PlotPath, "plot", filepath.Join(runsDir, "confidence_analysis.png"),
		"Path to save the confidence histogram (empty to skip)")
	flag.StringVar(&config.ReportPath, "report", filepath.Join(runsDir, "evaluation_report.json"),
		"Path to save evaluation report (empty to skip)")

	flag.Parse()
	return config
}

func printEvaluationReport(report *evaluation.Report) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("EVALUATION RESULTS")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Printf("Overall Accuracy: %.2f%% (%d/%d correct)\n",
		report.OverallAccuracy*100, report.CorrectCount, report.Evaluated)
	fmt.Printf("Processing Time: %.2f seconds\n", report.ProcessingTime.Seconds())
	fmt.Println()

	fmt.Println("Per-Class Performance:")
	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("%-20s %8s %10s %8s %10s\n", "Class", "Accuracy", "Confidence", "Std", "Samples")
	fmt.Println(strings.Repeat("-", 80))

	sorted := make([]evaluation.ClassMetrics, len(report.ClassMetrics))
	copy(sorted, report.ClassMetrics)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Accuracy > sorted[j].Accuracy
	})

	for _, m := range sorted {
		status := "✓"
		if m.Accuracy < 0.7 {
			status = "⚠"
		}
		std := 0.0
		if values := m.Confidences(); len(values) > 1 {
			std = stat.StdDev(values, nil)
		}
		fmt.Printf("%-20s %7.1f%% %9.1f%% %8.3f %6d/%-4d %s\n",
			m.ClassName, m.Accuracy*100, m.AvgConfidence*100, std, m.Evaluated, m.Available, status)
	}
	fmt.Println()

	printConfusionMatrix(report.ConfusionMatrix)
	printMisclassifications(report.ClassMetrics)
}

func printConfusionMatrix(matrix map[string]map[string]int) {
	if len(matrix) == 0 {
		return
	}

	fmt.Println("Confusion Matrix:")
	fmt.Println(strings.Repeat("-", 80))

	seen := make(map[string]bool)
	var labels []string
	for trueLabel, row := range matrix {
		for _, label := range append([]string{trueLabel}, keys(row)...) {
			if !seen[label] {
				seen[label] = true
				labels = append(labels, label)
			}
		}
	}
	sort.Strings(labels)

	fmt.Printf("%-15s", "Actual \\ Pred")
	for _, label := range labels {
		fmt.Printf(" %6s", truncate(label, 6))
	}
	fmt.Println()

	for _, trueLabel := range labels {
		fmt.Printf("%-15s", truncate(trueLabel, 15))
		for _, predLabel := range labels {
			if count := matrix[trueLabel][predLabel]; count > 0 {
				fmt.Printf(" %6d", count)
			} else {
				fmt.Printf(" %6s", ".")
			}
		}
		fmt.Println()
	}
	fmt.Println()
}

func keys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func printMisclassifications(metrics []evaluation.ClassMetrics) {
	total := 0
	for _, m := range metrics {
		for _, o := range m.Outcomes {
			if !o.Correct {
				total++
			}
		}
	}

	if total == 0 {
		fmt.Println("✓ No misclassifications!")
		return
	}

	fmt.Printf("Misclassifications (%d total):\n", total)
	fmt.Println(strings.Repeat("-", 80))
	for _, m := range metrics {
		for _, o := range m.Outcomes {
			if o.Correct {
				continue
			}
			fmt.Printf("  %s: %s → predicted as '%s' (%.1f%% confidence)\n",
				m.ClassName, filepath.Base(o.Image), o.PredClass, o.Confidence*100)
		}
	}
	fmt.Println()
}

func printVerdict(report *evaluation.Report) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("VERDICT")
	fmt.Println(strings.Repeat("=", 80))

	accuracy := report.OverallAccuracy * 100

	var verdict, recommendation string
	switch {
	case report.Evaluated == 0:
		verdict = "✗ NO DATA"
		recommendation = "Add test images under the class folders."
	case accuracy >= 90:
		verdict = "✓ EXCELLENT"
		recommendation = "Model separates the classes reliably."
	case accuracy >= 80:
		verdict = "✓ GOOD"
		recommendation = "Model works well. Consider adding more diverse training data."
	case accuracy >= 70:
		verdict = "⚠ FAIR"
		recommendation = "Model has significant room for improvement. Add more training data."
	default:
		verdict = "✗ POOR"
		recommendation = "Model needs substantial improvement. Check class balance and add more samples."
	}

	fmt.Printf("Overall Assessment: %s\n", verdict)
	fmt.Printf("Accuracy: %.2f%%\n", accuracy)
	fmt.Printf("Recommendation: %s\n", recommendation)
	fmt.Println(strings.Repeat("=", 80))
}

func saveReport(report *evaluation.Report, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := utils.CreateFolder(dir); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-2] + ".."
}
