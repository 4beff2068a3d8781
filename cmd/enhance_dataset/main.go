package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"chest-xray-pipeline/advisor"
	"chest-xray-pipeline/imbalance"
	"chest-xray-pipeline/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

func main() {
	_ = godotenv.Load()

	dataDir := flag.String("data", utils.GetEnv("XRAY_DATA_DIR", "./data"), "Dataset root directory")
	sample := flag.Bool("sample", false, "Plan against the built-in sample counts")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime)
	log.SetOutput(os.Stdout)
	log.Println("=== Dataset enhancement plan ===")
	log.Println()

	var counter imbalance.Counter = imbalance.NewLabelDirCounter(afero.NewOsFs(), filepath.Join(*dataDir, "labels", "train"))
	if *sample {
		counter = imbalance.FixedCounter{Counts: imbalance.SampleBalance}
	}
	current, err := counter.Count()
	if err != nil {
		log.Fatalf("ERROR: Failed to count labels: %v", err)
	}

	log.Println("Step 1: Current balance")
	if len(current) == 0 {
		log.Println("  (no labels found)")
	}
	for _, name := range current.Names() {
		log.Printf("  %-20s %d\n", name, current[name])
	}
	log.Println()

	log.Println("Step 2: Recommendations to reach the target counts")
	plan := imbalance.Plan(current, imbalance.DefaultTargets)
	if len(plan) == 0 {
		log.Println("✓ All classes are at their targets")
	}
	for _, rec := range plan {
		log.Printf("  %-20s %4d -> %4d: %s\n", rec.Class, rec.Current, rec.Target, rec)
	}
	log.Println()

	log.Println("Step 3: Improvement methods")
	for i, method := range advisor.ImprovementMethods {
		log.Printf("  %d. %s\n", i+1, method)
	}
}
