package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"chest-xray-pipeline/dataset"
	"chest-xray-pipeline/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

func main() {
	_ = godotenv.Load()

	dataDir := flag.String("data", utils.GetEnv("XRAY_DATA_DIR", "./data"), "Dataset root directory")
	split := flag.String("split", "train", "Split to check (train, val or test)")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime)
	log.SetOutput(os.Stdout)
	log.Println("=== Training data check ===")

	fs := afero.NewOsFs()
	splitDir := filepath.Join(*dataDir, "images", *split)
	if exists, _ := afero.DirExists(fs, splitDir); !exists {
		log.Printf("Folder %s not found, nothing to check\n", splitDir)
		return
	}

	checks, err := dataset.CheckTrainingData(fs, *dataDir, *split)
	if err != nil {
		log.Fatalf("ERROR: Failed to check %s: %v", splitDir, err)
	}

	ready := 0
	for _, check := range checks {
		switch check.Verdict {
		case dataset.VerdictNoData:
			log.Printf("✗ %-20s no images\n", check.Class)
		case dataset.VerdictInsufficient:
			log.Printf("✗ %-20s %d images, need at least %d\n", check.Class, check.Images, dataset.MinTrainingImages)
		default:
			log.Printf("✓ %-20s %d images\n", check.Class, check.Images)
			ready++
		}
	}

	total, verdict := dataset.TotalVerdict(checks)
	log.Println()
	log.Printf("Total: %d images, %d/%d classes ready\n", total, ready, len(checks))
	switch verdict {
	case dataset.VerdictNoData:
		log.Println("✗ No training data, put images into the class folders first")
	case dataset.VerdictInsufficient:
		log.Printf("✗ Only %d images, at least %d are needed for training\n", total, dataset.MinTrainingImages)
	default:
		log.Println("✓ Enough images to train")
		if ready < len(checks) {
			log.Println("Add more images to the classes marked ✗ for reliable results")
		}
	}
}
