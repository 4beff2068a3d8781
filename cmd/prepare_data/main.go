package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"chest-xray-pipeline/metadata"
	"chest-xray-pipeline/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", filepath.Join(utils.GetEnv("XRAY_DATA_DIR", "./data"), "nih"), "Directory holding the NIH metadata CSV")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime)
	log.SetOutput(os.Stdout)
	log.Println("=== NIH ChestX-ray14 metadata preparation ===")
	log.Printf("Metadata: %s\n", filepath.Join(*dir, metadata.MetadataFile))
	log.Println()

	summary, err := metadata.Prepare(afero.NewOsFs(), *dir)
	if err != nil {
		log.Fatalf("ERROR: Failed to prepare metadata: %v", err)
	}

	if summary.Created {
		log.Printf("Metadata missing or invalid, wrote %d demo rows\n", summary.Rows)
	} else {
		log.Printf("✓ Loaded %d rows\n", summary.Rows)
	}
	log.Println()

	log.Println("Finding distribution:")
	for _, entry := range summary.Distribution {
		log.Printf("  %-20s %d\n", entry.Finding, entry.Count)
	}
	log.Println()

	if summary.Fallback {
		log.Printf("No '%s' rows, using the first %d images as normal\n", metadata.NoFinding, len(summary.Normal))
	}
	log.Printf("✓ %d normal images listed in %s\n", len(summary.Normal), summary.NormalPath)
	log.Printf("✓ Distribution written to %s\n", summary.DistPath)
}
