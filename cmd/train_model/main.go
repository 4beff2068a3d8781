package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"chest-xray-pipeline/dataset"
	"chest-xray-pipeline/imbalance"
	"chest-xray-pipeline/trainer"
	"chest-xray-pipeline/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

// Config holds training configuration
type Config struct {
	Mode       dataset.Mode
	DataDir    string
	ConfigPath string
	ServiceURL string
	Epochs     int
	Device     string
	Project    string
}

func main() {
	_ = godotenv.Load()
	config := parseFlags()

	log.SetFlags(log.Ldate | log.Ltime)
	log.SetOutput(os.Stdout)
	log.Printf("=== Chest X-ray %s training ===\n", config.Mode)
	log.Printf("Model service: %s\n", config.ServiceURL)
	log.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fs := afero.NewOsFs()
	startTime := time.Now()

	// Step 1: Resolve the training data
	log.Println("Step 1: Resolving training data...")
	data, strategy, ok := resolveData(fs, config)
	if !ok {
		return
	}
	log.Printf("Training data: %s\n", data)
	log.Printf("Imbalance strategy: %s\n", strategy)
	log.Println()

	preset := trainer.ClassificationPreset(data)
	if config.Mode == dataset.Detection {
		preset = trainer.DetectionPreset(data)
	}
	req := preset.Request
	if config.Epochs > 0 {
		req.Epochs = config.Epochs
	}
	req.Project = filepath.Join(config.Project, string(req.Task))
	req.Name = "train"
	if strategy == imbalance.SevereImbalance || strategy == imbalance.ModerateImbalance {
		req.ClassWeights = imbalance.NewStaticWeights().Weights(nil)
	}

	// Step 2: Check the model service
	log.Println("Step 2: Checking model service...")
	client := trainer.NewClient(config.ServiceURL)
	health, err := client.HealthCheck(ctx)
	if err != nil {
		log.Fatalf("ERROR: Model service unavailable: %v", err)
	}
	req.Device = trainer.ResolveDevice(health)
	if config.Device != "" {
		req.Device = config.Device
	}
	log.Printf("✓ Service %s, GPUs: %d, device: %s\n", health.Status, health.GPUCount, req.Device)
	log.Println()

	// Step 3: Train
	log.Printf("Step 3: Training %s from %s...\n", req.Task, preset.Weights)
	log.Printf("  epochs=%d imgsz=%d batch=%d patience=%d lr0=%g\n",
		req.Epochs, req.ImageSize, req.Batch, req.Patience, req.LearningRate)

	model, err := client.Open(ctx, preset.Weights)
	if err != nil {
		log.Fatalf("ERROR: Failed to load %s: %v", preset.Weights, err)
	}
	defer model.Close()

	result, err := model.Train(ctx, req)
	if err != nil {
		model.Close()
		log.Fatalf("ERROR: Training failed: %v", err)
	}
	log.Println()

	printTrainingSummary(result, startTime)
}

func parseFlags() Config {
	config := Config{}
	var mode string

	flag.StringVar(&mode, "mode", "detect",
		"Training mode: detect (clavicle detector) or classify (image classifier)")
	flag.StringVar(&config.DataDir, "data", utils.GetEnv("XRAY_DATA_DIR", "./data"),
		"Dataset root directory")
	flag.StringVar(&config.ConfigPath, "config", "",
		"Dataset config for detection (default from XRAY_CONFIG_PATH)")
	flag.StringVar(&config.ServiceURL, "service", utils.GetEnv("MODEL_SERVICE_URL", trainer.DefaultServiceURL),
		"Model service URL")
	flag.IntVar(&config.Epochs, "epochs", 0,
		"Override the preset epoch count")
	flag.StringVar(&config.Device, "device", "",
		"Force a device (cpu or cuda) instead of asking the service")
	flag.StringVar(&config.Project, "project", utils.GetEnv("XRAY_RUNS_DIR", "runs"),
		"Directory the service writes runs into")

	flag.Parse()

	m, err := dataset.ParseMode(mode)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	config.Mode = m
	if config.ConfigPath == "" {
		config.ConfigPath = utils.GetEnv("XRAY_CONFIG_PATH", filepath.Join("configs", "clavicle_config.yaml"))
	}
	return config
}

// resolveData returns what the service trains on: the dataset config file for
// detection, the dataset root for classification.
func resolveData(fs afero.Fs, config Config) (string, imbalance.Strategy, bool) {
	if config.Mode == dataset.Detection {
		cfg, err := dataset.ReadConfig(fs, config.ConfigPath)
		if err != nil {
			log.Printf("Dataset config not available (%v)\n", err)
			log.Println("Run analyze_data first to create it")
			return "", "", false
		}
		return config.ConfigPath, cfg.ImbalanceStrategy, true
	}

	trainDir := filepath.Join(config.DataDir, "images", "train")
	if exists, _ := afero.DirExists(fs, trainDir); !exists {
		log.Printf("Training folder %s not found\n", trainDir)
		log.Println("Create class folders under it first")
		return "", "", false
	}
	counts, err := dataset.NewImageFolderCounter(fs, trainDir).Count()
	if err != nil {
		log.Fatalf("ERROR: Failed to count training images: %v", err)
	}
	for _, class := range counts.Names() {
		log.Printf("  - %s: %d images\n", class, counts[class])
	}
	if counts.Total() == 0 {
		log.Printf("No training data in %s\n", trainDir)
		log.Printf("Put images into %s/<class>/ for each of: %s\n", trainDir, strings.Join(imbalance.ClassNames, ", "))
		return "", "", false
	}
	return config.DataDir, imbalance.SelectStrategy(counts, utils.GetEnvInt("XRAY_MIN_SAMPLES", imbalance.DefaultMinSamples)), true
}

func printTrainingSummary(result trainer.TrainResult, startTime time.Time) {
	log.Println("=== Training Summary ===")
	log.Printf("Epochs completed: %d\n", len(result.Epochs))
	if len(result.Epochs) > 0 {
		last := result.Epochs[len(result.Epochs)-1]
		log.Printf("Last epoch: %d\n", last.Epoch)
	}
	for _, name := range result.MetricNames() {
		log.Printf("  %-24s %.4f\n", name, result.Metrics[name])
	}
	if result.WeightsPath != "" {
		log.Printf("Best weights: %s\n", result.WeightsPath)
	}
	if result.SaveDir != "" {
		log.Printf("Run directory: %s\n", result.SaveDir)
	}
	log.Printf("Total time: %s\n", time.Since(startTime).Round(time.Millisecond))
	log.Println("\n✓ Training completed successfully")
}
