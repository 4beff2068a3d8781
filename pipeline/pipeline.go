package pipeline

// Full training pipeline
//
// Stages run in order; each stage is a list of tool invocations.
//
// 1. Analysis:    analyze_classification, check_data (failure stops the run)
// 2. Training:    train_model -mode classify (skipped when weights exist,
//                 failure stops the run)
// 3. Testing:     test_predictions, predict on one class folder (tolerated)
// 4. Results:     analyze_results (tolerated)
// 5. Validation:  model size and one prediction on the first test image found

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"chest-xray-pipeline/dataset"
	"chest-xray-pipeline/imbalance"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

var ErrPrerequisites = errors.New("pipeline prerequisites not met")

// Status of a stage.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusPartial Status = "partial"
)

// Config locates the project files the pipeline works with.
type Config struct {
	DataDir    string
	DataYAML   string
	ModelPath  string
	Confidence float64
}

// DefaultConfig matches the layout written by the analysis and training tools.
func DefaultConfig() Config {
	return Config{
		DataDir:    "data",
		DataYAML:   "data.yaml",
		ModelPath:  filepath.Join("runs", "classify", "train", "weights", "best.pt"),
		Confidence: 0.3,
	}
}

func (c Config) testDir() string {
	return filepath.Join(c.DataDir, "images", "test")
}

// Check is one prerequisite.
type Check struct {
	Name string
	OK   bool
}

type StageResult struct {
	Number int          `json:"number"`
	Name   string       `json:"name"`
	Status Status       `json:"status"`
	Note   string       `json:"note,omitempty"`
	Steps  []StepResult `json:"steps"`
}

// Summary is the outcome of a pipeline run.
type Summary struct {
	Checks      []Check       `json:"checks"`
	Stages      []StageResult `json:"stages"`
	StoppedAt   string        `json:"stoppedAt,omitempty"`
	ModelSize   string        `json:"modelSize,omitempty"`
	Interrupted bool          `json:"interrupted"`
	Duration    time.Duration `json:"duration"`
}

// Completed reports whether every stage ran.
func (s Summary) Completed() bool {
	return s.StoppedAt == "" && !s.Interrupted && len(s.Stages) == 5
}

// Driver sequences the stages. Out receives the human-readable progress log.
type Driver struct {
	Fs     afero.Fs
	Runner CommandRunner
	Config Config
	Out    io.Writer
}

var requiredTools = []string{"analyze_classification", "train_model", "test_predictions"}

// CheckPrerequisites verifies the data folder, the stage tools and the dataset config.
func (d *Driver) CheckPrerequisites() ([]Check, bool) {
	dataOK, _ := afero.DirExists(d.Fs, filepath.Join(d.Config.DataDir, "images"))
	checks := []Check{{Name: "data folder " + filepath.Join(d.Config.DataDir, "images"), OK: dataOK}}
	for _, tool := range requiredTools {
		checks = append(checks, Check{Name: "tool " + tool, OK: d.Runner.Available(tool)})
	}
	yamlOK, _ := afero.Exists(d.Fs, d.Config.DataYAML)
	checks = append(checks, Check{Name: "dataset config " + d.Config.DataYAML, OK: yamlOK})

	all := true
	for _, c := range checks {
		if !c.OK {
			all = false
		}
	}
	return checks, all
}

func (d *Driver) printf(format string, args ...any) {
	if d.Out != nil {
		fmt.Fprintf(d.Out, format, args...)
	}
}

func (d *Driver) banner(number int, name string) {
	d.printf("\n%s\nStage %d: %s\n%s\n", strings.Repeat("=", 60), number, name, strings.Repeat("=", 60))
}

func (d *Driver) run(ctx context.Context, c Command) StepResult {
	d.printf("\n> %s\n  running: %s\n", c.Description, c)
	res := d.Runner.Run(ctx, c)
	if res.Line == "" {
		res.Line = c.String()
	}
	res.Command = c
	if res.OK {
		d.printf("  ✓ %s\n", c.Description)
		for _, line := range res.Tail {
			d.printf("    %s\n", line)
		}
	} else {
		d.printf("  ✗ %s failed", c.Description)
		if res.Err != nil {
			d.printf(": %v", res.Err)
		}
		d.printf("\n")
		if res.Stderr != "" {
			d.printf("    stderr: %s...\n", res.Stderr)
		}
	}
	return res
}

// runStage runs commands in order. With stopOnError the first failure ends the stage.
func (d *Driver) runStage(ctx context.Context, number int, name string, stopOnError bool, commands ...Command) StageResult {
	d.banner(number, name)
	stage := StageResult{Number: number, Name: name, Status: StatusOK}
	failed := 0
	for _, c := range commands {
		if ctx.Err() != nil {
			break
		}
		res := d.run(ctx, c)
		stage.Steps = append(stage.Steps, res)
		if !res.OK {
			failed++
			if stopOnError {
				stage.Status = StatusFailed
				stage.Note = c.Description
				return stage
			}
		}
	}
	switch {
	case failed == 0:
	case failed == len(commands):
		stage.Status = StatusFailed
	default:
		stage.Status = StatusPartial
	}
	return stage
}

func (d *Driver) predictCommand(source, description string) Command {
	return Command{
		Description: description,
		Tool:        "predict",
		Args:        []string{"-model", d.Config.ModelPath, "-source", source, "-conf", fmt.Sprint(d.Config.Confidence)},
	}
}

// Run executes the whole pipeline. It returns ErrPrerequisites when the
// project is not set up and the context error when interrupted. Stage
// failures are reported in the summary.
func (d *Driver) Run(ctx context.Context) (summary Summary, err error) {
	start := time.Now()
	defer func() { summary.Duration = time.Since(start) }()

	d.printf("=== Chest X-ray classification pipeline ===\n")
	checks, ok := d.CheckPrerequisites()
	summary.Checks = checks
	for _, c := range checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		d.printf("%s %s\n", mark, c.Name)
	}
	if !ok {
		summary.StoppedAt = "prerequisites"
		return summary, ErrPrerequisites
	}
	d.printf("Started at %s\n", start.Format("15:04:05"))

	interrupted := func() (Summary, error) {
		summary.Interrupted = true
		return summary, ctx.Err()
	}

	// Stage 1
	stage := d.runStage(ctx, 1, "data analysis", true,
		Command{Description: "class balance and dataset structure", Tool: "analyze_classification"},
		Command{Description: "training data check", Tool: "check_data"},
	)
	summary.Stages = append(summary.Stages, stage)
	if ctx.Err() != nil {
		return interrupted()
	}
	if stage.Status == StatusFailed {
		summary.StoppedAt = stage.Name
		d.printf("Skipping remaining stages after failed step: %s\n", stage.Note)
		return summary, nil
	}

	// Stage 2
	if exists, _ := afero.Exists(d.Fs, d.Config.ModelPath); exists {
		d.banner(2, "training")
		d.printf("✓ Model already trained, skipping (delete %s to retrain)\n", filepath.Dir(filepath.Dir(d.Config.ModelPath)))
		stage = StageResult{Number: 2, Name: "training", Status: StatusSkipped, Note: "weights exist"}
	} else {
		stage = d.runStage(ctx, 2, "training", true,
			Command{Description: "classification training", Tool: "train_model", Args: []string{"-mode", "classify"}},
		)
	}
	summary.Stages = append(summary.Stages, stage)
	if ctx.Err() != nil {
		return interrupted()
	}
	if stage.Status == StatusFailed {
		summary.StoppedAt = stage.Name
		d.printf("Training failed, skipping remaining stages\n")
		return summary, nil
	}

	// Stage 3
	normalDir := filepath.Join(d.Config.testDir(), imbalance.ClassNames[0]) + string(filepath.Separator)
	summary.Stages = append(summary.Stages, d.runStage(ctx, 3, "testing", false,
		Command{Description: "comprehensive test on all data", Tool: "test_predictions", Args: []string{"-comprehensive"}},
		d.predictCommand(normalDir, "prediction on normal test images"),
	))
	if ctx.Err() != nil {
		return interrupted()
	}

	// Stage 4
	summary.Stages = append(summary.Stages, d.runStage(ctx, 4, "results analysis", false,
		Command{Description: "detailed results analysis", Tool: "analyze_results"},
	))
	if ctx.Err() != nil {
		return interrupted()
	}

	// Stage 5
	summary.Stages = append(summary.Stages, d.validate(ctx, &summary))
	if ctx.Err() != nil {
		return interrupted()
	}

	d.printf("\n=== Pipeline finished in %s ===\n", time.Since(start).Round(time.Second))
	return summary, nil
}

func (d *Driver) validate(ctx context.Context, summary *Summary) StageResult {
	d.banner(5, "final validation")
	stage := StageResult{Number: 5, Name: "final validation", Status: StatusOK}

	info, err := d.Fs.Stat(d.Config.ModelPath)
	if err != nil {
		d.printf("✗ No model at %s\n", d.Config.ModelPath)
		stage.Status = StatusSkipped
		stage.Note = "no model"
		return stage
	}
	summary.ModelSize = humanize.Bytes(uint64(info.Size()))
	d.printf("✓ Model created: %s\n", summary.ModelSize)

	for _, class := range imbalance.ClassNames {
		images, err := dataset.ListImages(d.Fs, filepath.Join(d.Config.testDir(), class))
		if err != nil || len(images) == 0 {
			continue
		}
		res := d.run(ctx, d.predictCommand(images[0], "validation on class "+class))
		stage.Steps = append(stage.Steps, res)
		if !res.OK {
			stage.Status = StatusFailed
		}
		return stage
	}

	d.printf("No test images found for validation\n")
	stage.Note = "no test images"
	return stage
}
