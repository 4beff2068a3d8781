package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"

	"chest-xray-pipeline/imbalance"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DatasetConfig is the trainer's dataset description file.
type DatasetConfig struct {
	Path              string             `yaml:"path"`
	Train             string             `yaml:"train"`
	Val               string             `yaml:"val"`
	Test              string             `yaml:"test"`
	Names             map[int]string     `yaml:"names"`
	ImbalanceStrategy imbalance.Strategy `yaml:"imbalance_strategy"`
}

// DefaultConfig points at the standard ./data layout with the class table.
func DefaultConfig(strategy imbalance.Strategy) DatasetConfig {
	names := make(map[int]string, len(imbalance.ClassNames))
	for id, name := range imbalance.ClassNames {
		names[id] = name
	}
	return DatasetConfig{
		Path:              "./data",
		Train:             "images/train",
		Val:               "images/val",
		Test:              "images/test",
		Names:             names,
		ImbalanceStrategy: strategy,
	}
}

func (c DatasetConfig) Validate() error {
	var errs []error
	if c.Path == "" {
		errs = append(errs, errors.New("path is empty"))
	}
	if c.Train == "" {
		errs = append(errs, errors.New("train is empty"))
	}
	if c.Val == "" {
		errs = append(errs, errors.New("val is empty"))
	}
	if len(c.Names) == 0 {
		errs = append(errs, errors.New("names is empty"))
	}
	if c.ImbalanceStrategy != "" && !c.ImbalanceStrategy.Valid() {
		errs = append(errs, fmt.Errorf("unknown imbalance_strategy %q", c.ImbalanceStrategy))
	}
	return errors.Join(errs...)
}

// WriteConfig serializes cfg to path, creating parent directories and
// replacing any existing file.
func WriteConfig(fs afero.Fs, path string, cfg DatasetConfig) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode dataset config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode dataset config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write dataset config %s: %w", path, err)
	}
	return nil
}

// ReadConfig parses and validates the dataset config at path.
func ReadConfig(fs afero.Fs, path string) (DatasetConfig, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return DatasetConfig{}, fmt.Errorf("failed to read dataset config %s: %w", path, err)
	}

	var cfg DatasetConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return DatasetConfig{}, fmt.Errorf("failed to parse dataset config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return DatasetConfig{}, fmt.Errorf("invalid dataset config %s: %w", path, err)
	}
	return cfg, nil
}
