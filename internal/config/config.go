package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/cpuid/v2"
	"gopkg.in/yaml.v3"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	DataDir         string   `yaml:"data_dir"`
	Archive         string   `yaml:"archive"`
	ImageSize       int      `yaml:"image_size"`
	Seed            int64    `yaml:"seed"`
	ValidationSplit float64  `yaml:"validation_split"`
	Epochs          int      `yaml:"epochs"`
	BatchSize       int      `yaml:"batch_size"`
	LearningRate    float64  `yaml:"learning_rate"`
	NumWorkers      int      `yaml:"num_workers"`
	LogEvery        int      `yaml:"log_every"`
	MaleClass       *int     `yaml:"male_class"`
	PlotDir         string   `yaml:"plot_dir"`
	Predict         []string `yaml:"predict"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	DataDir    string
	Archive    string
	Epochs     int
	BatchSize  int
	NumWorkers int
	Seed       int64
	LogEvery   int
	MaleClass  int
	PlotDir    string
	Predict    []string
}

// Default returns the configuration used when no file is given. MaleClass is
// left unset on purpose so that Validate forces the caller to pick one.
func Default() *Config {
	return &Config{
		ImageSize:       128,
		Seed:            42,
		ValidationSplit: 0.2,
		Epochs:          50,
		BatchSize:       32,
		LearningRate:    0.001,
		LogEvery:        100,
	}
}

// Load reads and validates a Config from YAML. Keys missing from the file
// keep their Default values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := parseYAML(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override. A negative
// MaleClass means "not given".
func (c *Config) ApplyOverrides(o Overrides) {
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.Archive != "" {
		c.Archive = o.Archive
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.MaleClass >= 0 {
		mc := o.MaleClass
		c.MaleClass = &mc
	}
	if o.PlotDir != "" {
		c.PlotDir = o.PlotDir
	}
	if len(o.Predict) > 0 {
		c.Predict = append([]string(nil), o.Predict...)
	}
}

// Validate verifies the config is runnable and fills derived defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	if c.ImageSize <= 0 {
		return fmt.Errorf("image_size must be > 0 (got %d)", c.ImageSize)
	}
	if c.ValidationSplit <= 0 || c.ValidationSplit >= 1 {
		return fmt.Errorf("validation_split must be in (0,1) (got %g)", c.ValidationSplit)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.MaleClass == nil {
		return errors.New("male_class must be set explicitly (0 or 1)")
	}
	if *c.MaleClass != 0 && *c.MaleClass != 1 {
		return fmt.Errorf("male_class must be 0 or 1 (got %d)", *c.MaleClass)
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = defaultWorkers()
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 100
	}
	return nil
}

func defaultWorkers() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return 1
}

func parseYAML(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}
