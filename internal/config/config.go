// Package config loads run configuration for the CLI and the server.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FlavioCFOliveira/mlpnet/internal/activations"
	"github.com/FlavioCFOliveira/mlpnet/internal/net"
	"github.com/FlavioCFOliveira/mlpnet/internal/training"
)

// Config captures the runtime knobs of a training run and the HTTP server.
type Config struct {
	Train  Train  `yaml:"train"`
	Server Server `yaml:"server"`
}

// Train describes one training run. Either Example or Data selects the
// samples.
type Train struct {
	Example      string  `yaml:"example"`
	Layers       []int   `yaml:"layers"`
	Activation   string  `yaml:"activation"`
	Epochs       uint32  `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	// Seed makes weight initialization deterministic. 0 seeds from the clock.
	Seed               uint64 `yaml:"seed"`
	CheckpointPath     string `yaml:"checkpoint_path"`
	CheckpointInterval uint32 `yaml:"checkpoint_interval"`
	Verbose            bool   `yaml:"verbose"`
	LogCSV             string `yaml:"log_csv"`

	// Data is a CSV file with custom samples.
	Data      string `yaml:"data"`
	LabelCols []int  `yaml:"label_cols"`
	Header    bool   `yaml:"header"`
	Normalize bool   `yaml:"normalize"`
}

// Server configures cmd/mlpnet-server.
type Server struct {
	Addr         string        `yaml:"addr"`
	MaxEpochs    uint32        `yaml:"max_epochs"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	Example            string
	Activation         string
	Epochs             uint32
	LearningRate       float64
	Seed               uint64
	CheckpointPath     string
	CheckpointInterval uint32
	Verbose            bool
	Data               string
	Addr               string
	MaxEpochs          uint32
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Train: Train{
			Example:      "xor",
			Activation:   activations.NameSigmoid,
			Epochs:       10000,
			LearningRate: 0.5,
		},
		Server: Server{
			Addr:         ":3000",
			MaxEpochs:    100000,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
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

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML over Default. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Example != "" {
		c.Train.Example = o.Example
		// An explicit example replaces file-configured custom data.
		c.Train.Data = ""
		c.Train.Layers = nil
	}
	if o.Activation != "" {
		c.Train.Activation = o.Activation
	}
	if o.Epochs > 0 {
		c.Train.Epochs = o.Epochs
	}
	if o.LearningRate > 0 {
		c.Train.LearningRate = o.LearningRate
	}
	if o.Seed != 0 {
		c.Train.Seed = o.Seed
	}
	if o.CheckpointPath != "" {
		c.Train.CheckpointPath = o.CheckpointPath
	}
	if o.CheckpointInterval > 0 {
		c.Train.CheckpointInterval = o.CheckpointInterval
	}
	if o.Verbose {
		c.Train.Verbose = true
	}
	if o.Data != "" {
		c.Train.Data = o.Data
	}
	if o.Addr != "" {
		c.Server.Addr = o.Addr
	}
	if o.MaxEpochs > 0 {
		c.Server.MaxEpochs = o.MaxEpochs
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	t := &c.Train
	if t.Example == "" && t.Data == "" {
		return errors.New("train: either example or data must be set")
	}
	if t.Data != "" {
		if len(t.LabelCols) == 0 {
			return errors.New("train: label_cols must be set with data")
		}
		if len(t.Layers) > 0 {
			if err := net.ValidateLayers(t.Layers); err != nil {
				return fmt.Errorf("train: %w", err)
			}
		}
	}
	if _, err := activations.ByName(t.Activation); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if t.Epochs == 0 {
		return errors.New("train: epochs must be > 0")
	}
	if t.LearningRate <= 0 {
		return fmt.Errorf("train: learning_rate must be > 0 (got %g)", t.LearningRate)
	}
	if t.CheckpointInterval > 0 && t.CheckpointPath == "" {
		return errors.New("train: checkpoint_interval requires checkpoint_path")
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.MaxEpochs == 0 {
		return errors.New("server: max_epochs must be > 0")
	}
	return nil
}

// TrainingConfig returns the controller configuration for the run.
func (t Train) TrainingConfig() training.Config {
	name := t.Example
	if t.Data != "" {
		name = ""
	}
	return training.Config{
		Epochs:             t.Epochs,
		CheckpointInterval: t.CheckpointInterval,
		CheckpointPath:     t.CheckpointPath,
		Verbose:            t.Verbose,
		ExampleName:        name,
	}
}
