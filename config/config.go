// Package config loads the explainer's YAML configuration.
//
// Every section is optional. Search fields are pointers so an absent key keeps
// the library default rather than overriding it with a zero value.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Noofbiz/growingspheres/growingspheres"
	"github.com/Noofbiz/growingspheres/simple"
)

var ErrInvalid = errors.New("invalid configuration")

// File is the top-level configuration document.
type File struct {
	Search SearchConfig `yaml:"search"`
	Model  ModelConfig  `yaml:"model"`
	Data   DataConfig   `yaml:"data"`
	Output OutputConfig `yaml:"output"`
}

// SearchConfig overrides growingspheres.Config.
type SearchConfig struct {
	NInLayer       *int     `yaml:"n_in_layer" validate:"omitempty,gte=1"`
	FirstRadius    *float64 `yaml:"first_radius" validate:"omitempty,gt=0"`
	DecreaseFactor *float64 `yaml:"decrease_factor" validate:"omitempty,gt=1"`
	LayerShape     string   `yaml:"layer_shape" validate:"omitempty,oneof=ring ball sphere"`
	StepPolicy     string   `yaml:"step_policy" validate:"omitempty,oneof=fixed proportional"`
	MaxAttempts    *int     `yaml:"max_attempts" validate:"omitempty,gte=1"`
	Sparse         *bool    `yaml:"sparse"`
	TargetClass    *int     `yaml:"target_class" validate:"omitempty,gte=0"`
	Caps           *Caps    `yaml:"caps"`

	// CapsFromData caps generated points to the dataset's observed range.
	// An explicit Caps wins.
	CapsFromData bool `yaml:"caps_from_data"`

	// Exhaustive replaces greedy sparsification with the exhaustive search.
	Exhaustive bool `yaml:"exhaustive"`

	NumCounterfactuals int   `yaml:"num_counterfactuals" validate:"gte=1"`
	Seed               int64 `yaml:"seed"`
	Verbose            bool  `yaml:"verbose"`
}

// Caps is the single (min, max) clamp applied to every coordinate.
type Caps struct {
	Min float64 `yaml:"min" validate:"ltefield=Max"`
	Max float64 `yaml:"max"`
}

// ModelConfig selects and trains the classifier being explained.
type ModelConfig struct {
	// Kind is "mlp" (trained on the data) or "linear" (fixed weights).
	Kind         string      `yaml:"kind" validate:"oneof=mlp linear"`
	HiddenSizes  []int       `yaml:"hidden_sizes" validate:"dive,gt=0"`
	NumClasses   int         `yaml:"num_classes" validate:"omitempty,gte=2"`
	LearningRate float64     `yaml:"learning_rate" validate:"gte=0"`
	Epochs       int         `yaml:"epochs" validate:"gte=0"`
	BatchSize    int         `yaml:"batch_size" validate:"gte=0"`
	Weights      [][]float64 `yaml:"weights" validate:"required_if=Kind linear"`
	Bias         []float64   `yaml:"bias"`
}

// DataConfig locates the CSV data.
type DataConfig struct {
	// Path is a glob or a directory of CSV files.
	Path        string   `yaml:"path"`
	// LabelColumn names the integer class column; set it to "" for
	// unlabeled data explained with a linear model.
	LabelColumn string   `yaml:"label_column"`
	Features    []string `yaml:"features"`
}

// OutputConfig controls reports.
type OutputConfig struct {
	// JSON is the result file; empty writes to stdout.
	JSON string `yaml:"json"`
	// Plot is a PNG path for two-dimensional explanations; empty disables it.
	Plot             string `yaml:"plot"`
	RobustnessSims   int    `yaml:"robustness_sims" validate:"gte=0"`
	RobustnessPoints int    `yaml:"robustness_points" validate:"gte=1"`
	Neighbors        int    `yaml:"neighbors" validate:"gte=1"`
}

// Default returns the configuration used when no file is given.
func Default() *File {
	return &File{
		Search: SearchConfig{NumCounterfactuals: 1},
		Model:  ModelConfig{Kind: "mlp"},
		Data:   DataConfig{LabelColumn: "label"},
		Output: OutputConfig{
			RobustnessSims:   50,
			RobustnessPoints: 200,
			Neighbors:        5,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*File, error) {
	f := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that the search section maps onto a
// valid growingspheres.Config.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := f.ToSearchConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// ToSearchConfig maps the search section onto the library defaults.
func (f *File) ToSearchConfig() growingspheres.Config {
	s := f.Search
	cfg := growingspheres.DefaultConfig()
	if s.NInLayer != nil {
		cfg.NInLayer = *s.NInLayer
	}
	if s.FirstRadius != nil {
		cfg.FirstRadius = *s.FirstRadius
	}
	if s.DecreaseFactor != nil {
		cfg.DecreaseFactor = *s.DecreaseFactor
	}
	if s.LayerShape != "" {
		cfg.LayerShape = growingspheres.LayerShape(s.LayerShape)
	}
	if s.StepPolicy != "" {
		cfg.StepPolicy = growingspheres.StepPolicy(s.StepPolicy)
	}
	if s.MaxAttempts != nil {
		cfg.MaxAttempts = *s.MaxAttempts
	}
	if s.Sparse != nil {
		cfg.Sparse = *s.Sparse
	}
	if s.TargetClass != nil {
		target := *s.TargetClass
		cfg.TargetClass = &target
	}
	if s.Caps != nil {
		cfg.Caps = &growingspheres.Caps{Min: s.Caps.Min, Max: s.Caps.Max}
	}
	cfg.Seed = s.Seed
	cfg.Verbose = s.Verbose
	return cfg
}

// ToModelConfig maps the model section onto simple.Config for inputDim
// features.
func (f *File) ToModelConfig(inputDim int) simple.Config {
	m := f.Model
	return simple.Config{
		HiddenSizes:  m.HiddenSizes,
		InputDim:     inputDim,
		NumClasses:   m.NumClasses,
		LearningRate: m.LearningRate,
		Epochs:       m.Epochs,
		BatchSize:    m.BatchSize,
		Seed:         f.Search.Seed,
	}
}
