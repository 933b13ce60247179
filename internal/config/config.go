package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/trajopt/internal/solver"
)

const (
	DefaultDt      = 0.1
	DefaultHorizon = 51
	DefaultQ       = 1.0
	DefaultR       = 0.1
	DefaultQf      = 100.0
)

type Config struct {
	Model      string  `yaml:"model"`
	Integrator string  `yaml:"integrator"`
	N          int     `yaml:"horizon"`
	Dt         float64 `yaml:"dt"`

	X0 []float64 `yaml:"x0"`
	Xf []float64 `yaml:"xf"`

	Q  float64 `yaml:"q"`
	R  float64 `yaml:"r"`
	Qf float64 `yaml:"qf"`

	ControlLower []float64 `yaml:"control_lower"`
	ControlUpper []float64 `yaml:"control_upper"`
	StateLower   []float64 `yaml:"state_lower"`
	StateUpper   []float64 `yaml:"state_upper"`
	Goal         bool      `yaml:"goal_constraint"`

	Solver solver.Options `yaml:"solver"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      "double_integrator",
		Integrator: "rk4",
		N:          DefaultHorizon,
		Dt:         DefaultDt,
		X0:         []float64{1, 0},
		Xf:         []float64{0, 0},
		Q:          DefaultQ,
		R:          DefaultR,
		Qf:         DefaultQf,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
