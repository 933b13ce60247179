package config

import "math"

var presets = map[string]map[string]*Config{
	"double_integrator": {
		"lqr": {
			Model: "double_integrator", Integrator: "rk4",
			N: 51, Dt: 0.1,
			X0: []float64{1, 0}, Xf: []float64{0, 0},
			Q: 1, R: 1, Qf: 100,
		},
		"bounded": {
			Model: "double_integrator", Integrator: "rk4",
			N: 51, Dt: 0.1,
			X0: []float64{1, 0}, Xf: []float64{0, 0},
			Q: 1, R: 1, Qf: 100,
			ControlLower: []float64{-2},
			ControlUpper: []float64{2},
			Goal:         true,
		},
	},
	"pendulum": {
		"swingup": {
			Model: "pendulum", Integrator: "rk4",
			N: 101, Dt: 0.05,
			X0: []float64{math.Pi, 0}, Xf: []float64{0, 0},
			Q: 0.1, R: 0.05, Qf: 100,
			Goal: true,
		},
	},
	"cartpole": {
		"stabilize": {
			Model: "cartpole", Integrator: "rk4",
			N: 101, Dt: 0.05,
			X0: []float64{0, 0, math.Pi, 0}, Xf: []float64{0, 0, 0, 0},
			Q: 0.01, R: 0.01, Qf: 100,
			ControlLower: []float64{-5},
			ControlUpper: []float64{5},
			Goal:         true,
		},
	},
}

// GetPreset returns a copy-safe named preset, or nil when unknown.
func GetPreset(model, name string) *Config {
	byName, ok := presets[model]
	if !ok {
		return nil
	}
	cfg, ok := byName[name]
	if !ok {
		return nil
	}
	out := *cfg
	out.X0 = append([]float64(nil), cfg.X0...)
	out.Xf = append([]float64(nil), cfg.Xf...)
	out.ControlLower = append([]float64(nil), cfg.ControlLower...)
	out.ControlUpper = append([]float64(nil), cfg.ControlUpper...)
	out.StateLower = append([]float64(nil), cfg.StateLower...)
	out.StateUpper = append([]float64(nil), cfg.StateUpper...)
	return &out
}

// ListPresets lists the preset names for a model, nil when the model has
// none.
func ListPresets(model string) []string {
	byName, ok := presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	return names
}
