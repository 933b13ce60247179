package solver

import (
	"fmt"

	"github.com/san-kum/trajopt/internal/ilqr"
)

// Options collects every tunable of the solver. Zero values are filled in
// from DefaultOptions by New; yaml tags allow the whole struct to be loaded
// from a config file.
type Options struct {
	CostTolerance             float64 `yaml:"cost_tolerance"`
	CostIntermediateTolerance float64 `yaml:"cost_intermediate_tolerance"`
	GradTolerance             float64 `yaml:"gradient_tolerance"`
	GradIntermediateTolerance float64 `yaml:"gradient_intermediate_tolerance"`
	ConstraintTolerance       float64 `yaml:"constraint_tolerance"`

	Iterations           int `yaml:"iterations"`
	IterationsOuter      int `yaml:"iterations_outerloop"`
	IterationsLineSearch int `yaml:"iterations_linesearch"`
	MaxLineSearchFails   int `yaml:"max_linesearch_failures"`

	MuInitial float64 `yaml:"mu_initial"`
	MuMax     float64 `yaml:"mu_max"`
	Gamma     float64 `yaml:"gamma"`
	GammaNo   float64 `yaml:"gamma_no"`
	Tau       float64 `yaml:"tau"`

	LambdaMin float64 `yaml:"lambda_min"`
	LambdaMax float64 `yaml:"lambda_max"`

	RhoInitial float64 `yaml:"rho_initial"`
	BpRegType  string  `yaml:"bp_reg_type"`       // "control" or "state"
	OuterLoop  string  `yaml:"outer_loop_update"` // "default" or "individual"

	SquareRoot       bool `yaml:"square_root"`
	MinimumTime      bool `yaml:"minimum_time"`
	Infeasible       bool `yaml:"infeasible"`
	ResolveFeasible  bool `yaml:"resolve_feasible"`
	SecondOrderDuals bool `yaml:"second_order_duals"`

	ZMin         float64 `yaml:"z_min"`
	ZMax         float64 `yaml:"z_max"`
	MaxStateNorm float64 `yaml:"max_state_norm"`

	RMinimumTime float64 `yaml:"r_minimum_time"`
	RInfeasible  float64 `yaml:"r_infeasible"`
	DtMin        float64 `yaml:"dt_min"`
	DtMax        float64 `yaml:"dt_max"`

	Verbose      bool `yaml:"verbose"`
	LivePlotting bool `yaml:"live_plotting"`
}

// DefaultOptions returns the solver defaults.
func DefaultOptions() *Options {
	return &Options{
		CostTolerance:             1e-4,
		CostIntermediateTolerance: 1e-3,
		GradTolerance:             1e-5,
		GradIntermediateTolerance: 1e-5,
		ConstraintTolerance:       1e-3,
		Iterations:                250,
		IterationsOuter:           30,
		IterationsLineSearch:      10,
		MaxLineSearchFails:        5,
		MuInitial:                 1.0,
		MuMax:                     1e8,
		Gamma:                     10.0,
		GammaNo:                   1.0,
		Tau:                       0.25,
		LambdaMin:                 -1e8,
		LambdaMax:                 1e8,
		RhoInitial:                0.0,
		BpRegType:                 "control",
		OuterLoop:                 "default",
		ZMin:                      1e-8,
		ZMax:                      10.0,
		MaxStateNorm:              1e8,
		RMinimumTime:              1.0,
		RInfeasible:               1.0,
		DtMin:                     1e-3,
		DtMax:                     1.0,
	}
}

// fill replaces unset (zero) fields with defaults.
func (o *Options) fill() {
	d := DefaultOptions()
	if o.CostTolerance == 0 {
		o.CostTolerance = d.CostTolerance
	}
	if o.CostIntermediateTolerance == 0 {
		o.CostIntermediateTolerance = d.CostIntermediateTolerance
	}
	if o.GradTolerance == 0 {
		o.GradTolerance = d.GradTolerance
	}
	if o.GradIntermediateTolerance == 0 {
		o.GradIntermediateTolerance = d.GradIntermediateTolerance
	}
	if o.ConstraintTolerance == 0 {
		o.ConstraintTolerance = d.ConstraintTolerance
	}
	if o.Iterations == 0 {
		o.Iterations = d.Iterations
	}
	if o.IterationsOuter == 0 {
		o.IterationsOuter = d.IterationsOuter
	}
	if o.IterationsLineSearch == 0 {
		o.IterationsLineSearch = d.IterationsLineSearch
	}
	if o.MaxLineSearchFails == 0 {
		o.MaxLineSearchFails = d.MaxLineSearchFails
	}
	if o.MuInitial == 0 {
		o.MuInitial = d.MuInitial
	}
	if o.MuMax == 0 {
		o.MuMax = d.MuMax
	}
	if o.Gamma == 0 {
		o.Gamma = d.Gamma
	}
	if o.GammaNo == 0 {
		o.GammaNo = d.GammaNo
	}
	if o.Tau == 0 {
		o.Tau = d.Tau
	}
	if o.LambdaMin == 0 {
		o.LambdaMin = d.LambdaMin
	}
	if o.LambdaMax == 0 {
		o.LambdaMax = d.LambdaMax
	}
	if o.BpRegType == "" {
		o.BpRegType = d.BpRegType
	}
	if o.OuterLoop == "" {
		o.OuterLoop = d.OuterLoop
	}
	if o.ZMin == 0 {
		o.ZMin = d.ZMin
	}
	if o.ZMax == 0 {
		o.ZMax = d.ZMax
	}
	if o.MaxStateNorm == 0 {
		o.MaxStateNorm = d.MaxStateNorm
	}
	if o.RMinimumTime == 0 {
		o.RMinimumTime = d.RMinimumTime
	}
	if o.RInfeasible == 0 {
		o.RInfeasible = d.RInfeasible
	}
	if o.DtMin == 0 {
		o.DtMin = d.DtMin
	}
	if o.DtMax == 0 {
		o.DtMax = d.DtMax
	}
}

func (o *Options) validate() error {
	switch o.BpRegType {
	case "control", "state":
	default:
		return fmt.Errorf("solver: unknown bp_reg_type %q", o.BpRegType)
	}
	switch o.OuterLoop {
	case "default", "individual":
	default:
		return fmt.Errorf("solver: unknown outer_loop_update %q", o.OuterLoop)
	}
	if o.Gamma <= 1 {
		return fmt.Errorf("solver: gamma must be > 1, got %g", o.Gamma)
	}
	if o.MuInitial <= 0 || o.MuMax < o.MuInitial {
		return fmt.Errorf("solver: penalty range [%g, %g] invalid", o.MuInitial, o.MuMax)
	}
	return nil
}

// OuterUpdate is the penalty-update scheme.
type OuterUpdate int

const (
	OuterDefault OuterUpdate = iota
	OuterIndividual
)

// Mode is the solve descriptor computed once at entry; all hot-path branches
// key off it instead of the raw option flags.
type Mode struct {
	Constrained bool
	MinTime     bool
	Infeasible  bool
	SquareRoot  bool
	RegScheme   ilqr.RegScheme
	OuterUpdate OuterUpdate
}

func modeOf(o *Options, constrained bool) Mode {
	m := Mode{
		Constrained: constrained,
		MinTime:     o.MinimumTime,
		Infeasible:  o.Infeasible,
		SquareRoot:  o.SquareRoot,
	}
	if o.BpRegType == "state" {
		m.RegScheme = ilqr.RegState
	}
	if o.OuterLoop == "individual" {
		m.OuterUpdate = OuterIndividual
	}
	return m
}
