// Package solver composes the nested iLQR / augmented-Lagrangian loops,
// owns solve statistics and decides termination.
package solver

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/constraint"
	"github.com/san-kum/trajopt/internal/cost"
	"github.com/san-kum/trajopt/internal/dynamo"
	"github.com/san-kum/trajopt/internal/ilqr"
	"github.com/san-kum/trajopt/internal/traj"
)

// Problem is the user-facing description of one trajectory-optimization
// problem. Model and Cost are required; everything else is optional.
type Problem struct {
	Model dynamo.Model
	Cost  *cost.Quadratic
	N     int
	Dt    float64
	X0    []float64

	// U0 is an optional initial control guess, (N-1)×m.
	U0 [][]float64

	// XGuess is an optional initial state trajectory, N×n. Supplying one
	// together with Options.Infeasible enables the slack-augmented
	// infeasible-start solve.
	XGuess [][]float64

	ControlLower, ControlUpper []float64 // length m
	StateLower, StateUpper     []float64 // length n
	Constraint                 constraint.Constraint

	// Goal is the terminal equality target for constrained solves; when nil
	// the cost's xf is used.
	Goal []float64
}

// Iteration is the per-iteration record passed to observers.
type Iteration struct {
	Index int
	Outer int
	Cost  float64
	CMax  float64
	Rho   float64
	Alpha float64
}

// Observer receives committed iterates only.
type Observer interface {
	OnIteration(it Iteration)
}

// Result carries the solution trajectory, the local feedback policy and the
// solve statistics.
type Result struct {
	X [][]float64 // N×n states
	U [][]float64 // (N-1)×m nominal controls

	Gains       []*mat.Dense    // (N-1) of mm×n feedback gains
	Feedforward []*mat.VecDense // (N-1) of mm

	Status Status
	Stats  Stats
}

// Solver is a fully configured solve instance. Create with New, run with
// Solve. A Solver is single-use and not safe for concurrent use.
type Solver struct {
	prob *alProblem
	st   *traj.Store
	set  *constraint.Set
	p    Problem
	opts *Options
	mode Mode

	reg      *ilqr.Reg
	backward *ilqr.Backward
	forward  *ilqr.Forward

	observers []Observer
	out       io.Writer

	setupTime float64
}

// New validates the problem and options and allocates every solve buffer.
// Configuration errors are reported here; no error escapes the solve loop
// itself.
func New(p Problem, opts *Options) (*Solver, error) {
	start := time.Now()
	if opts == nil {
		opts = DefaultOptions()
	}
	opts.fill()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if p.Model == nil || p.Cost == nil {
		return nil, errors.New("solver: model and cost are required")
	}
	if p.N < 2 {
		return nil, fmt.Errorf("solver: horizon must be >= 2, got %d", p.N)
	}
	if p.Dt <= 0 {
		return nil, fmt.Errorf("solver: dt must be positive, got %g", p.Dt)
	}
	n, m := p.Model.StateDim(), p.Model.ControlDim()
	if len(p.X0) != n {
		return nil, fmt.Errorf("solver: x0 has length %d, want %d", len(p.X0), n)
	}
	if p.Cost.StateDim() != n || p.Cost.ControlDim() != m {
		return nil, errors.New("solver: cost dimensions do not match model")
	}
	if opts.Infeasible && p.XGuess == nil {
		return nil, errors.New("solver: infeasible start requires an initial state trajectory")
	}
	if p.XGuess != nil && len(p.XGuess) != p.N {
		return nil, fmt.Errorf("solver: state guess has %d knots, want %d", len(p.XGuess), p.N)
	}
	if err := checkBound(p.ControlLower, p.ControlUpper, m, "control"); err != nil {
		return nil, err
	}
	if err := checkBound(p.StateLower, p.StateUpper, n, "state"); err != nil {
		return nil, err
	}

	constrained := opts.Infeasible || opts.MinimumTime ||
		p.ControlLower != nil || p.ControlUpper != nil ||
		p.StateLower != nil || p.StateUpper != nil ||
		p.Constraint != nil || p.Goal != nil

	mode := modeOf(opts, constrained)
	model := newAugModel(p.Model, mode, p.Dt)

	var set *constraint.Set
	dims := traj.Dims{N: p.N, NX: n, NU: m, Mbar: model.mbar, MM: model.mm}
	if constrained {
		set = buildSet(p, opts, model)
		if err := set.Finalize(); err != nil {
			return nil, err
		}
		dims.P = set.P()
		dims.PI = set.PI()
	}

	st := traj.NewStore(dims, constrained)
	st.Rho, st.DRho = opts.RhoInitial, 1
	if constrained {
		st.SetPenalty(opts.MuInitial)
	}

	s := &Solver{
		st:   st,
		set:  set,
		p:    p,
		opts: opts,
		mode: mode,
		reg:  ilqr.NewReg(opts.RhoInitial),
		backward: ilqr.NewBackward(n, model.mm,
			mode.RegScheme, mode.SquareRoot),
		forward: ilqr.NewForward(n, model.mm, ilqr.SearchOpts{
			Beta:     0.5,
			AlphaMin: 1e-8,
			MaxIter:  opts.IterationsLineSearch,
			ZMin:     opts.ZMin,
			ZMax:     opts.ZMax,
		}),
		out: os.Stdout,
	}
	s.prob = newALProblem(st, set, p.Cost, model, opts)
	s.seedTrajectory()
	s.setupTime = time.Since(start).Seconds()
	return s, nil
}

func checkBound(lo, hi []float64, dim int, what string) error {
	if lo != nil && len(lo) != dim {
		return fmt.Errorf("solver: %s lower bound has length %d, want %d", what, len(lo), dim)
	}
	if hi != nil && len(hi) != dim {
		return fmt.Errorf("solver: %s upper bound has length %d, want %d", what, len(hi), dim)
	}
	for i := range lo {
		if hi != nil && lo[i] > hi[i] {
			return fmt.Errorf("solver: %s bound %d has empty interval", what, i)
		}
	}
	return nil
}

// buildSet assembles the stage constraint stack, extending the control
// bounds over the sqrt-dt component when minimum time is on.
func buildSet(p Problem, opts *Options, model *augModel) *constraint.Set {
	lo := make([]float64, model.mbar)
	hi := make([]float64, model.mbar)
	for i := range lo {
		lo[i] = math.Inf(-1)
		hi[i] = math.Inf(1)
	}
	copy(lo, p.ControlLower)
	copy(hi, p.ControlUpper)
	if opts.MinimumTime {
		lo[model.mbar-1] = math.Sqrt(opts.DtMin)
		hi[model.mbar-1] = math.Sqrt(opts.DtMax)
	}
	xf := p.Goal
	if xf == nil {
		xf = make([]float64, model.n)
		for i := 0; i < model.n; i++ {
			xf[i] = p.Cost.Xf.AtVec(i)
		}
	}
	xlo := p.StateLower
	xhi := p.StateUpper
	if xlo == nil {
		xlo = infSlice(model.n, -1)
	}
	if xhi == nil {
		xhi = infSlice(model.n, 1)
	}
	return &constraint.Set{
		NX: model.n, NU: model.m, Mbar: model.mbar, MM: model.mm,
		Umin: lo, Umax: hi,
		Xmin: xlo, Xmax: xhi,
		User: p.Constraint,
		Xf:   xf,
		MinTime:    opts.MinimumTime,
		Infeasible: opts.Infeasible,
	}
}

func infSlice(n int, sign int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.Inf(sign)
	}
	return s
}

// seedTrajectory loads X0, the control guess and (for infeasible starts)
// the state guess with its slack controls into the store.
func (s *Solver) seedTrajectory() {
	st := s.st
	for i := 0; i < st.NX; i++ {
		st.X[0].SetVec(i, s.p.X0[i])
	}
	for k := 0; k < st.N-1; k++ {
		if s.p.U0 != nil {
			for i := 0; i < st.NU && i < len(s.p.U0[k]); i++ {
				st.U[k].SetVec(i, s.p.U0[k][i])
			}
		}
		if s.mode.MinTime {
			st.U[k].SetVec(st.Mbar-1, math.Sqrt(s.p.Dt))
		}
	}
	if s.mode.Infeasible {
		s.initSlacks()
	}
}

// AddObserver registers an observer for committed iterates.
func (s *Solver) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// SetOutput redirects verbose iteration output.
func (s *Solver) SetOutput(w io.Writer) { s.out = w }

// Solve runs the solve to termination. The only errors surfaced here are
// rollout failures of the initial guess that persist after the zero-control
// fallback.
func (s *Solver) Solve() (*Result, error) {
	start := time.Now()
	var res *Result
	var err error
	if s.mode.Infeasible {
		res, err = s.solveInfeasible()
	} else {
		if err = s.initialRollout(); err != nil {
			return nil, err
		}
		stats := Stats{SetupTime: s.setupTime}
		status := s.runLoop(&stats)
		res = s.buildResult(status, stats)
	}
	if err != nil {
		return nil, err
	}
	res.Stats.Runtime = time.Since(start).Seconds()
	return res, nil
}

// initialRollout simulates the control guess from X0. A non-finite rollout
// falls back to zero controls once before giving up.
func (s *Solver) initialRollout() error {
	if s.rolloutCommitted() {
		return nil
	}
	for k := 0; k < s.st.N-1; k++ {
		for i := 0; i < s.st.NU; i++ {
			s.st.U[k].SetVec(i, 0)
		}
	}
	if s.rolloutCommitted() {
		return nil
	}
	return errors.New("solver: initial rollout diverged even with zero controls")
}

func (s *Solver) rolloutCommitted() bool {
	st := s.st
	for k := 0; k < st.N-1; k++ {
		if !s.prob.Rollout(k, st.X[k], st.U[k], st.X[k+1]) {
			return false
		}
	}
	return true
}

// runLoop is one full inner/outer nested solve on the current store.
func (s *Solver) runLoop(stats *Stats) Status {
	st := s.st
	s.prob.refreshConstraints()
	j := s.prob.Cost(st.X, st.U)

	outerMax := s.opts.IterationsOuter
	if !s.mode.Constrained {
		outerMax = 1
	}
	if s.opts.Verbose {
		fmt.Fprintf(s.out, "%6s %6s %14s %12s %10s %8s\n", "outer", "iter", "cost", "c_max", "rho", "alpha")
	}

	status := StatusMaxOuterIterations
	for outer := 0; outer < outerMax; outer++ {
		lsFails := 0
		innerConverged := false
		overflowed := false

		for iter := 0; iter < s.opts.Iterations; iter++ {
			s.prob.refreshJacobians()
			dv1, dv2, err := s.backward.Run(st, s.prob, s.reg)
			if err != nil {
				// regularization overflow: abandon the step, let the outer
				// loop update multipliers and continue
				overflowed = true
				break
			}

			// the fresh feedforward gives the gradient estimate directly;
			// a vanishing step means the policy is already optimal for the
			// current multipliers
			grad := s.gradient()
			gtol := s.opts.GradIntermediateTolerance
			if !s.mode.Constrained || st.MaxViolation() < s.opts.ConstraintTolerance {
				gtol = s.opts.GradTolerance
			}
			if grad < gtol {
				innerConverged = true
				break
			}

			jNew, accepted, alpha, overflow := s.forward.Run(st, s.prob, dv1, dv2, j, s.reg)
			st.Rho, st.DRho = s.reg.Rho, s.reg.DRho

			cmax := 0.0
			if accepted {
				s.prob.refreshConstraints()
			}
			if s.mode.Constrained {
				cmax = st.MaxViolation()
			}
			stats.record(jNew, cmax)
			s.notify(Iteration{Index: stats.Iterations, Outer: outer, Cost: jNew, CMax: cmax, Rho: s.reg.Rho, Alpha: alpha})
			if s.opts.Verbose {
				fmt.Fprintf(s.out, "%6d %6d %14.6f %12.4e %10.2e %8.4f\n", outer, iter, jNew, cmax, s.reg.Rho, alpha)
			}

			if accepted {
				dj := j - jNew
				j = jNew
				lsFails = 0
				grad := s.gradient()
				ctol, gtol := s.opts.CostIntermediateTolerance, s.opts.GradIntermediateTolerance
				if !s.mode.Constrained || cmax < s.opts.ConstraintTolerance {
					ctol, gtol = s.opts.CostTolerance, s.opts.GradTolerance
				}
				if dj < ctol || grad < gtol {
					innerConverged = true
					break
				}
			} else {
				lsFails++
				if overflow || lsFails >= s.opts.MaxLineSearchFails {
					break
				}
			}
		}

		if !s.mode.Constrained {
			if innerConverged {
				return StatusConverged
			}
			if overflowed {
				return StatusRegularizationOverflow
			}
			return StatusMaxInnerIterations
		}

		// multiplier update, then penalties, then snapshot
		if s.opts.SecondOrderDuals {
			s.updateDualsSecondOrder()
		} else {
			s.updateDuals()
		}
		s.updatePenalties()
		st.Snapshot()
		stats.MajorIterations++

		cmax := st.MaxViolation()
		if cmax < s.opts.ConstraintTolerance && innerConverged {
			return StatusConverged
		}

		// multipliers moved: active set and AL cost must be refreshed
		s.prob.refreshConstraints()
		j = s.prob.Cost(st.X, st.U)
	}
	return status
}

// gradient is the Todorov step-size estimate
// mean_k max_i |d[k][i]| / (|u[k][i]| + 1).
func (s *Solver) gradient() float64 {
	st := s.st
	total := 0.0
	for k := 0; k < st.N-1; k++ {
		m := 0.0
		for i := 0; i < st.MM; i++ {
			g := math.Abs(st.D[k].AtVec(i)) / (math.Abs(st.U[k].AtVec(i)) + 1)
			if g > m {
				m = g
			}
		}
		total += m
	}
	return total / float64(st.N-1)
}

func (s *Solver) notify(it Iteration) {
	for _, o := range s.observers {
		o.OnIteration(it)
	}
}

func (s *Solver) buildResult(status Status, stats Stats) *Result {
	st := s.st
	res := &Result{
		X:           make([][]float64, st.N),
		U:           make([][]float64, st.N-1),
		Gains:       st.K,
		Feedforward: st.D,
		Status:      status,
		Stats:       stats,
	}
	for k := 0; k < st.N; k++ {
		row := make([]float64, st.NX)
		for i := range row {
			row[i] = st.X[k].AtVec(i)
		}
		res.X[k] = row
	}
	for k := 0; k < st.N-1; k++ {
		row := make([]float64, st.NU)
		for i := range row {
			row[i] = st.U[k].AtVec(i)
		}
		res.U[k] = row
	}
	return res
}
