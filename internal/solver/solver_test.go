package solver

import (
	"math"
	"testing"

	"github.com/san-kum/trajopt/internal/cost"
	"github.com/san-kum/trajopt/internal/physics"
)

func lqrProblem() Problem {
	return Problem{
		Model: physics.NewDiscreteDoubleIntegrator(),
		Cost:  cost.Diagonal(2, 1, 1, 1, 100, []float64{0, 0}),
		N:     51,
		Dt:    0.1,
		X0:    []float64{1, 0},
	}
}

func TestLQRSanity(t *testing.T) {
	s, err := New(lqrProblem(), nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Solve()
	if err != nil {
		t.Fatal(err)
	}

	if res.Status != StatusConverged {
		t.Fatalf("status = %s, want Converged", res.Status)
	}
	if res.Stats.Iterations > 20 {
		t.Errorf("took %d iterations, want <= 20", res.Stats.Iterations)
	}

	xN := res.X[len(res.X)-1]
	dist := math.Hypot(xN[0], xN[1])
	if dist > 1e-2 {
		t.Errorf("terminal state %v is %g from the goal", xN, dist)
	}

	// Riccati reference for this problem
	if got, want := res.Stats.FinalCost(), 9.174309; math.Abs(got-want) > 1e-3 {
		t.Errorf("final cost = %g, want %g", got, want)
	}

	// committed cost history is monotone nonincreasing: rejected passes
	// re-record the previous cost
	for i := 1; i < len(res.Stats.Cost); i++ {
		if res.Stats.Cost[i] > res.Stats.Cost[i-1]+1e-12 {
			t.Fatalf("cost increased at iteration %d: %g -> %g",
				i, res.Stats.Cost[i-1], res.Stats.Cost[i])
		}
	}
}

func TestCostToGoSymmetry(t *testing.T) {
	s, err := New(lqrProblem(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Solve(); err != nil {
		t.Fatal(err)
	}

	for k := 0; k < s.st.N; k++ {
		S := s.st.S[k]
		r, c := S.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if math.Abs(S.At(i, j)-S.At(j, i)) > 1e-12 {
					t.Fatalf("S[%d] asymmetric at (%d,%d)", k, i, j)
				}
			}
		}
	}
}

func TestGradientEstimate(t *testing.T) {
	s, err := New(lqrProblem(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Solve(); err != nil {
		t.Fatal(err)
	}
	g := s.gradient()
	if g < 0 {
		t.Errorf("gradient estimate = %g, want >= 0", g)
	}
	if g > 1e-3 {
		t.Errorf("gradient at convergence = %g, want small", g)
	}
}

func TestSquareRootEquivalence(t *testing.T) {
	solve := func(sqrt bool) *Result {
		opts := DefaultOptions()
		opts.SquareRoot = sqrt
		s, err := New(lqrProblem(), opts)
		if err != nil {
			t.Fatal(err)
		}
		res, err := s.Solve()
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	std := solve(false)
	sq := solve(true)

	if math.Abs(std.Stats.FinalCost()-sq.Stats.FinalCost()) > 1e-8 {
		t.Errorf("final cost differs: %.12f vs %.12f",
			std.Stats.FinalCost(), sq.Stats.FinalCost())
	}
	for k := range std.X {
		for i := range std.X[k] {
			if math.Abs(std.X[k][i]-sq.X[k][i]) > 1e-8 {
				t.Fatalf("state mismatch at knot %d component %d: %g vs %g",
					k, i, std.X[k][i], sq.X[k][i])
			}
		}
	}
}

func TestPenaltyGrowthDefaultScheme(t *testing.T) {
	p := lqrProblem()
	p.Goal = []float64{0, 0}

	opts := DefaultOptions()
	opts.Iterations = 2
	opts.IterationsOuter = 2
	opts.CostTolerance = 1e-14
	opts.CostIntermediateTolerance = 1e-14
	opts.GradTolerance = 1e-14
	opts.GradIntermediateTolerance = 1e-14
	opts.ConstraintTolerance = 1e-14

	s, err := New(p, opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Solve(); err != nil {
		t.Fatal(err)
	}

	wantMin := opts.Gamma * opts.Gamma * opts.MuInitial
	for i := 0; i < s.st.NX; i++ {
		if got := s.st.MuN.AtVec(i); got < wantMin-1e-9 {
			t.Errorf("terminal penalty[%d] = %g, want >= gamma^2 * mu0 = %g", i, got, wantMin)
		}
	}
}

func TestPenaltyMonotoneAndBounded(t *testing.T) {
	p := lqrProblem()
	p.ControlLower = []float64{-0.5}
	p.ControlUpper = []float64{0.5}

	opts := DefaultOptions()
	opts.MuMax = 100
	s, err := New(p, opts)
	if err != nil {
		t.Fatal(err)
	}
	prev := s.st.Mu[0].AtVec(0)
	if _, err := s.Solve(); err != nil {
		t.Fatal(err)
	}
	got := s.st.Mu[0].AtVec(0)
	if got < prev {
		t.Error("penalty must be nondecreasing across outer iterations")
	}
	for k := range s.st.Mu {
		for i := 0; i < s.st.P; i++ {
			if s.st.Mu[k].AtVec(i) > opts.MuMax {
				t.Fatal("penalty exceeded mu_max")
			}
		}
	}
}

func TestDualNonnegativityOnInequalities(t *testing.T) {
	p := lqrProblem()
	p.ControlLower = []float64{-0.5}
	p.ControlUpper = []float64{0.5}

	s, err := New(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Solve(); err != nil {
		t.Fatal(err)
	}

	for k := range s.st.Lambda {
		for i := 0; i < s.st.PI; i++ {
			if s.st.Lambda[k].AtVec(i) < 0 {
				t.Fatalf("inequality multiplier negative at knot %d row %d", k, i)
			}
		}
	}
}

func TestControlBoundsRespected(t *testing.T) {
	p := lqrProblem()
	p.ControlLower = []float64{-0.5}
	p.ControlUpper = []float64{0.5}

	s, err := New(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Solve()
	if err != nil {
		t.Fatal(err)
	}
	for k := range res.U {
		if res.U[k][0] < -0.5-1e-9 || res.U[k][0] > 0.5+1e-9 {
			t.Fatalf("control %g at knot %d violates bounds", res.U[k][0], k)
		}
	}
}

func TestInfeasibleRoundTrip(t *testing.T) {
	p := lqrProblem()
	p.Goal = []float64{0, 0}
	p.XGuess = make([][]float64, p.N)
	for k := 0; k < p.N; k++ {
		t01 := float64(k) / float64(p.N-1)
		p.XGuess[k] = []float64{(1 - t01) * 1.0, 0}
	}

	opts := DefaultOptions()
	opts.Infeasible = true
	opts.ResolveFeasible = true

	s, err := New(p, opts)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Solve()
	if err != nil {
		t.Fatal(err)
	}

	if res.Stats.Infeasible == nil {
		t.Fatal("infeasible-phase statistics missing")
	}

	// slack controls of the first phase must have been driven to tolerance
	mbar := s.prob.model.mbar
	for k := 0; k < s.st.N-1; k++ {
		for i := 0; i < s.st.NX; i++ {
			if sl := math.Abs(s.st.U[k].AtVec(mbar + i)); sl > opts.ConstraintTolerance {
				t.Fatalf("slack %g at knot %d above tolerance", sl, k)
			}
		}
	}

	// projected result satisfies the real dynamics
	model := physics.NewDiscreteDoubleIntegrator()
	for k := 0; k < len(res.U); k++ {
		next := model.Step(res.X[k], res.U[k], p.Dt)
		for i := range next {
			if math.Abs(next[i]-res.X[k+1][i]) > 1e-9 {
				t.Fatalf("projected trajectory violates dynamics at knot %d", k)
			}
		}
	}

	xN := res.X[len(res.X)-1]
	if math.Hypot(xN[0], xN[1]) > 1e-2 {
		t.Errorf("terminal state %v too far from the goal", xN)
	}
}

func TestBadInitialControlsFallBack(t *testing.T) {
	p := lqrProblem()
	p.U0 = make([][]float64, p.N-1)
	for k := range p.U0 {
		p.U0[k] = []float64{1e300}
	}
	s, err := New(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Solve()
	if err != nil {
		t.Fatalf("solver must fall back to zero controls, got %v", err)
	}
	if res.Status != StatusConverged {
		t.Errorf("status = %s, want Converged after fallback", res.Status)
	}
}

func TestConfigurationErrors(t *testing.T) {
	base := lqrProblem()

	cases := []struct {
		name   string
		mutate func(*Problem, *Options)
	}{
		{"missing model", func(p *Problem, o *Options) { p.Model = nil }},
		{"short horizon", func(p *Problem, o *Options) { p.N = 1 }},
		{"bad dt", func(p *Problem, o *Options) { p.Dt = 0 }},
		{"wrong x0", func(p *Problem, o *Options) { p.X0 = []float64{1} }},
		{"bad reg type", func(p *Problem, o *Options) { o.BpRegType = "diagonal" }},
		{"bad outer scheme", func(p *Problem, o *Options) { o.OuterLoop = "adaptive" }},
		{"empty bound interval", func(p *Problem, o *Options) {
			p.ControlLower = []float64{1}
			p.ControlUpper = []float64{-1}
		}},
		{"infeasible without guess", func(p *Problem, o *Options) { o.Infeasible = true }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			opts := DefaultOptions()
			tc.mutate(&p, opts)
			if _, err := New(p, opts); err == nil {
				t.Error("expected configuration error")
			}
		})
	}
}

func TestIndividualPenaltyScheme(t *testing.T) {
	p := lqrProblem()
	p.Goal = []float64{0, 0}

	opts := DefaultOptions()
	opts.OuterLoop = "individual"
	s, err := New(p, opts)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Solve()
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusConverged {
		t.Errorf("status = %s, want Converged", res.Status)
	}
	if res.Stats.FinalCMax() > opts.ConstraintTolerance {
		t.Errorf("c_max = %g above tolerance at convergence", res.Stats.FinalCMax())
	}
}

func TestFeasibilityOnConvergence(t *testing.T) {
	p := lqrProblem()
	p.Goal = []float64{0, 0}

	s, err := New(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Solve()
	if err != nil {
		t.Fatal(err)
	}
	if res.Status == StatusConverged && res.Stats.FinalCMax() > DefaultOptions().ConstraintTolerance {
		t.Errorf("converged with c_max = %g above tolerance", res.Stats.FinalCMax())
	}
}

func TestMinimumTimeAugmentation(t *testing.T) {
	opts := DefaultOptions()
	opts.MinimumTime = true

	s, err := New(lqrProblem(), opts)
	if err != nil {
		t.Fatal(err)
	}

	if s.st.Mbar != 2 || s.st.MM != 2 {
		t.Fatalf("augmented dims mbar=%d mm=%d, want 2, 2", s.st.Mbar, s.st.MM)
	}
	// sqrt-dt control seeded from the nominal timestep
	if got, want := s.st.U[0].AtVec(1), math.Sqrt(0.1); math.Abs(got-want) > 1e-12 {
		t.Errorf("sqrt-dt seed = %g, want %g", got, want)
	}
	// two finite bound rows on the sqrt-dt control plus the tie equality
	if s.set.PI() != 2 || s.set.P() != 3 {
		t.Errorf("stack pi=%d p=%d, want 2, 3", s.set.PI(), s.set.P())
	}
}

func TestSecondOrderDualUpdate(t *testing.T) {
	p := lqrProblem()
	p.ControlLower = []float64{-0.5}
	p.ControlUpper = []float64{0.5}

	opts := DefaultOptions()
	opts.SecondOrderDuals = true
	s, err := New(p, opts)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Solve()
	if err != nil {
		t.Fatal(err)
	}
	for k := range res.U {
		if math.Abs(res.U[k][0]) > 0.5+1e-9 {
			t.Fatalf("control out of bounds at knot %d", k)
		}
	}
	for k := range s.st.Lambda {
		for i := 0; i < s.st.PI; i++ {
			if s.st.Lambda[k].AtVec(i) < 0 {
				t.Fatal("inequality multipliers must stay nonnegative")
			}
		}
	}
}

func TestStateSchemeSolves(t *testing.T) {
	opts := DefaultOptions()
	opts.BpRegType = "state"
	opts.RhoInitial = 1.0
	s, err := New(lqrProblem(), opts)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Solve()
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusConverged {
		t.Errorf("status = %s, want Converged under state regularization", res.Status)
	}
}
