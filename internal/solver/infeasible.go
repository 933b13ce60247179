package solver

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/dynamo"
)

// initSlacks loads the supplied state trajectory and computes the slack
// controls u_inf[k] = X0[k+1] - f(X0[k], U0[k]) so the augmented dynamics
// reproduce the guess exactly.
func (s *Solver) initSlacks() {
	st := s.st
	model := s.prob.model
	xs := make(dynamo.State, st.NX)
	us := make(dynamo.Control, model.m)

	for k := 0; k < st.N; k++ {
		for i := 0; i < st.NX; i++ {
			st.X[k].SetVec(i, s.p.XGuess[k][i])
		}
	}
	// X[0] stays pinned to the problem's initial state
	for i := 0; i < st.NX; i++ {
		st.X[0].SetVec(i, s.p.X0[i])
	}
	for k := 0; k < st.N-1; k++ {
		for i := 0; i < st.NX; i++ {
			xs[i] = st.X[k].AtVec(i)
		}
		for i := 0; i < model.m; i++ {
			us[i] = st.U[k].AtVec(i)
		}
		dt := s.p.Dt
		if s.mode.MinTime {
			h := st.U[k].AtVec(model.mbar - 1)
			dt = h * h
		}
		xn := s.p.Model.Step(xs, us, dt)
		for i := 0; i < st.NX; i++ {
			st.U[k].SetVec(model.mbar+i, st.X[k+1].AtVec(i)-xn[i])
		}
	}
}

// solveInfeasible runs the slack-augmented phase, then strips the slacks and
// projects back onto the dynamically feasible manifold with a time-varying
// LQR tracking rollout; with resolve_feasible the projected trajectory seeds
// a full second solve of the original problem.
func (s *Solver) solveInfeasible() (*Result, error) {
	stats1 := Stats{SetupTime: s.setupTime}
	status1 := s.runLoop(&stats1)

	// strip slacks and track the slack-phase trajectory through the real
	// dynamics using the last feedback gains
	u0 := s.projectedControls()

	p2 := s.p
	p2.U0 = u0
	p2.XGuess = nil
	o2 := *s.opts
	o2.Infeasible = false

	s2, err := New(p2, &o2)
	if err != nil {
		return nil, err
	}
	s2.observers = s.observers
	s2.out = s.out
	if err := s2.initialRollout(); err != nil {
		return nil, err
	}

	stats2 := Stats{SetupTime: s.setupTime}
	status2 := status1
	if s.opts.ResolveFeasible {
		status2 = s2.runLoop(&stats2)
	} else {
		// a single projection pass: one backward/forward sweep
		iters, outers := s2.opts.Iterations, s2.opts.IterationsOuter
		s2.opts.Iterations, s2.opts.IterationsOuter = 1, 1
		status2 = s2.runLoop(&stats2)
		s2.opts.Iterations, s2.opts.IterationsOuter = iters, outers
	}

	res := s2.buildResult(status2, stats2)
	res.Stats.Infeasible = &stats1
	return res, nil
}

// projectedControls strips the slack components and folds the affine policy
// of the slack phase into a tracking rollout of the real dynamics:
// u[k] = U1[k] + K1[k](x[k] - X1[k]), x[k+1] = f(x[k], u[k]).
func (s *Solver) projectedControls() [][]float64 {
	st := s.st
	model := s.prob.model
	n, m := st.NX, st.NU

	u0 := make([][]float64, st.N-1)
	x := mat.NewVecDense(n, nil)
	dx := mat.NewVecDense(n, nil)
	du := mat.NewVecDense(st.MM, nil)
	x.CopyVec(st.X[0])

	xs := make(dynamo.State, n)
	us := make(dynamo.Control, m)

	for k := 0; k < st.N-1; k++ {
		dx.SubVec(x, st.X[k])
		du.MulVec(st.K[k], dx)
		row := make([]float64, m)
		for i := 0; i < m; i++ {
			row[i] = st.U[k].AtVec(i) + du.AtVec(i)
		}
		u0[k] = row

		for i := 0; i < n; i++ {
			xs[i] = x.AtVec(i)
		}
		copy(us, row)
		dt := s.p.Dt
		if s.mode.MinTime {
			h := st.U[k].AtVec(model.mbar - 1)
			dt = h * h
		}
		xn := s.p.Model.Step(xs, us, dt)
		if !xn.IsValid() {
			// fall back to the raw stripped controls from here on
			for kk := k; kk < st.N-1; kk++ {
				raw := make([]float64, m)
				for i := 0; i < m; i++ {
					raw[i] = st.U[kk].AtVec(i)
				}
				u0[kk] = raw
			}
			return u0
		}
		for i := 0; i < n; i++ {
			x.SetVec(i, xn[i])
		}
	}
	return u0
}
