package ilqr

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/traj"
)

// SearchOpts tunes the backtracking line search.
type SearchOpts struct {
	Beta     float64 // step shrink factor
	AlphaMin float64 // smallest admissible step
	MaxIter  int     // rollout attempts per pass
	ZMin     float64 // acceptance window on actual/expected reduction
	ZMax     float64
}

func DefaultSearchOpts() SearchOpts {
	return SearchOpts{Beta: 0.5, AlphaMin: 1e-8, MaxIter: 10, ZMin: 1e-8, ZMax: 10}
}

// Forward rolls out the affine policy with a backtracked step and applies the
// expected-vs-actual reduction acceptance rule.
type Forward struct {
	opts SearchOpts
	dx   *mat.VecDense // n
	kdx  *mat.VecDense // mm
}

func NewForward(n, mm int, opts SearchOpts) *Forward {
	return &Forward{opts: opts, dx: mat.NewVecDense(n, nil), kdx: mat.NewVecDense(mm, nil)}
}

// Run attempts the line search. On acceptance the candidate trajectory is
// committed, the regularization decreased, and the new cost returned. On
// rejection the committed trajectory is untouched, the regularization
// increased, and jPrev returned; overflow reports that the schedule hit its
// ceiling.
func (f *Forward) Run(st *traj.Store, p Problem, dv1, dv2, jPrev float64, reg *Reg) (j float64, accepted bool, alpha float64, overflow bool) {
	alpha = 1.0
	for iter := 0; iter < f.opts.MaxIter && alpha >= f.opts.AlphaMin; iter++ {
		expected := -(alpha*dv1 + alpha*alpha*dv2)
		if expected <= 0 {
			// no descent predicted
			break
		}
		if !f.rollout(st, p, alpha) {
			alpha *= f.opts.Beta
			continue
		}
		jNew := p.Cost(st.Xc, st.Uc)
		z := (jPrev - jNew) / expected
		if z >= f.opts.ZMin && z <= f.opts.ZMax {
			st.Commit()
			reg.Decrease()
			return jNew, true, alpha, false
		}
		alpha *= f.opts.Beta
	}
	overflow = reg.Increase()
	return jPrev, false, alpha, overflow
}

func (f *Forward) rollout(st *traj.Store, p Problem, alpha float64) bool {
	st.Xc[0].CopyVec(st.X[0])
	for k := 0; k < st.N-1; k++ {
		f.dx.SubVec(st.Xc[k], st.X[k])
		f.kdx.MulVec(st.K[k], f.dx)
		st.Uc[k].AddScaledVec(f.kdx, alpha, st.D[k])
		st.Uc[k].AddVec(st.Uc[k], st.U[k])
		p.Clamp(st.Uc[k])
		if !p.Rollout(k, st.Xc[k], st.Uc[k], st.Xc[k+1]) {
			return false
		}
	}
	return true
}
