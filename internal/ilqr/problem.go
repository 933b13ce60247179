package ilqr

import (
	"gonum.org/v1/gonum/mat"
)

// Expansion is the quadratic model of the augmented stage cost at one knot.
// Buffers are owned by the backward pass and overwritten per knot.
type Expansion struct {
	Lx  *mat.VecDense // n
	Lu  *mat.VecDense // mm
	Lxx *mat.Dense    // n×n
	Luu *mat.Dense    // mm×mm
	Lux *mat.Dense    // mm×n
}

func NewExpansion(n, mm int) *Expansion {
	return &Expansion{
		Lx:  mat.NewVecDense(n, nil),
		Lu:  mat.NewVecDense(mm, nil),
		Lxx: mat.NewDense(n, n, nil),
		Luu: mat.NewDense(mm, mm, nil),
		Lux: mat.NewDense(mm, n, nil),
	}
}

func (e *Expansion) Zero() {
	e.Lx.Zero()
	e.Lu.Zero()
	e.Lxx.Zero()
	e.Luu.Zero()
	e.Lux.Zero()
}

// Problem binds the oracles to the passes. Implementations are provided by
// the solver package; all methods evaluate the augmented-Lagrangian cost when
// the problem is constrained.
type Problem interface {
	// StageExpansion fills e with the quadratic model at the committed
	// (X[k], U[k]).
	StageExpansion(k int, e *Expansion)

	// Boundary writes the terminal cost-to-go (Hessian and gradient) at the
	// committed X[N], including any terminal-constraint augmentation.
	Boundary(s *mat.Dense, sv *mat.VecDense)

	// Rollout advances the candidate trajectory one step:
	// xnext = f(x, u, dt_k). Returns false when the step is non-finite or
	// exceeds the state-norm guard.
	Rollout(k int, x, u, xnext *mat.VecDense) bool

	// Cost evaluates the total (augmented) cost of a trajectory.
	Cost(x, u []*mat.VecDense) float64

	// Clamp projects bounded control components in place. A no-op when the
	// problem carries no control bounds.
	Clamp(u *mat.VecDense)
}
