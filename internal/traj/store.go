// Package traj owns all per-knot solver state: trajectories, gains,
// cost-to-go, constraint values, multipliers and penalties. Every buffer is
// allocated once per solve and mutated in place by the passes.
package traj

import (
	"gonum.org/v1/gonum/mat"
)

// Dims fixes the store layout for one solve.
type Dims struct {
	N    int // knot points, N >= 2
	NX   int // state dimension n
	NU   int // nominal control dimension m
	Mbar int // m (+1 with a sqrt-dt control)
	MM   int // mbar (+n with infeasible slacks)
	P    int // stage constraint rows after augmentation
	PI   int // leading inequality rows of P
}

// Store holds the mutable state of a solve. X and U hold the committed
// trajectory; Xc and Uc hold the line-search candidate. Candidates are
// promoted by Commit only after an accepted forward pass.
type Store struct {
	Dims

	X, U   []*mat.VecDense // X: N of n, U: N-1 of mm
	Xc, Uc []*mat.VecDense

	K []*mat.Dense    // N-1 of mm×n
	D []*mat.VecDense // N-1 of mm

	S  []*mat.Dense    // N of n×n cost-to-go Hessians
	Sv []*mat.VecDense // N of n cost-to-go gradients

	C      []*mat.VecDense // N-1 of p stage residuals
	CN     *mat.VecDense   // n terminal residual
	Cx     []*mat.Dense    // N-1 of p×n
	Cu     []*mat.Dense    // N-1 of p×mm
	Active [][]bool        // N-1 of p

	Lambda  []*mat.VecDense // N-1 of p
	LambdaN *mat.VecDense   // n
	Mu      []*mat.VecDense // N-1 of p
	MuN     *mat.VecDense   // n

	Cprev  []*mat.VecDense
	CNprev *mat.VecDense

	Fdx []*mat.Dense // N-1 of n×n
	Fdu []*mat.Dense // N-1 of n×mm

	Rho  float64
	DRho float64
}

// NewStore allocates a store at the given dimensions. Constraint fields are
// left nil when d.P == 0 and the terminal block nil for unconstrained solves;
// callers gate on Constrained().
func NewStore(d Dims, constrained bool) *Store {
	st := &Store{Dims: d}
	n, mm, p := d.NX, d.MM, d.P

	st.X = vecs(d.N, n)
	st.Xc = vecs(d.N, n)
	st.U = vecs(d.N-1, mm)
	st.Uc = vecs(d.N-1, mm)

	st.K = dense(d.N-1, mm, n)
	st.D = vecs(d.N-1, mm)

	st.S = dense(d.N, n, n)
	st.Sv = vecs(d.N, n)

	st.Fdx = dense(d.N-1, n, n)
	st.Fdu = dense(d.N-1, n, mm)

	if constrained {
		if p > 0 {
			st.C = vecs(d.N-1, p)
			st.Cprev = vecs(d.N-1, p)
			st.Cx = dense(d.N-1, p, n)
			st.Cu = dense(d.N-1, p, mm)
			st.Lambda = vecs(d.N-1, p)
			st.Mu = vecs(d.N-1, p)
			st.Active = make([][]bool, d.N-1)
			for k := range st.Active {
				st.Active[k] = make([]bool, p)
			}
		}
		st.CN = mat.NewVecDense(n, nil)
		st.CNprev = mat.NewVecDense(n, nil)
		st.LambdaN = mat.NewVecDense(n, nil)
		st.MuN = mat.NewVecDense(n, nil)
	}
	return st
}

func vecs(count, dim int) []*mat.VecDense {
	v := make([]*mat.VecDense, count)
	for i := range v {
		v[i] = mat.NewVecDense(dim, nil)
	}
	return v
}

func dense(count, r, c int) []*mat.Dense {
	m := make([]*mat.Dense, count)
	for i := range m {
		m[i] = mat.NewDense(r, c, nil)
	}
	return m
}

// Constrained reports whether the store carries constraint blocks.
func (st *Store) Constrained() bool { return st.CN != nil }

// SetPenalty initializes every penalty weight to mu0.
func (st *Store) SetPenalty(mu0 float64) {
	for k := range st.Mu {
		for i := 0; i < st.P; i++ {
			st.Mu[k].SetVec(i, mu0)
		}
	}
	if st.MuN != nil {
		for i := 0; i < st.NX; i++ {
			st.MuN.SetVec(i, mu0)
		}
	}
}

// Commit promotes the candidate trajectory after an accepted line search.
// The committed and candidate buffers are swapped, not copied.
func (st *Store) Commit() {
	st.X, st.Xc = st.Xc, st.X
	st.U, st.Uc = st.Uc, st.U
}

// Snapshot copies the current constraint values into the previous-iteration
// slots for the per-constraint penalty update.
func (st *Store) Snapshot() {
	for k := range st.C {
		st.Cprev[k].CopyVec(st.C[k])
	}
	if st.CN != nil {
		st.CNprev.CopyVec(st.CN)
	}
}

// MaxViolation is the largest constraint violation across the trajectory:
// max(0, c) on inequality rows, |c| on equality rows and the terminal block.
func (st *Store) MaxViolation() float64 {
	cmax := 0.0
	for k := range st.C {
		for i := 0; i < st.P; i++ {
			v := st.C[k].AtVec(i)
			if i >= st.PI {
				if v < 0 {
					v = -v
				}
			}
			if v > cmax {
				cmax = v
			}
		}
	}
	if st.CN != nil {
		for i := 0; i < st.NX; i++ {
			v := st.CN.AtVec(i)
			if v < 0 {
				v = -v
			}
			if v > cmax {
				cmax = v
			}
		}
	}
	return cmax
}

// Symmetrize enforces S[k] = (S[k] + S[k]')/2 in place.
func Symmetrize(s *mat.Dense) {
	r, _ := s.Dims()
	for i := 0; i < r; i++ {
		for j := i + 1; j < r; j++ {
			v := 0.5 * (s.At(i, j) + s.At(j, i))
			s.Set(i, j, v)
			s.Set(j, i, v)
		}
	}
}
