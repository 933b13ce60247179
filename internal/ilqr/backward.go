package ilqr

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/traj"
)

// ErrRegOverflow reports that the regularization schedule hit its ceiling
// while trying to make Quu positive definite. The caller abandons the step
// and lets the outer loop proceed.
var ErrRegOverflow = errors.New("ilqr: regularization overflow in backward pass")

// Backward runs the Riccati recursion, producing gains K, feedforwards d and
// the quadratic cost-to-go (S, s) in the store, together with the expected
// reduction pair (dv1, dv2). All scratch is allocated once at construction.
type Backward struct {
	n, mm  int
	scheme RegScheme
	sqrt   bool

	e *Expansion

	qx, qu   *mat.VecDense
	qxx, quu *mat.Dense
	qux      *mat.Dense
	quuReg   *mat.Dense
	quxReg   *mat.Dense

	sf  *mat.Dense // S_{k+1} fdx, n×n
	sfu *mat.Dense // S_{k+1} fdu, n×mm
	ftf *mat.Dense // fdu'fdu, mm×mm
	ftx *mat.Dense // fdu'fdx, mm×n

	wx *mat.Dense // sqrt variant: U fdx
	wu *mat.Dense // sqrt variant: U fdu

	sym     *mat.SymDense // mm, symmetrized QuuReg for the PD check
	symS    *mat.SymDense // n, cost-to-go factor for the sqrt variant
	chol    mat.Cholesky
	cholS   mat.Cholesky
	factorU *mat.Dense // n×n upper factor of S_{k+1}
	tri     *mat.TriDense

	tmpU  *mat.VecDense // mm
	tmpX  *mat.VecDense // n
	quuK  *mat.Dense    // mm×n
	ktQuu *mat.Dense    // n×n accumulation scratch
}

func NewBackward(n, mm int, scheme RegScheme, sqrt bool) *Backward {
	return &Backward{
		n: n, mm: mm, scheme: scheme, sqrt: sqrt,
		e:       NewExpansion(n, mm),
		qx:      mat.NewVecDense(n, nil),
		qu:      mat.NewVecDense(mm, nil),
		qxx:     mat.NewDense(n, n, nil),
		quu:     mat.NewDense(mm, mm, nil),
		qux:     mat.NewDense(mm, n, nil),
		quuReg:  mat.NewDense(mm, mm, nil),
		quxReg:  mat.NewDense(mm, n, nil),
		sf:      mat.NewDense(n, n, nil),
		sfu:     mat.NewDense(n, mm, nil),
		ftf:     mat.NewDense(mm, mm, nil),
		ftx:     mat.NewDense(mm, n, nil),
		wx:      mat.NewDense(n, n, nil),
		wu:      mat.NewDense(n, mm, nil),
		sym:     mat.NewSymDense(mm, nil),
		symS:    mat.NewSymDense(n, nil),
		factorU: mat.NewDense(n, n, nil),
		tri:     mat.NewTriDense(n, mat.Upper, nil),
		tmpU:    mat.NewVecDense(mm, nil),
		tmpX:    mat.NewVecDense(n, nil),
		quuK:    mat.NewDense(mm, n, nil),
		ktQuu:   mat.NewDense(n, n, nil),
	}
}

// Run executes the pass over the whole horizon. On an indefinite Quu the
// regularization is increased and the recursion restarts from the terminal
// knot; ErrRegOverflow is returned when no finite shift renders Quu positive
// definite.
func (b *Backward) Run(st *traj.Store, p Problem, reg *Reg) (dv1, dv2 float64, err error) {
	last := st.N - 1

restart:
	p.Boundary(st.S[last], st.Sv[last])
	traj.Symmetrize(st.S[last])
	dv1, dv2 = 0, 0

	for k := last - 1; k >= 0; k-- {
		p.StageExpansion(k, b.e)
		fdx, fdu := st.Fdx[k], st.Fdu[k]

		// action-value expansion
		b.qx.MulVec(fdx.T(), st.Sv[k+1])
		b.qx.AddVec(b.qx, b.e.Lx)
		b.qu.MulVec(fdu.T(), st.Sv[k+1])
		b.qu.AddVec(b.qu, b.e.Lu)

		if b.sqrt && b.factorize(st.S[k+1]) {
			// carry the cost-to-go through its Cholesky factor:
			// Qxx = lxx + (Ufdx)'(Ufdx), and likewise for the control blocks
			b.wx.Mul(b.factorU, fdx)
			b.wu.Mul(b.factorU, fdu)
			b.qxx.Mul(b.wx.T(), b.wx)
			b.quu.Mul(b.wu.T(), b.wu)
			b.qux.Mul(b.wu.T(), b.wx)
		} else {
			b.sf.Mul(st.S[k+1], fdx)
			b.sfu.Mul(st.S[k+1], fdu)
			b.qxx.Mul(fdx.T(), b.sf)
			b.quu.Mul(fdu.T(), b.sfu)
			b.qux.Mul(fdu.T(), b.sf)
		}
		b.qxx.Add(b.qxx, b.e.Lxx)
		b.quu.Add(b.quu, b.e.Luu)
		b.qux.Add(b.qux, b.e.Lux)

		// regularized variants
		b.quuReg.Copy(b.quu)
		b.quxReg.Copy(b.qux)
		switch b.scheme {
		case RegState:
			b.ftf.Mul(fdu.T(), fdu)
			b.ftf.Scale(reg.Rho, b.ftf)
			b.quuReg.Add(b.quuReg, b.ftf)
			b.ftx.Mul(fdu.T(), fdx)
			b.ftx.Scale(reg.Rho, b.ftx)
			b.quxReg.Add(b.quxReg, b.ftx)
		default:
			for i := 0; i < b.mm; i++ {
				b.quuReg.Set(i, i, b.quuReg.At(i, i)+reg.Rho)
			}
		}

		for i := 0; i < b.mm; i++ {
			for j := i; j < b.mm; j++ {
				b.sym.SetSym(i, j, 0.5*(b.quuReg.At(i, j)+b.quuReg.At(j, i)))
			}
		}
		if !b.chol.Factorize(b.sym) {
			if reg.Increase() {
				return 0, 0, ErrRegOverflow
			}
			goto restart
		}

		// gains
		if err := b.chol.SolveTo(st.K[k], b.quxReg); err != nil {
			if reg.Increase() {
				return 0, 0, ErrRegOverflow
			}
			goto restart
		}
		st.K[k].Scale(-1, st.K[k])
		if err := b.chol.SolveVecTo(st.D[k], b.qu); err != nil {
			if reg.Increase() {
				return 0, 0, ErrRegOverflow
			}
			goto restart
		}
		st.D[k].ScaleVec(-1, st.D[k])

		// value backup with the unregularized blocks:
		// s = Qx + K'(Quu d + Qu) + Qux' d
		b.tmpU.MulVec(b.quu, st.D[k])
		b.tmpU.AddVec(b.tmpU, b.qu)
		st.Sv[k].MulVec(st.K[k].T(), b.tmpU)
		b.tmpX.MulVec(b.qux.T(), st.D[k])
		st.Sv[k].AddVec(st.Sv[k], b.tmpX)
		st.Sv[k].AddVec(st.Sv[k], b.qx)

		// S = Qxx + K'Quu K + K'Qux + Qux'K
		b.quuK.Mul(b.quu, st.K[k])
		b.ktQuu.Mul(st.K[k].T(), b.quuK)
		st.S[k].Add(b.qxx, b.ktQuu)
		b.ktQuu.Mul(st.K[k].T(), b.qux)
		st.S[k].Add(st.S[k], b.ktQuu)
		b.ktQuu.Mul(b.qux.T(), st.K[k])
		st.S[k].Add(st.S[k], b.ktQuu)
		traj.Symmetrize(st.S[k])

		dv1 += mat.Dot(st.D[k], b.qu)
		b.tmpU.MulVec(b.quu, st.D[k])
		dv2 += 0.5 * mat.Dot(st.D[k], b.tmpU)
	}

	reg.Decrease()
	return dv1, dv2, nil
}

// factorize attempts a Cholesky factorization of s, retrying with a small
// diagonal jitter once. The upper factor lands in factorU.
func (b *Backward) factorize(s *mat.Dense) bool {
	for i := 0; i < b.n; i++ {
		for j := i; j < b.n; j++ {
			b.symS.SetSym(i, j, 0.5*(s.At(i, j)+s.At(j, i)))
		}
	}
	if !b.cholS.Factorize(b.symS) {
		for i := 0; i < b.n; i++ {
			b.symS.SetSym(i, i, b.symS.At(i, i)+1e-12)
		}
		if !b.cholS.Factorize(b.symS) {
			return false
		}
	}
	b.cholS.UTo(b.tri)
	b.factorU.Copy(b.tri)
	return true
}
