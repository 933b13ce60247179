// Package cost provides the quadratic objective oracle for the solver.
package cost

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// Quadratic is the objective
//
//	J = 1/2 (x_N - xf)' Qf (x_N - xf) + sum_k 1/2 (x_k - xf)' Q (x_k - xf)
//	    + 1/2 u_k' R u_k + (x_k - xf)' Qxu u_k
//
// with Qxu optional (nil when absent).
type Quadratic struct {
	Q   *mat.SymDense
	R   *mat.SymDense
	Qf  *mat.SymDense
	Qxu *mat.Dense
	Xf  *mat.VecDense

	dx *mat.VecDense // scratch x - xf
	qx *mat.VecDense
	ru *mat.VecDense
}

// NewQuadratic builds the oracle from dense coefficient data. q, r and qf are
// row-major n×n, m×m and n×n; xf has length n.
func NewQuadratic(n, m int, q, r, qf, xf []float64) (*Quadratic, error) {
	if len(q) != n*n || len(r) != m*m || len(qf) != n*n || len(xf) != n {
		return nil, errors.New("cost: coefficient dimensions do not match n, m")
	}
	return &Quadratic{
		Q:  mat.NewSymDense(n, q),
		R:  mat.NewSymDense(m, r),
		Qf: mat.NewSymDense(n, qf),
		Xf: mat.NewVecDense(n, xf),
		dx: mat.NewVecDense(n, nil),
		qx: mat.NewVecDense(n, nil),
		ru: mat.NewVecDense(m, nil),
	}, nil
}

// Diagonal builds the oracle from diagonal weights.
func Diagonal(n, m int, q, r, qf float64, xf []float64) *Quadratic {
	qd := make([]float64, n*n)
	rd := make([]float64, m*m)
	qfd := make([]float64, n*n)
	for i := 0; i < n; i++ {
		qd[i*n+i] = q
		qfd[i*n+i] = qf
	}
	for i := 0; i < m; i++ {
		rd[i*m+i] = r
	}
	c, _ := NewQuadratic(n, m, qd, rd, qfd, xf)
	return c
}

func (c *Quadratic) StateDim() int   { return c.Xf.Len() }
func (c *Quadratic) ControlDim() int { return c.R.SymmetricDim() }

// Stage evaluates the running cost at (x, u).
func (c *Quadratic) Stage(x, u *mat.VecDense) float64 {
	c.dx.SubVec(x, c.Xf)
	c.qx.MulVec(c.Q, c.dx)
	c.ru.MulVec(c.R, u)
	j := 0.5*mat.Dot(c.dx, c.qx) + 0.5*mat.Dot(u, c.ru)
	if c.Qxu != nil {
		tmp := mat.NewVecDense(u.Len(), nil)
		tmp.MulVec(c.Qxu.T(), c.dx)
		j += mat.Dot(tmp, u)
	}
	return j
}

// Terminal evaluates the final cost at x.
func (c *Quadratic) Terminal(x *mat.VecDense) float64 {
	c.dx.SubVec(x, c.Xf)
	c.qx.MulVec(c.Qf, c.dx)
	return 0.5 * mat.Dot(c.dx, c.qx)
}

// StageExpansion writes the gradient and Hessian blocks of the running cost
// into the provided buffers. lxx, luu and lux are overwritten; lx and lu are
// overwritten as well.
func (c *Quadratic) StageExpansion(x, u *mat.VecDense, lx, lu *mat.VecDense, lxx, luu, lux *mat.Dense) {
	n, m := c.StateDim(), c.ControlDim()
	c.dx.SubVec(x, c.Xf)

	lx.MulVec(c.Q, c.dx)
	lu.MulVec(c.R, u)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			lxx.Set(i, j, c.Q.At(i, j))
		}
	}
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			luu.Set(i, j, c.R.At(i, j))
		}
	}
	lux.Zero()
	if c.Qxu != nil {
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				lux.Set(i, j, c.Qxu.At(j, i))
			}
		}
		tmp := mat.NewVecDense(n, nil)
		tmp.MulVec(c.Qxu, u)
		lx.AddVec(lx, tmp)
		tmp2 := mat.NewVecDense(m, nil)
		tmp2.MulVec(c.Qxu.T(), c.dx)
		lu.AddVec(lu, tmp2)
	}
}

// TerminalExpansion writes grad and Hessian of the final cost.
func (c *Quadratic) TerminalExpansion(x *mat.VecDense, sx *mat.VecDense, sxx *mat.Dense) {
	n := c.StateDim()
	c.dx.SubVec(x, c.Xf)
	sx.MulVec(c.Qf, c.dx)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sxx.Set(i, j, c.Qf.At(i, j))
		}
	}
}
