// Package constraint assembles the stacked stage constraint vector, its
// Jacobians and the augmented-Lagrangian cost contributions.
package constraint

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/dynamo"
)

// Constraint is the user-supplied oracle. Eval writes ni inequality rows
// (c <= 0 feasible) followed by ne equality rows (c = 0 feasible) into c.
// Jacobians fills cx (rows×n) and cu (rows×m) in the same row order.
type Constraint interface {
	Dims() (ni, ne int)
	Eval(x dynamo.State, u dynamo.Control, c []float64)
	Jacobians(x dynamo.State, u dynamo.Control, cx, cu *mat.Dense)
}

// Set describes the full stage constraint stack for one problem. Row order is
// fixed: user inequalities, control upper bounds, control lower bounds, state
// upper bounds, state lower bounds, user equalities, sqrt-dt tie row, slack
// equality rows.
type Set struct {
	NX   int // state dimension
	NU   int // nominal control dimension
	Mbar int // NU plus the sqrt-dt control when MinTime
	MM   int // Mbar plus NX slacks when Infeasible

	Umin, Umax []float64 // length Mbar; may contain ±Inf
	Xmin, Xmax []float64 // length NX; may contain ±Inf
	User       Constraint
	Xf         []float64 // terminal goal, length NX

	MinTime    bool
	Infeasible bool

	piUser, peUser int
	uUp, uLo       []int // control components with finite bounds
	xUp, xLo       []int // state components with finite bounds
	pi, pe         int

	xs dynamo.State   // scratch for user oracle calls
	us dynamo.Control // scratch, nominal dims
	cs []float64      // scratch, user rows
	jx *mat.Dense     // scratch user Jacobians
	ju *mat.Dense
}

// Finalize resolves row counts and preallocates oracle scratch. Must be
// called once before any evaluation.
func (s *Set) Finalize() error {
	if s.NX <= 0 || s.NU < 0 || s.Mbar < s.NU || s.MM < s.Mbar {
		return errors.New("constraint: invalid dimensions")
	}
	if s.User != nil {
		s.piUser, s.peUser = s.User.Dims()
		s.cs = make([]float64, s.piUser+s.peUser)
		s.jx = mat.NewDense(s.piUser+s.peUser, s.NX, nil)
		s.ju = mat.NewDense(s.piUser+s.peUser, s.NU, nil)
	}
	s.uUp = finiteIdx(s.Umax, false)
	s.uLo = finiteIdx(s.Umin, true)
	s.xUp = finiteIdx(s.Xmax, false)
	s.xLo = finiteIdx(s.Xmin, true)

	s.pi = s.piUser + len(s.uUp) + len(s.uLo) + len(s.xUp) + len(s.xLo)
	s.pe = s.peUser
	if s.MinTime {
		s.pe++
	}
	if s.Infeasible {
		s.pe += s.NX
	}
	s.xs = make(dynamo.State, s.NX)
	s.us = make(dynamo.Control, s.NU)
	return nil
}

func finiteIdx(b []float64, lower bool) []int {
	var idx []int
	for i, v := range b {
		if lower && !math.IsInf(v, -1) || !lower && !math.IsInf(v, 1) {
			idx = append(idx, i)
		}
	}
	return idx
}

// P is the total stage row count, PI the leading inequality rows.
func (s *Set) P() int  { return s.pi + s.pe }
func (s *Set) PI() int { return s.pi }

// Any reports whether the stack carries stage rows at all.
func (s *Set) Any() bool { return s.P() > 0 }

func (s *Set) splitControl(u *mat.VecDense) {
	for i := 0; i < s.NU; i++ {
		s.us[i] = u.AtVec(i)
	}
}

// EvalStage writes the stacked residual for knot k into c. uPrev is the
// previous knot's control of the same trajectory (nil at k=0), used only by
// the sqrt-dt tie row.
func (s *Set) EvalStage(x, u, uPrev *mat.VecDense, c *mat.VecDense) {
	row := 0
	if s.User != nil {
		for i := 0; i < s.NX; i++ {
			s.xs[i] = x.AtVec(i)
		}
		s.splitControl(u)
		s.User.Eval(s.xs, s.us, s.cs)
		for i := 0; i < s.piUser; i++ {
			c.SetVec(row, s.cs[i])
			row++
		}
	}
	for _, j := range s.uUp {
		c.SetVec(row, u.AtVec(j)-s.Umax[j])
		row++
	}
	for _, j := range s.uLo {
		c.SetVec(row, s.Umin[j]-u.AtVec(j))
		row++
	}
	for _, j := range s.xUp {
		c.SetVec(row, x.AtVec(j)-s.Xmax[j])
		row++
	}
	for _, j := range s.xLo {
		c.SetVec(row, s.Xmin[j]-x.AtVec(j))
		row++
	}
	if s.User != nil {
		for i := 0; i < s.peUser; i++ {
			c.SetVec(row, s.cs[s.piUser+i])
			row++
		}
	}
	if s.MinTime {
		h := u.AtVec(s.Mbar - 1)
		if uPrev != nil {
			c.SetVec(row, h-uPrev.AtVec(s.Mbar-1))
		} else {
			c.SetVec(row, 0)
		}
		row++
	}
	if s.Infeasible {
		for i := 0; i < s.NX; i++ {
			c.SetVec(row, u.AtVec(s.Mbar+i))
			row++
		}
	}
}

// JacobianStage writes the stacked Jacobians for knot k. cx is p×n, cu is
// p×mm. Bound rows assemble as ±1 entries; slack rows as identity columns in
// the slack block.
func (s *Set) JacobianStage(x, u *mat.VecDense, cx, cu *mat.Dense) {
	cx.Zero()
	cu.Zero()
	row := 0
	if s.User != nil {
		for i := 0; i < s.NX; i++ {
			s.xs[i] = x.AtVec(i)
		}
		s.splitControl(u)
		s.User.Jacobians(s.xs, s.us, s.jx, s.ju)
		for i := 0; i < s.piUser; i++ {
			for j := 0; j < s.NX; j++ {
				cx.Set(row, j, s.jx.At(i, j))
			}
			for j := 0; j < s.NU; j++ {
				cu.Set(row, j, s.ju.At(i, j))
			}
			row++
		}
	}
	for _, j := range s.uUp {
		cu.Set(row, j, 1)
		row++
	}
	for _, j := range s.uLo {
		cu.Set(row, j, -1)
		row++
	}
	for _, j := range s.xUp {
		cx.Set(row, j, 1)
		row++
	}
	for _, j := range s.xLo {
		cx.Set(row, j, -1)
		row++
	}
	if s.User != nil {
		for i := 0; i < s.peUser; i++ {
			r := s.piUser + i
			for j := 0; j < s.NX; j++ {
				cx.Set(row, j, s.jx.At(r, j))
			}
			for j := 0; j < s.NU; j++ {
				cu.Set(row, j, s.ju.At(r, j))
			}
			row++
		}
	}
	if s.MinTime {
		cu.Set(row, s.Mbar-1, 1)
		row++
	}
	if s.Infeasible {
		for i := 0; i < s.NX; i++ {
			cu.Set(row, s.Mbar+i, 1)
			row++
		}
	}
}

// EvalTerminal writes the terminal equality residual c = x - xf. The terminal
// Jacobian is the identity and is never materialized.
func (s *Set) EvalTerminal(x *mat.VecDense, c *mat.VecDense) {
	for i := 0; i < s.NX; i++ {
		c.SetVec(i, x.AtVec(i)-s.Xf[i])
	}
}

// UpdateActive recomputes the active flags for the inequality block:
// row i is active iff c[i] > 0 or lambda[i] > 0. Equality rows are always
// active.
func (s *Set) UpdateActive(c, lambda *mat.VecDense, active []bool) {
	for i := 0; i < s.pi; i++ {
		active[i] = c.AtVec(i) > 0 || lambda.AtVec(i) > 0
	}
	for i := s.pi; i < s.pi+s.pe; i++ {
		active[i] = true
	}
}

// Clamp projects the bounded components of u onto [Umin, Umax] in place.
// Slack components are never clamped.
func (s *Set) Clamp(u *mat.VecDense) {
	for _, j := range s.uUp {
		if u.AtVec(j) > s.Umax[j] {
			u.SetVec(j, s.Umax[j])
		}
	}
	for _, j := range s.uLo {
		if u.AtVec(j) < s.Umin[j] {
			u.SetVec(j, s.Umin[j])
		}
	}
}

// Bounded reports whether any control bound rows exist.
func (s *Set) Bounded() bool { return len(s.uUp)+len(s.uLo) > 0 }
