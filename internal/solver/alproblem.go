package solver

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/constraint"
	"github.com/san-kum/trajopt/internal/cost"
	"github.com/san-kum/trajopt/internal/dynamo"
	"github.com/san-kum/trajopt/internal/ilqr"
	"github.com/san-kum/trajopt/internal/traj"
)

// alProblem binds the oracles and the constraint stack to the ilqr passes.
// It evaluates the augmented-Lagrangian cost when the problem is constrained
// and the raw cost otherwise.
type alProblem struct {
	st    *traj.Store
	set   *constraint.Set // nil when unconstrained
	obj   *cost.Quadratic
	model *augModel

	maxNorm  float64
	wMinTime float64
	wInf     float64

	// oracle scratch
	xs, xn dynamo.State
	us     dynamo.Control
	unom   *mat.VecDense // m
	lum    *mat.VecDense // m
	luum   *mat.Dense    // m×m
	luxm   *mat.Dense    // m×n

	ccand      *mat.VecDense // p, candidate-trajectory residual
	activeCand []bool
	ctermCand  *mat.VecDense // n
}

func newALProblem(st *traj.Store, set *constraint.Set, obj *cost.Quadratic, model *augModel, o *Options) *alProblem {
	p := &alProblem{
		st: st, set: set, obj: obj, model: model,
		maxNorm:  o.MaxStateNorm,
		wMinTime: o.RMinimumTime,
		wInf:     o.RInfeasible,
		xs:       make(dynamo.State, st.NX),
		xn:       make(dynamo.State, st.NX),
		us:       make(dynamo.Control, st.MM),
		unom:     mat.NewVecDense(model.m, nil),
		lum:      mat.NewVecDense(model.m, nil),
		luum:     mat.NewDense(model.m, model.m, nil),
		luxm:     mat.NewDense(model.m, st.NX, nil),
	}
	if set != nil {
		if set.Any() {
			p.ccand = mat.NewVecDense(set.P(), nil)
			p.activeCand = make([]bool, set.P())
		}
		p.ctermCand = mat.NewVecDense(st.NX, nil)
	}
	return p
}

func (p *alProblem) splitNominal(u *mat.VecDense) {
	for i := 0; i < p.model.m; i++ {
		p.unom.SetVec(i, u.AtVec(i))
	}
}

// StageExpansion implements ilqr.Problem. The augmented blocks are assembled
// from the cost oracle on the nominal components, the sqrt-dt and slack
// weights on the augmented components, and the Gauss-Newton AL terms.
func (p *alProblem) StageExpansion(k int, e *ilqr.Expansion) {
	st := p.st
	x, u := st.X[k], st.U[k]
	m, mbar := p.model.m, p.model.mbar

	e.Zero()
	p.splitNominal(u)
	p.obj.StageExpansion(x, p.unom, e.Lx, p.lum, e.Lxx, p.luum, p.luxm)
	for i := 0; i < m; i++ {
		e.Lu.SetVec(i, p.lum.AtVec(i))
		for j := 0; j < m; j++ {
			e.Luu.Set(i, j, p.luum.At(i, j))
		}
		for j := 0; j < st.NX; j++ {
			e.Lux.Set(i, j, p.luxm.At(i, j))
		}
	}
	if p.model.minTime {
		h := u.AtVec(mbar - 1)
		e.Lu.SetVec(mbar-1, 2*p.wMinTime*h)
		e.Luu.Set(mbar-1, mbar-1, 2*p.wMinTime)
	}
	if p.model.infeasible {
		for i := 0; i < st.NX; i++ {
			idx := mbar + i
			e.Lu.SetVec(idx, p.wInf*u.AtVec(idx))
			e.Luu.Set(idx, idx, p.wInf)
		}
	}
	if p.set != nil && p.set.Any() {
		constraint.AddStageExpansion(st.C[k], st.Lambda[k], st.Mu[k], st.Active[k],
			st.Cx[k], st.Cu[k], e.Lx, e.Lu, e.Lxx, e.Luu, e.Lux)
	}
}

// Boundary implements ilqr.Problem.
func (p *alProblem) Boundary(s *mat.Dense, sv *mat.VecDense) {
	st := p.st
	p.obj.TerminalExpansion(st.X[st.N-1], sv, s)
	if p.set != nil {
		constraint.AddTerminalExpansion(st.CN, st.LambdaN, st.MuN, sv, s)
	}
}

// Rollout implements ilqr.Problem.
func (p *alProblem) Rollout(k int, x, u, xnext *mat.VecDense) bool {
	for i := 0; i < p.st.NX; i++ {
		p.xs[i] = x.AtVec(i)
	}
	for i := 0; i < p.st.MM; i++ {
		p.us[i] = u.AtVec(i)
	}
	xn := p.model.Step(p.xs, p.us)
	if !xn.IsValid() || xn.Norm() > p.maxNorm {
		return false
	}
	for i := 0; i < p.st.NX; i++ {
		xnext.SetVec(i, xn[i])
	}
	return true
}

// Cost implements ilqr.Problem: total cost of an arbitrary trajectory,
// including AL terms evaluated at that trajectory's own residuals and active
// set.
func (p *alProblem) Cost(x, u []*mat.VecDense) float64 {
	st := p.st
	mbar := p.model.mbar
	j := 0.0
	for k := 0; k < st.N-1; k++ {
		p.splitNominal(u[k])
		j += p.obj.Stage(x[k], p.unom)
		if p.model.minTime {
			h := u[k].AtVec(mbar - 1)
			j += p.wMinTime * h * h
		}
		if p.model.infeasible {
			for i := 0; i < st.NX; i++ {
				s := u[k].AtVec(mbar + i)
				j += 0.5 * p.wInf * s * s
			}
		}
		if p.set != nil && p.set.Any() {
			var uPrev *mat.VecDense
			if k > 0 {
				uPrev = u[k-1]
			}
			p.set.EvalStage(x[k], u[k], uPrev, p.ccand)
			p.set.UpdateActive(p.ccand, st.Lambda[k], p.activeCand)
			j += constraint.StageALCost(p.ccand, st.Lambda[k], st.Mu[k], p.activeCand)
		}
	}
	j += p.obj.Terminal(x[st.N-1])
	if p.set != nil {
		p.set.EvalTerminal(x[st.N-1], p.ctermCand)
		j += constraint.TerminalALCost(p.ctermCand, st.LambdaN, st.MuN)
	}
	return j
}

// Clamp implements ilqr.Problem.
func (p *alProblem) Clamp(u *mat.VecDense) {
	if p.set != nil && p.set.Bounded() {
		p.set.Clamp(u)
	}
}

// refreshConstraints re-evaluates residuals and the active set at the
// committed trajectory.
func (p *alProblem) refreshConstraints() {
	if p.set == nil {
		return
	}
	st := p.st
	if p.set.Any() {
		for k := 0; k < st.N-1; k++ {
			var uPrev *mat.VecDense
			if k > 0 {
				uPrev = st.U[k-1]
			}
			p.set.EvalStage(st.X[k], st.U[k], uPrev, st.C[k])
			p.set.UpdateActive(st.C[k], st.Lambda[k], st.Active[k])
		}
	}
	p.set.EvalTerminal(st.X[st.N-1], st.CN)
}

// refreshJacobians linearizes the dynamics and the constraint stack along
// the committed trajectory.
func (p *alProblem) refreshJacobians() {
	st := p.st
	for k := 0; k < st.N-1; k++ {
		for i := 0; i < st.NX; i++ {
			p.xs[i] = st.X[k].AtVec(i)
		}
		for i := 0; i < st.MM; i++ {
			p.us[i] = st.U[k].AtVec(i)
		}
		fdx, fdu := p.model.Jacobians(p.xs, p.us)
		st.Fdx[k].Copy(fdx)
		st.Fdu[k].Copy(fdu)
		if p.set != nil && p.set.Any() {
			p.set.JacobianStage(st.X[k], st.U[k], st.Cx[k], st.Cu[k])
		}
	}
}
