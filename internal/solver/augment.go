package solver

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/dynamo"
)

// augModel wraps the user's discrete Model so the passes see a single
// control vector of width mm: [u_nominal | sqrt-dt | slacks]. The augmented
// dynamics are f~(x, [u;h;s]) = f(x, u, h^2) + s. Jacobian buffers are reused
// across calls; callers copy, never retain.
type augModel struct {
	base dynamo.Model
	n    int
	m    int
	mbar int
	mm   int

	minTime    bool
	infeasible bool
	dt         float64

	us  dynamo.Control // nominal control scratch
	fdx *mat.Dense     // n×n
	fdu *mat.Dense     // n×mm
}

func newAugModel(base dynamo.Model, mode Mode, dt float64) *augModel {
	n, m := base.StateDim(), base.ControlDim()
	mbar := m
	if mode.MinTime {
		mbar++
	}
	mm := mbar
	if mode.Infeasible {
		mm += n
	}
	return &augModel{
		base: base, n: n, m: m, mbar: mbar, mm: mm,
		minTime: mode.MinTime, infeasible: mode.Infeasible, dt: dt,
		us:  make(dynamo.Control, m),
		fdx: mat.NewDense(n, n, nil),
		fdu: mat.NewDense(n, mm, nil),
	}
}

func (a *augModel) stepSize(u dynamo.Control) float64 {
	if a.minTime {
		h := u[a.mbar-1]
		return h * h
	}
	return a.dt
}

func (a *augModel) Step(x dynamo.State, u dynamo.Control) dynamo.State {
	copy(a.us, u[:a.m])
	xn := a.base.Step(x, a.us, a.stepSize(u))
	if a.infeasible {
		for i := 0; i < a.n; i++ {
			xn[i] += u[a.mbar+i]
		}
	}
	return xn
}

// Jacobians returns fdx (n×n) and fdu (n×mm) of the augmented step. The
// sqrt-dt column is d f/d h = 2h * d f/d dt, estimated by a central
// difference in dt; the slack block is the identity.
func (a *augModel) Jacobians(x dynamo.State, u dynamo.Control) (fdx, fdu *mat.Dense) {
	copy(a.us, u[:a.m])
	dt := a.stepSize(u)
	bx, bu := a.base.Jacobians(x, a.us, dt)

	a.fdx.Copy(bx)
	a.fdu.Zero()
	for i := 0; i < a.n; i++ {
		for j := 0; j < a.m; j++ {
			a.fdu.Set(i, j, bu.At(i, j))
		}
	}
	if a.minTime {
		h := u[a.mbar-1]
		eps := 1e-6
		fp := a.base.Step(x, a.us, dt+eps)
		fm := a.base.Step(x, a.us, dt-eps)
		for i := 0; i < a.n; i++ {
			dfddt := (fp[i] - fm[i]) / (2 * eps)
			a.fdu.Set(i, a.mbar-1, 2*h*dfddt)
		}
	}
	if a.infeasible {
		for i := 0; i < a.n; i++ {
			a.fdu.Set(i, a.mbar+i, 1)
		}
	}
	return a.fdx, a.fdu
}
