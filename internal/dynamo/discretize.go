package dynamo

import (
	"gonum.org/v1/gonum/mat"
)

// Discretize wraps a continuous System into a discrete Model using the named
// integration method ("euler", "midpoint" or "rk4"). Jacobians of the
// discrete step are computed by central finite differences unless the system
// is Linearizable and the method is "euler", where the chain rule is exact.
func Discretize(sys System, method string) (Model, error) {
	switch method {
	case "euler", "midpoint", "rk4":
		return &discreteModel{sys: sys, method: method}, nil
	default:
		return nil, ErrUnknownIntegrator
	}
}

type discreteModel struct {
	sys    System
	method string

	// step scratch, sized on first use
	k1, k2, k3, k4, tmp State
}

func (d *discreteModel) StateDim() int   { return d.sys.StateDim() }
func (d *discreteModel) ControlDim() int { return d.sys.ControlDim() }

func (d *discreteModel) ensureScratch(n int) {
	if len(d.k1) != n {
		d.k1 = make(State, n)
		d.k2 = make(State, n)
		d.k3 = make(State, n)
		d.k4 = make(State, n)
		d.tmp = make(State, n)
	}
}

func (d *discreteModel) Step(x State, u Control, dt float64) State {
	n := len(x)
	d.ensureScratch(n)
	out := make(State, n)

	switch d.method {
	case "euler":
		dx := d.sys.Derive(x, u, 0)
		for i := 0; i < n; i++ {
			out[i] = x[i] + dt*dx[i]
		}
	case "midpoint":
		copy(d.k1, d.sys.Derive(x, u, 0))
		for i := 0; i < n; i++ {
			d.tmp[i] = x[i] + 0.5*dt*d.k1[i]
		}
		copy(d.k2, d.sys.Derive(d.tmp, u, 0.5*dt))
		for i := 0; i < n; i++ {
			out[i] = x[i] + dt*d.k2[i]
		}
	default: // rk4
		copy(d.k1, d.sys.Derive(x, u, 0))
		for i := 0; i < n; i++ {
			d.tmp[i] = x[i] + 0.5*dt*d.k1[i]
		}
		copy(d.k2, d.sys.Derive(d.tmp, u, 0.5*dt))
		for i := 0; i < n; i++ {
			d.tmp[i] = x[i] + 0.5*dt*d.k2[i]
		}
		copy(d.k3, d.sys.Derive(d.tmp, u, 0.5*dt))
		for i := 0; i < n; i++ {
			d.tmp[i] = x[i] + dt*d.k3[i]
		}
		copy(d.k4, d.sys.Derive(d.tmp, u, dt))
		dt6 := dt / 6.0
		for i := 0; i < n; i++ {
			out[i] = x[i] + dt6*(d.k1[i]+2*d.k2[i]+2*d.k3[i]+d.k4[i])
		}
	}
	return out
}

func (d *discreteModel) Jacobians(x State, u Control, dt float64) (fdx, fdu *mat.Dense) {
	n, m := d.sys.StateDim(), d.sys.ControlDim()

	if lin, ok := d.sys.(Linearizable); ok && d.method == "euler" && m > 0 {
		// x + dt*f(x, u): fdx = I + dt*A, fdu = dt*B
		A, B := lin.Linearize(x, u, 0)
		fdx = mat.NewDense(n, n, nil)
		fdx.Scale(dt, A)
		for i := 0; i < n; i++ {
			fdx.Set(i, i, fdx.At(i, i)+1)
		}
		fdu = mat.NewDense(n, m, nil)
		fdu.Scale(dt, B)
		return fdx, fdu
	}

	fdx = JacobianState(n, func(xi State) State { return d.Step(xi, u, dt) }, x)
	if m == 0 {
		return fdx, mat.NewDense(n, 1, nil)
	}
	fdu = JacobianControl(n, func(ui Control) State { return d.Step(x, ui, dt) }, u)
	return fdx, fdu
}
