package dynamo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

type Control []float64

func (u Control) Clone() Control {
	c := make(Control, len(u))
	copy(c, u)
	return c
}

// System is a continuous-time model x' = f(x, u, t).
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Linearizable systems expose analytic Jacobians of the continuous dynamics.
type Linearizable interface {
	Linearize(x State, u Control, t float64) (A, B *mat.Dense)
}

// Model is the discrete dynamics oracle consumed by the solver:
// x_{k+1} = F(x_k, u_k, dt) together with its Jacobians at the same point.
type Model interface {
	StateDim() int
	ControlDim() int
	Step(x State, u Control, dt float64) State
	Jacobians(x State, u Control, dt float64) (fdx, fdu *mat.Dense)
}
