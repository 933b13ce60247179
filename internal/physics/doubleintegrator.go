package physics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/dynamo"
)

// DoubleIntegrator is a 1D point mass: position and velocity driven by an
// acceleration input.
type DoubleIntegrator struct {
	Mass float64
}

func NewDoubleIntegrator() *DoubleIntegrator {
	return &DoubleIntegrator{Mass: 1.0}
}

func (d *DoubleIntegrator) StateDim() int {
	return 2
}

func (d *DoubleIntegrator) ControlDim() int {
	return 1
}

func (d *DoubleIntegrator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	force := 0.0
	if len(u) > 0 {
		force = u[0]
	}
	return dynamo.State{x[1], force / d.Mass}
}

func (d *DoubleIntegrator) Linearize(x dynamo.State, u dynamo.Control, t float64) (A, B *mat.Dense) {
	A = mat.NewDense(2, 2, []float64{0, 1, 0, 0})
	B = mat.NewDense(2, 1, []float64{0, 1 / d.Mass})
	return A, B
}

// DiscreteDoubleIntegrator is the forward-Euler discretization
// x' = x + dt*[v; u], exposed directly as a [dynamo.Model] with exact
// Jacobians.
type DiscreteDoubleIntegrator struct{}

func NewDiscreteDoubleIntegrator() *DiscreteDoubleIntegrator {
	return &DiscreteDoubleIntegrator{}
}

func (d *DiscreteDoubleIntegrator) StateDim() int   { return 2 }
func (d *DiscreteDoubleIntegrator) ControlDim() int { return 1 }

func (d *DiscreteDoubleIntegrator) Step(x dynamo.State, u dynamo.Control, dt float64) dynamo.State {
	force := 0.0
	if len(u) > 0 {
		force = u[0]
	}
	return dynamo.State{x[0] + dt*x[1], x[1] + dt*force}
}

func (d *DiscreteDoubleIntegrator) Jacobians(x dynamo.State, u dynamo.Control, dt float64) (fdx, fdu *mat.Dense) {
	fdx = mat.NewDense(2, 2, []float64{1, dt, 0, 1})
	fdu = mat.NewDense(2, 1, []float64{0, dt})
	return fdx, fdu
}
