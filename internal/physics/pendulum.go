package physics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/dynamo"
)

type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    1.0,
		Length:  0.5,
		Damping: 0.1,
		Gravity: 9.81,
	}
}

func (p *Pendulum) StateDim() int {
	return 2
}

func (p *Pendulum) ControlDim() int {
	return 1
}

func (p *Pendulum) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	theta := x[0]
	omega := x[1]

	torque := 0.0
	if len(u) > 0 {
		torque = u[0]
	}

	ml2 := p.Mass * p.Length * p.Length
	alpha := (torque - p.Mass*p.Gravity*p.Length*math.Sin(theta) - p.Damping*omega) / ml2

	return dynamo.State{omega, alpha}
}

func (p *Pendulum) Linearize(x dynamo.State, u dynamo.Control, t float64) (A, B *mat.Dense) {
	ml2 := p.Mass * p.Length * p.Length
	A = mat.NewDense(2, 2, []float64{
		0, 1,
		-p.Mass * p.Gravity * p.Length * math.Cos(x[0]) / ml2, -p.Damping / ml2,
	})
	B = mat.NewDense(2, 1, []float64{0, 1 / ml2})
	return A, B
}
