package dynamo

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// linear2d is x' = [v; u] with exact discrete solution for testing.
type linear2d struct{}

func (linear2d) StateDim() int   { return 2 }
func (linear2d) ControlDim() int { return 1 }

func (linear2d) Derive(x State, u Control, t float64) State {
	f := 0.0
	if len(u) > 0 {
		f = u[0]
	}
	return State{x[1], f}
}

func (linear2d) Linearize(x State, u Control, t float64) (A, B *mat.Dense) {
	A = mat.NewDense(2, 2, []float64{0, 1, 0, 0})
	B = mat.NewDense(2, 1, []float64{0, 1})
	return A, B
}

func TestDiscretizeUnknownMethod(t *testing.T) {
	if _, err := Discretize(linear2d{}, "verlet"); err == nil {
		t.Error("unknown method must be rejected")
	}
}

func TestRK4ExactOnLinearSystem(t *testing.T) {
	m, err := Discretize(linear2d{}, "rk4")
	if err != nil {
		t.Fatal(err)
	}
	dt := 0.1
	x := State{1, 2}
	u := Control{3}

	got := m.Step(x, u, dt)

	// exact: p' = p + v dt + 0.5 u dt^2, v' = v + u dt
	wantP := 1 + 2*dt + 0.5*3*dt*dt
	wantV := 2 + 3*dt
	if math.Abs(got[0]-wantP) > 1e-12 || math.Abs(got[1]-wantV) > 1e-12 {
		t.Errorf("step = (%g, %g), want (%g, %g)", got[0], got[1], wantP, wantV)
	}
}

func TestJacobiansMatchExactLinearization(t *testing.T) {
	m, err := Discretize(linear2d{}, "euler")
	if err != nil {
		t.Fatal(err)
	}
	dt := 0.05
	fdx, fdu := m.Jacobians(State{0.3, -0.7}, Control{1.2}, dt)

	// Euler on a linear system: fdx = I + dt*A, fdu = dt*B
	want := mat.NewDense(2, 2, []float64{1, dt, 0, 1})
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if math.Abs(fdx.At(i, j)-want.At(i, j)) > 1e-6 {
				t.Errorf("fdx[%d,%d] = %g, want %g", i, j, fdx.At(i, j), want.At(i, j))
			}
		}
	}
	if math.Abs(fdu.At(0, 0)) > 1e-6 || math.Abs(fdu.At(1, 0)-dt) > 1e-6 {
		t.Errorf("fdu = (%g, %g), want (0, %g)", fdu.At(0, 0), fdu.At(1, 0), dt)
	}
}

func TestStateValidity(t *testing.T) {
	if (State{1, math.NaN()}).IsValid() {
		t.Error("NaN state must be invalid")
	}
	if (State{math.Inf(1)}).IsValid() {
		t.Error("Inf state must be invalid")
	}
	if !(State{1, 2}).IsValid() {
		t.Error("finite state must be valid")
	}
	if got := (State{3, 4}).Norm(); got != 5 {
		t.Errorf("norm = %g, want 5", got)
	}
}

func TestJacobianStateCentralDifference(t *testing.T) {
	f := func(x State) State {
		return State{x[0] * x[0], x[0] * x[1]}
	}
	jac := JacobianState(2, f, State{2, 3})
	want := [][2]float64{{4, 0}, {3, 2}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if math.Abs(jac.At(i, j)-want[i][j]) > 1e-6 {
				t.Errorf("jac[%d,%d] = %g, want %g", i, j, jac.At(i, j), want[i][j])
			}
		}
	}
}
