package cost

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestStageAndTerminalValues(t *testing.T) {
	q := Diagonal(2, 1, 1, 2, 100, []float64{0, 0})

	x := mat.NewVecDense(2, []float64{1, 2})
	u := mat.NewVecDense(1, []float64{3})

	// 0.5*(1+4) + 0.5*2*9 = 2.5 + 9
	if got, want := q.Stage(x, u), 11.5; math.Abs(got-want) > 1e-12 {
		t.Errorf("stage cost = %g, want %g", got, want)
	}
	// 0.5*100*(1+4)
	if got, want := q.Terminal(x), 250.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("terminal cost = %g, want %g", got, want)
	}
}

func TestOffsetTarget(t *testing.T) {
	q := Diagonal(2, 1, 1, 1, 1, []float64{1, 0})
	x := mat.NewVecDense(2, []float64{1, 0})
	u := mat.NewVecDense(1, nil)
	if got := q.Stage(x, u); got != 0 {
		t.Errorf("cost at target = %g, want 0", got)
	}
}

func TestStageExpansionMatchesFiniteDifference(t *testing.T) {
	q := Diagonal(2, 1, 3, 2, 10, []float64{0.5, -1})
	x := mat.NewVecDense(2, []float64{1, 2})
	u := mat.NewVecDense(1, []float64{-0.5})

	lx := mat.NewVecDense(2, nil)
	lu := mat.NewVecDense(1, nil)
	lxx := mat.NewDense(2, 2, nil)
	luu := mat.NewDense(1, 1, nil)
	lux := mat.NewDense(1, 2, nil)
	q.StageExpansion(x, u, lx, lu, lxx, luu, lux)

	eps := 1e-6
	for i := 0; i < 2; i++ {
		xp := mat.NewVecDense(2, []float64{x.AtVec(0), x.AtVec(1)})
		xp.SetVec(i, x.AtVec(i)+eps)
		xm := mat.NewVecDense(2, []float64{x.AtVec(0), x.AtVec(1)})
		xm.SetVec(i, x.AtVec(i)-eps)
		fd := (q.Stage(xp, u) - q.Stage(xm, u)) / (2 * eps)
		if math.Abs(fd-lx.AtVec(i)) > 1e-5 {
			t.Errorf("lx[%d] = %g, finite difference %g", i, lx.AtVec(i), fd)
		}
	}
	up := mat.NewVecDense(1, []float64{u.AtVec(0) + eps})
	um := mat.NewVecDense(1, []float64{u.AtVec(0) - eps})
	fd := (q.Stage(x, up) - q.Stage(x, um)) / (2 * eps)
	if math.Abs(fd-lu.AtVec(0)) > 1e-5 {
		t.Errorf("lu = %g, finite difference %g", lu.AtVec(0), fd)
	}

	if lxx.At(0, 0) != 3 || lxx.At(1, 1) != 3 || luu.At(0, 0) != 2 {
		t.Error("Hessian blocks must equal the quadratic weights")
	}
	if lux.At(0, 0) != 0 || lux.At(0, 1) != 0 {
		t.Error("cross term must vanish without Qxu")
	}
}

func TestCrossTermExpansion(t *testing.T) {
	q := Diagonal(2, 1, 1, 1, 1, []float64{0, 0})
	q.Qxu = mat.NewDense(2, 1, []float64{0.5, 0})

	x := mat.NewVecDense(2, []float64{2, 0})
	u := mat.NewVecDense(1, []float64{1})

	lx := mat.NewVecDense(2, nil)
	lu := mat.NewVecDense(1, nil)
	lxx := mat.NewDense(2, 2, nil)
	luu := mat.NewDense(1, 1, nil)
	lux := mat.NewDense(1, 2, nil)
	q.StageExpansion(x, u, lx, lu, lxx, luu, lux)

	// lx = Q dx + Qxu u = [2,0] + [0.5,0]
	if math.Abs(lx.AtVec(0)-2.5) > 1e-12 {
		t.Errorf("lx[0] = %g, want 2.5", lx.AtVec(0))
	}
	// lu = R u + Qxu' dx = 1 + 1
	if math.Abs(lu.AtVec(0)-2.0) > 1e-12 {
		t.Errorf("lu = %g, want 2", lu.AtVec(0))
	}
	if lux.At(0, 0) != 0.5 {
		t.Errorf("lux = %g, want 0.5", lux.At(0, 0))
	}
}

func TestNewQuadraticValidation(t *testing.T) {
	if _, err := NewQuadratic(2, 1, []float64{1}, []float64{1}, []float64{1}, []float64{1}); err == nil {
		t.Error("mismatched coefficient sizes must be rejected")
	}
}
