package dynamo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

// JacobianState estimates dF/dx of a discrete step F: R^n -> R^n by central
// differences. The step size is scaled per component, h = eps*max(1,|x_i|).
func JacobianState(rows int, f func(State) State, x State) *mat.Dense {
	n := len(x)
	jac := mat.NewDense(rows, n, nil)
	xp := x.Clone()
	for j := 0; j < n; j++ {
		h := cubeEps * math.Max(1, math.Abs(x[j]))
		xp[j] = x[j] + h
		fp := f(xp)
		xp[j] = x[j] - h
		fm := f(xp)
		xp[j] = x[j]
		inv := 1 / (2 * h)
		for i := 0; i < rows; i++ {
			jac.Set(i, j, (fp[i]-fm[i])*inv)
		}
	}
	return jac
}

// JacobianControl is the control-input analogue of JacobianState.
func JacobianControl(rows int, f func(Control) State, u Control) *mat.Dense {
	m := len(u)
	jac := mat.NewDense(rows, m, nil)
	up := u.Clone()
	for j := 0; j < m; j++ {
		h := cubeEps * math.Max(1, math.Abs(u[j]))
		up[j] = u[j] + h
		fp := f(up)
		up[j] = u[j] - h
		fm := f(up)
		up[j] = u[j]
		inv := 1 / (2 * h)
		for i := 0; i < rows; i++ {
			jac.Set(i, j, (fp[i]-fm[i])*inv)
		}
	}
	return jac
}
