package constraint

import (
	"gonum.org/v1/gonum/mat"
)

// StageALCost returns the augmented-Lagrangian contribution
// lambda'c + 1/2 c' Imu c for one knot, where Imu is mu on active rows and
// zero elsewhere.
func StageALCost(c, lambda, mu *mat.VecDense, active []bool) float64 {
	j := 0.0
	for i := 0; i < c.Len(); i++ {
		ci := c.AtVec(i)
		j += lambda.AtVec(i) * ci
		if active[i] {
			j += 0.5 * mu.AtVec(i) * ci * ci
		}
	}
	return j
}

// TerminalALCost is the terminal analogue; every row is an equality.
func TerminalALCost(c, lambda, mu *mat.VecDense) float64 {
	j := 0.0
	for i := 0; i < c.Len(); i++ {
		ci := c.AtVec(i)
		j += lambda.AtVec(i)*ci + 0.5*mu.AtVec(i)*ci*ci
	}
	return j
}

// AddStageExpansion accumulates the Gauss-Newton expansion of the stage AL
// term into the cost expansion buffers:
//
//	lx  += Cx' (lambda + Imu c)      lxx += Cx' Imu Cx
//	lu  += Cu' (lambda + Imu c)      luu += Cu' Imu Cu
//	                                 lux += Cu' Imu Cx
//
// Second derivatives of c are dropped.
func AddStageExpansion(c, lambda, mu *mat.VecDense, active []bool, cx, cu *mat.Dense,
	lx, lu *mat.VecDense, lxx, luu, lux *mat.Dense) {

	p := c.Len()
	_, n := cx.Dims()
	_, mm := cu.Dims()

	for i := 0; i < p; i++ {
		g := lambda.AtVec(i)
		w := 0.0
		if active[i] {
			w = mu.AtVec(i)
			g += w * c.AtVec(i)
		}
		if g != 0 {
			for j := 0; j < n; j++ {
				lx.SetVec(j, lx.AtVec(j)+cx.At(i, j)*g)
			}
			for j := 0; j < mm; j++ {
				lu.SetVec(j, lu.AtVec(j)+cu.At(i, j)*g)
			}
		}
		if w == 0 {
			continue
		}
		for a := 0; a < n; a++ {
			cia := cx.At(i, a)
			if cia == 0 {
				continue
			}
			wa := w * cia
			for b := 0; b < n; b++ {
				lxx.Set(a, b, lxx.At(a, b)+wa*cx.At(i, b))
			}
		}
		for a := 0; a < mm; a++ {
			cia := cu.At(i, a)
			if cia == 0 {
				continue
			}
			wa := w * cia
			for b := 0; b < mm; b++ {
				luu.Set(a, b, luu.At(a, b)+wa*cu.At(i, b))
			}
			for b := 0; b < n; b++ {
				lux.Set(a, b, lux.At(a, b)+wa*cx.At(i, b))
			}
		}
	}
}

// AddTerminalExpansion folds the terminal equality block into the boundary
// cost-to-go: s += lambdaN + muN.*cN and S += diag(muN), using Cx_N = I.
func AddTerminalExpansion(c, lambda, mu *mat.VecDense, sv *mat.VecDense, s *mat.Dense) {
	for i := 0; i < c.Len(); i++ {
		w := mu.AtVec(i)
		sv.SetVec(i, sv.AtVec(i)+lambda.AtVec(i)+w*c.AtVec(i))
		s.Set(i, i, s.At(i, i)+w)
	}
}
