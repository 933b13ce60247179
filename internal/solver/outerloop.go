package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// updateDuals applies the first-order multiplier update
// lambda <- clamp(lambda + mu.*c) with projection of the inequality block
// onto the nonnegative orthant.
func (s *Solver) updateDuals() {
	st := s.st
	o := s.opts
	for k := range st.Lambda {
		lam, mu, c := st.Lambda[k], st.Mu[k], st.C[k]
		for i := 0; i < st.P; i++ {
			v := clamp(lam.AtVec(i)+mu.AtVec(i)*c.AtVec(i), o.LambdaMin, o.LambdaMax)
			if i < st.PI && v < 0 {
				v = 0
			}
			lam.SetVec(i, v)
		}
	}
	if st.LambdaN != nil {
		for i := 0; i < st.NX; i++ {
			v := clamp(st.LambdaN.AtVec(i)+st.MuN.AtVec(i)*st.CN.AtVec(i), o.LambdaMin, o.LambdaMax)
			st.LambdaN.SetVec(i, v)
		}
	}
}

// updateDualsSecondOrder solves a reduced system on the active set per knot:
// (Ca Ca' + diag(1/mu)) dl = c_a, a single factorized solve per stage.
func (s *Solver) updateDualsSecondOrder() {
	st := s.st
	o := s.opts
	if s.set == nil || !s.set.Any() {
		s.updateDuals()
		return
	}
	n, mm, p := st.NX, st.MM, st.P
	cab := mat.NewDense(p, n+mm, nil)
	for k := range st.Lambda {
		rows := make([]int, 0, p)
		for i := 0; i < p; i++ {
			if st.Active[k][i] {
				rows = append(rows, i)
			}
		}
		if len(rows) == 0 {
			continue
		}
		na := len(rows)
		for ri, i := range rows {
			for j := 0; j < n; j++ {
				cab.Set(ri, j, st.Cx[k].At(i, j))
			}
			for j := 0; j < mm; j++ {
				cab.Set(ri, n+j, st.Cu[k].At(i, j))
			}
		}
		ca := cab.Slice(0, na, 0, n+mm)
		b := mat.NewSymDense(na, nil)
		var bt mat.Dense
		bt.Mul(ca, ca.T())
		for i := 0; i < na; i++ {
			for j := i; j < na; j++ {
				v := bt.At(i, j)
				if i == j {
					v += 1 / st.Mu[k].AtVec(rows[i])
				}
				b.SetSym(i, j, v)
			}
		}
		var ch mat.Cholesky
		if !ch.Factorize(b) {
			continue
		}
		cvec := mat.NewVecDense(na, nil)
		for ri, i := range rows {
			cvec.SetVec(ri, st.C[k].AtVec(i))
		}
		dl := mat.NewVecDense(na, nil)
		if err := ch.SolveVecTo(dl, cvec); err != nil {
			continue
		}
		for ri, i := range rows {
			v := clamp(st.Lambda[k].AtVec(i)+dl.AtVec(ri), o.LambdaMin, o.LambdaMax)
			if i < st.PI && v < 0 {
				v = 0
			}
			st.Lambda[k].SetVec(i, v)
		}
	}
	if st.LambdaN != nil {
		for i := 0; i < st.NX; i++ {
			v := clamp(st.LambdaN.AtVec(i)+st.MuN.AtVec(i)*st.CN.AtVec(i), o.LambdaMin, o.LambdaMax)
			st.LambdaN.SetVec(i, v)
		}
	}
}

// updatePenalties grows the penalty weights: uniformly by gamma in the
// default scheme, per-constraint (fast/slow split on residual progress) in
// the individual scheme.
func (s *Solver) updatePenalties() {
	st := s.st
	o := s.opts
	switch s.mode.OuterUpdate {
	case OuterIndividual:
		for k := range st.Mu {
			for i := 0; i < st.P; i++ {
				cur := viol(st.C[k].AtVec(i), i < st.PI)
				prev := viol(st.Cprev[k].AtVec(i), i < st.PI)
				g := o.Gamma
				if cur <= o.Tau*prev {
					g = o.GammaNo
				}
				st.Mu[k].SetVec(i, math.Min(o.MuMax, g*st.Mu[k].AtVec(i)))
			}
		}
		if st.MuN != nil {
			for i := 0; i < st.NX; i++ {
				cur := math.Abs(st.CN.AtVec(i))
				prev := math.Abs(st.CNprev.AtVec(i))
				g := o.Gamma
				if cur <= o.Tau*prev {
					g = o.GammaNo
				}
				st.MuN.SetVec(i, math.Min(o.MuMax, g*st.MuN.AtVec(i)))
			}
		}
	default:
		for k := range st.Mu {
			for i := 0; i < st.P; i++ {
				st.Mu[k].SetVec(i, math.Min(o.MuMax, o.Gamma*st.Mu[k].AtVec(i)))
			}
		}
		if st.MuN != nil {
			for i := 0; i < st.NX; i++ {
				st.MuN.SetVec(i, math.Min(o.MuMax, o.Gamma*st.MuN.AtVec(i)))
			}
		}
	}
}

func viol(c float64, inequality bool) float64 {
	if inequality {
		return math.Max(0, c)
	}
	return math.Abs(c)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
