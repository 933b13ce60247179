// Package ilqr implements the backward Riccati recursion and the
// line-searched forward rollout of the inner solver.
package ilqr

// RegScheme selects where the regularization shift enters the backward pass.
type RegScheme int

const (
	// RegControl adds rho*I to Quu.
	RegControl RegScheme = iota
	// RegState adds rho*fdu'fdu to Quu and rho*fdu'fdx to Qux.
	RegState
)

// Reg is the two-parameter regularization schedule (Tassa): Rho is the value
// in use, DRho the current multiplicative rate.
type Reg struct {
	Rho   float64
	DRho  float64
	Scale float64 // phi
	Min   float64
	Max   float64
}

func NewReg(rho0 float64) *Reg {
	return &Reg{Rho: rho0, DRho: 1, Scale: 1.6, Min: 1e-8, Max: 1e8}
}

// Increase bumps the schedule and reports overflow (rho pinned at Max).
func (r *Reg) Increase() (overflow bool) {
	if r.DRho*r.Scale > r.Scale {
		r.DRho *= r.Scale
	} else {
		r.DRho = r.Scale
	}
	rho := r.Rho * r.DRho
	if rho < r.Min {
		rho = r.Min
	}
	if rho > r.Max {
		rho = r.Max
	}
	r.Rho = rho
	return r.Rho == r.Max
}

// Decrease relaxes the schedule, snapping to zero below Min.
func (r *Reg) Decrease() {
	inv := 1 / r.Scale
	if r.DRho*inv < inv {
		r.DRho *= inv
	} else {
		r.DRho = inv
	}
	if rho := r.Rho * r.DRho; rho >= r.Min {
		r.Rho = rho
	} else {
		r.Rho = 0
	}
}
