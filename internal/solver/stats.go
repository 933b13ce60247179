package solver

// Stats accumulates per-solve statistics. Cost and CMax record the committed
// value after every inner iteration, in order. For an infeasible-start solve
// the first-phase statistics are carried under Infeasible.
type Stats struct {
	Iterations      int     `yaml:"iterations"`
	MajorIterations int     `yaml:"major_iterations"`
	Runtime         float64 `yaml:"runtime"`    // seconds
	SetupTime       float64 `yaml:"setup_time"` // seconds

	Cost []float64 `yaml:"cost"`
	CMax []float64 `yaml:"c_max"`

	Infeasible *Stats `yaml:"infeasible,omitempty"`
}

func (s *Stats) record(j, cmax float64) {
	s.Iterations++
	s.Cost = append(s.Cost, j)
	s.CMax = append(s.CMax, cmax)
}

// FinalCost is the last committed cost, or 0 for an empty history.
func (s *Stats) FinalCost() float64 {
	if len(s.Cost) == 0 {
		return 0
	}
	return s.Cost[len(s.Cost)-1]
}

// FinalCMax is the last committed violation maximum.
func (s *Stats) FinalCMax() float64 {
	if len(s.CMax) == 0 {
		return 0
	}
	return s.CMax[len(s.CMax)-1]
}
