package solver_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/trajopt/internal/cost"
	"github.com/san-kum/trajopt/internal/dynamo"
	"github.com/san-kum/trajopt/internal/physics"
	"github.com/san-kum/trajopt/internal/solver"
)

var _ = Describe("cartpole stabilization with control bounds", func() {
	var (
		res  *solver.Result
		x0   = []float64{0, 0, math.Pi, 0}
		xf   = []float64{0, 0, 0, 0}
		uMax = 5.0
	)

	BeforeEach(func() {
		model, err := dynamo.Discretize(physics.NewCartPole(), "rk4")
		Expect(err).NotTo(HaveOccurred())

		p := solver.Problem{
			Model:        model,
			Cost:         cost.Diagonal(4, 1, 0.01, 0.01, 100, xf),
			N:            101,
			Dt:           0.05,
			X0:           x0,
			ControlLower: []float64{-uMax},
			ControlUpper: []float64{uMax},
		}
		opts := solver.DefaultOptions()
		opts.Iterations = 300
		opts.IterationsOuter = 30

		s, err := solver.New(p, opts)
		Expect(err).NotTo(HaveOccurred())

		res, err = s.Solve()
		Expect(err).NotTo(HaveOccurred())
	})

	It("produces a finite trajectory over the whole horizon", func() {
		Expect(res.X).To(HaveLen(101))
		for _, x := range res.X {
			for _, v := range x {
				Expect(math.IsNaN(v)).To(BeFalse())
				Expect(math.IsInf(v, 0)).To(BeFalse())
			}
		}
	})

	It("ends below the cost of the first recorded iteration", func() {
		Expect(res.Stats.Cost).NotTo(BeEmpty())
		first := res.Stats.Cost[0]
		last := res.Stats.FinalCost()
		Expect(last).To(BeNumerically("<", first))
	})

	It("keeps every control inside the bounds", func() {
		for _, u := range res.U {
			Expect(u[0]).To(BeNumerically(">=", -uMax-1e-9))
			Expect(u[0]).To(BeNumerically("<=", uMax+1e-9))
		}
	})

	It("saturates the bound somewhere on the swing-up", func() {
		peak := 0.0
		for _, u := range res.U {
			if a := math.Abs(u[0]); a > peak {
				peak = a
			}
		}
		Expect(peak).To(BeNumerically(">", 0.9*uMax))
	})

	It("converges with the constraint violation below tolerance", func() {
		Expect(res.Status).To(Equal(solver.StatusConverged))
		Expect(res.Stats.FinalCMax()).To(BeNumerically("<", solver.DefaultOptions().ConstraintTolerance))
	})
})

var _ = Describe("pendulum swing-up", func() {
	It("converges unconstrained with a discretized nonlinear model", func() {
		model, err := dynamo.Discretize(physics.NewPendulum(), "rk4")
		Expect(err).NotTo(HaveOccurred())

		p := solver.Problem{
			Model: model,
			Cost:  cost.Diagonal(2, 1, 0.1, 0.05, 100, []float64{0, 0}),
			N:     101,
			Dt:    0.05,
			X0:    []float64{math.Pi, 0},
		}
		s, err := solver.New(p, nil)
		Expect(err).NotTo(HaveOccurred())

		res, err := s.Solve()
		Expect(err).NotTo(HaveOccurred())

		xN := res.X[len(res.X)-1]
		Expect(math.Abs(xN[0])).To(BeNumerically("<", 0.1))
	})
})
