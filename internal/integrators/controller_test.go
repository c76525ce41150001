package integrators

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/attractor/internal/dynamo"
	"github.com/san-kum/attractor/internal/physics"
)

// scripted advances x[0] by h and reports an error chosen by the test.
type scripted struct {
	errFor func(h float64) float64
	calls  int
}

func (s *scripted) Estimate(_ dynamo.VectorField, h float64, x dynamo.State, t float64) dynamo.ErrorEstimate {
	s.calls++
	next := x.Clone()
	next[0] += h
	return dynamo.ErrorEstimate{State: next, Time: t + h, Err: s.errFor(h)}
}

var noField = dynamo.FieldFunc(func(x dynamo.State, _ float64) dynamo.State {
	return make(dynamo.State, len(x))
})

var _ = Describe("Doubling", func() {
	var (
		est    *Doubling
		lorenz *physics.Lorenz
	)

	BeforeEach(func() {
		est = NewDoubling(nil)
		lorenz = physics.NewLorenz(physics.DefaultLorenzParams())
	})

	It("returns the two half step result", func() {
		x := dynamo.State{-13, -12, 52}
		rk := NewRK4()
		half := rk.Step(lorenz, 0.005, x, 0)
		half = rk.Step(lorenz, 0.005, half.State, half.Time)

		got := est.Estimate(lorenz, 0.01, x, 0)
		Expect(got.State.Equal(half.State)).To(BeTrue())
		Expect(got.Time).To(BeNumerically("~", 0.01, 1e-15))
	})

	It("never reports a negative discrepancy", func() {
		x := dynamo.State{-13, -12, 52}
		for _, h := range []float64{1e-6, 1e-4, 1e-2, 0.1} {
			Expect(est.Estimate(lorenz, h, x, 0).Err).To(BeNumerically(">=", 0))
		}
	})

	It("reports zero for a field RK4 solves exactly", func() {
		constant := dynamo.FieldFunc(func(_ dynamo.State, _ float64) dynamo.State {
			return dynamo.State{1, 2, -0.5}
		})
		got := est.Estimate(constant, 0.5, dynamo.State{0, 0, 0}, 0)
		Expect(got.Err).To(Equal(0.0))
		Expect(got.State.Equal(dynamo.State{0.5, 1, -0.25})).To(BeTrue())
	})

	It("shrinks with the step size", func() {
		x := dynamo.State{-13, -12, 52}
		coarse := est.Estimate(lorenz, 0.01, x, 0).Err
		fine := est.Estimate(lorenz, 0.005, x, 0).Err
		Expect(fine).To(BeNumerically("<", coarse))
	})
})

var _ = Describe("DormandPrince", func() {
	It("tracks the exact decay solution", func() {
		decay := physics.NewDecay(1, 2)
		x0 := decay.DefaultState()
		got := NewDormandPrince().Estimate(decay, 0.1, x0, 0)

		exact := decay.Exact(x0, 0.1)
		Expect(got.State.Distance(exact)).To(BeNumerically("<", 1e-8))
		Expect(got.Err).To(BeNumerically(">=", 0))
		Expect(got.Err).To(BeNumerically("<", 1e-6))
	})

	It("can drive the controller", func() {
		lorenz := physics.NewLorenz(physics.DefaultLorenzParams())
		cfg := dynamo.Config{H: 0.005, Tolerance: 1e-6, Steps: 50}
		tr, err := NewController(NewDormandPrince()).Run(context.Background(), lorenz, dynamo.State{-13, -12, 52}, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.Len()).To(BeNumerically(">", 1))
	})
})

var _ = Describe("Controller", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("with invalid configuration", func() {
		DescribeTable("fails before integrating",
			func(cfg dynamo.Config) {
				est := &scripted{errFor: func(h float64) float64 { return h }}
				tr, err := NewController(est).Run(ctx, noField, dynamo.State{0}, cfg)
				Expect(tr).To(BeNil())
				Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())
				Expect(est.calls).To(BeZero())
			},
			Entry("zero steps", dynamo.Config{H: 0.01, Tolerance: 1e-2, Steps: 0}),
			Entry("zero step size", dynamo.Config{H: 0, Tolerance: 1e-2, Steps: 3}),
			Entry("negative tolerance", dynamo.Config{H: 0.01, Tolerance: -1, Steps: 3}),
		)
	})

	Context("when the error sits inside the band", func() {
		It("records one step per tick and keeps h", func() {
			est := &scripted{errFor: func(h float64) float64 { return h }}
			cfg := dynamo.Config{H: 0.01, Tolerance: 0.01, Steps: 5}

			tr, err := NewController(est).Run(ctx, noField, dynamo.State{0}, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Len()).To(Equal(6))
			Expect(tr.Stats.Accepted).To(Equal(5))
			Expect(tr.Stats.Grown).To(BeZero())
			Expect(tr.Stats.Rejected).To(BeZero())
			for _, h := range tr.Steps[1:] {
				Expect(h).To(Equal(0.01))
			}
		})
	})

	Context("when the error is below the band", func() {
		It("records every doubled step and discards the shrink trial", func() {
			est := &scripted{errFor: func(h float64) float64 { return h }}
			cfg := dynamo.Config{H: 0.001, Tolerance: 0.01, Steps: 3}

			tr, err := NewController(est).Run(ctx, noField, dynamo.State{0}, cfg)
			Expect(err).NotTo(HaveOccurred())

			// tick 1 doubles to 0.016, overshoots, halves back to 0.008 without
			// recording; later ticks double once to 0.016 and halve again.
			Expect(tr.Steps).To(Equal([]float64{0, 0.002, 0.004, 0.008, 0.016, 0.016, 0.016}))
			Expect(tr.Stats.Grown).To(Equal(6))
			Expect(tr.Stats.Rejected).To(Equal(3))
			Expect(tr.Stats.Accepted).To(BeZero())
			Expect(tr.Stats.Ticks).To(Equal(3))

			// the priming step at h0 advanced time without being recorded
			Expect(tr.Times[1]).To(BeNumerically("~", 0.003, 1e-15))
		})

		It("grows from a tiny h0 on a smooth field", func() {
			decay := physics.NewDecay(1, 3)
			h0 := 1e-4
			cfg := dynamo.Config{H: h0, Tolerance: 1e-3, Steps: 20, MaxH: 0.5}

			tr, err := NewController(nil).Run(ctx, decay, decay.DefaultState(), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Len()).To(BeNumerically(">", 10))
			Expect(tr.Steps[10]).To(BeNumerically(">=", h0))
			Expect(tr.Stats.Grown).To(BeNumerically(">", 0))
			for i := 2; i <= 10; i++ {
				Expect(tr.Steps[i]).To(BeNumerically(">=", tr.Steps[i-1]))
			}
		})

		It("stops doubling at the ceiling and keeps progressing", func() {
			est := &scripted{errFor: func(float64) float64 { return 0 }}
			cfg := dynamo.Config{H: 0.0125, Tolerance: 1e-6, Steps: 3, MaxH: 0.1}

			tr, err := NewController(est).Run(ctx, noField, dynamo.State{0}, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Steps).To(Equal([]float64{0, 0.025, 0.05, 0.1, 0.1, 0.1}))
		})
	})

	Context("when the error is exactly zero", func() {
		It("caps growth at the default ceiling from the Lorenz origin", func() {
			lorenz := physics.NewLorenz(physics.DefaultLorenzParams())
			cfg := dynamo.Config{H: 0.005, Tolerance: 1e-6, Steps: 5}

			tr, err := NewController(nil).Run(ctx, lorenz, dynamo.State{0, 0, 0}, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Stats.Ticks).To(Equal(5))
			Expect(tr.Stats.Accepted).To(Equal(4))
			for i := 1; i < tr.Len(); i++ {
				Expect(math.IsInf(tr.Times[i], 0)).To(BeFalse())
				Expect(tr.Times[i]).To(BeNumerically(">", tr.Times[i-1]))
				Expect(tr.Steps[i]).To(BeNumerically("<=", dynamo.DefaultMaxH))
				Expect(tr.States[i].Equal(dynamo.State{0, 0, 0})).To(BeTrue())
			}
			Expect(tr.Steps[tr.Len()-1]).To(Equal(dynamo.DefaultMaxH))
		})
	})

	Context("when the error never meets tolerance", func() {
		It("force-accepts at the floor and never steps below it", func() {
			est := &scripted{errFor: func(float64) float64 { return 1 }}
			cfg := dynamo.Config{H: 1, Tolerance: 1e-6, Steps: 4, MinH: 1e-3}

			tr, err := NewController(est).Run(ctx, noField, dynamo.State{0}, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Len()).To(Equal(5))
			Expect(tr.Stats.FloorHits).To(Equal(4))
			Expect(tr.Stats.Rejected).To(Equal(10))
			for _, h := range tr.Steps[1:] {
				Expect(h).To(Equal(1e-3))
			}
		})

		It("terminates with the default floor", func() {
			est := &scripted{errFor: func(float64) float64 { return math.Inf(1) }}
			cfg := dynamo.Config{H: 0.01, Tolerance: 1e-6, Steps: 2}

			tr, err := NewController(est).Run(ctx, noField, dynamo.State{0}, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Stats.FloorHits).To(Equal(2))
			for _, h := range tr.Steps[1:] {
				Expect(h).To(BeNumerically(">=", dynamo.DefaultMinH))
			}
		})
	})

	Context("when the error is NaN", func() {
		It("records nothing but still honours the tick budget", func() {
			est := &scripted{errFor: func(float64) float64 { return math.NaN() }}
			cfg := dynamo.Config{H: 0.01, Tolerance: 1e-6, Steps: 7}

			tr, err := NewController(est).Run(ctx, noField, dynamo.State{0}, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Len()).To(Equal(1))
			Expect(tr.Stats.Ticks).To(Equal(7))
		})
	})

	Context("with an append hook", func() {
		It("stops the run on the first hook error", func() {
			stop := errors.New("stop")
			seen := 0
			hook := func(index int, _ dynamo.State, _, _ float64) error {
				seen++
				Expect(index).To(Equal(seen))
				if index == 2 {
					return stop
				}
				return nil
			}
			est := &scripted{errFor: func(h float64) float64 { return h }}
			cfg := dynamo.Config{H: 0.01, Tolerance: 0.01, Steps: 10}

			tr, err := NewController(est, WithAppendHook(hook)).Run(ctx, noField, dynamo.State{0}, cfg)
			Expect(err).To(MatchError(stop))
			Expect(tr.Len()).To(Equal(3))
		})
	})

	It("honours context cancellation between ticks", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		est := &scripted{errFor: func(h float64) float64 { return h }}
		cfg := dynamo.Config{H: 0.01, Tolerance: 0.01, Steps: 10}

		tr, err := NewController(est).Run(cctx, noField, dynamo.State{0}, cfg)
		Expect(err).To(MatchError(context.Canceled))
		Expect(tr.Len()).To(Equal(1))
	})

	Context("on the Lorenz system", func() {
		var (
			tr  *dynamo.Trajectory
			cfg dynamo.Config
		)

		BeforeEach(func() {
			lorenz := physics.NewLorenz(physics.DefaultLorenzParams())
			cfg = dynamo.Config{H: 0.005, Tolerance: 1e-6, Steps: 500}
			var err error
			tr, err = NewController(nil).Run(ctx, lorenz, lorenz.DefaultState(), cfg)
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps the initial condition at index 0", func() {
			Expect(tr.States[0].Equal(dynamo.State{-13, -12, 52})).To(BeTrue())
			Expect(tr.Times[0]).To(Equal(0.0))
		})

		It("produces strictly increasing times", func() {
			for i := 1; i < tr.Len(); i++ {
				Expect(tr.Times[i]).To(BeNumerically(">", tr.Times[i-1]))
			}
		})

		It("never uses a step below the floor", func() {
			for _, h := range tr.Steps[1:] {
				Expect(h).To(BeNumerically(">=", cfg.Floor()))
			}
		})

		It("stays on the attractor", func() {
			for _, s := range tr.States {
				for _, v := range s {
					Expect(math.Abs(v)).To(BeNumerically("<", 100))
				}
			}
		})

		It("does not tie the point count to the tick budget", func() {
			Expect(tr.Stats.Ticks).To(Equal(cfg.Steps))
			Expect(tr.Len()).To(Equal(1 + tr.Stats.Accepted + tr.Stats.Grown + tr.Stats.FloorHits))
		})
	})
})
