package optim_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pidtune/internal/dynamo"
	"github.com/san-kum/pidtune/internal/optim"
)

// feed sets a pre-normalized error and advances one transition.
func feed(s *optim.CoordinateSearch, e float64) bool {
	s.SetError(e, 0, 1)
	done, err := s.Update()
	Expect(err).NotTo(HaveOccurred())
	return done
}

var _ = Describe("CoordinateSearch", func() {
	Describe("Init", func() {
		It("rejects empty vectors", func() {
			_, err := optim.NewCoordinateSearch(nil, nil, 1)
			Expect(err).To(MatchError(dynamo.ErrEmptyVector))
		})

		It("rejects mismatched lengths", func() {
			_, err := optim.NewCoordinateSearch([]float64{1, 2}, []float64{1}, 1)
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		})

		It("rejects negative steps and non-positive tolerance", func() {
			_, err := optim.NewCoordinateSearch([]float64{1}, []float64{-1}, 1)
			Expect(err).To(MatchError(optim.ErrInvalidStep))

			_, err = optim.NewCoordinateSearch([]float64{1}, []float64{1}, 0)
			Expect(err).To(MatchError(optim.ErrInvalidTolerance))
		})

		It("copies the caller's vectors", func() {
			gains := []float64{1, 1, 1}
			s, err := optim.NewCoordinateSearch(gains, []float64{1, 1, 1}, 0.1)
			Expect(err).NotTo(HaveOccurred())

			feed(s, 10)
			feed(s, 0)
			Expect(gains).To(Equal([]float64{1, 1, 1}))
			Expect(s.Gains()).To(Equal(dynamo.Vector{2, 1, 1}))
		})
	})

	Describe("SetError", func() {
		var s *optim.CoordinateSearch

		BeforeEach(func() {
			var err error
			s, err = optim.NewCoordinateSearch([]float64{1}, []float64{1}, 0.1)
			Expect(err).NotTo(HaveOccurred())
		})

		It("normalizes by the counted steps", func() {
			s.SetError(50, 100, 110)
			Expect(s.LastError()).To(BeNumerically("==", 5))
		})

		It("treats episodes at or below the minimum as failures", func() {
			s.SetError(0.001, 100, 100)
			Expect(s.LastError()).To(BeNumerically("==", optim.FailureError))

			s.SetError(0.001, 100, 3)
			Expect(s.LastError()).To(BeNumerically("==", optim.FailureError))
		})
	})

	It("converges immediately when the step norm is already below tolerance", func() {
		s, err := optim.NewCoordinateSearch([]float64{1, 1, 1}, []float64{1, 1, 1}, 5)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.AwaitingError()).To(BeTrue())
		Expect(feed(s, 3)).To(BeFalse())
		Expect(s.Gains()).To(Equal(dynamo.Vector{1, 1, 1}))
		Expect(s.Phase()).To(Equal(optim.PhaseCheckStepSize))
		Expect(s.AwaitingError()).To(BeFalse())

		done, err := s.Update()
		Expect(err).NotTo(HaveOccurred())
		Expect(done).To(BeTrue())
		Expect(s.Phase()).To(Equal(optim.PhaseDone))
		Expect(s.Gains()).To(Equal(dynamo.Vector{1, 1, 1}))
	})

	It("rejects updates after convergence without changing state", func() {
		s, _ := optim.NewCoordinateSearch([]float64{1}, []float64{0.01}, 1)
		feed(s, 1)
		feed(s, 1)
		Expect(s.Converged()).To(BeTrue())

		done, err := s.Update()
		Expect(done).To(BeTrue())
		Expect(err).To(MatchError(optim.ErrSearchDone))

		var perr *optim.PhaseError
		Expect(err).To(BeAssignableToTypeOf(perr))
		Expect(s.Gains()).To(Equal(dynamo.Vector{1}))
	})

	Describe("a single sweep", func() {
		var s *optim.CoordinateSearch

		BeforeEach(func() {
			var err error
			s, err = optim.NewCoordinateSearch([]float64{1, 2}, []float64{0.5, 1}, 0.01)
			Expect(err).NotTo(HaveOccurred())
			feed(s, 10)
			feed(s, 0)
			Expect(s.Phase()).To(Equal(optim.PhaseForward))
			Expect(s.Gains()).To(Equal(dynamo.Vector{1.5, 2}))
		})

		It("keeps a forward improvement and grows its step", func() {
			feed(s, 8)
			Expect(s.BestError()).To(Equal(8.0))
			Expect(s.StepSizes()[0]).To(BeNumerically("~", 0.55, 1e-12))
			Expect(s.Phase()).To(Equal(optim.PhaseNextIndex))

			feed(s, 0)
			Expect(s.Index()).To(Equal(1))
			Expect(s.Gains()).To(Equal(dynamo.Vector{1.5, 3}))
			Expect(s.Phase()).To(Equal(optim.PhaseForward))
		})

		It("reverses on a tie and keeps a backward improvement", func() {
			feed(s, 10)
			Expect(s.Phase()).To(Equal(optim.PhaseBackward))
			Expect(s.Gains()[0]).To(BeNumerically("~", 0.5, 1e-12))

			feed(s, 9)
			Expect(s.BestError()).To(Equal(9.0))
			Expect(s.Gains()[0]).To(BeNumerically("~", 0.5, 1e-12))
			Expect(s.StepSizes()[0]).To(BeNumerically("~", 0.55, 1e-12))
			Expect(s.Phase()).To(Equal(optim.PhaseNextIndex))
		})

		It("undoes a failed backward probe and shrinks the step", func() {
			feed(s, 11)
			feed(s, 12)
			Expect(s.Gains()[0]).To(BeNumerically("~", 1, 1e-12))
			Expect(s.StepSizes()[0]).To(BeNumerically("~", 0.45, 1e-12))
			Expect(s.BestError()).To(Equal(10.0))
		})

		It("returns to the step check after the last component", func() {
			feed(s, 8)
			feed(s, 0)
			feed(s, 7)
			Expect(s.Phase()).To(Equal(optim.PhaseNextIndex))
			feed(s, 0)
			Expect(s.Index()).To(Equal(0))
			Expect(s.Phase()).To(Equal(optim.PhaseCheckStepSize))
		})
	})

	It("grows steps while errors keep decreasing", func() {
		s, _ := optim.NewCoordinateSearch([]float64{0}, []float64{1}, 1e-3)
		e := 100.0
		feed(s, e)

		prev := s.StepSizes()[0]
		for i := 0; i < 5; i++ {
			for !s.AwaitingError() {
				feed(s, 0)
			}
			e--
			feed(s, e)
			Expect(s.StepSizes()[0]).To(BeNumerically(">", prev))
			prev = s.StepSizes()[0]
		}
		Expect(prev).To(BeNumerically("~", math.Pow(optim.GrowFactor, 5), 1e-9))
	})

	It("finds the minimum of a quadratic bowl", func() {
		target := []float64{0.3, -1.2, 2.0}
		cost := func(g dynamo.Vector) float64 {
			sum := 0.0
			for i := range g {
				sum += (g[i] - target[i]) * (g[i] - target[i])
			}
			return sum
		}

		s, _ := optim.NewCoordinateSearch([]float64{0, 0, 0}, []float64{1, 1, 1}, 1e-4)
		done := false
		for i := 0; i < 20000 && !done; i++ {
			if s.AwaitingError() {
				s.SetError(cost(s.Gains()), 0, 1)
			}
			var err error
			done, err = s.Update()
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(done).To(BeTrue())
		for i, g := range s.Gains() {
			Expect(g).To(BeNumerically("~", target[i], 1e-2))
		}
		Expect(s.StepNorm()).To(BeNumerically("<", 1e-4))
	})
})
