package optim_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pidtune/internal/optim"
)

func bowl(min float64) func(float64) float64 {
	return func(x float64) float64 { return (x - min) * (x - min) }
}

var _ = Describe("BracketSearch", func() {
	It("uses the golden ratio", func() {
		Expect(optim.Phi).To(BeNumerically("~", 0.5*(1+math.Sqrt(5)), 1e-15))
		Expect(optim.Phi*optim.Phi).To(BeNumerically("~", optim.Phi+1, 1e-12))
	})

	It("validates its interval and tolerance", func() {
		_, err := optim.NewBracketSearch(1, 1, 0.1)
		Expect(err).To(MatchError(optim.ErrInvalidBracket))

		_, err = optim.NewBracketSearch(2, 1, 0.1)
		Expect(err).To(MatchError(optim.ErrInvalidBracket))

		_, err = optim.NewBracketSearch(0, 1, -0.1)
		Expect(err).To(MatchError(optim.ErrInvalidTolerance))
	})

	It("probes a, b and the two golden points first", func() {
		s, err := optim.NewBracketSearch(0, 10, 0.5)
		Expect(err).NotTo(HaveOccurred())

		want := []float64{0, 10, 10 - 10/optim.Phi, 10 / optim.Phi}
		for _, w := range want {
			x := s.ParamUpdate()
			Expect(x).To(BeNumerically("~", w, 1e-12))
			Expect(s.ParamUpdate()).To(Equal(x))

			done, err := s.NewError(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(done).To(BeFalse())
		}
		Expect(want[2]).To(BeNumerically("~", 3.82, 0.01))
		Expect(want[3]).To(BeNumerically("~", 6.18, 0.01))
	})

	It("discards the right side when c is better", func() {
		s, _ := optim.NewBracketSearch(0, 10, 0.5)
		for _, e := range []float64{5, 5, 1, 2} {
			s.NewError(e)
		}
		a, b := s.Bracket()
		Expect(a).To(Equal(0.0))
		Expect(b).To(BeNumerically("~", 10/optim.Phi, 1e-12))
		Expect(s.Phase()).To(Equal(optim.ProbeNewC))
		Expect(s.ParamUpdate()).To(BeNumerically("~", b-b/optim.Phi, 1e-12))
	})

	It("discards the left side on a tie", func() {
		s, _ := optim.NewBracketSearch(0, 10, 0.5)
		for _, e := range []float64{5, 5, 2, 2} {
			s.NewError(e)
		}
		a, b := s.Bracket()
		Expect(a).To(BeNumerically("~", 10-10/optim.Phi, 1e-12))
		Expect(b).To(Equal(10.0))
		Expect(s.Phase()).To(Equal(optim.ProbeNewD))
		Expect(s.ParamUpdate()).To(BeNumerically("~", a+(b-a)/optim.Phi, 1e-12))
	})

	It("reuses one interior point per shrink", func() {
		s, _ := optim.NewBracketSearch(0, 10, 0.5)
		f := bowl(3)
		for i := 0; i < 4; i++ {
			s.NewError(f(s.ParamUpdate()))
		}
		a, b := s.Bracket()
		carried := 10 - 10/optim.Phi
		Expect(b).To(BeNumerically("~", 10/optim.Phi, 1e-12))

		// The old c is now the right interior point of [a, b].
		Expect(a + (b-a)/optim.Phi).To(BeNumerically("~", carried, 1e-9))
	})

	DescribeTable("converges on unimodal functions with a non-increasing bracket",
		func(min, lo, hi, tol float64) {
			s, err := optim.NewBracketSearch(lo, hi, tol)
			Expect(err).NotTo(HaveOccurred())
			f := bowl(min)

			width := s.Width()
			done := false
			for i := 0; i < 200 && !done; i++ {
				done, err = s.NewError(f(s.ParamUpdate()))
				Expect(err).NotTo(HaveOccurred())
				Expect(s.Width()).To(BeNumerically("<=", width))
				width = s.Width()
			}

			Expect(done).To(BeTrue())
			Expect(s.Width()).To(BeNumerically("<", tol))
			a, b := s.Bracket()
			Expect(min).To(BeNumerically(">=", a-tol))
			Expect(min).To(BeNumerically("<=", b+tol))

			x, e := s.Best()
			Expect(math.Abs(x - min)).To(BeNumerically("<", tol))
			Expect(e).To(Equal(f(x)))
			Expect(s.ParamUpdate()).To(Equal(x))
		},
		Entry("interior minimum", 3.0, 0.0, 10.0, 0.5),
		Entry("tight tolerance", 1.234, -5.0, 5.0, 1e-6),
		Entry("minimum at the left edge", 0.0, 0.0, 1.0, 1e-3),
		Entry("minimum at the right edge", 1.0, 0.0, 1.0, 1e-3),
	)

	It("rejects errors after convergence", func() {
		s, _ := optim.NewBracketSearch(0, 1, 0.9)
		f := bowl(0.5)
		done := false
		for !done {
			done, _ = s.NewError(f(s.ParamUpdate()))
		}
		a, b := s.Bracket()

		again, err := s.NewError(0)
		Expect(again).To(BeTrue())
		Expect(err).To(MatchError(optim.ErrSearchDone))
		a2, b2 := s.Bracket()
		Expect([]float64{a2, b2}).To(Equal([]float64{a, b}))
		Expect(s.Phase()).To(Equal(optim.Converged))
	})
})
