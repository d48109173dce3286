package optim_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pidtune/internal/dynamo"
	"github.com/san-kum/pidtune/internal/optim"
)

var _ = Describe("GainSweep", func() {
	ranges := []optim.Range{{Lo: 0.5, Hi: 2}, {Lo: 0.001, Hi: 0.005}, {Lo: 10, Hi: 30}}

	It("validates its inputs", func() {
		_, err := optim.NewGainSweep(nil, nil, 0.01, 0.001)
		Expect(err).To(MatchError(dynamo.ErrEmptyVector))

		_, err = optim.NewGainSweep([]float64{1, 1}, ranges, 0.01, 0.001)
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))

		_, err = optim.NewGainSweep([]float64{1, 1, 1}, ranges, 1.5, 0.001)
		Expect(err).To(MatchError(optim.ErrInvalidTolerance))

		_, err = optim.NewGainSweep([]float64{1}, []optim.Range{{Lo: 1, Hi: 1}}, 0.01, 0.001)
		Expect(err).To(MatchError(optim.ErrInvalidBracket))
	})

	It("only varies the component under search", func() {
		s, err := optim.NewGainSweep([]float64{1, 0.002, 20}, ranges, 0.01, 0.001)
		Expect(err).NotTo(HaveOccurred())

		p := s.Probe()
		Expect(p).To(Equal(dynamo.Vector{0.5, 0.002, 20}))
		s.Report(1)
		Expect(s.Probe()).To(Equal(dynamo.Vector{2, 0.002, 20}))
		Expect(s.Index()).To(Equal(0))
	})

	It("settles each component and stops when a cycle stops moving", func() {
		target := dynamo.Vector{1.3, 0.004, 12}
		scale := dynamo.Vector{1, 1e6, 0.01}
		cost := func(g dynamo.Vector) float64 {
			sum := 0.0
			for i := range g {
				d := g[i] - target[i]
				sum += scale[i] * d * d
			}
			return sum
		}

		s, err := optim.NewGainSweep([]float64{1, 0.002, 20}, ranges, 0.01, 0.05)
		Expect(err).NotTo(HaveOccurred())

		done := false
		for i := 0; i < 1000 && !done; i++ {
			done, err = s.Report(cost(s.Probe()))
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(done).To(BeTrue())
		Expect(s.Cycles()).To(BeNumerically(">=", 2))
		Expect(s.LastMove()).To(BeNumerically("<", 0.05))

		g := s.Gains()
		for i := range g {
			width := ranges[i].Hi - ranges[i].Lo
			Expect(g[i]).To(BeNumerically("~", target[i], 0.01*width))
		}

		_, err = s.Report(0)
		Expect(err).To(MatchError(optim.ErrSearchDone))
	})
})

var _ = Describe("GridSearch", func() {
	It("returns the best combination", func() {
		g, err := optim.NewGridSearch([]string{"kp", "kd"}, [][]float64{{0, 1, 2}, {5, 10}})
		Expect(err).NotTo(HaveOccurred())
		Expect(g.Size()).To(Equal(6))

		calls := 0
		best, score, err := g.Search(context.Background(), func(_ context.Context, p map[string]float64) (float64, error) {
			calls++
			return (p["kp"]-1)*(p["kp"]-1) + (p["kd"]-10)*(p["kd"]-10), nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(6))
		Expect(best).To(Equal(map[string]float64{"kp": 1, "kd": 10}))
		Expect(score).To(Equal(0.0))
	})

	It("skips failed points and stops on cancellation", func() {
		g, _ := optim.NewGridSearch([]string{"x"}, [][]float64{{1, 2, 3}})
		best, _, err := g.Search(context.Background(), func(_ context.Context, p map[string]float64) (float64, error) {
			if p["x"] == 1 {
				return 0, errors.New("diverged")
			}
			return p["x"], nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(best["x"]).To(Equal(2.0))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err = g.Search(ctx, func(context.Context, map[string]float64) (float64, error) { return 0, nil })
		Expect(err).To(MatchError(context.Canceled))
	})

	It("rejects mismatched names and empty value lists", func() {
		_, err := optim.NewGridSearch([]string{"a"}, nil)
		Expect(err).To(HaveOccurred())
		_, err = optim.NewGridSearch([]string{"a"}, [][]float64{{}})
		Expect(err).To(HaveOccurred())
	})

	It("spaces values evenly", func() {
		Expect(optim.Linspace(0, 1, 5)).To(Equal([]float64{0, 0.25, 0.5, 0.75, 1}))
		Expect(optim.Linspace(3, 9, 1)).To(Equal([]float64{3}))
	})
})

var _ = Describe("error normalization", func() {
	It("normalizes by distance", func() {
		Expect(optim.DistanceNormalized(16, 2, 100, 300)).To(Equal(2.0))
		Expect(optim.DistanceNormalized(16, 0, 100, 300)).To(Equal(optim.FailureError))
		Expect(optim.DistanceNormalized(0, 0.01, 200, 7)).To(Equal(optim.FailureError))
		Expect(optim.DistanceNormalized(0, 0.01, 200, 200)).To(Equal(optim.FailureError))
	})

	It("normalizes by counted steps", func() {
		Expect(optim.StepNormalized(9, 1, 4)).To(Equal(3.0))
		Expect(optim.StepNormalized(9, 4, 4)).To(Equal(optim.FailureError))
	})
})
