package viz

import (
	"math"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/pidtune/internal/storage"
)

// logError maps an error onto a log10 scale so failed trials (1e9) do not
// flatten the rest of the curve.
func logError(e float64) float64 {
	if e <= 0 || math.IsNaN(e) || math.IsInf(e, 0) {
		return 0
	}
	return math.Log10(e)
}

// PlotErrors draws per-trial and best-so-far errors on a log10 axis.
func PlotErrors(trials []storage.Trial, width, height int, caption string) string {
	if len(trials) == 0 {
		return ""
	}
	errs := make([]float64, len(trials))
	best := make([]float64, len(trials))
	for i, t := range trials {
		errs[i] = logError(t.Error)
		best[i] = logError(t.BestError)
	}
	if len(trials) == 1 {
		errs = append(errs, errs[0])
		best = append(best, best[0])
	}

	return asciigraph.PlotMany([][]float64{errs, best},
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(2),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green),
		asciigraph.SeriesLegends("trial", "best"),
		asciigraph.Caption(caption),
	)
}
