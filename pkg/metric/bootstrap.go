package metric

import (
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// BootstrapInterval is a confidence interval estimated by resampling
type BootstrapInterval struct {
	Lower  float64
	Upper  float64
	StdDev float64
	Mean   float64
}

// Bootstrap estimates the confidence interval of measure over values by drawing
// samples resamples with replacement.
func Bootstrap(values []float64, measure func([]float64) float64, samples int, confidence float64) BootstrapInterval {
	if len(values) == 0 || samples <= 0 {
		return BootstrapInterval{}
	}

	estimates := lo.Times(samples, func(_ int) float64 {
		resample := lo.Times(len(values), func(_ int) float64 {
			return lo.Sample(values)
		})
		return measure(resample)
	})
	sort.Float64s(estimates)

	tail := (1 - confidence) / 2
	mean, std := stat.MeanStdDev(estimates, nil)

	return BootstrapInterval{
		Lower:  stat.Quantile(tail, stat.LinInterp, estimates, nil),
		Upper:  stat.Quantile(1-tail, stat.LinInterp, estimates, nil),
		StdDev: std,
		Mean:   mean,
	}
}
