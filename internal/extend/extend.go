// Package extend continues exogenous solar series past the outlook window.
//
// Every mode is a deterministic function of the history. Optional noise is
// drawn from a seeded PCG source, so the same seed always gives the same
// series. All generated values are floored at zero.
package extend

import (
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Mode selects how the next value is computed from the trailing window.
type Mode string

const (
	ModeMovingAverage  Mode = "mean7"  // mean of the trailing window
	ModeLinear         Mode = "linear" // least-squares line over the trailing window
	ModeAutoregressive Mode = "ar1"    // value[t] = phi * value[t-1]
	ModeTrend          Mode = "trend"  // linear fit on at most the last 7 points
)

const (
	// DefaultWindow is the number of historical days fed to the extrapolator.
	DefaultWindow = 27

	// DefaultExtra is the number of synthetic days generated.
	DefaultExtra = 27

	// TrailingWindow is the maximum number of points each step looks back on.
	TrailingWindow = 7

	noiseFraction = 0.03
	noiseMinSigma = 0.5
)

// ParseMode maps a user supplied name onto a Mode. Long names are accepted
// as aliases; anything unknown falls back to the moving average.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear":
		return ModeLinear
	case "ar1", "autoregressive-1", "autoregressive":
		return ModeAutoregressive
	case "trend":
		return ModeTrend
	default:
		return ModeMovingAverage
	}
}

// Noise enables reproducible perturbation of generated positions.
type Noise struct {
	Seed int64
}

// Extend appends extra values to history using mode and returns the full
// series of length len(history)+extra. The history slice is not modified.
// A nil noise gives a pure function of history and mode.
func Extend(history []float64, extra int, mode Mode, noise *Noise) []float64 {
	if extra < 0 {
		extra = 0
	}
	if len(history) == 0 {
		return make([]float64, extra)
	}

	series := make([]float64, len(history), len(history)+extra)
	copy(series, history)

	for i := 0; i < extra; i++ {
		k := min(TrailingWindow, len(series))
		window := series[len(series)-k:]
		prev := series[len(series)-1]

		next := nextValue(window, mode, prev)
		if math.IsNaN(next) || math.IsInf(next, 0) {
			next = prev
		}
		series = append(series, math.Max(0, next))
	}

	if noise != nil {
		perturb(series[len(history):], noise.Seed)
	}
	return series
}

func nextValue(window []float64, mode Mode, prev float64) float64 {
	switch mode {
	case ModeLinear, ModeTrend:
		return linearNext(window, prev)
	case ModeAutoregressive:
		return ar1Next(window)
	default:
		return stat.Mean(window, nil)
	}
}

// linearNext fits y = alpha + beta*x over x = 0..k-1 and evaluates at x = k.
func linearNext(window []float64, prev float64) float64 {
	k := min(TrailingWindow, len(window))
	if k < 2 {
		return prev
	}
	ys := window[len(window)-k:]
	xs := make([]float64, k)
	for i := range xs {
		xs[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return alpha + beta*float64(k)
}

// ar1Next estimates phi by least squares through the origin on
// consecutive pairs of the window. Fewer than two pairs give phi = 0.
func ar1Next(window []float64) float64 {
	if len(window) < 3 {
		return 0
	}
	xs := window[:len(window)-1]
	ys := window[1:]

	var denom float64
	for _, x := range xs {
		denom += x * x
	}
	phi := 0.0
	if denom != 0 {
		_, phi = stat.LinearRegression(xs, ys, nil, true)
	}
	return phi * window[len(window)-1]
}

// perturb adds N(0, max(0.5, 3% of |v|)) to each generated value in place.
func perturb(generated []float64, seed int64) {
	src := rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)
	for i, v := range generated {
		dist := distuv.Normal{
			Mu:    0,
			Sigma: math.Max(noiseMinSigma, math.Abs(v)*noiseFraction),
			Src:   src,
		}
		generated[i] = math.Max(0, v+dist.Rand())
	}
}
