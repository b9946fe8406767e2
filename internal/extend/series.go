package extend

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// FluxFloor is the lowest F10.7 value accepted from history (SFU).
	// Anything at or below it is treated as a bad reading.
	FluxFloor = 115.0

	fluxBase      = 120.0
	fluxSpan      = 19 // replacement values fall in [120, 138]
	fluxStride    = 13
	fluxSeedMul   = 3
	fluxSeedUnset = 7

	fluxImputeFallback      = 129.0
	amplitudeImputeFallback = 5.0
)

// Options controls BuildExtended.
type Options struct {
	Window int    // historical days per series (default 27)
	Extra  int    // synthetic days per series (default 27)
	Mode   Mode   // continuation mode
	Noise  bool   // perturb generated positions
	Seed   *int64 // noise seed and flux replacement seed
}

// Extended holds the two extended exogenous series. Each has Window+Extra
// entries; the first Window are cleaned history.
type Extended struct {
	Window    int
	Extra     int
	Flux      []float64 // F10.7
	Amplitude []float64 // ap
}

// FluxReplacement returns the deterministic F10.7 substitute for the 1-based
// day index idx. Values vary by day and stay inside [120, 138].
func FluxReplacement(idx int, seed *int64) float64 {
	s := int64(fluxSeedUnset)
	if seed != nil {
		s = *seed
	}
	v := (int64(idx)*fluxStride + s*fluxSeedMul) % fluxSpan
	if v < 0 {
		v += fluxSpan
	}
	return fluxBase + float64(v)
}

// FixFlux replaces missing, non-finite or implausibly low F10.7 history
// values in place.
func FixFlux(history []float64, seed *int64) {
	for i, v := range history {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= FluxFloor {
			history[i] = FluxReplacement(i+1, seed)
		}
	}
}

// Impute fills NaN gaps by forward then backward fill. A series with no
// usable value becomes fallback everywhere.
func Impute(vals []float64, fallback float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		if math.IsInf(v, 0) {
			v = math.NaN()
		}
		out[i] = v
	}
	fillSeries(out)

	var known []float64
	for _, v := range out {
		if !math.IsNaN(v) {
			known = append(known, v)
		}
	}
	fill := fallback
	if len(known) > 0 {
		fill = stat.Mean(known, nil)
	}
	for i, v := range out {
		if math.IsNaN(v) {
			out[i] = fill
		}
	}
	return out
}

func fillSeries(vals []float64) {
	last := math.NaN()
	for i, v := range vals {
		if math.IsNaN(v) {
			vals[i] = last
		} else {
			last = v
		}
	}
	next := math.NaN()
	for i := len(vals) - 1; i >= 0; i-- {
		if math.IsNaN(vals[i]) {
			vals[i] = next
		} else {
			next = vals[i]
		}
	}
}

// BuildExtended reads f107_d1..dW and ap_d1..dW from row, cleans both
// series and extends them by Extra days. Absent keys are treated as missing.
func BuildExtended(row map[string]float64, opts Options) *Extended {
	window := opts.Window
	if window <= 0 {
		window = DefaultWindow
	}
	extra := opts.Extra
	if extra <= 0 {
		extra = DefaultExtra
	}

	flux := make([]float64, window)
	amp := make([]float64, window)
	for i := 0; i < window; i++ {
		flux[i] = lookup(row, fmt.Sprintf("f107_d%d", i+1))
		amp[i] = lookup(row, fmt.Sprintf("ap_d%d", i+1))
	}

	flux = Impute(flux, fluxImputeFallback)
	amp = Impute(amp, amplitudeImputeFallback)
	FixFlux(flux, opts.Seed)

	var fluxNoise, ampNoise *Noise
	if opts.Noise {
		var s int64
		if opts.Seed != nil {
			s = *opts.Seed
		}
		fluxNoise = &Noise{Seed: s}
		ampNoise = &Noise{Seed: s}
		if opts.Seed != nil {
			ampNoise.Seed = s + 1
		}
	}

	ext := &Extended{
		Window:    window,
		Extra:     extra,
		Flux:      Extend(flux, extra, opts.Mode, fluxNoise),
		Amplitude: Extend(amp, extra, opts.Mode, ampNoise),
	}
	for i := range ext.Flux {
		ext.Flux[i] = round3(math.Max(0, ext.Flux[i]))
	}
	for i := range ext.Amplitude {
		ext.Amplitude[i] = round3(math.Max(0, ext.Amplitude[i]))
	}
	return ext
}

// Row returns the extended series as f107_d1..d(W+E), ap_d1..d(W+E).
func (e *Extended) Row() map[string]float64 {
	row := make(map[string]float64, len(e.Flux)+len(e.Amplitude))
	for i, v := range e.Flux {
		row[fmt.Sprintf("f107_d%d", i+1)] = v
	}
	for i, v := range e.Amplitude {
		row[fmt.Sprintf("ap_d%d", i+1)] = v
	}
	return row
}

// Columns returns the column order of Row.
func (e *Extended) Columns() []string {
	cols := make([]string, 0, len(e.Flux)+len(e.Amplitude))
	for i := range e.Flux {
		cols = append(cols, fmt.Sprintf("f107_d%d", i+1))
	}
	for i := range e.Amplitude {
		cols = append(cols, fmt.Sprintf("ap_d%d", i+1))
	}
	return cols
}

// ShiftedRow builds a model input row from the cleaned history part of the
// extended series: f107_d1..dW and ap_d1..dW.
func (e *Extended) ShiftedRow() map[string]float64 {
	row := make(map[string]float64, 2*e.Window)
	for i := 0; i < e.Window; i++ {
		row[fmt.Sprintf("f107_d%d", i+1)] = e.Flux[i]
		row[fmt.Sprintf("ap_d%d", i+1)] = e.Amplitude[i]
	}
	return row
}

// Horizon returns the synthetic part of both series. F10.7 values that fell
// to the floor are replaced with the fixed day pattern.
func (e *Extended) Horizon() (flux, amplitude []float64) {
	flux = make([]float64, e.Extra)
	amplitude = make([]float64, e.Extra)
	copy(flux, e.Flux[e.Window:])
	copy(amplitude, e.Amplitude[e.Window:])
	for i, v := range flux {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= FluxFloor {
			flux[i] = fluxBase + float64(((i+1)*fluxStride+fluxSeedUnset)%fluxSpan)
		}
	}
	return flux, amplitude
}

func lookup(row map[string]float64, key string) float64 {
	v, ok := row[key]
	if !ok {
		return math.NaN()
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
