package forecast

import "math"

const (
	// KpMin and KpMax bound every forecast value.
	KpMin = 0.0
	KpMax = 9.0

	precision = 1000.0 // 3 decimal places
)

// Point is one forecast day. Missing days have Valid == false.
type Point struct {
	Value float64
	Valid bool
}

// Series is an ordered, horizon-length forecast.
type Series []Point

// Sanitize turns a raw model value into a forecast point: non-finite values
// become missing, everything else is clipped to [0, 9] and rounded to 3 places.
func Sanitize(v float64) Point {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Point{}
	}
	v = math.Max(KpMin, math.Min(KpMax, v))
	return Point{Value: math.Round(v*precision) / precision, Valid: true}
}

// sanitizeAll sanitizes vals and pads or truncates the result to horizon.
func sanitizeAll(vals []float64, horizon int) Series {
	out := make(Series, horizon)
	for i := 0; i < horizon && i < len(vals); i++ {
		out[i] = Sanitize(vals[i])
	}
	return out
}

// Values returns the series as floats with NaN for missing days.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		if p.Valid {
			out[i] = p.Value
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// Missing counts the days without a value.
func (s Series) Missing() int {
	n := 0
	for _, p := range s {
		if !p.Valid {
			n++
		}
	}
	return n
}

// finiteOrZero keeps buffer rows numeric when a model emits NaN or Inf.
func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
