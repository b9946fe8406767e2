// Package kpap converts planetary Kp values into the equivalent ap index.
//
// Two tables are provided: a 10-point baseline used for continuous
// interpolation, and the NOAA integer table used to judge whether an
// independently produced ap series still agrees with its Kp series.
package kpap

import "math"

// Baseline maps integer Kp 0..9 to a representative daily ap.
var Baseline = [10]float64{0, 2, 4, 7, 12, 20, 39, 70, 120, 200}

// IntegerTable is the NOAA integer Kp to ap mapping.
var IntegerTable = [10]int{0, 3, 7, 15, 27, 48, 80, 140, 240, 400}

// DefaultTolerance is the largest ap disagreement Reconcile accepts.
const DefaultTolerance = 40.0

// KpToAp interpolates Baseline between the two integer Kp points around
// kp. Input is clipped to [0, 9]; exact integers return the table value.
// Non-finite input returns NaN. The result is rounded to 3 decimals.
func KpToAp(kp float64) float64 {
	if math.IsNaN(kp) || math.IsInf(kp, 0) {
		return math.NaN()
	}
	kp = math.Max(0, math.Min(9, kp))

	low := int(math.Floor(kp))
	high := int(math.Ceil(kp))
	if low == high {
		return Baseline[low]
	}
	t := kp - float64(low)
	ap := Baseline[low]*(1-t) + Baseline[high]*t
	return math.Round(ap*1000) / 1000
}

// KpToApInteger rounds and clips kp and looks it up in IntegerTable.
// The second return is false for non-finite input.
func KpToApInteger(kp float64) (int, bool) {
	if math.IsNaN(kp) || math.IsInf(kp, 0) {
		return 0, false
	}
	k := int(math.RoundToEven(kp))
	k = max(0, min(9, k))
	return IntegerTable[k], true
}

// SeriesFromKp derives an ap series from a Kp series with KpToAp.
// Missing (NaN) Kp values stay NaN.
func SeriesFromKp(kp []float64) []float64 {
	out := make([]float64, len(kp))
	for i, v := range kp {
		out[i] = KpToAp(v)
	}
	return out
}

// Reconcile returns an ap series consistent with kp. The supplied ap is kept
// only when it has the same length and every value is within tolerance of
// the NOAA integer mapping; otherwise the integer mapping is returned.
// Missing values come back as 0.
func Reconcile(kp, ap []float64, tolerance float64) []float64 {
	derived := make([]float64, len(kp))
	valid := make([]bool, len(kp))
	for i, v := range kp {
		if mapped, ok := KpToApInteger(v); ok {
			derived[i] = float64(mapped)
			valid[i] = true
		}
	}

	useDerived := len(ap) == 0 || len(ap) != len(derived)
	if !useDerived {
		for i, a := range ap {
			if !valid[i] {
				continue
			}
			if math.IsNaN(a) || math.Abs(a-derived[i]) > tolerance {
				useDerived = true
				break
			}
		}
	}

	src := ap
	if useDerived {
		src = derived
	}
	out := make([]float64, len(src))
	for i, v := range src {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[i] = v
	}
	return out
}
