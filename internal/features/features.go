// Package features provides feature-row handling for the Kp forecaster.
// This package normalizes raw named feature rows into complete numeric
// vectors and resolves which columns carry the Kp, ap and F10.7 roles.
package features

import (
	"math"
	"strconv"
	"strings"
)

// =============================================================================
// Domain Fallbacks
// =============================================================================

const (
	// FluxFallback is used when an F10.7 column has no usable value (SFU).
	FluxFallback = 129.0

	// AmplitudeFallback is used when an ap column has no usable value.
	AmplitudeFallback = 20.0
)

// Row is a single named feature row. Missing values are NaN.
type Row map[string]float64

// Category classifies a feature column by its physical quantity.
type Category int

const (
	CategoryOther     Category = iota // No domain fallback, uses 0
	CategoryFlux                      // 10.7cm solar radio flux
	CategoryAmplitude                 // Planetary A-index
)

// Classify returns the category of a column from its name.
func Classify(name string) Category {
	n := strings.ToLower(name)
	if strings.Contains(n, "f107") || strings.Contains(n, "f10.7") || strings.Contains(n, "f10_7") {
		return CategoryFlux
	}
	if strings.HasPrefix(n, "ap_") || strings.HasPrefix(n, "apd") || strings.Contains(n, "ap") {
		return CategoryAmplitude
	}
	return CategoryOther
}

// Fallback returns the domain fallback value for a column name.
func Fallback(name string) float64 {
	switch Classify(name) {
	case CategoryFlux:
		return FluxFallback
	case CategoryAmplitude:
		return AmplitudeFallback
	default:
		return 0
	}
}

// =============================================================================
// Normalization
// =============================================================================

// Coerce converts a raw cell into a float64. Anything that is not a finite
// number comes back as NaN.
func Coerce(v any) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return math.NaN()
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return math.NaN()
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		f = parsed
	default:
		return math.NaN()
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

// Normalize turns one raw row into a complete numeric vector ordered by cols.
// Absent columns are created, values are coerced, gaps are forward then
// backward filled across the row, and anything still missing gets the
// domain fallback for its column. An empty cols returns an empty vector.
func Normalize(raw map[string]any, cols []string) []float64 {
	return NormalizeRows([]map[string]any{raw}, cols)[0]
}

// NormalizeRows applies Normalize to several rows. The all-missing fallback
// is decided per column over the whole set, matching a table-wide fill.
func NormalizeRows(raws []map[string]any, cols []string) [][]float64 {
	out := make([][]float64, len(raws))
	for r, raw := range raws {
		vec := make([]float64, len(cols))
		for i, c := range cols {
			v, ok := raw[c]
			if !ok {
				vec[i] = math.NaN()
				continue
			}
			vec[i] = Coerce(v)
		}
		fillRow(vec)
		out[r] = vec
	}

	// Columns that stayed empty in every row
	for i, c := range cols {
		empty := true
		for _, vec := range out {
			if !math.IsNaN(vec[i]) {
				empty = false
				break
			}
		}
		if !empty {
			continue
		}
		fb := Fallback(c)
		for _, vec := range out {
			vec[i] = fb
		}
	}

	// Final safety pass
	for _, vec := range out {
		for i, c := range cols {
			if math.IsNaN(vec[i]) {
				vec[i] = Fallback(c)
			}
		}
	}
	return out
}

// fillRow forward-fills then backward-fills NaN cells in place.
func fillRow(vec []float64) {
	last := math.NaN()
	for i, v := range vec {
		if math.IsNaN(v) {
			vec[i] = last
		} else {
			last = v
		}
	}
	next := math.NaN()
	for i := len(vec) - 1; i >= 0; i-- {
		if math.IsNaN(vec[i]) {
			vec[i] = next
		} else {
			next = vec[i]
		}
	}
}

// NormalizeRow is Normalize for an already numeric row.
func NormalizeRow(row Row, cols []string) Row {
	raw := make(map[string]any, len(row))
	for k, v := range row {
		raw[k] = v
	}
	return ToRow(cols, Normalize(raw, cols))
}

// ToRow pairs an ordered vector with its column names.
func ToRow(cols []string, vec []float64) Row {
	row := make(Row, len(cols))
	for i, c := range cols {
		if i < len(vec) {
			row[c] = vec[i]
		}
	}
	return row
}

// Vector extracts cols from row in order. Absent names come back as NaN.
func (r Row) Vector(cols []string) []float64 {
	vec := make([]float64, len(cols))
	for i, c := range cols {
		v, ok := r[c]
		if !ok {
			v = math.NaN()
		}
		vec[i] = v
	}
	return vec
}

// Missing returns the names in cols that are absent from the row.
func (r Row) Missing(cols []string) []string {
	var missing []string
	for _, c := range cols {
		if _, ok := r[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}
