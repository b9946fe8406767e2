package forecast

import (
	"fmt"
	"math"

	"github.com/KI7MT/ki7mt-kp-forecast/internal/features"
)

// OutputShape is the decoded meaning of one flattened model output.
// It is decided once per model call from the output length alone.
type OutputShape int

const (
	ShapeUnrecognized      OutputShape = iota // anything else: first element is Kp
	ShapeOneValue                             // Kp for the next day
	ShapeThreeValues                          // (Kp, ap, F10.7) for the next day
	ShapeFullFeatureVector                    // the whole next feature row
	ShapeFullHorizon                          // the whole Kp series at once
	ShapeHorizonMatrix                        // horizon x features, scaled
)

func (s OutputShape) String() string {
	switch s {
	case ShapeOneValue:
		return "one-value"
	case ShapeThreeValues:
		return "three-values"
	case ShapeFullFeatureVector:
		return "feature-vector"
	case ShapeFullHorizon:
		return "full-horizon"
	case ShapeHorizonMatrix:
		return "horizon-matrix"
	default:
		return "unrecognized"
	}
}

// classifyOneShot decodes the output of the single up-front model call.
func classifyOneShot(n, nFeatures, horizon int) OutputShape {
	switch {
	case n == horizon:
		return ShapeFullHorizon
	case n == horizon*nFeatures:
		return ShapeHorizonMatrix
	default:
		return ShapeUnrecognized
	}
}

// classifyStep decodes the output of one iterative step. The order of the
// checks matters when lengths coincide (e.g. one feature).
func classifyStep(n, nFeatures, horizon int, first bool) OutputShape {
	switch {
	case n == nFeatures:
		return ShapeFullFeatureVector
	case n == 1:
		return ShapeOneValue
	case n == 3:
		return ShapeThreeValues
	case n == horizon && first:
		return ShapeFullHorizon
	default:
		return ShapeUnrecognized
	}
}

// scaledThreshold separates scaled output from raw physical values: a
// feature vector whose mean absolute value is below it is inverse-scaled.
const scaledThreshold = 100.0

// stepResult is what one iterative step contributes.
type stepResult struct {
	kp      float64
	dropped []string // secondary values with no column to land in
}

// applyFeatureVector writes a predicted full feature row into next.
func applyFeatureVector(out []float64, scaler Scaler, roles features.Roles, next []float64) stepResult {
	row := out
	if meanAbs(out) < scaledThreshold {
		unscaled, err := scaler.InverseTransform(clone(out))
		if err == nil && len(unscaled) == len(next) {
			row = unscaled
		}
	}
	for i, v := range row {
		next[i] = finiteOrZero(v)
	}
	return stepResult{kp: row[roles.TargetOrFirst()]}
}

// applyOneValue writes a single Kp into the target slot of next.
func applyOneValue(out []float64, roles features.Roles, next []float64) stepResult {
	kp := out[0]
	set(next, roles.TargetOrFirst(), kp)
	return stepResult{kp: kp}
}

// applyThreeValues writes (Kp, ap, F10.7) into their slots. A value whose
// role has no column is dropped.
func applyThreeValues(out []float64, roles features.Roles, next []float64) stepResult {
	res := stepResult{kp: out[0]}
	slots := []struct {
		name  string
		index int
		value float64
	}{
		{"ap", roles.Amplitude, out[1]},
		{"f107", roles.Flux, out[2]},
		{"kp", roles.Target, out[0]},
	}
	for _, s := range slots {
		if s.index < 0 {
			res.dropped = append(res.dropped, s.name)
			continue
		}
		set(next, s.index, s.value)
	}
	return res
}

// applyUnrecognized takes the first element as Kp. The row is left as is
// when there is no Kp column.
func applyUnrecognized(out []float64, roles features.Roles, next []float64) stepResult {
	kp := out[0]
	set(next, roles.Target, kp)
	return stepResult{kp: kp}
}

// set writes v into row[i] when i is a valid column.
func set(row []float64, i int, v float64) {
	if i >= 0 && i < len(row) {
		row[i] = finiteOrZero(v)
	}
}

// decodeMatrix reads a horizon x features output, inverse-scales each row
// and returns the target column.
func decodeMatrix(out []float64, scaler Scaler, roles features.Roles, horizon, nFeatures int) ([]float64, error) {
	m := newMatrix(out, horizon, nFeatures)
	target := roles.TargetOrFirst()
	kp := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		unscaled, err := scaler.InverseTransform(clone(m.RawRowView(i)))
		if err != nil {
			return nil, fmt.Errorf("inverse transform row %d: %w", i, err)
		}
		if len(unscaled) != nFeatures {
			return nil, fmt.Errorf("inverse transform row %d: got %d values, want %d", i, len(unscaled), nFeatures)
		}
		kp[i] = unscaled[target]
	}
	return kp, nil
}

func meanAbs(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += math.Abs(v)
	}
	return sum / float64(len(vals))
}

func clone(vals []float64) []float64 {
	out := make([]float64, len(vals))
	copy(out, vals)
	return out
}
