// Package artifact provides the concrete model and scaler formats the
// forecaster loads from disk.
package artifact

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StandardScaler standardises each feature with a fitted mean and scale.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Validate checks that Mean and Scale describe the same features.
func (s *StandardScaler) Validate() error {
	if len(s.Mean) == 0 {
		return fmt.Errorf("scaler: no features")
	}
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("scaler: %d means but %d scales", len(s.Mean), len(s.Scale))
	}
	return nil
}

// Features returns the number of features the scaler was fitted on.
func (s *StandardScaler) Features() int { return len(s.Mean) }

// Transform computes (x - mean) / scale. A zero scale is treated as 1.
func (s *StandardScaler) Transform(row []float64) ([]float64, error) {
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("scaler: got %d features, want %d", len(row), len(s.Mean))
	}
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = (v - s.Mean[i]) / s.scale(i)
	}
	return out, nil
}

// InverseTransform computes x * scale + mean.
func (s *StandardScaler) InverseTransform(row []float64) ([]float64, error) {
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("scaler: got %d features, want %d", len(row), len(s.Mean))
	}
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = v*s.scale(i) + s.Mean[i]
	}
	return out, nil
}

func (s *StandardScaler) scale(i int) float64 {
	if s.Scale[i] == 0 {
		return 1
	}
	return s.Scale[i]
}

// LinearModel is a multi-output linear regression: y = Coef·x + Intercept.
// Coef has one row per output.
type LinearModel struct {
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
}

// Validate checks that Coef is rectangular and matches Intercept.
func (m *LinearModel) Validate() error {
	if len(m.Coef) == 0 || len(m.Coef[0]) == 0 {
		return fmt.Errorf("model: empty coefficients")
	}
	width := len(m.Coef[0])
	for i, row := range m.Coef {
		if len(row) != width {
			return fmt.Errorf("model: coefficient row %d has %d features, want %d", i, len(row), width)
		}
	}
	if len(m.Intercept) != len(m.Coef) {
		return fmt.Errorf("model: %d intercepts for %d outputs", len(m.Intercept), len(m.Coef))
	}
	return nil
}

// Features returns the input width.
func (m *LinearModel) Features() int {
	if len(m.Coef) == 0 {
		return 0
	}
	return len(m.Coef[0])
}

// Outputs returns the output length.
func (m *LinearModel) Outputs() int { return len(m.Coef) }

// Predict evaluates the model for one input row.
func (m *LinearModel) Predict(input []float64) ([]float64, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	nOut, nIn := m.Outputs(), m.Features()
	if len(input) != nIn {
		return nil, fmt.Errorf("model: got %d features, want %d", len(input), nIn)
	}

	flat := make([]float64, 0, nOut*nIn)
	for _, row := range m.Coef {
		flat = append(flat, row...)
	}
	x := mat.NewVecDense(nIn, append([]float64(nil), input...))

	var y mat.VecDense
	y.MulVec(mat.NewDense(nOut, nIn, flat), x)
	y.AddVec(&y, mat.NewVecDense(nOut, append([]float64(nil), m.Intercept...)))
	return mat.Col(nil, 0, &y), nil
}
