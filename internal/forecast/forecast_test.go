package forecast

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/ki7mt-kp-forecast/internal/features"
)

// stubModel returns fn(call, input) and counts calls.
type stubModel struct {
	fn    func(call int, input []float64) ([]float64, error)
	calls int
	seen  [][]float64
}

func (m *stubModel) Predict(input []float64) ([]float64, error) {
	m.calls++
	m.seen = append(m.seen, append([]float64(nil), input...))
	return m.fn(m.calls, input)
}

func constant(vals ...float64) *stubModel {
	return &stubModel{fn: func(int, []float64) ([]float64, error) {
		return append([]float64(nil), vals...), nil
	}}
}

// identityScaler leaves rows unchanged.
type identityScaler struct{}

func (identityScaler) Transform(row []float64) ([]float64, error)        { return row, nil }
func (identityScaler) InverseTransform(row []float64) ([]float64, error) { return row, nil }

// tenfoldScaler divides by 10 going in and multiplies coming out.
type tenfoldScaler struct{}

func (tenfoldScaler) Transform(row []float64) ([]float64, error) {
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = v / 10
	}
	return out, nil
}

func (tenfoldScaler) InverseTransform(row []float64) ([]float64, error) {
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = v * 10
	}
	return out, nil
}

type counter struct{ n int }

func (c *counter) OnModelCall() { c.n++ }

var testCols = []string{"kp", "ap", "f107"}

func window(rows ...[3]float64) []features.Row {
	out := make([]features.Row, len(rows))
	for i, r := range rows {
		out[i] = features.Row{"kp": r[0], "ap": r[1], "f107": r[2]}
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func assertSeries(t *testing.T, s Series, want float64) {
	t.Helper()
	require.Len(t, s, DefaultHorizon)
	for i, p := range s {
		require.True(t, p.Valid, "day %d", i+1)
		assert.InDelta(t, want, p.Value, 1e-9, "day %d", i+1)
	}
}

func TestGenerate_OneShotFullHorizon(t *testing.T) {
	model := constant(repeat(5, 27)...)
	obs := &counter{}
	d := NewDispatcher(testCols, Options{Observer: obs})

	s, err := d.Generate(window([3]float64{2, 7, 130}), Pair{Model: model, Scaler: identityScaler{}})
	require.NoError(t, err)

	assertSeries(t, s, 5)
	assert.Equal(t, 1, model.calls)
	assert.Equal(t, 1, obs.n)
}

func TestGenerate_OneShotClipsAndMarksMissing(t *testing.T) {
	out := repeat(4, 27)
	out[0] = 12
	out[1] = -3
	out[2] = math.NaN()
	out[3] = 2.34567
	d := NewDispatcher(testCols, Options{})

	s, err := d.Generate(window([3]float64{2, 7, 130}), Pair{Model: constant(out...), Scaler: identityScaler{}})
	require.NoError(t, err)

	assert.Equal(t, Point{Value: 9, Valid: true}, s[0])
	assert.Equal(t, Point{Value: 0, Valid: true}, s[1])
	assert.Equal(t, Point{}, s[2])
	assert.Equal(t, Point{Value: 2.346, Valid: true}, s[3])
	assert.Equal(t, 1, s.Missing())
}

func TestGenerate_ScalarIterates(t *testing.T) {
	model := constant(3.0)
	obs := &counter{}
	d := NewDispatcher(testCols, Options{Observer: obs})

	s, err := d.Generate(window([3]float64{2, 7, 130}), Pair{Model: model, Scaler: identityScaler{}})
	require.NoError(t, err)

	assertSeries(t, s, 3)
	assert.Equal(t, 27, model.calls)
	assert.Equal(t, 27, obs.n)
}

func TestGenerate_ScalarWritesTargetBack(t *testing.T) {
	// each prediction is the previous input kp plus one
	model := &stubModel{fn: func(_ int, in []float64) ([]float64, error) {
		return []float64{in[0] + 1}, nil
	}}
	d := NewDispatcher(testCols, Options{Horizon: 5})

	s, err := d.Generate(window([3]float64{0, 7, 130}), Pair{Model: model, Scaler: identityScaler{}})
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 2, 3, 4, 5}, s.Values())
	assert.Equal(t, 5, model.calls)
	// secondary columns carry forward unchanged
	for _, in := range model.seen {
		assert.Equal(t, 7.0, in[1])
		assert.Equal(t, 130.0, in[2])
	}
}

func TestGenerate_ThreeValues(t *testing.T) {
	cols := []string{"kp", "ap", "f107", "dst"}
	model := constant(4, 27, 150)
	d := NewDispatcher(cols, Options{Horizon: 4})

	row := features.Row{"kp": 1, "ap": 3, "f107": 120, "dst": -5}
	s, err := d.Generate([]features.Row{row}, Pair{Model: model, Scaler: identityScaler{}})
	require.NoError(t, err)

	assert.Equal(t, []float64{4, 4, 4, 4}, s.Values())
	require.Len(t, model.seen, 4)
	assert.Equal(t, []float64{1, 3, 120, -5}, model.seen[0])
	assert.Equal(t, []float64{4, 27, 150, -5}, model.seen[1])
}

func TestGenerate_ThreeValuesDropsAbsentSlots(t *testing.T) {
	cols := []string{"kp_d1", "x1", "x2", "x3"}
	model := constant(6, 48, 150)
	d := NewDispatcher(cols, Options{Horizon: 2})

	row := features.Row{"kp_d1": 1, "x1": 10, "x2": 20, "x3": 30}
	s, err := d.Generate([]features.Row{row}, Pair{Model: model, Scaler: identityScaler{}})
	require.NoError(t, err)

	assert.Equal(t, []float64{6, 6}, s.Values())
	assert.Equal(t, []float64{6, 10, 20, 30}, model.seen[1])
}

func TestGenerate_FeatureVectorScaled(t *testing.T) {
	// mean |v| below 100: treated as scaled and inverse-transformed
	model := constant(0.5, 1.2, 13)
	d := NewDispatcher(testCols, Options{Horizon: 4})

	s, err := d.Generate(window([3]float64{2, 7, 130}), Pair{Model: model, Scaler: tenfoldScaler{}})
	require.NoError(t, err)

	assert.Equal(t, []float64{5, 5, 5, 5}, s.Values())
	// the unscaled row feeds the next call through Transform
	assert.InDeltaSlice(t, []float64{0.5, 1.2, 13}, model.seen[1], 1e-9)
}

func TestGenerate_FeatureVectorUnscaled(t *testing.T) {
	model := constant(3, 15, 300)
	d := NewDispatcher(testCols, Options{Horizon: 4})

	s, err := d.Generate(window([3]float64{2, 7, 130}), Pair{Model: model, Scaler: tenfoldScaler{}})
	require.NoError(t, err)

	assert.Equal(t, []float64{3, 3, 3, 3}, s.Values())
	assert.InDeltaSlice(t, []float64{0.3, 1.5, 30}, model.seen[1], 1e-9)
}

func TestGenerate_HorizonMatrix(t *testing.T) {
	horizon := 4
	out := make([]float64, 0, horizon*len(testCols))
	for i := 0; i < horizon; i++ {
		out = append(out, float64(i)/10, 0.7, 13)
	}
	model := constant(out...)
	d := NewDispatcher(testCols, Options{Horizon: horizon})

	s, err := d.Generate(window([3]float64{2, 7, 130}), Pair{Model: model, Scaler: tenfoldScaler{}})
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0, 1, 2, 3}, s.Values(), 1e-9)
	assert.Equal(t, 1, model.calls)
}

func TestGenerate_FirstStepHorizonAfterFailedOneShot(t *testing.T) {
	model := &stubModel{fn: func(call int, _ []float64) ([]float64, error) {
		if call == 1 {
			return nil, errors.New("wrong rank")
		}
		return repeat(2, 27), nil
	}}
	d := NewDispatcher(testCols, Options{})

	s, err := d.Generate(window([3]float64{2, 7, 130}), Pair{Model: model, Scaler: identityScaler{}})
	require.NoError(t, err)

	assertSeries(t, s, 2)
	assert.Equal(t, 2, model.calls)
}

func TestGenerate_UnrecognizedUsesFirstElement(t *testing.T) {
	model := constant(4.5, 99, 99, 99, 99)
	d := NewDispatcher(testCols, Options{Horizon: 3})

	s, err := d.Generate(window([3]float64{2, 7, 130}), Pair{Model: model, Scaler: identityScaler{}})
	require.NoError(t, err)

	assert.Equal(t, []float64{4.5, 4.5, 4.5}, s.Values())
	assert.Equal(t, []float64{4.5, 7, 130}, model.seen[1])
}

func TestGenerate_UnrecognizedWithoutKpColumn(t *testing.T) {
	cols := []string{"f107_d1", "ap_d1", "x", "y"}
	row := features.Row{"f107_d1": 150, "ap_d1": 10, "x": 1, "y": 2}
	model := constant(4.5, 99, 99, 99, 99)
	d := NewDispatcher(cols, Options{Horizon: 3})

	s, err := d.Generate([]features.Row{row}, Pair{Model: model, Scaler: identityScaler{}})
	require.NoError(t, err)

	assert.Equal(t, []float64{4.5, 4.5, 4.5}, s.Values())
	require.Len(t, model.seen, 3)
	for _, in := range model.seen {
		assert.Equal(t, []float64{150, 10, 1, 2}, in)
	}
}

func TestGenerate_NonFiniteStepIsMissing(t *testing.T) {
	model := &stubModel{fn: func(call int, _ []float64) ([]float64, error) {
		if call == 2 {
			return []float64{math.Inf(1)}, nil
		}
		return []float64{1}, nil
	}}
	d := NewDispatcher(testCols, Options{Horizon: 3})

	s, err := d.Generate(window([3]float64{2, 7, 130}), Pair{Model: model, Scaler: identityScaler{}})
	require.NoError(t, err)

	assert.Equal(t, Series{{1, true}, {}, {1, true}}, s)
	// the buffer never holds Inf
	assert.Equal(t, []float64{0, 7, 130}, model.seen[2])
}

func TestGenerate_ModelFailureWhileIterating(t *testing.T) {
	model := &stubModel{fn: func(call int, _ []float64) ([]float64, error) {
		if call == 3 {
			return nil, errors.New("boom")
		}
		return []float64{1}, nil
	}}
	d := NewDispatcher(testCols, Options{})

	_, err := d.Generate(window([3]float64{2, 7, 130}), Pair{Model: model, Scaler: identityScaler{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelFailed)
	assert.Equal(t, 3, model.calls)
}

func TestGenerate_MissingColumns(t *testing.T) {
	model := constant(1)
	d := NewDispatcher([]string{"kp", "ap", "f107", "dst"}, Options{})

	_, err := d.Generate(window([3]float64{2, 7, 130}), Pair{Model: model, Scaler: identityScaler{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInputIncomplete)

	var mc *MissingColumnsError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, []string{"dst"}, mc.Columns)
	assert.Zero(t, model.calls)
}

func TestGenerate_EmptyWindow(t *testing.T) {
	d := NewDispatcher(testCols, Options{})
	_, err := d.Generate(nil, Pair{Model: constant(1), Scaler: identityScaler{}})
	assert.ErrorIs(t, err, ErrEmptyWindow)
}

type failingSource struct{ err error }

func (f failingSource) LoadArtifacts() (Model, Scaler, error) { return nil, nil, f.err }

func TestGenerate_ArtifactErrors(t *testing.T) {
	d := NewDispatcher(testCols, Options{})
	w := window([3]float64{2, 7, 130})

	_, err := d.Generate(w, Pair{})
	assert.ErrorIs(t, err, ErrArtifactMissing)

	_, err = d.Generate(w, failingSource{fmt.Errorf("model.json.gz: %w", ErrArtifactMissing)})
	assert.ErrorIs(t, err, ErrArtifactMissing)

	_, err = d.Generate(w, failingSource{errors.New("corrupt")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load artifacts")
}

func TestGenerate_NonFiniteInputBecomesZero(t *testing.T) {
	model := constant(1)
	d := NewDispatcher(testCols, Options{Horizon: 1})

	w := []features.Row{{"kp": math.NaN(), "ap": math.Inf(1), "f107": 130}}
	_, err := d.Generate(w, Pair{Model: model, Scaler: identityScaler{}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 130}, model.seen[0])
}

func TestGenerate_AnchorsOnLastRow(t *testing.T) {
	model := constant(repeat(1, 27)...)
	d := NewDispatcher(testCols, Options{})

	_, err := d.Generate(window([3]float64{1, 1, 100}, [3]float64{4, 27, 140}), Pair{Model: model, Scaler: identityScaler{}})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 27, 140}, model.seen[0])
}

func TestGenerate_Idempotent(t *testing.T) {
	fn := func(_ int, in []float64) ([]float64, error) {
		return []float64{in[0]*0.9 + in[1]/50}, nil
	}
	d := NewDispatcher(testCols, Options{})
	w := window([3]float64{3, 15, 140}, [3]float64{4, 27, 150})

	a, err := d.Generate(w, Pair{Model: &stubModel{fn: fn}, Scaler: identityScaler{}})
	require.NoError(t, err)
	b, err := d.Generate(w, Pair{Model: &stubModel{fn: fn}, Scaler: identityScaler{}})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerate_LengthAndRangeAcrossShapes(t *testing.T) {
	outputs := [][]float64{
		{12},
		{-4, 1, 1},
		{0.1, 0.2, 0.3},
		{50, 60, 70, 80, 90},
		{math.NaN()},
	}
	for _, out := range outputs {
		t.Run(fmt.Sprintf("len%d", len(out)), func(t *testing.T) {
			d := NewDispatcher(testCols, Options{})
			s, err := d.Generate(window([3]float64{2, 7, 130}), Pair{Model: constant(out...), Scaler: identityScaler{}})
			require.NoError(t, err)
			require.Len(t, s, DefaultHorizon)
			for _, p := range s {
				if p.Valid {
					assert.GreaterOrEqual(t, p.Value, KpMin)
					assert.LessOrEqual(t, p.Value, KpMax)
				}
			}
		})
	}
}

func TestClassifyStep(t *testing.T) {
	assert.Equal(t, ShapeFullFeatureVector, classifyStep(3, 3, 27, false))
	assert.Equal(t, ShapeOneValue, classifyStep(1, 54, 27, false))
	assert.Equal(t, ShapeThreeValues, classifyStep(3, 54, 27, false))
	assert.Equal(t, ShapeFullHorizon, classifyStep(27, 54, 27, true))
	assert.Equal(t, ShapeUnrecognized, classifyStep(27, 54, 27, false))
	assert.Equal(t, ShapeUnrecognized, classifyStep(5, 54, 27, false))
	// feature count wins when lengths coincide
	assert.Equal(t, ShapeFullFeatureVector, classifyStep(1, 1, 27, true))
}

func TestBuffer(t *testing.T) {
	b := newBuffer([][]float64{{1, 2}, {3, 4}}, 2, 2)
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, []float64{3, 4}, b.last())

	row := b.next()
	assert.Equal(t, []float64{3, 4}, row)
	row[0] = 9
	assert.Equal(t, []float64{9, 4}, b.last())
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 2*4, cap(b.data))
}

func TestRunDays(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := &Run{
		Start: start,
		Kp:    Series{{2, true}, {}},
		Ap:    []float64{7, math.NaN()},
	}
	days := r.Days()
	require.Len(t, days, 2)

	assert.Equal(t, 1, days[0].Index)
	assert.Equal(t, start, days[0].Date)
	require.NotNil(t, days[0].Kp)
	assert.Equal(t, 2.0, *days[0].Kp)
	assert.Equal(t, 7.0, *days[0].Ap)
	assert.Nil(t, days[0].F107)

	assert.Equal(t, start.AddDate(0, 0, 1), days[1].Date)
	assert.Nil(t, days[1].Kp)
	assert.Nil(t, days[1].Ap)
}
