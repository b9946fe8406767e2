// Package forecast turns a trained model/scaler pair and a historical
// feature window into a fixed-length Kp forecast.
//
// A forecast first tries a single model call that emits the whole horizon.
// When the model cannot do that, it is driven one day at a time and each
// prediction is written back into a buffer that feeds the next call.
package forecast

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/KI7MT/ki7mt-kp-forecast/internal/features"
)

// DefaultHorizon is the number of days forecast when Options.Horizon is 0.
const DefaultHorizon = 27

var (
	ErrArtifactMissing = errors.New("artifact missing")
	ErrInputIncomplete = errors.New("input incomplete")
	ErrEmptyWindow     = errors.New("empty feature window")
	ErrModelFailed     = errors.New("model call failed")
)

// MissingColumnsError lists the feature columns absent from a window.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing feature columns: %s", strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return ErrInputIncomplete }

// Model predicts from one scaled feature row. The output is flattened and
// its length decides how it is read.
type Model interface {
	Predict(input []float64) ([]float64, error)
}

// Scaler maps feature rows to and from the model's input space.
type Scaler interface {
	Transform(row []float64) ([]float64, error)
	InverseTransform(row []float64) ([]float64, error)
}

// ArtifactSource loads a model and its scaler. It is called once per forecast.
type ArtifactSource interface {
	LoadArtifacts() (Model, Scaler, error)
}

// Pair is an already-loaded artifact pair.
type Pair struct {
	Model  Model
	Scaler Scaler
}

func (p Pair) LoadArtifacts() (Model, Scaler, error) {
	if p.Model == nil || p.Scaler == nil {
		return nil, nil, ErrArtifactMissing
	}
	return p.Model, p.Scaler, nil
}

// Observer is told about every model invocation.
type Observer interface {
	OnModelCall()
}

// Options configures a Dispatcher.
type Options struct {
	Horizon  int
	Logger   zerolog.Logger
	Observer Observer
}

// Dispatcher produces forecasts for one canonical column list. It holds no
// state between calls and may be shared across goroutines as long as the
// Observer is safe for concurrent use.
type Dispatcher struct {
	cols     []string
	roles    features.Roles
	horizon  int
	log      zerolog.Logger
	observer Observer
}

// NewDispatcher resolves column roles once for cols.
func NewDispatcher(cols []string, opts Options) *Dispatcher {
	horizon := opts.Horizon
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	c := make([]string, len(cols))
	copy(c, cols)
	return &Dispatcher{
		cols:     c,
		roles:    features.NewRoles(c),
		horizon:  horizon,
		log:      opts.Logger,
		observer: opts.Observer,
	}
}

// Horizon returns the forecast length.
func (d *Dispatcher) Horizon() int { return d.horizon }

// Roles returns the resolved column roles.
func (d *Dispatcher) Roles() features.Roles { return d.roles }

// Generate forecasts Kp for the configured horizon. The most recent row of
// window is the prediction anchor. Fatal errors are returned before any
// model call is made, or when the model fails during the iterative pass.
func (d *Dispatcher) Generate(window []features.Row, src ArtifactSource) (Series, error) {
	history, err := d.matrix(window)
	if err != nil {
		return nil, err
	}

	model, scaler, err := src.LoadArtifacts()
	if err != nil {
		if errors.Is(err, ErrArtifactMissing) {
			return nil, err
		}
		return nil, fmt.Errorf("load artifacts: %w", err)
	}

	s, first, ok := d.oneShot(history[len(history)-1], model, scaler)
	if ok {
		return s, nil
	}
	return d.iterate(history, model, scaler, first)
}

// matrix validates the window and converts it to numeric rows in column
// order. Non-finite cells become 0.
func (d *Dispatcher) matrix(window []features.Row) ([][]float64, error) {
	if len(window) == 0 {
		return nil, ErrEmptyWindow
	}
	seen := make(map[string]bool)
	var missing []string
	for _, row := range window {
		for _, c := range row.Missing(d.cols) {
			if !seen[c] {
				seen[c] = true
				missing = append(missing, c)
			}
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	out := make([][]float64, len(window))
	for i, row := range window {
		vec := row.Vector(d.cols)
		for j, v := range vec {
			vec[j] = finiteOrZero(v)
		}
		out[i] = vec
	}
	return out, nil
}

// oneShot makes the single up-front call. ok is false when the output must
// be produced iteratively instead; out is then the raw output (nil on
// error), which is the first iterative step's output since both calls see
// the same input row.
func (d *Dispatcher) oneShot(last []float64, model Model, scaler Scaler) (s Series, out []float64, ok bool) {
	out, err := d.predict(last, model, scaler)
	if err != nil {
		d.log.Debug().Err(err).Msg("one-shot attempt failed, iterating")
		return nil, nil, false
	}
	if len(out) == 0 {
		return nil, nil, false
	}

	nFeatures := len(d.cols)
	shape := classifyOneShot(len(out), nFeatures, d.horizon)
	d.log.Debug().Int("len", len(out)).Stringer("shape", shape).Msg("one-shot output")

	switch shape {
	case ShapeFullHorizon:
		return sanitizeAll(out, d.horizon), nil, true
	case ShapeHorizonMatrix:
		kp, err := decodeMatrix(out, scaler, d.roles, d.horizon, nFeatures)
		if err != nil {
			d.log.Debug().Err(err).Msg("matrix output unusable, iterating")
			return nil, out, false
		}
		return sanitizeAll(kp, d.horizon), nil, true
	default:
		return nil, out, false
	}
}

// iterate drives the model one day at a time. A non-nil first is used as
// the output of step 1 instead of calling the model again.
func (d *Dispatcher) iterate(history [][]float64, model Model, scaler Scaler, first []float64) (Series, error) {
	nFeatures := len(d.cols)
	buf := newBuffer(history, nFeatures, d.horizon)
	series := make(Series, 0, d.horizon)

	for step := 0; step < d.horizon; step++ {
		out := first
		first = nil
		if out == nil {
			var err error
			out, err = d.predict(buf.last(), model, scaler)
			if err != nil {
				return nil, fmt.Errorf("%w: step %d: %v", ErrModelFailed, step+1, err)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: step %d: empty output", ErrModelFailed, step+1)
		}

		shape := classifyStep(len(out), nFeatures, d.horizon, step == 0)
		d.log.Debug().Int("step", step+1).Int("len", len(out)).Stringer("shape", shape).Msg("model output")

		if shape == ShapeFullHorizon {
			return sanitizeAll(out, d.horizon), nil
		}

		next := buf.next()
		var res stepResult
		switch shape {
		case ShapeFullFeatureVector:
			res = applyFeatureVector(out, scaler, d.roles, next)
		case ShapeOneValue:
			res = applyOneValue(out, d.roles, next)
		case ShapeThreeValues:
			res = applyThreeValues(out, d.roles, next)
			if len(res.dropped) > 0 {
				d.log.Debug().Int("step", step+1).Strs("dropped", res.dropped).Msg("no column for predicted value")
			}
		default:
			res = applyUnrecognized(out, d.roles, next)
		}
		series = append(series, Sanitize(res.kp))
	}

	return sanitizePad(series, d.horizon), nil
}

// predict scales row and calls the model once.
func (d *Dispatcher) predict(row []float64, model Model, scaler Scaler) ([]float64, error) {
	scaled, err := scaler.Transform(clone(row))
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	if d.observer != nil {
		d.observer.OnModelCall()
	}
	return model.Predict(scaled)
}

// sanitizePad pads s with missing points up to horizon.
func sanitizePad(s Series, horizon int) Series {
	for len(s) < horizon {
		s = append(s, Point{})
	}
	return s[:horizon]
}

func newMatrix(out []float64, rows, cols int) *mat.Dense {
	return mat.NewDense(rows, cols, clone(out))
}
