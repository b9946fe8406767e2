package forecast

import (
	"math"
	"time"
)

// Run is one completed forecast with its companion series, as handed to
// storage and export.
type Run struct {
	IssuedAt time.Time // issue time of the input outlook
	RunAt    time.Time
	Mode     string // "direct" or the extension mode for the beyond flow
	Start    time.Time
	Kp       Series
	Ap       []float64 // NaN for missing
	F107     []float64 // optional, NaN for missing
}

// Day is one forecast day. Nil fields are missing.
type Day struct {
	Index int // 1-based
	Date  time.Time
	Kp    *float64
	Ap    *float64
	F107  *float64
}

// Days flattens the run into one entry per Kp day.
func (r *Run) Days() []Day {
	days := make([]Day, len(r.Kp))
	for i, p := range r.Kp {
		d := Day{
			Index: i + 1,
			Date:  r.Start.AddDate(0, 0, i),
			Ap:    at(r.Ap, i),
			F107:  at(r.F107, i),
		}
		if p.Valid {
			v := p.Value
			d.Kp = &v
		}
		days[i] = d
	}
	return days
}

func at(vals []float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	v := vals[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
