// Package solar provides NOAA space weather outlook utilities.
// This package parses the SWPC 27-day outlook and defines the canonical
// feature and target columns shared by ingestion, training and forecasting.
package solar

import (
	"fmt"
	"math"
	"time"
)

// Horizon is the length of the SWPC outlook and of every forecast (days).
const Horizon = 27

// SchemaVersion is the current outlook schema version.
const SchemaVersion = 2

// OutlookDay is one row of the 27-day outlook table.
type OutlookDay struct {
	Date time.Time `ch:"date"`
	F107 float64   `ch:"f107"` // 10.7cm radio flux (SFU)
	Ap   float64   `ch:"ap"`   // Planetary A-index, NaN when absent
	Kp   float64   `ch:"kp"`   // Largest Kp (0-9), NaN when absent
}

// Outlook is a parsed 27-day outlook product.
type Outlook struct {
	Source   string
	IssuedAt time.Time // zero when the header had no issue time
	Days     []OutlookDay
}

// FeatureColumns returns the ordered model inputs: f107_d1..d27, ap_d1..d27.
func FeatureColumns() []string {
	cols := make([]string, 0, 2*Horizon)
	for i := 1; i <= Horizon; i++ {
		cols = append(cols, fmt.Sprintf("f107_d%d", i))
	}
	for i := 1; i <= Horizon; i++ {
		cols = append(cols, fmt.Sprintf("ap_d%d", i))
	}
	return cols
}

// TargetColumns returns the ordered training targets: kp_d1..kp_d27.
func TargetColumns() []string {
	cols := make([]string, Horizon)
	for i := range cols {
		cols[i] = fmt.Sprintf("kp_d%d", i+1)
	}
	return cols
}

// FeatureRow maps the first 27 outlook days onto the feature columns.
// When ap is absent but Kp is known, ap is approximated as Kp * 20.
// Missing values stay NaN so the normalizer can impute them.
func (o *Outlook) FeatureRow() (map[string]float64, error) {
	if len(o.Days) < Horizon {
		return nil, fmt.Errorf("outlook has only %d days; need at least %d", len(o.Days), Horizon)
	}

	row := make(map[string]float64, 2*Horizon)
	for i := 0; i < Horizon; i++ {
		d := o.Days[i]
		ap := d.Ap
		if math.IsNaN(ap) && !math.IsNaN(d.Kp) {
			ap = math.Round(clipKp(d.Kp)*20.0*1000) / 1000
		}
		row[fmt.Sprintf("f107_d%d", i+1)] = d.F107
		row[fmt.Sprintf("ap_d%d", i+1)] = ap
	}
	return row, nil
}

// TargetRow returns kp_d1..kp_d27 clipped to the Kp range.
func (o *Outlook) TargetRow() (map[string]float64, error) {
	if len(o.Days) < Horizon {
		return nil, fmt.Errorf("outlook has only %d days; need at least %d", len(o.Days), Horizon)
	}
	row := make(map[string]float64, Horizon)
	for i := 0; i < Horizon; i++ {
		kp := o.Days[i].Kp
		if !math.IsNaN(kp) {
			kp = clipKp(kp)
		}
		row[fmt.Sprintf("kp_d%d", i+1)] = kp
	}
	return row, nil
}

func clipKp(kp float64) float64 {
	return math.Max(0, math.Min(9, kp))
}
