package kpap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKpToAp(t *testing.T) {
	tests := []struct {
		kp   float64
		want float64
	}{
		{0, 0},
		{3, 7},
		{3.5, 9.5},
		{9, 200},
		{8.25, 140},
		{-2, 0},
		{12, 200},
		{1.1, 2.2},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, KpToAp(tt.kp), 1e-9, "kp=%v", tt.kp)
	}
}

func TestKpToAp_ExactIntegers(t *testing.T) {
	for k := 0; k <= 9; k++ {
		assert.Equal(t, Baseline[k], KpToAp(float64(k)))
	}
}

func TestKpToAp_NonFinite(t *testing.T) {
	assert.True(t, math.IsNaN(KpToAp(math.NaN())))
	assert.True(t, math.IsNaN(KpToAp(math.Inf(1))))
}

func TestKpToApInteger(t *testing.T) {
	ap, ok := KpToApInteger(4.4)
	assert.True(t, ok)
	assert.Equal(t, 27, ap)

	ap, ok = KpToApInteger(2.5)
	assert.True(t, ok)
	assert.Equal(t, 7, ap, "half rounds to even")

	ap, _ = KpToApInteger(20)
	assert.Equal(t, 400, ap)

	_, ok = KpToApInteger(math.NaN())
	assert.False(t, ok)
}

func TestSeriesFromKp(t *testing.T) {
	got := SeriesFromKp([]float64{0, 3.5, math.NaN(), 9})
	assert.Equal(t, 0.0, got[0])
	assert.Equal(t, 9.5, got[1])
	assert.True(t, math.IsNaN(got[2]))
	assert.Equal(t, 200.0, got[3])
}

func TestReconcile(t *testing.T) {
	kp := []float64{1, 3, 5}

	// consistent series is kept
	ap := []float64{5, 20, 60}
	assert.Equal(t, ap, Reconcile(kp, ap, DefaultTolerance))

	// one value too far off replaces the whole series
	assert.Equal(t, []float64{3, 15, 48}, Reconcile(kp, []float64{5, 20, 200}, DefaultTolerance))

	// absent or wrong length
	assert.Equal(t, []float64{3, 15, 48}, Reconcile(kp, nil, DefaultTolerance))
	assert.Equal(t, []float64{3, 15, 48}, Reconcile(kp, []float64{3}, DefaultTolerance))
}

func TestReconcile_MissingKp(t *testing.T) {
	kp := []float64{math.NaN(), 2}
	got := Reconcile(kp, nil, DefaultTolerance)
	assert.Equal(t, []float64{0, 7}, got)

	// missing kp is not judged; missing ap becomes 0
	got = Reconcile(kp, []float64{math.NaN(), 10}, DefaultTolerance)
	assert.Equal(t, []float64{0, 10}, got)
}
