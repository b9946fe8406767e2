package common

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Stats holds atomic counters for one tool run.
type Stats struct {
	RowsProcessed uint64 // outlook rows parsed or inserted
	BytesRead     uint64
	ModelCalls    uint64
	Forecasts     uint64
	MissingValues uint64 // forecast days without a value

	start time.Time
}

// NewStats creates a new Stats instance
func NewStats() *Stats {
	return &Stats{start: time.Now()}
}

// AddRows atomically increments the rows counter
func (s *Stats) AddRows(count uint64) {
	atomic.AddUint64(&s.RowsProcessed, count)
}

// AddBytes atomically increments the bytes read counter
func (s *Stats) AddBytes(count uint64) {
	atomic.AddUint64(&s.BytesRead, count)
}

// OnModelCall counts one model invocation. Stats is a forecast.Observer.
func (s *Stats) OnModelCall() {
	atomic.AddUint64(&s.ModelCalls, 1)
}

// AddForecast records a finished forecast and how many of its days are missing.
func (s *Stats) AddForecast(missing int) {
	atomic.AddUint64(&s.Forecasts, 1)
	atomic.AddUint64(&s.MissingValues, uint64(missing))
}

// GetTotalRows atomically reads the rows counter
func (s *Stats) GetTotalRows() uint64 {
	return atomic.LoadUint64(&s.RowsProcessed)
}

// GetModelCalls atomically reads the model call counter
func (s *Stats) GetModelCalls() uint64 {
	return atomic.LoadUint64(&s.ModelCalls)
}

// Elapsed returns the time since NewStats.
func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.start)
}

// Log writes the final statistics block.
func (s *Stats) Log(logger zerolog.Logger) {
	logger.Info().Msg(Separator)
	logger.Info().Msg("Statistics")
	logger.Info().Msg(Separator)
	logger.Info().Uint64("rows", atomic.LoadUint64(&s.RowsProcessed)).
		Uint64("bytes", atomic.LoadUint64(&s.BytesRead)).
		Msg("Input")
	logger.Info().Uint64("forecasts", atomic.LoadUint64(&s.Forecasts)).
		Uint64("model_calls", atomic.LoadUint64(&s.ModelCalls)).
		Uint64("missing_days", atomic.LoadUint64(&s.MissingValues)).
		Msg("Forecast")
	logger.Info().Str("elapsed", s.Elapsed().Round(time.Millisecond).String()).Msg("Done")
}
