// Package export writes forecast runs to Parquet files.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/KI7MT/ki7mt-kp-forecast/internal/forecast"
)

// ForecastDay is one Parquet row. Timestamps are Unix seconds (UTC).
type ForecastDay struct {
	IssuedAt int64    `parquet:"issued_at"`
	RunAt    int64    `parquet:"run_at"`
	Mode     string   `parquet:"mode"`
	Day      int32    `parquet:"day"`
	Date     int64    `parquet:"date"`
	Kp       *float32 `parquet:"kp,optional"`
	Ap       *float32 `parquet:"ap,optional"`
	F107     *float32 `parquet:"f107,optional"`
}

// Rows flattens run into Parquet rows.
func Rows(run *forecast.Run) []ForecastDay {
	days := run.Days()
	rows := make([]ForecastDay, len(days))
	for i, d := range days {
		rows[i] = ForecastDay{
			IssuedAt: run.IssuedAt.Unix(),
			RunAt:    run.RunAt.Unix(),
			Mode:     run.Mode,
			Day:      int32(d.Index),
			Date:     d.Date.Unix(),
			Kp:       f32(d.Kp),
			Ap:       f32(d.Ap),
			F107:     f32(d.F107),
		}
	}
	return rows
}

// WriteParquet writes run to path via a temp file and rename.
func WriteParquet(path string, run *forecast.Run) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	w := parquet.NewGenericWriter[ForecastDay](f)
	if _, err := w.Write(Rows(run)); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("close writer: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// ReadParquet reads the rows of a file written by WriteParquet.
func ReadParquet(path string) ([]ForecastDay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[ForecastDay](pf)
	defer reader.Close()

	rows := make([]ForecastDay, 0, reader.NumRows())
	buf := make([]ForecastDay, 64)
	for {
		n, err := reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return rows, nil
}

func f32(v *float64) *float32 {
	if v == nil {
		return nil
	}
	x := float32(*v)
	return &x
}
