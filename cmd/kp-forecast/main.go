// kp-forecast - 27-day planetary Kp forecast from the NOAA outlook features
//
// Loads the newest outlook feature row (CSV or ClickHouse), runs the trained
// model/scaler pair over it and prints the Kp forecast with the matching Ap
// series. With -beyond, the F10.7 and Ap inputs are first extended past the
// outlook window and the forecast covers the days after it.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/kp-forecast ./cmd/kp-forecast

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/KI7MT/ki7mt-kp-forecast/internal/artifact"
	"github.com/KI7MT/ki7mt-kp-forecast/internal/common"
	"github.com/KI7MT/ki7mt-kp-forecast/internal/export"
	"github.com/KI7MT/ki7mt-kp-forecast/internal/extend"
	"github.com/KI7MT/ki7mt-kp-forecast/internal/features"
	"github.com/KI7MT/ki7mt-kp-forecast/internal/forecast"
	"github.com/KI7MT/ki7mt-kp-forecast/internal/kpap"
	"github.com/KI7MT/ki7mt-kp-forecast/internal/solar"
	"github.com/KI7MT/ki7mt-kp-forecast/internal/store"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

// ModeDirect tags runs made straight from the outlook row.
const ModeDirect = "direct"

// input is the anchor feature row and where it came from.
type input struct {
	Row      features.Row
	IssuedAt time.Time
	Start    time.Time // first outlook day
}

// pipeline runs one forecast. It is assembled from config in main.
type pipeline struct {
	cfg      *common.Config
	cols     []string
	source   forecast.ArtifactSource
	logger   zerolog.Logger
	observer forecast.Observer
	extended string // optional CSV of the extended series
}

func (p *pipeline) dispatcher() *forecast.Dispatcher {
	return forecast.NewDispatcher(p.cols, forecast.Options{
		Horizon:  p.cfg.Horizon,
		Logger:   p.logger,
		Observer: p.observer,
	})
}

// direct forecasts the outlook days themselves.
func (p *pipeline) direct(in input) (*forecast.Run, error) {
	row := features.NormalizeRow(in.Row, p.cols)
	kp, err := p.dispatcher().Generate([]features.Row{row}, p.source)
	if err != nil {
		return nil, err
	}

	if !outlookAgrees(in.Row, kp) {
		p.logger.Warn().Float64("tolerance", kpap.DefaultTolerance).
			Msg("Outlook ap disagrees with forecast Kp; reporting ap derived from Kp")
	}

	return &forecast.Run{
		IssuedAt: in.IssuedAt,
		RunAt:    time.Now().UTC(),
		Mode:     ModeDirect,
		Start:    in.Start,
		Kp:       kp,
		Ap:       kpap.SeriesFromKp(kp.Values()),
		F107:     outlookSeries(in.Row, "f107", len(kp)),
	}, nil
}

// outlookSeries reads prefix_d1..prefix_dN from row. Absent days are NaN.
func outlookSeries(row features.Row, prefix string, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
		if v, ok := row[fmt.Sprintf("%s_d%d", prefix, i+1)]; ok {
			out[i] = v
		}
	}
	return out
}

// outlookAgrees reports whether the outlook's own ap_d1..ap_dN survive
// reconciliation against the forecast Kp unchanged.
func outlookAgrees(row features.Row, kp forecast.Series) bool {
	ap := outlookSeries(row, "ap", len(kp))
	return slices.Equal(kpap.Reconcile(kp.Values(), ap, kpap.DefaultTolerance), ap)
}

// beyond extends the exogenous series past the window and forecasts the
// days after it.
func (p *pipeline) beyond(in input) (*forecast.Run, error) {
	mode := extend.ParseMode(p.cfg.Mode)
	ext := extend.BuildExtended(in.Row, extend.Options{
		Window: p.cfg.Window,
		Extra:  p.cfg.Horizon,
		Mode:   mode,
		Noise:  p.cfg.Noise,
		Seed:   p.cfg.SeedPtr(),
	})

	if p.extended != "" {
		if err := features.WriteCSV(p.extended, ext.Columns(), ext.Row()); err != nil {
			return nil, fmt.Errorf("write extended series: %w", err)
		}
		p.logger.Info().Str("path", p.extended).Int("days", len(ext.Flux)).Msg("Wrote extended series")
	}

	row := features.NormalizeRow(ext.ShiftedRow(), p.cols)
	kp, err := p.dispatcher().Generate([]features.Row{row}, p.source)
	if err != nil {
		return nil, err
	}
	flux, _ := ext.Horizon()

	return &forecast.Run{
		IssuedAt: in.IssuedAt,
		RunAt:    time.Now().UTC(),
		Mode:     string(mode),
		Start:    in.Start.AddDate(0, 0, ext.Window),
		Kp:       kp,
		Ap:       kpap.SeriesFromKp(kp.Values()),
		F107:     flux,
	}, nil
}

// loadCSV reads the first row of a features file. Its issue time is taken
// from the file's modification time.
func loadCSV(path string, cols []string) (input, error) {
	rows, err := features.ReadCSV(path, cols)
	if err != nil {
		return input{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return input{}, err
	}
	issued := info.ModTime().UTC()
	return input{
		Row:      rows[0],
		IssuedAt: issued,
		Start:    issued.Truncate(24 * time.Hour),
	}, nil
}

// loadDB reads the newest outlook from ClickHouse.
func loadDB(ctx context.Context, cfg *common.Config) (input, error) {
	conn, err := store.DialNative(ctx, cfg)
	if err != nil {
		return input{}, err
	}
	defer conn.Close()

	row, o, err := store.NewOutlookReader(conn, cfg.OutlookTable).LatestFeatureRow(ctx)
	if err != nil {
		return input{}, err
	}
	return input{Row: row, IssuedAt: o.IssuedAt, Start: o.Days[0].Date}, nil
}

func writeDB(ctx context.Context, cfg *common.Config, run *forecast.Run) error {
	conn, err := store.OpenForecastConn(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	w := store.NewForecastWriter(conn, cfg.ForecastTable)
	if err := w.EnsureTable(ctx); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return w.Write(ctx, run)
}

func printRun(w io.Writer, run *forecast.Run) {
	fmt.Fprintf(w, "%-4s %-10s %6s %8s %8s\n", "Day", "Date", "Kp", "Ap", "F10.7")
	for _, d := range run.Days() {
		fmt.Fprintf(w, "%-4d %-10s %6s %8s %8s\n",
			d.Index, d.Date.Format("2006-01-02"), cell(d.Kp, "%.2f"), cell(d.Ap, "%.1f"), cell(d.F107, "%.1f"))
	}
}

func cell(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	featuresPath := flag.String("features", "", "Feature CSV (default <data_dir>/solar/features_today.csv)")
	fromDB := flag.Bool("from-db", false, "Read the newest outlook from ClickHouse instead of the CSV")
	modelDir := flag.String("model-dir", "", "Directory holding model.json.gz and scaler.json.gz")
	horizon := flag.Int("horizon", 0, "Forecast days (default from config)")
	beyondFlag := flag.Bool("beyond", false, "Forecast the days after the outlook window")
	mode := flag.String("mode", "", "Extension mode for -beyond: mean7, linear, ar1, trend")
	noise := flag.Bool("noise", false, "Add seeded noise to extended inputs")
	seed := flag.Int64("seed", -1, "Noise and flux replacement seed (-1 = unset)")
	writeDBFlag := flag.Bool("write-db", false, "Insert the forecast into ClickHouse")
	parquetOut := flag.String("parquet", "", "Write the forecast to this Parquet file")
	extendedOut := flag.String("extended", "", "With -beyond, also write the extended F10.7/ap series to this CSV")
	debug := flag.Bool("debug", false, "Debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "kp-forecast v%s - 27-Day Kp Forecaster\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Forecasts planetary Kp (and derived Ap) from the NOAA outlook features.\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if *modelDir != "" {
		cfg.ModelDir = *modelDir
	}
	if *horizon > 0 {
		cfg.Horizon = *horizon
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *noise {
		cfg.Noise = true
	}
	if *seed >= 0 {
		cfg.Seed = *seed
	}
	if *featuresPath == "" {
		*featuresPath = filepath.Join(cfg.SolarDataDir(), "features_today.csv")
	}

	logger, err := common.SetupGlobal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	common.Banner(logger, "Kp Forecast", Version)
	log.Info().Str("model", cfg.ModelPath()).Str("scaler", cfg.ScalerPath()).
		Int("horizon", cfg.Horizon).Bool("beyond", *beyondFlag).Msg("Settings")

	ctx := context.Background()
	stats := common.NewStats()
	cols := solar.FeatureColumns()

	var in input
	if *fromDB {
		in, err = loadDB(ctx, cfg)
	} else {
		in, err = loadCSV(*featuresPath, cols)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Load features")
	}
	stats.AddRows(1)
	log.Info().Time("issued", in.IssuedAt).Msg("Loaded feature row")

	p := &pipeline{
		cfg:      cfg,
		cols:     cols,
		source:   artifact.Files{ModelPath: cfg.ModelPath(), ScalerPath: cfg.ScalerPath()},
		logger:   logger,
		observer: stats,
		extended: *extendedOut,
	}

	var run *forecast.Run
	if *beyondFlag {
		run, err = p.beyond(in)
	} else {
		run, err = p.direct(in)
	}
	if err != nil {
		var missing *forecast.MissingColumnsError
		switch {
		case errors.Is(err, forecast.ErrArtifactMissing):
			log.Fatal().Err(err).Msg("Model artifacts not found; train and save them first")
		case errors.As(err, &missing):
			log.Fatal().Strs("columns", missing.Columns).Msg("Feature row incomplete")
		default:
			log.Fatal().Err(err).Msg("Forecast failed")
		}
	}
	stats.AddForecast(run.Kp.Missing())

	fmt.Println()
	printRun(os.Stdout, run)
	fmt.Println()

	if *writeDBFlag {
		if err := writeDB(ctx, cfg, run); err != nil {
			log.Fatal().Err(err).Msg("Write forecast")
		}
		log.Info().Str("table", cfg.ForecastTable).Int("days", len(run.Kp)).Msg("Inserted forecast")
	}
	if *parquetOut != "" {
		if err := export.WriteParquet(*parquetOut, run); err != nil {
			log.Fatal().Err(err).Msg("Write parquet")
		}
		log.Info().Str("path", *parquetOut).Msg("Wrote parquet")
	}

	stats.Log(logger)
}
