// outlook-ingest - NOAA 27-day outlook ingestion into ClickHouse
//
// Parses SWPC "27-day Space Weather Outlook Table" text files, inserts every
// day into ClickHouse with ch-go native columnar blocks, and writes the
// newest outlook as the one-row feature file read by kp-forecast.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/outlook-ingest ./cmd/outlook-ingest

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ClickHouse/ch-go"
	"github.com/rs/zerolog/log"

	"github.com/KI7MT/ki7mt-kp-forecast/internal/common"
	"github.com/KI7MT/ki7mt-kp-forecast/internal/features"
	"github.com/KI7MT/ki7mt-kp-forecast/internal/solar"
	"github.com/KI7MT/ki7mt-kp-forecast/internal/store"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

// FeaturesFile is the default name of the feature row written for kp-forecast.
const FeaturesFile = "features_today.csv"

// trainingRow joins an outlook's feature row with its kp_d1..kp_d27 targets.
func trainingRow(o *solar.Outlook) ([]string, features.Row, error) {
	row, err := o.FeatureRow()
	if err != nil {
		return nil, nil, err
	}
	targets, err := o.TargetRow()
	if err != nil {
		return nil, nil, err
	}
	for k, v := range targets {
		row[k] = v
	}
	cols := append(solar.FeatureColumns(), solar.TargetColumns()...)
	return cols, row, nil
}

func parseFile(path string) (*solar.Outlook, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	o, err := solar.ParseOutlook(f)
	if err != nil {
		return nil, 0, err
	}
	o.Source = filepath.Base(path)
	return o, info.Size(), nil
}

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	sourceDir := flag.String("source-dir", "", "Outlook source directory (default <data_dir>/solar)")
	featuresOut := flag.String("features", "", "Feature CSV to write (default <source-dir>/features_today.csv)")
	noDB := flag.Bool("no-db", false, "Skip the ClickHouse insert")
	truncate := flag.Bool("truncate", false, "Truncate table before insert")
	trainOut := flag.String("train", "", "Also write the newest outlook as a features+targets training row")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "outlook-ingest v%s - 27-Day Outlook Ingester\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [files...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Ingests NOAA SWPC 27-day outlook tables into ClickHouse and writes\n")
		fmt.Fprintf(os.Stderr, "the newest outlook as a feature row.\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger, err := common.SetupGlobal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *sourceDir == "" {
		*sourceDir = cfg.SolarDataDir()
	}
	if *featuresOut == "" {
		*featuresOut = filepath.Join(*sourceDir, FeaturesFile)
	}

	common.Banner(logger, "Outlook Ingest", Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warn().Msg("Shutdown requested...")
		cancel()
	}()

	files := flag.Args()
	if len(files) == 0 {
		files = []string{filepath.Join(*sourceDir, "27-day-outlook.txt")}
	}
	log.Info().Int("files", len(files)).Msg("Found file(s)")

	stats := common.NewStats()
	batch := store.NewOutlookBatch()
	var newest *solar.Outlook

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}

		o, size, err := parseFile(path)
		if err != nil {
			log.Error().Err(err).Str("file", filepath.Base(path)).Msg("Parse error")
			continue
		}
		log.Info().Str("file", o.Source).Int("days", len(o.Days)).
			Time("issued", o.IssuedAt).Msg("Parsed")

		batch.AddOutlook(o)
		stats.AddRows(uint64(len(o.Days)))
		stats.AddBytes(uint64(size))
		if newest == nil || o.IssuedAt.After(newest.IssuedAt) {
			newest = o
		}
	}

	if newest == nil {
		log.Fatal().Msg("No outlook parsed")
	}

	if !*noDB {
		conn, err := store.DialNative(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("ClickHouse connection failed")
		}
		defer conn.Close()

		writer := store.NewOutlookWriter(conn, cfg.OutlookTable)
		if err := writer.EnsureTable(ctx); err != nil {
			log.Fatal().Err(err).Msg("Create table failed")
		}
		if *truncate {
			log.Info().Str("table", cfg.OutlookTable).Msg("Truncating table")
			if err := conn.Do(ctx, ch.Query{Body: fmt.Sprintf("TRUNCATE TABLE %s", cfg.OutlookTable)}); err != nil {
				log.Warn().Err(err).Msg("Truncate warning")
			}
		}

		rows := batch.Len()
		if err := writer.Flush(ctx, batch); err != nil {
			log.Fatal().Err(err).Msg("Insert error")
		}
		log.Info().Int("rows", rows).Str("table", cfg.OutlookTable).Msg("Inserted")
	}

	row, err := newest.FeatureRow()
	if err != nil {
		log.Fatal().Err(err).Msg("Feature row")
	}
	if err := features.WriteCSV(*featuresOut, solar.FeatureColumns(), row); err != nil {
		log.Fatal().Err(err).Msg("Write features")
	}
	log.Info().Str("path", *featuresOut).Time("issued", newest.IssuedAt).Msg("Wrote feature row")

	if *trainOut != "" {
		cols, train, err := trainingRow(newest)
		if err != nil {
			log.Fatal().Err(err).Msg("Training row")
		}
		if err := features.WriteCSV(*trainOut, cols, train); err != nil {
			log.Fatal().Err(err).Msg("Write training row")
		}
		log.Info().Str("path", *trainOut).Int("columns", len(cols)).Msg("Wrote training row")
	}

	stats.Log(logger)
}
