// outlook-download - Download the NOAA SWPC 27-day outlook and daily indices
//
// Data sources:
//   - NOAA SWPC 27-day Space Weather Outlook Table (F10.7, Ap, largest Kp)
//   - NOAA SWPC daily geomagnetic indices (observed Kp/Ap)
//   - NOAA SWPC daily solar data (observed F10.7)
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/outlook-download ./cmd/outlook-download

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/KI7MT/ki7mt-kp-forecast/internal/common"
	"github.com/KI7MT/ki7mt-kp-forecast/internal/solar"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

// DataSource defines a downloadable SWPC product
type DataSource struct {
	Name     string
	URL      string
	Filename string
	Desc     string
}

var sources = []DataSource{
	{
		Name:     "outlook",
		URL:      solar.OutlookURL,
		Filename: "27-day-outlook.txt",
		Desc:     "NOAA 27-day outlook (F10.7, Ap, largest Kp)",
	},
	{
		Name:     "geomag",
		URL:      "https://services.swpc.noaa.gov/text/daily-geomagnetic-indices.txt",
		Filename: "daily-geomagnetic-indices.txt",
		Desc:     "NOAA daily geomagnetic indices (last 30 days)",
	},
	{
		Name:     "solar",
		URL:      "https://services.swpc.noaa.gov/text/daily-solar-indices.txt",
		Filename: "daily-solar-indices.txt",
		Desc:     "NOAA daily solar indices (last 30 days)",
	},
}

func downloadFile(ctx context.Context, url, destPath string, timeout time.Duration) (int64, error) {
	client := &http.Client{
		Timeout: timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP GET failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create file failed: %w", err)
	}

	n, err := io.Copy(f, resp.Body)
	f.Close()

	if err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("rename failed: %w", err)
	}
	return n, nil
}

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	destDir := flag.String("dest", "", "Destination directory (default <data_dir>/solar)")
	timeout := flag.Duration("timeout", 60*time.Second, "HTTP timeout per download")
	listSources := flag.Bool("list", false, "List available data sources")
	source := flag.String("source", "all", "Source to download (or 'all')")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "outlook-download v%s - SWPC Outlook Downloader\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Downloads the 27-day outlook and daily indices from NOAA SWPC.\n\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nData Sources:\n")
		for _, s := range sources {
			fmt.Fprintf(os.Stderr, "  %-10s %s\n", s.Name, s.Desc)
		}
	}

	flag.Parse()

	if *listSources {
		fmt.Printf("Available SWPC data sources:\n\n")
		for _, s := range sources {
			fmt.Printf("  %-10s %s\n", s.Name, s.Desc)
			fmt.Printf("             URL: %s\n", s.URL)
			fmt.Printf("             File: %s\n\n", s.Filename)
		}
		return
	}

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
	if *destDir == "" {
		*destDir = cfg.SolarDataDir()
	}

	common.Banner(logger, "Outlook Download", Version)
	log.Info().Str("dest", *destDir).Dur("timeout", *timeout).Msg("Settings")

	if err := os.MkdirAll(*destDir, 0755); err != nil {
		log.Fatal().Err(err).Msg("Cannot create directory")
	}

	ctx := context.Background()
	stats := common.NewStats()
	downloaded := 0
	failed := 0

	for _, src := range sources {
		if *source != "all" && *source != src.Name {
			continue
		}

		destPath := filepath.Join(*destDir, src.Filename)
		log.Info().Str("source", src.Name).Str("url", src.URL).Msg("Downloading")

		n, err := downloadFile(ctx, src.URL, destPath, *timeout)
		if err != nil {
			log.Error().Err(err).Str("source", src.Name).Msg("Download failed")
			failed++
			continue
		}
		log.Info().Str("file", filepath.Base(destPath)).Int64("bytes", n).Msg("Downloaded")
		stats.AddBytes(uint64(n))
		downloaded++
	}

	log.Info().Msg(common.Separator)
	log.Info().Msg("Download Summary")
	log.Info().Msg(common.Separator)
	log.Info().Int("downloaded", downloaded).Int("failed", failed).
		Str("elapsed", stats.Elapsed().Round(time.Millisecond).String()).
		Msg("Done")

	if failed > 0 {
		os.Exit(1)
	}
}
