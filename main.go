package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/dave/gpxele/config"
	"github.com/dave/gpxele/correct"
	"github.com/dave/gpxele/elevation"
	"github.com/dave/gpxele/logging"
	"github.com/spf13/pflag"
)

const VERSION = "v0.1.0"

func main() {
	if err := Main(os.Args[1:]); err != nil {
		slog.Error("gpxele failed", "error", err)
		os.Exit(1)
	}
}

func Main(args []string) error {
	fs := config.Flags()
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Correct GPS track elevations using high-resolution elevation sources.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: gpxele [flags] <input file or directory>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if version, _ := fs.GetBool("version"); version {
		fmt.Println(VERSION)
		return nil
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Input == "" {
		fs.Usage()
		return errors.New("input is required")
	}

	level := cfg.Log.Level
	if cfg.Verbose && level == "info" {
		level = "debug"
	}
	log := logging.Setup(level, cfg.Log.Format, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	source, closeSource, err := openSource(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSource(); err != nil {
			log.Warn("closing elevation source", "error", err)
		}
	}()

	r := &runner{
		cfg:    cfg,
		source: source,
		engine: correct.NewEngine(source, correct.WithWorkers(cfg.Workers), correct.WithLogger(log)),
		out:    os.Stdout,
		log:    log,
	}

	if cfg.Batch {
		err = r.batch(ctx)
	} else {
		err = r.single(ctx)
	}

	if cfg.MetricsFile != "" {
		if merr := elevation.WriteMetrics(cfg.MetricsFile); merr != nil {
			log.Warn("writing metrics", "file", cfg.MetricsFile, "error", merr)
		}
	}
	return err
}

// openSource picks the elevation source once for the whole run. The returned func releases it.
func openSource(cfg *config.Config, log *slog.Logger) (elevation.Source, func() error, error) {
	if cfg.Source == config.SourceSRTM {
		src, err := elevation.NewSRTMSource(http.DefaultClient, log)
		if err != nil {
			return nil, nil, fmt.Errorf("creating srtm client: %w", err)
		}
		return src, func() error { return nil }, nil
	}
	src, err := elevation.OpenRemoteSource(cfg.USGS.CachePath,
		elevation.WithEndpoint(cfg.USGS.Endpoint),
		elevation.WithTimeout(cfg.USGS.Timeout),
		elevation.WithLogger(log),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating usgs client: %w", err)
	}
	return src, src.Close, nil
}
