package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tmarchal/nfparset/astro"
	"github.com/tmarchal/nfparset/config"
	"github.com/tmarchal/nfparset/document"
	"github.com/tmarchal/nfparset/internal/logging"
	"github.com/tmarchal/nfparset/parset"
	"github.com/tmarchal/nfparset/store"
	"github.com/tmarchal/nfparset/telemetry"
)

func main() {
	cfgPath := flag.String("config", "", "Path to configuration file")
	outPath := flag.String("out", "", "Output JSON path (default: input with .json extension)")
	configCheck := flag.Bool("config-check", false, "Validate configuration and exit")
	validateOnly := flag.Bool("validate", false, "Decode and report anomalies without writing output")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if *configCheck {
		fmt.Println("Configuration check completed successfully.")
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: nfparset [flags] <file.parset> [...]")
		os.Exit(2)
	}
	if *outPath != "" && flag.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "-out is only valid with a single input file")
		os.Exit(2)
	}

	if err := run(cfg, flag.Args(), *outPath, *validateOnly); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, files []string, outPath string, validateOnly bool) error {
	logger, cleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup logger")
	}
	defer cleanup()
	log.Logger = logger

	collector, err := newTelemetryCollector(cfg.Telemetry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry disabled: %v\n", err)
		collector = telemetry.Noop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc := astro.New(astro.Site{
		LongitudeDeg: cfg.Instrument.Site.LongitudeDeg,
		LatitudeDeg:  cfg.Instrument.Site.LatitudeDeg,
		ElevationM:   cfg.Instrument.Site.ElevationM,
	})
	builder := document.NewBuilder(cfg.Instrument, svc, logging.Component(logger, "document"))

	var archive store.Store
	if cfg.Database.Enabled {
		pg, err := store.NewPostgres(cfg.Database.DSN)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to archive database")
			return err
		}
		defer pg.Close()
		archive = pg
	}

	var failed error
	for _, path := range files {
		if err := processFile(ctx, path, outPath, validateOnly, builder, archive, collector, logger); err != nil {
			logger.Error().Err(err).Str("file", path).Msg("processing failed")
			failed = err
		}
	}
	return failed
}

func processFile(ctx context.Context, path, outPath string, validateOnly bool, builder *document.Builder, archive store.Store, collector telemetry.Collector, logger zerolog.Logger) error {
	p, err := parset.Load(path)
	if err != nil {
		return err
	}
	collector.IncSkippedLines(p.Path, p.SkippedLines)

	doc, warnings, err := builder.Build(p)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		collector.IncBuildWarning(w.Code)
	}
	collector.IncParsetDecoded(doc.Topic.Code)

	pointings := 0
	for _, fov := range doc.FieldOfViews {
		pointings += len(fov.Pointings)
	}
	collector.SetDocumentPointings(doc.FileName.Name, pointings)

	if validateOnly {
		logger.Info().
			Str("file", doc.FileName.Name).
			Int("warnings", len(warnings)).
			Int("pointings", pointings).
			Msg("parset validated")
		return nil
	}

	target := outPath
	if target == "" {
		target = strings.TrimSuffix(p.Path, ".parset") + ".json"
	}
	if err := doc.WriteFile(target); err != nil {
		return err
	}
	logger.Info().Str("file", doc.FileName.Name).Str("output", target).Msg("document written")

	if archive != nil {
		if err := store.Archive(ctx, archive, p, logger); err != nil {
			return fmt.Errorf("archive parset: %w", err)
		}
	}
	return nil
}

func newTelemetryCollector(cfg config.TelemetryConfig) (telemetry.Collector, error) {
	if !cfg.Enabled {
		return telemetry.Noop(), nil
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "prometheus":
		collector, err := telemetry.NewPrometheusCollector(nil)
		if err != nil {
			return nil, err
		}
		return collector, nil
	default:
		return telemetry.Noop(), fmt.Errorf("unsupported telemetry provider %q", cfg.Provider)
	}
}
