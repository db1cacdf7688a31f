package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pdok/muitiles/fetch"
	"github.com/pdok/muitiles/footprint"
	"github.com/pdok/muitiles/logger"
	"github.com/pdok/muitiles/processing"
	"github.com/pdok/muitiles/tms20"
	"github.com/pdok/muitiles/tree"
)

const defaultGeocodeTimeout = 20 * time.Second

func runAction(c *cli.Context) error {
	log, err := buildLogger(c)
	if err != nil {
		return err
	}
	cfg, err := loadRunConfig(c)
	if err != nil {
		return err
	}
	converter, err := newConverter(&cfg.Converter, log)
	if err != nil {
		return err
	}
	manifest, err := buildManifest(c, log)
	if err != nil {
		return err
	}
	printManifest(c.App.Writer, manifest)

	store := tree.ForExport(cfg.Out)
	log.Info().
		Str("style", cfg.Style).
		Str("url", cfg.Options.Template).
		Str("converter", converter.Name()).
		Str("output", store.Root).
		Msg("start")

	var targets []processing.Target
	if cfg.GPKG != "" {
		writer, err := footprint.Create(cfg.GPKG, true, footprint.DefaultPageSize, logger.Component(log, "footprint"))
		if err != nil {
			return err
		}
		defer writer.Close()
		targets = append(targets, writer)
	}

	grid, err := tms20.LoadEmbeddedTileMatrixSet(tms20.WebMercatorQuad)
	if err != nil {
		return err
	}
	pipeline := &processing.Pipeline{
		Fetcher:   fetch.NewHTTP(cfg.Fetch, logger.Component(log, "fetch")),
		Converter: converter,
		Store:     store,
		Grid:      &grid,
		Options:   cfg.Options,
		Logger:    logger.Component(log, "processing"),
	}

	stats, err := pipeline.Run(c.Context, processing.Tiles(manifest.Tiles()), targets...)
	fmt.Fprintf(c.App.Writer, "done %s\n", stats)
	fmt.Fprintf(c.App.Writer, "SD-ready folder: %s\n", store.Root)
	if err != nil {
		return err
	}
	if stats.Failed.Load() > 0 {
		return cli.Exit(fmt.Sprintf("%d tile(s) failed", stats.Failed.Load()), exitFailed)
	}
	return nil
}

func planAction(c *cli.Context) error {
	log, err := buildLogger(c)
	if err != nil {
		return err
	}
	manifest, err := buildManifest(c, log)
	if err != nil {
		return err
	}
	printManifest(c.App.Writer, manifest)

	gpkgPath, err := expandPath(c.String(GPKG))
	if err != nil || gpkgPath == "" {
		return err
	}
	writer, err := footprint.Create(gpkgPath, true, footprint.DefaultPageSize, logger.Component(log, "footprint"))
	if err != nil {
		return err
	}
	defer writer.Close()
	if err = writer.Write(manifest.Tiles()); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "footprints: %d tiles written to %s\n", writer.Written(), gpkgPath)
	return nil
}

func convertAction(c *cli.Context) error {
	log, err := buildLogger(c)
	if err != nil {
		return err
	}
	root, err := expandPath(c.String(ROOT))
	if err != nil {
		return err
	}
	cfg, err := loadConverterConfig(c)
	if err != nil {
		return err
	}
	converter, err := newConverter(cfg, log)
	if err != nil {
		return err
	}

	store := tree.New(root)
	tiles, err := store.List(c.Int(ZOOM), c.String(SRCEXT))
	if err != nil {
		return err
	}
	if len(tiles) == 0 {
		return fmt.Errorf("no *.%s under %s", c.String(SRCEXT), root)
	}

	pipeline := &processing.Pipeline{
		Converter: converter,
		Store:     store,
		Options:   processing.Options{SourceExt: c.String(SRCEXT), KeepSource: true},
		Logger:    logger.Component(log, "processing"),
	}
	stats, err := pipeline.Run(c.Context, processing.Tiles(tiles))
	fmt.Fprintf(c.App.Writer, "converted=%d skipped=%d failed=%d\n", stats.Converted.Load(), stats.Skipped.Load(), stats.Failed.Load())
	if err != nil {
		return err
	}
	if stats.Failed.Load() > 0 {
		return cli.Exit(fmt.Sprintf("%d tile(s) failed", stats.Failed.Load()), exitFailed)
	}
	return nil
}

func regionAction(c *cli.Context) error {
	if !c.IsSet(REGION) {
		return fmt.Errorf("--%s is required", REGION)
	}
	log, err := buildLogger(c)
	if err != nil {
		return err
	}
	candidate, err := resolveRegion(c, log)
	if err != nil {
		return err
	}
	b := candidate.BoundingBox
	fmt.Fprintf(c.App.Writer, "%s\n", candidate.DisplayName)
	fmt.Fprintf(c.App.Writer, "bbox=%s\n", b)
	lat, lon := b.Center()
	fmt.Fprintf(c.App.Writer, "center=(%.5f,%.5f)\n", lat, lon)
	return nil
}

func verifyAction(c *cli.Context) error {
	root, err := expandPath(c.String(ROOT))
	if err != nil {
		return err
	}
	var xRange, yRange *tree.Range
	if c.IsSet(XRANGE) && c.IsSet(YRANGE) {
		x, err := tree.ParseRange(c.String(XRANGE))
		if err != nil {
			return err
		}
		y, err := tree.ParseRange(c.String(YRANGE))
		if err != nil {
			return err
		}
		xRange, yRange = &x, &y
	}

	report, err := tree.New(root).Verify(c.Int(ZOOM), c.String(EXT), xRange, yRange)
	if err != nil {
		return err
	}
	printReport(c.App.Writer, report)
	if !report.OK() {
		return cli.Exit(fmt.Sprintf("%d tile(s) missing", len(report.Missing)), exitFailed)
	}
	return nil
}

func stylesAction(c *cli.Context) error {
	for p := fetch.Styles.Oldest(); p != nil; p = p.Next() {
		fmt.Fprintf(c.App.Writer, "%-12s -> %s\n", p.Key, p.Value)
	}
	fmt.Fprintln(c.App.Writer, "\nUse --template to supply a custom URL template if needed.")
	return nil
}
