package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	"github.com/iancoleman/strcase"
	"github.com/urfave/cli/v2"
)

const (
	LOGLEVEL    string = `log-level`
	LOGJSON     string = `log-json`
	LAT         string = `lat`
	LON         string = `lon`
	ZOOM        string = `z`
	MINZOOM     string = `min-zoom`
	MAXZOOM     string = `max-zoom`
	RADIUS      string = `radius`
	BBOX        string = `bbox`
	REGION      string = `region`
	COUNTRY     string = `country`
	COUNTRYCODE string = `country-code`
	CHOICE      string = `choice`
	LIMIT       string = `limit`
	NOMINATIM   string = `nominatim`
	STYLE       string = `style`
	TEMPLATE    string = `template`
	OUT         string = `out`
	KEEPSOURCE  string = `keep-source`
	DELAY       string = `delay`
	USERAGENT   string = `user-agent`
	CONVERTER   string = `converter`
	PYTHON      string = `python`
	LVGLIMAGE   string = `lvgl-image`
	GPKG        string = `gpkg`
	ROOT        string = `root`
	EXT         string = `ext`
	SRCEXT      string = `src-ext`
	XRANGE      string = `x`
	YRANGE      string = `y`
)

// exitFailed is the exit code when tiles failed or are missing
const exitFailed = 2

func envVars(name string) []string {
	return []string{strcase.ToScreamingSnake("muitiles-" + name)}
}

func areaFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{Name: LAT, Usage: "Center latitude", EnvVars: envVars(LAT)},
		&cli.Float64Flag{Name: LON, Usage: "Center longitude", EnvVars: envVars(LON)},
		&cli.IntFlag{Name: ZOOM, Usage: "Zoom level, shorthand for equal min and max zoom", EnvVars: envVars("zoom")},
		&cli.IntFlag{Name: MINZOOM, Usage: "Lowest zoom level of the range", EnvVars: envVars(MINZOOM)},
		&cli.IntFlag{Name: MAXZOOM, Usage: "Highest zoom level of the range", EnvVars: envVars(MAXZOOM)},
		&cli.IntFlag{Name: RADIUS, Aliases: []string{"r"}, Usage: "Tile radius around the center, the grid is (2r+1)^2", Value: 4, EnvVars: envVars(RADIUS)},
		&cli.StringFlag{Name: BBOX, Usage: "Bounding box west,south,east,north in degrees", EnvVars: envVars(BBOX)},
		&cli.StringFlag{Name: REGION, Usage: "Administrative region to cover, e.g. Bavaria", EnvVars: envVars(REGION)},
		&cli.StringFlag{Name: COUNTRY, Usage: "Country name used to rank region candidates", EnvVars: envVars(COUNTRY)},
		&cli.StringFlag{Name: COUNTRYCODE, Aliases: []string{"cc"}, Usage: "ISO 3166-1 alpha-2 country code to restrict the region search, e.g. de", EnvVars: envVars(COUNTRYCODE)},
		&cli.IntFlag{Name: CHOICE, Usage: "Pick this (1-based) candidate when the region is ambiguous", EnvVars: envVars(CHOICE)},
		&cli.IntFlag{Name: LIMIT, Usage: "Maximum number of region candidates to request", Value: 10, EnvVars: envVars(LIMIT)},
		&cli.StringFlag{Name: NOMINATIM, Usage: "Base URL of the Nominatim search API", EnvVars: envVars(NOMINATIM)},
		&cli.StringFlag{Name: USERAGENT, Usage: "User-Agent sent to tile servers and the geocoder", EnvVars: envVars(USERAGENT)},
	}
}

func converterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: CONVERTER, Usage: "Converter to use: native or lvglimage", Value: "native", EnvVars: envVars(CONVERTER)},
		&cli.StringFlag{Name: PYTHON, Usage: "Python interpreter for the lvglimage converter", Value: "python3", EnvVars: envVars(PYTHON)},
		&cli.StringFlag{Name: LVGLIMAGE, Usage: "Path to LVGL's scripts/LVGLImage.py for the lvglimage converter", EnvVars: envVars(LVGLIMAGE)},
	}
}

//nolint:funlen
func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "muitiles"
	app.Usage = "Download slippy map tiles and convert them to LVGL RGB565 .bin images"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: LOGLEVEL, Usage: "debug, info, warn or error", Value: "info", EnvVars: envVars(LOGLEVEL)},
		&cli.BoolFlag{Name: LOGJSON, Usage: "Log JSON lines instead of console output", EnvVars: envVars(LOGJSON)},
	}

	app.Commands = []*cli.Command{
		{
			Name:  "run",
			Usage: "Download and convert the tiles of an area",
			Flags: append(append(areaFlags(),
				&cli.StringFlag{Name: STYLE, Aliases: []string{"s"}, Usage: "Built-in style, see the styles command", Value: "osm", EnvVars: envVars(STYLE)},
				&cli.StringFlag{Name: TEMPLATE, Usage: "Custom URL template like https://.../{z}/{x}/{y}.png", EnvVars: envVars(TEMPLATE)},
				&cli.StringFlag{Name: OUT, Aliases: []string{"o"}, Usage: "Output folder, will contain map/<z>/<x>/<y>.bin", Value: "./export", EnvVars: envVars(OUT)},
				&cli.BoolFlag{Name: KEEPSOURCE, Usage: "Keep the downloaded images next to the .bin files", EnvVars: envVars(KEEPSOURCE)},
				&cli.DurationFlag{Name: DELAY, Usage: "Delay between downloads", Value: defaultDelay, EnvVars: envVars(DELAY)},
				&cli.StringFlag{Name: GPKG, Usage: "Also write the footprints of the converted tiles to this GeoPackage", EnvVars: envVars(GPKG)},
			), converterFlags()...),
			Action: runAction,
		},
		{
			Name:  "plan",
			Usage: "Show the tiles and the estimated size of an area without downloading",
			Flags: append(areaFlags(),
				&cli.StringFlag{Name: GPKG, Usage: "Write the footprints of the planned tiles to this GeoPackage", EnvVars: envVars(GPKG)},
			),
			Action: planAction,
		},
		{
			Name:  "convert",
			Usage: "Convert images already present in a tile tree",
			Flags: append([]cli.Flag{
				&cli.StringFlag{Name: ROOT, Usage: "Map root containing <z>/<x>/<y>.<ext>", Required: true, EnvVars: envVars(ROOT)},
				&cli.IntFlag{Name: ZOOM, Usage: "Zoom level to convert", Required: true},
				&cli.StringFlag{Name: SRCEXT, Usage: "Extension of the source images: png, jpg or webp", Value: "png", EnvVars: envVars(SRCEXT)},
			}, converterFlags()...),
			Action: convertAction,
		},
		{
			Name:   "region",
			Usage:  "Resolve a region name to a bounding box",
			Flags:  areaFlags(),
			Action: regionAction,
		},
		{
			Name:  "verify",
			Usage: "Verify the coverage and file sizes of a tile tree",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: ROOT, Usage: "Map root containing <z>/<x>/<y>.<ext>", Required: true, EnvVars: envVars(ROOT)},
				&cli.IntFlag{Name: ZOOM, Usage: "Zoom level to verify", Required: true},
				&cli.StringFlag{Name: EXT, Usage: "Extension: bin, png or jpg", Value: "bin"},
				&cli.StringFlag{Name: XRANGE, Usage: "x range like 7532..7540"},
				&cli.StringFlag{Name: YRANGE, Usage: "y range like 4911..4919"},
			},
			Action: verifyAction,
		},
		{
			Name:    "styles",
			Aliases: []string{"list-styles"},
			Usage:   "List the built-in tile styles",
			Action:  stylesAction,
		},
	}
	return app
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
