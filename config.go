package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/pdok/muitiles/convert"
	"github.com/pdok/muitiles/fetch"
	"github.com/pdok/muitiles/geocode"
	"github.com/pdok/muitiles/logger"
	"github.com/pdok/muitiles/processing"
)

const defaultDelay = 50 * time.Millisecond

type converterConfig struct {
	Kind   string `default:"native" validate:"oneof=native lvglimage"`
	Python string `default:"python3"`
	Script string `validate:"required_if=Kind lvglimage"`
}

type runConfig struct {
	Out       string `default:"./export" validate:"required"`
	Style     string `default:"osm"`
	GPKG      string
	Fetch     fetch.Config
	Options   processing.Options
	Converter converterConfig
}

var validate = validator.New()

// load fills the zero values of cfg from its default tags and validates the result.
func load[T any](cfg *T) (*T, error) {
	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildLogger(c *cli.Context) (zerolog.Logger, error) {
	cfg, err := load(&logger.Config{Level: strings.ToLower(c.String(LOGLEVEL)), JSON: c.Bool(LOGJSON)})
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("--%s: %w", LOGLEVEL, err)
	}
	return logger.Build(*cfg, c.App.ErrWriter), nil
}

// expandPath resolves a leading ~ to the home directory.
func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("could not expand %q: %w", p, err)
	}
	return expanded, nil
}

func fetchConfig(c *cli.Context) (*fetch.Config, error) {
	return load(&fetch.Config{UserAgent: c.String(USERAGENT)})
}

func geocodeConfig(c *cli.Context) (*geocode.Config, error) {
	return load(&geocode.Config{Endpoint: c.String(NOMINATIM), UserAgent: c.String(USERAGENT)})
}

func loadConverterConfig(c *cli.Context) (*converterConfig, error) {
	script, err := expandPath(c.String(LVGLIMAGE))
	if err != nil {
		return nil, err
	}
	python, err := expandPath(c.String(PYTHON))
	if err != nil {
		return nil, err
	}
	cfg, err := load(&converterConfig{Kind: strings.ToLower(c.String(CONVERTER)), Python: python, Script: script})
	if err != nil {
		return nil, fmt.Errorf("converter: %w", err)
	}
	return cfg, nil
}

func newConverter(cfg *converterConfig, log zerolog.Logger) (convert.Converter, error) {
	switch cfg.Kind {
	case "lvglimage":
		l := convert.NewLVGLImage(cfg.Python, cfg.Script, logger.Component(log, "convert"))
		if err := l.Check(); err != nil {
			return nil, err
		}
		return l, nil
	default:
		return convert.NewNative(256, 256), nil
	}
}

func loadRunConfig(c *cli.Context) (*runConfig, error) {
	out, err := expandPath(c.String(OUT))
	if err != nil {
		return nil, err
	}
	gpkgPath, err := expandPath(c.String(GPKG))
	if err != nil {
		return nil, err
	}
	fetchCfg, err := fetchConfig(c)
	if err != nil {
		return nil, err
	}
	converterCfg, err := loadConverterConfig(c)
	if err != nil {
		return nil, err
	}
	template, err := fetch.Template(c.String(STYLE), c.String(TEMPLATE))
	if err != nil {
		return nil, err
	}
	return load(&runConfig{
		Out:   out,
		Style: c.String(STYLE),
		GPKG:  gpkgPath,
		Fetch: *fetchCfg,
		Options: processing.Options{
			Template:   template,
			SourceExt:  fetch.SourceExtension(template),
			KeepSource: c.Bool(KEEPSOURCE),
			Delay:      c.Duration(DELAY),
		},
		Converter: *converterCfg,
	})
}

// countryName turns an ISO code like "us" into "United States", the way it appears in display names.
func countryName(code string) string {
	region, err := language.ParseRegion(strings.TrimSpace(code))
	if err != nil {
		return ""
	}
	return display.English.Regions().Name(region)
}
