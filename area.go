package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pdok/muitiles/fetch"
	"github.com/pdok/muitiles/geocode"
	"github.com/pdok/muitiles/logger"
	"github.com/pdok/muitiles/plan"
	"github.com/pdok/muitiles/region"
	"github.com/pdok/muitiles/tile"
)

var ErrNoArea = errors.New("give --lat and --lon, --bbox or --region")

// zoomRange reads --z or --min-zoom/--max-zoom; a missing bound takes the other one.
func zoomRange(c *cli.Context) (int, int, error) {
	switch {
	case c.IsSet(MINZOOM) || c.IsSet(MAXZOOM):
		zMin, zMax := c.Int(MINZOOM), c.Int(MAXZOOM)
		if !c.IsSet(MINZOOM) {
			zMin = zMax
		}
		if !c.IsSet(MAXZOOM) {
			zMax = zMin
		}
		return zMin, zMax, nil
	case c.IsSet(ZOOM):
		return c.Int(ZOOM), c.Int(ZOOM), nil
	}
	return 0, 0, errors.New("give --z or --min-zoom and --max-zoom")
}

// buildManifest plans the area the flags describe: a named region, a bounding box or tiles around a center.
func buildManifest(c *cli.Context, log zerolog.Logger) (*plan.Manifest, error) {
	planner, err := plan.NewPlanner()
	if err != nil {
		return nil, err
	}
	zMin, zMax, err := zoomRange(c)
	if err != nil {
		return nil, err
	}

	switch {
	case c.IsSet(REGION):
		candidate, err := resolveRegion(c, log)
		if err != nil {
			return nil, err
		}
		log.Info().Str("region", candidate.DisplayName).Stringer("bbox", candidate.BoundingBox).Msg("region resolved")
		return planner.Plan(candidate.BoundingBox, zMin, zMax)
	case c.IsSet(BBOX):
		bbox, err := tile.ParseBoundingBox(c.String(BBOX))
		if err != nil {
			return nil, err
		}
		return planner.Plan(bbox, zMin, zMax)
	case c.IsSet(LAT) && c.IsSet(LON):
		lat, lon := c.Float64(LAT), c.Float64(LON)
		if err = tile.ValidateCoordinate(lat, lon); err != nil {
			return nil, err
		}
		return planner.PlanAround(lat, lon, zMin, zMax, c.Int(RADIUS))
	}
	return nil, ErrNoArea
}

func newGeocoder(c *cli.Context, log zerolog.Logger) (*geocode.Nominatim, error) {
	cfg, err := geocodeConfig(c)
	if err != nil {
		return nil, err
	}
	client := fetch.NewOutbound(defaultGeocodeTimeout)
	return geocode.NewNominatim(client, *cfg, logger.Component(log, "geocode"))
}

// resolveRegion geocodes --region and picks a candidate. When the choice is ambiguous
// the ranked candidates are printed and --choice selects one of them.
func resolveRegion(c *cli.Context, log zerolog.Logger) (region.Candidate, error) {
	geocoder, err := newGeocoder(c, log)
	if err != nil {
		return region.Candidate{}, err
	}
	name := c.String(REGION)
	country := c.String(COUNTRY)
	if country == "" && c.IsSet(COUNTRYCODE) {
		country = countryName(c.String(COUNTRYCODE))
	}

	candidates, err := geocoder.Search(c.Context, name, c.String(COUNTRYCODE), c.Int(LIMIT))
	if err != nil {
		return region.Candidate{}, err
	}
	res, err := region.PickBest(name, country, candidates)
	if err != nil {
		return region.Candidate{}, err
	}
	return choose(c.App.Writer, res, c.Int(CHOICE))
}

// choose applies a 1-based choice to an ambiguous resolution.
func choose(w io.Writer, res region.Resolution, choice int) (region.Candidate, error) {
	if choice > 0 {
		if choice > len(res.Ranked) {
			return region.Candidate{}, fmt.Errorf("choice %d out of range 1..%d", choice, len(res.Ranked))
		}
		return res.Ranked[choice-1].Candidate, nil
	}
	if !res.NeedsConfirmation {
		return res.Candidate, nil
	}
	printCandidates(w, res.Ranked)
	return region.Candidate{}, cli.Exit(fmt.Sprintf("%v, pick one with --choice", res.Err()), exitFailed)
}
