// Package geocode resolves place names to region candidates using a Nominatim compatible search API.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/pdok/muitiles/region"
	"github.com/pdok/muitiles/tile"
)

const DefaultEndpoint = "https://nominatim.openstreetmap.org"

var ErrInvalidBoundingBox = errors.New("invalid bounding box in geocoder response")

// Geocoder searches for places. An empty result is not an error.
type Geocoder interface {
	Search(ctx context.Context, query, countryCode string, limit int) ([]region.Candidate, error)
}

type GeocodeError struct {
	Query      string
	StatusCode int
	Err        error
}

func (e *GeocodeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("geocoding %q failed with status %d: %v", e.Query, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("geocoding %q failed: %v", e.Query, e.Err)
}

func (e *GeocodeError) Unwrap() error {
	return e.Err
}

type Config struct {
	Endpoint  string `default:"https://nominatim.openstreetmap.org" validate:"url"`
	UserAgent string `default:"muitiles/0.1 (LVGL RGB565 bin tile tool)"`
	CacheSize int    `default:"64" validate:"min=1"`
}

// Nominatim queries /search with format=jsonv2. Raw responses are cached per query.
type Nominatim struct {
	client *http.Client
	cfg    Config
	cache  *lru.Cache[string, []byte]
	logger zerolog.Logger
}

func NewNominatim(client *http.Client, cfg Config, logger zerolog.Logger) (*Nominatim, error) {
	cache, err := lru.New[string, []byte](max(cfg.CacheSize, 1))
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Nominatim{client: client, cfg: cfg, cache: cache, logger: logger}, nil
}

func (n *Nominatim) Search(ctx context.Context, query, countryCode string, limit int) ([]region.Candidate, error) {
	u, err := n.searchURL(query, countryCode, limit)
	if err != nil {
		return nil, &GeocodeError{Query: query, Err: err}
	}

	body, ok := n.cache.Get(u)
	if !ok {
		body, err = n.get(ctx, query, u)
		if err != nil {
			return nil, err
		}
		n.cache.Add(u, body)
	} else {
		n.logger.Debug().Str("query", query).Msg("geocode cache hit")
	}

	candidates, err := ParseCandidates(body)
	if err != nil {
		return nil, &GeocodeError{Query: query, Err: err}
	}
	n.logger.Debug().Str("query", query).Str("country", countryCode).Int("candidates", len(candidates)).Msg("geocoded")
	return candidates, nil
}

func (n *Nominatim) searchURL(query, countryCode string, limit int) (string, error) {
	u, err := url.Parse(strings.TrimRight(n.cfg.Endpoint, "/") + "/search")
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "jsonv2")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if countryCode != "" {
		q.Set("countrycodes", strings.ToLower(countryCode))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (n *Nominatim) get(ctx context.Context, query, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &GeocodeError{Query: query, Err: err}
	}
	req.Header.Set("User-Agent", n.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, &GeocodeError{Query: query, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GeocodeError{Query: query, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &GeocodeError{Query: query, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	return body, nil
}

// ParseCandidates reads a jsonv2 search response. The boundingbox of a result is
// an array of strings ordered south, north, west, east.
func ParseCandidates(body []byte) ([]region.Candidate, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("response is not valid JSON")
	}
	results := gjson.ParseBytes(body)
	if !results.IsArray() {
		return nil, fmt.Errorf("expected a JSON array, got %s", results.Type)
	}

	var candidates []region.Candidate
	var parseErr error
	results.ForEach(func(_, r gjson.Result) bool {
		bbox, err := parseBoundingBox(r.Get("boundingbox"))
		if err != nil {
			parseErr = fmt.Errorf("%q: %w", r.Get("display_name").String(), err)
			return false
		}
		category := r.Get("category")
		if !category.Exists() {
			// format=json calls it class
			category = r.Get("class")
		}
		candidates = append(candidates, region.Candidate{
			DisplayName: r.Get("display_name").String(),
			Name:        r.Get("name").String(),
			AddressType: r.Get("addresstype").String(),
			Category:    category.String(),
			FeatureType: r.Get("type").String(),
			BoundingBox: bbox,
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return candidates, nil
}

func parseBoundingBox(raw gjson.Result) (tile.BoundingBox, error) {
	values := raw.Array()
	if len(values) != 4 {
		return tile.BoundingBox{}, fmt.Errorf("%w: expected 4 values, got %d", ErrInvalidBoundingBox, len(values))
	}
	var v [4]float64
	for i, value := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(value.String()), 64)
		if err != nil {
			return tile.BoundingBox{}, fmt.Errorf("%w: %v", ErrInvalidBoundingBox, err)
		}
		v[i] = f
	}
	bbox := tile.BoundingBox{South: v[0], North: v[1], West: v[2], East: v[3]}
	if err := tile.ValidateCoordinate(0, bbox.West); err != nil {
		return tile.BoundingBox{}, fmt.Errorf("%w: west %v", ErrInvalidBoundingBox, bbox.West)
	}
	if err := tile.ValidateCoordinate(0, bbox.East); err != nil {
		return tile.BoundingBox{}, fmt.Errorf("%w: east %v", ErrInvalidBoundingBox, bbox.East)
	}
	// south and north may come swapped, the enumerator normalizes
	for _, lat := range []float64{bbox.South, bbox.North} {
		if math.IsNaN(lat) || lat < -90 || lat > 90 {
			return tile.BoundingBox{}, fmt.Errorf("%w: latitude %v", ErrInvalidBoundingBox, lat)
		}
	}
	return bbox, nil
}
