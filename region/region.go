// Package region picks the administrative region a user meant from the candidates a geocoder returned.
package region

import (
	"errors"
	"fmt"
	"strings"

	"github.com/umpc/go-sortedmap"

	"github.com/pdok/muitiles/mapslicehelp"
	"github.com/pdok/muitiles/tile"
)

var ErrNoCandidates = errors.New("no region candidates to choose from")

// Candidate is a raw geocoder result.
type Candidate struct {
	DisplayName string           `json:"display_name"`
	Name        string           `json:"name"`
	AddressType string           `json:"addresstype"`
	Category    string           `json:"category"`
	FeatureType string           `json:"type"`
	BoundingBox tile.BoundingBox `json:"boundingbox"`
}

type ScoredCandidate struct {
	Candidate Candidate
	Score     int
	order     int
}

// Resolution is the outcome of PickBest. When NeedsConfirmation is set,
// Candidate is only a suggestion and the caller should let a human choose from Ranked.
type Resolution struct {
	Candidate         Candidate
	Score             int
	Ranked            []ScoredCandidate
	NeedsConfirmation bool
	name              string
}

// Err returns an *AmbiguousRegionError when the resolution needs confirmation, nil otherwise.
func (r Resolution) Err() error {
	if !r.NeedsConfirmation {
		return nil
	}
	return &AmbiguousRegionError{Name: r.name, Suggestions: r.Ranked}
}

// AmbiguousRegionError is a soft error: the candidates scored too close to pick one automatically.
type AmbiguousRegionError struct {
	Name        string
	Suggestions []ScoredCandidate
}

func (e *AmbiguousRegionError) Error() string {
	if len(e.Suggestions) < 2 {
		return fmt.Sprintf("region %q is ambiguous", e.Name)
	}
	return fmt.Sprintf("region %q is ambiguous: %q (%d) vs %q (%d)", e.Name,
		e.Suggestions[0].Candidate.DisplayName, e.Suggestions[0].Score,
		e.Suggestions[1].Candidate.DisplayName, e.Suggestions[1].Score)
}

// Weights are tuned heuristics, not derived values.
type Weights struct {
	NameMatch      int
	Administrative int
	RegionLevel    int
	SubRegional    int
	CountryMatch   int
	PuertoRico     int
	// minimum lead of the best over the runner-up to pick it without confirmation
	AutoSelectMargin int
}

var DefaultWeights = Weights{
	NameMatch:        20,
	Administrative:   20,
	RegionLevel:      25,
	SubRegional:      -10,
	CountryMatch:     10,
	PuertoRico:       -30,
	AutoSelectMargin: 10,
}

var (
	regionLevelTypes = mapslicehelp.AsKeys([]string{"state", "province", "region", "territory", "state_district"})
	subRegionalTypes = mapslicehelp.AsKeys([]string{"county", "city", "town", "village"})
)

// puerto rico shares names with some US states
const puertoRico = "puerto rico"

func IsRegionLevel(addressType string) bool {
	_, ok := regionLevelTypes[strings.ToLower(addressType)]
	return ok
}

type Resolver struct {
	Weights Weights
}

func NewResolver() *Resolver {
	return &Resolver{Weights: DefaultWeights}
}

// Score rates how well the candidate matches the region name within the country.
func Score(name, country string, c Candidate) int {
	return NewResolver().Score(name, country, c)
}

// PickBest selects the best matching candidate, see Resolver.PickBest.
func PickBest(name, country string, candidates []Candidate) (Resolution, error) {
	return NewResolver().PickBest(name, country, candidates)
}

func (r *Resolver) Score(name, country string, c Candidate) int {
	w := r.Weights
	name = strings.ToLower(strings.TrimSpace(name))
	country = strings.ToLower(strings.TrimSpace(country))
	display := strings.ToLower(c.DisplayName)

	score := 0
	if strings.Contains(display, name) || strings.ToLower(c.Name) == name {
		score += w.NameMatch
	}
	if c.Category == "boundary" && c.FeatureType == "administrative" {
		score += w.Administrative
	}
	addressType := strings.ToLower(c.AddressType)
	if _, ok := regionLevelTypes[addressType]; ok {
		score += w.RegionLevel
	} else if _, ok := subRegionalTypes[addressType]; ok {
		score += w.SubRegional
	}
	if country != "" && strings.Contains(display, country) {
		score += w.CountryMatch
	}
	if strings.Contains(display, puertoRico) {
		score += w.PuertoRico
	}
	return score
}

// PickBest drops point and city level noise when region level candidates exist,
// then ranks the rest by score. The best is picked outright when it is the only one
// or leads the runner-up by at least AutoSelectMargin; otherwise it is returned as a
// suggestion with NeedsConfirmation set. PickBest never blocks for input.
func (r *Resolver) PickBest(name, country string, candidates []Candidate) (Resolution, error) {
	if len(candidates) == 0 {
		return Resolution{}, fmt.Errorf("%w: %q", ErrNoCandidates, name)
	}

	working := candidates
	var regional []Candidate
	for _, c := range candidates {
		if IsRegionLevel(c.AddressType) {
			regional = append(regional, c)
		}
	}
	if len(regional) > 0 {
		working = regional
	}

	ranked := r.Rank(name, country, working)
	best := ranked[0]
	res := Resolution{Candidate: best.Candidate, Score: best.Score, Ranked: ranked, name: name}
	if len(ranked) == 1 {
		return res, nil
	}
	res.NeedsConfirmation = best.Score-ranked[1].Score < r.Weights.AutoSelectMargin
	return res, nil
}

// Rank scores the candidates and orders them by descending score, ties keep their input order.
func (r *Resolver) Rank(name, country string, candidates []Candidate) []ScoredCandidate {
	byScore := sortedmap.New(len(candidates), func(x, y interface{}) bool {
		a, b := x.(ScoredCandidate), y.(ScoredCandidate)
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.order < b.order
	})
	for i, c := range candidates {
		byScore.Insert(i, ScoredCandidate{Candidate: c, Score: r.Score(name, country, c), order: i})
	}
	ranked := make([]ScoredCandidate, 0, len(candidates))
	scored := byScore.Map()
	for _, key := range byScore.Keys() {
		ranked = append(ranked, scored[key].(ScoredCandidate))
	}
	return ranked
}
