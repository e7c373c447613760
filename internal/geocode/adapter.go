package geocode

import (
	"context"
	"fmt"

	"base-distance/internal/metrics"
	"base-distance/internal/models"
	"github.com/rs/zerolog/log"
)

// Adapter geocodes address tables. Each unique search string is resolved at
// most once per call, in first-seen order, and successful results are
// written to Cache so later runs skip the lookup entirely.
type Adapter struct {
	Resolver Resolver
	Cache    Cache
	Log      func(msg string)
}

// RowFailure records a row dropped because its address did not resolve.
type RowFailure struct {
	Row  int    `json:"row"`
	Name string `json:"name"`
	Term string `json:"term"`
	Err  string `json:"error"`
}

// Report summarises one Geocode call.
type Report struct {
	Label     string       `json:"label"`
	Total     int          `json:"total"`
	Resolved  int          `json:"resolved"`
	Unique    int          `json:"unique"`
	Lookups   int          `json:"lookups"`
	CacheHits int          `json:"cache_hits"`
	Failed    []RowFailure `json:"failed,omitempty"`
}

func (r Report) Summary() string {
	return fmt.Sprintf("[%s] Geocoding complete. (%d of %d processed)", r.Label, r.Resolved, r.Total)
}

func NewAdapter(resolver Resolver, cache Cache) *Adapter {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Adapter{Resolver: resolver, Cache: cache}
}

// WithLog returns a copy of a that writes progress lines to logf. The copy
// shares the resolver and cache.
func (a *Adapter) WithLog(logf func(msg string)) *Adapter {
	c := *a
	c.Log = logf
	return &c
}

func (a *Adapter) log(msg string) {
	if a.Log != nil {
		a.Log(msg)
	}
}

// Geocode resolves records into points. Rows whose address fails are
// dropped and counted in the report; a failure never aborts the batch.
func (a *Adapter) Geocode(ctx context.Context, label string, records []AddressRecord) ([]models.Point, Report) {
	report := Report{Label: label, Total: len(records)}

	terms := make([]string, len(records))
	seen := make(map[string]struct{}, len(records))
	var unique []string
	for i, rec := range records {
		term := SearchTerm(rec)
		terms[i] = term
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		unique = append(unique, term)
	}
	report.Unique = len(unique)

	resolved := make(map[string]models.Coordinate, len(unique))
	failures := make(map[string]error)
	for _, term := range unique {
		if c, ok := a.Cache.Get(ctx, term); ok {
			metrics.GeocodeCacheHitsTotal.Inc()
			report.CacheHits++
			resolved[term] = c
			continue
		}

		a.log(fmt.Sprintf("[%s] Geocoding: %s", label, term))
		report.Lookups++
		c, err := a.Resolver.Resolve(ctx, term)
		if err != nil {
			log.Debug().Err(err).Str("label", label).Str("term", term).Msg("geocode failed")
			failures[term] = err
			continue
		}
		a.Cache.Set(ctx, term, c)
		resolved[term] = c
	}

	points := make([]models.Point, 0, len(records))
	for i, rec := range records {
		c, ok := resolved[terms[i]]
		if !ok {
			a.log(fmt.Sprintf("[%s] Failed to geocode %s (%d).", label, rec.Name, rec.Row))
			errMsg := ErrNotFound.Error()
			if err := failures[terms[i]]; err != nil {
				errMsg = err.Error()
			}
			report.Failed = append(report.Failed, RowFailure{Row: rec.Row, Name: rec.Name, Term: terms[i], Err: errMsg})
			continue
		}
		points = append(points, models.NewPointAt(rec.Row, rec.Name, c.Lat, c.Lon))
	}
	report.Resolved = len(points)

	a.log(report.Summary())
	log.Info().
		Str("label", label).
		Int("total", report.Total).
		Int("resolved", report.Resolved).
		Int("lookups", report.Lookups).
		Int("cache_hits", report.CacheHits).
		Msg("geocode batch done")
	return points, report
}
