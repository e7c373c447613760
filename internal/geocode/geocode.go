// Package geocode turns address rows into points. It owns the search-string
// rules, the process-lifetime coordinate cache and the HTTP proxy client.
package geocode

import (
	"context"
	"errors"
	"strings"

	"base-distance/internal/models"
)

// ErrNotFound is returned when an address cannot be resolved to a coordinate.
var ErrNotFound = errors.New("geocode: address not found")

// ErrNotConfigured is returned by NewProxyAdapter when no endpoint is set.
var ErrNotConfigured = errors.New("geocode: GEOCODE_ENDPOINT is not configured")

// Resolver resolves a search string to a coordinate.
type Resolver interface {
	Resolve(ctx context.Context, term string) (models.Coordinate, error)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(ctx context.Context, term string) (models.Coordinate, error)

func (f ResolverFunc) Resolve(ctx context.Context, term string) (models.Coordinate, error) {
	return f(ctx, term)
}

// AddressRecord is one row of an address table. Fields is keyed by the
// lower-cased column header.
type AddressRecord struct {
	Name   string
	Fields map[string]string
	Row    int
}

// AddressColumns are the headers recognised besides the first (name) column.
var AddressColumns = []string{"address", "addr", "location", "street", "city", "state", "zip", "zipcode", "postal"}

const termDelimiter = ", "

// searchParts lists, in order, the alternative headers feeding each part of the search string.
var searchParts = [][]string{
	{"address", "addr", "location"},
	{"street"},
	{"city"},
	{"state"},
	{"zip", "zipcode", "postal"},
}

// IsAddressColumn reports whether a lower-cased header is a recognised address column.
func IsAddressColumn(header string) bool {
	for _, c := range AddressColumns {
		if header == c {
			return true
		}
	}
	return false
}

// SearchTerm joins name, address, street, city, state and postal code,
// skipping blanks.
func SearchTerm(rec AddressRecord) string {
	var parts []string
	if name := strings.TrimSpace(rec.Name); name != "" {
		parts = append(parts, name)
	}
	for _, keys := range searchParts {
		for _, k := range keys {
			if v := strings.TrimSpace(rec.Fields[k]); v != "" {
				parts = append(parts, v)
				break
			}
		}
	}
	return strings.Join(parts, termDelimiter)
}
