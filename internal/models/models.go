package models

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point is a named coordinate read from a base or subbase table.
// Points are built once by NewPoint/NewPointAt and never mutated afterwards.
type Point struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Row  int     `json:"row"` // 1-based row in the source table
}

var (
	tagPattern     = regexp.MustCompile(`<.*?>`)
	formulaPattern = regexp.MustCompile(`^[=+\-@]+`)
)

// SanitizeName strips markup and leading spreadsheet formula triggers.
func SanitizeName(name string) string {
	s := tagPattern.ReplaceAllString(name, "")
	s = formulaPattern.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.TrimSpace(s)
}

// ParseCoord parses a degree value. Empty or malformed input yields NaN.
func ParseCoord(val string) float64 {
	// Accept comma decimals from spreadsheets saved in comma locales
	val = strings.TrimSpace(strings.ReplaceAll(val, ",", "."))
	if val == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func NewPoint(row int, rawName, rawLat, rawLon string) Point {
	return NewPointAt(row, rawName, ParseCoord(rawLat), ParseCoord(rawLon))
}

func NewPointAt(row int, rawName string, lat, lon float64) Point {
	name := SanitizeName(rawName)
	if name == "" {
		name = fmt.Sprintf("Row %d", row)
	}
	return Point{Name: name, Lat: lat, Lon: lon, Row: row}
}

// Valid reports whether both coordinates are finite numbers.
func (p Point) Valid() bool {
	return isFinite(p.Lat) && isFinite(p.Lon)
}

func (p Point) InRange() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func (p Point) Coordinate() Coordinate {
	return Coordinate{Lat: p.Lat, Lon: p.Lon}
}

// DistanceTo returns the haversine distance to other in miles.
func (p Point) DistanceTo(other Point) float64 {
	return Haversine(p.Lat, p.Lon, other.Lat, other.Lon)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// FilterValid drops points with non-finite coordinates, keeping order.
func FilterValid(points []Point) ([]Point, int) {
	valid := make([]Point, 0, len(points))
	for _, p := range points {
		if p.Valid() {
			valid = append(valid, p)
		}
	}
	return valid, len(points) - len(valid)
}

// FilterInRange drops points outside [-90,90] x [-180,180].
func FilterInRange(points []Point) ([]Point, int) {
	kept := make([]Point, 0, len(points))
	for _, p := range points {
		if p.InRange() {
			kept = append(kept, p)
		}
	}
	return kept, len(points) - len(kept)
}

// Assignment pairs a subbase with its closest base.
type Assignment struct {
	Subbase      Point   `json:"subbase"`
	ClosestBase  Point   `json:"closest_base"`
	SubbaseIndex int     `json:"subbase_index"`
	BaseIndex    int     `json:"base_index"`
	Distance     float64 `json:"distance"` // miles
}
