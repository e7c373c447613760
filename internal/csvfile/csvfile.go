// Package csvfile reads point and address tables from comma-separated text
// and writes the closest-base export.
package csvfile

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"base-distance/internal/calculator"
	"base-distance/internal/geocode"
	"base-distance/internal/models"
)

var ExportHeader = []string{
	"Subbase", "Subbase Latitude", "Subbase Longitude",
	"Closest Base", "Base Latitude", "Base Longitude",
	"Distance (mi)",
}

const maxLineBytes = 1024 * 1024

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return cr
}

// ReadPoints parses a Name, Latitude, Longitude table. A missing or foreign
// header yields an empty set. Each line is parsed on its own, so a malformed
// row (fewer than three columns, non-numeric coordinates) is skipped
// without affecting the rows after it.
func ReadPoints(r io.Reader) ([]models.Point, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	points := []models.Point{}
	for row := 0; scanner.Scan(); row++ {
		line := strings.TrimRight(scanner.Text(), "\r")
		if row == 0 {
			if !IsPointHeader(splitLine(line)) {
				return []models.Point{}, nil
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitLine(line)
		if len(fields) < 3 {
			continue
		}
		p := models.NewPoint(row, fields[0], fields[1], fields[2])
		if !p.Valid() {
			continue
		}
		points = append(points, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return points, nil
}

// splitLine parses a single line as CSV so quoted names containing commas
// survive. When quoting swallows the line into fewer than three fields it
// falls back to a plain comma split.
func splitLine(line string) []string {
	fields, err := newReader(strings.NewReader(line)).Read()
	if err != nil || len(fields) < 3 {
		return strings.Split(line, ",")
	}
	return fields
}

// IsPointHeader reports whether the header mentions name, latitude and
// longitude, case-insensitively and in any order.
func IsPointHeader(header []string) bool {
	h := strings.ToLower(strings.Join(header, ","))
	return strings.Contains(h, "name") &&
		strings.Contains(h, "latitude") &&
		strings.Contains(h, "longitude")
}

// ReadAddresses parses an address table. The first column is always the
// record name; other columns are kept when their header is a recognised
// address column.
func ReadAddresses(r io.Reader) ([]geocode.AddressRecord, error) {
	rows, err := newReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return AddressRecords(rows), nil
}

// AddressRecords converts a header row plus data rows into address records.
func AddressRecords(rows [][]string) []geocode.AddressRecord {
	if len(rows) < 2 || len(rows[0]) == 0 {
		return []geocode.AddressRecord{}
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	records := make([]geocode.AddressRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec := geocode.AddressRecord{Row: i + 1, Fields: make(map[string]string)}
		for c, v := range row {
			if c == 0 {
				rec.Name = strings.TrimSpace(v)
				continue
			}
			if c < len(header) && geocode.IsAddressColumn(header[c]) {
				rec.Fields[header[c]] = strings.TrimSpace(v)
			}
		}
		if rec.Name == "" {
			rec.Name = fmt.Sprintf("Row %d", i+1)
		}
		records = append(records, rec)
	}
	return records
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteAssignments writes the closest-base export with distances rounded to
// two decimals.
func WriteAssignments(w io.Writer, assignments []models.Assignment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, a := range assignments {
		row := []string{
			a.Subbase.Name, formatCoord(a.Subbase.Lat), formatCoord(a.Subbase.Lon),
			a.ClosestBase.Name, formatCoord(a.ClosestBase.Lat), formatCoord(a.ClosestBase.Lon),
			strconv.FormatFloat(a.Distance, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePoints writes a Name, Latitude, Longitude table that ReadPoints accepts.
func WritePoints(w io.Writer, points []models.Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Name", "Latitude", "Longitude"}); err != nil {
		return err
	}
	for _, p := range points {
		if err := cw.Write([]string{p.Name, formatCoord(p.Lat), formatCoord(p.Lon)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Sink delivers assignments as CSV to W.
type Sink struct {
	W io.Writer
}

func (s Sink) Deliver(assignments []models.Assignment, _ calculator.Matrix) error {
	if s.W == nil {
		return errors.New("csv sink has no writer")
	}
	return WriteAssignments(s.W, assignments)
}

// WriteFile writes the closest-base export to path. A partially written file
// is removed on error.
func WriteFile(path string, assignments []models.Assignment) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteAssignments(f, assignments); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// FileSink delivers assignments to Path. The file is only created once a
// run reaches delivery, so a failed run leaves nothing behind.
type FileSink struct {
	Path string
}

func (s FileSink) Deliver(assignments []models.Assignment, _ calculator.Matrix) error {
	return WriteFile(s.Path, assignments)
}

// FileSource reads a long/lat point table from Path.
type FileSource struct {
	Path string
}

func (s FileSource) Points() ([]models.Point, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPoints(f)
}
