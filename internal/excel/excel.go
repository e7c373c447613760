package excel

import (
	"fmt"
	"math"
	"strings"

	"base-distance/internal/csvfile"
	"base-distance/internal/geocode"
	"base-distance/internal/models"

	"github.com/xuri/excelize/v2"
)

func OpenFile(filename string) (*excelize.File, error) {
	return excelize.OpenFile(filename)
}

// FirstSheet returns the name of the first worksheet.
func FirstSheet(f *excelize.File) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	return sheets[0], nil
}

// pointColumns locates the name, latitude and longitude columns by header.
func pointColumns(header []string) (name, lat, lon int, ok bool) {
	name, lat, lon = -1, -1, -1
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case lat < 0 && strings.Contains(h, "latitude"):
			lat = i
		case lon < 0 && strings.Contains(h, "longitude"):
			lon = i
		case name < 0 && strings.Contains(h, "name"):
			name = i
		}
	}
	return name, lat, lon, name >= 0 && lat >= 0 && lon >= 0
}

// ReadPoints reads a point table from sheetName. Unlike CSV input the
// columns are located by header, so they may appear in any order.
func ReadPoints(f *excelize.File, sheetName string) ([]models.Point, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return []models.Point{}, nil
	}

	nameCol, latCol, lonCol, ok := pointColumns(rows[0])
	if !ok {
		return []models.Point{}, nil
	}
	last := max(nameCol, latCol, lonCol)

	var points []models.Point
	for i, row := range rows[1:] {
		if len(row) <= last {
			continue // Not enough columns
		}

		p := models.NewPoint(i+1, row[nameCol], row[latCol], row[lonCol])
		if !p.Valid() {
			continue // Skip invalid rows
		}
		points = append(points, p)
	}
	return points, nil
}

// ReadAddresses reads an address table from sheetName.
func ReadAddresses(f *excelize.File, sheetName string) ([]geocode.AddressRecord, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	return csvfile.AddressRecords(rows), nil
}

// WriteResult writes assignments to a new workbook at path.
func WriteResult(path string, data []models.Assignment, sheetName string) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	// Use Stream Writer for performance
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return err
	}

	headers := make([]interface{}, len(csvfile.ExportHeader))
	for i, h := range csvfile.ExportHeader {
		headers[i] = h
	}
	if err := sw.SetRow("A1", headers); err != nil {
		return err
	}

	for i, r := range data {
		rowNum := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		row := []interface{}{
			r.Subbase.Name, r.Subbase.Lat, r.Subbase.Lon,
			r.ClosestBase.Name, r.ClosestBase.Lat, r.ClosestBase.Lon,
			math.Round(r.Distance*100) / 100,
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}

	f.SetActiveSheet(index)
	// Delete default sheet if exists
	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	return f.SaveAs(path)
}
