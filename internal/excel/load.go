package excel

import (
	"os"
	"path/filepath"
	"strings"

	"base-distance/internal/csvfile"
	"base-distance/internal/geocode"
	"base-distance/internal/models"
)

// IsSpreadsheet reports whether path is read as a workbook rather than CSV.
func IsSpreadsheet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

// LoadPoints reads a long/lat point table from an .xlsx or .csv file.
func LoadPoints(path string) ([]models.Point, error) {
	if !IsSpreadsheet(path) {
		return csvfile.FileSource{Path: path}.Points()
	}
	f, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheet, err := FirstSheet(f)
	if err != nil {
		return nil, err
	}
	return ReadPoints(f, sheet)
}

// LoadAddresses reads an address table from an .xlsx or .csv file.
func LoadAddresses(path string) ([]geocode.AddressRecord, error) {
	if !IsSpreadsheet(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return csvfile.ReadAddresses(f)
	}
	f, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheet, err := FirstSheet(f)
	if err != nil {
		return nil, err
	}
	return ReadAddresses(f, sheet)
}
