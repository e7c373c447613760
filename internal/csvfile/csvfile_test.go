package csvfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"base-distance/internal/models"
	"base-distance/internal/pipeline"
	"github.com/stretchr/testify/require"
)

func TestReadPoints(t *testing.T) {
	input := strings.Join([]string{
		"Name,Latitude,Longitude,Notes",
		"Depot,41.88,-87.63,main",
		"Short,41.0",
		"BadLat,north,-87.0",
		"BadLon,41.0,",
		"<b>=Evil</b>,40.0,-88.0",
		",39.0,-89.0",
		"",
		"Yard, 42.5 , -88.25",
	}, "\n")

	points, err := ReadPoints(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, points, 4)

	require.Equal(t, "Depot", points[0].Name)
	require.Equal(t, 41.88, points[0].Lat)
	require.Equal(t, -87.63, points[0].Lon)
	require.Equal(t, 1, points[0].Row)

	require.Equal(t, "Evil", points[1].Name)
	require.Equal(t, "Row 6", points[2].Name)
	require.Equal(t, "Yard", points[3].Name)
	require.Equal(t, 42.5, points[3].Lat)
}

func TestReadPointsHeaderAnyOrderAndCase(t *testing.T) {
	input := "LONGITUDE,latitude,Site Name\r\nA,1,2\r\n"
	points, err := ReadPoints(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, points, 1)
	// positional: name, latitude, longitude
	require.Equal(t, "A", points[0].Name)
	require.Equal(t, 1.0, points[0].Lat)
}

func TestReadPointsStrayQuoteKeepsLaterRows(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "QuotedPrefix",
			input: "Name,Latitude,Longitude\n\"Big\" Depot,1,2\nOther,3,4\nThird,5,6\n",
			want:  []string{`"Big" Depot`, "Other", "Third"},
		},
		{
			name:  "UnterminatedQuote",
			input: "Name,Latitude,Longitude\nA,1,2\n\"Broken,3,4\nC,5,6",
			want:  []string{"A", `"Broken`, "C"},
		},
		{
			name:  "QuotedComma",
			input: "Name,Latitude,Longitude\n\"Depot, North\",1,2\nC,5,6\n",
			want:  []string{"Depot, North", "C"},
		},
		{
			name:  "BadRowBetween",
			input: "Name,Latitude,Longitude\n\"x\"y\"\nC,5,6\n",
			want:  []string{"C"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			points, err := ReadPoints(strings.NewReader(tc.input))
			require.NoError(t, err)
			names := make([]string, len(points))
			for i, p := range points {
				names[i] = p.Name
			}
			require.Equal(t, tc.want, names)
		})
	}
}

func TestReadPointsEmptyCases(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"HeaderOnly", "Name,Latitude,Longitude\n"},
		{"AddressHeader", "Name,Address,City\nDepot,1 Main,Chicago\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			points, err := ReadPoints(strings.NewReader(tc.input))
			require.NoError(t, err)
			require.Empty(t, points)
		})
	}
}

func TestReadAddresses(t *testing.T) {
	input := strings.Join([]string{
		"Store,Address,City,STATE,Zip,Country",
		"Depot,1 Main St,Springfield,IL,62701,US",
		",9 Elm,Peoria,IL,61602,US",
		",,,,,",
		"Kiosk,,Chicago",
	}, "\n")

	records, err := ReadAddresses(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.Equal(t, "Depot", records[0].Name)
	require.Equal(t, "1 Main St", records[0].Fields["address"])
	require.Equal(t, "IL", records[0].Fields["state"])
	require.NotContains(t, records[0].Fields, "country")

	require.Equal(t, "Row 2", records[1].Name)
	require.Equal(t, 2, records[1].Row)

	require.Equal(t, "Kiosk", records[2].Name)
	require.Equal(t, 4, records[2].Row)
	require.Equal(t, "Chicago", records[2].Fields["city"])
}

func TestWriteAssignments(t *testing.T) {
	assignments := []models.Assignment{
		{
			Subbase:     models.NewPointAt(1, "Shop, North", 1, 1),
			ClosestBase: models.NewPointAt(1, "A", 0, 0),
			Distance:    97.7134,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAssignments(&buf, assignments))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Subbase,Subbase Latitude,Subbase Longitude,Closest Base,Base Latitude,Base Longitude,Distance (mi)", lines[0])
	require.Equal(t, `"Shop, North",1,1,A,0,0,97.71`, lines[1])
}

func TestWritePointsRoundTrip(t *testing.T) {
	points := []models.Point{
		models.NewPointAt(1, "A", 41.5, -87.25),
		models.NewPointAt(2, "B", -33.9, 151.2),
	}
	var buf bytes.Buffer
	require.NoError(t, WritePoints(&buf, points))

	got, err := ReadPoints(&buf)
	require.NoError(t, err)
	require.Equal(t, points, got)
}

func TestFileSinkWritesOnDeliverOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "closest.csv")
	sink := FileSink{Path: path}

	_, err := pipeline.NewOrchestrator().Run(pipeline.Request{
		Base: []models.Point{models.NewPointAt(1, "A", 0, 0)},
		Sink: sink,
	})
	require.Error(t, err)
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	_, err = pipeline.NewOrchestrator().Run(pipeline.Request{
		Base:    []models.Point{models.NewPointAt(1, "A", 0, 0)},
		Subbase: []models.Point{models.NewPointAt(1, "X", 1, 1)},
		Sink:    sink,
	})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "X,1,1,A,0,0,97.71")

	err = WriteFile(filepath.Join(dir, "missing", "out.csv"), nil)
	require.Error(t, err)
}

func TestFileSourceAndSink(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.csv")
	subPath := filepath.Join(dir, "sub.csv")
	require.NoError(t, os.WriteFile(basePath, []byte("Name,Latitude,Longitude\nA,0,0\nB,10,10\n"), 0644))
	require.NoError(t, os.WriteFile(subPath, []byte("Name,Latitude,Longitude\nX,1,1\n"), 0644))

	base, err := FileSource{Path: basePath}.Points()
	require.NoError(t, err)
	sub, err := FileSource{Path: subPath}.Points()
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = pipeline.NewOrchestrator().Run(pipeline.Request{Base: base, Subbase: sub, Sink: Sink{W: &buf}})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "X,1,1,A,0,0,97.71")

	_, err = FileSource{Path: filepath.Join(dir, "missing.csv")}.Points()
	require.Error(t, err)
}
