// Package export serializes grid rows to CSV.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/drought-dashboard/internal/domain"
)

// Header is the fixed column order of an export.
var Header = []string{
	"Name",
	"ID",
	"Population",
	"WSI",
	"Status",
	"Groundwater Level (m)",
	"Rainfall Deviation (%)",
}

// WriteCSV writes a header and one row per village in the given order.
// Fields containing commas, quotes, or newlines are quoted per RFC 4180.
func WriteCSV(w io.Writer, villages []domain.Village) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, v := range villages {
		if err := cw.Write(record(v)); err != nil {
			return fmt.Errorf("write csv row %s: %w", v.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ToCSV is WriteCSV into a string.
func ToCSV(villages []domain.Village) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, villages); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Filename is the suggested download name for an export.
func Filename() string {
	return "village_water_stress.csv"
}

func record(v domain.Village) []string {
	return []string{
		v.Name,
		v.ID,
		strconv.Itoa(v.Population),
		formatFloat(v.WSI),
		v.Tier().Label(),
		formatFloat(v.GWCurrentLevel),
		formatFloat(v.RainfallDevPct),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
