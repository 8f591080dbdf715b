package demand

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Excel reads a location/kilograms sheet, first column names, second
// column quantities. A header row is skipped when its quantity cell is
// not numeric.
type Excel struct {
	Path  string
	Sheet string
}

func (e Excel) Name() string { return "excel" }

func (e Excel) Fetch(ctx context.Context) (map[string]int64, error) {
	f, err := excelize.OpenFile(e.Path)
	if err != nil {
		return nil, fmt.Errorf("demand: %w", err)
	}
	defer f.Close()

	sheet := e.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("demand: %s: %w", e.Path, err)
	}

	out := make(map[string]int64)
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(row) < 2 {
			continue
		}
		name := strings.TrimSpace(row[0])
		raw := strings.TrimSpace(row[1])
		if name == "" && raw == "" {
			continue
		}
		if i == 0 && !numeric(raw) {
			continue
		}
		kg, err := parseKg(raw)
		if err != nil {
			return nil, fmt.Errorf("demand: %s row %d: %w", e.Path, i+1, err)
		}
		if name == "" {
			return nil, fmt.Errorf("demand: %s row %d: empty location name", e.Path, i+1)
		}
		out[name] = kg
	}
	return out, nil
}
