package topology

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LoadExcel reads a square distance matrix from a workbook sheet laid out
// with location names in the first row and first column. Numeric cells may
// use either decimal separator; exports from Turkish locales carry commas.
func LoadExcel(path, sheet string) ([]string, [][]float64, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, nil, &DataIntegrityError{Reason: fmt.Sprintf("sheet %q has no data rows", sheet)}
	}

	header := rows[0]
	if len(header) < 2 {
		return nil, nil, &DataIntegrityError{Reason: "header row holds no location names"}
	}
	names := make([]string, 0, len(header)-1)
	for _, cell := range header[1:] {
		name := strings.TrimSpace(cell)
		if name == "" {
			break
		}
		names = append(names, name)
	}
	n := len(names)
	if n == 0 {
		return nil, nil, &DataIntegrityError{Reason: "header row holds no location names"}
	}

	dist := make([][]float64, 0, n)
	for r, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		rowName := strings.TrimSpace(row[0])
		if len(dist) >= n {
			return nil, nil, &DataIntegrityError{Reason: fmt.Sprintf("extra data row %q beyond %d locations", rowName, n)}
		}
		if Normalize(rowName) != Normalize(names[len(dist)]) {
			return nil, nil, &DataIntegrityError{Reason: fmt.Sprintf("row %d name %q does not match column %q", r+2, rowName, names[len(dist)])}
		}
		vals := make([]float64, n)
		for c := 0; c < n; c++ {
			cell := ""
			if c+1 < len(row) {
				cell = row[c+1]
			}
			v, err := parseDistance(cell)
			if err != nil {
				return nil, nil, &DataIntegrityError{Reason: fmt.Sprintf("cell %s -> %s: %v", rowName, names[c], err)}
			}
			vals[c] = v
		}
		dist = append(dist, vals)
	}
	if len(dist) != n {
		return nil, nil, &DataIntegrityError{Reason: fmt.Sprintf("found %d data rows for %d locations", len(dist), n)}
	}
	return names, dist, nil
}

func parseDistance(cell string) (float64, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, nil
	}
	// "1.234,5" and "1234,5" both mean 1234.5
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", cell)
	}
	return v, nil
}
