package demand

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CSV reads a two-column location,kilograms file. Exports from Turkish
// office tooling usually come semicolon-separated; set Comma for those.
type CSV struct {
	Path  string
	Comma rune
}

func (c CSV) Name() string { return "csv" }

func (c CSV) Fetch(ctx context.Context) (map[string]int64, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("demand: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if c.Comma != 0 {
		r.Comma = c.Comma
	}
	r.FieldsPerRecord = 2
	r.TrimLeadingSpace = true

	out := make(map[string]int64)
	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("demand: %s: %w", c.Path, err)
		}
		line++
		name := strings.TrimSpace(rec[0])
		raw := strings.TrimSpace(rec[1])
		if line == 1 && !numeric(raw) {
			// Header row.
			continue
		}
		kg, err := parseKg(raw)
		if err != nil {
			return nil, fmt.Errorf("demand: %s line %d: %w", c.Path, line, err)
		}
		if name == "" {
			return nil, fmt.Errorf("demand: %s line %d: empty location name", c.Path, line)
		}
		out[name] = kg
	}
	return out, nil
}

func numeric(s string) bool {
	_, err := parseKg(s)
	return err == nil
}

// parseKg accepts plain integers and Turkish-formatted numbers like
// "6.351" or "6351,0"; fractions of a kilogram are rejected.
func parseKg(s string) (int64, error) {
	if kg, err := strconv.ParseInt(s, 10, 64); err == nil {
		return check(kg)
	}
	t := s
	if strings.Contains(t, ",") {
		t = strings.ReplaceAll(t, ".", "")
		t = strings.Replace(t, ",", ".", 1)
	} else if strings.Count(t, ".") > 0 {
		t = strings.ReplaceAll(t, ".", "")
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, fmt.Errorf("bad quantity %q", s)
	}
	if v != float64(int64(v)) {
		return 0, fmt.Errorf("fractional quantity %q", s)
	}
	return check(int64(v))
}

func check(kg int64) (int64, error) {
	if kg < 0 {
		return 0, fmt.Errorf("negative quantity %d", kg)
	}
	return kg, nil
}
