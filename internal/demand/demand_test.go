package demand

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestDefaultsTotal(t *testing.T) {
	var total int64
	for _, kg := range Defaults() {
		total += kg
	}
	if total != 104132 {
		t.Fatalf("default table total = %d, want 104132", total)
	}
	if Defaults()["Rouen"] != 22483 {
		t.Fatalf("Rouen = %d", Defaults()["Rouen"])
	}
}

func TestStaticFetchCopies(t *testing.T) {
	src := Static{Table: map[string]int64{"Lille": 10}}
	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got["Lille"] = 99
	if src.Table["Lille"] != 10 {
		t.Fatal("Fetch returned the backing map")
	}
}

func TestMergeOverrides(t *testing.T) {
	base := map[string]int64{"Lille": 10, "Rouen": 20}
	got := Merge(base, map[string]int64{"Rouen": 5, "Melun": 7})
	if got["Lille"] != 10 || got["Rouen"] != 5 || got["Melun"] != 7 {
		t.Fatalf("merge = %v", got)
	}
	if base["Rouen"] != 20 {
		t.Fatal("merge mutated base")
	}
}

func TestCSVFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demands.csv")
	data := "location,kg\nLille,6351\nRouen,22.483\nMelun,3933\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := CSV{Path: path}.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 3 || got["Lille"] != 6351 || got["Rouen"] != 22483 {
		t.Fatalf("table = %v", got)
	}
}

func TestCSVFetchSemicolon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demands.csv")
	data := "Lille;6351\nRouen;22483\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := CSV{Path: path, Comma: ';'}.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got["Lille"] != 6351 || got["Rouen"] != 22483 {
		t.Fatalf("table = %v", got)
	}
}

func TestCSVFetchBadQuantity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demands.csv")
	data := "Lille,6351\nRouen,heavy\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := CSV{Path: path}.Fetch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("err = %v", err)
	}
}

func TestParseKgFormats(t *testing.T) {
	cases := map[string]int64{
		"6351":   6351,
		"6.351":  6351,
		"6351,0": 6351,
		"0":      0,
	}
	for in, want := range cases {
		got, err := parseKg(in)
		if err != nil {
			t.Fatalf("parseKg(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("parseKg(%q) = %d, want %d", in, got, want)
		}
	}
	for _, in := range []string{"-5", "heavy", "12,5"} {
		if _, err := parseKg(in); err == nil {
			t.Fatalf("parseKg(%q) accepted", in)
		}
	}
}

func TestExcelFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demands.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Location", "Kg"},
		{"Lille", 6351},
		{"Rouen", "22.483"},
	}
	for r, row := range rows {
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Excel{Path: path}.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 || got["Lille"] != 6351 || got["Rouen"] != 22483 {
		t.Fatalf("table = %v", got)
	}
}
