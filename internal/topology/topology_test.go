package topology

import (
	"errors"
	"testing"
)

func square(n int) [][]float64 {
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
		for j := range d[i] {
			if i != j {
				d[i][j] = float64(10 * (i + j))
			}
		}
	}
	return d
}

func TestNewRejectsRaggedTable(t *testing.T) {
	names := []string{"Istanbul", "Kapıkule", "Strasbourg"}
	d := square(3)
	d[1] = d[1][:2]
	_, err := New(names, d)
	var die *DataIntegrityError
	if !errors.As(err, &die) {
		t.Fatalf("want DataIntegrityError, got %v", err)
	}
}

func TestNewRejectsRowCountMismatch(t *testing.T) {
	_, err := New([]string{"A", "B", "C"}, square(2))
	var die *DataIntegrityError
	if !errors.As(err, &die) {
		t.Fatalf("want DataIntegrityError, got %v", err)
	}
}

func TestNewRejectsNegativeDistance(t *testing.T) {
	d := square(2)
	d[0][1] = -4
	if _, err := New([]string{"A", "B"}, d); err == nil {
		t.Fatal("negative distance accepted")
	}
}

func TestNewRejectsDuplicateAfterNormalization(t *testing.T) {
	if _, err := New([]string{"Lille", " lille "}, square(2)); err == nil {
		t.Fatal("duplicate normalized name accepted")
	}
}

func TestLookupNormalizes(t *testing.T) {
	topo, err := New([]string{" Istanbul ", "Kapıkule", "Saint Michel Sur Orge"}, square(3))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for query, want := range map[string]int{
		"istanbul":                  0,
		"  ISTANBUL":                0,
		"kapıkule":                  1,
		"saint michel sur orge":     2,
		"  Saint Michel Sur Orge  ": 2,
	} {
		got, err := topo.Lookup(query)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", query, err)
		}
		if got != want {
			t.Fatalf("Lookup(%q) = %d, want %d", query, got, want)
		}
	}
	if topo.Name(0) != "Istanbul" {
		t.Fatalf("display name not trimmed: %q", topo.Name(0))
	}
}

func TestLookupUnknown(t *testing.T) {
	topo, _ := New([]string{"A", "B"}, square(2))
	_, err := topo.Lookup("Ankara")
	var mle *MissingLocationError
	if !errors.As(err, &mle) {
		t.Fatalf("want MissingLocationError, got %v", err)
	}
	if mle.Name != "Ankara" || mle.Normalized != "ankara" {
		t.Fatalf("error fields: %+v", mle)
	}
}

func TestDistanceAccess(t *testing.T) {
	d := square(3)
	d[0][2] = 2730.5
	topo, _ := New([]string{"A", "B", "C"}, d)
	if got := topo.Distance(0, 2); got != 2730.5 {
		t.Fatalf("Distance(0,2) = %v", got)
	}
	if got := topo.Distance(1, 1); got != 0 {
		t.Fatalf("self distance = %v", got)
	}
}

func TestResolveSequence(t *testing.T) {
	topo, _ := New([]string{"Istanbul", "Kapıkule", "Strasbourg", "Lille"}, square(4))
	seq, err := topo.ResolveSequence("istanbul", "KAPIKULE", "Strasbourg")
	if err == nil {
		// KAPIKULE folds to "kapikule" which is not "kapıkule"; the dotless
		// ı never round-trips through ASCII upper case.
		t.Fatal("expected lookup failure for ASCII-uppercased Kapıkule")
	}
	seq, err = topo.ResolveSequence("Istanbul", "Kapıkule", " strasbourg ")
	if err != nil {
		t.Fatalf("ResolveSequence: %v", err)
	}
	if seq.Origin != 0 || seq.BorderExit != 1 || seq.BorderEntry != 2 {
		t.Fatalf("sequence = %+v", seq)
	}
	if !seq.Contains(1) || seq.Contains(3) {
		t.Fatal("Contains misclassifies nodes")
	}
}

func TestResolveSequenceDistinct(t *testing.T) {
	topo, _ := New([]string{"A", "B", "C"}, square(3))
	if _, err := topo.ResolveSequence("A", "B", "B"); err == nil {
		t.Fatal("duplicate transit nodes accepted")
	}
}
