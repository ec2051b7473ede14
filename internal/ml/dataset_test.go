package ml

import (
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCoerceBinary(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"1", 1}, {"0", 0},
		{"true", 1}, {"false", 0},
		{"yes", 1}, {"no", 0},
		{"ndio", 1}, {"Ndiyo", 1}, {"sawa", 1},
		{"hapana", 0}, {"la", 0},
		{"", 0}, {"  YES  ", 1},
		{"2", 1}, {"1.0", 1}, {"0.5", 0},
		{"maybe", 0},
	}
	for _, tt := range tests {
		if got := CoerceBinary(tt.raw); got != tt.want {
			t.Errorf("CoerceBinary(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")
	content := "homa,baridi,Vipimo,ugonjwa\n" +
		"1,ndio,damu,Malaria\n" +
		"0,hapana,,Mafua\n" +
		"1,1,mkojo,\n" // blank label, skipped
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ds, err := LoadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"homa", "baridi"}; !reflect.DeepEqual(ds.Columns, want) {
		t.Errorf("Columns = %v, want %v (advice columns must be excluded)", ds.Columns, want)
	}
	if want := []string{"Malaria", "Mafua"}; !reflect.DeepEqual(ds.Labels, want) {
		t.Errorf("Labels = %v, want %v", ds.Labels, want)
	}
	if want := [][]int{{1, 1}, {0, 0}}; !reflect.DeepEqual(ds.Rows, want) {
		t.Errorf("Rows = %v, want %v", ds.Rows, want)
	}
}

func TestLoadCSVErrors(t *testing.T) {
	dir := t.TempDir()

	noTarget := filepath.Join(dir, "no_target.csv")
	os.WriteFile(noTarget, []byte("homa,baridi\n1,0\n"), 0o644)
	if _, err := LoadCSV(noTarget); err == nil {
		t.Error("dataset without a label column accepted")
	}

	if _, err := LoadCSV(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestBalance(t *testing.T) {
	ds := &Dataset{Columns: []string{"homa"}}
	for i := 0; i < 2; i++ {
		ds.Labels = append(ds.Labels, "rare")
		ds.Rows = append(ds.Rows, []int{1})
	}
	for i := 0; i < 10; i++ {
		ds.Labels = append(ds.Labels, "common")
		ds.Rows = append(ds.Rows, []int{0})
	}

	out := ds.Balance(4, 6, rand.New(rand.NewSource(1)))
	counts := map[string]int{}
	for _, l := range out.Labels {
		counts[l]++
	}
	if counts["rare"] != 4 {
		t.Errorf("rare class upsampled to %d, want 4", counts["rare"])
	}
	if counts["common"] != 6 {
		t.Errorf("common class capped at %d, want 6", counts["common"])
	}
	if len(out.Rows) != len(out.Labels) {
		t.Errorf("rows/labels diverged: %d vs %d", len(out.Rows), len(out.Labels))
	}
}

func TestStratifiedSplit(t *testing.T) {
	ds := &Dataset{Columns: []string{"homa"}}
	for i := 0; i < 10; i++ {
		ds.Labels = append(ds.Labels, "a")
		ds.Rows = append(ds.Rows, []int{1})
		ds.Labels = append(ds.Labels, "b")
		ds.Rows = append(ds.Rows, []int{0})
	}

	train, test := ds.StratifiedSplit(0.2, rand.New(rand.NewSource(1)))
	if len(train)+len(test) != len(ds.Rows) {
		t.Fatalf("split lost rows: %d + %d != %d", len(train), len(test), len(ds.Rows))
	}
	seen := map[int]bool{}
	for _, i := range append(append([]int(nil), train...), test...) {
		if seen[i] {
			t.Fatalf("index %d appears twice", i)
		}
		seen[i] = true
	}
	testByClass := map[string]int{}
	for _, i := range test {
		testByClass[ds.Labels[i]]++
	}
	for _, class := range []string{"a", "b"} {
		if testByClass[class] != 2 {
			t.Errorf("class %s has %d test rows, want 2", class, testByClass[class])
		}
	}
}

func TestEncodeLabels(t *testing.T) {
	ds := &Dataset{
		Columns: []string{"homa"},
		Labels:  []string{"b", "a", "b"},
		Rows:    [][]int{{1}, {0}, {1}},
	}
	classes, y := ds.EncodeLabels()
	if !reflect.DeepEqual(classes, []string{"a", "b"}) {
		t.Errorf("classes = %v, want sorted [a b]", classes)
	}
	if !reflect.DeepEqual(y, []int{1, 0, 1}) {
		t.Errorf("y = %v, want [1 0 1]", y)
	}
}
