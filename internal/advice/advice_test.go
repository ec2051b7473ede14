package advice

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type stubStats struct {
	symptoms []string
}

func (s stubStats) TopSymptoms(label string, k int) []string {
	if k > len(s.symptoms) {
		k = len(s.symptoms)
	}
	return s.symptoms[:k]
}

func newTestResolver() *Resolver {
	kb := map[string]Entry{
		"Malaria": {
			OtherNames:  []string{"Homa ya mbu"},
			Summary:     "Ugonjwa unaosababishwa na mbu.",
			Treatment:   []string{"ALU"},
			DangerSigns: []string{"homa kali", "kupoteza fahamu"},
		},
		"Homa_ya_Matumbo": {
			Summary: "Typhoid.",
		},
	}
	return NewResolver(kb, stubStats{symptoms: []string{"homa_kali", "baridi", "kuhara"}}, Thresholds{Key: 86, Alias: 88}, 3)
}

func TestResolve(t *testing.T) {
	r := newTestResolver()
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{"exact key", "Malaria", "Malaria"},
		{"case insensitive", "malaria", "Malaria"},
		{"spaces for underscores", "Homa ya Matumbo", "Homa_ya_Matumbo"},
		{"alias", "Homa ya mbu", "Malaria"},
		{"fuzzy key", "Malariaa", "Malaria"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := r.Resolve(tt.label)
			if e.Disease != tt.want {
				t.Errorf("Resolve(%q).Disease = %q, want %q", tt.label, e.Disease, tt.want)
			}
			if e.Synthesized {
				t.Errorf("Resolve(%q) fell back to synthesis", tt.label)
			}
		})
	}
}

func TestResolveKeepsAuthoredFields(t *testing.T) {
	r := newTestResolver()
	e := r.Resolve("malaria")
	if e.Summary != "Ugonjwa unaosababishwa na mbu." {
		t.Errorf("Summary = %q", e.Summary)
	}
	if !reflect.DeepEqual(e.Treatment, []string{"ALU"}) {
		t.Errorf("Treatment = %v", e.Treatment)
	}
	if len(e.DangerSigns) != 2 {
		t.Errorf("DangerSigns = %v", e.DangerSigns)
	}
}

func TestSynthesize(t *testing.T) {
	r := newTestResolver()
	e := r.Resolve("Ugonjwa_Mpya")
	if !e.Synthesized {
		t.Fatal("unknown label did not synthesize")
	}
	if e.Disease != "Ugonjwa_Mpya" {
		t.Errorf("Disease = %q", e.Disease)
	}
	if want := []string{"homa kali", "baridi", "kuhara"}; !reflect.DeepEqual(e.WatchSymptoms, want) {
		t.Errorf("WatchSymptoms = %v, want humanized %v", e.WatchSymptoms, want)
	}
	if e.Summary == "" || len(e.Tests) == 0 || len(e.Treatment) == 0 || len(e.HomeCare) == 0 {
		t.Error("synthesized entry has empty guidance fields")
	}
}

func TestSynthesizeWithoutStats(t *testing.T) {
	r := NewResolver(map[string]Entry{}, nil, Thresholds{Key: 86, Alias: 88}, 3)
	e := r.Resolve("Chochote")
	if !e.Synthesized || len(e.WatchSymptoms) == 0 {
		t.Errorf("stat-less synthesis = %+v, want non-empty fallback", e)
	}
}

func TestLoadKB(t *testing.T) {
	dir := t.TempDir()

	// A missing file yields an empty map, not an error.
	kb, err := LoadKB(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(kb) != 0 {
		t.Errorf("missing file produced %d entries", len(kb))
	}

	path := filepath.Join(dir, "ushauri.yaml")
	content := `Malaria:
  majina_mengine: ["Homa ya mbu"]
  maelezo_fupi: "Ugonjwa wa mbu."
  vipimo: ["mRDT", "Blood smear"]
  dalili_za_hatari: ["kupoteza fahamu"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	kb, err = LoadKB(path)
	if err != nil {
		t.Fatal(err)
	}
	e, ok := kb["Malaria"]
	if !ok {
		t.Fatal("Malaria entry missing")
	}
	if e.Summary != "Ugonjwa wa mbu." || len(e.Tests) != 2 || len(e.OtherNames) != 1 {
		t.Errorf("decoded entry = %+v", e)
	}
}
