package ml

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestArtifact(t *testing.T) *Artifact {
	t.Helper()
	X, y := separableData()
	cfg := ForestConfig{Trees: 15, MaxFeatures: 2, Seed: 1}
	forest, _ := TrainForest(X, y, 2, cfg)
	return &Artifact{
		SymptomColumns: []string{"homa", "baridi"},
		Classes:        []string{"Mafua", "Malaria"},
		Forest:         forest,
		Calibration:    Calibrate(X, y, 2, 3, cfg),
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	a := newTestArtifact(t)
	path := filepath.Join(t.TempDir(), "model.json")
	if err := a.Save(path); err != nil {
		t.Fatal(err)
	}

	b, err := LoadArtifact(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.SymptomColumns, b.SymptomColumns) {
		t.Errorf("columns changed: %v vs %v", a.SymptomColumns, b.SymptomColumns)
	}
	if !reflect.DeepEqual(a.Classes, b.Classes) {
		t.Errorf("classes changed: %v vs %v", a.Classes, b.Classes)
	}

	vec := a.Vectorize([]string{"homa"})
	pa := a.Predict(vec, 2)
	pb := b.Predict(vec, 2)
	if !reflect.DeepEqual(pa, pb) {
		t.Errorf("predictions changed across round trip: %v vs %v", pa, pb)
	}
}

func TestLoadArtifactValidation(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		json string
	}{
		{"no columns", `{"classes":["a"],"forest":{"n_classes":1,"trees":[{"nodes":[{"f":-1,"p":[1]}]}]}}`},
		{"no classes", `{"symptom_columns":["homa"],"forest":{"n_classes":1,"trees":[{"nodes":[{"f":-1,"p":[1]}]}]}}`},
		{"no model", `{"symptom_columns":["homa"],"classes":["a"]}`},
		{"class count mismatch", `{"symptom_columns":["homa"],"classes":["a","b"],"forest":{"n_classes":1,"trees":[{"nodes":[{"f":-1,"p":[1]}]}]}}`},
		{"garbage", `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if err := os.WriteFile(path, []byte(tt.json), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadArtifact(path); err == nil {
				t.Error("invalid artifact accepted")
			}
		})
	}
}

func TestVectorize(t *testing.T) {
	a := &Artifact{SymptomColumns: []string{"homa", "baridi", "kikohozi"}}
	got := a.Vectorize([]string{"kikohozi", "homa", "unknown"})
	if want := []int{1, 0, 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("Vectorize = %v, want %v", got, want)
	}
}

func TestPredictRanking(t *testing.T) {
	a := newTestArtifact(t)

	preds := a.Predict(a.Vectorize([]string{"homa"}), 2)
	if len(preds) != 2 {
		t.Fatalf("got %d predictions, want 2", len(preds))
	}
	if preds[0].Probability < preds[1].Probability {
		t.Errorf("predictions not sorted: %v", preds)
	}
	if preds[0].Disease != "Mafua" {
		t.Errorf("top prediction = %s, want Mafua (class of feature homa)", preds[0].Disease)
	}

	// topN larger than the class count is clamped.
	if got := a.Predict(a.Vectorize([]string{"baridi"}), 10); len(got) != 2 {
		t.Errorf("Predict with topN=10 returned %d entries, want 2", len(got))
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{0.9, "high"}, {0.75, "high"},
		{0.6, "medium"}, {0.55, "medium"},
		{0.54, "low"}, {0.1, "low"},
	}
	for _, tt := range tests {
		if got := Confidence(tt.p); got != tt.want {
			t.Errorf("Confidence(%.2f) = %s, want %s", tt.p, got, tt.want)
		}
	}
}
