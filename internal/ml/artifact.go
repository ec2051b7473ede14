package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// Prediction is one ranked classifier output.
type Prediction struct {
	Disease     string  `json:"disease"`
	Probability float64 `json:"probability"`
}

// Metadata records how the artifact was produced, for audit.
type Metadata struct {
	TrainedAt   time.Time          `json:"trained_at"`
	DatasetPath string             `json:"dataset_path"`
	NumRows     int                `json:"n_rows"`
	Seed        int64              `json:"random_state"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// Artifact is the trained-model bundle: ordered feature columns, the label
// encoding, the calibrated ensemble and training metadata. It is persisted
// as a single JSON document and loaded once at startup.
type Artifact struct {
	SymptomColumns []string  `json:"symptom_columns"`
	Classes        []string  `json:"classes"`
	Forest         *Forest   `json:"forest"`
	Calibration    []Sigmoid `json:"calibration,omitempty"`
	Metadata       Metadata  `json:"metadata"`
}

// Save writes the artifact as JSON.
func (a *Artifact) Save(path string) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// LoadArtifact reads and validates an artifact. Any missing part makes the
// whole load fail; serving without a complete artifact is not allowed.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	if len(a.SymptomColumns) == 0 {
		return nil, fmt.Errorf("artifact %s has no symptom columns", path)
	}
	if len(a.Classes) == 0 {
		return nil, fmt.Errorf("artifact %s has no label encoding", path)
	}
	if a.Forest == nil || len(a.Forest.Trees) == 0 {
		return nil, fmt.Errorf("artifact %s has no trained model", path)
	}
	if a.Forest.NumClasses != len(a.Classes) {
		return nil, fmt.Errorf("artifact %s: model has %d classes, encoding has %d",
			path, a.Forest.NumClasses, len(a.Classes))
	}
	return &a, nil
}

// Vectorize maps a confirmed symptom set onto the fixed-length binary
// feature vector. Symptoms outside the vocabulary are ignored.
func (a *Artifact) Vectorize(symptoms []string) []int {
	idx := make(map[string]int, len(a.SymptomColumns))
	for i, c := range a.SymptomColumns {
		idx[c] = i
	}
	vec := make([]int, len(a.SymptomColumns))
	for _, s := range symptoms {
		if i, ok := idx[s]; ok {
			vec[i] = 1
		}
	}
	return vec
}

// Predict returns the topN labels by calibrated probability, non-increasing.
// When the ensemble cannot produce a distribution, a one-hot-like vector
// over the first class stands in so the caller always gets a ranking.
func (a *Artifact) Predict(vec []int, topN int) []Prediction {
	probs := a.predictProba(vec)
	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return probs[order[i]] > probs[order[j]] })
	if topN > len(order) {
		topN = len(order)
	}
	out := make([]Prediction, 0, topN)
	for _, ci := range order[:topN] {
		out = append(out, Prediction{Disease: a.Classes[ci], Probability: probs[ci]})
	}
	return out
}

func (a *Artifact) predictProba(vec []int) []float64 {
	raw := a.Forest.PredictProba(vec)
	if raw == nil {
		// No native probability available: synthesize a near-one-hot vector
		// instead of failing.
		const eps = 1e-6
		raw = make([]float64, len(a.Classes))
		for i := range raw {
			raw[i] = eps
		}
		raw[0] = 1
		return raw
	}
	if len(a.Calibration) != len(raw) {
		return raw
	}
	calibrated := make([]float64, len(raw))
	var sum float64
	for c, s := range raw {
		calibrated[c] = a.Calibration[c].Apply(s)
		sum += calibrated[c]
	}
	if sum > 0 {
		for c := range calibrated {
			calibrated[c] /= sum
		}
	}
	return calibrated
}

// Confidence buckets the top probability: high >= 0.75, medium >= 0.55,
// otherwise low.
func Confidence(top float64) string {
	switch {
	case top >= 0.75:
		return "high"
	case top >= 0.55:
		return "medium"
	default:
		return "low"
	}
}
