// Package triage narrows the disease candidate set over the binary
// symptom-disease training matrix and picks the next question to ask.
package triage

import "fmt"

// Matrix is the training corpus viewed as rows of binary symptom values per
// disease label. It is loaded once at startup and read-only afterwards.
type Matrix struct {
	columns  []string
	colIndex map[string]int
	labels   []string // per-row label
	rows     [][]int  // rows[i][colIndex[s]] in {0,1}
	order    []string // distinct labels in first-seen order
}

// NewMatrix builds a matrix from ordered symptom columns, per-row labels and
// per-row binary vectors.
func NewMatrix(columns []string, labels []string, rows [][]int) (*Matrix, error) {
	if len(labels) != len(rows) {
		return nil, fmt.Errorf("triage: %d labels for %d rows", len(labels), len(rows))
	}
	m := &Matrix{
		columns:  columns,
		colIndex: make(map[string]int, len(columns)),
		labels:   labels,
		rows:     rows,
	}
	for i, c := range columns {
		m.colIndex[c] = i
	}
	seen := make(map[string]struct{})
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("triage: row %d has %d values, want %d", i, len(r), len(columns))
		}
		if _, ok := seen[labels[i]]; !ok {
			seen[labels[i]] = struct{}{}
			m.order = append(m.order, labels[i])
		}
	}
	return m, nil
}

// Columns returns the ordered symptom vocabulary.
func (m *Matrix) Columns() []string { return m.columns }

// Labels returns every distinct disease label in first-seen order.
func (m *Matrix) Labels() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// CandidatesWithSymptoms returns the diseases whose rows carry a 1 in every
// confirmed column. An empty confirmed set returns every label. Symptoms that
// are not matrix columns are skipped; the controller validates symptoms
// against the vocabulary before they reach session state, so an unknown
// column here only means the vocabulary changed under a persisted session.
func (m *Matrix) CandidatesWithSymptoms(confirmed []string) []string {
	if len(confirmed) == 0 {
		return m.Labels()
	}
	idx := make([]int, 0, len(confirmed))
	for _, s := range confirmed {
		if i, ok := m.colIndex[s]; ok {
			idx = append(idx, i)
		}
	}
	var out []string
	seen := make(map[string]struct{})
	for ri, row := range m.rows {
		all := true
		for _, i := range idx {
			if row[i] != 1 {
				all = false
				break
			}
		}
		if all {
			if _, dup := seen[m.labels[ri]]; !dup {
				seen[m.labels[ri]] = struct{}{}
				out = append(out, m.labels[ri])
			}
		}
	}
	return out
}

// FilterByPresence narrows candidates to the diseases whose rows have the
// symptom set to 1 (present) or 0 (absent). Unknown symptom columns pass the
// candidate set through unchanged, matching CandidatesWithSymptoms.
func (m *Matrix) FilterByPresence(candidates []string, symptom string, present bool) []string {
	if len(candidates) == 0 {
		return nil
	}
	col, ok := m.colIndex[symptom]
	if !ok {
		return candidates
	}
	want := 0
	if present {
		want = 1
	}
	inSet := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		inSet[c] = struct{}{}
	}
	kept := make(map[string]struct{})
	var out []string
	for ri, row := range m.rows {
		label := m.labels[ri]
		if _, ok := inSet[label]; !ok {
			continue
		}
		if row[col] != want {
			continue
		}
		if _, dup := kept[label]; !dup {
			kept[label] = struct{}{}
			out = append(out, label)
		}
	}
	return out
}

// RankCandidateSymptoms returns, in original column order, every symptom
// whose mean truthy-rate across the candidate rows is above zero. This is
// deliberately an "any informative symptom" heuristic, not an
// information-gain maximizer; the front of the list is asked first.
func (m *Matrix) RankCandidateSymptoms(candidates []string) []string {
	if len(candidates) == 0 {
		return nil
	}
	inSet := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		inSet[c] = struct{}{}
	}
	var out []string
	for ci, col := range m.columns {
		for ri, row := range m.rows {
			if _, ok := inSet[m.labels[ri]]; !ok {
				continue
			}
			if row[ci] == 1 {
				out = append(out, col)
				break
			}
		}
	}
	return out
}

// TopSymptoms returns up to k symptoms with the highest truthy-rate among
// rows of the given label, most frequent first. It backs advice synthesis.
func (m *Matrix) TopSymptoms(label string, k int) []string {
	type stat struct {
		col  int
		rate float64
	}
	var n int
	counts := make([]int, len(m.columns))
	for ri, row := range m.rows {
		if m.labels[ri] != label {
			continue
		}
		n++
		for ci, v := range row {
			if v == 1 {
				counts[ci]++
			}
		}
	}
	if n == 0 {
		return nil
	}
	stats := make([]stat, 0, len(m.columns))
	for ci, c := range counts {
		if c > 0 {
			stats = append(stats, stat{col: ci, rate: float64(c) / float64(n)})
		}
	}
	// Stable by original column order within equal rates.
	for i := 1; i < len(stats); i++ {
		for j := i; j > 0 && stats[j].rate > stats[j-1].rate; j-- {
			stats[j], stats[j-1] = stats[j-1], stats[j]
		}
	}
	if k > len(stats) {
		k = len(stats)
	}
	out := make([]string, 0, k)
	for _, s := range stats[:k] {
		out = append(out, m.columns[s.col])
	}
	return out
}
