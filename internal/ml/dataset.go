package ml

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Target column of the training CSV, either casing.
const (
	targetColumn      = "ugonjwa"
	targetColumnUpper = "Ugonjwa"
)

// nonFeatureColumns are free-text advice columns that appear in some dataset
// revisions and must never be treated as symptoms.
var nonFeatureColumns = map[string]struct{}{
	"Vipimo": {}, "Tiba": {}, "Kinga": {}, "Ushauri": {},
}

// Dataset is a labeled binary feature matrix.
type Dataset struct {
	Columns []string // ordered feature columns
	Labels  []string // per-row disease label
	Rows    [][]int  // binary feature values, Rows[i][j] in {0,1}
}

// LoadCSV reads a labeled dataset. Every non-label column is coerced to a
// binary feature; unrecognized values default to 0.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("dataset %s has no data rows", path)
	}

	header := records[0]
	targetIdx := -1
	for i, c := range header {
		if c == targetColumn || c == targetColumnUpper {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return nil, fmt.Errorf("dataset %s is missing the %q column", path, targetColumn)
	}

	var featureIdx []int
	var columns []string
	for i, c := range header {
		if i == targetIdx {
			continue
		}
		if _, skip := nonFeatureColumns[c]; skip {
			continue
		}
		featureIdx = append(featureIdx, i)
		columns = append(columns, c)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("dataset %s has no feature columns", path)
	}

	ds := &Dataset{Columns: columns}
	for ri, rec := range records[1:] {
		if targetIdx >= len(rec) {
			return nil, fmt.Errorf("dataset %s: row %d is short", path, ri+1)
		}
		label := strings.TrimSpace(rec[targetIdx])
		if label == "" {
			continue
		}
		row := make([]int, len(featureIdx))
		for j, fi := range featureIdx {
			if fi < len(rec) {
				row[j] = CoerceBinary(rec[fi])
			}
		}
		ds.Labels = append(ds.Labels, label)
		ds.Rows = append(ds.Rows, row)
	}
	if len(ds.Rows) == 0 {
		return nil, fmt.Errorf("dataset %s has no labeled rows", path)
	}
	return ds, nil
}

// CoerceBinary maps a raw cell value to {0,1}. Numeric 0/1, booleans, and
// the yes/no token sets (English and Swahili) are recognized; anything else
// is 0.
func CoerceBinary(raw string) int {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "ndio", "ndiyo", "sawa":
		return 1
	case "0", "false", "no", "hapana", "la", "":
		return 0
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && n >= 1 {
		return 1
	}
	return 0
}

// Classes returns the sorted distinct labels.
func (d *Dataset) Classes() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range d.Labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}

// Balance duplicates rows of any class below minSamples until it reaches it,
// and uniformly subsamples any class above maxSamples down to the cap. The
// result is shuffled with rng.
func (d *Dataset) Balance(minSamples, maxSamples int, rng *rand.Rand) *Dataset {
	byClass := make(map[string][]int)
	for i, l := range d.Labels {
		byClass[l] = append(byClass[l], i)
	}

	out := &Dataset{Columns: d.Columns}
	for _, class := range d.Classes() {
		idx := byClass[class]
		rows := append([]int(nil), idx...)
		for len(rows) < minSamples {
			rows = append(rows, idx[len(rows)%len(idx)])
		}
		if len(rows) > maxSamples {
			rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
			rows = rows[:maxSamples]
		}
		for _, ri := range rows {
			out.Labels = append(out.Labels, d.Labels[ri])
			out.Rows = append(out.Rows, d.Rows[ri])
		}
	}
	rng.Shuffle(len(out.Rows), func(i, j int) {
		out.Rows[i], out.Rows[j] = out.Rows[j], out.Rows[i]
		out.Labels[i], out.Labels[j] = out.Labels[j], out.Labels[i]
	})
	return out
}

// EncodeLabels returns the sorted class list and the per-row class indices.
func (d *Dataset) EncodeLabels() (classes []string, y []int) {
	classes = d.Classes()
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	y = make([]int, len(d.Labels))
	for i, l := range d.Labels {
		y[i] = index[l]
	}
	return classes, y
}

// StratifiedSplit partitions row indices into train and test sets, keeping
// each class's test share close to testFrac. Every class with at least two
// rows contributes at least one test row.
func (d *Dataset) StratifiedSplit(testFrac float64, rng *rand.Rand) (train, test []int) {
	byClass := make(map[string][]int)
	for i, l := range d.Labels {
		byClass[l] = append(byClass[l], i)
	}
	for _, class := range d.Classes() {
		idx := append([]int(nil), byClass[class]...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		n := int(float64(len(idx)) * testFrac)
		if n == 0 && len(idx) > 1 {
			n = 1
		}
		test = append(test, idx[:n]...)
		train = append(train, idx[n:]...)
	}
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	return train, test
}

// Subset returns the feature rows and encoded labels for the given indices.
func (d *Dataset) Subset(indices []int, classIndex map[string]int) (X [][]int, y []int) {
	X = make([][]int, len(indices))
	y = make([]int, len(indices))
	for i, ri := range indices {
		X[i] = d.Rows[ri]
		y[i] = classIndex[d.Labels[ri]]
	}
	return X, y
}

// ClassIndex maps each class label to its encoded index.
func ClassIndex(classes []string) map[string]int {
	m := make(map[string]int, len(classes))
	for i, c := range classes {
		m[c] = i
	}
	return m
}
