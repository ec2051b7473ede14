package ml

import (
	"math"
	"math/rand"
)

// ForestConfig controls ensemble training.
type ForestConfig struct {
	Trees       int     // number of bagged trees
	MaxFeatures int     // features tried per split; 0 means sqrt(total)
	MinLeaf     float64 // minimum summed sample weight in a leaf
	Seed        int64
}

// Node is one decision node. Feature == -1 marks a leaf carrying a class
// probability distribution; otherwise Left is followed when the feature is 0
// and Right when it is 1.
type Node struct {
	Feature int       `json:"f"`
	Left    int       `json:"l,omitempty"`
	Right   int       `json:"r,omitempty"`
	Probs   []float64 `json:"p,omitempty"`
}

// Tree is a decision tree stored as a flat node array rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a bagged ensemble of decision trees over binary features.
type Forest struct {
	NumClasses  int       `json:"n_classes"`
	NumFeatures int       `json:"n_features"`
	Trees       []Tree    `json:"trees"`
	Importances []float64 `json:"importances,omitempty"`
}

// TrainForest fits a bagged ensemble on binary features with
// balanced-subsample class weighting (each bootstrap reweights classes
// inversely to their in-bag frequency). It returns the forest and its
// out-of-bag accuracy.
func TrainForest(X [][]int, y []int, numClasses int, cfg ForestConfig) (*Forest, float64) {
	n := len(X)
	numFeatures := 0
	if n > 0 {
		numFeatures = len(X[0])
	}
	if cfg.Trees <= 0 {
		cfg.Trees = 200
	}
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = int(math.Sqrt(float64(numFeatures)))
		if cfg.MaxFeatures < 1 {
			cfg.MaxFeatures = 1
		}
	}
	if cfg.MinLeaf <= 0 {
		cfg.MinLeaf = 1e-9
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	f := &Forest{
		NumClasses:  numClasses,
		NumFeatures: numFeatures,
		Importances: make([]float64, numFeatures),
	}
	oobVotes := make([][]float64, n)

	for t := 0; t < cfg.Trees; t++ {
		inBag := make([]int, n) // sample index -> bootstrap multiplicity
		counts := make([]float64, numClasses)
		for i := 0; i < n; i++ {
			j := rng.Intn(n)
			inBag[j]++
		}
		var bagged []int
		for i, c := range inBag {
			if c > 0 {
				bagged = append(bagged, i)
				counts[y[i]] += float64(c)
			}
		}
		// Balanced-subsample weights: total / (classes * in-bag count).
		var total float64
		for _, c := range counts {
			total += c
		}
		classWeight := make([]float64, numClasses)
		for c := range classWeight {
			if counts[c] > 0 {
				classWeight[c] = total / (float64(numClasses) * counts[c])
			}
		}
		weights := make([]float64, 0, len(bagged))
		for _, i := range bagged {
			weights = append(weights, float64(inBag[i])*classWeight[y[i]])
		}

		tree := growTree(X, y, bagged, weights, numClasses, cfg, rng, f.Importances)
		f.Trees = append(f.Trees, tree)

		for i := 0; i < n; i++ {
			if inBag[i] > 0 {
				continue
			}
			p := tree.predict(X[i])
			if oobVotes[i] == nil {
				oobVotes[i] = make([]float64, numClasses)
			}
			for c, v := range p {
				oobVotes[i][c] += v
			}
		}
	}

	normalize(f.Importances)

	var covered, correct int
	for i, votes := range oobVotes {
		if votes == nil {
			continue
		}
		covered++
		if argmax(votes) == y[i] {
			correct++
		}
	}
	oob := 0.0
	if covered > 0 {
		oob = float64(correct) / float64(covered)
	}
	return f, oob
}

func growTree(X [][]int, y, samples []int, weights []float64, numClasses int, cfg ForestConfig, rng *rand.Rand, importances []float64) Tree {
	t := Tree{}
	t.grow(X, y, samples, weights, numClasses, cfg, rng, importances)
	return t
}

// grow builds the subtree for the given weighted samples and returns nothing;
// nodes are appended to t.Nodes with the root at index 0.
func (t *Tree) grow(X [][]int, y, samples []int, weights []float64, numClasses int, cfg ForestConfig, rng *rand.Rand, importances []float64) int {
	dist := make([]float64, numClasses)
	var total float64
	for i, s := range samples {
		dist[y[s]] += weights[i]
		total += weights[i]
	}
	gini := giniImpurity(dist, total)

	leaf := func() int {
		probs := make([]float64, numClasses)
		if total > 0 {
			for c, w := range dist {
				probs[c] = w / total
			}
		}
		t.Nodes = append(t.Nodes, Node{Feature: -1, Probs: probs})
		return len(t.Nodes) - 1
	}
	if gini == 0 || total <= cfg.MinLeaf || len(samples) < 2 {
		return leaf()
	}

	numFeatures := len(X[samples[0]])
	bestFeature, bestGain := -1, 0.0
	for _, fi := range sampleFeatures(numFeatures, cfg.MaxFeatures, rng) {
		rightDist := make([]float64, numClasses)
		var rightTotal float64
		for i, s := range samples {
			if X[s][fi] == 1 {
				rightDist[y[s]] += weights[i]
				rightTotal += weights[i]
			}
		}
		leftTotal := total - rightTotal
		if rightTotal == 0 || leftTotal == 0 {
			continue
		}
		leftDist := make([]float64, numClasses)
		for c := range leftDist {
			leftDist[c] = dist[c] - rightDist[c]
		}
		child := (leftTotal*giniImpurity(leftDist, leftTotal) + rightTotal*giniImpurity(rightDist, rightTotal)) / total
		if gain := gini - child; gain > bestGain {
			bestGain, bestFeature = gain, fi
		}
	}
	if bestFeature < 0 {
		return leaf()
	}
	importances[bestFeature] += total * bestGain

	var leftSamples, rightSamples []int
	var leftWeights, rightWeights []float64
	for i, s := range samples {
		if X[s][bestFeature] == 1 {
			rightSamples = append(rightSamples, s)
			rightWeights = append(rightWeights, weights[i])
		} else {
			leftSamples = append(leftSamples, s)
			leftWeights = append(leftWeights, weights[i])
		}
	}

	self := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Feature: bestFeature})
	left := t.grow(X, y, leftSamples, leftWeights, numClasses, cfg, rng, importances)
	right := t.grow(X, y, rightSamples, rightWeights, numClasses, cfg, rng, importances)
	t.Nodes[self].Left = left
	t.Nodes[self].Right = right
	return self
}

func (t *Tree) predict(x []int) []float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Probs
		}
		if n.Feature < len(x) && x[n.Feature] == 1 {
			i = n.Right
		} else {
			i = n.Left
		}
	}
}

// PredictProba averages the leaf distributions of every tree. An empty or
// degenerate ensemble yields a nil slice; callers synthesize a fallback.
func (f *Forest) PredictProba(x []int) []float64 {
	if len(f.Trees) == 0 {
		return nil
	}
	probs := make([]float64, f.NumClasses)
	for i := range f.Trees {
		for c, v := range f.Trees[i].predict(x) {
			probs[c] += v
		}
	}
	var sum float64
	for _, v := range probs {
		sum += v
	}
	if sum == 0 {
		return nil
	}
	for c := range probs {
		probs[c] /= sum
	}
	return probs
}

func sampleFeatures(n, k int, rng *rand.Rand) []int {
	if k >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	perm := rng.Perm(n)
	return perm[:k]
}

func giniImpurity(dist []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	g := 1.0
	for _, w := range dist {
		p := w / total
		g -= p * p
	}
	return g
}

func normalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum == 0 {
		return
	}
	for i := range v {
		v[i] /= sum
	}
}

func argmax(v []float64) int {
	best, bi := math.Inf(-1), 0
	for i, x := range v {
		if x > best {
			best, bi = x, i
		}
	}
	return bi
}
