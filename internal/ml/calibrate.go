package ml

import (
	"math"
	"math/rand"
)

// Sigmoid holds Platt-scaling parameters for one class:
// calibrated = 1 / (1 + exp(A*score + B)).
type Sigmoid struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// Apply maps a raw score through the fitted sigmoid.
func (s Sigmoid) Apply(score float64) float64 {
	v := s.A*score + s.B
	if v >= 0 {
		return math.Exp(-v) / (1 + math.Exp(-v))
	}
	return 1 / (1 + math.Exp(v))
}

// Calibrate fits one sigmoid per class on cross-validated predictions: the
// training set is split into folds, a forest is trained on the remainder of
// each fold, and the held-out (raw score, is-class) pairs feed Platt's
// method. The returned slice has one entry per class.
func Calibrate(X [][]int, y []int, numClasses, folds int, cfg ForestConfig) []Sigmoid {
	if folds < 2 {
		folds = 2
	}
	n := len(X)
	rng := rand.New(rand.NewSource(cfg.Seed + 1))
	perm := rng.Perm(n)

	scores := make([][]float64, numClasses) // raw score per held-out sample
	targets := make([][]bool, numClasses)

	for f := 0; f < folds; f++ {
		var trainX [][]int
		var trainY []int
		var heldOut []int
		for i, ri := range perm {
			if i%folds == f {
				heldOut = append(heldOut, ri)
			} else {
				trainX = append(trainX, X[ri])
				trainY = append(trainY, y[ri])
			}
		}
		if len(trainX) == 0 || len(heldOut) == 0 {
			continue
		}
		foldCfg := cfg
		foldCfg.Seed = cfg.Seed + int64(f) + 2
		forest, _ := TrainForest(trainX, trainY, numClasses, foldCfg)
		for _, ri := range heldOut {
			probs := forest.PredictProba(X[ri])
			if probs == nil {
				continue
			}
			for c := 0; c < numClasses; c++ {
				scores[c] = append(scores[c], probs[c])
				targets[c] = append(targets[c], y[ri] == c)
			}
		}
	}

	out := make([]Sigmoid, numClasses)
	for c := 0; c < numClasses; c++ {
		out[c] = plattFit(scores[c], targets[c])
	}
	return out
}

// plattFit implements Platt's Newton iteration for sigmoid fitting with the
// standard prior-corrected targets.
func plattFit(scores []float64, positive []bool) Sigmoid {
	var np, nn float64
	for _, p := range positive {
		if p {
			np++
		} else {
			nn++
		}
	}
	// Degenerate folds keep the identity-like default (raw score passthrough
	// around 0.5).
	if np == 0 || nn == 0 || len(scores) == 0 {
		return Sigmoid{A: -4, B: 2} // approx identity on [0,1]
	}

	hiTarget := (np + 1) / (np + 2)
	loTarget := 1 / (nn + 2)
	t := make([]float64, len(scores))
	for i, p := range positive {
		if p {
			t[i] = hiTarget
		} else {
			t[i] = loTarget
		}
	}

	a, b := 0.0, math.Log((nn+1)/(np+1))
	const maxIter = 100
	const minStep = 1e-10
	const sigma = 1e-12
	fval := 0.0
	for i, s := range scores {
		fApB := s*a + b
		if fApB >= 0 {
			fval += t[i]*fApB + math.Log1p(math.Exp(-fApB))
		} else {
			fval += (t[i]-1)*fApB + math.Log1p(math.Exp(fApB))
		}
	}

	for iter := 0; iter < maxIter; iter++ {
		h11, h22, h21, g1, g2 := sigma, sigma, 0.0, 0.0, 0.0
		for i, s := range scores {
			fApB := s*a + b
			var p, q float64
			if fApB >= 0 {
				p = math.Exp(-fApB) / (1 + math.Exp(-fApB))
				q = 1 / (1 + math.Exp(-fApB))
			} else {
				p = 1 / (1 + math.Exp(fApB))
				q = math.Exp(fApB) / (1 + math.Exp(fApB))
			}
			d2 := p * q
			h11 += s * s * d2
			h22 += d2
			h21 += s * d2
			d1 := t[i] - p
			g1 += s * d1
			g2 += d1
		}
		if math.Abs(g1) < 1e-5 && math.Abs(g2) < 1e-5 {
			break
		}
		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		step := 1.0
		for step >= minStep {
			newA, newB := a+step*dA, b+step*dB
			newF := 0.0
			for i, s := range scores {
				fApB := s*newA + newB
				if fApB >= 0 {
					newF += t[i]*fApB + math.Log1p(math.Exp(-fApB))
				} else {
					newF += (t[i]-1)*fApB + math.Log1p(math.Exp(fApB))
				}
			}
			if newF < fval+1e-4*step*gd {
				a, b, fval = newA, newB, newF
				break
			}
			step /= 2
		}
		if step < minStep {
			break
		}
	}
	return Sigmoid{A: a, B: b}
}
