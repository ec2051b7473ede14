package ml

import "math"

// ClassReport carries per-class evaluation numbers.
type ClassReport struct {
	Class     string  `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Accuracy is the fraction of exact label matches.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var correct int
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// ConfusionMatrix returns counts[true][pred].
func ConfusionMatrix(yTrue, yPred []int, numClasses int) [][]int {
	cm := make([][]int, numClasses)
	for i := range cm {
		cm[i] = make([]int, numClasses)
	}
	for i := range yTrue {
		cm[yTrue[i]][yPred[i]]++
	}
	return cm
}

// ClassificationReport computes precision/recall/F1 per class.
func ClassificationReport(yTrue, yPred []int, classes []string) []ClassReport {
	cm := ConfusionMatrix(yTrue, yPred, len(classes))
	out := make([]ClassReport, len(classes))
	for c := range classes {
		tp := cm[c][c]
		var fp, fn int
		for o := range classes {
			if o == c {
				continue
			}
			fp += cm[o][c]
			fn += cm[c][o]
		}
		r := ClassReport{Class: classes[c], Support: tp + fn}
		if tp+fp > 0 {
			r.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			r.Recall = float64(tp) / float64(tp+fn)
		}
		if r.Precision+r.Recall > 0 {
			r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
		}
		out[c] = r
	}
	return out
}

// MacroF1 averages the per-class F1 scores without support weighting.
func MacroF1(yTrue, yPred []int, numClasses int) float64 {
	classes := make([]string, numClasses)
	report := ClassificationReport(yTrue, yPred, classes)
	if len(report) == 0 {
		return 0
	}
	var sum float64
	for _, r := range report {
		sum += r.F1
	}
	return sum / float64(len(report))
}

// LogLoss is the mean negative log-likelihood of the true class under the
// predicted distributions, with probabilities clipped away from 0 and 1.
func LogLoss(yTrue []int, proba [][]float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	const clip = 1e-15
	var sum float64
	for i, c := range yTrue {
		p := proba[i][c]
		if p < clip {
			p = clip
		}
		if p > 1-clip {
			p = 1 - clip
		}
		sum -= math.Log(p)
	}
	return sum / float64(len(yTrue))
}
