// Command train runs the offline training pipeline: it balances the labeled
// symptom dataset, fits a calibrated tree ensemble, and writes the model
// artifact plus evaluation files for audit.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Masudi2022/Shifaa-fyp/internal/ml"
)

func main() {
	_ = godotenv.Load()

	var (
		dataPath   = flag.String("data", envOr("DATASET_PATH", "ml_data/magonjwa_dataset.csv"), "labeled binary dataset CSV")
		outDir     = flag.String("out", "ml_data", "output directory for the artifact and metrics")
		trees      = flag.Int("trees", 600, "number of trees in the ensemble")
		minSamples = flag.Int("min-samples", 40, "upsample classes below this row count")
		maxSamples = flag.Int("max-samples", 400, "cap classes above this row count")
		testFrac   = flag.Float64("test-frac", 0.2, "stratified test split fraction")
		folds      = flag.Int("folds", 3, "cross-validation folds for probability calibration")
		seed       = flag.Int64("seed", 42, "random seed")
	)
	flag.Parse()

	start := time.Now()
	rng := rand.New(rand.NewSource(*seed))

	raw, err := ml.LoadCSV(*dataPath)
	if err != nil {
		log.Fatalf("Dataset error: %v", err)
	}
	log.Printf("Loaded %d rows, %d features, %d classes", len(raw.Rows), len(raw.Columns), len(raw.Classes()))

	balanced := raw.Balance(*minSamples, *maxSamples, rng)
	log.Printf("Balanced to %d rows (min %d / cap %d per class)", len(balanced.Rows), *minSamples, *maxSamples)

	classes, _ := balanced.EncodeLabels()
	classIndex := ml.ClassIndex(classes)
	trainIdx, testIdx := balanced.StratifiedSplit(*testFrac, rng)
	trainX, trainY := balanced.Subset(trainIdx, classIndex)
	testX, testY := balanced.Subset(testIdx, classIndex)

	cfg := ml.ForestConfig{Trees: *trees, Seed: *seed}
	forest, oob := ml.TrainForest(trainX, trainY, len(classes), cfg)
	log.Printf("Trained %d trees, OOB accuracy %.3f", len(forest.Trees), oob)

	calibration := ml.Calibrate(trainX, trainY, len(classes), *folds, cfg)

	artifact := &ml.Artifact{
		SymptomColumns: balanced.Columns,
		Classes:        classes,
		Forest:         forest,
		Calibration:    calibration,
		Metadata: ml.Metadata{
			TrainedAt:   time.Now(),
			DatasetPath: *dataPath,
			NumRows:     len(balanced.Rows),
			Seed:        *seed,
		},
	}

	// Evaluate the calibrated model on the held-out split.
	yPred := make([]int, len(testX))
	proba := make([][]float64, len(testX))
	for i, x := range testX {
		preds := artifact.Predict(x, len(classes))
		p := make([]float64, len(classes))
		for _, pr := range preds {
			p[classIndex[pr.Disease]] = pr.Probability
		}
		proba[i] = p
		yPred[i] = classIndex[preds[0].Disease]
	}
	acc := ml.Accuracy(testY, yPred)
	macroF1 := ml.MacroF1(testY, yPred, len(classes))
	logLoss := ml.LogLoss(testY, proba)
	log.Printf("Accuracy: %.2f%% | Macro-F1: %.3f | Log loss: %.3f | Train+calibrate: %.1fs",
		acc*100, macroF1, logLoss, time.Since(start).Seconds())

	artifact.Metadata.Metrics = map[string]float64{
		"accuracy":     acc,
		"macro_f1":     macroF1,
		"log_loss":     logLoss,
		"oob_accuracy": oob,
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Output directory: %v", err)
	}
	artifactPath := filepath.Join(*outDir, "magonjwa_model.json")
	if err := artifact.Save(artifactPath); err != nil {
		log.Fatalf("Save artifact: %v", err)
	}
	log.Printf("Model saved: %s", artifactPath)

	writeMetadata(filepath.Join(*outDir, "training_metadata.json"), artifact, *dataPath)
	writeConfusion(filepath.Join(*outDir, "confusion_matrix.csv"), testY, yPred, classes)
	writeReport(filepath.Join(*outDir, "classification_report.csv"), testY, yPred, classes)
	writeImportances(filepath.Join(*outDir, "feature_importances.csv"), balanced.Columns, forest.Importances)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func writeMetadata(path string, a *ml.Artifact, dataPath string) {
	meta := map[string]any{
		"data_path":  dataPath,
		"timestamp":  a.Metadata.TrainedAt.Format("2006-01-02 15:04:05"),
		"metrics":    a.Metadata.Metrics,
		"n_classes":  len(a.Classes),
		"classes":    a.Classes,
		"n_features": len(a.SymptomColumns),
		"features":   a.SymptomColumns,
		"seed":       a.Metadata.Seed,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		log.Printf("Metadata encode failed: %v", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("Metadata write failed: %v", err)
		return
	}
	log.Printf("Metadata saved: %s", path)
}

func writeConfusion(path string, yTrue, yPred []int, classes []string) {
	cm := ml.ConfusionMatrix(yTrue, yPred, len(classes))
	f, err := os.Create(path)
	if err != nil {
		log.Printf("Confusion matrix write failed: %v", err)
		return
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write(append([]string{""}, classes...))
	for i, row := range cm {
		rec := []string{classes[i]}
		for _, v := range row {
			rec = append(rec, strconv.Itoa(v))
		}
		w.Write(rec)
	}
	log.Printf("Confusion matrix saved: %s", path)
}

func writeReport(path string, yTrue, yPred []int, classes []string) {
	report := ml.ClassificationReport(yTrue, yPred, classes)
	f, err := os.Create(path)
	if err != nil {
		log.Printf("Classification report write failed: %v", err)
		return
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"class", "precision", "recall", "f1", "support"})
	for _, r := range report {
		w.Write([]string{
			r.Class,
			fmt.Sprintf("%.4f", r.Precision),
			fmt.Sprintf("%.4f", r.Recall),
			fmt.Sprintf("%.4f", r.F1),
			strconv.Itoa(r.Support),
		})
	}
	log.Printf("Classification report saved: %s", path)
}

func writeImportances(path string, columns []string, importances []float64) {
	f, err := os.Create(path)
	if err != nil {
		log.Printf("Feature importances write failed: %v", err)
		return
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"feature", "importance"})
	for i, c := range columns {
		w.Write([]string{c, fmt.Sprintf("%.6f", importances[i])})
	}
	log.Printf("Feature importances saved: %s", path)
}
