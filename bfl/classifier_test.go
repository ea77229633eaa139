package bfl

import (
	"errors"
	"math"
	"testing"

	"gorgonia.org/tensor"
)

func fourRowDataset() *tensor.Dense {
	return tensor.New(tensor.WithShape(4, 2), tensor.WithBacking([]float64{
		0, 1,
		0, 2,
		1, 3,
		1, 4,
	}))
}

func TestDecisionTreeClassifierSeparableData(t *testing.T) {
	clf, err := NewDecisionTreeClassifier(1, Entropy)
	if err != nil {
		t.Fatal(err)
	}
	if err := clf.Fit(fourRowDataset(), 1); err != nil {
		t.Fatal(err)
	}

	if len(clf.Levels) != 1 {
		t.Fatalf("expected 1 level, got %d", len(clf.Levels))
	}
	if clf.Levels[0].Feature[0] != 0 || clf.Levels[0].Threshold[0] != 2 {
		t.Fatalf("split (%d, %v), want (0, 2)", clf.Levels[0].Feature[0], clf.Levels[0].Threshold[0])
	}

	sampleX := tensor.New(tensor.WithShape(4, 1), tensor.WithBacking([]float64{1, 2, 3, 4}))
	probability, err := clf.PredictWithProbability(sampleX)
	if err != nil {
		t.Fatal(err)
	}
	wantProb := []float64{1, 0, 1, 0, 0, 1, 0, 1}
	gotProb := floatData(probability.Probability)
	for i := range wantProb {
		if gotProb[i] != wantProb[i] {
			t.Fatalf("probability[%d] = %v, want %v", i, gotProb[i], wantProb[i])
		}
	}

	labels, err := clf.Predict(sampleX)
	if err != nil {
		t.Fatal(err)
	}
	wantLabels := []float64{0, 0, 1, 1}
	gotLabels := floatData(labels)
	for i := range wantLabels {
		if gotLabels[i] != wantLabels[i] {
			t.Fatalf("label[%d] = %v, want %v", i, gotLabels[i], wantLabels[i])
		}
	}
}

func TestProbabilitySimplex(t *testing.T) {
	clf, err := NewDecisionTreeClassifier(3, Entropy)
	if err != nil {
		t.Fatal(err)
	}
	inSample := tensor.New(tensor.WithShape(6, 3), tensor.WithBacking([]float64{
		0, 5, 1,
		1, 3, 9,
		2, 8, 4,
		0, 1, 7,
		1, 9, 2,
		2, 4, 6,
	}))
	if err := clf.Fit(inSample, 1); err != nil {
		t.Fatal(err)
	}

	sampleX := tensor.New(tensor.WithShape(6, 2), tensor.WithBacking([]float64{
		5, 1,
		3, 9,
		8, 4,
		1, 7,
		9, 2,
		4, 6,
	}))
	probability, err := clf.PredictWithProbability(sampleX)
	if err != nil {
		t.Fatal(err)
	}
	probs := floatData(probability.Probability)
	u := len(probability.UniqueY)
	for r := 0; r < len(probs)/u; r++ {
		sum := 0.0
		for ui := 0; ui < u; ui++ {
			v := probs[r*u+ui]
			if v < 0 {
				t.Fatalf("negative probability %v", v)
			}
			sum += v
		}
		if sum != 0 && math.Abs(sum-1) > 1e-12 {
			t.Fatalf("row %d sums to %v, want 1 or 0", r, sum)
		}
	}

	leaf, err := clf.PrePredict(sampleX)
	if err != nil {
		t.Fatal(err)
	}
	for _, code := range intData(leaf) {
		if code < 0 || code >= clf.LeafCount() {
			t.Fatalf("leaf code %d out of range [0, %d)", code, clf.LeafCount())
		}
	}
}

func TestDecisionTreeClassifierMultiTarget(t *testing.T) {
	clf, err := NewDecisionTreeClassifier(1, Entropy)
	if err != nil {
		t.Fatal(err)
	}
	// Two target columns over one feature: target 0 separates exactly at 2,
	// target 1 exactly at 1, so the fit must record a distinct split per target.
	inSample := tensor.New(tensor.WithShape(4, 3), tensor.WithBacking([]float64{
		0, 0, 1,
		0, 1, 2,
		1, 1, 3,
		1, 1, 4,
	}))
	if err := clf.Fit(inSample, 2); err != nil {
		t.Fatal(err)
	}

	lev := clf.Levels[0]
	if len(lev.Feature) != 2 || len(lev.Threshold) != 2 {
		t.Fatalf("split record carries %d features and %d thresholds, want 2 each", len(lev.Feature), len(lev.Threshold))
	}
	if lev.Feature[0] != 0 || lev.Threshold[0] != 2 {
		t.Fatalf("target 0 split (%d, %v), want (0, 2)", lev.Feature[0], lev.Threshold[0])
	}
	if lev.Feature[1] != 0 || lev.Threshold[1] != 1 {
		t.Fatalf("target 1 split (%d, %v), want (0, 1)", lev.Feature[1], lev.Threshold[1])
	}

	sampleX := tensor.New(tensor.WithShape(4, 1), tensor.WithBacking([]float64{1, 2, 3, 4}))
	leaf, err := clf.PrePredict(sampleX)
	if err != nil {
		t.Fatal(err)
	}
	if !sameInts([]int(leaf.Shape()), []int{4, 2}) {
		t.Fatalf("leaf code shape %v, want [4 2]", leaf.Shape())
	}

	probability, err := clf.PredictWithProbability(sampleX)
	if err != nil {
		t.Fatal(err)
	}
	if !sameInts([]int(probability.Probability.Shape()), []int{4, 2, 2}) {
		t.Fatalf("probability shape %v, want [4 2 2]", probability.Probability.Shape())
	}

	labels, err := clf.Predict(sampleX)
	if err != nil {
		t.Fatal(err)
	}
	if !sameInts([]int(labels.Shape()), []int{4, 2}) {
		t.Fatalf("label shape %v, want [4 2]", labels.Shape())
	}
	wantLabels := []float64{
		0, 0,
		0, 1,
		1, 1,
		1, 1,
	}
	if !sameFloats(floatData(labels), wantLabels) {
		t.Fatalf("per-target labels %v, want %v", floatData(labels), wantLabels)
	}
}

func TestFirstFitWinsUniqueY(t *testing.T) {
	clf, err := NewDecisionTreeClassifier(1, Entropy)
	if err != nil {
		t.Fatal(err)
	}
	first := tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float64{
		0, 1,
		1, 2,
	}))
	if err := clf.Fit(first, 1); err != nil {
		t.Fatal(err)
	}
	wantUnique := []float64{0, 1}
	for i := range wantUnique {
		if clf.UniqueY[i] != wantUnique[i] {
			t.Fatalf("unique_y %v, want %v", clf.UniqueY, wantUnique)
		}
	}

	// Refit with a class the model has never seen. The class table must keep
	// its original label vector; every count drops to zero.
	second := tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float64{
		2, 5,
		2, 6,
	}))
	if err := clf.Fit(second, 1); err != nil {
		t.Fatal(err)
	}
	if len(clf.UniqueY) != 2 || clf.UniqueY[0] != 0 || clf.UniqueY[1] != 1 {
		t.Fatalf("unique_y changed on refit: %v", clf.UniqueY)
	}

	sampleX := tensor.New(tensor.WithShape(2, 1), tensor.WithBacking([]float64{5, 6}))
	probability, err := clf.PredictWithProbability(sampleX)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range floatData(probability.Probability) {
		if v != 0 {
			t.Fatalf("probability[%d] = %v, want all-zero rows for empty leaves", i, v)
		}
	}

	labels, err := clf.Predict(sampleX)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range floatData(labels) {
		if v != 0 {
			t.Fatalf("label[%d] = %v, want the first class for all-zero rows", i, v)
		}
	}
}

func TestUnknownImpurity(t *testing.T) {
	var ce ConfigError
	if _, err := NewDecisionTreeClassifier(1, Impurity("gini")); !errors.As(err, &ce) {
		t.Fatalf("unknown impurity: got %v, want ConfigError", err)
	}
}

func TestBaggingSizeOneMatchesSingleTree(t *testing.T) {
	inSample := fourRowDataset()

	bagging, err := NewBaggingClassifier(1, Entropy, 1, 4, 7)
	if err != nil {
		t.Fatal(err)
	}
	if err := bagging.Fit(inSample, 1); err != nil {
		t.Fatal(err)
	}

	prepared, err := BaggingPreparation(inSample, 1, 4, 7)
	if err != nil {
		t.Fatal(err)
	}
	flat := tensor.New(tensor.WithShape(4, 2), tensor.WithBacking(append([]float64{}, floatData(prepared)...)))
	single, err := NewDecisionTreeClassifier(1, Entropy)
	if err != nil {
		t.Fatal(err)
	}
	if err := single.Fit(flat, 1); err != nil {
		t.Fatal(err)
	}

	sampleX := tensor.New(tensor.WithShape(4, 1), tensor.WithBacking([]float64{1, 2, 3, 4}))
	ensembleProb, err := bagging.PredictWithProbability(sampleX)
	if err != nil {
		t.Fatal(err)
	}
	singleProb, err := single.PredictWithProbability(sampleX)
	if err != nil {
		t.Fatal(err)
	}

	if !sameInts([]int(ensembleProb.Probability.Shape()), []int(singleProb.Probability.Shape())) {
		t.Fatalf("shape %v, want %v", ensembleProb.Probability.Shape(), singleProb.Probability.Shape())
	}
	got := floatData(ensembleProb.Probability)
	want := floatData(singleProb.Probability)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("probability[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRandomForestClassifier(t *testing.T) {
	inSample := tensor.New(tensor.WithShape(6, 3), tensor.WithBacking([]float64{
		0, 5, 1,
		1, 3, 9,
		0, 8, 4,
		1, 1, 7,
		0, 9, 2,
		1, 4, 6,
	}))
	forest, err := NewRandomForestClassifier(2, Entropy, 1, 3, 4, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := forest.Fit(inSample, 1); err != nil {
		t.Fatal(err)
	}
	if forest.NumFeature != 1 {
		t.Fatalf("forest fitted on %d features, want the chosen 1", forest.NumFeature)
	}

	// The split record indexes the subset-relative feature layout, so samples
	// carry exactly NumberOfChosenFeature columns.
	sampleX := tensor.New(tensor.WithShape(4, 1), tensor.WithBacking([]float64{1, 4, 6, 9}))
	probability, err := forest.PredictWithProbability(sampleX)
	if err != nil {
		t.Fatal(err)
	}
	if !sameInts([]int(probability.Probability.Shape()), []int{4, 1, 2}) {
		t.Fatalf("probability shape %v, want [4 1 2]", probability.Probability.Shape())
	}
	probs := floatData(probability.Probability)
	for r := 0; r < 4; r++ {
		sum := probs[r*2] + probs[r*2+1]
		if sum != 0 && math.Abs(sum-1) > 1e-12 {
			t.Fatalf("row %d sums to %v, want 1 or 0", r, sum)
		}
	}

	labels, err := forest.Predict(sampleX)
	if err != nil {
		t.Fatal(err)
	}
	if !sameInts([]int(labels.Shape()), []int{4, 1}) {
		t.Fatalf("label shape %v, want [4 1]", labels.Shape())
	}
}
