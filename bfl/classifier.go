package bfl

import (
	"fmt"
	"sort"

	"gorgonia.org/tensor"
)

//Impurity selects the split criterion of a classifier.
type Impurity string

//Entropy is the information-gain criterion based on class entropy. It is the
//only criterion shipped with the package; the SplitCriterion interface is the
//extension point for others.
const Entropy Impurity = "entropy"

//Probability couples a class-probability tensor with the label vector its last
//axis is indexed by.
type Probability struct {
	//Probability has shape (Batch..., Observation, Target, UniqueY). Rows of
	//leaves that saw no training data are all zero.
	Probability *tensor.Dense
	//UniqueY holds the sorted distinct target values observed at the first fit.
	UniqueY []float64
}

//Labels reduces the class axis to the most probable label per
//(batch, observation, target). Ties and all-zero rows resolve to the first
//class in UniqueY order.
func (p Probability) Labels() *tensor.Dense {
	shape := []int(p.Probability.Shape())
	u := shape[len(shape)-1]
	rest := prodInts(shape[:len(shape)-1])
	probs := floatData(p.Probability)
	labels := make([]float64, rest)
	for r := 0; r < rest; r++ {
		best := 0
		for ui := 1; ui < u; ui++ {
			if probs[r*u+ui] > probs[r*u+best] {
				best = ui
			}
		}
		labels[r] = p.UniqueY[best]
	}
	return tensor.New(tensor.WithShape(append([]int{}, shape[:len(shape)-1]...)...), tensor.WithBacking(labels))
}

//DecisionTreeClassifier binds a class-count table to the leaves of a
//DecisionTree. The distinct class values are frozen at the first fit: classes
//that appear only in later fits are never predictable by this model instance,
//which keeps the UniqueY ordering stable across repeated fits.
type DecisionTreeClassifier struct {
	*DecisionTree
	Impurity Impurity `json:"impurity"`
	//UniqueY is the sorted distinct target values of the first fit.
	UniqueY []float64 `json:"unique_y"`
	//Count is the flat (Batch, Target, UniqueY, Leaf) training-row tally.
	Count      []float64 `json:"count"`
	CountShape []int     `json:"count_shape"`
}

//NewDecisionTreeClassifier constructs a classifier of the given depth with the
//given impurity criterion.
func NewDecisionTreeClassifier(depth int, impurity Impurity) (*DecisionTreeClassifier, error) {
	clf := &DecisionTreeClassifier{Impurity: impurity}
	if err := clf.bind(depth); err != nil {
		return nil, err
	}
	return clf, nil
}

//bind wires the criterion and the fit hooks into a fresh tree of the given
//depth. It is shared by the constructor and by model loading.
func (m *DecisionTreeClassifier) bind(depth int) error {
	var criterion SplitCriterion
	switch m.Impurity {
	case Entropy:
		criterion = entropyCriterion{model: m}
	default:
		return configErrorf("unknown impurity %q", m.Impurity)
	}
	params := TreeParams{
		Depth:     depth,
		Criterion: criterion,
		BeforeFit: m.cacheUniqueY,
		AfterFit:  m.countLeaves,
	}
	if m.DecisionTree != nil {
		params.BranchArity = m.DecisionTree.BranchArity
	}
	dt, err := NewDecisionTree(params)
	if err != nil {
		return err
	}
	if m.DecisionTree != nil {
		dt.Levels = m.DecisionTree.Levels
		dt.BatchShape = m.DecisionTree.BatchShape
		dt.NumTarget = m.DecisionTree.NumTarget
		dt.NumFeature = m.DecisionTree.NumFeature
		dt.fitted = m.DecisionTree.NumTarget > 0
	}
	m.DecisionTree = dt
	return nil
}

func (m *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("decision tree classifier: depth=%d, impurity=%s", m.Depth, m.Impurity)
}

//cacheUniqueY records the sorted distinct target values. It runs before any
//split of the first fit is chosen and is a no-op on every later fit.
func (m *DecisionTreeClassifier) cacheUniqueY(targets *tensor.Dense) error {
	if m.UniqueY != nil {
		return nil
	}
	seen := make(map[float64]struct{})
	for _, v := range floatData(targets) {
		seen[v] = struct{}{}
	}
	m.UniqueY = make([]float64, 0, len(seen))
	for v := range seen {
		m.UniqueY = append(m.UniqueY, v)
	}
	sort.Float64s(m.UniqueY)
	return nil
}

//countLeaves tallies, for every (batch, target, class, leaf) cell, the
//training rows that reached the leaf while carrying the class.
func (m *DecisionTreeClassifier) countLeaves(targets, leafCode *tensor.Dense, leafCount int) error {
	shape := []int(targets.Shape())
	n := shape[len(shape)-2]
	t := shape[len(shape)-1]
	b := prodInts(shape[:len(shape)-2])
	u := len(m.UniqueY)
	classIndex := make(map[float64]int, u)
	for i, v := range m.UniqueY {
		classIndex[v] = i
	}

	y := floatData(targets)
	leaf := intData(leafCode)
	m.Count = make([]float64, b*t*u*leafCount)
	m.CountShape = []int{b, t, u, leafCount}
	for bi := 0; bi < b; bi++ {
		for ni := 0; ni < n; ni++ {
			for ti := 0; ti < t; ti++ {
				ui, ok := classIndex[y[(bi*n+ni)*t+ti]]
				if !ok {
					continue
				}
				l := leaf[(bi*n+ni)*t+ti]
				m.Count[((bi*t+ti)*u+ui)*leafCount+l]++
			}
		}
	}
	return nil
}

//PredictWithProbability routes every sample row to its leaf, gathers the leaf
//row of the count table and normalizes it across the class axis. Leaves with
//no training rows yield an all-zero row rather than failing.
func (m *DecisionTreeClassifier) PredictWithProbability(sampleX *tensor.Dense) (Probability, error) {
	leafTensor, err := m.PrePredict(sampleX)
	if err != nil {
		return Probability{}, err
	}
	leafShape := []int(leafTensor.Shape())
	t := leafShape[len(leafShape)-1]
	obs := leafShape[len(leafShape)-2]
	b := prodInts(leafShape[:len(leafShape)-2])
	u := len(m.UniqueY)
	leafCount := m.LeafCount()
	leaf := intData(leafTensor)

	probs := make([]float64, b*obs*t*u)
	for bi := 0; bi < b; bi++ {
		for mi := 0; mi < obs; mi++ {
			for ti := 0; ti < t; ti++ {
				l := leaf[(bi*obs+mi)*t+ti]
				base := ((bi*t + ti) * u) * leafCount
				total := 0.0
				for ui := 0; ui < u; ui++ {
					total += m.Count[base+ui*leafCount+l]
				}
				for ui := 0; ui < u; ui++ {
					p := 0.0
					if total > 0 {
						p = m.Count[base+ui*leafCount+l] / total
					}
					probs[((bi*obs+mi)*t+ti)*u+ui] = sanitize(p)
				}
			}
		}
	}
	outShape := append(append([]int{}, leafShape...), u)
	return Probability{
		Probability: tensor.New(tensor.WithShape(outShape...), tensor.WithBacking(probs)),
		UniqueY:     append([]float64{}, m.UniqueY...),
	}, nil
}

//Predict returns the most probable class label per (batch, observation, target).
func (m *DecisionTreeClassifier) Predict(sampleX *tensor.Dense) (*tensor.Dense, error) {
	probability, err := m.PredictWithProbability(sampleX)
	if err != nil {
		return nil, err
	}
	return probability.Labels(), nil
}

//BaggingClassifier fits NumberOfSubset trees on bootstrap row resamples of the
//dataset in one batched fit and averages their probability estimates.
type BaggingClassifier struct {
	*DecisionTreeClassifier
	NumberOfSubset int   `json:"number_of_subset"`
	SubsetSize     int   `json:"subset_size"`
	Seed           int64 `json:"seed"`
}

//NewBaggingClassifier constructs a bagging ensemble. Seed 0 is a valid,
//deterministic seed.
func NewBaggingClassifier(depth int, impurity Impurity, numberOfSubset, subsetSize int, seed int64) (*BaggingClassifier, error) {
	if numberOfSubset < 1 {
		return nil, configErrorf("number of subsets must be positive, got %d", numberOfSubset)
	}
	if subsetSize < 1 {
		return nil, configErrorf("subset size must be positive, got %d", subsetSize)
	}
	base, err := NewDecisionTreeClassifier(depth, impurity)
	if err != nil {
		return nil, err
	}
	return &BaggingClassifier{
		DecisionTreeClassifier: base,
		NumberOfSubset:         numberOfSubset,
		SubsetSize:             subsetSize,
		Seed:                   seed,
	}, nil
}

func (m *BaggingClassifier) String() string {
	return fmt.Sprintf("bagging classifier: depth=%d, impurity=%s, number_of_subset=%d, subset_size=%d, seed=%d",
		m.Depth, m.Impurity, m.NumberOfSubset, m.SubsetSize, m.Seed)
}

//Fit resamples the dataset and fits one tree per subset in a single batched
//call; the subsets become the leading batch axis of the base classifier.
func (m *BaggingClassifier) Fit(inSample *tensor.Dense, numberOfTarget int) error {
	prepared, err := BaggingPreparation(inSample, m.NumberOfSubset, m.SubsetSize, m.Seed)
	if err != nil {
		return err
	}
	return m.DecisionTreeClassifier.Fit(prepared, numberOfTarget)
}

//PredictWithProbability averages the per-subset probability estimates across
//the ensemble axis, skipping NaN members, and returns a single de-batched
//probability per (observation, target, class).
func (m *BaggingClassifier) PredictWithProbability(sampleX *tensor.Dense) (Probability, error) {
	probability, err := m.DecisionTreeClassifier.PredictWithProbability(sampleX)
	if err != nil {
		return Probability{}, err
	}
	return averageEnsemble(probability, m.NumberOfSubset)
}

//Predict returns the most probable class label per (observation, target) after
//ensemble averaging.
func (m *BaggingClassifier) Predict(sampleX *tensor.Dense) (*tensor.Dense, error) {
	probability, err := m.PredictWithProbability(sampleX)
	if err != nil {
		return nil, err
	}
	return probability.Labels(), nil
}

//RandomForestClassifier is bagging plus a per-subset random feature subset.
//The fitted split record indexes the subset-relative feature layout, so
//prediction samples must carry exactly NumberOfChosenFeature feature columns
//laid out the way the preparation emitted them.
type RandomForestClassifier struct {
	*DecisionTreeClassifier
	NumberOfChosenFeature int   `json:"number_of_chosen_feature"`
	NumberOfSubset        int   `json:"number_of_subset"`
	SubsetSize            int   `json:"subset_size"`
	Seed                  int64 `json:"seed"`
}

//NewRandomForestClassifier constructs a random forest ensemble.
func NewRandomForestClassifier(depth int, impurity Impurity, numberOfChosenFeature, numberOfSubset, subsetSize int, seed int64) (*RandomForestClassifier, error) {
	if numberOfChosenFeature < 1 {
		return nil, configErrorf("number of chosen features must be positive, got %d", numberOfChosenFeature)
	}
	if numberOfSubset < 1 {
		return nil, configErrorf("number of subsets must be positive, got %d", numberOfSubset)
	}
	if subsetSize < 1 {
		return nil, configErrorf("subset size must be positive, got %d", subsetSize)
	}
	base, err := NewDecisionTreeClassifier(depth, impurity)
	if err != nil {
		return nil, err
	}
	return &RandomForestClassifier{
		DecisionTreeClassifier: base,
		NumberOfChosenFeature:  numberOfChosenFeature,
		NumberOfSubset:         numberOfSubset,
		SubsetSize:             subsetSize,
		Seed:                   seed,
	}, nil
}

func (m *RandomForestClassifier) String() string {
	return fmt.Sprintf("random forest classifier: depth=%d, impurity=%s, number_of_chosen_feature=%d, number_of_subset=%d, subset_size=%d, seed=%d",
		m.Depth, m.Impurity, m.NumberOfChosenFeature, m.NumberOfSubset, m.SubsetSize, m.Seed)
}

//Fit bootstraps rows and feature columns and fits the whole forest in one
//batched call.
func (m *RandomForestClassifier) Fit(inSample *tensor.Dense, numberOfTarget int) error {
	prepared, err := RandomForestPreparation(inSample, numberOfTarget, m.NumberOfChosenFeature, m.NumberOfSubset, m.SubsetSize, m.Seed)
	if err != nil {
		return err
	}
	return m.DecisionTreeClassifier.Fit(prepared, numberOfTarget)
}

//PredictWithProbability averages the per-subset probability estimates across
//the ensemble axis, skipping NaN members.
func (m *RandomForestClassifier) PredictWithProbability(sampleX *tensor.Dense) (Probability, error) {
	probability, err := m.DecisionTreeClassifier.PredictWithProbability(sampleX)
	if err != nil {
		return Probability{}, err
	}
	return averageEnsemble(probability, m.NumberOfSubset)
}

//Predict returns the most probable class label per (observation, target) after
//ensemble averaging.
func (m *RandomForestClassifier) Predict(sampleX *tensor.Dense) (*tensor.Dense, error) {
	probability, err := m.PredictWithProbability(sampleX)
	if err != nil {
		return nil, err
	}
	return probability.Labels(), nil
}

//averageEnsemble collapses the leading ensemble axis of a probability tensor
//with a NaN-skipping mean.
func averageEnsemble(probability Probability, lead int) (Probability, error) {
	shape := []int(probability.Probability.Shape())
	if len(shape) < 2 || shape[0] != lead {
		return Probability{}, shapeErrorf("probability shape %v does not carry the ensemble axis of size %d", shape, lead)
	}
	rest := prodInts(shape[1:])
	averaged := nanmean(floatData(probability.Probability), lead, rest)
	return Probability{
		Probability: tensor.New(tensor.WithShape(append([]int{}, shape[1:]...)...), tensor.WithBacking(averaged)),
		UniqueY:     probability.UniqueY,
	}, nil
}
