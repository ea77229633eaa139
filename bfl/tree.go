package bfl

import (
	"log"
	"math"
	"sort"

	"gorgonia.org/tensor"
)

//SplitCriterion scores every candidate split of a level in one call. targets has
//shape (Batch, Observation, Target), branches has shape
//(Batch, Observation, Candidate, Feature) with entries in [0, branchArity), and
//the returned score tensor has shape (Batch, Target, Candidate, Feature).
//Higher scores are better. Degenerate candidates may score NaN; they are never
//selected while an informative candidate exists.
type SplitCriterion interface {
	Score(targets, branches *tensor.Dense, branchArity int) (*tensor.Dense, error)
}

//SplitLevel records the winning split of one tree level: the feature index and
//the threshold chosen for every (batch, target) pair, stored flat in row-major
//(batch, target) order. Immutable once fitted.
type SplitLevel struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
}

//TreeParams collects the arguments required to construct a decision tree.
//BranchArity defaults to 2. BeforeFit and AfterFit are optional extension
//points invoked exactly once per Fit: BeforeFit receives the target block
//before any split is chosen, AfterFit receives the target block, the final
//leaf codes and the leaf count.
type TreeParams struct {
	Depth       int
	BranchArity int
	Criterion   SplitCriterion
	BeforeFit   func(targets *tensor.Dense) error
	AfterFit    func(targets, leafCode *tensor.Dense, leafCount int) error
}

//DecisionTree grows a depth-bounded tree over every (batch, target) pair of a
//dataset at once. There is no per-node recursion: each level is a single
//whole-array pass that scores all candidate splits for all batch members and
//targets simultaneously, picks one split per (batch, target), and folds the
//branch choice of every observation into its running leaf code.
type DecisionTree struct {
	Depth       int          `json:"depth"`
	BranchArity int          `json:"branch_arity"`
	Levels      []SplitLevel `json:"levels"`
	BatchShape  []int        `json:"batch_shape"`
	NumTarget   int          `json:"number_of_target"`
	NumFeature  int          `json:"number_of_feature"`

	criterion SplitCriterion
	beforeFit func(*tensor.Dense) error
	afterFit  func(*tensor.Dense, *tensor.Dense, int) error
	fitted    bool
}

//NewDecisionTree validates the parameters and constructs an unfitted tree.
func NewDecisionTree(params TreeParams) (*DecisionTree, error) {
	if params.Depth < 0 {
		return nil, configErrorf("depth must be non-negative, got %d", params.Depth)
	}
	arity := params.BranchArity
	if arity == 0 {
		arity = 2
	}
	if arity < 2 {
		return nil, configErrorf("branch arity must be at least 2, got %d", arity)
	}
	if params.Criterion == nil {
		return nil, configErrorf("a split criterion is required")
	}
	return &DecisionTree{
		Depth:       params.Depth,
		BranchArity: arity,
		criterion:   params.Criterion,
		beforeFit:   params.BeforeFit,
		afterFit:    params.AfterFit,
	}, nil
}

//LeafCount returns the number of leaves of a tree of the configured depth.
func (dt *DecisionTree) LeafCount() int {
	return intPow(dt.BranchArity, dt.Depth)
}

//Fit grows the tree on inSample, an array of shape (Batch..., Observation,
//Column) whose first numberOfTarget columns are the dependent variables. Every
//level evaluates all Observation-1 sorted raw values of every feature as
//thresholds for every batch member and target in one batched pass; the
//candidate set is deliberately not filtered by the running partition, so the
//candidate scores are computed once and replayed for each level.
func (dt *DecisionTree) Fit(inSample *tensor.Dense, numberOfTarget int) error {
	shape := []int(inSample.Shape())
	if len(shape) < 2 {
		return shapeErrorf("dataset must have at least rank 2, got shape %v", shape)
	}
	n := shape[len(shape)-2]
	c := shape[len(shape)-1]
	if n < 2 {
		return shapeErrorf("dataset must contain at least 2 observations, got %d", n)
	}
	if numberOfTarget < 1 || numberOfTarget >= c {
		return shapeErrorf("number of targets must be in [1, %d), got %d", c, numberOfTarget)
	}
	batch := append([]int{}, shape[:len(shape)-2]...)
	b := prodInts(batch)
	t := numberOfTarget
	f := c - t
	arity := dt.BranchArity

	data := floatData(inSample)
	y := make([]float64, b*n*t)
	x := make([]float64, b*n*f)
	for bi := 0; bi < b; bi++ {
		for ni := 0; ni < n; ni++ {
			row := data[(bi*n+ni)*c : (bi*n+ni+1)*c]
			copy(y[(bi*n+ni)*t:(bi*n+ni+1)*t], row[:t])
			copy(x[(bi*n+ni)*f:(bi*n+ni+1)*f], row[t:])
		}
	}
	yShaped := tensor.New(tensor.WithShape(append(append([]int{}, batch...), n, t)...), tensor.WithBacking(y))

	if dt.beforeFit != nil {
		if err := dt.beforeFit(yShaped); err != nil {
			return err
		}
	}

	// Sorted feature columns; the first n-1 entries of each are the thresholds.
	sorted := make([]float64, b*f*n)
	col := make([]float64, n)
	for bi := 0; bi < b; bi++ {
		for fi := 0; fi < f; fi++ {
			for ni := 0; ni < n; ni++ {
				col[ni] = x[(bi*n+ni)*f+fi]
			}
			sort.Float64s(col)
			copy(sorted[(bi*f+fi)*n:(bi*f+fi+1)*n], col)
		}
	}

	// Branch assignment for every (batch, observation, candidate, feature) at
	// once: branch 1 when the value is at or below the threshold, branch 0 above.
	cand := n - 1
	br := make([]int, b*n*cand*f)
	for bi := 0; bi < b; bi++ {
		for ni := 0; ni < n; ni++ {
			for ci := 0; ci < cand; ci++ {
				for fi := 0; fi < f; fi++ {
					if x[(bi*n+ni)*f+fi] <= sorted[(bi*f+fi)*n+ci] {
						br[((bi*n+ni)*cand+ci)*f+fi] = 1
					}
				}
			}
		}
	}
	branches := tensor.New(tensor.WithShape(b, n, cand, f), tensor.WithBacking(br))
	targets := tensor.New(tensor.WithShape(b, n, t), tensor.WithBacking(y))

	scoreTensor, err := dt.Criterion().Score(targets, branches, arity)
	if err != nil {
		return err
	}
	wantScore := []int{b, t, cand, f}
	if !sameInts([]int(scoreTensor.Shape()), wantScore) {
		return shapeErrorf("criterion returned shape %v, want %v", scoreTensor.Shape(), wantScore)
	}
	scores := floatData(scoreTensor)

	dt.Levels = dt.Levels[:0]
	leaf := make([]int, b*n*t)
	for level := 0; level < dt.Depth; level++ {
		lev := SplitLevel{
			Feature:   make([]int, b*t),
			Threshold: make([]float64, b*t),
		}
		degenerate := 0
		for bi := 0; bi < b; bi++ {
			for ti := 0; ti < t; ti++ {
				best := math.Inf(-1)
				bestC, bestF := 0, 0
				found := false
				varied := false
				first := scores[((bi*t+ti)*cand)*f]
				for fi := 0; fi < f; fi++ {
					for ci := 0; ci < cand; ci++ {
						s := scores[((bi*t+ti)*cand+ci)*f+fi]
						if s != first {
							varied = true
						}
						if s > best {
							best = s
							bestC, bestF = ci, fi
							found = true
						}
					}
				}
				if !found || !varied {
					degenerate++
				}
				lev.Feature[bi*t+ti] = bestF
				lev.Threshold[bi*t+ti] = sorted[(bi*f+bestF)*n+bestC]
			}
		}
		if degenerate > 0 {
			log.Printf("fit level %d: %d of %d splits are degenerate, keeping the first candidate", level, degenerate, b*t)
		}
		for bi := 0; bi < b; bi++ {
			for ni := 0; ni < n; ni++ {
				for ti := 0; ti < t; ti++ {
					choice := 0
					if x[(bi*n+ni)*f+lev.Feature[bi*t+ti]] <= lev.Threshold[bi*t+ti] {
						choice = 1
					}
					leaf[(bi*n+ni)*t+ti] = leaf[(bi*n+ni)*t+ti]*arity + choice
				}
			}
		}
		dt.Levels = append(dt.Levels, lev)
	}

	dt.BatchShape = batch
	dt.NumTarget = t
	dt.NumFeature = f
	dt.fitted = true

	if dt.afterFit != nil {
		leafShaped := tensor.New(tensor.WithShape(append(append([]int{}, batch...), n, t)...), tensor.WithBacking(leaf))
		if err := dt.afterFit(yShaped, leafShaped, dt.LeafCount()); err != nil {
			return err
		}
	}
	return nil
}

//Criterion returns the injected split criterion.
func (dt *DecisionTree) Criterion() SplitCriterion {
	return dt.criterion
}

//PrePredict replays the fitted split record over sampleX, an array of shape
//(Batch..., Observation, Feature) carrying exactly the feature columns the
//tree was fitted on. The batch dimensions may be omitted, in which case the
//sample is broadcast across the fitted batch. The result holds the leaf code
//of every (batch, observation, target) triple: the mixed-radix encoding of the
//branch taken at each level, in [0, branchArity^Depth). Training replay and
//prediction replay run through this same pass, so leaf codes cannot drift
//between fit and predict.
func (dt *DecisionTree) PrePredict(sampleX *tensor.Dense) (*tensor.Dense, error) {
	if !dt.fitted {
		return nil, shapeErrorf("the tree has not been fitted")
	}
	shape := []int(sampleX.Shape())
	if len(shape) < 2 {
		return nil, shapeErrorf("sample must have at least rank 2, got shape %v", shape)
	}
	fCols := shape[len(shape)-1]
	if fCols != dt.NumFeature {
		return nil, shapeErrorf("sample carries %d feature columns, the tree was fitted on %d", fCols, dt.NumFeature)
	}
	m := shape[len(shape)-2]
	sampleBatch := shape[:len(shape)-2]
	broadcast := len(sampleBatch) == 0 && len(dt.BatchShape) > 0
	if !broadcast && !sameInts(sampleBatch, dt.BatchShape) {
		return nil, shapeErrorf("sample batch shape %v does not match the fitted batch shape %v", sampleBatch, dt.BatchShape)
	}

	b := prodInts(dt.BatchShape)
	t := dt.NumTarget
	arity := dt.BranchArity
	xd := floatData(sampleX)

	leaf := make([]int, b*m*t)
	for bi := 0; bi < b; bi++ {
		src := bi
		if broadcast {
			src = 0
		}
		for mi := 0; mi < m; mi++ {
			for ti := 0; ti < t; ti++ {
				code := 0
				for _, lev := range dt.Levels {
					choice := 0
					if xd[(src*m+mi)*fCols+lev.Feature[bi*t+ti]] <= lev.Threshold[bi*t+ti] {
						choice = 1
					}
					code = code*arity + choice
				}
				leaf[(bi*m+mi)*t+ti] = code
			}
		}
	}
	outShape := append(append([]int{}, dt.BatchShape...), m, t)
	return tensor.New(tensor.WithShape(outShape...), tensor.WithBacking(leaf)), nil
}
