package bfl

import (
	"math"

	"gorgonia.org/tensor"
)

//entropyCriterion scores candidate splits with one minus the weighted branch
//entropy of the classes the owning classifier observed at its first fit:
//
//	gain = 1 + sum_branch sum_class w * p * log2(p)
//	p = count(class, branch) / count(branch)
//	w = count(class, branch) / observations
//
//0*log2(0) terms are dropped, so empty branches and absent classes contribute
//nothing instead of propagating NaN. The constant 1 anchors the baseline
//entropy of a binary split; this criterion assumes branch arity 2 and an arity
//k would need log2(k) in its place.
type entropyCriterion struct {
	model *DecisionTreeClassifier
}

func (e entropyCriterion) Score(targets, branches *tensor.Dense, branchArity int) (*tensor.Dense, error) {
	ts := []int(targets.Shape())
	bs := []int(branches.Shape())
	if len(ts) != 3 || len(bs) != 4 {
		return nil, shapeErrorf("entropy criterion wants targets rank 3 and branches rank 4, got %v and %v", ts, bs)
	}
	b, n, t := ts[0], ts[1], ts[2]
	cand, f := bs[2], bs[3]
	if bs[0] != b || bs[1] != n {
		return nil, shapeErrorf("targets %v and branches %v disagree on batch or observations", ts, bs)
	}

	classes := e.model.UniqueY
	u := len(classes)
	classIndex := make(map[float64]int, u)
	for i, v := range classes {
		classIndex[v] = i
	}

	y := floatData(targets)
	br := intData(branches)
	out := make([]float64, b*t*cand*f)

	branchTotal := make([]int, branchArity)
	classCount := make([]int, t*branchArity*u)
	for bi := 0; bi < b; bi++ {
		for ci := 0; ci < cand; ci++ {
			for fi := 0; fi < f; fi++ {
				for k := range branchTotal {
					branchTotal[k] = 0
				}
				for i := range classCount {
					classCount[i] = 0
				}
				for ni := 0; ni < n; ni++ {
					k := br[((bi*n+ni)*cand+ci)*f+fi]
					branchTotal[k]++
					for ti := 0; ti < t; ti++ {
						if ui, ok := classIndex[y[(bi*n+ni)*t+ti]]; ok {
							classCount[(ti*branchArity+k)*u+ui]++
						}
					}
				}
				for ti := 0; ti < t; ti++ {
					gain := 1.0
					for k := 0; k < branchArity; k++ {
						for ui := 0; ui < u; ui++ {
							cnt := classCount[(ti*branchArity+k)*u+ui]
							if cnt == 0 {
								continue
							}
							p := float64(cnt) / float64(branchTotal[k])
							gain += p * math.Log2(p) * float64(cnt) / float64(n)
						}
					}
					out[((bi*t+ti)*cand+ci)*f+fi] = gain
				}
			}
		}
	}
	return tensor.New(tensor.WithShape(b, t, cand, f), tensor.WithBacking(out)), nil
}
