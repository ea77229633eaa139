package bfl

import (
	"math"

	"gorgonia.org/tensor"
)

func prodInts(dims []int) int {
	p := 1
	for _, d := range dims {
		p *= d
	}
	return p
}

func intPow(base, exp int) int {
	p := 1
	for i := 0; i < exp; i++ {
		p *= base
	}
	return p
}

//floatData returns the float64 backing of a dense tensor. Size-one tensors
//surface their backing as a scalar, hence the fallback.
func floatData(t *tensor.Dense) []float64 {
	if v, ok := t.Data().([]float64); ok {
		return v
	}
	return []float64{t.Data().(float64)}
}

func intData(t *tensor.Dense) []int {
	if v, ok := t.Data().([]int); ok {
		return v
	}
	return []int{t.Data().(int)}
}

//sanitize clamps NaN and infinities to zero. Numeric degeneracies such as 0/0
//and log2(0) represent "no information" outcomes, never failures.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

//nanmean averages over the leading axis of a flat (lead, rest) array, skipping
//NaN entries. A position that is NaN in every member stays NaN.
func nanmean(data []float64, lead, rest int) []float64 {
	out := make([]float64, rest)
	for r := 0; r < rest; r++ {
		sum, cnt := 0.0, 0
		for l := 0; l < lead; l++ {
			v := data[l*rest+r]
			if math.IsNaN(v) {
				continue
			}
			sum += v
			cnt++
		}
		if cnt == 0 {
			out[r] = math.NaN()
		} else {
			out[r] = sum / float64(cnt)
		}
	}
	return out
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
