package bfl

import (
	"math/rand"

	"gorgonia.org/tensor"
)

//BaggingPreparation draws numberOfSubset bootstrap resamples of subsetSize rows
//each, with replacement, from a rank-2 dataset of shape (Observation, Column).
//The result has shape (NumberOfSubset, SubsetSize, Column) and becomes the
//batch axis of a single batched fit. The generator is seeded once and advanced
//sequentially across subsets, so the same seed reproduces the same subsets
//bit for bit on every run and platform.
func BaggingPreparation(inSample *tensor.Dense, numberOfSubset, subsetSize int, seed int64) (*tensor.Dense, error) {
	shape := []int(inSample.Shape())
	if len(shape) != 2 {
		return nil, shapeErrorf("ensemble preparation wants a rank-2 dataset, got shape %v", shape)
	}
	n, c := shape[0], shape[1]
	if n < 1 {
		return nil, shapeErrorf("dataset has no rows")
	}
	if numberOfSubset < 1 {
		return nil, configErrorf("number of subsets must be positive, got %d", numberOfSubset)
	}
	if subsetSize < 1 {
		return nil, configErrorf("subset size must be positive, got %d", subsetSize)
	}

	data := floatData(inSample)
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, numberOfSubset*subsetSize*c)
	for s := 0; s < numberOfSubset; s++ {
		for i := 0; i < subsetSize; i++ {
			r := rng.Intn(n)
			copy(out[((s*subsetSize)+i)*c:((s*subsetSize)+i+1)*c], data[r*c:(r+1)*c])
		}
	}
	return tensor.New(tensor.WithShape(numberOfSubset, subsetSize, c), tensor.WithBacking(out)), nil
}

//RandomForestPreparation performs the same row bootstrap as BaggingPreparation
//and additionally draws, per subset, numberOfChosenFeature feature columns
//without replacement. Rows are drawn first, then the feature columns of the
//subset. The output has shape (NumberOfSubset, SubsetSize,
//numberOfTarget+numberOfChosenFeature): all target columns in their original
//order, followed by the chosen feature columns in draw order.
func RandomForestPreparation(inSample *tensor.Dense, numberOfTarget, numberOfChosenFeature, numberOfSubset, subsetSize int, seed int64) (*tensor.Dense, error) {
	shape := []int(inSample.Shape())
	if len(shape) != 2 {
		return nil, shapeErrorf("ensemble preparation wants a rank-2 dataset, got shape %v", shape)
	}
	n, c := shape[0], shape[1]
	if n < 1 {
		return nil, shapeErrorf("dataset has no rows")
	}
	if numberOfTarget < 1 || numberOfTarget >= c {
		return nil, shapeErrorf("number of targets must be in [1, %d), got %d", c, numberOfTarget)
	}
	available := c - numberOfTarget
	if numberOfChosenFeature < 1 {
		return nil, configErrorf("number of chosen features must be positive, got %d", numberOfChosenFeature)
	}
	if numberOfChosenFeature > available {
		return nil, configErrorf("cannot choose %d features out of %d", numberOfChosenFeature, available)
	}
	if numberOfSubset < 1 {
		return nil, configErrorf("number of subsets must be positive, got %d", numberOfSubset)
	}
	if subsetSize < 1 {
		return nil, configErrorf("subset size must be positive, got %d", subsetSize)
	}

	data := floatData(inSample)
	rng := rand.New(rand.NewSource(seed))
	width := numberOfTarget + numberOfChosenFeature
	out := make([]float64, numberOfSubset*subsetSize*width)
	rows := make([]int, subsetSize)
	for s := 0; s < numberOfSubset; s++ {
		for i := range rows {
			rows[i] = rng.Intn(n)
		}
		chosen := rng.Perm(available)[:numberOfChosenFeature]
		for i, r := range rows {
			dst := out[((s*subsetSize)+i)*width : ((s*subsetSize)+i+1)*width]
			copy(dst[:numberOfTarget], data[r*c:r*c+numberOfTarget])
			for j, fi := range chosen {
				dst[numberOfTarget+j] = data[r*c+numberOfTarget+fi]
			}
		}
	}
	return tensor.New(tensor.WithShape(numberOfSubset, subsetSize, width), tensor.WithBacking(out)), nil
}
