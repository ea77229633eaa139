package bfl

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//ReadNpy reads an N-dimensional float64 array from an npy file. The header
//shape becomes the tensor shape.
func ReadNpy(fileName string) (*tensor.Dense, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "open npy")
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read npy header of %s", fileName)
	}
	if r.Header.Descr.Fortran {
		return nil, errors.Errorf("npy file %s is Fortran-ordered", fileName)
	}
	shape := append([]int{}, r.Header.Descr.Shape...)

	var raw []float64
	if err := r.Read(&raw); err != nil {
		return nil, errors.Wrapf(err, "read npy payload of %s", fileName)
	}
	if len(raw) != prodInts(shape) {
		return nil, errors.Errorf("npy file %s holds %d values for shape %v", fileName, len(raw), shape)
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(raw)), nil
}

//WriteNpy writes a rank-2 tensor to an npy file.
func WriteNpy(fileName string, t *tensor.Dense) error {
	m, err := ToMatrix(t)
	if err != nil {
		return err
	}
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrap(err, "create npy")
	}
	defer f.Close()
	return errors.Wrapf(npyio.Write(f, m), "write npy %s", fileName)
}

//FromMatrix copies a gonum matrix into a rank-2 dataset tensor.
func FromMatrix(m *mat.Dense) *tensor.Dense {
	h, w := m.Dims()
	data := make([]float64, h*w)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			data[i*w+j] = m.At(i, j)
		}
	}
	return tensor.New(tensor.WithShape(h, w), tensor.WithBacking(data))
}

//ToMatrix copies a rank-2 tensor into a gonum matrix.
func ToMatrix(t *tensor.Dense) (*mat.Dense, error) {
	shape := []int(t.Shape())
	if len(shape) != 2 {
		return nil, shapeErrorf("matrix conversion wants rank 2, got shape %v", shape)
	}
	return mat.NewDense(shape[0], shape[1], append([]float64{}, floatData(t)...)), nil
}
