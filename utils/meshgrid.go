package utils

import "gonum.org/v1/gonum/mat"

// Meshgrid2D generates the cartesian product of the two gridded axes as an
// (len(x)*len(y))x2 matrix, one grid point per row, x varying slowest.
func Meshgrid2D(x, y []float64) *mat.Dense {
	dims := []int{len(x), len(y)}
	axes := [][]float64{x, y}

	sz := size(dims)
	matOut := mat.NewDense(sz, 2, nil)
	sub := make([]int, 2)
	for i := 0; i < sz; i++ {
		SubFor(sub, i, dims)
		for j := range axes {
			matOut.Set(i, j, axes[j][sub[j]])
		}
	}
	return matOut
}

func size(dims []int) int {
	n := 1
	for _, v := range dims {
		n *= v
	}
	return n
}

// SubFor constructs the multi-dimensional subscript for the input linear index.
// Dims specifies the maximum size in each dimension.
//
// If sub is non-nil the result is stored in-place into sub. If it is nil a new
// slice of the appropriate length is allocated.
func SubFor(sub []int, idx int, dims []int) []int {
	for _, v := range dims {
		if v <= 0 {
			panic("bad dims")
		}
	}
	if sub == nil {
		sub = make([]int, len(dims))
	}
	if len(sub) != len(dims) {
		panic("size mismatch")
	}
	if idx < 0 {
		panic("bad index")
	}
	stride := 1
	for i := len(dims) - 1; i >= 1; i-- {
		stride *= dims[i]
	}
	for i := 0; i < len(dims)-1; i++ {
		v := idx / stride
		if v >= dims[i] {
			panic("bad index")
		}
		sub[i] = v
		idx -= v * stride
		stride /= dims[i+1]
	}
	if idx > dims[len(sub)-1] {
		panic("bad dims")
	}
	sub[len(sub)-1] = idx
	return sub
}
