package ijtiff

import (
	"errors"
	"fmt"
)

// DType identifies the sample type of an Array. Only the types ImageJ
// understands are representable.
type DType int

const (
	Uint8 DType = iota
	Uint16
	Float32
)

func (d DType) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Float32:
		return "float32"
	default:
		return fmt.Sprintf("DType(%d)", int(d))
	}
}

func (d DType) bits() int {
	switch d {
	case Uint8:
		return 8
	case Uint16:
		return 16
	default:
		return 32
	}
}

// Array is a dense n-dimensional numeric array in row-major order with
// 1 to 5 dimensions. The zero value is not usable; build one with
// NewUint8, NewUint16 or NewFloat32.
type Array struct {
	shape []int
	dtype DType
	u8    []uint8
	u16   []uint16
	f32   []float32
}

const maxDims = 5

func checkShape(shape []int, n int) error {
	if len(shape) == 0 || len(shape) > maxDims {
		return fmt.Errorf("shape must have 1 to %d dimensions, got %d", maxDims, len(shape))
	}
	total := 1
	for _, s := range shape {
		if s <= 0 {
			return fmt.Errorf("invalid dimension %d in shape %v", s, shape)
		}
		total *= s
	}
	if total != n {
		return fmt.Errorf("shape %v requires %d samples, got %d", shape, total, n)
	}
	return nil
}

// NewUint8 wraps pix as an array of the given shape. The slice is not copied.
func NewUint8(shape []int, pix []uint8) (*Array, error) {
	if err := checkShape(shape, len(pix)); err != nil {
		return nil, err
	}
	return &Array{shape: append([]int(nil), shape...), dtype: Uint8, u8: pix}, nil
}

// NewUint16 wraps pix as an array of the given shape. The slice is not copied.
func NewUint16(shape []int, pix []uint16) (*Array, error) {
	if err := checkShape(shape, len(pix)); err != nil {
		return nil, err
	}
	return &Array{shape: append([]int(nil), shape...), dtype: Uint16, u16: pix}, nil
}

// NewFloat32 wraps pix as an array of the given shape. The slice is not copied.
func NewFloat32(shape []int, pix []float32) (*Array, error) {
	if err := checkShape(shape, len(pix)); err != nil {
		return nil, err
	}
	return &Array{shape: append([]int(nil), shape...), dtype: Float32, f32: pix}, nil
}

// Shape returns a copy of the array's dimensions.
func (a *Array) Shape() []int { return append([]int(nil), a.shape...) }

// NDim returns the number of dimensions.
func (a *Array) NDim() int { return len(a.shape) }

// DType returns the sample type.
func (a *Array) DType() DType { return a.dtype }

// Len returns the total number of samples.
func (a *Array) Len() int {
	n := 1
	for _, s := range a.shape {
		n *= s
	}
	return n
}

// Uint8Data returns the backing slice of a Uint8 array, or nil.
func (a *Array) Uint8Data() []uint8 { return a.u8 }

// Uint16Data returns the backing slice of a Uint16 array, or nil.
func (a *Array) Uint16Data() []uint16 { return a.u16 }

// Float32Data returns the backing slice of a Float32 array, or nil.
func (a *Array) Float32Data() []float32 { return a.f32 }

func (a *Array) at(i int) float64 {
	switch a.dtype {
	case Uint8:
		return float64(a.u8[i])
	case Uint16:
		return float64(a.u16[i])
	default:
		return float64(a.f32[i])
	}
}

// Value returns the sample at the given multi-dimensional index as a float64.
func (a *Array) Value(idx ...int) float64 {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("index %v does not match shape %v", idx, a.shape))
	}
	flat := 0
	for d, i := range idx {
		if i < 0 || i >= a.shape[d] {
			panic(fmt.Sprintf("index %v out of range for shape %v", idx, a.shape))
		}
		flat = flat*a.shape[d] + i
	}
	return a.at(flat)
}

// planeSize is the number of samples in one trailing 2-D plane.
func (a *Array) planeSize() int {
	n := len(a.shape)
	if n == 1 {
		return a.shape[0]
	}
	return a.shape[n-1] * a.shape[n-2]
}

// planes is the number of trailing 2-D planes.
func (a *Array) planes() int {
	n := len(a.shape)
	if n <= 2 {
		return 1
	}
	p := 1
	for _, s := range a.shape[:n-2] {
		p *= s
	}
	return p
}

// planeMinMax returns the minimum and maximum sample of plane p.
func (a *Array) planeMinMax(p int) (min, max float64) {
	size := a.planeSize()
	start := p * size
	min = a.at(start)
	max = min
	for i := start + 1; i < start+size; i++ {
		v := a.at(i)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// MinMax returns the minimum and maximum sample of the whole array.
func (a *Array) MinMax() (min, max float64) {
	min = a.at(0)
	max = min
	for i := 1; i < a.Len(); i++ {
		v := a.at(i)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// transpose returns a copy with axes permuted by order, so that output
// axis d is input axis order[d].
func (a *Array) transpose(order []int) (*Array, error) {
	n := len(a.shape)
	if len(order) != n {
		return nil, fmt.Errorf("transpose order %v does not match %d dimensions", order, n)
	}
	seen := make([]bool, n)
	newShape := make([]int, n)
	for d, o := range order {
		if o < 0 || o >= n || seen[o] {
			return nil, fmt.Errorf("invalid transpose order %v", order)
		}
		seen[o] = true
		newShape[d] = a.shape[o]
	}

	oldStrides := make([]int, n)
	stride := 1
	for d := n - 1; d >= 0; d-- {
		oldStrides[d] = stride
		stride *= a.shape[d]
	}

	out := &Array{shape: newShape, dtype: a.dtype}
	total := a.Len()
	switch a.dtype {
	case Uint8:
		out.u8 = make([]uint8, total)
	case Uint16:
		out.u16 = make([]uint16, total)
	default:
		out.f32 = make([]float32, total)
	}

	idx := make([]int, n)
	for flat := 0; flat < total; flat++ {
		src := 0
		for d := 0; d < n; d++ {
			src += idx[d] * oldStrides[order[d]]
		}
		switch a.dtype {
		case Uint8:
			out.u8[flat] = a.u8[src]
		case Uint16:
			out.u16[flat] = a.u16[src]
		default:
			out.f32[flat] = a.f32[src]
		}
		for d := n - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < newShape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out, nil
}

// Stack concatenates same-shaped single-channel arrays along a new
// leading channel axis.
func Stack(channels ...*Array) (*Array, error) {
	if len(channels) == 0 {
		return nil, errors.New("no channels to stack")
	}
	first := channels[0]
	for i, c := range channels[1:] {
		if c.dtype != first.dtype {
			return nil, fmt.Errorf("channel %d has type %s, want %s", i+1, c.dtype, first.dtype)
		}
		if !equalShape(c.shape, first.shape) {
			return nil, fmt.Errorf("channel %d has shape %v, want %v", i+1, c.shape, first.shape)
		}
	}
	shape := append([]int{len(channels)}, first.shape...)
	if len(shape) > maxDims {
		return nil, fmt.Errorf("stacking %d-dimensional channels exceeds %d dimensions", first.NDim(), maxDims)
	}
	out := &Array{shape: shape, dtype: first.dtype}
	switch first.dtype {
	case Uint8:
		for _, c := range channels {
			out.u8 = append(out.u8, c.u8...)
		}
	case Uint16:
		for _, c := range channels {
			out.u16 = append(out.u16, c.u16...)
		}
	default:
		for _, c := range channels {
			out.f32 = append(out.f32, c.f32...)
		}
	}
	return out, nil
}

func equalShape(a, b []int) bool {
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
