package tensor

import (
	"errors"
	"fmt"
)

// Tensor is a dense row-major array of float64 values.
type Tensor struct {
	Shape []int
	Data  []float64
}

// New allocates a zero-filled tensor with the given shape.
func New(shape ...int) (*Tensor, error) {
	size, err := Size(shape)
	if err != nil {
		return nil, err
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: make([]float64, size)}, nil
}

// FromData wraps data without copying. len(data) must match the shape.
func FromData(data []float64, shape ...int) (*Tensor, error) {
	size, err := Size(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != size {
		return nil, fmt.Errorf("tensor: %d values do not fit shape %v", len(data), shape)
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Size returns the number of elements described by shape.
func Size(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, errors.New("tensor: empty shape")
	}
	size := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("tensor: non-positive dimension in shape %v", shape)
		}
		size *= d
	}
	return size, nil
}

// Len returns the size of the leading (sample) dimension.
func (t *Tensor) Len() int {
	if t == nil || len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// SampleShape returns every dimension but the first.
func (t *Tensor) SampleShape() []int {
	if len(t.Shape) < 2 {
		return nil
	}
	return append([]int(nil), t.Shape[1:]...)
}

// Stride returns the number of values per sample.
func (t *Tensor) Stride() int {
	if t.Len() == 0 {
		return 0
	}
	return len(t.Data) / t.Shape[0]
}

// Row returns the flattened values of sample i. The slice aliases t.Data.
func (t *Tensor) Row(i int) []float64 {
	s := t.Stride()
	return t.Data[i*s : (i+1)*s]
}

// At returns the element at the given multi-index.
func (t *Tensor) At(idx ...int) float64 {
	return t.Data[t.offset(idx)]
}

// Set stores v at the given multi-index.
func (t *Tensor) Set(v float64, idx ...int) {
	t.Data[t.offset(idx)] = v
}

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.Shape) {
		panic(fmt.Sprintf("tensor: index %v has wrong rank for shape %v", idx, t.Shape))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.Shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, t.Shape))
		}
		off = off*t.Shape[i] + v
	}
	return off
}
