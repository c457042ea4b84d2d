package models

import (
	"fmt"
)

// Dtype names the element type an array was decoded from
type Dtype string

const (
	DtypeFloat64 Dtype = "float64"
	DtypeFloat32 Dtype = "float32"
	DtypeInt64   Dtype = "int64"
	DtypeInt32   Dtype = "int32"
	DtypeInt16   Dtype = "int16"
	DtypeUint16  Dtype = "uint16"
	DtypeUint8   Dtype = "uint8"
)

// Array is a dense N-dimensional array in row-major order. Elements are held
// as float64 regardless of the source dtype.
type Array struct {
	Shape []int
	Dtype Dtype
	Data  []float64
}

// NewArray validates that data fits shape
func NewArray(shape []int, dtype Dtype, data []float64) (Array, error) {
	if n := numElements(shape); n != len(data) {
		return Array{}, fmt.Errorf("shape %v holds %d elements, got %d", shape, n, len(data))
	}
	return Array{
		Shape: append([]int(nil), shape...),
		Dtype: dtype,
		Data:  data,
	}, nil
}

// Size returns the number of elements
func (a Array) Size() int {
	return numElements(a.Shape)
}

// At returns the element at the given index
func (a Array) At(idx ...int) (float64, error) {
	if len(idx) != len(a.Shape) {
		return 0, fmt.Errorf("index has %d dims, array has %d", len(idx), len(a.Shape))
	}
	offset := 0
	for i, n := range idx {
		if n < 0 || n >= a.Shape[i] {
			return 0, fmt.Errorf("index %d out of range for axis %d of size %d", n, i, a.Shape[i])
		}
		offset = offset*a.Shape[i] + n
	}
	return a.Data[offset], nil
}

// Sum adds all elements
func (a Array) Sum() float64 {
	var s float64
	for _, v := range a.Data {
		s += v
	}
	return s
}

// Equal compares shape, dtype and elements
func (a Array) Equal(o Array) bool {
	if a.Dtype != o.Dtype || len(a.Shape) != len(o.Shape) || len(a.Data) != len(o.Data) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != o.Shape[i] {
			return false
		}
	}
	for i := range a.Data {
		if a.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
