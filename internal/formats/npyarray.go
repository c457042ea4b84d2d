package formats

import (
	"bufio"
	"io"
	"os"
	"reflect"
	"strings"

	"filestore/internal/domain/models"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
)

var descrDtypes = map[string]models.Dtype{
	"f8": models.DtypeFloat64,
	"f4": models.DtypeFloat32,
	"i8": models.DtypeInt64,
	"i4": models.DtypeInt32,
	"i2": models.DtypeInt16,
	"u2": models.DtypeUint16,
	"u1": models.DtypeUint8,
}

// ReadNpyFile decodes a whole .npy file
func ReadNpyFile(path string) (models.Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Array{}, err
	}
	defer f.Close() //nolint:errcheck
	arr, err := readNpy(bufio.NewReader(f))
	return arr, errors.WithMessagef(err, "read '%s'", path)
}

func readNpy(r io.Reader) (models.Array, error) {
	rd, err := npyio.NewReader(r)
	if err != nil {
		return models.Array{}, errors.Wrap(err, "npy header")
	}
	descr := rd.Header.Descr.Type
	if strings.HasPrefix(descr, ">") {
		return models.Array{}, errors.Errorf("big-endian dtype %q is not supported", descr)
	}
	dtype, ok := descrDtypes[strings.TrimLeft(descr, "<|=")]
	if !ok {
		return models.Array{}, errors.Errorf("unsupported dtype %q", descr)
	}
	shape := append([]int(nil), rd.Header.Descr.Shape...)

	var data []float64
	switch dtype {
	case models.DtypeFloat64:
		err = rd.Read(&data)
	case models.DtypeFloat32:
		data, err = readAs[float32](rd)
	case models.DtypeInt64:
		data, err = readAs[int64](rd)
	case models.DtypeInt32:
		data, err = readAs[int32](rd)
	case models.DtypeInt16:
		data, err = readAs[int16](rd)
	case models.DtypeUint16:
		data, err = readAs[uint16](rd)
	case models.DtypeUint8:
		data, err = readAs[uint8](rd)
	}
	if err != nil {
		return models.Array{}, errors.Wrap(err, "npy data")
	}
	if rd.Header.Descr.Fortran && len(shape) > 1 {
		data = fortranToC(data, shape)
	}
	return models.NewArray(shape, dtype, data)
}

type number interface {
	~float32 | ~int64 | ~int32 | ~int16 | ~uint16 | ~uint8
}

func readAs[T number](rd *npyio.Reader) ([]float64, error) {
	var raw []T
	if err := rd.Read(&raw); err != nil {
		return nil, err
	}
	ret := make([]float64, len(raw))
	for i, v := range raw {
		ret[i] = float64(v)
	}
	return ret, nil
}

// fortranToC reorders column-major data into row-major order
func fortranToC(data []float64, shape []int) []float64 {
	out := make([]float64, len(data))
	idx := make([]int, len(shape))
	for c := range out {
		f, stride := 0, 1
		for d := 0; d < len(shape); d++ {
			f += idx[d] * stride
			stride *= shape[d]
		}
		out[c] = data[f]
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}

var dtypeTypes = map[models.Dtype]reflect.Type{
	models.DtypeFloat64: reflect.TypeOf(float64(0)),
	models.DtypeFloat32: reflect.TypeOf(float32(0)),
	models.DtypeInt64:   reflect.TypeOf(int64(0)),
	models.DtypeInt32:   reflect.TypeOf(int32(0)),
	models.DtypeInt16:   reflect.TypeOf(int16(0)),
	models.DtypeUint16:  reflect.TypeOf(uint16(0)),
	models.DtypeUint8:   reflect.TypeOf(uint8(0)),
}

// WriteNpy stores arr with its shape and dtype. An array without dtype is
// written as float64, one with an empty shape as a scalar.
func WriteNpy(w io.Writer, arr models.Array) error {
	dtype := arr.Dtype
	if dtype == "" {
		dtype = models.DtypeFloat64
	}
	elem, ok := dtypeTypes[dtype]
	if !ok {
		return errors.Errorf("unsupported dtype %q", arr.Dtype)
	}
	if n := arr.Size(); n != len(arr.Data) {
		return errors.Errorf("shape %v holds %d elements, got %d", arr.Shape, n, len(arr.Data))
	}
	return npyio.Write(w, nestedArray(arr, elem).Interface())
}

// nestedArray builds a [d0][d1]...elem value so the writer records the full
// shape. An empty shape yields a bare elem.
func nestedArray(arr models.Array, elem reflect.Type) reflect.Value {
	t := elem
	for i := len(arr.Shape) - 1; i >= 0; i-- {
		t = reflect.ArrayOf(arr.Shape[i], t)
	}
	v := reflect.New(t).Elem()
	pos := 0
	var fill func(v reflect.Value)
	fill = func(v reflect.Value) {
		if v.Kind() != reflect.Array {
			setElem(v, arr.Data[pos])
			pos++
			return
		}
		for i := 0; i < v.Len(); i++ {
			fill(v.Index(i))
		}
	}
	fill(v)
	return v
}

func setElem(v reflect.Value, x float64) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		v.SetFloat(x)
	case reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(int64(x))
	case reflect.Uint8, reflect.Uint16:
		v.SetUint(uint64(x))
	}
}
