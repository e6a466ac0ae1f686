package archive

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DType is the element type of a dataset.
type DType string

const (
	Float64 DType = "float64"
	Uint8   DType = "uint8"
)

func (d DType) size() int {
	if d == Float64 {
		return 8
	}
	return 1
}

// Dataset is one dense block. Exactly one of Floats or Bytes is populated,
// matching DType.
type Dataset struct {
	Path   string
	DType  DType
	Shape  []int
	Floats []float64
	Bytes  []byte
}

// Float64Dataset returns a float64 dataset.
func Float64Dataset(path string, shape []int, values []float64) Dataset {
	return Dataset{Path: path, DType: Float64, Shape: shape, Floats: values}
}

// Uint8Dataset returns a uint8 dataset.
func Uint8Dataset(path string, shape []int, values []byte) Dataset {
	return Dataset{Path: path, DType: Uint8, Shape: shape, Bytes: values}
}

// Len returns the product of Shape.
func (d Dataset) Len() int {
	n := 1
	for _, dim := range d.Shape {
		n *= dim
	}
	return n
}

func (d Dataset) validate() error {
	if d.Path == "" {
		return fmt.Errorf("dataset without path")
	}
	if len(d.Shape) == 0 {
		return fmt.Errorf("dataset %s has no shape", d.Path)
	}
	for _, dim := range d.Shape {
		if dim < 0 {
			return fmt.Errorf("dataset %s has negative dimension in %v", d.Path, d.Shape)
		}
	}
	var have int
	switch d.DType {
	case Float64:
		have = len(d.Floats)
	case Uint8:
		have = len(d.Bytes)
	default:
		return fmt.Errorf("dataset %s has unknown dtype %q", d.Path, d.DType)
	}
	if have != d.Len() {
		return fmt.Errorf("dataset %s holds %d values, shape %v needs %d", d.Path, have, d.Shape, d.Len())
	}
	return nil
}

// raw returns the little-endian payload.
func (d Dataset) raw() []byte {
	if d.DType == Uint8 {
		return d.Bytes
	}
	out := make([]byte, 8*len(d.Floats))
	for i, v := range d.Floats {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
	}
	return out
}

func decodeRaw(d *Dataset, raw []byte) error {
	if len(raw) != d.Len()*d.DType.size() {
		return fmt.Errorf("dataset %s payload is %d bytes, shape %v needs %d", d.Path, len(raw), d.Shape, d.Len()*d.DType.size())
	}
	if d.DType == Uint8 {
		d.Bytes = raw
		return nil
	}
	d.Floats = make([]float64, len(raw)/8)
	for i := range d.Floats {
		d.Floats[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return nil
}
