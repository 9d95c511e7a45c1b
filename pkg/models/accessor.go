package models

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/qmuntal/gltf"
)

// ErrAccessor is returned when accessor data cannot be read.
var ErrAccessor = errors.New("read accessor")

// accessorView locates the bytes of an accessor inside its loaded buffer.
type accessorView struct {
	acc    *gltf.Accessor
	data   []byte
	start  int
	stride int
}

func (v accessorView) element(i int) []byte {
	return v.data[v.start+i*v.stride:]
}

func componentSize(ct gltf.ComponentType) int {
	switch ct {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	default:
		return 4
	}
}

func componentCount(t gltf.AccessorType) int {
	switch t {
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4:
		return 4
	default:
		return 1
	}
}

// view resolves accessor idx and checks that every element fits its buffer.
func view(doc *gltf.Document, idx int) (accessorView, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return accessorView{}, fmt.Errorf("%w: index %d out of range", ErrAccessor, idx)
	}
	acc := doc.Accessors[idx]
	if acc.BufferView == nil {
		return accessorView{}, fmt.Errorf("%w %d: no buffer view", ErrAccessor, idx)
	}
	if *acc.BufferView < 0 || *acc.BufferView >= len(doc.BufferViews) {
		return accessorView{}, fmt.Errorf("%w %d: buffer view %d out of range", ErrAccessor, idx, *acc.BufferView)
	}
	bv := doc.BufferViews[*acc.BufferView]
	if bv.Buffer < 0 || bv.Buffer >= len(doc.Buffers) {
		return accessorView{}, fmt.Errorf("%w %d: buffer %d out of range", ErrAccessor, idx, bv.Buffer)
	}
	data := doc.Buffers[bv.Buffer].Data
	if data == nil {
		return accessorView{}, fmt.Errorf("%w %d: buffer has no data", ErrAccessor, idx)
	}

	elemSize := componentSize(acc.ComponentType) * componentCount(acc.Type)
	stride := bv.ByteStride
	if stride == 0 {
		stride = elemSize
	}
	start := bv.ByteOffset + acc.ByteOffset
	if acc.Count > 0 {
		end := start + (acc.Count-1)*stride + elemSize
		if end > len(data) || end > bv.ByteOffset+bv.ByteLength {
			return accessorView{}, fmt.Errorf("%w %d: data exceeds buffer view", ErrAccessor, idx)
		}
	}
	return accessorView{acc: acc, data: data, start: start, stride: stride}, nil
}

// ReadVec3 reads a float VEC3 accessor such as POSITION or NORMAL.
func ReadVec3(doc *gltf.Document, idx int) ([][3]float32, error) {
	v, err := view(doc, idx)
	if err != nil {
		return nil, err
	}
	if v.acc.Type != gltf.AccessorVec3 || v.acc.ComponentType != gltf.ComponentFloat {
		return nil, fmt.Errorf("%w %d: expected float VEC3, got %v %v", ErrAccessor, idx, v.acc.ComponentType, v.acc.Type)
	}

	result := make([][3]float32, v.acc.Count)
	for i := range result {
		b := v.element(i)
		for j := range 3 {
			result[i][j] = readFloat32(b[j*4:])
		}
	}
	return result, nil
}

// ReadVec2 reads a VEC2 accessor. Float data is returned as is, normalized
// unsigned byte and short data is mapped to [0,1].
func ReadVec2(doc *gltf.Document, idx int) ([][2]float32, error) {
	v, err := view(doc, idx)
	if err != nil {
		return nil, err
	}
	if v.acc.Type != gltf.AccessorVec2 {
		return nil, fmt.Errorf("%w %d: expected VEC2, got %v", ErrAccessor, idx, v.acc.Type)
	}

	result := make([][2]float32, v.acc.Count)
	switch v.acc.ComponentType {
	case gltf.ComponentFloat:
		for i := range result {
			b := v.element(i)
			result[i] = [2]float32{readFloat32(b), readFloat32(b[4:])}
		}
	case gltf.ComponentUbyte:
		for i := range result {
			b := v.element(i)
			result[i] = [2]float32{float32(b[0]) / 255, float32(b[1]) / 255}
		}
	case gltf.ComponentUshort:
		for i := range result {
			b := v.element(i)
			result[i] = [2]float32{
				float32(binary.LittleEndian.Uint16(b)) / 65535,
				float32(binary.LittleEndian.Uint16(b[2:])) / 65535,
			}
		}
	default:
		return nil, fmt.Errorf("%w %d: unsupported VEC2 component type %v", ErrAccessor, idx, v.acc.ComponentType)
	}
	return result, nil
}

// ReadIndices reads an unsigned SCALAR index accessor.
func ReadIndices(doc *gltf.Document, idx int) ([]uint32, error) {
	v, err := view(doc, idx)
	if err != nil {
		return nil, err
	}
	if v.acc.Type != gltf.AccessorScalar {
		return nil, fmt.Errorf("%w %d: expected SCALAR, got %v", ErrAccessor, idx, v.acc.Type)
	}

	result := make([]uint32, v.acc.Count)
	switch v.acc.ComponentType {
	case gltf.ComponentUbyte:
		for i := range result {
			result[i] = uint32(v.element(i)[0])
		}
	case gltf.ComponentUshort:
		for i := range result {
			result[i] = uint32(binary.LittleEndian.Uint16(v.element(i)))
		}
	case gltf.ComponentUint:
		for i := range result {
			result[i] = binary.LittleEndian.Uint32(v.element(i))
		}
	default:
		return nil, fmt.Errorf("%w %d: unexpected index type %v", ErrAccessor, idx, v.acc.ComponentType)
	}
	return result, nil
}

// readFloat32 reads a little-endian float32.
func readFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
