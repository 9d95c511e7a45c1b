package models

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// quad is a unit square in the XY plane drawn as two indexed triangles.
type quad struct {
	positions [][3]float32
	normals   [][3]float32
	uvs       [][2]float32
	indices   []uint16
}

func newQuad() quad {
	return quad{
		positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		normals:   [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		uvs:       [][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}},
		indices:   []uint16{0, 1, 2, 0, 2, 3},
	}
}

func (q quad) buffer() []byte {
	var buf bytes.Buffer
	for _, v := range []any{q.positions, q.normals, q.uvs, q.indices} {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

func (q quad) dataURI() string {
	return "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(q.buffer())
}

// document returns glTF JSON referencing the quad buffer through uri.
// Attributes are deliberately listed out of alphabetical order.
func (q quad) document(uri string) []byte {
	return fmt.Appendf(nil, `{
  "asset": {"version": "2.0", "generator": "fixture", "copyright": "none"},
  "buffers": [{"uri": %q, "byteLength": %d}],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 48},
    {"buffer": 0, "byteOffset": 48, "byteLength": 48},
    {"buffer": 0, "byteOffset": 96, "byteLength": 32},
    {"buffer": 0, "byteOffset": 128, "byteLength": 12}
  ],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 4, "type": "VEC3"},
    {"bufferView": 1, "componentType": 5126, "count": 4, "type": "VEC3"},
    {"bufferView": 2, "componentType": 5126, "count": 4, "type": "VEC2"},
    {"bufferView": 3, "componentType": 5123, "count": 6, "type": "SCALAR"}
  ],
  "materials": [{"name": "paint"}],
  "meshes": [{
    "name": "Quad",
    "primitives": [{
      "attributes": {"TEXCOORD_0": 2, "NORMAL": 1, "POSITION": 0},
      "indices": 3,
      "material": 0
    }]
  }, {
    "name": "Wire",
    "primitives": [{"attributes": {"POSITION": 0}, "mode": 1}]
  }]
}`, uri, len(q.buffer()))
}
