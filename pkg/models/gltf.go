// Package models loads glTF 2.0 documents for atlasgen.
//
// Parsing uses the github.com/qmuntal/gltf object model. External resources
// are resolved through an fs.FS rooted at the input file's directory, and the
// result is converted into the scene.Document the writer consumes.
package models

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/qmuntal/gltf"

	"github.com/taigrr/atlasgen/pkg/scene"
)

var (
	// ErrMalformed is returned when the input is not syntactically valid glTF JSON.
	ErrMalformed = errors.New("malformed glTF")
	// ErrUnsupportedVersion is returned for documents that are not glTF 2.x.
	ErrUnsupportedVersion = errors.New("unsupported glTF version")
	// ErrBufferLoad is returned when a referenced buffer cannot be resolved.
	ErrBufferLoad = errors.New("load glTF buffers")
)

// Source is a parsed glTF document with its buffers loaded, together with
// the scene description derived from it.
type Source struct {
	Doc   *gltf.Document
	Scene *scene.Document
}

// Loader parses glTF JSON and resolves its external resources.
type Loader struct {
	// FS resolves relative buffer URIs, usually the input file's directory.
	FS fs.FS
}

// NewLoader creates a loader resolving resources through fsys.
func NewLoader(fsys fs.FS) *Loader {
	return &Loader{FS: fsys}
}

// LoadFile reads a .gltf file and resolves resources next to it.
func LoadFile(name string) (*Source, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read gltf: %w", err)
	}
	return NewLoader(os.DirFS(filepath.Dir(name))).Load(data)
}

// Load parses data, loads every buffer and converts the result.
func (l *Loader) Load(data []byte) (*Source, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	order, err := AttributeOrder(data)
	if err != nil {
		return nil, err
	}
	if err := LoadBuffers(doc, l.FS); err != nil {
		return nil, err
	}
	return &Source{Doc: doc, Scene: Convert(doc, order)}, nil
}

// Parse decodes glTF JSON without touching external resources.
func Parse(data []byte) (*gltf.Document, error) {
	doc := new(gltf.Document)
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err := checkVersion(data, doc.Asset); err != nil {
		return nil, err
	}
	return doc, nil
}

// assetHeader sees the raw asset block. gltf.Asset fills in "2.0" when the
// version is absent.
type assetHeader struct {
	Asset *struct {
		Version *string `json:"version"`
	} `json:"asset"`
}

func checkVersion(data []byte, a gltf.Asset) error {
	var hdr assetHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if hdr.Asset == nil || hdr.Asset.Version == nil || *hdr.Asset.Version == "" {
		return fmt.Errorf("%w: missing asset.version", ErrUnsupportedVersion)
	}
	for _, v := range []string{a.Version, a.MinVersion} {
		if v == "" {
			continue
		}
		if major, _, _ := strings.Cut(v, "."); major != "2" {
			return fmt.Errorf("%w: %s", ErrUnsupportedVersion, v)
		}
	}
	return nil
}

// LoadBuffers fills in the data of every buffer. Data URIs are decoded in
// place and other URIs are read from fsys.
func LoadBuffers(doc *gltf.Document, fsys fs.FS) error {
	for i, buf := range doc.Buffers {
		if len(buf.Data) > 0 {
			continue
		}
		if buf.URI == "" {
			if buf.ByteLength > 0 {
				return fmt.Errorf("%w: buffer %d has no uri", ErrBufferLoad, i)
			}
			continue
		}

		data, err := readURI(buf.URI, fsys)
		if err != nil {
			return fmt.Errorf("%w: buffer %d: %w", ErrBufferLoad, i, err)
		}
		if len(data) < buf.ByteLength {
			return fmt.Errorf("%w: buffer %d: got %d bytes, want %d", ErrBufferLoad, i, len(data), buf.ByteLength)
		}
		buf.Data = data
	}
	return nil
}

// readURI resolves a data URI or a relative path.
func readURI(uri string, fsys fs.FS) ([]byte, error) {
	if rest, ok := strings.CutPrefix(uri, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("unsupported data uri")
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data uri: %w", err)
		}
		return data, nil
	}

	if fsys == nil {
		return nil, fmt.Errorf("no filesystem to resolve %q", uri)
	}
	name, err := url.PathUnescape(uri)
	if err != nil {
		return nil, fmt.Errorf("unescape %q: %w", uri, err)
	}
	name = path.Clean(name)
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("invalid resource path %q", uri)
	}
	return fs.ReadFile(fsys, name)
}

// attributeKeys records the key order of a JSON object.
type attributeKeys []string

func (k *attributeKeys) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*k = nil
		return nil
	}
	if tok != json.Delim('{') {
		return fmt.Errorf("attributes: expected object, got %v", tok)
	}
	var keys attributeKeys
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("attributes: unexpected token %v", tok)
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return err
		}
	}
	*k = keys
	return nil
}

type orderDocument struct {
	Meshes []struct {
		Primitives []struct {
			Attributes attributeKeys `json:"attributes"`
		} `json:"primitives"`
	} `json:"meshes"`
}

// AttributeOrder returns, per mesh and primitive, the attribute names in the
// order they appear in the source JSON. The gltf object model keeps attributes
// in a map, so the order has to be recovered from the raw bytes.
func AttributeOrder(data []byte) ([][][]string, error) {
	var od orderDocument
	if err := json.Unmarshal(data, &od); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	order := make([][][]string, len(od.Meshes))
	for i, m := range od.Meshes {
		order[i] = make([][]string, len(m.Primitives))
		for j, p := range m.Primitives {
			order[i][j] = p.Attributes
		}
	}
	return order, nil
}

// Convert builds the scene description of doc. order comes from
// AttributeOrder; attributes it does not list are appended in name order.
func Convert(doc *gltf.Document, order [][][]string) *scene.Document {
	out := &scene.Document{
		Asset: scene.Asset{
			Copyright:  doc.Asset.Copyright,
			Generator:  doc.Asset.Generator,
			Version:    doc.Asset.Version,
			MinVersion: doc.Asset.MinVersion,
		},
		Meshes:        make([]*scene.Mesh, 0, len(doc.Meshes)),
		AccessorCount: len(doc.Accessors),
		MaterialCount: len(doc.Materials),
	}

	for i, m := range doc.Meshes {
		if m == nil {
			continue
		}
		mesh := &scene.Mesh{Name: m.Name}
		for j, p := range m.Primitives {
			if p == nil {
				continue
			}
			prim := &scene.Primitive{
				Mode:       convertMode(p.Mode),
				Attributes: orderedAttributes(p.Attributes, keysAt(order, i, j)),
			}
			if p.Indices != nil {
				prim.Indices = scene.Index(*p.Indices)
			}
			if p.Material != nil {
				prim.Material = scene.Index(*p.Material)
			}
			mesh.Primitives = append(mesh.Primitives, prim)
		}
		out.Meshes = append(out.Meshes, mesh)
	}
	return out
}

func keysAt(order [][][]string, mesh, prim int) []string {
	if mesh >= len(order) || prim >= len(order[mesh]) {
		return nil
	}
	return order[mesh][prim]
}

func orderedAttributes(attrs gltf.PrimitiveAttributes, keys []string) []scene.Attribute {
	out := make([]scene.Attribute, 0, len(attrs))
	seen := make(map[string]bool, len(attrs))
	for _, k := range keys {
		idx, ok := attrs[k]
		if !ok || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, scene.Attribute{Name: k, Accessor: idx})
	}

	var rest []string
	for k := range attrs {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		out = append(out, scene.Attribute{Name: k, Accessor: attrs[k]})
	}
	return out
}

func convertMode(m gltf.PrimitiveMode) scene.PrimitiveMode {
	switch m {
	case gltf.PrimitivePoints:
		return scene.ModePoints
	case gltf.PrimitiveLines:
		return scene.ModeLines
	case gltf.PrimitiveLineLoop:
		return scene.ModeLineLoop
	case gltf.PrimitiveLineStrip:
		return scene.ModeLineStrip
	case gltf.PrimitiveTriangleStrip:
		return scene.ModeTriangleStrip
	case gltf.PrimitiveTriangleFan:
		return scene.ModeTriangleFan
	default:
		return scene.ModeTriangles
	}
}
