package gltfwrite

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/taigrr/atlasgen/pkg/scene"
)

// ErrCreateOutput is returned when the destination file cannot be opened.
var ErrCreateOutput = errors.New("create output")

// placeholderKeys are the top-level sections that are written as empty
// objects, in output order. They are not serialized yet.
var placeholderKeys = []string{
	"accessors",
	"bufferViews",
	"buffers",
	"materials",
	"images",
	"textures",
	"samplers",
	"skins",
	"cameras",
	"nodes",
	"scenes",
	"scene",
	"animations",
}

// PlaceholderKeys returns a copy of the top-level sections Encode writes as
// empty objects, in output order.
func PlaceholderKeys() []string {
	return slices.Clone(placeholderKeys)
}

// Encode writes doc to w. The traversal order is fixed: asset (only when at
// least one field is set), meshes, then the placeholder sections.
func Encode(w io.Writer, doc *scene.Document, opts Options) error {
	bw := bufio.NewWriter(w)
	e := NewWriter(bw, opts)

	e.Begin()
	if !doc.Asset.IsEmpty() {
		writeAsset(e, doc.Asset)
	}

	e.BeginArray("meshes")
	for _, m := range doc.Meshes {
		if m != nil {
			writeMesh(e, m)
		}
	}
	e.EndArray()

	for _, key := range placeholderKeys {
		e.BeginObject(key)
		e.EndObject()
	}

	if err := e.End(); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// WriteFile creates path and encodes doc into it. The file is closed on
// every path; a partially written file is left in place on failure.
func WriteFile(path string, doc *scene.Document, opts Options) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateOutput, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()

	return Encode(f, doc, opts)
}

func writeAsset(e *Writer, a scene.Asset) {
	minVersionKey := "minVersion"
	if e.dialect == DialectLegacy {
		minVersionKey = "min_version"
	}

	e.BeginObject("asset")
	e.String("copyright", a.Copyright)
	e.String("generator", a.Generator)
	e.String("version", a.Version)
	e.String(minVersionKey, a.MinVersion)
	e.EndObject()
}

func writeMesh(e *Writer, m *scene.Mesh) {
	e.BeginObject("")
	e.String("name", m.Name)

	e.BeginArray("primitives")
	for _, p := range m.Primitives {
		if p == nil {
			continue
		}
		e.BeginObject("")
		writePrimitive(e, p)
		e.EndObject()
	}
	e.EndArray()

	// TODO: mesh weights once morph targets are carried through scene.Primitive.
	e.EndObject()
}

func writePrimitive(e *Writer, p *scene.Primitive) {
	e.Int("mode", int(p.Mode), int(scene.DefaultMode))
	e.Index("indices", p.Indices)
	e.Index("material", p.Material)

	if e.dialect == DialectLegacy {
		e.BeginArray("attributes")
	} else {
		e.BeginObject("attributes")
	}
	for _, a := range p.Attributes {
		accessor := a.Accessor
		e.Index(a.Name, &accessor)
	}
	if e.dialect == DialectLegacy {
		e.EndArray()
	} else {
		e.EndObject()
	}
}
