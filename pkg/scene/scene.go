// Package scene holds the in-memory glTF scene description consumed by the
// atlasgen writer.
//
// The model is deliberately partial: it carries the asset block and the mesh
// hierarchy with explicit integer references into the accessor and material
// sequences of the source document. Accessors, materials and the rest of the
// glTF object graph stay in the parser's own representation.
package scene

import (
	"sort"
	"strconv"
	"strings"
)

// PrimitiveMode is the topology of a primitive, using the glTF encoding.
type PrimitiveMode int

const (
	ModePoints        PrimitiveMode = 0
	ModeLines         PrimitiveMode = 1
	ModeLineLoop      PrimitiveMode = 2
	ModeLineStrip     PrimitiveMode = 3
	ModeTriangles     PrimitiveMode = 4 // glTF default
	ModeTriangleStrip PrimitiveMode = 5
	ModeTriangleFan   PrimitiveMode = 6
)

// DefaultMode is the mode a primitive has when the source omits it.
const DefaultMode = ModeTriangles

var modeNames = [...]string{
	ModePoints:        "points",
	ModeLines:         "lines",
	ModeLineLoop:      "line-loop",
	ModeLineStrip:     "line-strip",
	ModeTriangles:     "triangles",
	ModeTriangleStrip: "triangle-strip",
	ModeTriangleFan:   "triangle-fan",
}

func (m PrimitiveMode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "mode(" + strconv.Itoa(int(m)) + ")"
}

// IsTriangles reports whether the mode describes filled triangles.
func (m PrimitiveMode) IsTriangles() bool {
	return m == ModeTriangles || m == ModeTriangleStrip || m == ModeTriangleFan
}

// Asset holds the optional glTF asset metadata strings.
type Asset struct {
	Copyright  string
	Generator  string
	Version    string
	MinVersion string
}

// IsEmpty reports whether every asset field is empty.
func (a Asset) IsEmpty() bool {
	return a.Copyright == "" && a.Generator == "" && a.Version == "" && a.MinVersion == ""
}

// Attribute binds a semantic name (POSITION, NORMAL, TEXCOORD_0, ...) to an
// accessor index.
type Attribute struct {
	Name     string
	Accessor int
}

// Primitive is a single drawable unit of a mesh.
type Primitive struct {
	Mode       PrimitiveMode
	Indices    *int // accessor index, nil if the primitive is not indexed
	Material   *int // material index, nil if none
	Attributes []Attribute
}

// NewPrimitive returns a primitive with the default topology.
func NewPrimitive() *Primitive {
	return &Primitive{Mode: DefaultMode}
}

// Attribute returns the accessor bound to name.
func (p *Primitive) Attribute(name string) (int, bool) {
	for _, a := range p.Attributes {
		if a.Name == name {
			return a.Accessor, true
		}
	}
	return 0, false
}

// SetAttribute rebinds name to accessor, appending it if not present.
// Existing attributes keep their position.
func (p *Primitive) SetAttribute(name string, accessor int) {
	for i := range p.Attributes {
		if p.Attributes[i].Name == name {
			p.Attributes[i].Accessor = accessor
			return
		}
	}
	p.Attributes = append(p.Attributes, Attribute{Name: name, Accessor: accessor})
}

// RemoveAttributes drops every attribute whose name starts with prefix and
// returns how many were removed.
func (p *Primitive) RemoveAttributes(prefix string) int {
	kept := p.Attributes[:0]
	for _, a := range p.Attributes {
		if !strings.HasPrefix(a.Name, prefix) {
			kept = append(kept, a)
		}
	}
	removed := len(p.Attributes) - len(kept)
	p.Attributes = kept
	return removed
}

// TexCoordSets returns the TEXCOORD_n attribute names in set order.
func (p *Primitive) TexCoordSets() []string {
	var names []string
	for _, a := range p.Attributes {
		if _, ok := texCoordSet(a.Name); ok {
			names = append(names, a.Name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		a, _ := texCoordSet(names[i])
		b, _ := texCoordSet(names[j])
		return a < b
	})
	return names
}

// NextTexCoord returns the first unused TEXCOORD_n name.
func (p *Primitive) NextTexCoord() string {
	next := 0
	for _, a := range p.Attributes {
		if n, ok := texCoordSet(a.Name); ok && n >= next {
			next = n + 1
		}
	}
	return TexCoord(next)
}

// TexCoord returns the attribute name of UV set n.
func TexCoord(n int) string {
	return "TEXCOORD_" + strconv.Itoa(n)
}

func texCoordSet(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "TEXCOORD_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Mesh is a named list of primitives.
type Mesh struct {
	Name       string
	Primitives []*Primitive
}

// Document is the root of the scene description.
type Document struct {
	Asset  Asset
	Meshes []*Mesh

	// Lengths of the owning sequences that references point into.
	AccessorCount int
	MaterialCount int
}

// Index returns a reference to element i of an owning sequence.
func Index(i int) *int {
	return &i
}
