package models

import (
	"fmt"
	"sort"

	"github.com/qmuntal/gltf"

	"github.com/taigrr/atlasgen/pkg/math3d"
	"github.com/taigrr/atlasgen/pkg/scene"
)

// Geometry holds the vertex streams of one primitive.
type Geometry struct {
	Mode      scene.PrimitiveMode
	Positions [][3]float32
	Normals   [][3]float32 // nil if the primitive has no NORMAL
	Indices   []uint32     // nil for non-indexed primitives
	TexCoords map[string][][2]float32

	// Bounding box (calculated on read)
	BoundsMin math3d.Vec3
	BoundsMax math3d.Vec3
}

// ReadGeometry reads the POSITION, NORMAL, TEXCOORD_n and index streams of p
// from doc. Other attributes are not read.
func ReadGeometry(doc *gltf.Document, p *scene.Primitive) (*Geometry, error) {
	posIdx, ok := p.Attribute(gltf.POSITION)
	if !ok {
		return nil, fmt.Errorf("primitive has no %s attribute", gltf.POSITION)
	}

	g := &Geometry{Mode: p.Mode, TexCoords: make(map[string][][2]float32)}

	var err error
	g.Positions, err = ReadVec3(doc, posIdx)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	if normIdx, ok := p.Attribute(gltf.NORMAL); ok {
		g.Normals, err = ReadVec3(doc, normIdx)
		if err != nil {
			return nil, fmt.Errorf("read normals: %w", err)
		}
		if len(g.Normals) != len(g.Positions) {
			return nil, fmt.Errorf("read normals: %d normals for %d positions", len(g.Normals), len(g.Positions))
		}
	}

	for _, name := range p.TexCoordSets() {
		idx, _ := p.Attribute(name)
		uvs, err := ReadVec2(doc, idx)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if len(uvs) != len(g.Positions) {
			return nil, fmt.Errorf("read %s: %d coordinates for %d positions", name, len(uvs), len(g.Positions))
		}
		g.TexCoords[name] = uvs
	}

	if p.Indices != nil {
		g.Indices, err = ReadIndices(doc, *p.Indices)
		if err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
	}

	g.CalculateBounds()
	return g, nil
}

// TexCoordNames returns the names of the loaded UV sets in sorted order.
func (g *Geometry) TexCoordNames() []string {
	names := make([]string, 0, len(g.TexCoords))
	for name := range g.TexCoords {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VertexCount returns the number of vertices.
func (g *Geometry) VertexCount() int {
	return len(g.Positions)
}

// IndexCount returns the number of indices, or the vertex count when the
// primitive is not indexed.
func (g *Geometry) IndexCount() int {
	if g.Indices == nil {
		return len(g.Positions)
	}
	return len(g.Indices)
}

// TriangleCount returns the number of triangles the primitive draws.
func (g *Geometry) TriangleCount() int {
	n := g.IndexCount()
	switch g.Mode {
	case scene.ModeTriangles:
		return n / 3
	case scene.ModeTriangleStrip, scene.ModeTriangleFan:
		return max(n-2, 0)
	default:
		return 0
	}
}

// CalculateBounds computes the axis-aligned bounding box.
func (g *Geometry) CalculateBounds() {
	if len(g.Positions) == 0 {
		g.BoundsMin, g.BoundsMax = math3d.Zero3(), math3d.Zero3()
		return
	}

	g.BoundsMin = toVec3(g.Positions[0])
	g.BoundsMax = g.BoundsMin
	for _, p := range g.Positions[1:] {
		v := toVec3(p)
		g.BoundsMin = g.BoundsMin.Min(v)
		g.BoundsMax = g.BoundsMax.Max(v)
	}
}

// Size returns the dimensions of the bounding box.
func (g *Geometry) Size() math3d.Vec3 {
	return g.BoundsMax.Sub(g.BoundsMin)
}

func toVec3(p [3]float32) math3d.Vec3 {
	return math3d.V3(float64(p[0]), float64(p[1]), float64(p[2]))
}
