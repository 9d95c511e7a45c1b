// Package atlas generates lightmap UV atlases for triangle meshes.
//
// A mesh is split into charts of edge-connected, nearly coplanar triangles.
// Each chart is flattened onto its own plane, the chart rectangles are packed
// onto a square texture of Options.Resolution texels and the result is scaled
// to the unit square. Vertices shared by more than one chart are duplicated;
// Output.Xref maps every output vertex back to the input vertex it came from.
package atlas

import (
	"errors"
	"fmt"
	"slices"

	"github.com/taigrr/atlasgen/pkg/math3d"
	"github.com/taigrr/atlasgen/pkg/scene"
)

var (
	// ErrUnsupportedMode is returned for point and line primitives.
	ErrUnsupportedMode = errors.New("unsupported primitive mode")
	// ErrEmptyMesh is returned when the input draws no triangles.
	ErrEmptyMesh = errors.New("mesh has no triangles")
	// ErrIndexRange is returned when an index refers past the vertex streams.
	ErrIndexRange = errors.New("index out of range")
	// ErrAtlasFull is returned when the charts cannot be packed at any scale.
	ErrAtlasFull = errors.New("charts do not fit the atlas")
)

// Options control chart segmentation and packing.
type Options struct {
	Resolution    int     // atlas width and height in texels
	Padding       int     // texels between charts and around the border
	MaxChartAngle float64 // degrees a face normal may deviate from its chart
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Resolution:    1024,
		Padding:       2,
		MaxChartAngle: 1,
	}
}

// Input is the geometry of one primitive.
type Input struct {
	Positions [][3]float32
	Normals   [][3]float32 // optional
	Indices   []uint32     // nil for non-indexed primitives
	Mode      scene.PrimitiveMode
}

// Chart is one flattened region of the mesh.
type Chart struct {
	Rect  math3d.Rect // in UV space
	Faces []int       // output triangle numbers
}

// Output is the unwrapped geometry. It is always a triangle list.
type Output struct {
	Positions [][3]float32
	Normals   [][3]float32 // nil if the input had none
	UVs       [][2]float32
	Indices   []uint32
	// Xref[i] is the input vertex output vertex i was copied from.
	Xref   []uint32
	Charts []Chart
	// TopologyChanged reports whether vertices were split, dropped or
	// reordered, or the primitive was converted to a triangle list.
	TopologyChanged bool
}

//go:generate mockgen -destination=./mocks/mock_generator.go -package=mocks github.com/taigrr/atlasgen/pkg/atlas Generator

// Generator assigns atlas coordinates to a primitive.
type Generator interface {
	Unwrap(in Input) (*Output, error)
}

// Packer is the planar chart Generator.
type Packer struct {
	opts Options
}

// New creates a Packer. A zero Resolution or MaxChartAngle takes its
// default and a negative Padding is treated as zero.
func New(opts Options) *Packer {
	def := DefaultOptions()
	if opts.Resolution <= 0 {
		opts.Resolution = def.Resolution
	}
	if opts.Padding < 0 {
		opts.Padding = 0
	}
	if opts.MaxChartAngle <= 0 {
		opts.MaxChartAngle = def.MaxChartAngle
	}
	return &Packer{opts: opts}
}

// Options returns the effective options.
func (p *Packer) Options() Options {
	return p.opts
}

// Unwrap implements Generator.
func (p *Packer) Unwrap(in Input) (*Output, error) {
	if len(in.Normals) != 0 && len(in.Normals) != len(in.Positions) {
		return nil, fmt.Errorf("unwrap: %d normals for %d positions", len(in.Normals), len(in.Positions))
	}
	tris, err := triangulate(in)
	if err != nil {
		return nil, fmt.Errorf("unwrap: %w", err)
	}
	if len(tris) == 0 {
		return nil, fmt.Errorf("unwrap: %w", ErrEmptyMesh)
	}

	charts := segment(in.Positions, tris, p.opts.MaxChartAngle)
	for _, c := range charts {
		c.flatten(in.Positions, tris)
	}
	placements, scale, err := pack(charts, p.opts.Resolution, p.opts.Padding)
	if err != nil {
		return nil, fmt.Errorf("unwrap: %w", err)
	}

	out := build(in, tris, charts, placements, scale, float64(p.opts.Resolution))
	out.TopologyChanged = in.Mode != scene.ModeTriangles ||
		len(out.Positions) != len(in.Positions) ||
		!slices.Equal(out.Indices, triangleList(tris))
	return out, nil
}

// build emits one output vertex per (chart, input vertex) pair.
func build(in Input, tris [][3]uint32, charts []*chart, placements []placement, scale, res float64) *Output {
	out := &Output{
		Indices: make([]uint32, 0, len(tris)*3),
		Charts:  make([]Chart, len(charts)),
	}
	if len(in.Normals) != 0 {
		out.Normals = [][3]float32{}
	}

	for ci, c := range charts {
		pl := placements[ci]
		remap := make(map[uint32]uint32, len(c.local))
		for _, f := range c.faces {
			for _, v := range tris[f] {
				nv, ok := remap[v]
				if !ok {
					nv = uint32(len(out.Positions))
					remap[v] = nv

					local := c.local[v].Sub(c.bounds.Min).Scale(scale)
					s := (float64(pl.x) + local.X) / res
					t := (float64(pl.y) + local.Y) / res
					out.Positions = append(out.Positions, in.Positions[v])
					if out.Normals != nil {
						out.Normals = append(out.Normals, in.Normals[v])
					}
					out.UVs = append(out.UVs, [2]float32{clamp01(s), clamp01(t)})
					out.Xref = append(out.Xref, v)
				}
				out.Indices = append(out.Indices, nv)
			}
			out.Charts[ci].Faces = append(out.Charts[ci].Faces, len(out.Indices)/3-1)
		}
		out.Charts[ci].Rect = math3d.Rect{
			Min: math3d.V2(float64(pl.x)/res, float64(pl.y)/res),
			Max: math3d.V2(float64(pl.x+pl.w)/res, float64(pl.y+pl.h)/res),
		}
	}
	return out
}

func clamp01(v float64) float32 {
	return float32(min(max(v, 0), 1))
}

func triangleList(tris [][3]uint32) []uint32 {
	out := make([]uint32, 0, len(tris)*3)
	for _, t := range tris {
		out = append(out, t[:]...)
	}
	return out
}

// triangulate returns the triangles drawn by in as index triples.
func triangulate(in Input) ([][3]uint32, error) {
	if !in.Mode.IsTriangles() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, in.Mode)
	}

	idx := in.Indices
	if idx == nil {
		idx = make([]uint32, len(in.Positions))
		for i := range idx {
			idx[i] = uint32(i)
		}
	}
	for _, i := range idx {
		if int(i) >= len(in.Positions) {
			return nil, fmt.Errorf("%w: %d with %d vertices", ErrIndexRange, i, len(in.Positions))
		}
	}

	var tris [][3]uint32
	switch in.Mode {
	case scene.ModeTriangles:
		for i := 0; i+2 < len(idx); i += 3 {
			tris = append(tris, [3]uint32{idx[i], idx[i+1], idx[i+2]})
		}
	case scene.ModeTriangleStrip:
		for i := 0; i+2 < len(idx); i++ {
			// odd triangles swap their first two vertices to keep the winding
			if i%2 == 0 {
				tris = append(tris, [3]uint32{idx[i], idx[i+1], idx[i+2]})
			} else {
				tris = append(tris, [3]uint32{idx[i+1], idx[i], idx[i+2]})
			}
		}
	case scene.ModeTriangleFan:
		for i := 1; i+1 < len(idx); i++ {
			tris = append(tris, [3]uint32{idx[i], idx[i+1], idx[0]})
		}
	}
	return tris, nil
}
