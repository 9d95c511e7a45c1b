package atlas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/atlasgen/pkg/math3d"
	"github.com/taigrr/atlasgen/pkg/scene"
)

const uvEps = 1e-5

// sharedCube is a unit cube with eight shared corners and outward-facing,
// counter-clockwise triangles.
func sharedCube() Input {
	return Input{
		Positions: [][3]float32{
			{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
			{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
		},
		Indices: []uint32{
			4, 5, 6, 4, 6, 7, // +z
			1, 0, 3, 1, 3, 2, // -z
			5, 1, 2, 5, 2, 6, // +x
			0, 4, 7, 0, 7, 3, // -x
			7, 6, 2, 7, 2, 3, // +y
			0, 1, 5, 0, 5, 4, // -y
		},
		Mode: scene.ModeTriangles,
	}
}

func quad() Input {
	return Input{
		Positions: [][3]float32{{0, 0, 0}, {2, 0, 0}, {2, 1, 0}, {0, 1, 0}},
		Normals:   [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
		Mode:      scene.ModeTriangles,
	}
}

// checkAtlas verifies the invariants every output must satisfy.
func checkAtlas(t *testing.T, in Input, out *Output) {
	t.Helper()
	require.Len(t, out.UVs, len(out.Positions))
	require.Len(t, out.Xref, len(out.Positions))
	require.Zero(t, len(out.Indices)%3)

	for i, uv := range out.UVs {
		assert.GreaterOrEqual(t, uv[0], float32(0))
		assert.LessOrEqual(t, uv[0], float32(1))
		assert.GreaterOrEqual(t, uv[1], float32(0))
		assert.LessOrEqual(t, uv[1], float32(1))
		assert.Equal(t, in.Positions[out.Xref[i]], out.Positions[i], "vertex %d", i)
		if in.Normals != nil {
			assert.Equal(t, in.Normals[out.Xref[i]], out.Normals[i])
		}
	}
	for _, idx := range out.Indices {
		assert.Less(t, int(idx), len(out.Positions))
	}

	faces := 0
	for i, c := range out.Charts {
		for j := i + 1; j < len(out.Charts); j++ {
			assert.False(t, c.Rect.Overlaps(out.Charts[j].Rect), "charts %d and %d overlap", i, j)
		}
		grown := math3d.Rect{Min: c.Rect.Min.Sub(math3d.V2(uvEps, uvEps)), Max: c.Rect.Max.Add(math3d.V2(uvEps, uvEps))}
		for _, f := range c.Faces {
			for _, v := range out.Indices[f*3 : f*3+3] {
				uv := out.UVs[v]
				assert.True(t, grown.Contains(math3d.V2(float64(uv[0]), float64(uv[1]))), "uv %v outside chart %d", uv, i)
			}
		}
		faces += len(c.Faces)
	}
	assert.Equal(t, len(out.Indices)/3, faces)
}

func uvDistance(out *Output, a, b uint32) float64 {
	pa, pb := out.UVs[a], out.UVs[b]
	return math3d.V2(float64(pa[0]), float64(pa[1])).Sub(math3d.V2(float64(pb[0]), float64(pb[1]))).Len()
}

func TestUnwrapQuad(t *testing.T) {
	in := quad()
	out, err := New(DefaultOptions()).Unwrap(in)
	require.NoError(t, err)
	checkAtlas(t, in, out)

	require.Len(t, out.Charts, 1)
	assert.Equal(t, []uint32{0, 1, 2, 3}, out.Xref)
	assert.Equal(t, in.Indices, out.Indices)
	assert.False(t, out.TopologyChanged)

	// the chart keeps the aspect ratio of the quad
	assert.InDelta(t, 2*uvDistance(out, 1, 2), uvDistance(out, 0, 1), uvEps)
}

func TestUnwrapSharedCube(t *testing.T) {
	in := sharedCube()
	out, err := New(DefaultOptions()).Unwrap(in)
	require.NoError(t, err)
	checkAtlas(t, in, out)

	assert.Len(t, out.Charts, 6)
	assert.Len(t, out.Positions, 24, "each corner is split across three faces")
	assert.Nil(t, out.Normals)
	assert.True(t, out.TopologyChanged)

	// every chart uses the same texel density
	var edge float64
	for _, c := range out.Charts {
		f := c.Faces[0]
		tri := out.Indices[f*3 : f*3+3]
		d := uvDistance(out, tri[0], tri[1])
		if edge == 0 {
			edge = d
		}
		assert.InDelta(t, edge, d, uvEps)
	}
}

func TestUnwrapPadding(t *testing.T) {
	opts := Options{Resolution: 64, Padding: 4, MaxChartAngle: 1}
	out, err := New(opts).Unwrap(sharedCube())
	require.NoError(t, err)

	gap := float64(opts.Padding) / float64(opts.Resolution)
	for i, a := range out.Charts {
		assert.GreaterOrEqual(t, a.Rect.Min.X, gap-uvEps)
		assert.GreaterOrEqual(t, a.Rect.Min.Y, gap-uvEps)
		assert.LessOrEqual(t, a.Rect.Max.X, 1-gap+uvEps)
		assert.LessOrEqual(t, a.Rect.Max.Y, 1-gap+uvEps)
		for _, b := range out.Charts[i+1:] {
			apart := a.Rect.Max.X+gap <= b.Rect.Min.X+uvEps || b.Rect.Max.X+gap <= a.Rect.Min.X+uvEps ||
				a.Rect.Max.Y+gap <= b.Rect.Min.Y+uvEps || b.Rect.Max.Y+gap <= a.Rect.Min.Y+uvEps
			assert.True(t, apart, "charts closer than the padding")
		}
	}
}

func TestUnwrapChartAngle(t *testing.T) {
	// two triangles folded by 45 degrees along the x axis
	in := Input{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, -1, 1}},
		Indices:   []uint32{0, 1, 2, 1, 0, 3},
		Mode:      scene.ModeTriangles,
	}

	out, err := New(Options{MaxChartAngle: 1}).Unwrap(in)
	require.NoError(t, err)
	assert.Len(t, out.Charts, 2)

	out, err = New(Options{MaxChartAngle: 60}).Unwrap(in)
	require.NoError(t, err)
	assert.Len(t, out.Charts, 1)
	checkAtlas(t, in, out)
}

func TestUnwrapStripAndFan(t *testing.T) {
	positions := [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}

	strip, err := New(DefaultOptions()).Unwrap(Input{Positions: positions, Mode: scene.ModeTriangleStrip})
	require.NoError(t, err)
	assert.Len(t, strip.Indices, 6)
	assert.Len(t, strip.Charts, 1, "strip winding is consistent")
	assert.True(t, strip.TopologyChanged)

	fan, err := New(DefaultOptions()).Unwrap(Input{
		Positions: positions,
		Indices:   []uint32{0, 1, 3, 2},
		Mode:      scene.ModeTriangleFan,
	})
	require.NoError(t, err)
	assert.Len(t, fan.Indices, 6)
	assert.Len(t, fan.Charts, 1)
	assert.True(t, fan.TopologyChanged)
}

func TestUnwrapNonIndexed(t *testing.T) {
	in := quad()
	in.Positions = [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}}
	in.Normals = nil
	in.Indices = nil

	out, err := New(DefaultOptions()).Unwrap(in)
	require.NoError(t, err)
	checkAtlas(t, in, out)
	assert.Equal(t, []uint32{0, 1, 2}, out.Indices)
}

func TestUnwrapDegenerate(t *testing.T) {
	in := Input{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {2, 0, 0}},
		Indices:   []uint32{0, 1, 2, 0, 1, 3},
		Mode:      scene.ModeTriangles,
	}
	out, err := New(DefaultOptions()).Unwrap(in)
	require.NoError(t, err)
	checkAtlas(t, in, out)
	assert.Len(t, out.Charts, 1, "the zero-area triangle joins its neighbour")
}

func TestUnwrapErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		in   Input
		want error
	}{
		{"lines", DefaultOptions(), Input{Positions: quad().Positions, Mode: scene.ModeLines}, ErrUnsupportedMode},
		{"points", DefaultOptions(), Input{Positions: quad().Positions, Mode: scene.ModePoints}, ErrUnsupportedMode},
		{"no vertices", DefaultOptions(), Input{Mode: scene.ModeTriangles}, ErrEmptyMesh},
		{"too few indices", DefaultOptions(), Input{Positions: quad().Positions, Indices: []uint32{0, 1}, Mode: scene.ModeTriangles}, ErrEmptyMesh},
		{"index range", DefaultOptions(), Input{Positions: quad().Positions, Indices: []uint32{0, 1, 4}, Mode: scene.ModeTriangles}, ErrIndexRange},
		{"no room", Options{Resolution: 4, Padding: 2}, quad(), ErrAtlasFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts).Unwrap(tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUnwrapNormalCountMismatch(t *testing.T) {
	in := quad()
	in.Normals = in.Normals[:2]
	_, err := New(DefaultOptions()).Unwrap(in)
	assert.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	p := New(Options{Padding: -1})
	assert.Equal(t, Options{Resolution: 1024, Padding: 0, MaxChartAngle: 1}, p.Options())
}
