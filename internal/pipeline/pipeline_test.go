package pipeline

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taigrr/atlasgen/pkg/atlas"
	"github.com/taigrr/atlasgen/pkg/atlas/mocks"
	"github.com/taigrr/atlasgen/pkg/gltfwrite"
	"github.com/taigrr/atlasgen/pkg/models"
	"github.com/taigrr/atlasgen/pkg/render"
)

// quadBuffer holds positions, normals, uvs and uint16 indices of a unit
// square drawn as two triangles.
func quadBuffer() []byte {
	var buf bytes.Buffer
	for _, v := range []any{
		[][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		[][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		[][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}},
		[]uint16{0, 1, 2, 0, 2, 3},
	} {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

func quadDataURI() string {
	return "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(quadBuffer())
}

// quadDocument returns a document with a triangle mesh "Quad" and a line
// mesh "Wire". extra is spliced into the Quad attributes.
func quadDocument(uri, extra string) []byte {
	return fmt.Appendf(nil, `{
  "asset": {"version": "2.0", "generator": "fixture"},
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
      "attributes": {"TEXCOORD_0": 2, %s"NORMAL": 1, "POSITION": 0},
      "indices": 3,
      "material": 0
    }]
  }, {
    "name": "Wire",
    "primitives": [{"attributes": {"POSITION": 0}, "mode": 1}]
  }]
}`, uri, len(quadBuffer()), extra)
}

// output is the subset of the written document the tests inspect.
type output struct {
	Asset struct {
		Generator string `json:"generator"`
		Version   string `json:"version"`
	} `json:"asset"`
	Meshes []struct {
		Name       string `json:"name"`
		Primitives []struct {
			Mode       *int           `json:"mode"`
			Indices    *int           `json:"indices"`
			Material   *int           `json:"material"`
			Attributes map[string]int `json:"attributes"`
		} `json:"primitives"`
	} `json:"meshes"`
}

func readOutput(t *testing.T, path string) output {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out output
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func writeFixture(t *testing.T, dir, name string, doc []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, doc, 0o644))
	return path
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.bin"), quadBuffer(), 0o644))
	in := writeFixture(t, dir, "quad.gltf", quadDocument("quad.bin", ""))
	outPath := filepath.Join(dir, "out.gltf")

	report, err := New().Run(Options{
		Input:  in,
		Output: outPath,
		Writer: gltfwrite.DefaultOptions(),
	})
	require.NoError(t, err)

	assert.Equal(t, in, report.Input)
	assert.False(t, report.Found)
	assert.Equal(t, 2, report.Meshes)
	assert.Equal(t, 2, report.Primitives)
	assert.Equal(t, 1, report.Unwrapped)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Charts)
	assert.Equal(t, 4, report.Vertices)
	assert.Empty(t, report.Textures)

	out := readOutput(t, outPath)
	assert.Equal(t, "2.0", out.Asset.Version)
	assert.Equal(t, "fixture", out.Asset.Generator)
	require.Len(t, out.Meshes, 2)

	quad := out.Meshes[0].Primitives[0]
	assert.Nil(t, quad.Mode)
	require.NotNil(t, quad.Material)
	assert.Equal(t, 0, *quad.Material)
	// new streams are appended after the four source accessors
	assert.Equal(t, map[string]int{
		"POSITION":   4,
		"NORMAL":     5,
		"TEXCOORD_0": 6,
		"TEXCOORD_1": 7,
	}, quad.Attributes)
	require.NotNil(t, quad.Indices)
	assert.Equal(t, 8, *quad.Indices)

	wire := out.Meshes[1].Primitives[0]
	require.NotNil(t, wire.Mode)
	assert.Equal(t, 1, *wire.Mode)
	assert.Equal(t, map[string]int{"POSITION": 0}, wire.Attributes)
}

func TestRunDiscard(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir, "quad.gltf", quadDocument(quadDataURI(), ""))
	outPath := filepath.Join(dir, "out.gltf")

	_, err := New().Run(Options{Input: in, Output: outPath, Discard: true})
	require.NoError(t, err)

	quad := readOutput(t, outPath).Meshes[0].Primitives[0]
	assert.Nil(t, quad.Material)
	assert.Equal(t, map[string]int{
		"POSITION":   4,
		"NORMAL":     5,
		"TEXCOORD_0": 6,
	}, quad.Attributes)
	require.NotNil(t, quad.Indices)
	assert.Equal(t, 7, *quad.Indices)
}

func TestRunLegacyDialect(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir, "quad.gltf", quadDocument(quadDataURI(), ""))
	outPath := filepath.Join(dir, "out.gltf")

	_, err := New().Run(Options{
		Input:  in,
		Output: outPath,
		Writer: gltfwrite.Options{Dialect: gltfwrite.DialectLegacy},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "'TEXCOORD_1'")
	assert.True(t, bytes.HasSuffix(data, []byte("\n}\n")))
}

func TestRunDirectoryInput(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "notes.txt", []byte("not a model"))
	writeFixture(t, dir, "b.gltf", quadDocument(quadDataURI(), ""))
	want := writeFixture(t, dir, "a.gltf", quadDocument(quadDataURI(), ""))

	report, err := New().Run(Options{Input: dir, Output: filepath.Join(t.TempDir(), "out.gltf")})
	require.NoError(t, err)
	assert.True(t, report.Found)
	assert.Equal(t, want, report.Input)
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeFixture(t, dir, "good.gltf", quadDocument(quadDataURI(), ""))
	glb := writeFixture(t, dir, "model.glb", []byte("glTF"))
	empty := writeFixture(t, dir, "empty.gltf", nil)
	malformed := writeFixture(t, dir, "malformed.gltf", []byte(`{"asset": `))
	noBuffer := writeFixture(t, dir, "nobuffer.gltf", quadDocument("missing.bin", ""))
	emptyDir := filepath.Join(dir, "empty")
	require.NoError(t, os.Mkdir(emptyDir, 0o755))
	out := filepath.Join(dir, "out.gltf")

	tests := []struct {
		name   string
		input  string
		output string
		want   error
	}{
		{"missing input", filepath.Join(dir, "nope.gltf"), out, ErrInputNotFound},
		{"directory without gltf", emptyDir, out, ErrNoGLTF},
		{"input extension", glb, out, ErrExtension},
		{"output extension", good, filepath.Join(dir, "out.glb"), ErrExtension},
		{"empty file", empty, out, ErrRead},
		{"malformed", malformed, out, models.ErrMalformed},
		{"missing buffer", noBuffer, out, models.ErrBufferLoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Run(Options{Input: tt.input, Output: tt.output})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.NoFileExists(t, out)
}

func TestMissingInputMessage(t *testing.T) {
	_, _, err := ResolveInput("nowhere.gltf")
	assert.EqualError(t, err, "nowhere.gltf not found")
}

func TestCheckExtensionsIsCaseSensitive(t *testing.T) {
	assert.NoError(t, CheckExtensions("a.gltf", "b.gltf"))
	assert.ErrorIs(t, CheckExtensions("a.GLTF", "b.gltf"), ErrExtension)
}

func TestRunGeneratorError(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	boom := errors.New("boom")
	gen.EXPECT().Unwrap(gomock.Any()).Return(nil, boom)

	dir := t.TempDir()
	in := writeFixture(t, dir, "quad.gltf", quadDocument(quadDataURI(), ""))
	outPath := filepath.Join(dir, "out.gltf")

	_, err := New(WithGenerator(gen)).Run(Options{Input: in, Output: outPath})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "mesh 0 primitive 0")
	assert.NoFileExists(t, outPath)
}

func TestRunInconsistentGeneratorOutput(t *testing.T) {
	tests := map[string]struct {
		out  *atlas.Output
		want string
	}{
		"uv count": {&atlas.Output{
			Positions: make([][3]float32, 2),
			Normals:   make([][3]float32, 2),
			UVs:       make([][2]float32, 1),
			Xref:      []uint32{0, 1},
		}, "2 positions, 1 uvs"},
		"xref range": {&atlas.Output{
			Positions: make([][3]float32, 1),
			Normals:   make([][3]float32, 1),
			UVs:       make([][2]float32, 1),
			Xref:      []uint32{9},
		}, "xref 9"},
		"index range": {&atlas.Output{
			Positions: make([][3]float32, 1),
			Normals:   make([][3]float32, 1),
			UVs:       make([][2]float32, 1),
			Xref:      []uint32{0},
			Indices:   []uint32{0, 0, 3},
		}, "index 3"},
		"missing normals": {&atlas.Output{
			Positions: make([][3]float32, 4),
			UVs:       make([][2]float32, 4),
			Xref:      []uint32{0, 1, 2, 3},
			Indices:   []uint32{0, 1, 2, 0, 2, 3},
		}, "normals dropped"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			gen := mocks.NewMockGenerator(ctrl)
			gen.EXPECT().Unwrap(gomock.Any()).Return(tt.out, nil)

			dir := t.TempDir()
			in := writeFixture(t, dir, "quad.gltf", quadDocument(quadDataURI(), ""))
			outPath := filepath.Join(dir, "out.gltf")
			_, err := New(WithGenerator(gen)).Run(Options{Input: in, Output: outPath})
			assert.ErrorIs(t, err, ErrAtlasOutput)
			assert.ErrorContains(t, err, tt.want)
			assert.NoFileExists(t, outPath)
		})
	}
}

func TestRunTopologyChange(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Unwrap(gomock.Any()).DoAndReturn(func(in atlas.Input) (*atlas.Output, error) {
		// split the quad into two unshared triangles
		xref := []uint32{0, 1, 2, 0, 2, 3}
		out := &atlas.Output{Xref: xref, TopologyChanged: true}
		for i, v := range xref {
			out.Positions = append(out.Positions, in.Positions[v])
			out.Normals = append(out.Normals, in.Normals[v])
			out.UVs = append(out.UVs, [2]float32{0.5, 0.5})
			out.Indices = append(out.Indices, uint32(i))
		}
		return out, nil
	})

	core, logs := observer.New(zapcore.WarnLevel)
	dir := t.TempDir()
	in := writeFixture(t, dir, "quad.gltf", quadDocument(quadDataURI(), `"COLOR_0": 1, `))
	outPath := filepath.Join(dir, "out.gltf")

	report, err := New(WithGenerator(gen), WithLogger(zap.New(core))).Run(Options{Input: in, Output: outPath})
	require.NoError(t, err)
	assert.Equal(t, 6, report.Vertices)

	quad := readOutput(t, outPath).Meshes[0].Primitives[0]
	assert.NotContains(t, quad.Attributes, "COLOR_0")
	assert.Contains(t, quad.Attributes, "TEXCOORD_0")
	assert.Contains(t, quad.Attributes, "TEXCOORD_1")

	dropped := logs.FilterMessage("dropping attribute that cannot follow the new topology").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, "COLOR_0", dropped[0].ContextMap()["attribute"])
}

func TestRunLogsSkippedPrimitives(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	dir := t.TempDir()
	in := writeFixture(t, dir, "quad.gltf", quadDocument(quadDataURI(), ""))

	_, err := New(WithLogger(zap.New(core))).Run(Options{Input: in, Output: filepath.Join(dir, "out.gltf")})
	require.NoError(t, err)

	skipped := logs.FilterMessage("skipping primitive").All()
	require.Len(t, skipped, 1)
	fields := skipped[0].ContextMap()
	assert.Equal(t, "Wire", fields["name"])
	assert.Equal(t, "lines", fields["mode"])
}

func TestRunPreview(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir, "quad.gltf", quadDocument(quadDataURI(), ""))
	preview := filepath.Join(dir, "atlas.png")

	_, err := New().Run(Options{
		Input:       in,
		Output:      filepath.Join(dir, "out.gltf"),
		PreviewPath: preview,
		Preview:     render.PreviewOptions{Size: 32, Supersample: 1},
	})
	require.NoError(t, err)
	assert.FileExists(t, preview)
}
