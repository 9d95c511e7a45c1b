// Package pipeline runs atlasgen end to end: it resolves the input, loads the
// glTF document, adds a lightmap UV set to every triangle primitive and
// writes the result.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/taigrr/atlasgen/pkg/atlas"
	"github.com/taigrr/atlasgen/pkg/gltfwrite"
	"github.com/taigrr/atlasgen/pkg/models"
	"github.com/taigrr/atlasgen/pkg/render"
	"github.com/taigrr/atlasgen/pkg/scene"
)

var (
	// ErrInputNotFound is returned when the input path does not exist.
	ErrInputNotFound = errors.New("not found")
	// ErrNoGLTF is returned for an input directory without a .gltf file.
	ErrNoGLTF = errors.New("no glTF file found")
	// ErrExtension is returned when the input or output is not a .gltf path.
	ErrExtension = errors.New("file extension must be gltf")
	// ErrRead is returned when the input is empty or cannot be read.
	ErrRead = errors.New("unable to read input")
	// ErrGeometry is returned when a primitive's vertex data cannot be read.
	ErrGeometry = errors.New("read geometry")
	// ErrAtlasOutput is returned when a generator's output is inconsistent.
	ErrAtlasOutput = errors.New("inconsistent atlas output")
)

const gltfExt = ".gltf"

// Options configure a single run.
type Options struct {
	Input  string
	Output string

	// Discard drops the source UV sets and material bindings, so the
	// lightmap set becomes TEXCOORD_0.
	Discard bool

	Writer gltfwrite.Options
	Atlas  atlas.Options

	// PreviewPath enables the atlas preview image (.png or .webp).
	PreviewPath string
	Preview     render.PreviewOptions
}

// Report summarizes a run.
type Report struct {
	Input string // resolved input file
	Found bool   // Input was picked from a directory

	Meshes     int
	Primitives int
	Unwrapped  int
	Skipped    int
	Charts     int
	Vertices   int

	Textures []models.TextureInfo
}

// Pipeline converts glTF files.
type Pipeline struct {
	log *zap.Logger
	gen atlas.Generator
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithGenerator replaces the atlas generator built from Options.Atlas.
func WithGenerator(gen atlas.Generator) Option {
	return func(p *Pipeline) { p.gen = gen }
}

// New creates a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{log: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ResolveInput returns the .gltf file named by path. For a directory it
// returns the first .gltf entry in name order and found is true.
func ResolveInput(path string) (file string, found bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("%s %w", path, ErrInputNotFound)
		}
		return "", false, fmt.Errorf("stat input: %w", err)
	}
	if !info.IsDir() {
		return path, false, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", false, fmt.Errorf("list %s: %w", path, err)
	}
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == gltfExt {
			return filepath.Join(path, e.Name()), true, nil
		}
	}
	return "", false, fmt.Errorf("%w in %s", ErrNoGLTF, path)
}

// CheckExtensions verifies that both paths name .gltf files.
func CheckExtensions(input, output string) error {
	for _, p := range []string{input, output} {
		if filepath.Ext(p) != gltfExt {
			return fmt.Errorf("%w: %s", ErrExtension, p)
		}
	}
	return nil
}

// Run converts opts.Input into opts.Output.
func (p *Pipeline) Run(opts Options) (*Report, error) {
	input, found, err := ResolveInput(opts.Input)
	if err != nil {
		return nil, err
	}
	if err := CheckExtensions(input, opts.Output); err != nil {
		return nil, err
	}
	report := &Report{Input: input, Found: found}

	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrRead, input, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w %s: empty file", ErrRead, input)
	}

	fsys := os.DirFS(filepath.Dir(input))
	src, err := models.NewLoader(fsys).Load(data)
	if err != nil {
		return nil, err
	}
	p.log.Debug("loaded document",
		zap.String("input", input),
		zap.Int("meshes", len(src.Scene.Meshes)),
		zap.Int("accessors", src.Scene.AccessorCount),
	)

	if opts.Discard {
		p.log.Info("discarding source textures", zap.Int("images", len(src.Doc.Images)))
	} else {
		report.Textures = models.TextureInventory(src.Doc, fsys)
		p.logTextures(report.Textures)
	}

	gen := p.gen
	if gen == nil {
		gen = atlas.New(opts.Atlas)
	}

	var atlases []*atlas.Output
	report.Meshes = len(src.Scene.Meshes)
	for mi, mesh := range src.Scene.Meshes {
		for pi, prim := range mesh.Primitives {
			report.Primitives++
			log := p.log.With(zap.Int("mesh", mi), zap.String("name", mesh.Name), zap.Int("primitive", pi))

			if !prim.Mode.IsTriangles() {
				log.Info("skipping primitive", zap.Stringer("mode", prim.Mode))
				report.Skipped++
				continue
			}
			if _, ok := prim.Attribute(gltf.POSITION); !ok {
				log.Warn("skipping primitive without POSITION")
				report.Skipped++
				continue
			}

			out, err := p.unwrap(src.Doc, prim, gen, opts.Discard, log)
			if err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}
			atlases = append(atlases, out)
			report.Unwrapped++
			report.Charts += len(out.Charts)
			report.Vertices += len(out.Positions)
		}
	}
	src.Scene.AccessorCount = len(src.Doc.Accessors)

	if err := gltfwrite.WriteFile(opts.Output, src.Scene, opts.Writer); err != nil {
		return nil, err
	}
	p.log.Info("wrote output",
		zap.String("output", opts.Output),
		zap.Int("unwrapped", report.Unwrapped),
		zap.Int("charts", report.Charts),
	)

	if opts.PreviewPath != "" {
		img := render.RenderAtlases(atlases, opts.Preview)
		if err := render.SaveImage(opts.PreviewPath, img); err != nil {
			return nil, fmt.Errorf("write preview: %w", err)
		}
		p.log.Info("wrote atlas preview", zap.String("path", opts.PreviewPath))
	}
	return report, nil
}

// unwrap generates the atlas of prim, appends the new vertex streams to doc
// and rebinds the primitive's attributes to them.
func (p *Pipeline) unwrap(doc *gltf.Document, prim *scene.Primitive, gen atlas.Generator, discard bool, log *zap.Logger) (*atlas.Output, error) {
	geo, err := models.ReadGeometry(doc, prim)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeometry, err)
	}
	out, err := gen.Unwrap(atlas.Input{
		Positions: geo.Positions,
		Normals:   geo.Normals,
		Indices:   geo.Indices,
		Mode:      geo.Mode,
	})
	if err != nil {
		return nil, err
	}
	if err := checkOutput(out, geo); err != nil {
		return nil, err
	}

	if out.TopologyChanged {
		kept := prim.Attributes[:0]
		for _, a := range prim.Attributes {
			if remappable(a.Name, geo) {
				kept = append(kept, a)
				continue
			}
			log.Warn("dropping attribute that cannot follow the new topology", zap.String("attribute", a.Name))
		}
		prim.Attributes = kept
	}

	prim.SetAttribute(gltf.POSITION, modeler.WritePosition(doc, out.Positions))
	if out.Normals != nil {
		prim.SetAttribute(gltf.NORMAL, modeler.WriteNormal(doc, out.Normals))
	}

	if discard {
		prim.RemoveAttributes(texCoordPrefix)
		prim.Material = nil
	} else {
		for _, name := range geo.TexCoordNames() {
			src := geo.TexCoords[name]
			uvs := make([][2]float32, len(out.Xref))
			for i, v := range out.Xref {
				uvs[i] = src[v]
			}
			prim.SetAttribute(name, modeler.WriteTextureCoord(doc, uvs))
		}
	}

	lightmap := prim.NextTexCoord()
	prim.SetAttribute(lightmap, modeler.WriteTextureCoord(doc, out.UVs))
	prim.Indices = scene.Index(modeler.WriteIndices(doc, out.Indices))
	prim.Mode = scene.ModeTriangles

	log.Debug("unwrapped primitive",
		zap.String("lightmap", lightmap),
		zap.Int("triangles", geo.TriangleCount()),
		zap.Float64("extent", geo.Size().Len()),
		zap.Int("charts", len(out.Charts)),
		zap.Int("vertices", len(out.Positions)),
		zap.Bool("topologyChanged", out.TopologyChanged),
	)
	return out, nil
}

const texCoordPrefix = "TEXCOORD_"

// checkOutput rejects generator output that cannot replace geo's streams.
// Normals present in the source must survive, since NORMAL stays bound.
func checkOutput(out *atlas.Output, geo *models.Geometry) error {
	n, vertices := len(out.Positions), len(geo.Positions)
	if len(out.UVs) != n || len(out.Xref) != n || (out.Normals != nil && len(out.Normals) != n) {
		return fmt.Errorf("%w: %d positions, %d uvs, %d xrefs", ErrAtlasOutput, n, len(out.UVs), len(out.Xref))
	}
	if len(geo.Normals) > 0 && out.Normals == nil {
		return fmt.Errorf("%w: normals dropped", ErrAtlasOutput)
	}
	for _, v := range out.Xref {
		if int(v) >= vertices {
			return fmt.Errorf("%w: xref %d with %d source vertices", ErrAtlasOutput, v, vertices)
		}
	}
	for _, i := range out.Indices {
		if int(i) >= n {
			return fmt.Errorf("%w: index %d with %d vertices", ErrAtlasOutput, i, n)
		}
	}
	return nil
}

// remappable reports whether attribute name is rewritten through the atlas
// cross-reference table.
func remappable(name string, geo *models.Geometry) bool {
	if name == gltf.POSITION || name == gltf.NORMAL {
		return true
	}
	_, ok := geo.TexCoords[name]
	return ok
}

func (p *Pipeline) logTextures(infos []models.TextureInfo) {
	for _, info := range infos {
		if info.Err != nil {
			p.log.Warn("unreadable texture",
				zap.Int("image", info.Index),
				zap.String("source", info.Source),
				zap.Error(info.Err),
			)
			continue
		}
		p.log.Info("carrying texture",
			zap.Int("image", info.Index),
			zap.String("name", info.Name),
			zap.String("format", info.Format),
			zap.Int("width", info.Width),
			zap.Int("height", info.Height),
		)
	}
}
