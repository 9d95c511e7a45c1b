package models

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"github.com/qmuntal/gltf"
)

// TextureInfo describes one source image of a document.
type TextureInfo struct {
	Index  int
	Name   string
	Source string // uri, "bufferView N" or "data uri"
	Format string
	Width  int
	Height int
	Err    error
}

// TextureInventory decodes the header of every image in doc. Images that
// cannot be resolved or decoded are reported through TextureInfo.Err.
func TextureInventory(doc *gltf.Document, fsys fs.FS) []TextureInfo {
	infos := make([]TextureInfo, 0, len(doc.Images))
	for i, img := range doc.Images {
		info := TextureInfo{Index: i, Name: img.Name}

		data, source, err := imageBytes(doc, img, fsys)
		info.Source = source
		if err != nil {
			info.Err = err
			infos = append(infos, info)
			continue
		}

		cfg, format, err := decodeConfig(data)
		if err != nil {
			info.Err = fmt.Errorf("decode image: %w", err)
		} else {
			info.Format = format
			info.Width = cfg.Width
			info.Height = cfg.Height
		}
		infos = append(infos, info)
	}
	return infos
}

var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic = []byte{0xff, 0xd8, 0xff}
)

const tgaFooterSize = 26

// decodeConfig reads an image header. TGA has no magic number and its
// decoder claims every input, so it is tried only after PNG and JPEG.
func decodeConfig(data []byte) (image.Config, string, error) {
	var (
		format string
		decode func(io.Reader) (image.Config, error)
	)
	switch {
	case bytes.HasPrefix(data, pngMagic):
		format, decode = "png", png.DecodeConfig
	case bytes.HasPrefix(data, jpegMagic):
		format, decode = "jpeg", jpeg.DecodeConfig
	default:
		format, decode = "tga", tga.DecodeConfig
		// the decoder seeks to a 26 byte footer even when the file has none
		if n := len(data); n < tgaFooterSize {
			data = append(data[:n:n], make([]byte, tgaFooterSize-n)...)
		}
	}
	cfg, err := decode(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", err
	}
	return cfg, format, nil
}

func imageBytes(doc *gltf.Document, img *gltf.Image, fsys fs.FS) ([]byte, string, error) {
	if img.BufferView != nil {
		source := fmt.Sprintf("bufferView %d", *img.BufferView)
		if *img.BufferView < 0 || *img.BufferView >= len(doc.BufferViews) {
			return nil, source, fmt.Errorf("buffer view out of range")
		}
		bv := doc.BufferViews[*img.BufferView]
		if bv.Buffer < 0 || bv.Buffer >= len(doc.Buffers) {
			return nil, source, fmt.Errorf("buffer out of range")
		}
		data := doc.Buffers[bv.Buffer].Data
		end := bv.ByteOffset + bv.ByteLength
		if end > len(data) {
			return nil, source, fmt.Errorf("buffer view exceeds buffer")
		}
		return data[bv.ByteOffset:end], source, nil
	}

	if img.URI == "" {
		return nil, "", fmt.Errorf("image has no source")
	}
	source := img.URI
	if strings.HasPrefix(source, "data:") {
		source = "data uri"
	}
	data, err := readURI(img.URI, fsys)
	return data, source, err
}
