package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
)

// MaxDrawingSide bounds the longer side of an uploaded drawing.
const MaxDrawingSide = 2048

// DecodeDataURL unpacks "data:<type>;base64,<payload>" captures.
func DecodeDataURL(raw []byte) ([]byte, string, bool) {
	s := string(raw)
	if !strings.HasPrefix(s, "data:") {
		return nil, "", false
	}
	meta, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, "", false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", false
	}
	return data, strings.TrimSuffix(meta, ";base64"), true
}

// NormalizeDrawing turns a canvas capture (raw image bytes or a data URL)
// into an opaque PNG: transparent strokes are flattened onto white and
// oversized canvases are scaled down.
func NormalizeDrawing(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty drawing")
	}
	data := raw
	if decoded, _, ok := DecodeDataURL(raw); ok {
		data = decoded
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode drawing: %w", err)
	}

	b := src.Bounds()
	if b.Dx() > MaxDrawingSide || b.Dy() > MaxDrawingSide {
		src = imaging.Fit(src, MaxDrawingSide, MaxDrawingSide, imaging.Lanczos)
		b = src.Bounds()
	}

	canvas := imaging.New(b.Dx(), b.Dy(), color.White)
	flattened := imaging.Overlay(canvas, src, image.Pt(0, 0), 1.0)

	var out bytes.Buffer
	if err := imaging.Encode(&out, flattened, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return nil, fmt.Errorf("encode drawing: %w", err)
	}
	return out.Bytes(), nil
}
