package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/park285/Cheese-chess-server/internal/chess"
)

// Silhouettes on a 45x45 canvas. FILL and STROKE are substituted per color.
var glyphShapes = map[chess.Kind]string{
	chess.Pawn: `<circle cx="22.5" cy="14" r="6"/>
<path d="M15 36 L18 22 L27 22 L30 36 Z"/>
<rect x="11" y="36" width="23" height="4" rx="1"/>`,
	chess.Rook: `<path d="M12 9 L16 9 L16 12 L20 12 L20 9 L25 9 L25 12 L29 12 L29 9 L33 9 L33 15 L12 15 Z"/>
<rect x="15" y="15" width="15" height="17"/>
<rect x="11" y="32" width="23" height="4"/>
<rect x="9" y="36" width="27" height="4" rx="1"/>`,
	chess.Knight: `<path d="M14 39 L32 39 L31 27 C31 18 27 11 20 9 L19 6 L16 10 C12 13 9 19 10 23 L13 24 L18 20 L19 23 C15 27 14 33 14 39 Z"/>
<circle cx="17" cy="14" r="1.2"/>`,
	chess.Bishop: `<circle cx="22.5" cy="8" r="3"/>
<path d="M22.5 11 C15 16 14 24 17 30 L28 30 C31 24 30 16 22.5 11 Z"/>
<rect x="15" y="30" width="15" height="4"/>
<rect x="10" y="35" width="25" height="4" rx="1"/>`,
	chess.Queen: `<path d="M9 14 L14 30 L31 30 L36 14 L29 24 L22.5 10 L16 24 Z"/>
<circle cx="9" cy="12" r="2.5"/>
<circle cx="22.5" cy="8" r="2.5"/>
<circle cx="36" cy="12" r="2.5"/>
<rect x="13" y="30" width="19" height="4"/>
<rect x="10" y="35" width="25" height="4" rx="1"/>`,
	chess.King: `<path d="M21 4 L24 4 L24 7 L27 7 L27 10 L24 10 L24 14 L21 14 L21 10 L18 10 L18 7 L21 7 Z"/>
<path d="M22.5 14 C12 14 8 22 14 30 L31 30 C37 22 33 14 22.5 14 Z"/>
<rect x="13" y="30" width="19" height="4"/>
<rect x="10" y="35" width="25" height="4" rx="1"/>`,
}

func glyphSVG(p chess.Piece) ([]byte, error) {
	shape, ok := glyphShapes[p.Kind]
	if !ok {
		return nil, fmt.Errorf("no glyph for %v", p)
	}
	fill, stroke := "#f8f8f8", "#1a1a1a"
	if p.Color == chess.Black {
		fill, stroke = "#262626", "#d0d0d0"
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">`)
	fmt.Fprintf(&b, `<g fill="%s" stroke="%s" stroke-width="1.5" stroke-linejoin="round">`, fill, stroke)
	b.WriteString(shape)
	b.WriteString(`</g></svg>`)
	return b.Bytes(), nil
}

type glyphKey struct {
	piece chess.Piece
	size  int
}

var (
	glyphCache   = map[glyphKey]image.Image{}
	glyphCacheMu sync.RWMutex
)

func glyphImage(p chess.Piece, size int) (image.Image, error) {
	key := glyphKey{piece: p, size: size}

	glyphCacheMu.RLock()
	if img, ok := glyphCache[key]; ok {
		glyphCacheMu.RUnlock()
		return img, nil
	}
	glyphCacheMu.RUnlock()

	data, err := glyphSVG(p)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse glyph svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	glyphCacheMu.Lock()
	glyphCache[key] = img
	glyphCacheMu.Unlock()
	return img, nil
}
