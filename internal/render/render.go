// Package render draws boards as PNG images.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/samber/lo"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/Cheese-chess-server/internal/chess"
)

const (
	minSize = 160
	maxSize = 2048
)

var (
	lightSquare = color.RGBA{233, 207, 163, 255}
	darkSquare  = color.RGBA{187, 136, 96, 255}
	frameColor  = color.RGBA{40, 34, 30, 255}
	coordColor  = color.RGBA{236, 224, 200, 255}

	selectedFill = color.NRGBA{246, 246, 105, 150}
	targetFill   = color.NRGBA{90, 170, 80, 140}
)

// Highlight marks a selected square and the squares its piece can reach.
type Highlight struct {
	From    chess.Position
	Targets []chess.Position
}

// LegalMoves highlights the legal destinations of the piece on from, or
// returns nil when the square is empty. Promotion choices collapse into one
// target.
func LegalMoves(g *chess.Game, from chess.Position) *Highlight {
	b := g.Board()
	if p, ok := b.Get(from); !ok || p.IsZero() {
		return nil
	}
	targets := lo.Uniq(lo.Map(g.ValidMoves(from), func(m chess.Move, _ int) chess.Position { return m.End }))
	return &Highlight{From: from, Targets: targets}
}

// PNGRenderer draws a size x size image: an 8x8 board inside a margin that
// carries file and rank labels.
type PNGRenderer struct {
	size   int
	margin int
	square int
}

// NewPNGRenderer clamps size to a sane range.
func NewPNGRenderer(size int) *PNGRenderer {
	if size < minSize {
		size = minSize
	}
	if size > maxSize {
		size = maxSize
	}
	margin := size / 20
	if margin < 14 {
		margin = 14
	}
	square := (size - 2*margin) / 8
	return &PNGRenderer{size: size, margin: margin, square: square}
}

// Size is the image edge in pixels.
func (r *PNGRenderer) Size() int { return r.size }

// Render draws b from the given side; Black puts rank 1 on top. hl may be nil.
func (r *PNGRenderer) Render(b chess.Board, perspective chess.Color, hl *Highlight) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.size, r.size))
	draw.Draw(img, img.Bounds(), image.NewUniform(frameColor), image.Point{}, draw.Src)

	for screenRow := 0; screenRow < 8; screenRow++ {
		for screenCol := 0; screenCol < 8; screenCol++ {
			pos := r.squareAt(screenRow, screenCol, perspective)
			rect := r.cell(screenRow, screenCol)
			clr := lightSquare
			if (pos.Row+pos.Col)%2 == 0 {
				clr = darkSquare
			}
			draw.Draw(img, rect, image.NewUniform(clr), image.Point{}, draw.Src)
		}
	}
	r.drawHighlight(img, hl, perspective)

	for screenRow := 0; screenRow < 8; screenRow++ {
		for screenCol := 0; screenCol < 8; screenCol++ {
			pos := r.squareAt(screenRow, screenCol, perspective)
			p, ok := b.Get(pos)
			if !ok || p.IsZero() {
				continue
			}
			glyph, err := glyphImage(p, r.square)
			if err != nil {
				return nil, err
			}
			draw.Draw(img, r.cell(screenRow, screenCol), glyph, image.Point{}, draw.Over)
		}
	}
	r.drawCoordinates(img, perspective)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// squareAt maps a screen cell (top-left origin) to a board position.
func (r *PNGRenderer) squareAt(screenRow, screenCol int, perspective chess.Color) chess.Position {
	if perspective == chess.Black {
		return chess.Pos(screenRow+1, 8-screenCol)
	}
	return chess.Pos(8-screenRow, screenCol+1)
}

func (r *PNGRenderer) cell(screenRow, screenCol int) image.Rectangle {
	x := r.margin + screenCol*r.square
	y := r.margin + screenRow*r.square
	return image.Rect(x, y, x+r.square, y+r.square)
}

// cellOf is the inverse of squareAt.
func (r *PNGRenderer) cellOf(pos chess.Position, perspective chess.Color) image.Rectangle {
	if perspective == chess.Black {
		return r.cell(pos.Row-1, 8-pos.Col)
	}
	return r.cell(8-pos.Row, pos.Col-1)
}

func (r *PNGRenderer) drawHighlight(img *image.RGBA, hl *Highlight, perspective chess.Color) {
	if hl == nil || !hl.From.Valid() {
		return
	}
	r.drawSquareOverlay(img, hl.From, perspective, selectedFill)
	for _, pos := range hl.Targets {
		if pos.Valid() {
			r.drawSquareOverlay(img, pos, perspective, targetFill)
		}
	}
}

func (r *PNGRenderer) drawSquareOverlay(img *image.RGBA, pos chess.Position, perspective chess.Color, clr color.Color) {
	draw.Draw(img, r.cellOf(pos, perspective), image.NewUniform(clr), image.Point{}, draw.Over)
}

func (r *PNGRenderer) drawCoordinates(dst draw.Image, perspective chess.Color) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Src: image.NewUniform(coordColor), Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	boardEnd := r.margin + 8*r.square

	for i := 0; i < 8; i++ {
		pos := r.squareAt(i, i, perspective)
		file := string(rune('a' + pos.Col - 1))
		rank := string(rune('0' + pos.Row))

		center := r.margin + i*r.square + r.square/2
		drawCentered(drawer, rank, r.margin/2, center+ascent/2)
		drawCentered(drawer, file, center, boardEnd+(r.margin+ascent)/2)
	}
}

func drawCentered(d *font.Drawer, text string, x, baseline int) {
	w := d.MeasureString(text).Round()
	d.Dot = fixed.P(x-w/2, baseline)
	d.DrawString(text)
}
