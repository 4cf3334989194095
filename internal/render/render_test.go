package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/park285/Cheese-chess-server/internal/chess"
)

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return img
}

func sameRGB(a, b color.Color) bool {
	ar, ag, ab, _ := a.RGBA()
	br, bg, bb, _ := b.RGBA()
	return ar == br && ag == bg && ab == bb
}

func TestRenderStandardBoard(t *testing.T) {
	r := NewPNGRenderer(480)
	data, err := r.Render(chess.NewStandardBoard(), chess.White, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img := decode(t, data)
	if img.Bounds().Dx() != 480 || img.Bounds().Dy() != 480 {
		t.Fatalf("bounds = %v", img.Bounds())
	}

	// e4 is empty and light; top-left corner of its cell has no glyph pixels
	e4 := r.cell(4, 4)
	if !sameRGB(img.At(e4.Min.X+1, e4.Min.Y+1), lightSquare) {
		t.Fatalf("e4 corner = %v", img.At(e4.Min.X+1, e4.Min.Y+1))
	}

	// the white king body covers the center of e1
	e1 := r.cell(7, 4)
	cx, cy := (e1.Min.X+e1.Max.X)/2, (e1.Min.Y+e1.Max.Y)/2
	if sameRGB(img.At(cx, cy), lightSquare) || sameRGB(img.At(cx, cy), darkSquare) {
		t.Fatalf("expected a piece at e1 center")
	}
}

func TestRenderPerspective(t *testing.T) {
	r := NewPNGRenderer(320)
	if got := r.squareAt(0, 0, chess.White); got != chess.Pos(8, 1) {
		t.Fatalf("white top-left = %v", got)
	}
	if got := r.squareAt(0, 0, chess.Black); got != chess.Pos(1, 8) {
		t.Fatalf("black top-left = %v", got)
	}
	if got := r.squareAt(7, 7, chess.Black); got != chess.Pos(8, 1) {
		t.Fatalf("black bottom-right = %v", got)
	}

	var b chess.Board
	b.Place(chess.Pos(1, 8), chess.Piece{Color: chess.Black, Kind: chess.Queen})
	data, err := r.Render(b, chess.Black, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img := decode(t, data)
	h1 := r.cell(0, 0)
	cx, cy := (h1.Min.X+h1.Max.X)/2, (h1.Min.Y+h1.Max.Y)/2
	if sameRGB(img.At(cx, cy), lightSquare) {
		t.Fatalf("expected queen at top-left from black's side")
	}
}

func TestSizeIsClamped(t *testing.T) {
	if NewPNGRenderer(10).Size() != minSize {
		t.Fatalf("min clamp")
	}
	if NewPNGRenderer(1<<20).Size() != maxSize {
		t.Fatalf("max clamp")
	}
}

func TestGlyphsAreCached(t *testing.T) {
	p := chess.Piece{Color: chess.White, Kind: chess.Knight}
	a, err := glyphImage(p, 40)
	if err != nil {
		t.Fatalf("glyph: %v", err)
	}
	b, _ := glyphImage(p, 40)
	if a != b {
		t.Fatalf("expected cached image")
	}
	if _, err := glyphSVG(chess.Piece{}); err == nil {
		t.Fatalf("expected error for empty piece")
	}
}

func TestLegalMovesHighlight(t *testing.T) {
	var b chess.Board
	b.Place(chess.Pos(2, 1), chess.Piece{Color: chess.White, Kind: chess.Pawn})
	b.Place(chess.Pos(7, 2), chess.Piece{Color: chess.White, Kind: chess.Pawn})
	b.Place(chess.Pos(8, 1), chess.Piece{Color: chess.Black, Kind: chess.Rook})
	g := chess.NewGameFromBoard(b, chess.White)

	if LegalMoves(g, chess.Pos(4, 4)) != nil {
		t.Fatalf("empty square should not highlight")
	}
	hl := LegalMoves(g, chess.Pos(7, 2))
	// b8 push and a8 capture, each offered as four promotions
	if hl == nil || hl.From != chess.Pos(7, 2) || len(hl.Targets) != 2 {
		t.Fatalf("highlight = %+v", hl)
	}
}

func TestRenderHighlightsTargets(t *testing.T) {
	r := NewPNGRenderer(400)
	b := chess.NewStandardBoard()
	g := chess.NewGameFromBoard(b, chess.White)
	e2 := chess.Pos(2, 5)
	hl := LegalMoves(g, e2)
	if hl == nil || len(hl.Targets) != 2 {
		t.Fatalf("e2 highlight = %+v", hl)
	}

	for _, perspective := range []chess.Color{chess.White, chess.Black} {
		data, err := r.Render(b, perspective, hl)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		img := decode(t, data)
		corner := func(pos chess.Position) color.Color {
			c := r.cellOf(pos, perspective)
			return img.At(c.Min.X+1, c.Min.Y+1)
		}
		greenish := func(c color.Color) bool {
			cr, cg, _, _ := c.RGBA()
			return cg > cr
		}
		for _, pos := range hl.Targets {
			if !greenish(corner(pos)) {
				t.Fatalf("%v: target %v not highlighted: %v", perspective, pos, corner(pos))
			}
		}
		if c := corner(e2); sameRGB(c, lightSquare) || sameRGB(c, darkSquare) || greenish(c) {
			t.Fatalf("%v: selected square = %v", perspective, c)
		}
		// e5 is neither selected nor reachable
		if c := corner(chess.Pos(5, 5)); !sameRGB(c, lightSquare) && !sameRGB(c, darkSquare) {
			t.Fatalf("%v: e5 should be plain, got %v", perspective, c)
		}
	}
}
