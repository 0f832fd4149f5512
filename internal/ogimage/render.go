// Package ogimage renders 1200x630 social preview cards for docs pages.
package ogimage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	Width  = 1200
	Height = 630

	marginX = 100
	marginY = 80

	titleMaxLines    = 3
	subtitleMaxLines = 2
)

// Params describe one preview card.
type Params struct {
	Title    string
	Subtitle string
	Badge    string
	// Logo is the resolved chain logo, nil when no chain or no usable image.
	Logo image.Image
	// ChainInitial is drawn as a letter avatar when a chain is requested but
	// its logo could not be resolved or decoded.
	ChainInitial string
}

var (
	fontOnce sync.Once
	fontErr  error
	boldFont *opentype.Font
	bodyFont *opentype.Font
)

var (
	bgTop      = color.RGBA{R: 2, G: 6, B: 23, A: 255}
	bgBottom   = color.RGBA{R: 31, G: 41, B: 55, A: 255}
	markFill   = color.RGBA{R: 14, G: 165, B: 233, A: 255}
	kickerInk  = color.RGBA{R: 148, G: 163, B: 184, A: 255}
	headerInk  = color.RGBA{R: 226, G: 232, B: 240, A: 255}
	titleInk   = color.RGBA{R: 248, G: 250, B: 252, A: 255}
	subInk     = color.RGBA{R: 203, G: 213, B: 245, A: 255}
	footerInk  = color.RGBA{R: 100, G: 116, B: 139, A: 255}
	badgeFill  = color.RGBA{R: 12, G: 50, B: 77, A: 255}
	badgeInk   = color.RGBA{R: 186, G: 230, B: 253, A: 255}
	avatarFill = color.RGBA{R: 30, G: 58, B: 95, A: 255}
)

// Render draws the card and encodes it as PNG.
func Render(p Params) ([]byte, error) {
	if err := loadFonts(); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	paintGradient(img)

	kickerFace, err := newFace(bodyFont, 20)
	if err != nil {
		return nil, fmt.Errorf("ogimage: kicker face: %w", err)
	}
	defer closeFace(kickerFace)
	headerFace, err := newFace(boldFont, 30)
	if err != nil {
		return nil, fmt.Errorf("ogimage: header face: %w", err)
	}
	defer closeFace(headerFace)
	titleFace, err := newFace(boldFont, 64)
	if err != nil {
		return nil, fmt.Errorf("ogimage: title face: %w", err)
	}
	defer closeFace(titleFace)
	subtitleFace, err := newFace(bodyFont, 32)
	if err != nil {
		return nil, fmt.Errorf("ogimage: subtitle face: %w", err)
	}
	defer closeFace(subtitleFace)
	footerFace, err := newFace(bodyFont, 24)
	if err != nil {
		return nil, fmt.Errorf("ogimage: footer face: %w", err)
	}
	defer closeFace(footerFace)
	markFace, err := newFace(boldFont, 34)
	if err != nil {
		return nil, fmt.Errorf("ogimage: mark face: %w", err)
	}
	defer closeFace(markFace)

	// Header: site mark, name block, optional chain logo on the right.
	fillCircle(img, marginX+36, marginY+36, 36, markFill)
	drawText(img, markFace, "CR", marginX+36-textWidth(markFace, "CR")/2, marginY+48, titleInk)
	drawText(img, kickerFace, strings.ToUpper("Crxanode"), marginX+92, marginY+28, kickerInk)
	drawText(img, headerFace, "Validator Infrastructure", marginX+92, marginY+64, headerInk)
	drawChainMark(img, p)

	// Title and subtitle block.
	y := 288
	y = drawWrapped(img, titleFace, p.Title, marginX, y, Width-2*marginX, 74, titleMaxLines, titleInk)
	y += 24
	drawWrapped(img, subtitleFace, p.Subtitle, marginX, y, Width-2*marginX, 44, subtitleMaxLines, subInk)

	// Footer: domain and tagline on the left, badge pill on the right.
	drawText(img, footerFace, "docs.crxanode.me", marginX, Height-marginY-32, footerInk)
	drawText(img, footerFace, "Reliable Cosmos validator services & guides.", marginX, Height-marginY, footerInk)
	if p.Badge != "" {
		drawBadge(img, footerFace, strings.ToUpper(p.Badge))
	}

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("ogimage: encode png: %w", err)
	}
	return out.Bytes(), nil
}

func drawChainMark(img *image.RGBA, p Params) {
	const size = 72
	x := Width - marginX - size
	y := marginY
	switch {
	case p.Logo != nil:
		dst := image.Rect(x, y, x+size, y+size)
		xdraw.ApproxBiLinear.Scale(img, dst, p.Logo, p.Logo.Bounds(), xdraw.Over, nil)
	case p.ChainInitial != "":
		face, err := newFace(boldFont, 34)
		if err != nil {
			return
		}
		defer closeFace(face)
		initial := strings.ToUpper(p.ChainInitial)
		fillCircle(img, x+size/2, y+size/2, size/2, avatarFill)
		drawText(img, face, initial, x+size/2-textWidth(face, initial)/2, y+size/2+12, headerInk)
	}
}

func drawBadge(img *image.RGBA, face font.Face, label string) {
	w := textWidth(face, label)
	padX, padY := 28, 14
	x1 := Width - marginX
	x0 := x1 - w - 2*padX
	y1 := Height - marginY + 8
	y0 := y1 - 24 - 2*padY
	fillRect(img, image.Rect(x0, y0, x1, y1), badgeFill)
	drawText(img, face, label, x0+padX, y1-padY-4, badgeInk)
}

func loadFonts() error {
	fontOnce.Do(func() {
		boldFont, fontErr = opentype.Parse(gobold.TTF)
		if fontErr != nil {
			fontErr = fmt.Errorf("ogimage: parse bold font: %w", fontErr)
			return
		}
		bodyFont, fontErr = opentype.Parse(goregular.TTF)
		if fontErr != nil {
			fontErr = fmt.Errorf("ogimage: parse body font: %w", fontErr)
		}
	})
	return fontErr
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

func closeFace(face font.Face) {
	if closer, ok := face.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

func paintGradient(img *image.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		t := float64(y-b.Min.Y) / float64(b.Dy()-1)
		c := color.RGBA{
			R: lerp(bgTop.R, bgBottom.R, t),
			G: lerp(bgTop.G, bgBottom.G, t),
			B: lerp(bgTop.B, bgBottom.B, t),
			A: 255,
		}
		fillRect(img, image.Rect(b.Min.X, y, b.Max.X, y+1), c)
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}

func fillRect(img draw.Image, rect image.Rectangle, c color.Color) {
	draw.Draw(img, rect, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func fillCircle(img draw.Image, cx, cy, r int, c color.Color) {
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y <= r*r {
				img.Set(cx+x, cy+y, c)
			}
		}
	}
}

func drawText(img draw.Image, face font.Face, text string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// drawWrapped renders text word-wrapped into maxWidth, up to maxLines lines,
// and returns the y coordinate below the last line.
func drawWrapped(img draw.Image, face font.Face, text string, x, y, maxWidth, lineHeight, maxLines int, c color.Color) int {
	for _, line := range wrapLines(face, text, maxWidth, maxLines) {
		drawText(img, face, line, x, y, c)
		y += lineHeight
	}
	return y
}

func wrapLines(face font.Face, text string, maxWidth, maxLines int) []string {
	words := strings.Fields(text)
	if len(words) == 0 || maxLines <= 0 {
		return nil
	}
	var lines []string
	i := 0
	for i < len(words) && len(lines) < maxLines {
		line := words[i]
		i++
		for i < len(words) {
			candidate := line + " " + words[i]
			if textWidth(face, candidate) > maxWidth {
				break
			}
			line = candidate
			i++
		}
		lines = append(lines, line)
	}
	if i < len(words) && len(lines) > 0 {
		lines[len(lines)-1] = trimToWidth(face, lines[len(lines)-1]+"…", maxWidth)
	}
	return lines
}

func trimToWidth(face font.Face, text string, maxWidth int) string {
	if textWidth(face, text) <= maxWidth {
		return text
	}
	runes := []rune(strings.TrimSuffix(text, "…"))
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := strings.TrimRight(string(runes), " ") + "…"
		if textWidth(face, candidate) <= maxWidth {
			return candidate
		}
	}
	return "…"
}

func textWidth(face font.Face, text string) int {
	return font.MeasureString(face, text).Ceil()
}
