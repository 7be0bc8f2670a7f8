package imaging

import (
	"bytes"
	"image/color"
	"image/png"
	"strconv"

	"github.com/fogleman/gg"

	"github.com/podtheme/themepack/pkg/theme"
)

const coverWidth, coverHeight = 320, 240

// GenerateCover renders a 320×240 cover from the theme's own palette, for
// themes that never declared a themeCover. Output is fully deterministic for
// a given spec, so exporting twice yields identical archives.
func GenerateCover(spec theme.Spec) ([]byte, error) {
	colors := spec.Colors()

	dc := gg.NewContext(coverWidth, coverHeight)
	bg := color.RGBA{0x1a, 0x1a, 0x1a, 0xff}
	if len(colors) > 0 {
		bg = parseHexColor(colors[0])
	}
	dc.SetColor(bg)
	dc.Clear()

	// A band per accent color along the bottom, like a palette swatch.
	bands := colors
	if len(bands) > 1 {
		bands = bands[1:]
	}
	if len(bands) > 6 {
		bands = bands[:6]
	}
	if len(bands) > 0 {
		bandW := float64(coverWidth) / float64(len(bands))
		for i, c := range bands {
			dc.SetColor(parseHexColor(c))
			dc.DrawRectangle(float64(i)*bandW, coverHeight-48, bandW, 48)
			dc.Fill()
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parseHexColor reads #RRGGBB or #AARRGGBB. Unparsable input yields black.
func parseHexColor(s string) color.RGBA {
	if len(s) == 0 || s[0] != '#' {
		return color.RGBA{A: 0xff}
	}
	v, err := strconv.ParseUint(s[1:], 16, 64)
	if err != nil {
		return color.RGBA{A: 0xff}
	}
	switch len(s) - 1 {
	case 6:
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
	case 8:
		return color.RGBA{A: uint8(v >> 24), R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
	}
	return color.RGBA{A: 0xff}
}
