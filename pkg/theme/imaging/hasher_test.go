package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/podtheme/themepack/pkg/theme"
	"github.com/podtheme/themepack/pkg/theme/errors"
)

// pngBytes renders a solid-color PNG for fixtures.
func pngBytes(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

var hashFormatRe = regexp.MustCompile(`^xx64:[0-9a-f]{16}$`)

func TestHashStability(t *testing.T) {
	ctx := context.Background()
	h := XXHasher{}
	data := pngBytes(t, 64, 64, color.RGBA{R: 0xff, A: 0xff})

	pathA := writeTemp(t, "a.png", data)
	first, err := h.Hash(ctx, pathA)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !hashFormatRe.MatchString(first) {
		t.Fatalf("signature %q does not match xx64:<hex16>", first)
	}

	second, err := h.Hash(ctx, pathA)
	if err != nil {
		t.Fatalf("Hash again: %v", err)
	}
	if first != second {
		t.Errorf("same file hashed differently: %s vs %s", first, second)
	}

	// Two different locations, byte-identical content: same signature.
	pathB := writeTemp(t, "b.png", data)
	other, err := h.Hash(ctx, pathB)
	if err != nil {
		t.Fatalf("Hash copy: %v", err)
	}
	if first != other {
		t.Errorf("byte-identical images hashed differently: %s vs %s", first, other)
	}
}

func TestHashDistinguishesInvertedColors(t *testing.T) {
	ctx := context.Background()
	h := XXHasher{}

	red, err := h.Hash(ctx, theme.EncodeDataURL("image/png", pngBytes(t, 32, 32, color.RGBA{R: 0xff, A: 0xff})))
	if err != nil {
		t.Fatal(err)
	}
	cyan, err := h.Hash(ctx, theme.EncodeDataURL("image/png", pngBytes(t, 32, 32, color.RGBA{G: 0xff, B: 0xff, A: 0xff})))
	if err != nil {
		t.Fatal(err)
	}
	if red == cyan {
		t.Error("visibly different images produced the same signature")
	}
}

func TestHashDecodeFailure(t *testing.T) {
	ctx := context.Background()
	h := XXHasher{}

	_, err := h.Hash(ctx, theme.EncodeDataURL("image/png", []byte("definitely not pixels")))
	if !errors.Is(err, errors.ErrImageLoad) {
		t.Errorf("err = %v, want ErrImageLoad", err)
	}

	_, err = h.Hash(ctx, filepath.Join(t.TempDir(), "missing.png"))
	if !errors.Is(err, errors.ErrImageLoad) {
		t.Errorf("missing file err = %v, want ErrImageLoad", err)
	}
}
