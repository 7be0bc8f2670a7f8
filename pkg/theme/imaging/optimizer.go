package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"

	"github.com/podtheme/themepack/pkg/theme"
	"github.com/podtheme/themepack/pkg/theme/errors"
)

// TargetSize is a fit-within bounding box in device pixels.
type TargetSize struct {
	Width  int
	Height int
}

func square(n int) *TargetSize { return &TargetSize{Width: n, Height: n} }

// TargetSizeFor maps an asset's semantic role onto the device's fixed icon
// size classes. nil means keep the original dimensions (recompress only).
func TargetSizeFor(a theme.AssetInfo) *TargetSize {
	if theme.IsFontFile(a.FileName) {
		return nil
	}
	key := a.ConfigKey
	switch {
	case key == "themeCover", key == "desktopWallpaper", key == "globalWallpaper":
		return &TargetSize{Width: 320, Height: 240}
	case key == "desktopMask":
		return nil
	case key == "itemConfig.itemBackground", key == "itemConfig.itemSelectedBackground":
		return &TargetSize{Width: 640, Height: 91}
	case strings.HasPrefix(key, "homePageConfig."):
		return square(166)
	case strings.HasPrefix(key, "settingConfig."):
		return square(146)
	case strings.HasPrefix(key, "fileConfig."):
		return square(166)
	case strings.HasPrefix(key, "statusConfig."):
		return square(64)
	}
	// dialogConfig, menuConfig and anything unrecognized pass through.
	return nil
}

// FitWithin shrinks (never grows) w×h to fit the box, preserving aspect
// ratio. A source already inside the box comes back unchanged.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	s := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := int(math.Round(float64(w) * s))
	nh := int(math.Round(float64(h) * s))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// maxEncodedBytes is the practical ceiling one optimized asset should stay
// under; JPEG quality steps down until the encoding fits.
const maxEncodedBytes = 1 << 20

var jpegQualities = []int{93, 85, 75}

// Optimizer resizes assets into their device size class and recompresses
// them, preserving the original container format.
type Optimizer struct {
	logger hclog.Logger
}

// NewOptimizer creates an optimizer. A nil logger is allowed.
func NewOptimizer(logger hclog.Logger) *Optimizer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Optimizer{logger: logger}
}

// Optimize re-renders data for its target box and recompresses. target nil
// means recompress only. Fails soft: on any decode/encode trouble the
// original bytes come back unchanged so one bad asset never sinks an export.
func (o *Optimizer) Optimize(ctx context.Context, data []byte, target *TargetSize) []byte {
	if ctx.Err() != nil {
		return data
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		o.logger.Warn("optimize: undecodable image, passing through", "error", err)
		return data
	}

	resized := false
	if target != nil {
		b := img.Bounds()
		nw, nh := FitWithin(b.Dx(), b.Dy(), target.Width, target.Height)
		if nw < b.Dx() || nh < b.Dy() {
			img = resize.Resize(uint(nw), uint(nh), img, resize.Lanczos3)
			resized = true
		}
	}

	out, err := encodeAs(img, format)
	if err != nil {
		o.logger.Warn("optimize: re-encode failed, passing through", "format", format, "error", err)
		return data
	}
	if !resized && len(out) >= len(data) {
		// Recompression that grows the file is pointless; keep the original.
		return data
	}
	return out
}

func encodeAs(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "jpeg":
		for _, q := range jpegQualities {
			buf.Reset()
			if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
				return nil, fmt.Errorf("%w: jpeg q%d: %v", errors.ErrImageEncode, q, err)
			}
			if buf.Len() <= maxEncodedBytes {
				break
			}
		}
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: png: %v", errors.ErrImageEncode, err)
		}
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, fmt.Errorf("%w: gif: %v", errors.ErrImageEncode, err)
		}
	case "bmp":
		if err := bmp.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: bmp: %v", errors.ErrImageEncode, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported container %q", errors.ErrImageEncode, format)
	}
	return buf.Bytes(), nil
}
