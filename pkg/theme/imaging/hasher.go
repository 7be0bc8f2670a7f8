// Package imaging implements the pixel-level half of the pipeline: the
// deduplication fingerprint, the device size classes with resize/recompress,
// and the generated fallback cover.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/cespare/xxhash/v2"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"

	"github.com/podtheme/themepack/pkg/theme"
	"github.com/podtheme/themepack/pkg/theme/errors"
)

// Hasher computes a cheap visual-equivalence signature for an image locator.
// The contract is deterministic grouping of exact duplicates; tolerance of
// transport re-encoding is NOT guaranteed. Implementations are replaceable.
type Hasher interface {
	Hash(ctx context.Context, url string) (string, error)
}

// hashEdge is the downsample square. Pixel-identical images always collide;
// near-duplicates usually do at this resolution.
const hashEdge = 8

// XXHasher fingerprints an image by downsampling to hashEdge×hashEdge,
// discarding alpha and folding the RGB bytes with xxhash64. Output uses the
// prefixed "xx64:<hex>" form.
type XXHasher struct{}

// Hash decodes the image behind url and returns its signature. Decode and
// fetch failures surface as ErrImageLoad so callers can isolate the asset
// into its own equivalence class instead of aborting the batch.
func (XXHasher) Hash(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := theme.ResolveAssetURL(url)
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrImageLoad, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, hashEdge, hashEdge))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	rgb := make([]byte, 0, hashEdge*hashEdge*3)
	for i := 0; i+3 < len(dst.Pix); i += 4 {
		rgb = append(rgb, dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2])
	}
	return fmt.Sprintf("xx64:%016x", xxhash.Sum64(rgb)), nil
}
