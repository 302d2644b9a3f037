// Package render rasterizes outfit layer compositions into PNGs using a
// bounded pool of reusable render contexts.
//
// The pool is the only component in the service with real concurrency
// coordination: a fixed number of expensive, reusable contexts shared
// across concurrent requests, with periodic full recycling to bound
// long-run memory growth. Callers snapshot the current pool at the start
// of an operation, so an in-flight render keeps the pool it started with
// even across a recycle.
package render

import (
	"bytes"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"

	// Layer artwork upstream is PNG or GIF.
	_ "image/gif"

	"github.com/outfitlab/impress/pkg/errors"
)

// AllowedSizes lists the snapshot output sizes the API accepts.
var AllowedSizes = []int{150, 300, 600}

// ValidSize reports whether size is an accepted snapshot output size.
func ValidSize(size int) bool {
	for _, s := range AllowedSizes {
		if s == size {
			return true
		}
	}
	return false
}

// rasterize composites the already-fetched layer assets, in the order
// given (ascending depth), onto a transparent size×size canvas and encodes
// the result as PNG. Transparency is preserved end to end.
func rasterize(assets [][]byte, size int) ([]byte, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	for i, data := range assets {
		src, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "decode layer asset %d", i)
		}
		xdraw.CatmullRom.Scale(canvas, canvas.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "encode snapshot")
	}
	return buf.Bytes(), nil
}
