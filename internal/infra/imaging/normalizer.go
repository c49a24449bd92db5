package imaging

import (
	"bytes"
	"fmt"

	img "github.com/disintegration/imaging"

	domain "github.com/andriansyh/safesight/internal/domain/inspections"
)

// Normalizer decodes a client-submitted image, fixes EXIF orientation,
// bounds its longer edge and re-encodes it as JPEG. Pure transform,
// no side effects.
type Normalizer struct {
	MaxBytes int // decoded-size guard, checked before decoding
	MaxSide  int // longer-edge pixel cap
	Quality  int // JPEG quality
}

const (
	DefaultMaxBytes = 8 << 20
	DefaultMaxSide  = 1600
	DefaultQuality  = 72
)

func NewNormalizer(maxBytes, maxSide, quality int) *Normalizer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Normalizer{MaxBytes: maxBytes, MaxSide: maxSide, Quality: quality}
}

// Normalize implements inspections.Normalizer. The size guard runs before
// any pixel work so oversized payloads are rejected cheaply.
func (n *Normalizer) Normalize(data []byte, declaredType string) (*domain.NormalizedImage, error) {
	if len(data) > n.MaxBytes {
		return nil, fmt.Errorf("%w: decoded size %d exceeds %d", domain.ErrPayloadTooLarge, len(data), n.MaxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image data", domain.ErrInvalidInput)
	}

	src, err := img.Decode(bytes.NewReader(data), img.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s image: %v", domain.ErrInvalidInput, declaredType, err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > n.MaxSide || h > n.MaxSide {
		// Fit preserves aspect ratio and never upscales
		src = img.Fit(src, n.MaxSide, n.MaxSide, img.Lanczos)
		bounds = src.Bounds()
		w, h = bounds.Dx(), bounds.Dy()
	}

	var buf bytes.Buffer
	if err := img.Encode(&buf, src, img.JPEG, img.JPEGQuality(n.Quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return &domain.NormalizedImage{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Width:       w,
		Height:      h,
		Size:        buf.Len(),
	}, nil
}
