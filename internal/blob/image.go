package blob

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
)

const (
	DefaultProfilePictureMaxEdge = 512
	DefaultProfilePictureQuality = 85

	// MaxSourcePixels bounds the decoded size of an upload. A small
	// compressed file can declare dimensions far beyond its byte size.
	MaxSourcePixels = 40_000_000
)

var ErrInvalidImage = errors.New("invalid image data")

type NormalizedImage struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// NormalizeProfilePicture decodes a JPEG or PNG, scales it to fit within
// maxEdge and re-encodes it, dropping any embedded metadata. Images with
// transparency stay PNG; opaque images become JPEG.
func NormalizeProfilePicture(src io.Reader, maxEdge int, quality int) (*NormalizedImage, error) {
	if maxEdge <= 0 {
		maxEdge = DefaultProfilePictureMaxEdge
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultProfilePictureQuality
	}

	// DecodeConfig reads only the header; replay what it consumed for Decode.
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(src, &header))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidImage, cfg.Width, cfg.Height, MaxSourcePixels)
	}

	img, _, err := image.Decode(io.MultiReader(&header, src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrInvalidImage
	}

	width, height := scaleDimensions(bounds.Dx(), bounds.Dy(), maxEdge)
	scaled := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, xdraw.Src, nil)

	buf := bytes.NewBuffer(nil)
	mimeType := "image/jpeg"
	if hasTransparency(img) {
		mimeType = "image/png"
		if err := png.Encode(buf, scaled); err != nil {
			return nil, fmt.Errorf("encoding png: %w", err)
		}
	} else if err := jpeg.Encode(buf, scaled, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}

	return &NormalizedImage{
		Data:     buf.Bytes(),
		MimeType: mimeType,
		Width:    width,
		Height:   height,
	}, nil
}

func hasTransparency(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}

// scaleDimensions fits width x height inside a maxEdge square, keeping the
// aspect ratio and never upscaling.
func scaleDimensions(width, height, maxEdge int) (int, int) {
	long := max(width, height)
	if long <= maxEdge {
		return width, height
	}

	fit := func(v int) int {
		return max(1, (v*maxEdge+long/2)/long)
	}
	return fit(width), fit(height)
}
