package blob

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"
)

func TestNormalizeProfilePicture(t *testing.T) {
	tests := []struct {
		name       string
		src        []byte
		maxEdge    int
		wantMime   string
		wantFormat string
		wantWidth  int
		wantHeight int
	}{
		{
			name:       "opaque_png_becomes_jpeg_and_shrinks",
			src:        encodePNG(t, filled(640, 320, color.RGBA{R: 40, G: 90, B: 220, A: 255})),
			maxEdge:    256,
			wantMime:   "image/jpeg",
			wantFormat: "jpeg",
			wantWidth:  256,
			wantHeight: 128,
		},
		{
			name:       "alpha_stays_png",
			src:        encodePNG(t, filled(400, 400, color.NRGBA{R: 255, G: 60, B: 60, A: 128})),
			maxEdge:    256,
			wantMime:   "image/png",
			wantFormat: "png",
			wantWidth:  256,
			wantHeight: 256,
		},
		{
			name:       "small_image_not_upscaled",
			src:        encodePNG(t, filled(48, 32, color.RGBA{R: 20, G: 140, B: 80, A: 255})),
			maxEdge:    256,
			wantMime:   "image/jpeg",
			wantFormat: "jpeg",
			wantWidth:  48,
			wantHeight: 32,
		},
		{
			name:       "jpeg_with_default_edge",
			src:        encodeJPEG(t, filled(1024, 2048, color.RGBA{R: 200, G: 200, B: 10, A: 255})),
			wantMime:   "image/jpeg",
			wantFormat: "jpeg",
			wantWidth:  DefaultProfilePictureMaxEdge / 2,
			wantHeight: DefaultProfilePictureMaxEdge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalized, err := NormalizeProfilePicture(bytes.NewReader(tt.src), tt.maxEdge, 0)
			if err != nil {
				t.Fatalf("NormalizeProfilePicture() error = %v", err)
			}
			if normalized.MimeType != tt.wantMime {
				t.Fatalf("MimeType = %q, want %q", normalized.MimeType, tt.wantMime)
			}
			if normalized.Width != tt.wantWidth || normalized.Height != tt.wantHeight {
				t.Fatalf("dimensions = %dx%d, want %dx%d", normalized.Width, normalized.Height, tt.wantWidth, tt.wantHeight)
			}

			decoded, format, err := image.Decode(bytes.NewReader(normalized.Data))
			if err != nil {
				t.Fatalf("image.Decode() error = %v", err)
			}
			if format != tt.wantFormat {
				t.Fatalf("decoded format = %q, want %q", format, tt.wantFormat)
			}
			if b := decoded.Bounds(); b.Dx() != tt.wantWidth || b.Dy() != tt.wantHeight {
				t.Fatalf("decoded dimensions = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantWidth, tt.wantHeight)
			}
			if tt.wantFormat == "png" {
				if _, _, _, alpha := decoded.At(0, 0).RGBA(); alpha == 0xffff {
					t.Fatalf("decoded alpha = %d, want transparent pixel", alpha)
				}
			}
		})
	}
}

func TestNormalizeProfilePictureRejectsInvalidImageData(t *testing.T) {
	_, err := NormalizeProfilePicture(bytes.NewReader([]byte("not-an-image")), 256, 82)
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("NormalizeProfilePicture() error = %v, want ErrInvalidImage", err)
	}
}

func TestNormalizeProfilePictureRejectsOversizedDimensions(t *testing.T) {
	src := withPNGDimensions(t, encodePNG(t, filled(1, 1, color.Gray{Y: 10})), 20000, 20000)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		t.Fatalf("image.DecodeConfig() error = %v", err)
	}
	if cfg.Width != 20000 || cfg.Height != 20000 {
		t.Fatalf("header dimensions = %dx%d, want 20000x20000", cfg.Width, cfg.Height)
	}

	_, err = NormalizeProfilePicture(bytes.NewReader(src), 256, 0)
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("NormalizeProfilePicture() error = %v, want ErrInvalidImage", err)
	}
}

func TestScaleDimensions(t *testing.T) {
	tests := []struct {
		w, h, edge   int
		wantW, wantH int
	}{
		{w: 1000, h: 1, edge: 100, wantW: 100, wantH: 1},
		{w: 3, h: 1000, edge: 100, wantW: 1, wantH: 100},
		{w: 300, h: 200, edge: 100, wantW: 100, wantH: 67},
		{w: 100, h: 100, edge: 100, wantW: 100, wantH: 100},
	}

	for _, tt := range tests {
		if gotW, gotH := scaleDimensions(tt.w, tt.h, tt.edge); gotW != tt.wantW || gotH != tt.wantH {
			t.Fatalf("scaleDimensions(%d, %d, %d) = %dx%d, want %dx%d", tt.w, tt.h, tt.edge, gotW, gotH, tt.wantW, tt.wantH)
		}
	}
}

func filled(width, height int, c color.Color) draw.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// withPNGDimensions rewrites the IHDR width and height of an encoded PNG
// and fixes up the chunk CRC, leaving the pixel data untouched.
func withPNGDimensions(t *testing.T, src []byte, width, height uint32) []byte {
	t.Helper()

	const ihdr = 8 // after the signature
	if len(src) < ihdr+25 || string(src[ihdr+4:ihdr+8]) != "IHDR" {
		t.Fatal("source is not a PNG starting with IHDR")
	}
	out := bytes.Clone(src)
	binary.BigEndian.PutUint32(out[ihdr+8:], width)
	binary.BigEndian.PutUint32(out[ihdr+12:], height)
	binary.BigEndian.PutUint32(out[ihdr+21:], crc32.ChecksumIEEE(out[ihdr+4:ihdr+21]))
	return out
}
