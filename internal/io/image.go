package ioutils

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // GIF decoder registration
	"image/jpeg"
	_ "image/png" // PNG decoder registration

	"golang.org/x/image/draw"
)

// jpegQuality is used for every JPEG this package encodes.
const jpegQuality = 90

// ImageService provides image processing operations for cover art.
//
// ImageService is used to:
//   - Resize images to fit maximum dimensions (for embedding in MP3 or packing)
//   - Convert images to JPEG format (for better compatibility)
//
// Example usage:
//
//	svc := NewImageService()
//	cover, err := svc.PrepareCover(ctx, imageData, 1200)
type ImageService struct{}

// NewImageService creates a new ImageService.
func NewImageService() *ImageService {
	return &ImageService{}
}

// PrepareCover turns downloaded artwork into a JPEG whose longest edge is
// at most maxEdge pixels. A non-positive maxEdge only converts.
func (s *ImageService) PrepareCover(ctx context.Context, data []byte, maxEdge int) ([]byte, error) {
	if maxEdge <= 0 {
		return s.ConvertToJPEG(ctx, data)
	}
	return s.ResizeImage(ctx, data, maxEdge, maxEdge)
}

// ResizeImage resizes an image to fit within the specified maximum dimensions.
//
// The aspect ratio is preserved and images are never enlarged. The result
// is always JPEG-encoded. The Catmull-Rom kernel is used for scaling.
//
// Example:
//
//	// A 1500x1000 image becomes 1000x666
//	resized, err := svc.ResizeImage(ctx, imageData, 1000, 1000)
func (s *ImageService) ResizeImage(ctx context.Context, data []byte, maxWidth, maxHeight int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	bounds := img.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)
	if width == bounds.Dx() && height == bounds.Dy() {
		return encodeJPEG(img)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	return encodeJPEG(dst)
}

// ConvertToJPEG re-encodes an image (JPEG, PNG or GIF) as JPEG.
func (s *ImageService) ConvertToJPEG(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	return encodeJPEG(img)
}

// fitWithin scales (w, h) down to fit (maxW, maxH), keeping the ratio.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	ratio := float64(w) / float64(h)
	if float64(maxW)/float64(maxH) > ratio {
		return max(1, int(float64(maxH)*ratio)), maxH
	}
	return maxW, max(1, int(float64(maxW)/ratio))
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
