package dataset

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultImageSize is the side length every image is resized to.
const DefaultImageSize = 128

// DecodeGray decodes an image, converts it to 8-bit luma, resizes it to
// size×size with the Catmull-Rom filter and returns the pixels scaled to
// [0,1] in row-major order.
func DecodeGray(r io.Reader, size int) ([]float32, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid image size %d", size)
	}
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, errors.New("empty image")
	}

	// Luma conversion happens before resampling, like a grayscale load
	// followed by a resize.
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, src, bounds.Min, draw.Src)

	dst := gray
	if bounds.Dx() != size || bounds.Dy() != size {
		dst = image.NewGray(image.Rect(0, 0, size, size))
		draw.CatmullRom.Scale(dst, dst.Bounds(), gray, bounds, draw.Src, nil)
	}

	out := make([]float32, size*size)
	for y := 0; y < size; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+size]
		for x, v := range row {
			out[y*size+x] = float32(v) / 255
		}
	}
	return out, nil
}

// LoadGray opens path and decodes it with DecodeGray.
func LoadGray(path string, size int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeGray(f, size)
}
