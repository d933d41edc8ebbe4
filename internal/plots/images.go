package plots

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"utkface-forge/internal/dataset"
	"utkface-forge/internal/predict"
)

const (
	// MaxGridSamples caps SampleGrid at a 4x4 grid.
	MaxGridSamples = 16
	cellSize       = 128
	captionHeight  = 18
	padding        = 6
)

var face = basicfont.Face7x13

// SampleGrid draws up to MaxGridSamples images in a grid of cols columns,
// each captioned "Age: a | Gender: g".
func SampleGrid(samples []dataset.Sample, polarity predict.Polarity, cols int, path string) error {
	if len(samples) == 0 {
		return errors.New("plots: no samples to draw")
	}
	if len(samples) > MaxGridSamples {
		samples = samples[:MaxGridSamples]
	}
	if cols <= 0 {
		cols = 4
	}
	captions := make([]string, len(samples))
	cellW := cellSize
	for i, s := range samples {
		captions[i] = fmt.Sprintf("Age: %d | Gender: %s", s.Age, polarity.Name(s.Gender))
		if w := textWidth(captions[i]) + padding; w > cellW {
			cellW = w
		}
	}
	rows := (len(samples) + cols - 1) / cols
	cellH := cellSize + captionHeight
	canvas := newCanvas(cols*(cellW+padding)+padding, rows*(cellH+padding)+padding)

	for i, s := range samples {
		img, err := loadImage(s.Path)
		if err != nil {
			return err
		}
		x := padding + (i%cols)*(cellW+padding)
		y := padding + (i/cols)*(cellH+padding)
		drawCaption(canvas, captions[i], x, y+captionHeight-5)
		dst := image.Rect(x+(cellW-cellSize)/2, y+captionHeight, x+(cellW-cellSize)/2+cellSize, y+cellH)
		draw.CatmullRom.Scale(canvas, dst, img, img.Bounds(), draw.Src, nil)
	}
	return savePNG(canvas, path)
}

// PredictionOverlay writes the image at imagePath with the prediction
// caption above it.
func PredictionOverlay(imagePath string, res predict.Result, path string) error {
	img, err := loadImage(imagePath)
	if err != nil {
		return err
	}
	caption := res.String()
	b := img.Bounds()
	w := b.Dx()
	if tw := textWidth(caption) + 2*padding; tw > w {
		w = tw
	}
	canvas := newCanvas(w, b.Dy()+captionHeight+padding)
	drawCaption(canvas, caption, padding, captionHeight-3)
	off := image.Pt((w-b.Dx())/2, captionHeight+padding)
	draw.Draw(canvas, image.Rectangle{Min: off, Max: off.Add(b.Size())}, img, b.Min, draw.Src)
	return savePNG(canvas, path)
}

func newCanvas(w, h int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	return canvas
}

func textWidth(s string) int {
	return font.MeasureString(face, s).Ceil()
}

func drawCaption(dst draw.Image, s string, x, baseline int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("plots: open %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("plots: decode %s: %w", path, err)
	}
	return img, nil
}

func savePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("plots: create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("plots: encode %s: %w", path, err)
	}
	return f.Close()
}
