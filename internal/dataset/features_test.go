package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDecodeGrayUniformImage(t *testing.T) {
	buf := encodeGray(t, 128, 128, 200)
	row, err := DecodeGray(bytes.NewReader(buf), 128)
	if err != nil {
		t.Fatalf("DecodeGray: %v", err)
	}
	if len(row) != 128*128 {
		t.Fatalf("expected %d values, got %d", 128*128, len(row))
	}
	want := float32(200.0 / 255.0)
	for i, v := range row {
		if math.Abs(float64(v-want)) > 5e-3 {
			t.Fatalf("value %d = %f want %f", i, v, want)
		}
	}
}

func TestDecodeGrayResizesAndConvertsColor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 300; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 40, A: 255})
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	row, err := DecodeGray(buf, 32)
	if err != nil {
		t.Fatalf("DecodeGray: %v", err)
	}
	if len(row) != 32*32 {
		t.Fatalf("expected %d values, got %d", 32*32, len(row))
	}
	for _, v := range row {
		if v < 0 || v > 1 {
			t.Fatalf("value out of range: %f", v)
		}
	}
}

func TestDecodeGrayRejectsGarbage(t *testing.T) {
	if _, err := DecodeGray(bytes.NewReader([]byte("not an image")), 16); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestExtractFeaturesShapeAndOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 7; i++ {
		p := filepath.Join(dir, fmt.Sprintf("%d_0_0.png", i))
		writeGrayPNG(t, p, 20, 20, uint8(i*30))
		paths = append(paths, p)
	}
	for _, workers := range []int{1, 3} {
		f, err := ExtractFeatures(context.Background(), paths, ExtractOptions{Size: 16, NumWorkers: workers})
		if err != nil {
			t.Fatalf("ExtractFeatures(workers=%d): %v", workers, err)
		}
		shape := f.X.Shape()
		if shape[0] != 7 || shape[1] != 16 || shape[2] != 16 || shape[3] != 1 {
			t.Fatalf("unexpected shape %v", shape)
		}
		for i := 0; i < 7; i++ {
			want := float32(i*30) / 255
			if got := Row(f.X, i)[0]; math.Abs(float64(got-want)) > 5e-3 {
				t.Fatalf("workers=%d row %d = %f want %f", workers, i, got, want)
			}
		}
	}
}

func TestExtractFeaturesAllFail(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "1_0_0.jpg")
	if err := os.WriteFile(p, []byte("junk"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := ExtractFeatures(context.Background(), []string{p}, ExtractOptions{Size: 8})
	if !errors.Is(err, ErrNoImages) {
		t.Fatalf("expected ErrNoImages, got %v", err)
	}
}

func TestExtractFeaturesCanceled(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "1_0_0.png")
	writeGrayPNG(t, p, 8, 8, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ExtractFeatures(ctx, []string{p, p, p}, ExtractOptions{Size: 8, NumWorkers: 2})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// Scenario: 100 well-formed images, ages 0..99 with alternating gender.
func TestPipelineAllImagesDecode(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 100; i++ {
		writeGrayPNG(t, filepath.Join(dir, fmt.Sprintf("%d_%d_0_%03d.png", i, i%2, i)), 24, 24, uint8(i))
	}

	labels, err := ExtractLabels(dir, nil)
	if err != nil {
		t.Fatalf("ExtractLabels: %v", err)
	}
	if labels.Len() != 100 {
		t.Fatalf("expected 100 labels, got %d", labels.Len())
	}

	f, err := ExtractFeatures(context.Background(), labels.Paths, ExtractOptions{Size: 128, NumWorkers: 4, LogEvery: 100})
	if err != nil {
		t.Fatalf("ExtractFeatures: %v", err)
	}
	shape := f.X.Shape()
	if shape[0] != 100 || shape[1] != 128 || shape[2] != 128 || shape[3] != 1 {
		t.Fatalf("unexpected shape %v", shape)
	}
	for _, v := range f.X.Data().([]float32) {
		if v < 0 || v > 1 {
			t.Fatalf("value out of range: %f", v)
		}
	}

	set, err := NewSet(f, labels)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	train, val := Split(set.Len(), 0.2, 42)
	if len(train) != 80 || len(val) != 20 {
		t.Fatalf("expected 80/20 split, got %d/%d", len(train), len(val))
	}
}

// Scenario: one image in the set cannot be decoded.
func TestPipelineUndecodableImage(t *testing.T) {
	dir := t.TempDir()
	var corrupt string
	for i := 0; i < 100; i++ {
		p := filepath.Join(dir, fmt.Sprintf("%d_%d_0_%03d.png", i, i%2, i))
		if i == 37 {
			corrupt = p
			if err := os.WriteFile(p, []byte("corrupt"), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			continue
		}
		writeGrayPNG(t, p, 16, 16, uint8(i))
	}

	labels, err := ExtractLabels(dir, nil)
	if err != nil {
		t.Fatalf("ExtractLabels: %v", err)
	}
	f, err := ExtractFeatures(context.Background(), labels.Paths, ExtractOptions{Size: 16, NumWorkers: 3})
	if err != nil {
		t.Fatalf("ExtractFeatures: %v", err)
	}
	if f.Len() != 99 || f.X.Shape()[0] != 99 {
		t.Fatalf("expected 99 rows, got %d", f.X.Shape()[0])
	}
	if len(f.Failed) != 1 || f.Failed[0].Path != corrupt {
		t.Fatalf("unexpected failures %+v", f.Failed)
	}
	if labels.Len() != 100 {
		t.Fatalf("labels should keep 100 entries, got %d", labels.Len())
	}

	unfiltered := Set{X: f.X, Gender: labels.Genders, Age: labels.Ages}
	if err := unfiltered.Validate(); !errors.Is(err, ErrMisaligned) {
		t.Fatalf("expected ErrMisaligned for unfiltered labels, got %v", err)
	}

	set, err := NewSet(f, labels)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	if len(set.Age) != 99 || len(set.Gender) != 99 {
		t.Fatalf("expected 99 aligned labels, got %d/%d", len(set.Age), len(set.Gender))
	}
	for i, src := range f.Kept {
		if set.Age[i] != labels.Ages[src] {
			t.Fatalf("row %d: age %d want %d", i, set.Age[i], labels.Ages[src])
		}
		want := float32(labels.Ages[src]) / 255
		if got := Row(set.X, i)[0]; math.Abs(float64(got-want)) > 5e-3 {
			t.Fatalf("row %d pixel %f does not belong to age %d", i, got, labels.Ages[src])
		}
	}
}

func encodeGray(t *testing.T, w, h int, v uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func writeGrayPNG(t *testing.T, path string, w, h int, v uint8) {
	t.Helper()
	if err := os.WriteFile(path, encodeGray(t, w, h, v), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
