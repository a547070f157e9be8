package wgan_go

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"gorgonia.org/tensor"
)

func TestSampleGridGeometry(t *testing.T) {
	grid, err := SampleGrid(constantImages(4, 3, 8, 1))
	if err != nil {
		t.Fatal(err)
	}
	// 4 images in a row: 4*(8+2)+2 x 1*(8+2)+2
	if b := grid.Bounds(); b.Dx() != 42 || b.Dy() != 12 {
		t.Fatalf("Grid should be 42x12, but got %dx%d", b.Dx(), b.Dy())
	}
	if c := grid.RGBAAt(0, 0); c != (color.RGBA{A: 255}) {
		t.Errorf("Padding should be black, but got %v", c)
	}
	if c := grid.RGBAAt(2, 2); c != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("Value 1 should become white, but got %v", c)
	}

	grid, err = SampleGrid(constantImages(9, 1, 8, -1))
	if err != nil {
		t.Fatal(err)
	}
	if b := grid.Bounds(); b.Dx() != 82 || b.Dy() != 22 {
		t.Errorf("Grid of 9 images should be 82x22, but got %dx%d", b.Dx(), b.Dy())
	}
}

func TestSaveSampleGrid(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "samples", "E1.jpg")
	if err := SaveSampleGrid(constantImages(2, 1, 8, 0), fname); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(fname); err != nil {
		t.Error(err)
	}
	if err := SaveSampleGrid(constantImages(2, 2, 8, 0), fname); err == nil {
		t.Error("Two channel samples should be rejected")
	}
}

func TestToImage(t *testing.T) {
	hwc := tensor.New(tensor.WithShape(1, 2, 3), tensor.WithBacking([]float64{
		-1, 0, 1,
		1, 1, 1,
	}))
	img, err := ToImage(hwc)
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 != 0 || g>>8 != 128 || b>>8 != 255 {
		t.Errorf("Unexpected first pixel: %d %d %d", r>>8, g>>8, b>>8)
	}
	if Denormalize(-1) != 0 || Denormalize(1) != 1 {
		t.Error("Denormalize should map [-1, 1] to [0, 1]")
	}
}
