package wgan_go

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const (
	gridImagesPerRow = 8
	gridPadding      = 2
	jpegQuality      = 95
)

// Denormalize Maps value from [-1, 1] back to [0, 1]
func Denormalize(x float64) float64 {
	return x*0.5 + 0.5
}

func toUint8(x float64) uint8 {
	v := math.Max(0, math.Min(1, Denormalize(x)))
	return uint8(v*255 + 0.5)
}

func pixel(data []float64, channels, plane, offset int) color.Color {
	if channels == 1 {
		return color.Gray{Y: toUint8(data[offset])}
	}
	return color.RGBA{
		R: toUint8(data[offset]),
		G: toUint8(data[offset+plane]),
		B: toUint8(data[offset+2*plane]),
		A: 255,
	}
}

func checkChannels(channels int) error {
	if channels != 1 && channels != 3 {
		return fmt.Errorf("Only 1 or 3 channels are supported, but got %d", channels)
	}
	return nil
}

// SampleGrid Arranges batch of images [N, C, H, W] in range [-1, 1] into single image:
// 8 images per row with 2px of black padding around every image
func SampleGrid(samples *tensor.Dense) (*image.RGBA, error) {
	shp := samples.Shape()
	if len(shp) != 4 {
		return nil, fmt.Errorf("Samples must have 4 dimensions [N, C, H, W], but got %v", shp)
	}
	n, channels, height, width := shp[0], shp[1], shp[2], shp[3]
	if err := checkChannels(channels); err != nil {
		return nil, err
	}
	data, ok := samples.Materialize().Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Samples must be float64 tensor")
	}
	cols := gridImagesPerRow
	if n < cols {
		cols = n
	}
	rows := (n + cols - 1) / cols
	grid := image.NewRGBA(image.Rect(0, 0, cols*(width+gridPadding)+gridPadding, rows*(height+gridPadding)+gridPadding))
	for i := range grid.Pix {
		if i%4 == 3 {
			grid.Pix[i] = 255
		}
	}
	plane := height * width
	for k := 0; k < n; k++ {
		x0 := (k%cols)*(width+gridPadding) + gridPadding
		y0 := (k/cols)*(height+gridPadding) + gridPadding
		base := k * channels * plane
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				grid.Set(x0+x, y0+y, pixel(data, channels, plane, base+y*width+x))
			}
		}
	}
	return grid, nil
}

// SaveSampleGrid Saves batch of images [N, C, H, W] in range [-1, 1] as single JPEG grid. Parent directory is created if needed.
func SaveSampleGrid(samples *tensor.Dense, fname string) error {
	grid, err := SampleGrid(samples)
	if err != nil {
		return errors.Wrap(err, "Can't arrange samples")
	}
	if err = os.MkdirAll(filepath.Dir(fname), 0755); err != nil {
		return errors.Wrap(err, "Can't create samples directory")
	}
	f, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create samples file")
	}
	if err = jpeg.Encode(f, grid, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		return errors.Wrap(err, "Can't encode samples")
	}
	return f.Close()
}

// ToImage Converts channel-last image [H, W, C] in range [-1, 1] to image.Image
func ToImage(hwc *tensor.Dense) (image.Image, error) {
	shp := hwc.Shape()
	if len(shp) != 3 {
		return nil, fmt.Errorf("Image must have 3 dimensions [H, W, C], but got %v", shp)
	}
	height, width, channels := shp[0], shp[1], shp[2]
	if err := checkChannels(channels); err != nil {
		return nil, err
	}
	data, ok := hwc.Materialize().Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Image must be float64 tensor")
	}
	rect := image.Rect(0, 0, width, height)
	if channels == 1 {
		img := image.NewGray(rect)
		for i, v := range data {
			img.Pix[i] = toUint8(v)
		}
		return img, nil
	}
	img := image.NewRGBA(rect)
	for i := 0; i < height*width; i++ {
		img.Pix[4*i] = toUint8(data[3*i])
		img.Pix[4*i+1] = toUint8(data[3*i+1])
		img.Pix[4*i+2] = toUint8(data[3*i+2])
		img.Pix[4*i+3] = 255
	}
	return img, nil
}
