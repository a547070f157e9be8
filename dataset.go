package wgan_go

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"gorgonia.org/tensor"
)

// Batch Single batch of real images [B, C, S, S] in range [-1, 1] and their class labels
type Batch struct {
	Images *tensor.Dense
	Labels []int
}

// Loader Source of batches. Every call of Epoch starts new pass over data.
type Loader interface {
	// Len Number of full batches in an epoch
	Len() int
	Epoch() BatchIterator
}

// BatchIterator Iterates over batches of an epoch. Returns io.EOF when the epoch is over.
type BatchIterator interface {
	Next() (*Batch, error)
}

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".bmp":  {},
	".webp": {},
}

type imageFile struct {
	path  string
	label int
}

// ImageFolderLoader Loads images from directory tree: <root>/<class>/.../<image>. Images placed right in the root get label 0
// when there are no class directories.
type ImageFolderLoader struct {
	files     []imageFile
	classes   []string
	imageSize int
	channels  int
	batchSize int
	rng       *rand.Rand
}

// ImageFolder Creates loader for images under root.
//
// imageSize - shorter side is resized to it and then the center square is cropped
// channels - 1 (grayscale) or 3 (RGB)
// batchSize - size of every yielded batch. Trailing images which do not fill the whole batch are skipped
// seed - seed for per epoch shuffling
//
func ImageFolder(root string, imageSize, channels, batchSize int, seed int64) (*ImageFolderLoader, error) {
	if imageSize <= 0 {
		return nil, fmt.Errorf("Image size must be > 0, but got %d", imageSize)
	}
	if err := checkChannels(channels); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("Batch size must be > 0, but got %d", batchSize)
	}
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "Can't walk dataset directory")
	}
	sort.Strings(paths)

	loader := &ImageFolderLoader{
		files:     make([]imageFile, 0, len(paths)),
		imageSize: imageSize,
		channels:  channels,
		batchSize: batchSize,
		rng:       rand.New(rand.NewSource(seed)),
	}
	classIdx := map[string]int{}
	for _, path := range paths {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil, errors.Wrap(err, "Can't resolve relative image path")
		}
		class := ""
		if parts := strings.Split(filepath.ToSlash(rel), "/"); len(parts) > 1 {
			class = parts[0]
		}
		idx, ok := classIdx[class]
		if !ok {
			idx = len(loader.classes)
			classIdx[class] = idx
			loader.classes = append(loader.classes, class)
		}
		loader.files = append(loader.files, imageFile{path: path, label: idx})
	}
	return loader, nil
}

// Classes Returns class names in label order
func (loader *ImageFolderLoader) Classes() []string {
	return loader.classes
}

// Len Returns number of full batches
func (loader *ImageFolderLoader) Len() int {
	return len(loader.files) / loader.batchSize
}

// Epoch Shuffles images and starts new pass
func (loader *ImageFolderLoader) Epoch() BatchIterator {
	order := loader.rng.Perm(len(loader.files))
	return &imageFolderIterator{loader: loader, order: order}
}

type imageFolderIterator struct {
	loader *ImageFolderLoader
	order  []int
	pos    int
}

func (it *imageFolderIterator) Next() (*Batch, error) {
	l := it.loader
	if it.pos+l.batchSize > len(it.order) {
		return nil, io.EOF
	}
	plane := l.imageSize * l.imageSize
	data := make([]float64, l.batchSize*l.channels*plane)
	labels := make([]int, l.batchSize)
	for b := 0; b < l.batchSize; b++ {
		f := l.files[it.order[it.pos+b]]
		img, err := decodeImage(f.path)
		if err != nil {
			return nil, err
		}
		img = resizeCenterCrop(img, l.imageSize)
		fillCHW(data[b*l.channels*plane:(b+1)*l.channels*plane], img, l.channels)
		labels[b] = f.label
	}
	it.pos += l.batchSize
	return &Batch{
		Images: tensor.New(tensor.WithShape(l.batchSize, l.channels, l.imageSize, l.imageSize), tensor.WithBacking(data)),
		Labels: labels,
	}, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open image")
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't decode image '%s'", path)
	}
	return img, nil
}

// resizeCenterCrop Scales image so its shorter side equals size and crops the central square
func resizeCenterCrop(src image.Image, size int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	nw, nh := size, size
	if w > h {
		nw = (w*size + h/2) / h
	} else {
		nh = (h*size + w/2) / w
	}
	scaled := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, b, draw.Src, nil)
	x0, y0 := (nw-size)/2, (nh-size)/2
	cropped := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(cropped, cropped.Bounds(), scaled, image.Pt(x0, y0), draw.Src)
	return cropped
}

// fillCHW Writes image into dst as [C, H, W] normalized by (v - 0.5) / 0.5
func fillCHW(dst []float64, img image.Image, channels int) {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := y*w + x
			c := img.At(b.Min.X+x, b.Min.Y+y)
			if channels == 1 {
				g := color.GrayModel.Convert(c).(color.Gray)
				dst[off] = normalizeByte(g.Y)
				continue
			}
			r, g, bl, _ := c.RGBA()
			dst[off] = normalizeByte(uint8(r >> 8))
			dst[plane+off] = normalizeByte(uint8(g >> 8))
			dst[2*plane+off] = normalizeByte(uint8(bl >> 8))
		}
	}
}

func normalizeByte(v uint8) float64 {
	return (float64(v)/255.0 - 0.5) / 0.5
}
