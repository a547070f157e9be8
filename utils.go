package wgan_go

import (
	"image/color"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gorgonia.org/tensor"
)

// NormRandDense Return reference to tensor.Dense filled with normally distributed float64 values (mean = 0, std = 1)
//
// rng - source of random values
// shape - shape of resulting dense
//
func NormRandDense(rng *rand.Rand, shape ...int) *tensor.Dense {
	data := make([]float64, tensor.Shape(shape).TotalSize())
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// LatentDense Return batch of latent vectors [batchSize, latentSize, 1, 1] drawn from standard normal distribution
func LatentDense(rng *rand.Rand, batchSize, latentSize int) *tensor.Dense {
	return NormRandDense(rng, batchSize, latentSize, 1, 1)
}

// SlicerOneStep Just iterator with step size = 1
type SlicerOneStep struct {
	StartIdx, EndIdx int
}

func (s SlicerOneStep) Start() int { return s.StartIdx }
func (s SlicerOneStep) End() int   { return s.EndIdx }
func (s SlicerOneStep) Step() int  { return 1 }

// PlotLosses Plot loss histories of both networks against iterations. File is overwritten.
// Format is determined by file extension (e.g. '.jpg', '.png').
func PlotLosses(history *History, fname string) error {
	p := plot.New()
	p.Title.Text = "Generator and Critic Loss During Training"
	p.X.Label.Text = "iterations"
	p.Y.Label.Text = "Loss"
	p.Add(plotter.NewGrid())

	generatorLine, err := plotter.NewLine(lossXYs(history.Generator))
	if err != nil {
		return errors.Wrap(err, "Can't init generator's line")
	}
	generatorLine.LineStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	criticLine, err := plotter.NewLine(lossXYs(history.Critic))
	if err != nil {
		return errors.Wrap(err, "Can't init critic's line")
	}
	criticLine.LineStyle.Color = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	p.Add(generatorLine, criticLine)
	p.Legend.Add("generator", generatorLine)
	p.Legend.Add("critic", criticLine)
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 5*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}

func lossXYs(losses []float64) plotter.XYs {
	xys := make(plotter.XYs, len(losses))
	for i, v := range losses {
		xys[i].X = float64(i)
		xys[i].Y = v
	}
	return xys
}
