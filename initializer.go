package wgan_go

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	initWeightStd = 0.02
)

// InitWeights Returns function which resets layer's parameters in place (use it with Network.Apply):
//
// Convolutional layers - weight ~ N(0.0, 0.02)
// Batch normalization layers - scale ~ N(1.0, 0.02), shift = 0
// Other layers are left untouched
//
// Must be applied before solvers are attached to networks.
func InitWeights(src rand.Source) func(l *Layer) {
	conv := distuv.Normal{Mu: 0.0, Sigma: initWeightStd, Src: src}
	norm := distuv.Normal{Mu: 1.0, Sigma: initWeightStd, Src: src}
	return func(l *Layer) {
		switch l.Type {
		case LayerConvolutional:
			if l.Weight != nil {
				fill(l.Weight.Data().([]float64), conv.Rand)
			}
		case LayerBatchNorm:
			if l.Weight != nil {
				fill(l.Weight.Data().([]float64), norm.Rand)
			}
			if l.Bias != nil {
				l.Bias.Zero()
			}
		}
	}
}

func fill(data []float64, next func() float64) {
	for i := range data {
		data[i] = next()
	}
}
