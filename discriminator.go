package wgan_go

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// DiscriminatorNet Abstraction for discriminator (critic) part of GAN. It's simple neural network actually.
// Maps images [B, C, S, S] to unbounded scores [B, 1, 1, 1]: there is no sigmoid at the end.
type DiscriminatorNet struct {
	private *Network
}

// Discriminator Constructor for DiscriminatorNet
/*
	image(C,S,S) => conv4x4/2 => leaky_relu (features at S/2)
				 => [conv4x4/2 => batchnorm+leaky_relu] until 4x4
				 => conv4x4(1,1,1)
*/
func Discriminator(opts ArchitectureOptions) (*DiscriminatorNet, error) {
	if err := opts.validate(); err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	layers := []*Layer{
		ConvLayer(opts.Channels, opts.featuresAt(opts.ImageSize/2), 4, 2, 1, LeakyReLU),
	}
	for s := opts.ImageSize / 2; s > 4; s /= 2 {
		layers = append(layers,
			ConvLayer(opts.featuresAt(s), opts.featuresAt(s/2), 4, 2, 1, NoActivation),
			BatchNormLayer(opts.featuresAt(s/2), opts.Momentum, opts.Epsilon, LeakyReLU),
		)
	}
	layers = append(layers, ConvLayer(opts.featuresAt(4), 1, 4, 1, 0, NoActivation))
	return &DiscriminatorNet{private: &Network{
		Name:   "discriminator",
		Layers: layers,
	}}, nil
}

// Network Returns underlying network
func (net *DiscriminatorNet) Network() *Network {
	return net.private
}

// Params Returns parameters collection
func (net *DiscriminatorNet) Params() []Param {
	return net.private.Params()
}

// Apply Calls fn for every layer
func (net *DiscriminatorNet) Apply(fn func(l *Layer)) {
	net.private.Apply(fn)
}

// Bind Binds discriminator on graph. Feedforward could be initialized several times (e.g. for real and fake images)
func (net *DiscriminatorNet) Bind(g *gorgonia.ExprGraph, mode Mode) (*BoundNetwork, error) {
	bound, err := net.private.Bind(g, mode)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	return bound, nil
}
