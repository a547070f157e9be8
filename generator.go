package wgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GeneratorNet Abstraction for generator part of GAN. Maps latent vectors [B, Z, 1, 1] to images [B, C, S, S] in range [-1, 1].
type GeneratorNet struct {
	private    *Network
	latentSize int
	imageSize  int
	channels   int
}

// ArchitectureOptions Options for building generator and discriminator
//
// LatentSize - size of latent vector (Z)
// ImageSize - height and width of image (S). Must be power of two and >= 8
// Channels - number of image channels (C)
// Features - number of feature maps next to the image. Deeper layers have more of them
// Momentum, Epsilon - batch normalization parameters
//
type ArchitectureOptions struct {
	LatentSize int
	ImageSize  int
	Channels   int
	Features   int
	Momentum   float64
	Epsilon    float64
}

func (opts ArchitectureOptions) validate() error {
	if opts.ImageSize < 8 || opts.ImageSize&(opts.ImageSize-1) != 0 {
		return fmt.Errorf("Image size must be power of two and >= 8, but got %d", opts.ImageSize)
	}
	if opts.LatentSize <= 0 {
		return fmt.Errorf("Latent size must be > 0, but got %d", opts.LatentSize)
	}
	if opts.Channels <= 0 {
		return fmt.Errorf("Number of channels must be > 0, but got %d", opts.Channels)
	}
	if opts.Features <= 0 {
		return fmt.Errorf("Number of features must be > 0, but got %d", opts.Features)
	}
	return nil
}

// featuresAt Number of feature maps for spatial size s: features at S/2, doubled every time size is halved
func (opts ArchitectureOptions) featuresAt(s int) int {
	return opts.Features * opts.ImageSize / (2 * s)
}

// Generator Constructor for GeneratorNet
/*
	latent(Z,1,1) => upsample(Z,4,4) => conv3x3 => batchnorm+relu (features at 4)
				  => [upsample(x2) => conv3x3 => batchnorm+relu] until S/2
				  => upsample(x2) => conv3x3(C,S,S) => tanh
*/
func Generator(opts ArchitectureOptions) (*GeneratorNet, error) {
	if err := opts.validate(); err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	layers := []*Layer{
		UpsampleLayer(4),
		ConvLayer(opts.LatentSize, opts.featuresAt(4), 3, 1, 1, NoActivation),
		BatchNormLayer(opts.featuresAt(4), opts.Momentum, opts.Epsilon, Rectify),
	}
	for s := 8; s <= opts.ImageSize/2; s *= 2 {
		layers = append(layers,
			UpsampleLayer(2),
			ConvLayer(opts.featuresAt(s/2), opts.featuresAt(s), 3, 1, 1, NoActivation),
			BatchNormLayer(opts.featuresAt(s), opts.Momentum, opts.Epsilon, Rectify),
		)
	}
	layers = append(layers,
		UpsampleLayer(2),
		ConvLayer(opts.featuresAt(opts.ImageSize/2), opts.Channels, 3, 1, 1, Tanh),
	)
	return &GeneratorNet{
		private: &Network{
			Name:   "generator",
			Layers: layers,
		},
		latentSize: opts.LatentSize,
		imageSize:  opts.ImageSize,
		channels:   opts.Channels,
	}, nil
}

// Network Returns underlying network
func (net *GeneratorNet) Network() *Network {
	return net.private
}

// Params Returns parameters collection
func (net *GeneratorNet) Params() []Param {
	return net.private.Params()
}

// Apply Calls fn for every layer
func (net *GeneratorNet) Apply(fn func(l *Layer)) {
	net.private.Apply(fn)
}

// LatentSize Returns expected size of latent vector
func (net *GeneratorNet) LatentSize() int {
	return net.latentSize
}

// Bind Binds generator on graph and initializates feedforward for latent input node [batchSize, Z, 1, 1]
func (net *GeneratorNet) Bind(input *gorgonia.Node, batchSize int, mode Mode) (*BoundNetwork, *gorgonia.Node, error) {
	bound, err := net.private.Bind(input.Graph(), mode)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Generator]")
	}
	out, err := bound.Fwd(input, batchSize)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Generator]")
	}
	return bound, out, nil
}

// ImageShape Returns shape of images batch produced by generator
func (net *GeneratorNet) ImageShape(batchSize int) tensor.Shape {
	return tensor.Shape{batchSize, net.channels, net.imageSize, net.imageSize}
}
