package wgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer Just an alias to Weight+Bias+ActivationFunc combo.
//
// Layer owns its parameters as plain tensors. Graph nodes are created per expression graph by Network.Bind
// and share the very same tensors, so a solver step on one graph is visible on every other graph.
//
// Weight - convolution kernel [out, in, kh, kw] or normalization scale [channels]
// Bias - normalization shift [channels]
// RunningMean, RunningVar - normalization running statistics (not learnable)
//
type Layer struct {
	Type              LayerType
	Activation        ActivationFunc
	ActivationOptions Options

	KernelHeight int
	KernelWidth  int
	Padding      []int
	Stride       []int
	Dilation     []int

	Scale int

	Momentum float64
	Epsilon  float64

	Weight      *tensor.Dense
	Bias        *tensor.Dense
	RunningMean *tensor.Dense
	RunningVar  *tensor.Dense
}

type LayerType uint16

const (
	LayerConvolutional = LayerType(iota)
	LayerBatchNorm
	LayerUpsample
)

func (lt LayerType) String() string {
	switch lt {
	case LayerConvolutional:
		return "Conv2d"
	case LayerBatchNorm:
		return "BatchNorm2d"
	case LayerUpsample:
		return "Upsample2d"
	default:
		return fmt.Sprintf("LayerType(%d)", uint16(lt))
	}
}

// Mode Defines how normalization layers are evaluated on a graph
type Mode uint16

const (
	// ModeTrain normalizes with batch statistics and records them for running statistics update
	ModeTrain = Mode(iota)
	// ModeEval normalizes with running statistics
	ModeEval
)

// ConvLayer Creates 2D convolution layer without bias.
//
// in, out - number of input and output channels
// kernel - square kernel size
// stride, padding - applied to both spatial dimensions
// activation - activation function applied to convolution output
//
func ConvLayer(in, out, kernel, stride, padding int, activation ActivationFunc) *Layer {
	shp := tensor.Shape{out, in, kernel, kernel}
	return &Layer{
		Type:         LayerConvolutional,
		Activation:   activation,
		KernelHeight: kernel,
		KernelWidth:  kernel,
		Padding:      []int{padding, padding},
		Stride:       []int{stride, stride},
		Dilation:     []int{1, 1},
		Weight:       tensor.New(tensor.WithShape(shp...), tensor.WithBacking(gorgonia.GlorotN(1.0)(tensor.Float64, shp...))),
	}
}

// BatchNormLayer Creates 2D batch normalization layer for provided number of channels
func BatchNormLayer(channels int, momentum, epsilon float64, activation ActivationFunc) *Layer {
	return &Layer{
		Type:        LayerBatchNorm,
		Activation:  activation,
		Momentum:    momentum,
		Epsilon:     epsilon,
		Weight:      tensor.New(tensor.WithShape(channels), tensor.WithBacking(gorgonia.Ones()(tensor.Float64, channels))),
		Bias:        tensor.New(tensor.WithShape(channels), tensor.WithBacking(gorgonia.Zeroes()(tensor.Float64, channels))),
		RunningMean: tensor.New(tensor.WithShape(channels), tensor.WithBacking(gorgonia.Zeroes()(tensor.Float64, channels))),
		RunningVar:  tensor.New(tensor.WithShape(channels), tensor.WithBacking(gorgonia.Ones()(tensor.Float64, channels))),
	}
}

// UpsampleLayer Creates nearest neighbour upsampling layer: each pixel is repeated scale times along both spatial dimensions
func UpsampleLayer(scale int) *Layer {
	return &Layer{
		Type:       LayerUpsample,
		Activation: NoActivation,
		Scale:      scale,
	}
}

// layerNodes Graph nodes bound to layer's tensors
type layerNodes struct {
	weight      *gorgonia.Node
	bias        *gorgonia.Node
	runningMean *gorgonia.Node
	runningVar  *gorgonia.Node
}

// batchStats Batch statistics read from graph after run
type batchStats struct {
	layer    *Layer
	count    int
	mean     gorgonia.Value
	variance gorgonia.Value
}

// Fwd Feedforward input through the layer before activation
func (l *Layer) Fwd(input *gorgonia.Node, nodes *layerNodes, mode Mode) (*gorgonia.Node, *batchStats, error) {
	switch l.Type {
	case LayerConvolutional:
		out, err := gorgonia.Conv2d(input, nodes.weight, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Padding, l.Stride, l.Dilation)
		if err != nil {
			return nil, nil, errors.Wrap(err, "Can't convolve[2D] input by kernel")
		}
		return out, nil, nil
	case LayerBatchNorm:
		return l.normalize(input, nodes, mode)
	case LayerUpsample:
		out, err := gorgonia.Upsample2D(input, l.Scale)
		if err != nil {
			return nil, nil, errors.Wrap(err, "Can't upsample[2D] input")
		}
		return out, nil, nil
	default:
		return nil, nil, fmt.Errorf("Layer type '%d' (uint16) is not handled", l.Type)
	}
}

// normalize Batch normalization over (N, H, W) for each channel of NCHW input
func (l *Layer) normalize(input *gorgonia.Node, nodes *layerNodes, mode Mode) (*gorgonia.Node, *batchStats, error) {
	shp := input.Shape()
	if len(shp) != 4 {
		return nil, nil, fmt.Errorf("Batch normalization expects 4D input, but got shape %v", shp)
	}
	bcast := tensor.Shape{1, shp[1], 1, 1}
	pattern := []byte{0, 2, 3}

	var (
		mean, variance *gorgonia.Node
		centered       *gorgonia.Node
		stats          *batchStats
		err            error
	)
	switch mode {
	case ModeTrain:
		batchMean, err := gorgonia.Mean(input, 0, 2, 3)
		if err != nil {
			return nil, nil, errors.Wrap(err, "Can't do mean(X) over (N, H, W)")
		}
		if mean, err = gorgonia.Reshape(batchMean, bcast); err != nil {
			return nil, nil, errors.Wrap(err, "Can't reshape batch mean")
		}
		if centered, err = gorgonia.BroadcastSub(input, mean, nil, pattern); err != nil {
			return nil, nil, errors.Wrap(err, "Can't do (X-mean)")
		}
		sqr, err := gorgonia.Square(centered)
		if err != nil {
			return nil, nil, errors.Wrap(err, "Can't do (x^2)")
		}
		if variance, err = gorgonia.Mean(sqr, 0, 2, 3); err != nil {
			return nil, nil, errors.Wrap(err, "Can't do mean(x^2) over (N, H, W)")
		}
		stats = &batchStats{layer: l, count: shp[0] * shp[2] * shp[3]}
		gorgonia.Read(batchMean, &stats.mean)
		gorgonia.Read(variance, &stats.variance)
	case ModeEval:
		if mean, err = gorgonia.Reshape(nodes.runningMean, bcast); err != nil {
			return nil, nil, errors.Wrap(err, "Can't reshape running mean")
		}
		if centered, err = gorgonia.BroadcastSub(input, mean, nil, pattern); err != nil {
			return nil, nil, errors.Wrap(err, "Can't do (X-mean)")
		}
		variance = nodes.runningVar
	default:
		return nil, nil, fmt.Errorf("Mode '%d' (uint16) is not handled", mode)
	}

	eps := gorgonia.NewConstant(l.Epsilon)
	shifted, err := gorgonia.Add(variance, eps)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't do (var+eps)")
	}
	stdVec, err := gorgonia.Sqrt(shifted)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't do sqrt(x)")
	}
	std, err := gorgonia.Reshape(stdVec, bcast)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't reshape std")
	}
	normalized, err := gorgonia.BroadcastHadamardDiv(centered, std, nil, pattern)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't do (X-mean)/std")
	}
	scale, err := gorgonia.Reshape(nodes.weight, bcast)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't reshape scale")
	}
	shift, err := gorgonia.Reshape(nodes.bias, bcast)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't reshape shift")
	}
	scaled, err := gorgonia.BroadcastHadamardProd(normalized, scale, nil, pattern)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't do (x.*scale)")
	}
	out, err := gorgonia.BroadcastAdd(scaled, shift, nil, pattern)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't do (x+shift)")
	}
	return out, stats, nil
}

// update Moves running statistics towards the last batch statistics. Variance is stored unbiased.
func (s *batchStats) update() error {
	if s.mean == nil || s.variance == nil {
		return fmt.Errorf("Batch statistics have not been computed yet")
	}
	batchMean, err := float64s(s.mean)
	if err != nil {
		return errors.Wrap(err, "Batch mean")
	}
	batchVar, err := float64s(s.variance)
	if err != nil {
		return errors.Wrap(err, "Batch variance")
	}
	runningMean := s.layer.RunningMean.Data().([]float64)
	runningVar := s.layer.RunningVar.Data().([]float64)
	if len(batchMean) != len(runningMean) || len(batchVar) != len(runningVar) {
		return fmt.Errorf("Batch statistics have %d channels, but layer has %d", len(batchMean), len(runningMean))
	}
	correction := 1.0
	if s.count > 1 {
		correction = float64(s.count) / float64(s.count-1)
	}
	unbiased := floats.ScaleTo(make([]float64, len(batchVar)), correction, batchVar)
	m := s.layer.Momentum
	floats.Scale(1-m, runningMean)
	floats.AddScaled(runningMean, m, batchMean)
	floats.Scale(1-m, runningVar)
	floats.AddScaled(runningVar, m, unbiased)
	return nil
}

// float64s Returns data of value as slice. Single channel statistics come as scalars.
func float64s(v gorgonia.Value) ([]float64, error) {
	switch data := v.Data().(type) {
	case []float64:
		return data, nil
	case float64:
		return []float64{data}, nil
	default:
		return nil, fmt.Errorf("Unexpected data type %T", data)
	}
}
