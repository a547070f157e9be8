package wgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Network Abstraction for neural network.
//
// Name - prefix for parameters and nodes names
// Layers - simple sequence of layers
//
type Network struct {
	Name   string
	Layers []*Layer
}

// Param Named parameter tensor of network
type Param struct {
	Name      string
	Value     *tensor.Dense
	Learnable bool
}

// Apply Calls fn for every layer of network. Analog of module.apply(fn)
func (net *Network) Apply(fn func(l *Layer)) {
	for _, l := range net.Layers {
		if l != nil {
			fn(l)
		}
	}
}

// Params Returns ordered parameter collection of network: learnables and running statistics.
// Names are stable for given architecture, so they are used as checkpoint keys.
func (net *Network) Params() []Param {
	params := make([]Param, 0, 4*len(net.Layers))
	for i, l := range net.Layers {
		if l == nil {
			continue
		}
		if l.Weight != nil {
			params = append(params, Param{Name: fmt.Sprintf("%s_%d_weight", net.name(), i), Value: l.Weight, Learnable: true})
		}
		if l.Bias != nil {
			params = append(params, Param{Name: fmt.Sprintf("%s_%d_bias", net.name(), i), Value: l.Bias, Learnable: true})
		}
		if l.RunningMean != nil {
			params = append(params, Param{Name: fmt.Sprintf("%s_%d_running_mean", net.name(), i), Value: l.RunningMean})
		}
		if l.RunningVar != nil {
			params = append(params, Param{Name: fmt.Sprintf("%s_%d_running_var", net.name(), i), Value: l.RunningVar})
		}
	}
	return params
}

// Learnables Returns learnables tensors
func (net *Network) Learnables() []*tensor.Dense {
	learnables := make([]*tensor.Dense, 0, 2*len(net.Layers))
	for _, p := range net.Params() {
		if p.Learnable {
			learnables = append(learnables, p.Value)
		}
	}
	return learnables
}

func (net *Network) name() string {
	if net.Name != "" {
		return net.Name
	}
	return "network"
}

// BoundNetwork Network materialized on certain expression graph
//
// nodes - per layer nodes bound to layer's tensors
// learnables - learnables nodes on this graph
// stats - batch statistics collected by every Fwd call in ModeTrain
// buffers - copies of running statistics bound in ModeEval
//
type BoundNetwork struct {
	net        *Network
	graph      *gorgonia.ExprGraph
	mode       Mode
	nodes      []*layerNodes
	learnables gorgonia.Nodes
	stats      []*batchStats
	buffers    []bufferCopy
	calls      int
}

// bufferCopy Graph-local copy of layer's non learnable tensor
type bufferCopy struct {
	src *tensor.Dense
	dst *tensor.Dense
}

// Bind Creates nodes for network's parameters on provided graph. Nodes share tensors with network's layers.
func (net *Network) Bind(g *gorgonia.ExprGraph, mode Mode) (*BoundNetwork, error) {
	if len(net.Layers) == 0 {
		return nil, fmt.Errorf("Network must have one layer atleast")
	}
	bound := &BoundNetwork{
		net:   net,
		graph: g,
		mode:  mode,
		nodes: make([]*layerNodes, len(net.Layers)),
	}
	for i, l := range net.Layers {
		if l == nil {
			return nil, fmt.Errorf("Network's layer #%d is nil", i)
		}
		if weightRequired(l.Type) && l.Weight == nil {
			return nil, fmt.Errorf("Network's layer's #%d Weight is nil", i)
		}
		nodes := &layerNodes{}
		if l.Weight != nil {
			nodes.weight = bindTensor(g, l.Weight, fmt.Sprintf("%s_%d_weight", net.name(), i))
			bound.learnables = append(bound.learnables, nodes.weight)
		}
		if l.Bias != nil {
			nodes.bias = bindTensor(g, l.Bias, fmt.Sprintf("%s_%d_bias", net.name(), i))
			bound.learnables = append(bound.learnables, nodes.bias)
		}
		if l.Type == LayerBatchNorm {
			if l.Bias == nil || l.RunningMean == nil || l.RunningVar == nil {
				return nil, fmt.Errorf("Network's layer #%d [%s] misses shift or running statistics", i, l.Type)
			}
			if mode == ModeEval {
				// graph may overwrite its inputs in place, so it gets its own copies of the buffers
				runningMean := l.RunningMean.Clone().(*tensor.Dense)
				runningVar := l.RunningVar.Clone().(*tensor.Dense)
				nodes.runningMean = bindTensor(g, runningMean, fmt.Sprintf("%s_%d_running_mean", net.name(), i))
				nodes.runningVar = bindTensor(g, runningVar, fmt.Sprintf("%s_%d_running_var", net.name(), i))
				bound.buffers = append(bound.buffers,
					bufferCopy{src: l.RunningMean, dst: runningMean},
					bufferCopy{src: l.RunningVar, dst: runningVar},
				)
			}
		}
		bound.nodes[i] = nodes
	}
	return bound, nil
}

func bindTensor(g *gorgonia.ExprGraph, t *tensor.Dense, name string) *gorgonia.Node {
	return gorgonia.NewTensor(g, gorgonia.Float64, t.Dims(), gorgonia.WithShape(t.Shape().Clone()...), gorgonia.WithName(name), gorgonia.WithValue(t))
}

func weightRequired(t LayerType) bool {
	return t == LayerConvolutional || t == LayerBatchNorm
}

// Learnables Returns learnables nodes
func (net *BoundNetwork) Learnables() gorgonia.Nodes {
	return net.learnables
}

// Network Returns network which has been bound
func (net *BoundNetwork) Network() *Network {
	return net.net
}

// Fwd Initializates feedforward for provided input. Could be called several times on the same graph:
// every call shares parameters nodes.
//
// input - Input node
// batchSize - batch size. Must match the first dimension of input
//
func (net *BoundNetwork) Fwd(input *gorgonia.Node, batchSize int) (*gorgonia.Node, error) {
	if input.Graph() != net.graph {
		return nil, fmt.Errorf("Input node belongs to another graph")
	}
	if input.Shape()[0] != batchSize {
		return nil, fmt.Errorf("Input has batch dimension %d, but batch size is %d", input.Shape()[0], batchSize)
	}
	networkName := fmt.Sprintf("%s_%d", net.net.name(), net.calls)
	net.calls++

	lastActivatedLayer := input
	for i, l := range net.net.Layers {
		layerNonActivated, stats, err := l.Fwd(lastActivatedLayer, net.nodes[i], net.mode)
		if err != nil {
			return nil, errors.Wrapf(err, "[Network, Layer #%d] Can't feedforward input before activation", i)
		}
		if stats != nil {
			net.stats = append(net.stats, stats)
		}
		gorgonia.WithName(fmt.Sprintf("%s_%d", networkName, i))(layerNonActivated)
		activation := l.Activation
		if activation == nil {
			activation = NoActivation
		}
		layerActivated, err := activation(layerNonActivated, l.ActivationOptions)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't apply activation function to non-activated output of Network's layer #%d", i)
		}
		if layerActivated != layerNonActivated {
			gorgonia.WithName(fmt.Sprintf("%s_activated_%d", networkName, i))(layerActivated)
		}
		lastActivatedLayer = layerActivated
	}
	return lastActivatedLayer, nil
}

// UpdateRunningStats Moves normalization running statistics using batch statistics of the last graph run.
// Must be called after the graph has been executed and before it is reset.
func (net *BoundNetwork) UpdateRunningStats() error {
	for i, s := range net.stats {
		if err := s.update(); err != nil {
			return errors.Wrapf(err, "Can't update running statistics #%d of %s", i, net.net.name())
		}
	}
	return nil
}

// SyncBuffers Copies current running statistics of layers into the graph. Must be called before every run in ModeEval.
func (net *BoundNetwork) SyncBuffers() {
	for _, b := range net.buffers {
		copy(b.dst.Float64s(), b.src.Float64s())
	}
}
