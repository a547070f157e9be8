package wgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// generatorMachine Generator-only graph with its own tape machine. Produces plain tensors which are
// never recorded on any other graph's tape.
//
// trackStats - whether running statistics of generator should be updated after every run
//
type generatorMachine struct {
	graph      *gorgonia.ExprGraph
	input      *gorgonia.Node
	bound      *BoundNetwork
	out        gorgonia.Value
	vm         gorgonia.VM
	batchSize  int
	trackStats bool
}

func newGeneratorMachine(net *GeneratorNet, batchSize int, mode Mode, trackStats bool) (*generatorMachine, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("Batch size must be > 0, but got %d", batchSize)
	}
	g := gorgonia.NewGraph()
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(batchSize, net.LatentSize(), 1, 1), gorgonia.WithName("generator_input"))
	bound, out, err := net.Bind(input, batchSize, mode)
	if err != nil {
		return nil, errors.Wrap(err, "Can't initialize generator feedforward")
	}
	machine := &generatorMachine{
		graph:      g,
		input:      input,
		bound:      bound,
		batchSize:  batchSize,
		trackStats: trackStats,
	}
	gorgonia.Read(out, &machine.out)
	machine.vm = gorgonia.NewTapeMachine(g)
	return machine, nil
}

// Run Feedforwards latent vectors [batchSize, Z, 1, 1] and returns copy of generated images
func (m *generatorMachine) Run(latent *tensor.Dense) (*tensor.Dense, error) {
	if !latent.Shape().Eq(m.input.Shape()) {
		return nil, fmt.Errorf("Latent vectors must have shape %v, but got %v", m.input.Shape(), latent.Shape())
	}
	err := gorgonia.Let(m.input, latent)
	if err != nil {
		return nil, errors.Wrap(err, "Can't init input value")
	}
	m.bound.SyncBuffers()
	defer m.vm.Reset()
	err = m.vm.RunAll()
	if err != nil {
		return nil, errors.Wrap(err, "Can't run VM")
	}
	if m.trackStats {
		if err = m.bound.UpdateRunningStats(); err != nil {
			return nil, err
		}
	}
	out, ok := m.out.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("Generator output has unexpected type %T", m.out)
	}
	return out.Clone().(*tensor.Dense), nil
}

func (m *generatorMachine) Close() error {
	return m.vm.Close()
}
