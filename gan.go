package wgan_go

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GAN Wasserstein GAN with weight clamping.
//
// Three evaluation graphs are used and all of them share parameters tensors of both networks:
//
// fakes - generator only graph. Its output is fed into critic graph as plain value, so critic step never backpropagates into generator
// criticGraph - critic applied to real and fake images. Solver is bound to critic's learnables only
// ganGraph - generator followed by critic (modifiedDiscriminator). Solver is bound to generator's learnables only, so critic's nodes are read-only there
//
type GAN struct {
	generatorPart     *GeneratorNet
	discriminatorPart *DiscriminatorNet

	batchSize  int
	clampValue float64
	rng        *rand.Rand

	fakes   *generatorMachine
	samples *generatorMachine

	criticGraph  *gorgonia.ExprGraph
	criticReal   *gorgonia.Node
	criticFake   *gorgonia.Node
	critic       *BoundNetwork
	criticCost   gorgonia.Value
	criticVM     gorgonia.VM
	criticSolver gorgonia.Solver

	ganGraph              *gorgonia.ExprGraph
	ganInput              *gorgonia.Node
	ganGenerator          *BoundNetwork
	modifiedDiscriminator *BoundNetwork
	ganCost               gorgonia.Value
	ganVM                 gorgonia.VM
	ganSolver             gorgonia.Solver

	observe stepObserver
}

type trainingStage uint16

const (
	stageClamp = trainingStage(iota)
	stageCritic
	stageGenerator
)

// stepObserver Is notified about every training stage with the latent batch drawn for it (nil for clamp)
type stepObserver func(stage trainingStage, latent *tensor.Dense)

func (net *GAN) notify(stage trainingStage, latent *tensor.Dense) {
	if net.observe != nil {
		net.observe(stage, latent)
	}
}

// GANOptions Options for GAN training
//
// BatchSize - number of real images in each batch and number of latent vectors drawn for each step
// LearningRate - learning rate of both RMSProp solvers
// ClampValue - critic's learnables are clamped into [-ClampValue, ClampValue]
// Rng - source of latent vectors for training steps
//
type GANOptions struct {
	BatchSize    int
	LearningRate float64
	ClampValue   float64
	Rng          *rand.Rand
}

// NewGAN Builds training graphs for provided networks and attaches solvers to them.
// Parameter initialization must be done before calling this.
func NewGAN(definedGenerator *GeneratorNet, definedDiscriminator *DiscriminatorNet, opts GANOptions) (*GAN, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("Batch size must be > 0, but got %d", opts.BatchSize)
	}
	if opts.ClampValue <= 0 {
		return nil, fmt.Errorf("Clamp value must be > 0, but got %f", opts.ClampValue)
	}
	if opts.Rng == nil {
		return nil, fmt.Errorf("Random source for latent vectors is nil")
	}
	definedGAN := &GAN{
		generatorPart:     definedGenerator,
		discriminatorPart: definedDiscriminator,
		batchSize:         opts.BatchSize,
		clampValue:        opts.ClampValue,
		rng:               opts.Rng,
	}
	var err error
	definedGAN.fakes, err = newGeneratorMachine(definedGenerator, opts.BatchSize, ModeTrain, true)
	if err != nil {
		return nil, errors.Wrap(err, "Can't prepare generator graph for fake images")
	}
	if err = definedGAN.defineCritic(opts.LearningRate); err != nil {
		definedGAN.Close()
		return nil, err
	}
	if err = definedGAN.defineGenerator(opts.LearningRate); err != nil {
		definedGAN.Close()
		return nil, err
	}
	return definedGAN, nil
}

func newSolver(learningRate float64) gorgonia.Solver {
	return gorgonia.NewRMSPropSolver(gorgonia.WithLearnRate(learningRate), gorgonia.WithRho(0.99), gorgonia.WithEps(1e-8))
}

// defineCritic Critic's graph: loss = -mean(D(real)) + mean(D(fake))
func (net *GAN) defineCritic(learningRate float64) error {
	g := gorgonia.NewGraph()
	imgShape := net.generatorPart.ImageShape(net.batchSize)
	net.criticGraph = g
	net.criticReal = gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(imgShape...), gorgonia.WithName("critic_real_input"))
	net.criticFake = gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(imgShape...), gorgonia.WithName("critic_fake_input"))

	critic, err := net.discriminatorPart.Bind(g, ModeTrain)
	if err != nil {
		return errors.Wrap(err, "Can't bind critic")
	}
	net.critic = critic
	scoreReal, err := critic.Fwd(net.criticReal, net.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't feedforward real images through critic")
	}
	scoreFake, err := critic.Fwd(net.criticFake, net.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't feedforward fake images through critic")
	}
	cost, err := WassersteinCriticLoss(scoreReal, scoreFake)
	if err != nil {
		return errors.Wrap(err, "Can't define critic's loss")
	}
	gorgonia.WithName("critic_loss")(cost)
	_, err = gorgonia.Grad(cost, critic.Learnables()...)
	if err != nil {
		return errors.Wrap(err, "Can't define critic's gradients")
	}
	gorgonia.Read(cost, &net.criticCost)
	net.criticVM = gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(critic.Learnables()...))
	net.criticSolver = newSolver(learningRate)
	return nil
}

// defineGenerator Generator's graph: loss = -mean(D(G(z)))
func (net *GAN) defineGenerator(learningRate float64) error {
	g := gorgonia.NewGraph()
	net.ganGraph = g
	net.ganInput = gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(net.batchSize, net.generatorPart.LatentSize(), 1, 1), gorgonia.WithName("gan_generator_input"))

	generator, generated, err := net.generatorPart.Bind(net.ganInput, net.batchSize, ModeTrain)
	if err != nil {
		return errors.Wrap(err, "Can't bind generator")
	}
	net.ganGenerator = generator
	modified, err := net.discriminatorPart.Bind(g, ModeTrain)
	if err != nil {
		return errors.Wrap(err, "Can't bind critic [GAN]")
	}
	net.modifiedDiscriminator = modified
	score, err := modified.Fwd(generated, net.batchSize)
	if err != nil {
		return errors.Wrap(err, "Can't feedforward generated images through critic [GAN]")
	}
	cost, err := WassersteinGeneratorLoss(score)
	if err != nil {
		return errors.Wrap(err, "Can't define generator's loss")
	}
	gorgonia.WithName("gan_generator_loss")(cost)
	_, err = gorgonia.Grad(cost, generator.Learnables()...)
	if err != nil {
		return errors.Wrap(err, "Can't define generator's gradients")
	}
	gorgonia.Read(cost, &net.ganCost)
	net.ganVM = gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(generator.Learnables()...))
	net.ganSolver = newSolver(learningRate)
	return nil
}

// ClampCritic Clamps every critic's learnable element-wise into [-clampValue, clampValue]
func (net *GAN) ClampCritic() error {
	for i, w := range net.discriminatorPart.Network().Learnables() {
		if _, err := tensor.Clamp(w, -net.clampValue, net.clampValue, tensor.UseUnsafe()); err != nil {
			return errors.Wrapf(err, "Can't clamp critic's learnable #%d", i)
		}
	}
	net.notify(stageClamp, nil)
	return nil
}

// CriticStep Does single training step for critic using provided batch of real images and freshly generated batch of fake images.
// Returns critic's loss: -mean(D(real)) + mean(D(fake))
func (net *GAN) CriticStep(realImages *tensor.Dense) (float64, error) {
	if !realImages.Shape().Eq(net.criticReal.Shape()) {
		return 0, errors.Wrapf(ErrBatchShape, "expected %v, got %v", net.criticReal.Shape(), realImages.Shape())
	}
	latent := LatentDense(net.rng, net.batchSize, net.generatorPart.LatentSize())
	net.notify(stageCritic, latent)
	fakeImages, err := net.fakes.Run(latent)
	if err != nil {
		return 0, errors.Wrap(err, "Can't generate fake images for critic")
	}
	err = gorgonia.Let(net.criticReal, realImages)
	if err != nil {
		return 0, errors.Wrap(err, "Can't init real images value")
	}
	err = gorgonia.Let(net.criticFake, fakeImages)
	if err != nil {
		return 0, errors.Wrap(err, "Can't init fake images value")
	}
	defer net.criticVM.Reset()
	err = net.criticVM.RunAll()
	if err != nil {
		return 0, errors.Wrap(err, "Can't run critic's VM")
	}
	loss, err := finiteScalar(net.criticCost)
	if err != nil {
		return 0, errors.Wrap(err, "[Critic]")
	}
	if err = net.critic.UpdateRunningStats(); err != nil {
		return 0, err
	}
	err = net.criticSolver.Step(gorgonia.NodesToValueGrads(net.critic.Learnables()))
	if err != nil {
		return 0, errors.Wrap(err, "Can't do critic's solver step")
	}
	return loss, nil
}

// GeneratorStep Does single training step for generator using freshly generated batch of fake images.
// Returns generator's loss: -mean(D(G(z)))
func (net *GAN) GeneratorStep() (float64, error) {
	latent := LatentDense(net.rng, net.batchSize, net.generatorPart.LatentSize())
	net.notify(stageGenerator, latent)
	err := gorgonia.Let(net.ganInput, latent)
	if err != nil {
		return 0, errors.Wrap(err, "Can't init latent vectors value")
	}
	defer net.ganVM.Reset()
	err = net.ganVM.RunAll()
	if err != nil {
		return 0, errors.Wrap(err, "Can't run generator's VM")
	}
	loss, err := finiteScalar(net.ganCost)
	if err != nil {
		return 0, errors.Wrap(err, "[Generator]")
	}
	if err = net.ganGenerator.UpdateRunningStats(); err != nil {
		return 0, err
	}
	if err = net.modifiedDiscriminator.UpdateRunningStats(); err != nil {
		return 0, err
	}
	err = net.ganSolver.Step(gorgonia.NodesToValueGrads(net.ganGenerator.Learnables()))
	if err != nil {
		return 0, errors.Wrap(err, "Can't do generator's solver step")
	}
	return loss, nil
}

// Samples Feedforwards provided latent vectors [N, Z, 1, 1] through current generator.
// Batch statistics are used for normalization, running statistics are left untouched.
func (net *GAN) Samples(latent *tensor.Dense) (*tensor.Dense, error) {
	n := latent.Shape()[0]
	if net.samples == nil || net.samples.batchSize != n {
		if net.samples != nil {
			net.samples.Close()
		}
		machine, err := newGeneratorMachine(net.generatorPart, n, ModeTrain, false)
		if err != nil {
			return nil, errors.Wrap(err, "Can't prepare generator graph for samples")
		}
		net.samples = machine
	}
	return net.samples.Run(latent)
}

// Close Releases tape machines
func (net *GAN) Close() error {
	var firstErr error
	closers := []func() error{}
	if net.fakes != nil {
		closers = append(closers, net.fakes.Close)
	}
	if net.samples != nil {
		closers = append(closers, net.samples.Close)
	}
	if net.criticVM != nil {
		closers = append(closers, net.criticVM.Close)
	}
	if net.ganVM != nil {
		closers = append(closers, net.ganVM.Close)
	}
	for _, c := range closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func finiteScalar(v gorgonia.Value) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("Loss has not been computed")
	}
	loss, ok := v.Data().(float64)
	if !ok {
		return 0, fmt.Errorf("Loss has unexpected data type %T", v.Data())
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, errors.Wrapf(ErrNonFiniteLoss, "got %v", loss)
	}
	return loss, nil
}
