package wgan_go

import (
	"image"
	"log"
	"math/rand"
	"os"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// WGAN Training and sampling runtime for single configuration.
// Active model is either trained by Train or read from checkpoint by LoadModel. Not safe for concurrent use.
type WGAN struct {
	cfg       Config
	logger    *log.Logger
	generator *GeneratorNet
	inference *generatorMachine
	rng       *rand.Rand

	observe stepObserver
}

// NewWGAN Creates runtime for provided config. If logger is nil then log messages are written to stdout.
func NewWGAN(cfg Config, logger *log.Logger) (*WGAN, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[WGAN] ", log.LstdFlags)
	}
	w := &WGAN{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(ResolveSeed(cfg.Training.Seed))),
	}
	w.logger.Printf("Model path: '%s'\n", cfg.ModelPath())
	return w, nil
}

// Config Returns config of runtime
func (w *WGAN) Config() Config {
	return w.cfg
}

// LoadModel Reads generator from checkpoint and makes it active. Previously active model is kept on failure.
func (w *WGAN) LoadModel() error {
	definedGenerator, err := Generator(w.cfg.architecture())
	if err != nil {
		return errors.Wrap(err, "Can't define generator")
	}
	if err = LoadCheckpoint(w.cfg.ModelPath(), definedGenerator.Params()); err != nil {
		return err
	}
	if err = w.activate(definedGenerator); err != nil {
		return err
	}
	w.logger.Printf("Model has been loaded from '%s'\n", w.cfg.ModelPath())
	return nil
}

// SaveModel Writes active generator to checkpoint path. Existing checkpoint is overwritten.
func (w *WGAN) SaveModel() error {
	if w.generator == nil {
		return ErrModelNotLoaded
	}
	return w.saveGenerator(w.generator)
}

func (w *WGAN) saveGenerator(definedGenerator *GeneratorNet) error {
	if err := SaveCheckpoint(w.cfg.ModelPath(), definedGenerator.Params()); err != nil {
		return errors.Wrap(err, "Can't save model")
	}
	w.logger.Printf("Model has been saved to '%s'\n", w.cfg.ModelPath())
	return nil
}

// activate Builds inference graph (batch of one, running statistics) for provided generator and replaces active model
func (w *WGAN) activate(definedGenerator *GeneratorNet) error {
	machine, err := newGeneratorMachine(definedGenerator, 1, ModeEval, false)
	if err != nil {
		return errors.Wrap(err, "Can't prepare inference graph")
	}
	if w.inference != nil {
		w.inference.Close()
	}
	w.generator = definedGenerator
	w.inference = machine
	return nil
}

// Generate Produces single image [H, W, C] in range [-1, 1] by active model.
// Latent vector is drawn from the runtime's random source or from the source seeded by seed[0] if provided.
func (w *WGAN) Generate(seed ...int64) (*tensor.Dense, error) {
	if w.inference == nil {
		return nil, ErrModelNotLoaded
	}
	rng := w.rng
	if len(seed) > 0 {
		rng = rand.New(rand.NewSource(seed[0]))
	}
	latent := LatentDense(rng, 1, w.generator.LatentSize())
	out, err := w.inference.Run(latent)
	if err != nil {
		return nil, errors.Wrap(err, "Can't generate image")
	}
	shp := out.Shape().Clone()
	if err = out.Reshape(shp[1], shp[2], shp[3]); err != nil {
		return nil, errors.Wrap(err, "Can't strip batch dimension")
	}
	if err = out.T(1, 2, 0); err != nil {
		return nil, errors.Wrap(err, "Can't transpose image")
	}
	if err = out.Transpose(); err != nil {
		return nil, errors.Wrap(err, "Can't transpose image")
	}
	return out, nil
}

// GenerateImage Same as Generate, but converts result to image.Image
func (w *WGAN) GenerateImage(seed ...int64) (image.Image, error) {
	hwc, err := w.Generate(seed...)
	if err != nil {
		return nil, err
	}
	return ToImage(hwc)
}

// Close Releases inference graph
func (w *WGAN) Close() error {
	if w.inference == nil {
		return nil
	}
	err := w.inference.Close()
	w.inference = nil
	w.generator = nil
	return err
}
