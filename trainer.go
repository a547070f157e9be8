package wgan_go

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	exprand "golang.org/x/exp/rand"
)

// History Per iteration losses of both networks
type History struct {
	Critic    []float64
	Generator []float64
}

// Train Trains fresh generator and critic on batches from loader.
//
// For every batch critic's learnables are clamped, then critic does one step and generator does one step.
// At the end of every epoch losses plot is overwritten and fixed latent vectors are rendered by current generator.
// When all epochs are done trained generator is saved to the checkpoint path and becomes the active model.
func (w *WGAN) Train(loader Loader) (*History, error) {
	cfg := w.cfg
	arch := cfg.architecture()
	seed := ResolveSeed(cfg.Training.Seed)

	definedGenerator, err := Generator(arch)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define generator")
	}
	definedDiscriminator, err := Discriminator(arch)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define critic")
	}
	initSource := exprand.NewSource(uint64(seed))
	definedGenerator.Apply(InitWeights(initSource))
	definedDiscriminator.Apply(InitWeights(initSource))

	definedGAN, err := NewGAN(definedGenerator, definedDiscriminator, GANOptions{
		BatchSize:    cfg.Training.BatchSize,
		LearningRate: cfg.Training.LearningRate,
		ClampValue:   cfg.Training.ClampValue,
		Rng:          rand.New(rand.NewSource(seed)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Can't prepare GAN")
	}
	defer definedGAN.Close()
	definedGAN.observe = w.observe

	fixedLatent := LatentDense(rand.New(rand.NewSource(cfg.Training.SampleSeed)), cfg.Training.SampleNum, cfg.Data.LatentVectorSize)
	if err = os.MkdirAll(cfg.Path.TrainingPlots, 0755); err != nil {
		return nil, errors.Wrap(err, "Can't create plots directory")
	}

	w.logger.Printf("Start training: epochs=%d batches_per_epoch=%d batch_size=%d seed=%d\n", cfg.Training.Epochs, loader.Len(), cfg.Training.BatchSize, seed)
	history := &History{}
	st := time.Now()
	for epoch := 0; epoch < cfg.Training.Epochs; epoch++ {
		batches := 0
		iter := loader.Epoch()
		for {
			batch, err := iter.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, errors.Wrapf(err, "Can't load batch #%d of epoch %d", batches, epoch+1)
			}
			if err = definedGAN.ClampCritic(); err != nil {
				return nil, err
			}
			criticLoss, err := definedGAN.CriticStep(batch.Images)
			if err != nil {
				return nil, errors.Wrapf(err, "Can't do critic step [epoch %d, batch %d]", epoch+1, batches)
			}
			generatorLoss, err := definedGAN.GeneratorStep()
			if err != nil {
				return nil, errors.Wrapf(err, "Can't do generator step [epoch %d, batch %d]", epoch+1, batches)
			}
			history.Critic = append(history.Critic, criticLoss)
			history.Generator = append(history.Generator, generatorLoss)
			batches++
		}
		if batches == 0 {
			return nil, errors.Wrapf(ErrDataLoaderExhausted, "epoch %d", epoch+1)
		}
		w.logger.Printf("Epoch %d/%d:\n", epoch+1, cfg.Training.Epochs)
		w.logger.Printf("\tCritic's loss: %v\n", history.Critic[len(history.Critic)-1])
		w.logger.Printf("\tGenerator's loss: %v\n", history.Generator[len(history.Generator)-1])
		w.logger.Printf("\tTaken time: %v\n", time.Since(st))
		st = time.Now()

		if err = PlotLosses(history, cfg.LossesPlotPath()); err != nil {
			return nil, errors.Wrap(err, "Can't plot losses")
		}
		samples, err := definedGAN.Samples(fixedLatent)
		if err != nil {
			return nil, errors.Wrap(err, "Can't render samples")
		}
		samplesPath := filepath.Join(cfg.SamplesDir(), fmt.Sprintf("E%d.jpg", epoch+1))
		if err = SaveSampleGrid(samples, samplesPath); err != nil {
			return nil, errors.Wrap(err, "Can't save samples")
		}
	}

	if err = w.saveGenerator(definedGenerator); err != nil {
		return nil, err
	}
	if err = w.activate(definedGenerator); err != nil {
		return nil, err
	}
	return history, nil
}

// ResolveSeed Returns seed itself or time based seed when it is zero
func ResolveSeed(seed int64) int64 {
	if seed == 0 {
		return time.Now().UnixNano()
	}
	return seed
}
