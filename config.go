package wgan_go

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config Knobs of training and sampling. It's passed by value, so a run never observes changes made after it has started.
type Config struct {
	Device   string         `yaml:"device"`
	Data     DataConfig     `yaml:"data"`
	Model    ModelConfig    `yaml:"model"`
	Training TrainingConfig `yaml:"training"`
	Path     PathConfig     `yaml:"path"`
}

// DataConfig Shapes of latent vectors and images
type DataConfig struct {
	LatentVectorSize int `yaml:"latent_vector_size"`
	ImageSize        int `yaml:"image_size"`
	Channels         int `yaml:"channels"`
}

// ModelConfig Name of checkpoint and width of networks
type ModelConfig struct {
	Name     string `yaml:"name"`
	Features int    `yaml:"features"`
}

// TrainingConfig Training loop parameters
//
// Seed - seed for parameters initialization and latent vectors of training steps. Zero means time based seed
// SampleSeed - seed for latent vectors which are rendered at the end of every epoch
//
type TrainingConfig struct {
	BatchSize         int     `yaml:"batch_size"`
	LearningRate      float64 `yaml:"learning_rate"`
	ClampValue        float64 `yaml:"clamp_value"`
	Epochs            int     `yaml:"epochs"`
	SampleNum         int     `yaml:"sample_num"`
	Seed              int64   `yaml:"seed"`
	SampleSeed        int64   `yaml:"sample_seed"`
	BatchNormMomentum float64 `yaml:"batch_norm_momentum"`
	BatchNormEpsilon  float64 `yaml:"batch_norm_epsilon"`
}

// PathConfig Directories used by training and sampling
type PathConfig struct {
	Models          string `yaml:"models"`
	TrainingDataset string `yaml:"training_dataset"`
	TrainingPlots   string `yaml:"training_plots"`
}

const DeviceCPU = "cpu"

// DefaultConfig Returns configuration of DCGAN-sized Wasserstein GAN on 64x64 RGB images
func DefaultConfig() Config {
	return Config{
		Device: DeviceCPU,
		Data: DataConfig{
			LatentVectorSize: 100,
			ImageSize:        64,
			Channels:         3,
		},
		Model: ModelConfig{
			Name:     "wgan_generator",
			Features: 64,
		},
		Training: TrainingConfig{
			BatchSize:         64,
			LearningRate:      5e-5,
			ClampValue:        0.01,
			Epochs:            50,
			SampleNum:         64,
			Seed:              0,
			SampleSeed:        42,
			BatchNormMomentum: 0.1,
			BatchNormEpsilon:  1e-5,
		},
		Path: PathConfig{
			Models:          "models",
			TrainingDataset: "data/training",
			TrainingPlots:   "plots",
		},
	}
}

// LoadConfig Reads YAML file on top of DefaultConfig and validates result
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "Can't read config file")
	}
	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrap(err, "Can't parse config file")
	}
	if err = cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate Verifies that config is runnable
func (cfg Config) Validate() error {
	if cfg.Device != DeviceCPU {
		return errors.Wrapf(ErrInvalidConfig, "device '%s' is not supported, only '%s' is", cfg.Device, DeviceCPU)
	}
	if cfg.Data.LatentVectorSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "latent_vector_size must be > 0 (got %d)", cfg.Data.LatentVectorSize)
	}
	if cfg.Data.ImageSize < 8 || cfg.Data.ImageSize&(cfg.Data.ImageSize-1) != 0 {
		return errors.Wrapf(ErrInvalidConfig, "image_size must be power of two and >= 8 (got %d)", cfg.Data.ImageSize)
	}
	if cfg.Data.Channels != 1 && cfg.Data.Channels != 3 {
		return errors.Wrapf(ErrInvalidConfig, "channels must be 1 or 3 (got %d)", cfg.Data.Channels)
	}
	if cfg.Model.Name == "" {
		return errors.Wrap(ErrInvalidConfig, "model name must be set")
	}
	if cfg.Model.Features <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "features must be > 0 (got %d)", cfg.Model.Features)
	}
	if cfg.Training.BatchSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "batch_size must be > 0 (got %d)", cfg.Training.BatchSize)
	}
	if cfg.Training.LearningRate <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "learning_rate must be > 0 (got %v)", cfg.Training.LearningRate)
	}
	if cfg.Training.ClampValue <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "clamp_value must be > 0 (got %v)", cfg.Training.ClampValue)
	}
	if cfg.Training.Epochs <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "epochs must be > 0 (got %d)", cfg.Training.Epochs)
	}
	if cfg.Training.SampleNum <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "sample_num must be > 0 (got %d)", cfg.Training.SampleNum)
	}
	if cfg.Training.BatchNormMomentum <= 0 || cfg.Training.BatchNormMomentum > 1 {
		return errors.Wrapf(ErrInvalidConfig, "batch_norm_momentum must be in (0, 1] (got %v)", cfg.Training.BatchNormMomentum)
	}
	if cfg.Training.BatchNormEpsilon <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "batch_norm_epsilon must be > 0 (got %v)", cfg.Training.BatchNormEpsilon)
	}
	if cfg.Path.Models == "" || cfg.Path.TrainingPlots == "" {
		return errors.Wrap(ErrInvalidConfig, "models and training_plots paths must be set")
	}
	return nil
}

// ModelPath Returns path of checkpoint: <models>/<name>
func (cfg Config) ModelPath() string {
	return filepath.Join(cfg.Path.Models, cfg.Model.Name)
}

// SamplesDir Returns directory for per epoch samples: <training_plots>/samples
func (cfg Config) SamplesDir() string {
	return filepath.Join(cfg.Path.TrainingPlots, "samples")
}

// LossesPlotPath Returns path of losses plot: <training_plots>/losses.jpg
func (cfg Config) LossesPlotPath() string {
	return filepath.Join(cfg.Path.TrainingPlots, "losses.jpg")
}

func (cfg Config) architecture() ArchitectureOptions {
	return ArchitectureOptions{
		LatentSize: cfg.Data.LatentVectorSize,
		ImageSize:  cfg.Data.ImageSize,
		Channels:   cfg.Data.Channels,
		Features:   cfg.Model.Features,
		Momentum:   cfg.Training.BatchNormMomentum,
		Epsilon:    cfg.Training.BatchNormEpsilon,
	}
}
