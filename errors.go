package wgan_go

import (
	"github.com/pkg/errors"
)

var (
	// ErrCheckpointNotFound Checkpoint path does not resolve to a file
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrCheckpointShapeMismatch Serialized parameters are incompatible with current architecture
	ErrCheckpointShapeMismatch = errors.New("checkpoint parameters do not match model")
	// ErrModelNotLoaded Generation or saving requested before a model has been loaded or trained
	ErrModelNotLoaded = errors.New("model is not loaded")
	// ErrDataLoaderExhausted Loader yielded zero batches for an epoch
	ErrDataLoaderExhausted = errors.New("data loader yielded no batches")
	// ErrNonFiniteLoss Training step produced NaN or Inf loss
	ErrNonFiniteLoss = errors.New("loss is not finite")
	// ErrBatchShape Batch of real images does not match configured shape
	ErrBatchShape = errors.New("unexpected batch shape")
	// ErrInvalidConfig Configuration can't be used for a run
	ErrInvalidConfig = errors.New("invalid config")
)
