package wgan_go

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// checkpointTensor Serialized parameter
type checkpointTensor struct {
	Name  string
	Shape []int
	Data  []float64
}

// checkpoint Serialized parameters collection
type checkpoint struct {
	Tensors []checkpointTensor
}

// SaveCheckpoint Writes parameters collection to provided path using gob.
// Data is written to temporary file next to the target which then replaces the target,
// so existing checkpoint is either kept intact or fully overwritten.
func SaveCheckpoint(path string, params []Param) error {
	ckpt := checkpoint{Tensors: make([]checkpointTensor, 0, len(params))}
	for _, p := range params {
		data, ok := p.Value.Materialize().Data().([]float64)
		if !ok {
			return fmt.Errorf("Parameter '%s' must be float64 tensor", p.Name)
		}
		ckpt.Tensors = append(ckpt.Tensors, checkpointTensor{
			Name:  p.Name,
			Shape: p.Value.Shape().Clone(),
			Data:  data,
		})
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "Can't create checkpoint directory")
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "Can't create temporary checkpoint file")
	}
	defer os.Remove(tmp.Name())
	if err = gob.NewEncoder(tmp).Encode(ckpt); err != nil {
		tmp.Close()
		return errors.Wrap(err, "Can't encode checkpoint")
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "Can't flush checkpoint")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "Can't close temporary checkpoint file")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "Can't replace checkpoint")
	}
	return nil
}

// LoadCheckpoint Reads parameters collection from provided path into params' tensors in place.
// Every serialized tensor is validated against params (names, count, shapes) before any data is copied.
func LoadCheckpoint(path string, params []Param) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrCheckpointNotFound, "path '%s'", path)
		}
		return errors.Wrap(err, "Can't open checkpoint")
	}
	defer f.Close()
	var ckpt checkpoint
	if err = gob.NewDecoder(f).Decode(&ckpt); err != nil {
		return errors.Wrap(err, "Can't decode checkpoint")
	}
	if len(ckpt.Tensors) != len(params) {
		return errors.Wrapf(ErrCheckpointShapeMismatch, "checkpoint has %d tensors, model has %d", len(ckpt.Tensors), len(params))
	}
	stored := make(map[string]checkpointTensor, len(ckpt.Tensors))
	for _, t := range ckpt.Tensors {
		stored[t.Name] = t
	}
	for _, p := range params {
		t, ok := stored[p.Name]
		if !ok {
			return errors.Wrapf(ErrCheckpointShapeMismatch, "parameter '%s' is missing", p.Name)
		}
		if !tensor.Shape(t.Shape).Eq(p.Value.Shape()) || len(t.Data) != p.Value.Shape().TotalSize() {
			return errors.Wrapf(ErrCheckpointShapeMismatch, "parameter '%s' has shape %v, model expects %v", p.Name, t.Shape, p.Value.Shape())
		}
		if _, ok := p.Value.Data().([]float64); !ok {
			return fmt.Errorf("Parameter '%s' must be float64 tensor", p.Name)
		}
	}
	for _, p := range params {
		copy(p.Value.Data().([]float64), stored[p.Name].Data)
	}
	return nil
}
