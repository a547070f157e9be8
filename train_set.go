package wgan_go

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// TrainSet In-memory dataset. Batches are served in order, the trailing incomplete batch is skipped.
//
// TrainData - images [N, C, H, W] in range [-1, 1]
// Labels - optional labels, len(Labels) must be N when set
// BatchSize - size of every batch
//
type TrainSet struct {
	TrainData *tensor.Dense
	Labels    []int
	BatchSize int
}

// Len Returns number of full batches
func (ts *TrainSet) Len() int {
	if ts.TrainData == nil || ts.BatchSize <= 0 {
		return 0
	}
	return ts.TrainData.Shape()[0] / ts.BatchSize
}

// Epoch Starts new pass over data
func (ts *TrainSet) Epoch() BatchIterator {
	return &trainSetIterator{set: ts}
}

type trainSetIterator struct {
	set   *TrainSet
	batch int
}

func (it *trainSetIterator) Next() (*Batch, error) {
	ts := it.set
	if it.batch >= ts.Len() {
		return nil, io.EOF
	}
	if ts.TrainData.Dims() != 4 {
		return nil, fmt.Errorf("Train data must have 4 dimensions [N, C, H, W], but got %v", ts.TrainData.Shape())
	}
	start := it.batch * ts.BatchSize
	end := start + ts.BatchSize
	view, err := ts.TrainData.Slice(SlicerOneStep{StartIdx: start, EndIdx: end})
	if err != nil {
		return nil, errors.Wrapf(err, "Can't slice batch #%d", it.batch)
	}
	images := view.(*tensor.Dense).Materialize().(*tensor.Dense)
	if images == ts.TrainData {
		images = images.Clone().(*tensor.Dense)
	}
	// single element slices drop batch dimension
	shp := ts.TrainData.Shape()
	if err = images.Reshape(ts.BatchSize, shp[1], shp[2], shp[3]); err != nil {
		return nil, errors.Wrapf(err, "Can't reshape batch #%d", it.batch)
	}
	var labels []int
	if len(ts.Labels) >= end {
		labels = append(labels, ts.Labels[start:end]...)
	}
	it.batch++
	return &Batch{Images: images, Labels: labels}, nil
}
