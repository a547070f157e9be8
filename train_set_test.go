package wgan_go

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"gorgonia.org/tensor"
)

func TestTrainSetBatches(t *testing.T) {
	data := make([]float64, 5*1*2*2)
	for i := range data {
		data[i] = float64(i / 4)
	}
	ts := &TrainSet{
		TrainData: tensor.New(tensor.WithShape(5, 1, 2, 2), tensor.WithBacking(data)),
		Labels:    []int{0, 1, 2, 3, 4},
		BatchSize: 2,
	}
	if ts.Len() != 2 {
		t.Fatalf("Train set should have 2 batches, but got %d", ts.Len())
	}
	iter := ts.Epoch()
	for b := 0; b < 2; b++ {
		batch, err := iter.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !batch.Images.Shape().Eq(tensor.Shape{2, 1, 2, 2}) {
			t.Fatalf("Batch should have shape (2, 1, 2, 2), but got %v", batch.Images.Shape())
		}
		images := batch.Images.Float64s()
		if images[0] != float64(2*b) || images[4] != float64(2*b+1) {
			t.Errorf("Batch #%d has unexpected data: %v", b, images)
		}
		if batch.Labels[0] != 2*b || batch.Labels[1] != 2*b+1 {
			t.Errorf("Batch #%d has unexpected labels: %v", b, batch.Labels)
		}
	}
	if _, err := iter.Next(); err != io.EOF {
		t.Errorf("Expected io.EOF, but got %v", err)
	}
}

func TestTrainSetSingleImageBatch(t *testing.T) {
	ts := &TrainSet{TrainData: constantImages(3, 1, 4, 0.25), BatchSize: 1}
	batch, err := ts.Epoch().Next()
	if err != nil {
		t.Fatal(err)
	}
	if !batch.Images.Shape().Eq(tensor.Shape{1, 1, 4, 4}) {
		t.Errorf("Batch should keep batch dimension, but got %v", batch.Images.Shape())
	}
}

func TestPlotLosses(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "losses.jpg")
	history := &History{
		Critic:    []float64{-0.1, -0.2, -0.3},
		Generator: []float64{0.1, 0.05, 0.0},
	}
	if err := PlotLosses(history, fname); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(fname); err != nil || info.Size() == 0 {
		t.Errorf("Plot should be written: %v", err)
	}
}
