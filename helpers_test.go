package wgan_go

import (
	"bytes"
	"log"
	"math"
	"path/filepath"
	"testing"

	exprand "golang.org/x/exp/rand"
	"gorgonia.org/tensor"
)

func tinyArchitecture() ArchitectureOptions {
	return ArchitectureOptions{
		LatentSize: 4,
		ImageSize:  8,
		Channels:   1,
		Features:   2,
		Momentum:   0.1,
		Epsilon:    1e-5,
	}
}

func tinyConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Data.LatentVectorSize = 4
	cfg.Data.ImageSize = 8
	cfg.Data.Channels = 1
	cfg.Model.Name = "tiny_generator"
	cfg.Model.Features = 2
	cfg.Training.BatchSize = 2
	cfg.Training.Epochs = 1
	cfg.Training.SampleNum = 4
	cfg.Training.Seed = 7
	cfg.Path.Models = filepath.Join(dir, "models")
	cfg.Path.TrainingDataset = filepath.Join(dir, "data")
	cfg.Path.TrainingPlots = filepath.Join(dir, "plots")
	return cfg
}

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "", 0)
}

func tinyNetworks(t *testing.T, seed uint64) (*GeneratorNet, *DiscriminatorNet) {
	t.Helper()
	gen, err := Generator(tinyArchitecture())
	if err != nil {
		t.Fatal(err)
	}
	disc, err := Discriminator(tinyArchitecture())
	if err != nil {
		t.Fatal(err)
	}
	src := exprand.NewSource(seed)
	gen.Apply(InitWeights(src))
	disc.Apply(InitWeights(src))
	return gen, disc
}

// constantImages Returns [n, C, S, S] tensor filled by v
func constantImages(n, channels, size int, v float64) *tensor.Dense {
	data := make([]float64, n*channels*size*size)
	for i := range data {
		data[i] = v
	}
	return tensor.New(tensor.WithShape(n, channels, size, size), tensor.WithBacking(data))
}

func snapshot(params []Param) map[string][]float64 {
	s := make(map[string][]float64, len(params))
	for _, p := range params {
		s[p.Name] = append([]float64{}, p.Value.Float64s()...)
	}
	return s
}

func sameValues(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
