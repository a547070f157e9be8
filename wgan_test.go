package wgan_go

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// emptyLoader yields no batches at all
type emptyLoader struct{}

func (emptyLoader) Len() int             { return 0 }
func (emptyLoader) Epoch() BatchIterator { return (&TrainSet{}).Epoch() }

func tinyTrainSet(n, batchSize int) *TrainSet {
	return &TrainSet{
		TrainData: constantImages(n, 1, 8, 0.5),
		BatchSize: batchSize,
	}
}

func TestGenerateBeforeLoad(t *testing.T) {
	w, err := NewWGAN(tinyConfig(t), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err = w.Generate(); !errors.Is(err, ErrModelNotLoaded) {
		t.Errorf("Expected ErrModelNotLoaded, but got %v", err)
	}
	if err = w.SaveModel(); !errors.Is(err, ErrModelNotLoaded) {
		t.Errorf("Expected ErrModelNotLoaded on save, but got %v", err)
	}
	if err = w.LoadModel(); !errors.Is(err, ErrCheckpointNotFound) {
		t.Errorf("Expected ErrCheckpointNotFound, but got %v", err)
	}
}

func TestTrainSingleBatch(t *testing.T) {
	cfg := tinyConfig(t)
	w, err := NewWGAN(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	history, err := w.Train(tinyTrainSet(2, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(history.Critic) != 1 || len(history.Generator) != 1 {
		t.Fatalf("Expected one loss per network, but got %d and %d", len(history.Critic), len(history.Generator))
	}
	for _, path := range []string{
		filepath.Join(cfg.SamplesDir(), "E1.jpg"),
		cfg.LossesPlotPath(),
		cfg.ModelPath(),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("File '%s' should exist: %v", path, err)
		}
	}
	entries, err := os.ReadDir(cfg.SamplesDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "E1.jpg" {
		names := []string{}
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Samples directory should hold only E1.jpg, but got %v", names)
	}
	img, err := w.Generate(1)
	if err != nil {
		t.Fatal(err)
	}
	if !img.Shape().Eq(tensor.Shape{8, 8, 1}) {
		t.Errorf("Generated image should have shape (8, 8, 1), but got %v", img.Shape())
	}
}

func TestTrainEpochsAndBatches(t *testing.T) {
	cfg := tinyConfig(t)
	cfg.Training.Epochs = 2
	w, err := NewWGAN(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	// 5 images, batch of 2: the last image is skipped
	history, err := w.Train(tinyTrainSet(5, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(history.Critic) != 4 || len(history.Generator) != 4 {
		t.Errorf("Expected 4 iterations, but got %d and %d", len(history.Critic), len(history.Generator))
	}
	for _, name := range []string{"E1.jpg", "E2.jpg"} {
		if _, err := os.Stat(filepath.Join(cfg.SamplesDir(), name)); err != nil {
			t.Errorf("Samples '%s' should exist: %v", name, err)
		}
	}
}

func TestTrainReproducible(t *testing.T) {
	losses := make([]*History, 2)
	for i := range losses {
		w, err := NewWGAN(tinyConfig(t), quietLogger())
		if err != nil {
			t.Fatal(err)
		}
		losses[i], err = w.Train(tinyTrainSet(4, 2))
		w.Close()
		if err != nil {
			t.Fatal(err)
		}
	}
	if !sameValues(losses[0].Critic, losses[1].Critic) || !sameValues(losses[0].Generator, losses[1].Generator) {
		t.Errorf("Runs with the same seed should give the same losses: %v vs %v", losses[0], losses[1])
	}
}

func TestSaveLoadGenerate(t *testing.T) {
	cfg := tinyConfig(t)
	trained, err := NewWGAN(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer trained.Close()
	if _, err = trained.Train(tinyTrainSet(2, 2)); err != nil {
		t.Fatal(err)
	}
	want, err := trained.Generate(99)
	if err != nil {
		t.Fatal(err)
	}

	loaded, err := NewWGAN(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer loaded.Close()
	if err = loaded.LoadModel(); err != nil {
		t.Fatal(err)
	}
	got, err := loaded.Generate(99)
	if err != nil {
		t.Fatal(err)
	}
	if !sameValues(want.Float64s(), got.Float64s()) {
		t.Error("Loaded model should generate the same image for the same seed")
	}
	img, err := loaded.GenerateImage(99)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 8 {
		t.Errorf("Image should be 8x8, but got %v", b)
	}
}

func TestLoadKeepsPreviousModel(t *testing.T) {
	cfg := tinyConfig(t)
	w, err := NewWGAN(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if _, err = w.Train(tinyTrainSet(2, 2)); err != nil {
		t.Fatal(err)
	}
	if err = os.Remove(cfg.ModelPath()); err != nil {
		t.Fatal(err)
	}
	if err = w.LoadModel(); !errors.Is(err, ErrCheckpointNotFound) {
		t.Fatalf("Expected ErrCheckpointNotFound, but got %v", err)
	}
	if _, err = w.Generate(); err != nil {
		t.Errorf("Previous model should stay active: %v", err)
	}
}

func TestTrainEmptyLoader(t *testing.T) {
	cfg := tinyConfig(t)
	w, err := NewWGAN(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	_, err = w.Train(emptyLoader{})
	if !errors.Is(err, ErrDataLoaderExhausted) {
		t.Fatalf("Expected ErrDataLoaderExhausted, but got %v", err)
	}
	if _, err = os.Stat(cfg.ModelPath()); !os.IsNotExist(err) {
		t.Errorf("Checkpoint must not be written after failed training")
	}
}

func TestNewWGANRejectsDevice(t *testing.T) {
	cfg := tinyConfig(t)
	cfg.Device = "cuda"
	if _, err := NewWGAN(cfg, quietLogger()); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, but got %v", err)
	}
}

func TestTrainStageOrder(t *testing.T) {
	w, err := NewWGAN(tinyConfig(t), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	var (
		stages  []trainingStage
		latents []*tensor.Dense
	)
	w.observe = func(stage trainingStage, latent *tensor.Dense) {
		stages = append(stages, stage)
		if latent != nil {
			latents = append(latents, latent.Clone().(*tensor.Dense))
		}
	}
	// 2 batches
	if _, err = w.Train(tinyTrainSet(4, 2)); err != nil {
		t.Fatal(err)
	}
	expected := []trainingStage{stageClamp, stageCritic, stageGenerator, stageClamp, stageCritic, stageGenerator}
	if len(stages) != len(expected) {
		t.Fatalf("Expected stages %v, but got %v", expected, stages)
	}
	for i := range expected {
		if stages[i] != expected[i] {
			t.Fatalf("Expected stages %v, but got %v", expected, stages)
		}
	}
	if len(latents) != 4 {
		t.Fatalf("Expected 4 latent draws, but got %d", len(latents))
	}
	for i := 0; i < len(latents); i++ {
		for j := i + 1; j < len(latents); j++ {
			if sameValues(latents[i].Float64s(), latents[j].Float64s()) {
				t.Errorf("Latent draws #%d and #%d are the same", i, j)
			}
		}
	}
}

func TestGenerateRepeatable(t *testing.T) {
	w, err := NewWGAN(tinyConfig(t), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	gen, _ := tinyNetworks(t, 21)
	if err = w.activate(gen); err != nil {
		t.Fatal(err)
	}
	before := snapshot(gen.Params())
	first, err := w.Generate(5)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		if _, err = w.Generate(); err != nil {
			t.Fatal(err)
		}
	}
	second, err := w.Generate(5)
	if err != nil {
		t.Fatal(err)
	}
	if !sameValues(first.Float64s(), second.Float64s()) {
		t.Error("The same seed should give the same image")
	}
	after := snapshot(gen.Params())
	for name := range before {
		if !sameValues(before[name], after[name]) {
			t.Errorf("Generation must not change parameter '%s': %v -> %v", name, before[name], after[name])
		}
	}
}

func TestTrainSaveFailureKeepsPreviousModel(t *testing.T) {
	cfg := tinyConfig(t)
	// models path points to a regular file, so checkpoint directory can't be created
	blocker := filepath.Join(t.TempDir(), "models")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg.Path.Models = blocker
	w, err := NewWGAN(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if _, err = w.Train(tinyTrainSet(2, 2)); err == nil {
		t.Fatal("Training should fail when checkpoint can't be written")
	}
	if _, err = w.Generate(); !errors.Is(err, ErrModelNotLoaded) {
		t.Fatalf("Unsaved model must not become active, but got %v", err)
	}

	previous, _ := tinyNetworks(t, 8)
	if err = w.activate(previous); err != nil {
		t.Fatal(err)
	}
	want, err := w.Generate(3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = w.Train(tinyTrainSet(2, 2)); err == nil {
		t.Fatal("Training should fail when checkpoint can't be written")
	}
	got, err := w.Generate(3)
	if err != nil {
		t.Fatal(err)
	}
	if !sameValues(want.Float64s(), got.Float64s()) {
		t.Error("Previously active model should be kept after failed training")
	}
}

func TestResolveSeed(t *testing.T) {
	if ResolveSeed(5) != 5 {
		t.Error("Non zero seed should be kept")
	}
	if ResolveSeed(0) == 0 {
		t.Error("Zero seed should be replaced by time based one")
	}
}
