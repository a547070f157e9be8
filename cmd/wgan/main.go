package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"

	wgan "github.com/LdDl/wgan-go"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config. Defaults are used when empty")
	mode := flag.String("mode", "train", "Either 'train' or 'generate'")
	seed := flag.Int64("seed", 0, "Seed of the first generated image (0 = random latent vectors)")
	count := flag.Int("count", 1, "Number of images to generate")
	out := flag.String("out", "generated", "Output directory for generated images")
	epochs := flag.Int("epochs", 0, "Override number of training epochs")
	flag.Parse()

	cfg := wgan.DefaultConfig()
	if *cfgPath != "" {
		var err error
		cfg, err = wgan.LoadConfig(*cfgPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *epochs > 0 {
		cfg.Training.Epochs = *epochs
	}

	logger := log.New(os.Stdout, "[WGAN] ", log.LstdFlags)
	runtime, err := wgan.NewWGAN(cfg, logger)
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	defer runtime.Close()

	switch *mode {
	case "train":
		loader, err := wgan.ImageFolder(cfg.Path.TrainingDataset, cfg.Data.ImageSize, cfg.Data.Channels, cfg.Training.BatchSize, wgan.ResolveSeed(cfg.Training.Seed))
		if err != nil {
			log.Fatalf("can't prepare dataset: %v", err)
		}
		logger.Printf("Dataset '%s': classes=%d batches=%d\n", cfg.Path.TrainingDataset, len(loader.Classes()), loader.Len())
		history, err := runtime.Train(loader)
		if err != nil {
			log.Fatalf("training failed: %v", err)
		}
		logger.Printf("Done: %d iterations\n", len(history.Critic))
	case "generate":
		if err := runtime.LoadModel(); err != nil {
			log.Fatalf("can't load model: %v", err)
		}
		if err := os.MkdirAll(*out, 0755); err != nil {
			log.Fatalf("can't create output directory: %v", err)
		}
		for i := 0; i < *count; i++ {
			seeds := []int64{}
			if *seed != 0 {
				seeds = append(seeds, *seed+int64(i))
			}
			img, err := runtime.GenerateImage(seeds...)
			if err != nil {
				log.Fatalf("can't generate image: %v", err)
			}
			fname := filepath.Join(*out, fmt.Sprintf("%s_%d.png", cfg.Model.Name, i))
			if err := writePNG(fname, img); err != nil {
				log.Fatalf("can't write image: %v", err)
			}
			logger.Printf("Image has been written to '%s'\n", fname)
		}
	default:
		log.Fatalf("unknown mode '%s'", *mode)
	}
}

func writePNG(fname string, img image.Image) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	if err = png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
