package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	wgan "github.com/LdDl/wgan-go"
	"gorgonia.org/tensor"
)

var (
	imgSize     = 8
	imgChannels = 1
	faceData    = []float64{
		0, 1, 1, 0, 0, 1, 1, 0,
		0, 1, 1, 0, 0, 1, 1, 0,
		0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 1, 1, 0, 0, 0,
		0, 0, 0, 1, 1, 0, 0, 0,
		1, 0, 0, 0, 0, 0, 0, 1,
		0, 1, 1, 1, 1, 1, 1, 0,
		0, 0, 1, 1, 1, 1, 0, 0,
	}
	numSamples = 32
	numEpoches = 200
	numTests   = 3
)

func genSyntheticData(numSamples, batchSize int) *wgan.TrainSet {
	fmt.Println("Actual smiley face:")
	printFace(faceData, 0.5)

	// [0, 1] => [-1, 1]
	data := make([]float64, 0, numSamples*len(faceData))
	for i := 0; i < numSamples; i++ {
		for _, v := range faceData {
			data = append(data, 2*v-1)
		}
	}
	return &wgan.TrainSet{
		TrainData: tensor.New(tensor.WithShape(numSamples, imgChannels, imgSize, imgSize), tensor.WithBacking(data)),
		BatchSize: batchSize,
	}
}

func printFace(data []float64, threshold float64) {
	for x := 0; x < imgSize; x++ {
		fmt.Printf("\t")
		for y := 0; y < imgSize; y++ {
			char := "x"
			if data[x*imgSize+y] < threshold {
				char = " "
			}
			fmt.Printf("%s ", char)
		}
		fmt.Println()
	}
}

func main() {
	workDir, err := os.MkdirTemp("", "wgan_smiley")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(workDir)

	cfg := wgan.DefaultConfig()
	cfg.Data.LatentVectorSize = 16
	cfg.Data.ImageSize = imgSize
	cfg.Data.Channels = imgChannels
	cfg.Model.Name = "smiley_generator"
	cfg.Model.Features = 8
	cfg.Training.BatchSize = 4
	cfg.Training.LearningRate = 5e-4
	cfg.Training.Epochs = numEpoches
	cfg.Training.SampleNum = 16
	// Initialize seed with constant value to reproduce results
	cfg.Training.Seed = 1337
	cfg.Path.Models = filepath.Join(workDir, "models")
	cfg.Path.TrainingPlots = filepath.Join(workDir, "plots")

	trainSet := genSyntheticData(numSamples, cfg.Training.BatchSize)

	runtime, err := wgan.NewWGAN(cfg, log.New(os.Stdout, "[smiley] ", log.LstdFlags))
	if err != nil {
		panic(err)
	}
	defer runtime.Close()

	history, err := runtime.Train(trainSet)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Final losses: critic=%v generator=%v\n", history.Critic[len(history.Critic)-1], history.Generator[len(history.Generator)-1])

	fmt.Println("Start testing generator after final epoch")
	for i := 0; i < numTests; i++ {
		generated, err := runtime.Generate(int64(i + 1))
		if err != nil {
			panic(err)
		}
		// Values are in [-1, 1]: zero is the middle
		printFace(generated.Float64s(), 0)
		fmt.Println()
	}
}
