package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/klauspost/cpuid/v2"

	"utkface-forge/internal/config"
	"utkface-forge/internal/dataset"
	"utkface-forge/internal/metrics"
	"utkface-forge/internal/model"
	"utkface-forge/internal/plots"
	"utkface-forge/internal/predict"
	"utkface-forge/internal/trainer"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	cfgPath := flag.String("config", "configs/default.yaml", "Path to YAML config")
	dataDir := flag.String("data-dir", "", "Override the image directory")
	archive := flag.String("archive", "", "Archive to unpack into the data directory first")
	epochs := flag.Int("epochs", 0, "Number of training epochs")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	seed := flag.Int64("seed", 0, "PRNG seed")
	numWorkers := flag.Int("num-workers", 0, "Number of image decoding workers")
	logEvery := flag.Int("log-every", 0, "Log every N steps and images")
	maleClass := flag.Int("male-class", -1, "Gender label that means male (0 or 1)")
	plotDir := flag.String("plot-dir", "", "Write PNG charts to this directory")
	var predictPaths stringList
	flag.Var(&predictPaths, "predict", "Image to predict after training (repeatable)")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		DataDir:    *dataDir,
		Archive:    *archive,
		Epochs:     *epochs,
		BatchSize:  *batchSize,
		NumWorkers: *numWorkers,
		Seed:       *seed,
		LogEvery:   *logEvery,
		MaleClass:  *maleClass,
		PlotDir:    *plotDir,
		Predict:    predictPaths,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	polarity := predict.Polarity{MaleClass: *cfg.MaleClass}
	log.Printf("cpu=%q cores=%d workers=%d seed=%d", cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cfg.NumWorkers, cfg.Seed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Archive != "" {
		n, err := dataset.Unpack(ctx, cfg.Archive, cfg.DataDir)
		if err != nil {
			log.Fatalf("unpack %s: %v", cfg.Archive, err)
		}
		log.Printf("archive=%s unpacked=%d dest=%s", cfg.Archive, n, cfg.DataDir)
	}

	labels, err := dataset.ExtractLabels(cfg.DataDir, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		log.Fatalf("extract labels from %s: %v", cfg.DataDir, err)
	}
	for _, p := range dataset.CheckMissing(labels.Paths) {
		log.Printf("warning: missing image %s", p)
	}
	sum := dataset.Summarize(labels)
	log.Printf("images=%d age_min=%.0f age_max=%.0f age_mean=%.1f age_median=%.1f age_std=%.1f %s=%d %s=%d",
		sum.Count, sum.MinAge, sum.MaxAge, sum.MeanAge, sum.MedianAge, sum.StdDevAge,
		strings.ToLower(polarity.Name(0)), sum.GenderCounts[0],
		strings.ToLower(polarity.Name(1)), sum.GenderCounts[1],
	)

	if cfg.PlotDir != "" {
		if err := os.MkdirAll(cfg.PlotDir, 0o755); err != nil {
			log.Fatalf("create plot dir: %v", err)
		}
		if err := plots.AgeHistogram(labels.Ages, filepath.Join(cfg.PlotDir, "age_distribution.png")); err != nil {
			log.Printf("warning: age histogram: %v", err)
		}
		var samples []dataset.Sample
		for i := 0; i < labels.Len() && i < plots.MaxGridSamples; i++ {
			samples = append(samples, labels.Sample(i))
		}
		if err := plots.SampleGrid(samples, polarity, 4, filepath.Join(cfg.PlotDir, "samples.png")); err != nil {
			log.Printf("warning: sample grid: %v", err)
		}
	}

	features, err := dataset.ExtractFeatures(ctx, labels.Paths, dataset.ExtractOptions{
		Size:       cfg.ImageSize,
		NumWorkers: cfg.NumWorkers,
		LogEvery:   cfg.LogEvery,
	})
	if err != nil {
		log.Fatalf("extract features: %v", err)
	}
	log.Printf("features=%v dropped=%d", features.X.Shape(), len(features.Failed))

	set, err := dataset.NewSet(features, labels)
	if err != nil {
		log.Fatalf("pair features with labels: %v", err)
	}
	trainIdx, valIdx := dataset.Split(set.Len(), cfg.ValidationSplit, cfg.Seed)
	train, val := set.Subset(trainIdx), set.Subset(valIdx)
	log.Printf("train=%d val=%d", train.Len(), val.Len())

	top := model.DefaultTopology()
	top.InputSize = cfg.ImageSize
	net, err := model.Build(top, cfg.Seed)
	if err != nil {
		log.Fatalf("build model: %v", err)
	}
	log.Printf("model inputs=%d outputs=%s\n%s", net.Inputs(), strings.Join(net.OutputNames(), ","), net.Summary())

	runCfg := trainer.RunConfig{
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		LearningRate: cfg.LearningRate,
		Seed:         cfg.Seed,
		LogEvery:     cfg.LogEvery,
	}
	history, err := trainer.Run(ctx, runCfg, net, train, val)
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}

	if cfg.PlotDir != "" {
		curves := []struct{ metric, title, file string }{
			{metrics.GenderAccuracy, "Gender accuracy", "gender_accuracy.png"},
			{metrics.AgeMAE, "Age MAE", "age_mae.png"},
			{metrics.Loss, "Loss", "loss.png"},
		}
		for _, c := range curves {
			if err := plots.TrainingCurves(history, c.metric, c.title, filepath.Join(cfg.PlotDir, c.file)); err != nil {
				log.Printf("warning: %s curve: %v", c.metric, err)
			}
		}
	}

	for i, path := range cfg.Predict {
		res, err := predict.PredictFile(net, polarity, path, cfg.ImageSize)
		if err != nil {
			log.Printf("error predicting %s: %v", path, err)
			continue
		}
		log.Printf("image=%s gender=%s gender_prob=%.3f age=%s", path, res.Gender, res.GenderProb, res.AgeString())
		if cfg.PlotDir != "" {
			out := filepath.Join(cfg.PlotDir, "prediction_"+strconv.Itoa(i)+".png")
			if err := plots.PredictionOverlay(path, res, out); err != nil {
				log.Printf("warning: overlay for %s: %v", path, err)
			}
		}
	}
}
