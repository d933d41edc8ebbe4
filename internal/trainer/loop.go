package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/unixpickle/anynet/anysgd"

	"utkface-forge/internal/dataset"
	"utkface-forge/internal/metrics"
	"utkface-forge/internal/model"
)

// RunConfig captures the knobs required by the training loop.
type RunConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         int64
	LogEvery     int
}

// Run trains net on train for cfg.Epochs epochs, evaluating on val after
// each one, and returns the per-epoch history. Cancelling ctx stops the run
// between steps and returns ctx.Err().
func Run(ctx context.Context, cfg RunConfig, net *model.Network, train, val dataset.Set) (*metrics.History, error) {
	if cfg.Epochs <= 0 {
		return nil, errors.New("trainer: epochs must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.New("trainer: batch size must be > 0")
	}
	if cfg.LearningRate <= 0 {
		return nil, errors.New("trainer: learning rate must be > 0")
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 50
	}
	if err := checkSet("train", train, net); err != nil {
		return nil, err
	}
	if train.Len() == 0 {
		return nil, errors.New("trainer: training set is empty")
	}
	if err := checkSet("validation", val, net); err != nil {
		return nil, err
	}

	// Dropout masks come from the global source.
	rand.Seed(cfg.Seed)
	rng := rand.New(rand.NewSource(cfg.Seed))
	opt := &anysgd.Adam{}
	lr := net.Creator().MakeNumeric(-cfg.LearningRate)
	history := metrics.NewHistory()
	rowSize := train.RowSize()

	step := 0
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		var window metrics.Window
		start := time.Now()
		order := rng.Perm(train.Len())
		for off := 0; off < len(order); off += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			end := off + cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := makeBatch(train, order[off:end], rowSize)

			startCompute := time.Now()
			grad, res, err := net.Gradient(batch)
			if err != nil {
				return nil, fmt.Errorf("trainer: epoch %d: %w", epoch, err)
			}
			grad = opt.Transform(grad)
			grad.Scale(lr)
			grad.AddToVars()
			window.Record(res, batch.Gender, batch.Age, time.Since(startCompute))

			step++
			if step%cfg.LogEvery == 0 {
				log.Printf("step=%d epoch=%d loss=%.4f gender_loss=%.4f age_loss=%.4f",
					step, epoch, res.Loss, res.GenderLoss, res.AgeLoss)
			}
		}
		trainSnap := window.Snapshot()

		valSnap, err := Evaluate(ctx, net, val, cfg.BatchSize)
		if err != nil {
			return nil, err
		}
		history.Append(trainSnap, valSnap)
		log.Printf("epoch=%d/%d loss=%.4f gender_acc=%.4f age_mae=%.2f val_loss=%.4f val_gender_acc=%.4f val_age_mae=%.2f images_per_sec=%.1f elapsed=%s",
			epoch, cfg.Epochs,
			trainSnap.Loss, trainSnap.GenderAccuracy, trainSnap.AgeMAE,
			valSnap.Loss, valSnap.GenderAccuracy, valSnap.AgeMAE,
			trainSnap.ImagesPerSec, time.Since(start).Round(time.Millisecond),
		)
	}
	return history, nil
}

// Evaluate runs set through net with dropout disabled, batchSize rows at a
// time. An empty set yields a zero Snapshot.
func Evaluate(ctx context.Context, net *model.Network, set dataset.Set, batchSize int) (metrics.Snapshot, error) {
	if batchSize <= 0 {
		batchSize = 32
	}
	var window metrics.Window
	n := set.Len()
	if n == 0 {
		return window.Snapshot(), nil
	}
	rowSize := set.RowSize()
	idx := make([]int, 0, batchSize)
	for off := 0; off < n; off += batchSize {
		if err := ctx.Err(); err != nil {
			return metrics.Snapshot{}, err
		}
		idx = idx[:0]
		for i := off; i < n && i < off+batchSize; i++ {
			idx = append(idx, i)
		}
		batch := makeBatch(set, idx, rowSize)
		start := time.Now()
		res, err := net.Evaluate(batch)
		if err != nil {
			return metrics.Snapshot{}, fmt.Errorf("trainer: evaluate: %w", err)
		}
		window.Record(res, batch.Gender, batch.Age, time.Since(start))
	}
	return window.Snapshot(), nil
}

func checkSet(name string, s dataset.Set, net *model.Network) error {
	if s.X == nil && len(s.Gender) == 0 && len(s.Age) == 0 {
		return nil
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("trainer: %s set: %w", name, err)
	}
	if s.RowSize() != net.Topology.RowSize() {
		return fmt.Errorf("trainer: %s rows have %d values, network expects %d", name, s.RowSize(), net.Topology.RowSize())
	}
	return nil
}

func makeBatch(s dataset.Set, idx []int, rowSize int) model.Batch {
	b := model.Batch{
		Inputs: make([]float32, 0, len(idx)*rowSize),
		Gender: make([]int, len(idx)),
		Age:    make([]int, len(idx)),
		N:      len(idx),
	}
	for i, src := range idx {
		b.Inputs = append(b.Inputs, dataset.Row(s.X, src)...)
		b.Gender[i] = s.Gender[src]
		b.Age[i] = s.Age[src]
	}
	return b
}
