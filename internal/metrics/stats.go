package metrics

import (
	"math"
	"time"

	"utkface-forge/internal/model"
)

// Window accumulates per-step losses and head metrics across an epoch.
type Window struct {
	samples    int
	steps      int
	loss       float64
	genderLoss float64
	ageLoss    float64
	correct    int
	absErr     float64
	compute    time.Duration
	lastLoss   float64
}

// Record adds one batch. gender and age are the batch labels, aligned with
// step.Predictions.
func (w *Window) Record(step model.Step, gender, age []int, computeTime time.Duration) {
	n := len(step.Predictions)
	w.samples += n
	w.steps++
	w.loss += step.Loss * float64(n)
	w.genderLoss += step.GenderLoss * float64(n)
	w.ageLoss += step.AgeLoss * float64(n)
	w.compute += computeTime
	w.lastLoss = step.Loss
	for i, p := range step.Predictions {
		if predictedClass(p.GenderProb) == gender[i] {
			w.correct++
		}
		w.absErr += math.Abs(p.Age - float64(age[i]))
	}
}

// Snapshot returns sample-weighted means and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Samples: w.samples, Steps: w.steps, LastLoss: w.lastLoss}
	if w.samples > 0 {
		n := float64(w.samples)
		snap.Loss = w.loss / n
		snap.GenderLoss = w.genderLoss / n
		snap.AgeLoss = w.ageLoss / n
		snap.GenderAccuracy = float64(w.correct) / n
		snap.AgeMAE = w.absErr / n
	}
	if w.compute > 0 {
		snap.ImagesPerSec = float64(w.samples) / w.compute.Seconds()
	}
	if w.steps > 0 {
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.steps)
	}

	*w = Window{}
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Samples        int
	Steps          int
	Loss           float64
	GenderLoss     float64
	AgeLoss        float64
	GenderAccuracy float64
	AgeMAE         float64
	LastLoss       float64
	ImagesPerSec   float64
	AvgComputeMS   float64
}

func predictedClass(prob float64) int {
	if prob > 0.5 {
		return 1
	}
	return 0
}
