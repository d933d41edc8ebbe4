package metrics

import (
	"math"
	"testing"
	"time"

	"utkface-forge/internal/model"
)

func TestWindowSnapshot(t *testing.T) {
	var w Window
	w.Record(model.Step{
		Loss: 2, GenderLoss: 0.5, AgeLoss: 1.5,
		Predictions: []model.Prediction{{GenderProb: 0.9, Age: 30}, {GenderProb: 0.2, Age: 12}},
	}, []int{1, 1}, []int{28, 10}, 20*time.Millisecond)
	w.Record(model.Step{
		Loss: 4, GenderLoss: 1, AgeLoss: 3,
		Predictions: []model.Prediction{{GenderProb: 0.5, Age: 50}, {GenderProb: 0.7, Age: 41}},
	}, []int{0, 1}, []int{40, 40}, 20*time.Millisecond)

	snap := w.Snapshot()
	if snap.Samples != 4 || snap.Steps != 2 {
		t.Fatalf("unexpected counts %+v", snap)
	}
	if math.Abs(snap.Loss-3) > 1e-9 || math.Abs(snap.GenderLoss-0.75) > 1e-9 || math.Abs(snap.AgeLoss-2.25) > 1e-9 {
		t.Fatalf("unexpected losses %+v", snap)
	}
	// 0.5 is not above the threshold, so it counts as class 0.
	if snap.GenderAccuracy != 0.75 {
		t.Fatalf("expected accuracy 0.75, got %f", snap.GenderAccuracy)
	}
	if math.Abs(snap.AgeMAE-(2+2+10+1)/4.0) > 1e-9 {
		t.Fatalf("unexpected mae %f", snap.AgeMAE)
	}
	if math.Abs(snap.ImagesPerSec-100) > 1e-6 {
		t.Fatalf("unexpected throughput %.2f", snap.ImagesPerSec)
	}
	if snap.LastLoss != 4 {
		t.Fatalf("expected last loss 4, got %.2f", snap.LastLoss)
	}
	if w.samples != 0 || w.steps != 0 {
		t.Fatalf("window was not reset")
	}
}

func TestHistoryAppend(t *testing.T) {
	h := NewHistory()
	if len(h.Names()) != 10 {
		t.Fatalf("expected 10 series, got %v", h.Names())
	}
	h.Append(Snapshot{Loss: 3, AgeMAE: 9}, Snapshot{Loss: 4, AgeMAE: 11})
	h.Append(Snapshot{Loss: 2, AgeMAE: 7}, Snapshot{Loss: 3, AgeMAE: 10})
	if h.Epochs() != 2 {
		t.Fatalf("expected 2 epochs, got %d", h.Epochs())
	}
	for _, name := range h.Names() {
		s, err := h.Get(name)
		if err != nil {
			t.Fatalf("Get(%s): %v", name, err)
		}
		if len(s) != 2 {
			t.Fatalf("series %s has %d values", name, len(s))
		}
	}
	val, _ := h.Get("val_age_output_mae")
	if val[0] != 11 || val[1] != 10 {
		t.Fatalf("unexpected val mae %v", val)
	}
	if _, err := h.Get("accuracy"); err == nil {
		t.Fatal("expected error for unknown series")
	}
}
