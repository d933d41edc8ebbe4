package metrics

import (
	"fmt"
	"sort"
)

// Metric keys recorded once per epoch. Validation series carry ValPrefix.
const (
	Loss           = "loss"
	GenderLoss     = "gender_output_loss"
	AgeLoss        = "age_output_loss"
	GenderAccuracy = "gender_output_accuracy"
	AgeMAE         = "age_output_mae"

	ValPrefix = "val_"
)

// Keys lists the training-side metric names in a stable order.
var Keys = []string{Loss, GenderLoss, AgeLoss, GenderAccuracy, AgeMAE}

// History holds one value per completed epoch for every metric.
type History struct {
	series map[string][]float64
	epochs int
}

// NewHistory returns an empty history with every series present.
func NewHistory() *History {
	h := &History{series: make(map[string][]float64, 2*len(Keys))}
	for _, k := range Keys {
		h.series[k] = []float64{}
		h.series[ValPrefix+k] = []float64{}
	}
	return h
}

// Append records one epoch of training and validation metrics.
func (h *History) Append(train, val Snapshot) {
	h.add("", train)
	h.add(ValPrefix, val)
	h.epochs++
}

func (h *History) add(prefix string, s Snapshot) {
	vals := map[string]float64{
		Loss:           s.Loss,
		GenderLoss:     s.GenderLoss,
		AgeLoss:        s.AgeLoss,
		GenderAccuracy: s.GenderAccuracy,
		AgeMAE:         s.AgeMAE,
	}
	for k, v := range vals {
		h.series[prefix+k] = append(h.series[prefix+k], v)
	}
}

// Get returns the series for key, or an error for unknown keys.
func (h *History) Get(key string) ([]float64, error) {
	s, ok := h.series[key]
	if !ok {
		return nil, fmt.Errorf("metrics: unknown series %q", key)
	}
	return s, nil
}

// Epochs is the number of completed epochs.
func (h *History) Epochs() int { return h.epochs }

// Names returns every series name, sorted.
func (h *History) Names() []string {
	names := make([]string, 0, len(h.series))
	for k := range h.series {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
