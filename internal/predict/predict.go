// Package predict turns network outputs into labelled results.
package predict

import (
	"errors"
	"fmt"

	"utkface-forge/internal/dataset"
	"utkface-forge/internal/model"
)

// Estimator is anything that maps rows of pixels to predictions.
// *model.Network satisfies it.
type Estimator interface {
	Predict(x []float32, n int) ([]model.Prediction, error)
}

// Polarity fixes which binary class stands for "Male".
type Polarity struct {
	MaleClass int
}

// Validate rejects classes other than 0 and 1.
func (p Polarity) Validate() error {
	if p.MaleClass != 0 && p.MaleClass != 1 {
		return fmt.Errorf("predict: male class must be 0 or 1, got %d", p.MaleClass)
	}
	return nil
}

// Class thresholds prob at 0.5.
func (p Polarity) Class(prob float64) int {
	if prob > 0.5 {
		return 1
	}
	return 0
}

// Label names a gender probability.
func (p Polarity) Label(prob float64) string {
	return p.Name(p.Class(prob))
}

// Name names a gender class label.
func (p Polarity) Name(class int) string {
	if class == p.MaleClass {
		return "Male"
	}
	return "Female"
}

// Result is one labelled prediction.
type Result struct {
	Gender     string
	GenderProb float64
	Age        float64
}

// AgeString formats the age with one decimal.
func (r Result) AgeString() string {
	return fmt.Sprintf("%.1f", r.Age)
}

func (r Result) String() string {
	return fmt.Sprintf("Predicted Gender: %s, Predicted Age: %s years", r.Gender, r.AgeString())
}

// Predict runs a single row through est.
func Predict(est Estimator, p Polarity, x []float32) (Result, error) {
	preds, err := est.Predict(x, 1)
	if err != nil {
		return Result{}, err
	}
	if len(preds) != 1 {
		return Result{}, errors.New("predict: estimator returned no prediction")
	}
	return Result{
		Gender:     p.Label(preds[0].GenderProb),
		GenderProb: preds[0].GenderProb,
		Age:        preds[0].Age,
	}, nil
}

// PredictFile loads path as a size×size grayscale row and predicts it.
func PredictFile(est Estimator, p Polarity, path string, size int) (Result, error) {
	x, err := dataset.LoadGray(path, size)
	if err != nil {
		return Result{}, fmt.Errorf("predict %s: %w", path, err)
	}
	return Predict(est, p, x)
}
