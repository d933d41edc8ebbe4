package model

import "fmt"

// Output names, in the order Apply interleaves them.
const (
	GenderOutput = "gender_output"
	AgeOutput    = "age_output"
)

// Batch represents a minibatch of grayscale rows and their two labels.
type Batch struct {
	// Inputs holds N rows of InputSize*InputSize*InputDepth values,
	// row-major and depth-minor.
	Inputs []float32
	Gender []int
	Age    []int
	N      int
}

func (b Batch) validate(rowSize int) error {
	if b.N <= 0 {
		return fmt.Errorf("batch size must be > 0, got %d", b.N)
	}
	if len(b.Inputs) != b.N*rowSize {
		return fmt.Errorf("batch inputs: expected %d values, got %d", b.N*rowSize, len(b.Inputs))
	}
	if len(b.Gender) != b.N || len(b.Age) != b.N {
		return fmt.Errorf("batch labels: expected %d, got gender=%d age=%d", b.N, len(b.Gender), len(b.Age))
	}
	return nil
}

// Prediction is the network output for one sample.
type Prediction struct {
	// GenderProb is the sigmoid of the gender logit.
	GenderProb float64
	Age        float64
}

// Step summarises one forward pass over a batch.
type Step struct {
	// Loss is GenderLoss + AgeLoss, both averaged over the batch.
	Loss        float64
	GenderLoss  float64
	AgeLoss     float64
	Predictions []Prediction
}
