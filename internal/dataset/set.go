package dataset

import (
	"errors"
	"fmt"

	"gorgonia.org/tensor"
)

// ErrMisaligned is returned when the feature rows and the label vectors do
// not have the same length.
var ErrMisaligned = errors.New("dataset: features and labels are misaligned")

// Set pairs a (N, H, W, 1) feature tensor with its label vectors.
type Set struct {
	X      *tensor.Dense
	Gender []int
	Age    []int
}

// NewSet pairs extracted features with their labels. labels must be the
// full, unfiltered Labels that were passed to ExtractFeatures; the rows that
// failed to decode are dropped from the labels through f.Kept.
func NewSet(f *Features, labels Labels) (Set, error) {
	for _, i := range f.Kept {
		if i >= labels.Len() {
			return Set{}, fmt.Errorf("%w: kept index %d beyond %d labels", ErrMisaligned, i, labels.Len())
		}
	}
	kept := labels.Select(f.Kept)
	s := Set{X: f.X, Gender: kept.Genders, Age: kept.Ages}
	return s, s.Validate()
}

// Len returns the number of feature rows.
func (s Set) Len() int {
	if s.X == nil {
		return 0
	}
	return s.X.Shape()[0]
}

// RowSize returns the number of values in one feature row.
func (s Set) RowSize() int {
	shape := s.X.Shape()
	return shape[1] * shape[2] * shape[3]
}

// Validate fails fast when rows and labels disagree.
func (s Set) Validate() error {
	if s.X == nil {
		return fmt.Errorf("%w: no feature tensor", ErrMisaligned)
	}
	if len(s.X.Shape()) != 4 {
		return fmt.Errorf("dataset: feature tensor must be 4-D, got shape %v", s.X.Shape())
	}
	n := s.Len()
	if len(s.Gender) != n || len(s.Age) != n {
		return fmt.Errorf("%w: %d rows, %d gender labels, %d age labels",
			ErrMisaligned, n, len(s.Gender), len(s.Age))
	}
	return nil
}

// Subset copies the rows at idx into a new Set.
func (s Set) Subset(idx []int) Set {
	if len(idx) == 0 {
		return Set{}
	}
	shape := s.X.Shape()
	rowSize := s.RowSize()
	backing := make([]float32, 0, len(idx)*rowSize)
	gender := make([]int, len(idx))
	age := make([]int, len(idx))
	for i, j := range idx {
		backing = append(backing, Row(s.X, j)...)
		gender[i] = s.Gender[j]
		age[i] = s.Age[j]
	}
	x := tensor.New(
		tensor.WithShape(len(idx), shape[1], shape[2], shape[3]),
		tensor.WithBacking(backing),
	)
	return Set{X: x, Gender: gender, Age: age}
}
