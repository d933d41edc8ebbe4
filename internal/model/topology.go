package model

import (
	"errors"
	"fmt"
)

// Topology fixes the layer stack built by Build.
type Topology struct {
	InputSize   int
	InputDepth  int
	ConvFilters []int
	KernelSize  int
	PoolSize    int
	DenseUnits  int
	DropoutRate float64
}

// DefaultTopology is four conv/pool stages of 32, 64, 128 and 256 filters on
// a 128x128 grayscale input, followed by 256-unit heads.
func DefaultTopology() Topology {
	return Topology{
		InputSize:   128,
		InputDepth:  1,
		ConvFilters: []int{32, 64, 128, 256},
		KernelSize:  3,
		PoolSize:    2,
		DenseUnits:  256,
		DropoutRate: 0.3,
	}
}

// Validate checks that every stage yields a non-empty tensor.
func (t Topology) Validate() error {
	if t.InputSize <= 0 || t.InputDepth <= 0 {
		return fmt.Errorf("topology: invalid input %dx%dx%d", t.InputSize, t.InputSize, t.InputDepth)
	}
	if len(t.ConvFilters) == 0 {
		return errors.New("topology: at least one conv stage is required")
	}
	if t.KernelSize <= 0 || t.PoolSize <= 0 {
		return fmt.Errorf("topology: kernel=%d pool=%d must be > 0", t.KernelSize, t.PoolSize)
	}
	if t.DenseUnits <= 0 {
		return fmt.Errorf("topology: dense_units=%d must be > 0", t.DenseUnits)
	}
	if t.DropoutRate < 0 || t.DropoutRate >= 1 {
		return fmt.Errorf("topology: dropout rate %.2f outside [0,1)", t.DropoutRate)
	}
	size := t.InputSize
	for i, f := range t.ConvFilters {
		if f <= 0 {
			return fmt.Errorf("topology: stage %d has %d filters", i, f)
		}
		size = t.stageOutput(size)
		if size <= 0 {
			return fmt.Errorf("topology: stage %d collapses the %dpx input", i, t.InputSize)
		}
	}
	return nil
}

// stageOutput is the side length after one valid conv and one pool.
func (t Topology) stageOutput(size int) int {
	conv := size - t.KernelSize + 1
	if conv <= 0 {
		return 0
	}
	return conv / t.PoolSize
}

// TrunkSide is the side length of the last pooled feature map.
func (t Topology) TrunkSide() int {
	size := t.InputSize
	for range t.ConvFilters {
		size = t.stageOutput(size)
	}
	return size
}

// FlatSize is the length of the flattened trunk output for one sample.
func (t Topology) FlatSize() int {
	side := t.TrunkSide()
	return side * side * t.ConvFilters[len(t.ConvFilters)-1]
}

// RowSize is the number of input values per sample.
func (t Topology) RowSize() int {
	return t.InputSize * t.InputSize * t.InputDepth
}
