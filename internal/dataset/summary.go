package dataset

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the label distribution of a dataset.
type Summary struct {
	Count        int
	MinAge       float64
	MaxAge       float64
	MeanAge      float64
	MedianAge    float64
	StdDevAge    float64
	GenderCounts [2]int
}

// Summarize computes the age distribution and the per-class gender counts.
func Summarize(l Labels) Summary {
	s := Summary{Count: l.Len()}
	if s.Count == 0 {
		return s
	}
	ages := make([]float64, len(l.Ages))
	for i, a := range l.Ages {
		ages[i] = float64(a)
	}
	sort.Float64s(ages)
	s.MinAge = floats.Min(ages)
	s.MaxAge = floats.Max(ages)
	s.MeanAge, s.StdDevAge = stat.MeanStdDev(ages, nil)
	s.MedianAge = stat.Quantile(0.5, stat.Empirical, ages, nil)
	for _, g := range l.Genders {
		if g == 0 || g == 1 {
			s.GenderCounts[g]++
		}
	}
	return s
}
