package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrMalformedName is wrapped by every filename parse failure.
var ErrMalformedName = errors.New("dataset: malformed image name")

// NameError reports which file could not be parsed and why.
type NameError struct {
	Name   string
	Reason string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("dataset: malformed image name %q: %s", e.Name, e.Reason)
}

func (e *NameError) Unwrap() error { return ErrMalformedName }

// Sample is one labelled image.
type Sample struct {
	Path   string
	Age    int
	Gender int
}

// Labels holds three index-aligned lists, one entry per image.
type Labels struct {
	Paths   []string
	Ages    []int
	Genders []int
}

// Len returns the number of entries.
func (l Labels) Len() int { return len(l.Paths) }

// Sample returns entry i.
func (l Labels) Sample(i int) Sample {
	return Sample{Path: l.Paths[i], Age: l.Ages[i], Gender: l.Genders[i]}
}

// Select returns the entries at idx, in that order. It is how labels are
// reconciled with the Kept mask of ExtractFeatures.
func (l Labels) Select(idx []int) Labels {
	out := Labels{
		Paths:   make([]string, len(idx)),
		Ages:    make([]int, len(idx)),
		Genders: make([]int, len(idx)),
	}
	for i, j := range idx {
		out.Paths[i] = l.Paths[j]
		out.Ages[i] = l.Ages[j]
		out.Genders[i] = l.Genders[j]
	}
	return out
}

// ParseName extracts age and gender from a name shaped like
// "{age}_{gender}_{anything}.{ext}". Only the base name is inspected.
func ParseName(name string) (age, gender int, err error) {
	base := filepath.Base(name)
	tokens := strings.Split(base, "_")
	if len(tokens) < 2 {
		return 0, 0, &NameError{Name: base, Reason: "need at least two '_' separated tokens"}
	}
	age, err = strconv.Atoi(tokens[0])
	if err != nil || age < 0 {
		return 0, 0, &NameError{Name: base, Reason: fmt.Sprintf("age %q is not a non-negative integer", tokens[0])}
	}
	switch tokens[1] {
	case "0":
		gender = 0
	case "1":
		gender = 1
	default:
		return 0, 0, &NameError{Name: base, Reason: fmt.Sprintf("gender %q is not 0 or 1", tokens[1])}
	}
	return age, gender, nil
}

// ExtractLabels lists dir, shuffles the listing with rng and parses every
// name. The first malformed name aborts the extraction. A nil rng keeps the
// lexical listing order.
func ExtractLabels(dir string, rng *rand.Rand) (Labels, error) {
	paths, err := ListImages(dir)
	if err != nil {
		return Labels{}, err
	}
	if rng != nil {
		rng.Shuffle(len(paths), func(i, j int) {
			paths[i], paths[j] = paths[j], paths[i]
		})
	}
	out := Labels{
		Paths:   paths,
		Ages:    make([]int, len(paths)),
		Genders: make([]int, len(paths)),
	}
	for i, p := range paths {
		age, gender, err := ParseName(p)
		if err != nil {
			return Labels{}, err
		}
		out.Ages[i] = age
		out.Genders[i] = gender
	}
	return out, nil
}
