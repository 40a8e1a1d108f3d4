package datasets

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// FeatureSummary describes the observed distribution of one feature column.
type FeatureSummary struct {
	Name   string
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Summary describes a whole dataset: per-feature ranges and the class counts.
type Summary struct {
	Examples int
	Features []FeatureSummary
	// Classes counts examples per label; empty for unlabeled datasets.
	Classes map[int]int
}

// Range returns the smallest Min and largest Max over all features. It is the
// single (min, max) pair used to cap generated points.
func (s *Summary) Range() (lo, hi float64) {
	for i, f := range s.Features {
		if i == 0 || f.Min < lo {
			lo = f.Min
		}
		if i == 0 || f.Max > hi {
			hi = f.Max
		}
	}
	return lo, hi
}

// Summarize scans every example of d once.
func Summarize(d *InstanceDataset) (*Summary, error) {
	if d.Len() == 0 {
		return &Summary{}, nil
	}
	features, labels, err := d.All()
	if err != nil {
		return nil, err
	}

	s := &Summary{Examples: len(features)}
	column := make(stats.Float64Data, len(features))
	for j, name := range d.FeatureNames() {
		for i, row := range features {
			column[i] = row[j]
		}
		fs := FeatureSummary{Name: name}
		if fs.Min, err = column.Min(); err != nil {
			return nil, fmt.Errorf("summarize %s: %w", name, err)
		}
		if fs.Max, err = column.Max(); err != nil {
			return nil, fmt.Errorf("summarize %s: %w", name, err)
		}
		if fs.Mean, err = column.Mean(); err != nil {
			return nil, fmt.Errorf("summarize %s: %w", name, err)
		}
		if fs.StdDev, err = column.StandardDeviation(); err != nil {
			return nil, fmt.Errorf("summarize %s: %w", name, err)
		}
		s.Features = append(s.Features, fs)
	}

	if d.HasLabels() {
		s.Classes = make(map[int]int)
		for _, y := range labels {
			s.Classes[y]++
		}
	}
	return s, nil
}
