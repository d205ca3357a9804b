// Package stats computes the robust summary statistics that drive premo's
// bootstrap: medians, quartiles, IQR-based outlier trimming and the
// relative-median convergence test.
package stats

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// OutlierIQRMultiplier is the Tukey fence multiplier used by
// RemoveOutliers. 3.0 selects "extreme" outliers only: values more than
// three interquartile ranges outside the quartiles.
const OutlierIQRMultiplier = 3.0

var (
	// ErrNoBaseline is returned by IsConverged when either sample set is
	// empty, so no median exists to compare against.
	ErrNoBaseline = errors.New("cannot test convergence of an empty sample set")
	// ErrZeroMedian is returned by IsConverged when the previous median is
	// zero and the relative change is undefined.
	ErrZeroMedian = errors.New("cannot test convergence against a zero median")
)

// Quartiles holds the three quartiles of a sample set. Q2 is the median.
type Quartiles struct {
	Q1, Q2, Q3 float64
}

// IQR returns the interquartile range, Q3-Q1.
func (q Quartiles) IQR() float64 {
	return q.Q3 - q.Q1
}

// Median returns the median of sorted. For an even count it is the mean
// of the two central elements.
//
// REQUIRES: sorted is non-empty and sorted in ascending order.
func Median(sorted []int) float64 {
	pivot := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return float64(sorted[pivot-1]+sorted[pivot]) / 2.0
	}
	return float64(sorted[pivot])
}

// NewQuartiles computes the quartiles of sorted. The set is split at its
// midpoint; for an odd count the central element belongs to both halves.
//
// REQUIRES: sorted is non-empty and sorted in ascending order.
func NewQuartiles(sorted []int) Quartiles {
	pivot := len(sorted) / 2
	low, high := sorted[:pivot], sorted[pivot:]
	if len(sorted)%2 == 1 {
		low = sorted[:pivot+1]
	}
	return Quartiles{
		Q1: Median(low),
		Q2: Median(sorted),
		Q3: Median(high),
	}
}

// Summary describes a sample set. Quartiles are zero when Count is zero.
type Summary struct {
	Count int
	Quartiles
}

// Summarize computes the Summary of samples, which need not be sorted.
// Samples is not modified.
func Summarize(samples []int) Summary {
	s := Summary{Count: len(samples)}
	if len(samples) > 0 {
		s.Quartiles = NewQuartiles(sortedCopy(samples))
	}
	return s
}

// RemoveOutliers drops every value outside [Q1-k*IQR, Q3+k*IQR], with
// k=OutlierIQRMultiplier, and returns the shortened slice. The surviving
// values keep their input order. The filtering happens in place, so the
// caller must use the returned slice in place of samples.
func RemoveOutliers(samples []int) []int {
	if len(samples) == 0 {
		return samples
	}
	q := NewQuartiles(sortedCopy(samples))
	lo := q.Q1 - OutlierIQRMultiplier*q.IQR()
	hi := q.Q3 + OutlierIQRMultiplier*q.IQR()
	n := 0
	for _, v := range samples {
		if x := float64(v); x >= lo && x <= hi {
			samples[n] = v
			n++
		}
	}
	return samples[:n]
}

// IsConverged reports whether the median moved by at most delta, as a
// fraction of the previous median, between previous and current. Neither
// input is modified.
func IsConverged(previous, current []int, delta float64) (bool, error) {
	if len(previous) == 0 || len(current) == 0 {
		return false, ErrNoBaseline
	}
	prev := Median(sortedCopy(previous))
	if prev == 0 {
		return false, ErrZeroMedian
	}
	cur := Median(sortedCopy(current))
	return math.Abs(cur-prev)/prev <= delta, nil
}

func sortedCopy(samples []int) []int {
	c := make([]int, len(samples))
	copy(c, samples)
	sort.Ints(c)
	return c
}
