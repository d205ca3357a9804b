package premo

// Result holds the length samples collected by one batch, or folded
// across many.
type Result struct {
	// ReadLengths holds one entry per aligned read, mapped or not.
	ReadLengths []int
	// FragmentLengths holds one entry per pair whose mates mapped to the
	// same reference. It is empty in single-end mode.
	FragmentLengths []int
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	return Result{
		ReadLengths:     append([]int(nil), r.ReadLengths...),
		FragmentLengths: append([]int(nil), r.FragmentLengths...),
	}
}

// Merge appends the samples of other to r.
func (r *Result) Merge(other Result) {
	r.ReadLengths = append(r.ReadLengths, other.ReadLengths...)
	r.FragmentLengths = append(r.FragmentLengths, other.FragmentLengths...)
}
