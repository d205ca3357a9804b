package fastq

import (
	"github.com/pkg/errors"
)

// RecordWriter is implemented by anything that accepts FASTQ reads, such
// as Writer and FileWriter.
type RecordWriter interface {
	Write(r *Read) error
}

// CopyPairs copies up to n read pairs from in to r1Out and r2Out. It
// returns the number of pairs copied. A count below n with a nil error
// means that in reached the end of its input; a zero count with a nil
// error means that in was already exhausted.
func CopyPairs(in *PairScanner, r1Out, r2Out RecordWriter, n int) (int, error) {
	var r1, r2 Read
	copied := 0
	for copied < n {
		if !in.Scan(&r1, &r2) {
			if err := in.Err(); err != nil {
				return copied, errors.Wrapf(err, "error reading input pair %d", copied)
			}
			return copied, nil
		}
		if err := r1Out.Write(&r1); err != nil {
			return copied, errors.Wrap(err, "error writing R1 output")
		}
		if err := r2Out.Write(&r2); err != nil {
			return copied, errors.Wrap(err, "error writing R2 output")
		}
		copied++
	}
	return copied, nil
}
