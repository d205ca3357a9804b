package premo

import (
	"context"

	"github.com/grailbio/base/log"
	"github.com/grailbio/premo/encoding/fastq"
	"github.com/grailbio/premo/stats"
)

// SingleEndBatch samples read lengths straight from a single FASTQ
// input. It runs no external programs and generates no files.
type SingleEndBatch struct {
	number int
	opts   Opts
	in     *fastq.File
	result Result
}

// NewSingleEndBatch creates batch number that reads from in.
func NewSingleEndBatch(number int, opts Opts, in *fastq.File) *SingleEndBatch {
	return &SingleEndBatch{number: number, opts: opts, in: in}
}

// Result returns the samples collected by Run.
func (b *SingleEndBatch) Result() Result { return b.result }

// Run reads up to BatchSize records. It follows the same status rules as
// Batch.Run.
func (b *SingleEndBatch) Run(ctx context.Context) (Status, error) {
	var (
		read fastq.Read
		res  Result
	)
	for len(res.ReadLengths) < b.opts.BatchSize && b.in.Scan(&read) {
		res.ReadLengths = append(res.ReadLengths, len(read.Seq))
	}
	if err := b.in.Err(); err != nil {
		return Error, err
	}
	n := len(res.ReadLengths)
	log.Debug.Printf("batch %d: sampled %d reads", b.number, n)
	if n == 0 {
		return NoData, nil
	}
	res.ReadLengths = stats.RemoveOutliers(res.ReadLengths)
	b.result = res
	if n < b.opts.BatchSize {
		return HitEndOfInput, nil
	}
	return Normal, nil
}
