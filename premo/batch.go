package premo

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/premo/encoding/fastq"
	"github.com/grailbio/premo/stats"
)

// Status is the outcome of running a batch.
type Status int

const (
	// Normal means that a full batch was sampled and aligned.
	Normal Status = iota
	// HitEndOfInput means that the input ran out part way through the
	// batch. The partial sample was still aligned and its result is valid.
	HitEndOfInput
	// NoData means that the input was already exhausted when the batch
	// started. The batch has no result.
	NoData
	// Error means that the batch failed.
	Error
)

func (s Status) String() string {
	switch s {
	case Normal:
		return "normal"
	case HitEndOfInput:
		return "end of input"
	case NoData:
		return "no data"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Files names the files generated by one paired-end batch.
type Files struct {
	Mate1, Mate2 string
	// Archive is the MosaikBuild read archive.
	Archive string
	// Stub is the MosaikAligner output prefix. The aligner derives the
	// remaining names from it.
	Stub        string
	BAM         string
	Log         string
	MultipleBAM string
	SpecialBAM  string
	Stat        string
}

// NewFiles returns the generated file names of batch number inside dir.
func NewFiles(dir string, number int) Files {
	prefix := filepath.Join(dir, fmt.Sprintf("premo_batch%d", number))
	stub := prefix + "_aligned"
	return Files{
		Mate1:       prefix + "_mate1.fq",
		Mate2:       prefix + "_mate2.fq",
		Archive:     prefix + "_reads.mkb",
		Stub:        stub,
		BAM:         stub + ".bam",
		Log:         stub + ".mosaiklog",
		MultipleBAM: stub + ".multiple.bam",
		SpecialBAM:  stub + ".special.bam",
		Stat:        stub + ".stat",
	}
}

// All lists every generated file.
func (f Files) All() []string {
	return []string{f.Mate1, f.Mate2, f.Archive, f.BAM, f.Log, f.MultipleBAM, f.SpecialBAM, f.Stat}
}

// Batch samples BatchSize read pairs from the input, aligns them with
// Mosaik and collects their read and fragment lengths.
type Batch struct {
	number int
	opts   Opts
	pairs  *fastq.PairScanner
	runner Runner
	mosaik Mosaik
	files  Files
	result Result
}

// NewBatch creates batch number that reads from pairs. Opts must have
// been validated.
func NewBatch(number int, opts Opts, pairs *fastq.PairScanner, runner Runner) *Batch {
	return &Batch{
		number: number,
		opts:   opts,
		pairs:  pairs,
		runner: runner,
		mosaik: NewMosaik(opts),
		files:  NewFiles(opts.ScratchPath, number),
	}
}

// Files returns the names of the files that the batch generates.
func (b *Batch) Files() Files { return b.files }

// Result returns the samples collected by Run.
func (b *Batch) Result() Result { return b.result }

// Run runs the batch. The error is non-nil iff the status is Error.
// Generated files are removed before Run returns, whatever the outcome,
// unless KeepGeneratedFiles is set.
func (b *Batch) Run(ctx context.Context) (status Status, err error) {
	if !b.opts.KeepGeneratedFiles {
		defer removeFiles(ctx, b.files.All())
	}
	if status, err = b.sample(ctx); status == NoData || status == Error {
		return
	}
	if err = b.align(ctx); err != nil {
		return Error, err
	}
	res, err := parseAlignments(ctx, b.files.BAM)
	if err != nil {
		return Error, err
	}
	res.ReadLengths = stats.RemoveOutliers(res.ReadLengths)
	res.FragmentLengths = stats.RemoveOutliers(res.FragmentLengths)
	b.result = res
	return status, nil
}

// sample copies the next BatchSize pairs into the batch's mate files.
func (b *Batch) sample(ctx context.Context) (Status, error) {
	w1, err := fastq.Create(ctx, b.files.Mate1)
	if err != nil {
		return Error, errors.E(err, "could not create temp FASTQ file")
	}
	w2, err := fastq.Create(ctx, b.files.Mate2)
	if err != nil {
		_ = w1.Close(ctx)
		return Error, errors.E(err, "could not create temp FASTQ file")
	}
	n, err := fastq.CopyPairs(b.pairs, w1, w2, b.opts.BatchSize)
	var once errors.Once
	once.Set(err)
	once.Set(w1.Close(ctx))
	once.Set(w2.Close(ctx))
	if err := once.Err(); err != nil {
		return Error, err
	}
	log.Debug.Printf("batch %d: sampled %d pairs", b.number, n)
	switch {
	case n == 0:
		return NoData, nil
	case n < b.opts.BatchSize:
		return HitEndOfInput, nil
	}
	return Normal, nil
}

func (b *Batch) align(ctx context.Context) error {
	f := b.files
	if err := b.runner.Run(ctx, b.mosaik.BuildCommand(f.Mate1, f.Mate2, f.Archive, f.Log)); err != nil {
		return errors.E(err, "MosaikBuild failed")
	}
	if err := b.runner.Run(ctx, b.mosaik.AlignCommand(f.Archive, f.Stub, f.Log)); err != nil {
		return errors.E(err, "MosaikAligner failed")
	}
	return nil
}

// parseAlignments reads the aligner's BAM output, which holds the two
// mates of each pair next to each other.
func parseAlignments(ctx context.Context, path string) (res Result, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return res, errors.E(err, "could not open generated BAM file:", path, "to parse alignments")
	}
	defer file.CloseAndReport(ctx, in, &err)
	r, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return res, errors.E(err, "could not read generated BAM file:", path)
	}
	defer func() {
		if e := r.Close(); e != nil && err == nil {
			err = e
		}
	}()
	for {
		mate1, rerr := r.Read()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return res, errors.E(rerr, "reading", path)
		}
		res.ReadLengths = append(res.ReadLengths, mate1.Seq.Length)
		mate2, rerr := r.Read()
		if rerr == io.EOF {
			sam.PutInFreePool(mate1)
			break
		}
		if rerr != nil {
			return res, errors.E(rerr, "reading", path)
		}
		res.ReadLengths = append(res.ReadLengths, mate2.Seq.Length)
		if mapped(mate1) && mapped(mate2) && mate1.Ref.ID() == mate2.Ref.ID() {
			fl, ferr := fragmentLength(mate1, mate2)
			if ferr != nil {
				return res, ferr
			}
			res.FragmentLengths = append(res.FragmentLengths, fl)
		}
		sam.PutInFreePool(mate1)
		sam.PutInFreePool(mate2)
	}
	return res, nil
}

func mapped(r *sam.Record) bool {
	return r.Flags&sam.Unmapped == 0
}

// fragmentLength returns the length of the fragment spanned by a pair
// mapped to the same reference. Both mates must report the same insert
// size magnitude.
func fragmentLength(mate1, mate2 *sam.Record) (int, error) {
	ins1, ins2 := abs(mate1.TempLen), abs(mate2.TempLen)
	if ins1 != ins2 {
		return 0, errors.E(errors.Integrity,
			fmt.Sprintf("mates of %s report insert sizes %d and %d", mate1.Name, mate1.TempLen, mate2.TempLen))
	}
	return mate1.Seq.Length + ins1 + mate2.Seq.Length, nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// removeFiles removes paths concurrently. Files that the batch never got
// to create are skipped silently.
func removeFiles(ctx context.Context, paths []string) {
	_ = traverse.Each(len(paths), func(i int) error {
		if err := file.Remove(ctx, paths[i]); err != nil {
			log.Debug.Printf("remove %s: %v", paths[i], err)
		}
		return nil
	})
}
