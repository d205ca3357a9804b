package premo

import (
	"context"
	"fmt"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/premo/encoding/fastq"
	"github.com/grailbio/premo/stats"
)

// Reason tells why the engine stopped running batches.
type Reason int

const (
	// Converged means that the running medians stopped moving.
	Converged Reason = iota
	// EndOfInput means that the input ran out part way through a batch.
	EndOfInput
	// NoMoreData means that the previous batch consumed the last record.
	NoMoreData
)

func (r Reason) String() string {
	switch r {
	case Converged:
		return "converged"
	case EndOfInput:
		return "end of input"
	case NoMoreData:
		return "no more data"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// Summary is the outcome of a run.
type Summary struct {
	// Overall folds the samples of every batch.
	Overall Result
	// Batches holds the result of each batch, in order.
	Batches []Result
	Reason  Reason
}

// batchRunner is implemented by Batch and SingleEndBatch.
type batchRunner interface {
	Run(ctx context.Context) (Status, error)
	Result() Result
}

// Engine runs batches until the running length distributions converge or
// the input runs out.
type Engine struct {
	opts   Opts
	runner Runner
	// createdScratch is set when the engine created the scratch directory.
	createdScratch bool
}

// NewEngine validates opts and returns an engine that runs the aligner
// through runner. In paired-end mode it also looks up the Mosaik binaries
// with runner and creates the scratch directory if needed; failures are
// reported in the same *ConfigError as invalid options. Runner is unused
// in single-end mode and may be nil.
func NewEngine(opts Opts, runner Runner) (*Engine, error) {
	opts, err := opts.Validate()
	cerr, ok := err.(*ConfigError)
	if !ok {
		if err != nil {
			return nil, err
		}
		cerr = &ConfigError{}
	}
	e := &Engine{opts: opts, runner: runner}
	if !opts.SingleEnd {
		if opts.MosaikPath != "" && runner != nil {
			if _, err := LookupMosaik(opts, runner); err != nil {
				lerr, ok := err.(*ConfigError)
				if !ok {
					return nil, err
				}
				cerr.Invalid = append(cerr.Invalid, lerr.Invalid...)
			}
		}
		if opts.ScratchPath != "" {
			created, err := makeScratchDir(opts.ScratchPath)
			if err != nil {
				cerr.Invalid = append(cerr.Invalid, "-tmp: "+err.Error())
			}
			e.createdScratch = created
		}
	}
	if !cerr.empty() {
		e.removeScratchDir()
		return nil, cerr
	}
	return e, nil
}

// Opts returns the validated options of the engine.
func (e *Engine) Opts() Opts { return e.opts }

// Run runs the batches one after another. Batches never overlap: each
// convergence test needs every earlier batch folded in, and batches share
// the scratch directory.
func (e *Engine) Run(ctx context.Context) (summary *Summary, err error) {
	if !e.opts.KeepGeneratedFiles {
		defer e.removeScratchDir()
	}
	in1, err := fastq.Open(ctx, e.opts.FastqPath1, e.fields())
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := in1.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	newBatch := func(number int) batchRunner {
		return NewSingleEndBatch(number, e.opts, in1)
	}
	if !e.opts.SingleEnd {
		var in2 *fastq.File
		if in2, err = fastq.Open(ctx, e.opts.FastqPath2, e.fields()); err != nil {
			return nil, err
		}
		defer func() {
			if cerr := in2.Close(ctx); cerr != nil && err == nil {
				err = cerr
			}
		}()
		pairs := fastq.NewFilePairScanner(in1, in2)
		newBatch = func(number int) batchRunner {
			return NewBatch(number, e.opts, pairs, e.runner)
		}
		var created bool
		if created, err = makeScratchDir(e.opts.ScratchPath); err != nil {
			return nil, err
		}
		e.createdScratch = e.createdScratch || created
	}
	e.logf("input FASTQ file(s) opened OK")

	summary = &Summary{}
	for number := 0; ; number++ {
		e.logf("running batch: %d", number)
		b := newBatch(number)
		status, err := b.Run(ctx)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("batch %d failed", number))
		}
		if status == NoData {
			// The previous batch ended exactly at the end of the input.
			summary.Reason = NoMoreData
			break
		}
		result := b.Result()
		summary.Batches = append(summary.Batches, result.Clone())
		previous := summary.Overall.Clone()
		summary.Overall.Merge(result)
		if status == HitEndOfInput {
			summary.Reason = EndOfInput
			break
		}
		if number == 0 {
			continue
		}
		done, err := e.converged(previous, summary.Overall)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("batch %d", number))
		}
		if done {
			summary.Reason = Converged
			break
		}
	}
	e.logf("ran %d batches (%v)", len(summary.Batches), summary.Reason)
	return summary, nil
}

func (e *Engine) fields() fastq.Field {
	if e.opts.SingleEnd {
		return fastq.Seq
	}
	return fastq.All
}

// converged tests read length convergence, and in paired-end mode also
// fragment length convergence.
func (e *Engine) converged(previous, current Result) (bool, error) {
	done, err := isConverged(previous.ReadLengths, current.ReadLengths, e.opts.DeltaReadLength)
	if err != nil || !done || e.opts.SingleEnd {
		return done, err
	}
	return isConverged(previous.FragmentLengths, current.FragmentLengths, e.opts.DeltaFragmentLength)
}

// isConverged is stats.IsConverged, except that a missing baseline means
// "not converged yet" rather than an error.
func isConverged(previous, current []int, delta float64) (bool, error) {
	done, err := stats.IsConverged(previous, current, delta)
	if err == stats.ErrNoBaseline {
		return false, nil
	}
	return done, err
}

// removeScratchDir removes the scratch directory if the engine created it.
func (e *Engine) removeScratchDir() {
	if !e.createdScratch {
		return
	}
	if err := os.RemoveAll(e.opts.ScratchPath); err != nil {
		log.Error.Printf("remove %s: %v", e.opts.ScratchPath, err)
	}
	e.createdScratch = false
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.opts.Verbose {
		log.Printf(format, args...)
	}
}

// makeScratchDir creates dir unless it exists already. It reports whether
// it created the directory.
func makeScratchDir(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return false, errors.E(errors.Invalid, "not a directory:", dir)
		}
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, errors.E(err, "could not access scratch directory:", dir)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return false, errors.E(err, "could not create directory:", dir)
	}
	return true, nil
}
