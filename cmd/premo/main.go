package main

/*
  premo samples a sequencing run and suggests MosaikAligner and MosaikBuild
  parameters for it. For more information, see
  github.com/grailbio/premo/premo/doc.go

  Sample usage:
  premo -fq1 r1.fq.gz -fq2 r2.fq.gz -st illumina \
      -mosaik /opt/mosaik/bin -ref hg19.dat \
      -annpe 2.1.26.pe.100.0065.ann -annse 2.1.26.se.100.005.ann \
      -tmp /scratch/premo -out premo.json
*/

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/premo/premo"
	"v.io/x/lib/vlog"
)

const version = "premo v1.0.0"

var (
	fq1          = flag.String("fq1", "", "input FASTQ file (mate 1 or single-end)")
	fq2          = flag.String("fq2", "", "input FASTQ file (mate 2) - required for paired-end data")
	mosaikPath   = flag.String("mosaik", "", "/path/to/Mosaik/bin - required for paired-end data")
	out          = flag.String("out", "", "output file (JSON). Contains generated Mosaik parameters & raw batch results")
	ref          = flag.String("ref", "", "MosaikBuild-generated reference archive - required for paired-end data")
	annPe        = flag.String("annpe", "", "neural network filename (paired-end) - required for paired-end data")
	annSe        = flag.String("annse", "", "neural network filename (single-end) - required for paired-end data")
	jump         = flag.String("jmp", "", "stub for jump database files")
	tmp          = flag.String("tmp", "", "scratch directory for any generated files - only used for paired-end data")
	keep         = flag.Bool("keep", false, "keep generated files (auto-deleted by default)")
	singleEnd    = flag.Bool("se", false, "run in single-end data mode. By default, paired-end data is assumed.")
	verbose      = flag.Bool("verbose", false, "verbose output (to stderr). -v=1 has the same effect.")
	showVersion  = flag.Bool("version", false, "show version information")
	batchSize    = flag.Int("n", premo.DefaultOpts.BatchSize, "# of pairs to align per batch")
	deltaFL      = flag.Float64("delta-fl", premo.DefaultOpts.DeltaFragmentLength, "delta fragment length (fraction). Stop when the overall median fragment length changes by less than this amount after a new batch")
	deltaRL      = flag.Float64("delta-rl", premo.DefaultOpts.DeltaReadLength, "delta read length (fraction). Stop when the overall median read length changes by less than this amount after a new batch")
	actIntercept = flag.Float64("act-intercept", premo.DefaultOpts.ActIntercept, "alignment candidate threshold intercept. Generated -act is (act-slope * read length) + act-intercept")
	actSlope     = flag.Float64("act-slope", premo.DefaultOpts.ActSlope, "alignment candidate threshold slope")
	bwm          = flag.Float64("bwm", premo.DefaultOpts.BwMultiplier, "banded Smith-Waterman multiplier. Generated -bw is ceil(bwm * read length)")
	bwOdd        = flag.Bool("bw-odd", premo.DefaultOpts.OddBandwidth, "round an even generated -bw down to the nearest odd value")
	hashSize     = flag.Int("hs", premo.DefaultOpts.HashSize, "Mosaik hash size. Used in batch runs, and included in generated parameter set")
	mhp          = flag.Int("mhp", premo.DefaultOpts.Mhp, "maximum hash positions. Used in batch runs, and included in generated parameter set")
	mmp          = flag.Float64("mmp", premo.DefaultOpts.Mmp, "mismatch percent. Used in batch runs, and included in generated parameter set")
	procs        = flag.Int("p", premo.DefaultOpts.NumProcessors, "use specified number of processors for MosaikAligner runs")
	seqTech      = flag.String("st", "", "sequencing technology: one of "+strings.Join(premo.SeqTechs, ", ")+". Required for batch runs, and included in generated parameter set")
	batchTSV     = flag.String("batch-tsv", "", "if set, write a per-batch TSV summary to this file")
	rioOutput    = flag.String("rio-output", "", "if set, write the per-batch samples to this recordio file")
)

func main() {
	shutdown := grail.Init()

	if flag.NArg() > 0 {
		a := flag.Args()
		log.Fatalf("unparsed flags, please check flag syntax: '%s'", strings.Join(a[len(a)-flag.NArg():], " "))
	}
	if *showVersion {
		fmt.Fprintf(os.Stderr, "\n------------------------------\n%s\n------------------------------\n\n", version)
		shutdown()
		return
	}

	opts := premo.Opts{
		FastqPath1:          *fq1,
		FastqPath2:          *fq2,
		MosaikPath:          *mosaikPath,
		OutputPath:          *out,
		ReferencePath:       *ref,
		AnnPePath:           *annPe,
		AnnSePath:           *annSe,
		JumpDbStub:          *jump,
		ScratchPath:         *tmp,
		SeqTech:             *seqTech,
		KeepGeneratedFiles:  *keep,
		SingleEnd:           *singleEnd,
		Verbose:             *verbose || vlog.V(1),
		BatchSize:           *batchSize,
		DeltaFragmentLength: *deltaFL,
		DeltaReadLength:     *deltaRL,
		ActIntercept:        *actIntercept,
		ActSlope:            *actSlope,
		BwMultiplier:        *bwm,
		OddBandwidth:        *bwOdd,
		HashSize:            *hashSize,
		Mhp:                 *mhp,
		Mmp:                 *mmp,
		NumProcessors:       *procs,
		BatchTSVPath:        *batchTSV,
		RioOutputPath:       *rioOutput,
	}
	ctx := vcontext.Background()
	err := run(ctx, opts, premo.ExecRunner{})
	shutdown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "premo ERROR: %v\n", err)
		os.Exit(1)
	}
}

// run checks opts and the environment, runs the engine and writes the
// outputs.
func run(ctx context.Context, opts premo.Opts, runner premo.Runner) error {
	engine, err := premo.NewEngine(opts, runner)
	if err != nil {
		return err
	}
	opts = engine.Opts()
	if opts.Verbose {
		log.Printf("command-line settings OK")
	}
	summary, err := engine.Run(ctx)
	if err != nil {
		return err
	}
	if len(summary.Batches) == 0 {
		return errors.E(errors.Invalid, "no records found in", opts.FastqPath1)
	}
	if err := premo.WriteReport(ctx, opts.OutputPath, premo.NewReport(opts, summary)); err != nil {
		return err
	}
	if opts.BatchTSVPath != "" {
		if err := premo.WriteBatchTSV(ctx, opts.BatchTSVPath, summary); err != nil {
			return err
		}
	}
	if opts.RioOutputPath != "" {
		if err := premo.WriteBatchRecordio(ctx, opts.RioOutputPath, opts, summary); err != nil {
			return err
		}
	}
	if opts.Verbose {
		log.Printf("results written OK")
	}
	return nil
}
