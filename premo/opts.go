package premo

import (
	"fmt"
	"os"
	"strings"
)

// Opts holds the settings of a premo run.
type Opts struct {
	// FastqPath1 and FastqPath2 are the mate-1 and mate-2 input files. Either
	// may be gzip-compressed. FastqPath2 is ignored in single-end mode.
	FastqPath1 string
	FastqPath2 string
	// MosaikPath is the directory holding the MosaikBuild and MosaikAligner
	// binaries.
	MosaikPath string
	// OutputPath is where the JSON report is written.
	OutputPath string
	// ReferencePath is the Mosaik reference archive (MosaikAligner -ia).
	ReferencePath string
	// AnnPePath and AnnSePath are the paired-end and single-end neural
	// network files (MosaikAligner -annpe, -annse).
	AnnPePath string
	AnnSePath string
	// JumpDbStub is the optional jump database stub (MosaikAligner -j).
	JumpDbStub string
	// ScratchPath is the directory for generated batch files. It is created
	// if it does not exist.
	ScratchPath string
	// SeqTech is the sequencing technology (MosaikBuild -st).
	SeqTech string

	// KeepGeneratedFiles retains the per-batch files in ScratchPath.
	KeepGeneratedFiles bool
	// SingleEnd samples read lengths from FastqPath1 only, without running
	// the aligner.
	SingleEnd bool
	Verbose   bool

	// BatchSize is the number of read pairs sampled per batch.
	BatchSize int
	// DeltaFragmentLength and DeltaReadLength are the convergence
	// thresholds: the fractional change in the running median below which
	// another batch is not worth running.
	DeltaFragmentLength float64
	DeltaReadLength     float64

	// ActIntercept and ActSlope derive the suggested MosaikAligner -act
	// from the median read length.
	ActIntercept float64
	ActSlope     float64
	// BwMultiplier derives the suggested MosaikAligner -bw from the median
	// read length. If OddBandwidth is set, an even result is rounded down
	// to the nearest odd value.
	BwMultiplier float64
	OddBandwidth bool

	// HashSize, Mhp, Mmp and NumProcessors are passed to MosaikAligner as
	// -hs, -mhp, -mmp and -p.
	HashSize      int
	Mhp           int
	Mmp           float64
	NumProcessors int

	// BatchTSVPath, if set, receives a per-batch TSV summary.
	BatchTSVPath string
	// RioOutputPath, if set, receives the raw per-batch samples as a
	// recordio file.
	RioOutputPath string
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	BatchSize:           1000, // -n
	DeltaFragmentLength: 0.01, // -delta-fl
	DeltaReadLength:     0.05, // -delta-rl
	ActIntercept:        13,   // -act-intercept
	ActSlope:            0.2,  // -act-slope
	BwMultiplier:        2.5,  // -bwm
	OddBandwidth:        true, // -bw-odd
	HashSize:            15,   // -hs
	Mhp:                 200,  // -mhp
	Mmp:                 0.15, // -mmp
	NumProcessors:       1,    // -p
}

// SeqTechs lists the sequencing technologies accepted by MosaikBuild.
var SeqTechs = []string{"454", "helicos", "illumina", "illumina_long", "sanger", "solid"}

// ConfigError lists every missing and invalid setting found by Validate.
type ConfigError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	if len(e.Missing) > 0 {
		b.WriteString("\nthe following parameters are missing:")
		for _, m := range e.Missing {
			b.WriteString("\n\t")
			b.WriteString(m)
		}
	}
	if len(e.Invalid) > 0 {
		b.WriteString("\nthe following parameters are invalid:")
		for _, m := range e.Invalid {
			b.WriteString("\n\t")
			b.WriteString(m)
		}
	}
	return b.String()
}

func (e *ConfigError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

// Validate checks o and returns a normalized copy of it. Directory paths
// get a trailing separator. All violations are reported together in a
// *ConfigError; o itself is never modified.
func (o Opts) Validate() (Opts, error) {
	cerr := &ConfigError{}
	missing := func(value, flag string) {
		if value == "" {
			cerr.Missing = append(cerr.Missing, flag)
		}
	}
	missing(o.FastqPath1, "-fq1 (FASTQ filename)")
	missing(o.OutputPath, "-out (output filename)")
	missing(o.SeqTech, "-st (sequencing technology)")
	if !o.SingleEnd {
		missing(o.AnnPePath, "-annpe (paired-end neural network filename)")
		missing(o.AnnSePath, "-annse (single-end neural network filename)")
		missing(o.FastqPath2, "-fq2 (FASTQ filename)")
		missing(o.MosaikPath, "-mosaik (path/to/Mosaik/bin)")
		missing(o.ReferencePath, "-ref (Mosaik reference archive)")
		missing(o.ScratchPath, "-tmp (scratch directory for generated files)")
		o.MosaikPath = withSeparator(o.MosaikPath)
		o.ScratchPath = withSeparator(o.ScratchPath)
	}

	invalid := func(bad bool, msg string) {
		if bad {
			cerr.Invalid = append(cerr.Invalid, msg)
		}
	}
	invalid(o.ActSlope <= 0, "-act-slope must be a positive, non-zero value")
	invalid(o.BatchSize <= 0, "-n must be a positive, non-zero value")
	invalid(o.BwMultiplier <= 0, "-bwm must be a positive, non-zero value")
	invalid(o.HashSize < 4 || o.HashSize > 32, "-hs must be between [4-32]")
	invalid(o.DeltaFragmentLength <= 0, "-delta-fl must be a positive, non-zero value")
	invalid(o.DeltaReadLength <= 0, "-delta-rl must be a positive, non-zero value")
	invalid(o.Mhp <= 0, "-mhp must be a positive, non-zero value")
	invalid(o.Mmp < 0 || o.Mmp > 1, "-mmp must be in the range [0.0 - 1.0]")
	invalid(o.NumProcessors <= 0, "-p must be a positive, non-zero value")
	if o.SeqTech != "" {
		invalid(!validSeqTech(o.SeqTech), fmt.Sprintf("-st must be one of %s, got %q", strings.Join(SeqTechs, ", "), o.SeqTech))
	}
	if !cerr.empty() {
		return o, cerr
	}
	return o, nil
}

func validSeqTech(st string) bool {
	for _, s := range SeqTechs {
		if s == st {
			return true
		}
	}
	return false
}

func withSeparator(dir string) string {
	if dir == "" || strings.HasSuffix(dir, string(os.PathSeparator)) {
		return dir
	}
	return dir + string(os.PathSeparator)
}
