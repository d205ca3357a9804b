package premo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOpts() Opts {
	o := DefaultOpts
	o.FastqPath1 = "r1.fq"
	o.FastqPath2 = "r2.fq"
	o.MosaikPath = "/opt/mosaik/bin"
	o.OutputPath = "out.json"
	o.ReferencePath = "ref.dat"
	o.AnnPePath = "pe.ann"
	o.AnnSePath = "se.ann"
	o.ScratchPath = "/tmp/premo"
	o.SeqTech = "illumina"
	return o
}

func TestValidate(t *testing.T) {
	in := validOpts()
	out, err := in.Validate()
	require.NoError(t, err)
	assert.Equal(t, "/opt/mosaik/bin/", out.MosaikPath)
	assert.Equal(t, "/tmp/premo/", out.ScratchPath)
	// The receiver is never modified.
	assert.Equal(t, "/opt/mosaik/bin", in.MosaikPath)
	assert.Equal(t, "/tmp/premo", in.ScratchPath)

	again, err := out.Validate()
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestValidateMissing(t *testing.T) {
	o := DefaultOpts
	_, err := o.Validate()
	require.Error(t, err)
	cerr, ok := err.(*ConfigError)
	require.True(t, ok)
	assert.Equal(t, []string{
		"-fq1 (FASTQ filename)",
		"-out (output filename)",
		"-st (sequencing technology)",
		"-annpe (paired-end neural network filename)",
		"-annse (single-end neural network filename)",
		"-fq2 (FASTQ filename)",
		"-mosaik (path/to/Mosaik/bin)",
		"-ref (Mosaik reference archive)",
		"-tmp (scratch directory for generated files)",
	}, cerr.Missing)
	assert.Empty(t, cerr.Invalid)
	assert.Contains(t, err.Error(), "the following parameters are missing:")
	assert.NotContains(t, err.Error(), "invalid")
}

func TestValidateSingleEnd(t *testing.T) {
	o := DefaultOpts
	o.SingleEnd = true
	o.FastqPath1 = "r1.fq"
	o.OutputPath = "out.json"
	o.SeqTech = "454"
	out, err := o.Validate()
	require.NoError(t, err)
	assert.Equal(t, "", out.ScratchPath)
}

func TestValidateInvalid(t *testing.T) {
	for _, test := range []struct {
		name   string
		modify func(*Opts)
		want   string
	}{
		{"act-slope", func(o *Opts) { o.ActSlope = 0 }, "-act-slope must be a positive, non-zero value"},
		{"n", func(o *Opts) { o.BatchSize = 0 }, "-n must be a positive, non-zero value"},
		{"bwm", func(o *Opts) { o.BwMultiplier = -1 }, "-bwm must be a positive, non-zero value"},
		{"hs low", func(o *Opts) { o.HashSize = 3 }, "-hs must be between [4-32]"},
		{"hs high", func(o *Opts) { o.HashSize = 33 }, "-hs must be between [4-32]"},
		{"delta-fl", func(o *Opts) { o.DeltaFragmentLength = 0 }, "-delta-fl must be a positive, non-zero value"},
		{"delta-rl", func(o *Opts) { o.DeltaReadLength = -0.1 }, "-delta-rl must be a positive, non-zero value"},
		{"mhp", func(o *Opts) { o.Mhp = 0 }, "-mhp must be a positive, non-zero value"},
		{"mmp", func(o *Opts) { o.Mmp = 1.5 }, "-mmp must be in the range [0.0 - 1.0]"},
		{"p", func(o *Opts) { o.NumProcessors = 0 }, "-p must be a positive, non-zero value"},
		{"st", func(o *Opts) { o.SeqTech = "nanopore" }, `-st must be one of 454, helicos, illumina, illumina_long, sanger, solid, got "nanopore"`},
	} {
		t.Run(test.name, func(t *testing.T) {
			o := validOpts()
			test.modify(&o)
			_, err := o.Validate()
			require.Error(t, err)
			cerr := err.(*ConfigError)
			assert.Empty(t, cerr.Missing)
			assert.Equal(t, []string{test.want}, cerr.Invalid)
		})
	}
}

func TestValidateCollectsEverything(t *testing.T) {
	o := validOpts()
	o.FastqPath2 = ""
	o.HashSize = 40
	o.Mmp = -1
	_, err := o.Validate()
	cerr := err.(*ConfigError)
	assert.Equal(t, []string{"-fq2 (FASTQ filename)"}, cerr.Missing)
	assert.Len(t, cerr.Invalid, 2)
	msg := err.Error()
	assert.Contains(t, msg, "the following parameters are missing:\n\t-fq2 (FASTQ filename)")
	assert.Contains(t, msg, "the following parameters are invalid:\n\t-hs must be between [4-32]\n\t-mmp")
}
