// Package premotest provides a stand-in for the Mosaik binaries, for use
// in tests.
package premotest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/premo/encoding/fastq"
	"github.com/grailbio/premo/premo"
)

// Chr1 is the reference that AlignFuncs map reads to. It never joins a
// header: a sam.Reference belongs to the first header it is added to, so
// each BAM written by Aligner gets its own copy and records mapped to any
// reference are moved onto that copy.
var Chr1, _ = sam.NewReference(chr1Name, "", "", chr1Length, nil, nil)

const (
	chr1Name   = "chr1"
	chr1Length = 1000000
)

// AlignFunc turns a read pair into the two BAM records the aligner
// reports for it.
type AlignFunc func(r1, r2 fastq.Read) (mate1, mate2 *sam.Record)

// Aligner is a premo.Runner that imitates Mosaik. MosaikBuild remembers
// the mate files behind an archive; MosaikAligner "aligns" every pair of
// the archive with Align and writes the records to <stub>.bam. Both write
// the companion files that the real binaries leave behind.
type Aligner struct {
	// Align defaults to MapPair(FragmentLength).
	Align AlignFunc
	// FailOn makes commands whose binary has this name fail.
	FailOn string
	// Missing makes LookPath fail for this binary name.
	Missing string

	mu       sync.Mutex
	commands []premo.Command
	archives map[string][2]string
}

// FragmentLength is the fragment length of the pairs mapped by the
// default AlignFunc.
const FragmentLength = 300

// Commands returns the commands run so far.
func (a *Aligner) Commands() []premo.Command {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]premo.Command(nil), a.commands...)
}

// LookPath implements premo.Runner. Every binary except Missing is found
// in dir.
func (a *Aligner) LookPath(dir, name string) (string, error) {
	if name == a.Missing {
		return "", fmt.Errorf("%s not found in %s", name, dir)
	}
	return filepath.Join(dir, name), nil
}

// Run implements premo.Runner.
func (a *Aligner) Run(ctx context.Context, cmd premo.Command) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commands = append(a.commands, cmd)
	name := filepath.Base(cmd.Path)
	if name == a.FailOn {
		return &premo.ExternalProcessError{Command: cmd, Err: fmt.Errorf("exit status 1")}
	}
	if cmd.LogPath != "" {
		if err := appendLine(cmd.LogPath, cmd.String()); err != nil {
			return err
		}
	}
	switch name {
	case "MosaikBuild":
		archive := arg(cmd.Args, "-out")
		if a.archives == nil {
			a.archives = map[string][2]string{}
		}
		a.archives[archive] = [2]string{arg(cmd.Args, "-q"), arg(cmd.Args, "-q2")}
		return touch(ctx, archive)
	case "MosaikAligner":
		mates, ok := a.archives[arg(cmd.Args, "-in")]
		if !ok {
			return &premo.ExternalProcessError{Command: cmd, Err: fmt.Errorf("unknown read archive")}
		}
		stub := arg(cmd.Args, "-out")
		for _, suffix := range []string{".multiple.bam", ".special.bam", ".stat"} {
			if err := touch(ctx, stub+suffix); err != nil {
				return err
			}
		}
		align := a.Align
		if align == nil {
			align = MapPair(FragmentLength)
		}
		return writeBAM(ctx, stub+".bam", mates, align)
	}
	return &premo.ExternalProcessError{Command: cmd, Err: fmt.Errorf("unknown binary %s", name)}
}

// arg returns the value that follows flag in args.
func arg(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func touch(ctx context.Context, path string) error {
	f, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	return f.Close(ctx)
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f, line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeBAM(ctx context.Context, path string, mates [2]string, align AlignFunc) (err error) {
	var in [2]*fastq.File
	for i := range mates {
		if in[i], err = fastq.Open(ctx, mates[i], fastq.All); err != nil {
			return err
		}
		defer in[i].Close(ctx)
	}
	ref, err := sam.NewReference(chr1Name, "", "", chr1Length, nil, nil)
	if err != nil {
		return err
	}
	header, err := sam.NewHeader(nil, []*sam.Reference{ref})
	if err != nil {
		return err
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w, err := bam.NewWriter(out.Writer(ctx), header, 1)
	if err != nil {
		return err
	}
	pairs := fastq.NewFilePairScanner(in[0], in[1])
	var r1, r2 fastq.Read
	for pairs.Scan(&r1, &r2) {
		mate1, mate2 := align(r1, r2)
		for _, rec := range []*sam.Record{mate1, mate2} {
			if rec.Ref != nil {
				rec.Ref = ref
			}
			if rec.MateRef != nil {
				rec.MateRef = ref
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
	}
	if err := pairs.Err(); err != nil {
		return err
	}
	return w.Close()
}

// MapPair returns an AlignFunc that maps both mates to Chr1, with insert
// sizes chosen so that the fragment length is fragmentLength.
func MapPair(fragmentLength int) AlignFunc {
	return func(r1, r2 fastq.Read) (*sam.Record, *sam.Record) {
		insert := fragmentLength - len(r1.Seq) - len(r2.Seq)
		return Record(r1, Chr1, insert, sam.Paired|sam.Read1), Record(r2, Chr1, -insert, sam.Paired|sam.Read2|sam.Reverse)
	}
}

// Unmapped is an AlignFunc that reports both mates as unmapped.
func Unmapped(r1, r2 fastq.Read) (*sam.Record, *sam.Record) {
	return Record(r1, nil, 0, sam.Paired|sam.Read1|sam.Unmapped|sam.MateUnmapped),
		Record(r2, nil, 0, sam.Paired|sam.Read2|sam.Unmapped|sam.MateUnmapped)
}

// Record converts read into a BAM record. Mapped records get a full-length
// match at position 100.
func Record(read fastq.Read, ref *sam.Reference, tempLen int, flags sam.Flags) *sam.Record {
	qual := make([]byte, len(read.Qual))
	for i := range read.Qual {
		qual[i] = read.Qual[i] - 33
	}
	r := &sam.Record{
		Name:    strings.TrimPrefix(strings.Fields(read.ID)[0], "@"),
		Ref:     ref,
		Pos:     -1,
		MatePos: -1,
		TempLen: tempLen,
		Flags:   flags,
		Seq:     sam.NewSeq([]byte(read.Seq)),
		Qual:    qual,
	}
	if ref != nil {
		r.Pos = 100
		r.MateRef = ref
		r.MatePos = 100
		r.Cigar = []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, len(read.Seq))}
	}
	return r
}
