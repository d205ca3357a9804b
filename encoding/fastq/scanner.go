package fastq

import (
	"bufio"
	"errors"
	"io"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
	// ErrLengthMismatch is returned when a read's quality string does not
	// have the same length as its sequence.
	ErrLengthMismatch = errors.New("FASTQ quality length does not match sequence length")
	// ErrDiscordant is returned when two underlying FASTQ files are discordant.
	ErrDiscordant = errors.New("discordant FASTQ pairs")
)

// A Read is a FASTQ read, comprising an ID, sequence, line 3
// ("unknown"), and a quality string.
type Read struct {
	ID, Seq, Unk, Qual string
}

var errEOF = errors.New("eof")

// Scanner provides a convenient interface for reading FASTQ read
// data. The Scan method returns the next read, returning a boolean
// indicating whether the read succeeded. Scanners are not
// threadsafe.
//
// Scanner accepts multi-line records: sequence lines are joined until a
// line starting with "+", and quality lines are joined until the quality
// string is at least as long as the sequence. It requires ID lines to
// begin with "@", line 3 to begin with "+", and seq/qual to be of equal
// length.
type Scanner struct {
	b      *bufio.Scanner
	peeked bool
	err    error
	fields Field
	seq    []byte
	qual   []byte
}

// Field enumerates FASTQ fields. It is used to specify fields to read in
// NewScanner.
type Field uint

const (
	// ID causes the Read.ID field to be filled
	ID Field = 1 << iota
	// Seq causes the Read.Seq field to be filled
	Seq
	// Unk causes the Read.Unk field to be filled
	Unk
	// Qual causes the Read.Qual field to be filled
	Qual
	// All equals ID|Seq|Unk|Qual.
	All = ID | Seq | Unk | Qual
)

// maxLineLength bounds the length of a single FASTQ line. Long-read
// technologies routinely exceed bufio's 64KiB default.
const maxLineLength = 64 << 20

// NewScanner constructs a new Scanner that reads raw FASTQ data from the
// provided reader. Fields is a bitset of the fields to read. A typical value
// would be All or ID|Seq|Qual.
func NewScanner(r io.Reader, fields Field) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(nil, maxLineLength)
	return &Scanner{b: b, fields: fields}
}

// peek returns the next line without consuming it. The returned slice is
// valid until the next call to advance.
func (f *Scanner) peek() ([]byte, bool) {
	if !f.peeked {
		if !f.b.Scan() {
			return nil, false
		}
		f.peeked = true
	}
	return f.b.Bytes(), true
}

// advance consumes the line returned by the last peek.
func (f *Scanner) advance() {
	f.peeked = false
}

// fail records err, unless the underlying reader failed, in which case
// that error takes precedence.
func (f *Scanner) fail(err error) bool {
	if f.err = f.b.Err(); f.err == nil {
		f.err = err
	}
	return false
}

// Scan the next read into the provided read. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it
// never returns true again. Upon completion, the user should check
// the Err method to determine whether scanning stopped because of an
// error or because the end of the stream was reached.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	id, ok := f.peek()
	if !ok {
		// End of input between records.
		return f.fail(errEOF)
	}
	if len(id) == 0 || id[0] != '@' {
		f.err = ErrInvalid
		return false
	}
	if f.fields&ID != 0 {
		read.ID = string(id)
	}
	f.advance()

	f.seq = f.seq[:0]
	for {
		line, ok := f.peek()
		if !ok || (len(line) > 0 && line[0] == '+') {
			break
		}
		f.seq = append(f.seq, line...)
		f.advance()
	}

	unk, ok := f.peek()
	if !ok {
		return f.fail(ErrShort)
	}
	if f.fields&Unk != 0 {
		read.Unk = string(unk)
	}
	f.advance()

	// A quality line may legally start with '@', so the record ends when
	// enough quality characters have been seen, not at the next '@'.
	f.qual = f.qual[:0]
	for n := 0; n == 0 || len(f.qual) < len(f.seq); n++ {
		line, ok := f.peek()
		if !ok {
			// An empty sequence needs no quality line.
			if n == 0 && len(f.seq) > 0 {
				return f.fail(ErrShort)
			}
			break
		}
		f.qual = append(f.qual, line...)
		f.advance()
	}
	if len(f.qual) != len(f.seq) {
		f.err = ErrLengthMismatch
		return false
	}
	if f.fields&Seq != 0 {
		read.Seq = string(f.seq)
	}
	if f.fields&Qual != 0 {
		read.Qual = string(f.qual)
	}
	return true
}

// Err returns the scanning error, if any.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}

// PairScanner composes a pair of scanners to scan a pair of FASTQ
// streams.
type PairScanner struct {
	r1, r2 *Scanner
	err    error
}

// NewPairScanner creates a new FASTQ pair scanner from the provided
// R1 and R2 readers.
func NewPairScanner(r1, r2 io.Reader, fields Field) *PairScanner {
	return &PairScanner{
		r1: NewScanner(r1, fields),
		r2: NewScanner(r2, fields),
	}
}

// NewFilePairScanner creates a pair scanner that advances the two
// given open files in lock step.
func NewFilePairScanner(f1, f2 *File) *PairScanner {
	return &PairScanner{r1: f1.sc, r2: f2.sc}
}

// Scan scans the next read pair into r1, r2. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it
// never returns true again. Upon completion, the user should check
// the Err method to determine whether scanning stopped because of an
// error or because the end of the stream was reached.
func (p *PairScanner) Scan(r1, r2 *Read) bool {
	if p.err != nil {
		return false
	}
	ok1 := p.r1.Scan(r1)
	ok2 := p.r2.Scan(r2)
	if ok1 != ok2 {
		p.err = ErrDiscordant
	}
	return ok1 && ok2
}

// Err returns the scanning error, if any. It should be checked
// after Scan returns false.
func (p *PairScanner) Err() error {
	if err := p.r1.Err(); err != nil {
		return err
	}
	if err := p.r2.Err(); err != nil {
		return err
	}
	return p.err
}
