package fastq

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// gzipMagic is the two-byte header of every gzip member (RFC 1952).
var gzipMagic = [2]byte{0x1f, 0x8b}

const readBufferSize = 1 << 20

// File is a FASTQ file opened for reading. Gzip-compressed files are
// detected by their magic number, not by their name, and decompressed
// transparently. File is not threadsafe.
type File struct {
	name       string
	in         file.File
	gz         *gzip.Reader
	compressed bool
	sc         *Scanner
}

// Open opens the FASTQ file at path. Fields selects the fields that Scan
// fills in.
func Open(ctx context.Context, path string, fields Field) (*File, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "could not open input FASTQ file:", path)
	}
	f := &File{name: path, in: in}
	br := bufio.NewReaderSize(in.Reader(ctx), readBufferSize)
	var r io.Reader = br
	// A file shorter than two bytes is not gzip, so the Peek error is moot.
	if magic, _ := br.Peek(len(gzipMagic)); len(magic) == len(gzipMagic) && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		if f.gz, err = gzip.NewReader(br); err != nil {
			_ = in.Close(ctx)
			return nil, errors.E(err, "could not open input FASTQ file:", path)
		}
		f.compressed = true
		r = f.gz
	}
	f.sc = NewScanner(r, fields)
	return f, nil
}

// Name returns the path that the file was opened with.
func (f *File) Name() string { return f.name }

// IsOpen reports whether the file is open, i.e. Close has not been called.
func (f *File) IsOpen() bool { return f.in != nil }

// Compressed reports whether the file was detected as gzip-compressed.
func (f *File) Compressed() bool { return f.compressed }

// Scan reads the next record into read. See Scanner.Scan.
func (f *File) Scan(read *Read) bool {
	if f.sc == nil {
		return false
	}
	return f.sc.Scan(read)
}

// Err returns the error that stopped scanning, or nil if the scanner
// reached the end of the file cleanly. Errors are annotated with the file
// name.
func (f *File) Err() error {
	if f.sc == nil {
		return nil
	}
	if err := f.sc.Err(); err != nil {
		return errors.E(err, "reading", f.name)
	}
	return nil
}

// Close releases the decompressor and the underlying file. It is safe to
// call Close more than once.
func (f *File) Close(ctx context.Context) error {
	if f.in == nil {
		return nil
	}
	var once errors.Once
	if f.gz != nil {
		once.Set(f.gz.Close())
		f.gz = nil
	}
	once.Set(f.in.Close(ctx))
	f.in = nil
	f.sc = nil
	return once.Err()
}

// FileWriter writes FASTQ records to a file. Paths ending in ".gz" are
// gzip-compressed.
type FileWriter struct {
	name string
	out  file.File
	gz   *gzip.Writer
	bw   *bufio.Writer
	w    *Writer
}

// Create creates (or truncates) the FASTQ file at path.
func Create(ctx context.Context, path string) (*FileWriter, error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "could not create FASTQ file:", path)
	}
	fw := &FileWriter{name: path, out: out}
	var w io.Writer = out.Writer(ctx)
	if strings.HasSuffix(path, ".gz") {
		fw.gz = gzip.NewWriter(w)
		w = fw.gz
	}
	fw.bw = bufio.NewWriterSize(w, readBufferSize)
	fw.w = NewWriter(fw.bw)
	return fw, nil
}

// Name returns the path of the file being written.
func (w *FileWriter) Name() string { return w.name }

// IsOpen reports whether Close has not yet been called.
func (w *FileWriter) IsOpen() bool { return w.out != nil }

// Write writes r in the canonical 4-line layout.
func (w *FileWriter) Write(r *Read) error {
	if w.out == nil {
		return errors.E(errors.Precondition, "write to closed FASTQ file:", w.name)
	}
	if err := w.w.Write(r); err != nil {
		return errors.E(err, "could not write to FASTQ file:", w.name)
	}
	return nil
}

// Close flushes buffered data and closes the file. It is safe to call
// Close more than once.
func (w *FileWriter) Close(ctx context.Context) error {
	if w.out == nil {
		return nil
	}
	var once errors.Once
	once.Set(w.bw.Flush())
	if w.gz != nil {
		once.Set(w.gz.Close())
	}
	once.Set(w.out.Close(ctx))
	w.out = nil
	if err := once.Err(); err != nil {
		return errors.E(err, "could not close FASTQ file:", w.name)
	}
	return nil
}
