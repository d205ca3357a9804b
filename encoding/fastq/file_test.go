package fastq_test

import (
	"context"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/premo/encoding/fastq"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

var testReads = []fastq.Read{
	{ID: "@NB500956:89:HW2FHBGX2:1:11101:25648:1069 1:N:0:ATCACG", Seq: "ATACAGGCCTGANCCACTG", Unk: "+", Qual: "AAAAAEEEEEEE#EEAEEE"},
	{ID: "@NB500956:89:HW2FHBGX2:1:11101:13871:1070 1:N:0:ATCACG", Seq: "CTCAACTCTGAG", Unk: "+", Qual: "@AAAAEEEEEEE"},
	{ID: "@NB500956:89:HW2FHBGX2:1:11101:9975:1070 1:N:0:ATCACG", Seq: "G", Unk: "+", Qual: "E"},
}

func writeReads(ctx context.Context, t *testing.T, path string, reads []fastq.Read) {
	w, err := fastq.Create(ctx, path)
	assert.NoError(t, err)
	expect.True(t, w.IsOpen())
	for i := range reads {
		assert.NoError(t, w.Write(&reads[i]))
	}
	assert.NoError(t, w.Close(ctx))
	expect.False(t, w.IsOpen())
	// Close is idempotent.
	assert.NoError(t, w.Close(ctx))
}

func readAll(ctx context.Context, t *testing.T, path string) ([]fastq.Read, *fastq.File) {
	f, err := fastq.Open(ctx, path, fastq.All)
	assert.NoError(t, err)
	var (
		reads []fastq.Read
		r     fastq.Read
	)
	for f.Scan(&r) {
		reads = append(reads, r)
	}
	assert.NoError(t, f.Err())
	return reads, f
}

func TestRoundTrip(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	for _, name := range []string{"plain.fq", "compressed.fq.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(tempDir, name)
			writeReads(ctx, t, path, testReads)
			got, f := readAll(ctx, t, path)
			expect.EQ(t, got, testReads)
			expect.EQ(t, f.Name(), path)
			expect.EQ(t, f.Compressed(), filepath.Ext(name) == ".gz")
			expect.True(t, f.IsOpen())
			assert.NoError(t, f.Close(ctx))
			expect.False(t, f.IsOpen())
			assert.NoError(t, f.Close(ctx))
		})
	}
}

func TestGzipDetectedByMagic(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	gzPath := filepath.Join(tempDir, "reads.fq.gz")
	writeReads(ctx, t, gzPath, testReads)
	data, err := ioutil.ReadFile(gzPath)
	assert.NoError(t, err)
	// The same bytes under a name without the .gz suffix.
	disguised := filepath.Join(tempDir, "reads.fastq")
	assert.NoError(t, ioutil.WriteFile(disguised, data, 0600))
	got, f := readAll(ctx, t, disguised)
	defer f.Close(ctx)
	expect.True(t, f.Compressed())
	expect.EQ(t, got, testReads)
}

func TestOpenMissing(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	_, err := fastq.Open(context.Background(), filepath.Join(tempDir, "missing.fq"), fastq.All)
	expect.HasSubstr(t, err.Error(), "missing.fq")
}

func TestFileErrNamesFile(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := filepath.Join(tempDir, "bad.fq")
	assert.NoError(t, ioutil.WriteFile(path, []byte("@r\nACGT\n+\nII\n"), 0600))
	f, err := fastq.Open(ctx, path, fastq.All)
	assert.NoError(t, err)
	defer f.Close(ctx)
	var r fastq.Read
	expect.False(t, f.Scan(&r))
	expect.HasSubstr(t, f.Err().Error(), path)
	expect.HasSubstr(t, f.Err().Error(), fastq.ErrLengthMismatch.Error())
}

func TestEmptyFile(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	for i, data := range []string{"", "@"} {
		path := filepath.Join(tempDir, fmt.Sprintf("%d.fq", i))
		assert.NoError(t, ioutil.WriteFile(path, []byte(data), 0600))
		f, err := fastq.Open(ctx, path, fastq.All)
		assert.NoError(t, err)
		var r fastq.Read
		expect.False(t, f.Scan(&r))
		assert.NoError(t, f.Close(ctx))
	}
}
