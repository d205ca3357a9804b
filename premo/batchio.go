package premo

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/premo/stats"
)

func init() {
	recordiozstd.Init()
}

const (
	batchRioVersion = 1
	optsHeader      = "premo.opts"
)

// WriteBatchTSV writes one line per batch of summary to path.
func WriteBatchTSV(ctx context.Context, path string, summary *Summary) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("#batch\tread_count\tread_median\tread_q1\tread_q3\tfragment_count\tfragment_median\tfragment_q1\tfragment_q3")
	if err = w.EndLine(); err != nil {
		return
	}
	for i, b := range summary.Batches {
		w.WriteUint32(uint32(i))
		writeLengthColumns(w, b.ReadLengths)
		writeLengthColumns(w, b.FragmentLengths)
		if err = w.EndLine(); err != nil {
			return
		}
	}
	return w.Flush()
}

// writeLengthColumns writes the count and quartiles of samples, with "."
// for the quartiles of an empty set.
func writeLengthColumns(w *tsv.Writer, samples []int) {
	w.WriteUint32(uint32(len(samples)))
	if len(samples) == 0 {
		w.WriteByte('.')
		w.WriteByte('.')
		w.WriteByte('.')
		return
	}
	q := stats.Summarize(samples).Quartiles
	for _, v := range []float64{q.Q2, q.Q1, q.Q3} {
		w.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
}

// WriteBatchRecordio writes the per-batch samples of summary to path, one
// record per batch, so that a run can be re-analyzed without re-running
// the aligner. Opts is stored in the header.
func WriteBatchRecordio(ctx context.Context, path string, opts Opts, summary *Summary) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	packedOpts, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Marshal:      marshalResult,
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(optsHeader, string(packedOpts))
	w.AddHeader(recordio.KeyTrailer, true)
	for i := range summary.Batches {
		w.Append(&summary.Batches[i])
	}
	w.SetTrailer(batchRioTrailer(len(summary.Batches), summary.Reason))
	return w.Finish()
}

// ReadBatchRecordio reads a file written by WriteBatchRecordio. The
// overall result is rebuilt by folding the batches.
func ReadBatchRecordio(ctx context.Context, path string) (summary *Summary, opts Opts, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, opts, errors.E(err, "could not open batch file:", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	sc := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{
		Unmarshal: unmarshalResult,
	})
	summary = &Summary{}
	nBatches, reason, err := parseBatchRioTrailer(sc.Trailer())
	if err != nil {
		return nil, opts, errors.E(errors.Invalid, err, "parsing trailer of", path)
	}
	summary.Reason = reason
	for _, kv := range sc.Header() {
		if kv.Key == optsHeader {
			if err := json.Unmarshal([]byte(kv.Value.(string)), &opts); err != nil {
				return nil, opts, errors.E(errors.Invalid, err, "parsing options of", path)
			}
		}
	}
	for sc.Scan() {
		r := sc.Get().(*Result)
		summary.Batches = append(summary.Batches, *r)
		summary.Overall.Merge(*r)
	}
	if err := sc.Err(); err != nil {
		return nil, opts, errors.E(err, "reading", path)
	}
	if len(summary.Batches) != nBatches {
		return nil, opts, errors.E(errors.Integrity, fmt.Sprintf("%s: trailer lists %d batches, found %d", path, nBatches, len(summary.Batches)))
	}
	return summary, opts, nil
}

func batchRioTrailer(nBatches int, reason Reason) []byte {
	var buf bytes.Buffer
	for _, v := range []int64{batchRioVersion, int64(nBatches), int64(reason)} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
	return buf.Bytes()
}

func parseBatchRioTrailer(trailer []byte) (nBatches int, reason Reason, err error) {
	var v [3]int64
	if err = binary.Read(bytes.NewReader(trailer), binary.LittleEndian, &v); err != nil {
		return
	}
	if v[0] != batchRioVersion {
		err = fmt.Errorf("unrecognized trailer version: got %d, want %d", v[0], batchRioVersion)
		return
	}
	return int(v[1]), Reason(v[2]), nil
}

// marshalResult encodes a *Result as the varint-prefixed read lengths
// followed by the varint-prefixed fragment lengths.
func marshalResult(scratch []byte, v interface{}) ([]byte, error) {
	r := v.(*Result)
	buf := scratch[:0]
	var tmp [binary.MaxVarintLen64]byte
	for _, samples := range [][]int{r.ReadLengths, r.FragmentLengths} {
		n := binary.PutUvarint(tmp[:], uint64(len(samples)))
		buf = append(buf, tmp[:n]...)
		for _, s := range samples {
			n = binary.PutVarint(tmp[:], int64(s))
			buf = append(buf, tmp[:n]...)
		}
	}
	return buf, nil
}

func unmarshalResult(in []byte) (interface{}, error) {
	r := &Result{}
	for _, dst := range []*[]int{&r.ReadLengths, &r.FragmentLengths} {
		count, n := binary.Uvarint(in)
		if n <= 0 || count > uint64(len(in)-n) {
			return nil, errors.E(errors.Integrity, "corrupt batch record")
		}
		in = in[n:]
		if count > 0 {
			*dst = make([]int, count)
		}
		for i := range *dst {
			v, n := binary.Varint(in)
			if n <= 0 {
				return nil, errors.E(errors.Integrity, "corrupt batch record")
			}
			(*dst)[i] = int(v)
			in = in[n:]
		}
	}
	return r, nil
}
