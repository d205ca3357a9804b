package premo

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBandwidth(t *testing.T) {
	for _, test := range []struct {
		multiplier float64
		median     float64
		odd        bool
		want       int
	}{
		{2.5, 100, true, 249},
		{2.5, 101, true, 253},
		{2.5, 100.5, true, 251},
		{2, 100, false, 200},
		{2.5, 0, true, 1},
	} {
		opts := DefaultOpts
		opts.BwMultiplier = test.multiplier
		opts.OddBandwidth = test.odd
		expect.EQ(t, bandwidth(opts, test.median), test.want, "bwm=%v median=%v", test.multiplier, test.median)
	}
}

func testSummary() *Summary {
	b0 := Result{ReadLengths: []int{100, 100, 100, 100}, FragmentLengths: []int{300, 300}}
	b1 := Result{ReadLengths: []int{100, 101}, FragmentLengths: []int{310}}
	s := &Summary{Batches: []Result{b0, b1}, Reason: Converged}
	s.Overall.Merge(b0)
	s.Overall.Merge(b1)
	return s
}

func TestNewReport(t *testing.T) {
	opts, err := validOpts().Validate()
	require.NoError(t, err)
	r := NewReport(opts, testSummary())

	require.NotNil(t, r.Overall.FragmentLength)
	assert.Equal(t, 3, r.Overall.FragmentLength.Count)
	assert.Equal(t, 300.0, *r.Overall.FragmentLength.Median)
	assert.Equal(t, 6, r.Overall.ReadLength.Count)
	assert.Equal(t, 100.0, *r.Overall.ReadLength.Median)
	require.Len(t, r.Batches, 2)
	assert.Equal(t, 100.5, *r.Batches[1].ReadLength.Median)

	assert.InDelta(t, 0.2*100+13, r.Parameters.Aligner.Act, 1e-9)
	assert.Equal(t, 249, r.Parameters.Aligner.Bw)
	assert.Equal(t, 15, r.Parameters.Aligner.Hs)
	assert.Equal(t, 200, r.Parameters.Aligner.Mhp)
	assert.Equal(t, 0.15, r.Parameters.Aligner.Mmp)
	require.NotNil(t, r.Parameters.Aligner.Ls)
	assert.Equal(t, 300.0, *r.Parameters.Aligner.Ls)
	assert.Equal(t, "illumina", r.Parameters.Build.St)
	require.NotNil(t, r.Parameters.Build.Mfl)
	assert.Equal(t, 300, *r.Parameters.Build.Mfl)
	assert.Equal(t, "illumina", r.Settings.SeqTech)
	assert.Equal(t, 1000, r.Settings.BatchSize)
}

func TestNewReportSingleEnd(t *testing.T) {
	opts := validOpts()
	opts.SingleEnd = true
	r := NewReport(opts, &Summary{
		Overall: Result{ReadLengths: []int{36, 36, 37}},
		Batches: []Result{{ReadLengths: []int{36, 36, 37}}},
	})
	assert.Nil(t, r.Overall.FragmentLength)
	assert.Nil(t, r.Batches[0].FragmentLength)
	assert.Nil(t, r.Parameters.Aligner.Ls)
	assert.Nil(t, r.Parameters.Build.Mfl)
	// ceil(2.5*36) = 90, rounded down to 89.
	assert.Equal(t, 89, r.Parameters.Aligner.Bw)
}

func TestEmptySampleSetSummary(t *testing.T) {
	s := newLengthSummary(nil)
	assert.Equal(t, 0, s.Count)
	assert.Nil(t, s.Median)
	assert.Nil(t, s.Q1)
	assert.Nil(t, s.Q3)
}

func TestWriteReport(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := filepath.Join(dir, "premo.json")
	opts, err := validOpts().Validate()
	require.NoError(t, err)
	report := NewReport(opts, testSummary())
	require.NoError(t, WriteReport(ctx, path, report))

	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	for _, key := range []string{"overall result", "batch results", "settings", "parameters"} {
		assert.Contains(t, doc, key)
	}
	params := doc["parameters"].(map[string]interface{})
	aligner := params["MosaikAligner"].(map[string]interface{})
	assert.Equal(t, 249.0, aligner["-bw"])
	assert.Equal(t, 300.0, aligner["-ls"])
	build := params["MosaikBuild"].(map[string]interface{})
	assert.Equal(t, 300.0, build["-mfl"])
	overall := doc["overall result"].(map[string]interface{})
	fl := overall["fragment length"].(map[string]interface{})
	assert.Equal(t, 3.0, fl["count"])
	assert.Contains(t, fl, "Q1")
	assert.Equal(t, 15.0, doc["settings"].(map[string]interface{})["hash size"])

	got, err := ReadReport(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, report, got)
}
