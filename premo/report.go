package premo

import (
	"context"
	"encoding/json"
	"math"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/premo/stats"
)

// LengthSummary summarizes one sample set. The statistics are omitted when
// the set is empty.
type LengthSummary struct {
	Count  int      `json:"count"`
	Median *float64 `json:"median,omitempty"`
	Q1     *float64 `json:"Q1,omitempty"`
	Q3     *float64 `json:"Q3,omitempty"`
}

func newLengthSummary(samples []int) LengthSummary {
	s := LengthSummary{Count: len(samples)}
	if len(samples) > 0 {
		q := stats.Summarize(samples).Quartiles
		s.Median, s.Q1, s.Q3 = &q.Q2, &q.Q1, &q.Q3
	}
	return s
}

// ResultReport summarizes a Result. FragmentLength is nil in single-end
// mode.
type ResultReport struct {
	FragmentLength *LengthSummary `json:"fragment length,omitempty"`
	ReadLength     LengthSummary  `json:"read length"`
}

// SettingsReport echoes the settings that shaped the run.
type SettingsReport struct {
	ActIntercept        float64 `json:"act intercept"`
	ActSlope            float64 `json:"act slope"`
	BwMultiplier        float64 `json:"bandwidth multiplier"`
	BatchSize           int     `json:"batch size"`
	DeltaFragmentLength float64 `json:"delta fragment length"`
	DeltaReadLength     float64 `json:"delta read length"`
	HashSize            int     `json:"hash size"`
	Mhp                 int     `json:"mhp"`
	Mmp                 float64 `json:"mmp"`
	SeqTech             string  `json:"seq tech"`
}

// AlignerParameters are the suggested MosaikAligner flags.
type AlignerParameters struct {
	Act float64 `json:"-act"`
	Bw  int     `json:"-bw"`
	Hs  int     `json:"-hs"`
	Mhp int     `json:"-mhp"`
	Mmp float64 `json:"-mmp"`
	// Ls is the median fragment length. It is nil in single-end mode.
	Ls *float64 `json:"-ls,omitempty"`
}

// BuildParameters are the suggested MosaikBuild flags.
type BuildParameters struct {
	St  string `json:"-st"`
	Mfl *int   `json:"-mfl,omitempty"`
}

// Parameters holds the suggested Mosaik flags.
type Parameters struct {
	Aligner AlignerParameters `json:"MosaikAligner"`
	Build   BuildParameters   `json:"MosaikBuild"`
}

// Report is the JSON document that premo writes.
type Report struct {
	Overall    ResultReport   `json:"overall result"`
	Batches    []ResultReport `json:"batch results"`
	Settings   SettingsReport `json:"settings"`
	Parameters Parameters     `json:"parameters"`
}

// NewReport builds the report of summary. Opts must have been validated.
// Summary must hold at least one read length.
func NewReport(opts Opts, summary *Summary) Report {
	r := Report{
		Overall: newResultReport(summary.Overall, opts.SingleEnd),
		Batches: make([]ResultReport, len(summary.Batches)),
		Settings: SettingsReport{
			ActIntercept:        opts.ActIntercept,
			ActSlope:            opts.ActSlope,
			BwMultiplier:        opts.BwMultiplier,
			BatchSize:           opts.BatchSize,
			DeltaFragmentLength: opts.DeltaFragmentLength,
			DeltaReadLength:     opts.DeltaReadLength,
			HashSize:            opts.HashSize,
			Mhp:                 opts.Mhp,
			Mmp:                 opts.Mmp,
			SeqTech:             opts.SeqTech,
		},
	}
	for i, b := range summary.Batches {
		r.Batches[i] = newResultReport(b, opts.SingleEnd)
	}

	medianRL := median(summary.Overall.ReadLengths)
	r.Parameters = Parameters{
		Aligner: AlignerParameters{
			Act: opts.ActSlope*medianRL + opts.ActIntercept,
			Bw:  bandwidth(opts, medianRL),
			Hs:  opts.HashSize,
			Mhp: opts.Mhp,
			Mmp: opts.Mmp,
		},
		Build: BuildParameters{St: opts.SeqTech},
	}
	if !opts.SingleEnd {
		medianFL := median(summary.Overall.FragmentLengths)
		mfl := int(medianFL)
		r.Parameters.Aligner.Ls = &medianFL
		r.Parameters.Build.Mfl = &mfl
	}
	return r
}

func newResultReport(r Result, singleEnd bool) ResultReport {
	rr := ResultReport{ReadLength: newLengthSummary(r.ReadLengths)}
	if !singleEnd {
		fl := newLengthSummary(r.FragmentLengths)
		rr.FragmentLength = &fl
	}
	return rr
}

// bandwidth derives MosaikAligner -bw from the median read length.
func bandwidth(opts Opts, medianRL float64) int {
	bw := int(math.Ceil(opts.BwMultiplier * medianRL))
	if opts.OddBandwidth && bw%2 == 0 {
		if bw == 0 {
			return 1
		}
		bw--
	}
	return bw
}

// median is stats.Median of an unsorted set; it is 0 for an empty set.
func median(samples []int) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]int(nil), samples...)
	sort.Ints(sorted)
	return stats.Median(sorted)
}

// WriteReport writes report to path as indented JSON.
func WriteReport(ctx context.Context, path string, report Report) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "could not open final output file:", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	enc := json.NewEncoder(out.Writer(ctx))
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return errors.E(err, "could not write final output file:", path)
	}
	return nil
}

// ReadReport reads a report written by WriteReport.
func ReadReport(ctx context.Context, path string) (report Report, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return report, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	if err := json.NewDecoder(in.Reader(ctx)).Decode(&report); err != nil {
		return report, errors.E(errors.Invalid, err, "parsing", path)
	}
	return report, nil
}
