// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package premo estimates MosaikAligner parameters for a sequencing run.

For paired-end data, the Engine samples batches of read pairs from the two
input FASTQ files, aligns each batch with MosaikBuild and MosaikAligner,
and collects the read length of every aligned read and the fragment length
of every pair whose mates map to the same reference. Batches are folded
into a running result until the medians of both distributions change by
less than a configured fraction from one batch to the next, or until the
input runs out. For single-end data only read lengths are sampled, straight
from the input, and no aligner runs are needed.

The report derived from the final result (see NewReport) lists the
suggested -act, -bw, -ls and -mfl values next to the settings used.

Batch files are named after the batch number inside the scratch directory,
so batches run strictly one after another.
*/
package premo
