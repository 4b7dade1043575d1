// Copyright © 2023-2026 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package binqueue

// InputFile is one item on the input-files queue: a single source
// file handed to a reader goroutine.
type InputFile struct {
	Path string
}

// RawPart is a chunk of raw, unsplit sequence bytes a reader has
// handed to a splitter.
type RawPart struct {
	Source string
	Data   []byte
}

// BinPart is a contiguous run of bytes a splitter has appended to one
// bin's spill file or in-memory buffer.
type BinPart struct {
	BinID uint32
	Data  []byte
	NRec  uint64
}

// SortReadyBin names a bin whose descriptor is finalized and whose
// bytes are fully spilled; a BinWorker pops these to start expand +
// sort + compact.
type SortReadyBin struct {
	BinID uint32
}

// CompactedBin is the compactor's output for one bin: the packed
// suffix/count buffer, the LUT, and the four running counters from
// spec.md's cutoff classification.
type CompactedBin struct {
	BinID      uint32
	Suffix     []byte
	LUT        []uint64
	NUnique    uint64
	NCutoffMin uint64
	NCutoffMax uint64
	NTotal     uint64
}

// Stages bundles the five blocking queues that connect the pipeline,
// plus the shared bin descriptor table. Queue ordering is FIFO within
// a queue; there is no ordering guarantee across queues.
type Stages struct {
	InputFiles   *Queue[InputFile]
	RawParts     *Queue[RawPart]
	BinParts     *Queue[BinPart]
	SortReady    *Queue[SortReadyBin]
	Compacted    *Queue[CompactedBin]
	Descriptors  *BinDescTable
}

// NewStages wires up the five queues with their writer counts: nReaders
// feed InputFiles' consumers (so RawParts has nReaders writers),
// nSplitters write BinParts and SortReady, nSorters write Compacted.
func NewStages(nFiles, nReaders, nSplitters, nSorters int) *Stages {
	return &Stages{
		InputFiles:  New[InputFile](1), // the enumerator is the sole writer
		RawParts:    New[RawPart](nReaders),
		BinParts:    New[BinPart](nSplitters),
		SortReady:   New[SortReadyBin](nSplitters),
		Compacted:   New[CompactedBin](nSorters),
		Descriptors: NewBinDescTable(),
	}
}
