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

// Package binworker orchestrates one bin end to end: reserve arena
// space, read the bin's bytes, expand, radix-sort, compact, and
// publish the result, exactly the loop spec.md §4.7 describes.
package binworker

import (
	"math"

	"github.com/pkg/errors"

	"github.com/shenwei356/kmcgo/internal/arena"
	"github.com/shenwei356/kmcgo/internal/binqueue"
	"github.com/shenwei356/kmcgo/internal/compactor"
	"github.com/shenwei356/kmcgo/internal/expander"
	"github.com/shenwei356/kmcgo/internal/kmerword"
	"github.com/shenwei356/kmcgo/internal/kxmerset"
	"github.com/shenwei356/kmcgo/internal/radixsort"
)

// KmerKind tags the two shapes of per-bin processing the original
// counter expressed as a template specialization on KmerT: plain
// occurrence counting, and Quake-mode quality-weighted counting.
type KmerKind int

const (
	Plain KmerKind = iota
	Quality
)

// DataSource hands a bin worker the raw bytes for one bin, abstracting
// over whether they live on disk or in memory; the pinned BinSource
// collaborator (package collab) is responsible for producing them.
type DataSource interface {
	ReadBin(desc *binqueue.BinDesc) ([]byte, error)
}

// NThreads bounds the inner parallelism binworker hands to the radix
// sort and to mode D's canonical expansion; it is sized once from
// Config.NOMPThreads by the pipeline, not guessed here.
type Options struct {
	NThreads    int
	GrowQuantum int
}

// Worker drains the sort-ready queue, processing bins until the queue
// reports no more writers, then marks its share of the compacted-bin
// queue done.
type Worker struct {
	Stages *binqueue.Stages
	Arena  *arena.Arena
	Data   DataSource
	Opt    Options
}

// Run is the BinWorker loop of spec.md §4.7. It blocks until the
// sort-ready queue is drained, processing one bin per iteration.
func (w *Worker) Run() error {
	for {
		item, ok := w.Stages.SortReady.Pop()
		if !ok {
			break
		}
		if err := w.processBin(item.BinID); err != nil {
			return errors.Wrapf(err, "processing bin %d", item.BinID)
		}
	}
	w.Stages.Compacted.WriterDone()
	return nil
}

func (w *Worker) processBin(binID uint32) error {
	desc := w.Stages.Descriptors.Read(binID)
	if desc == nil {
		return errors.Errorf("no descriptor registered for bin %d", binID)
	}

	sizes := reservationSizes(desc)
	res := w.Arena.Reserve(binID, sizes)
	defer w.Arena.Free(binID)

	buf := w.Arena.Buffer()
	inputFile := res.Role(buf, arena.RoleInputFile)

	raw, err := w.Data.ReadBin(desc)
	if err != nil {
		return errors.Wrapf(err, "reading bin %d file %s", binID, desc.File)
	}
	if len(raw) > len(inputFile) {
		return errors.Errorf("bin %d: file size %d exceeds reserved input-file role %d", binID, len(raw), len(inputFile))
	}
	copy(inputFile, raw)
	data := inputFile[:len(raw)]

	expOpt := expander.Options{K: desc.KmerLen, MaxX: desc.MaxX, BothStrands: desc.BothStrands, Quake: desc.Quake, NThreads: w.Opt.NThreads}

	var suffix []byte
	var lut []uint64
	var stats binqueue.CompactedBin

	switch {
	case desc.Quake:
		// Quake mode never chains KXRecords, regardless of max_x: see
		// expander.ExpandKmersWithQuality.
		kmers, weights := expander.ExpandKmersWithQuality(data, expOpt)
		sortQuakeWords(kmers, weights, w.Opt.NThreads)
		opt := compactOptions(desc)
		s, l, st := compactor.Compact(compactor.FromSortedQuakeKmers(kmers, weights), opt)
		suffix, lut = s, l
		stats = statsFrom(binID, st)

	case desc.MaxX == 0:
		kmers := expander.ExpandKmers(data, expOpt)
		sortWords(kmers, w.Opt.NThreads)
		opt := compactOptions(desc)
		s, l, st := compactor.Compact(compactor.FromSortedKmers(kmers), opt)
		suffix, lut = s, l
		stats = statsFrom(binID, st)

	case !desc.BothStrands:
		recs := expander.ExpandKXmersSingleStrand(data, expOpt)
		s, l, st := compactKXRecords(recs, desc, w.Opt.NThreads, false)
		suffix, lut = s, l
		stats = statsFrom(binID, st)

	default:
		recs := expander.ExpandKXmersCanonicalParallel(data, expOpt)
		s, l, st := compactKXRecords(recs, desc, w.Opt.NThreads, true)
		suffix, lut = s, l
		stats = statsFrom(binID, st)
	}

	w.Stages.Compacted.Push(withBuffers(stats, suffix, lut))
	return nil
}

func withBuffers(c binqueue.CompactedBin, suffix []byte, lut []uint64) binqueue.CompactedBin {
	c.Suffix = suffix
	c.LUT = lut
	return c
}

// compactKXRecords drains a chained k+x-mer expansion (mode C or mode
// D) into a sorted, weighted k-mer stream ready for compaction.
// canonical selects kxmerset.FlattenCanonical over Flatten: mode D's
// chains are only strand-oriented, not per-slide canonical, so its
// embedded k-mers must be canonicalized individually after
// unpacking (see expander.expandRecordKXmersCanonical); mode C is
// already single-strand by construction and needs no such pass.
func compactKXRecords(recs []kmerword.KXRecord, desc *binqueue.BinDesc, nThreads int, canonical bool) ([]byte, []uint64, compactor.Stats) {
	sortKXRecords(recs)
	preRecs, counts := kxmerset.PreCompactKxmers(recs)
	var kmers []kmerword.Word
	var weights []uint64
	if canonical {
		kmers, weights = kxmerset.FlattenCanonical(preRecs, counts)
	} else {
		kmers, weights = kxmerset.Flatten(preRecs, counts)
	}
	sortWeighted(kmers, weights, nThreads)

	opt := compactOptions(desc)
	suffix, lut, stats := compactor.Compact(compactor.FromSortedWeightedKmers(kmers, weights), opt)
	return suffix, lut, stats
}

func compactOptions(desc *binqueue.BinDesc) compactor.Options {
	return compactor.Options{
		K:            desc.KmerLen,
		LUTPrefixLen: desc.LUTPrefixLen,
		CutoffMin:    desc.CutoffMin,
		CutoffMax:    desc.CutoffMax,
		CounterMax:   desc.CounterMax,
		Quake:        desc.Quake,
	}
}

func statsFrom(binID uint32, st compactor.Stats) binqueue.CompactedBin {
	return binqueue.CompactedBin{
		BinID:      binID,
		NUnique:    st.NUnique,
		NCutoffMin: st.NCutoffMin,
		NCutoffMax: st.NCutoffMax,
		NTotal:     st.NTotal,
	}
}

// reservationSizes derives the arena.Sizes spec.md §4.1 wants from a
// bin's descriptor. kxmers_size and out_buffer_size are sized off the
// record counts the splitter already reported; kxmer_counter_size
// only matters on the max_x>0 path (RLE run counts from
// PreCompactKxmers).
func reservationSizes(desc *binqueue.BinDesc) arena.Sizes {
	recWidth := recordWidthBytes(desc)
	nRec := desc.TmpNRec
	if desc.MaxX > 0 {
		nRec = desc.NPlusXRecs
	}
	kxmersSize := int(nRec) * recWidth
	outBufferSize := int(desc.TmpNRec) * outRecWidthBytes(desc)
	lutSize := lutSizeBytes(desc)
	counterSize := 0
	if desc.MaxX > 0 {
		counterSize = int(nRec) * 8
	}
	return arena.Sizes{
		FileSize:         desc.TmpSize,
		KxmersSize:       kxmersSize,
		OutBufferSize:    outBufferSize,
		LUTSize:          lutSize,
		KxmerCounterSize: counterSize,
		OddPhase:         recWidth%2 == 1,
	}
}

func recordWidthBytes(desc *binqueue.BinDesc) int {
	bases := desc.KmerLen
	if desc.MaxX > 0 {
		bases += desc.MaxX + 1
	}
	width := (bases*2 + 7) / 8
	if desc.Quake {
		width += bases // one raw quality byte per base
	}
	return width
}

func outRecWidthBytes(desc *binqueue.BinDesc) int {
	suffixSymbols := desc.KmerLen - desc.LUTPrefixLen
	suffixBytes := (suffixSymbols*2 + 7) / 8
	counterBytes := 4
	if !desc.Quake {
		counterBytes = byteLog(uint64(desc.CounterMax))
	}
	return suffixBytes + counterBytes
}

func byteLog(x uint64) int {
	switch {
	case x < 1<<8:
		return 1
	case x < 1<<16:
		return 2
	case x < 1<<24:
		return 3
	case x < 1<<32:
		return 4
	default:
		return 8
	}
}

func lutSizeBytes(desc *binqueue.BinDesc) int {
	slots := uint64(1) << uint(2*desc.LUTPrefixLen)
	return int(slots) * 8
}

func sortWords(ws []kmerword.Word, nThreads int) {
	if len(ws) < 2 {
		return
	}
	buf := keyBytes(ws)
	n := len(ws)
	stride := recLenFor(ws[0])
	tmp := make([]byte, len(buf))
	sorted, _ := radixsort.Bytes(buf, tmp, stride, stride, nThreads)
	for i := 0; i < n; i++ {
		decodeInto(ws[i], sorted[i*stride:(i+1)*stride])
	}
}

func sortWeighted(ws []kmerword.Word, weights []uint64, nThreads int) {
	if len(ws) < 2 {
		return
	}
	keyLen := recLenFor(ws[0])
	stride := keyLen + 8
	n := len(ws)
	data := make([]byte, n*stride)
	for i, w := range ws {
		rec := data[i*stride : (i+1)*stride]
		for b := 0; b < keyLen; b++ {
			rec[b] = w.GetByte(b)
		}
		putUint64LE(rec[keyLen:], weights[i])
	}
	tmp := make([]byte, len(data))
	sorted, _ := radixsort.Bytes(data, tmp, stride, keyLen, nThreads)
	for i := 0; i < n; i++ {
		rec := sorted[i*stride : (i+1)*stride]
		decodeInto(ws[i], rec[:keyLen])
		weights[i] = getUint64LE(rec[keyLen:])
	}
}

// sortQuakeWords is sortWeighted's Quake-mode counterpart: the
// per-occurrence weight is a probability, not an integer run count,
// so it rides along as the IEEE-754 bit pattern of a float64 instead
// of a little-endian uint64, sorted only by the k-mer key bytes.
func sortQuakeWords(ws []kmerword.Word, weights []float64, nThreads int) {
	if len(ws) < 2 {
		return
	}
	keyLen := recLenFor(ws[0])
	stride := keyLen + 8
	n := len(ws)
	data := make([]byte, n*stride)
	for i, w := range ws {
		rec := data[i*stride : (i+1)*stride]
		for b := 0; b < keyLen; b++ {
			rec[b] = w.GetByte(b)
		}
		putUint64LE(rec[keyLen:], math.Float64bits(weights[i]))
	}
	tmp := make([]byte, len(data))
	sorted, _ := radixsort.Bytes(data, tmp, stride, keyLen, nThreads)
	for i := 0; i < n; i++ {
		rec := sorted[i*stride : (i+1)*stride]
		decodeInto(ws[i], rec[:keyLen])
		weights[i] = math.Float64frombits(getUint64LE(rec[keyLen:]))
	}
}

func sortKXRecords(recs []kmerword.KXRecord) {
	if len(recs) < 2 {
		return
	}
	// Records are sorted by their Base word only: the expander already
	// chained consecutive slides into one record per run, so ordering
	// runs by their leading k-mer brings identical records together for
	// kxmerset.PreCompactKxmers, which only collapses neighbours.
	bases := make([]kmerword.Word, len(recs))
	for i, r := range recs {
		bases[i] = r.Base
	}
	idx := make([]int, len(recs))
	for i := range idx {
		idx[i] = i
	}
	insertionSortIdx(idx, bases)
	sortedRecs := make([]kmerword.KXRecord, len(recs))
	for i, j := range idx {
		sortedRecs[i] = recs[j]
	}
	copy(recs, sortedRecs)
}

func insertionSortIdx(idx []int, keys []kmerword.Word) {
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && kmerword.Less(keys[idx[j]], keys[idx[j-1]]); j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
}

func recLenFor(w kmerword.Word) int {
	return len(w) * 8
}

func keyBytes(ws []kmerword.Word) []byte {
	stride := recLenFor(ws[0])
	out := make([]byte, len(ws)*stride)
	for i, w := range ws {
		rec := out[i*stride : (i+1)*stride]
		for b := 0; b < stride; b++ {
			rec[b] = w.GetByte(b)
		}
	}
	return out
}

func decodeInto(w kmerword.Word, key []byte) {
	for b := range key {
		w.SetByte(b, key[b])
	}
}

func putUint64LE(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> uint(8*i))
	}
}

func getUint64LE(src []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(src[i]) << uint(8*i)
	}
	return v
}
