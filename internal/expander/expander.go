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

package expander

import (
	"sync"
	"sync/atomic"

	"github.com/shenwei356/kmcgo/internal/kmerword"
	"github.com/shenwei356/kmcgo/internal/quake"
)

// Options configures which of the four modes Expand runs.
type Options struct {
	K           int
	MaxX        int
	BothStrands bool
	Quake       bool // selects ExpandKmersWithQuality's record layout and rolling-window weighting
	NThreads    int  // only consulted in mode D
}

const expandBufferRecs = 1 << 16

func canonical(fwd, rc kmerword.Word) kmerword.Word {
	if kmerword.Less(rc, fwd) {
		return rc
	}
	return fwd
}

// ExpandKmers runs mode A or B (max_x == 0): one Word per k-mer,
// canonicalized when opt.BothStrands is set.
func ExpandKmers(data []byte, opt Options) []kmerword.Word {
	out := make([]kmerword.Word, 0, len(data))
	r := NewReader(data, opt.K, opt.Quake)
	for {
		rec, ok := r.Next()
		if !ok {
			break
		}
		out = append(out, expandOneRecordPlain(rec, opt)...)
	}
	return out
}

func expandOneRecordPlain(rec Record, opt Options) []kmerword.Word {
	k := opt.K
	n := rec.NBases(k)
	limbs := kmerword.LimbsForBits(2 * k)
	fwd := kmerword.New(limbs)
	var rc kmerword.Word
	if opt.BothStrands {
		rc = kmerword.New(limbs)
	}

	out := make([]kmerword.Word, 0, n-k+1)
	for i := 0; i < k; i++ {
		b := rec.Base(i)
		fwd.SHLInsert2(b)
		if opt.BothStrands {
			rc.SHRInsertAt(kmerword.ReverseComplement2Bit(b), 2*(k-1))
		}
	}
	fwd.Mask(2 * k)
	emit := func() {
		if opt.BothStrands {
			out = append(out, canonical(fwd.Clone(), rc.Clone()))
		} else {
			out = append(out, fwd.Clone())
		}
	}
	emit()
	for i := k; i < n; i++ {
		b := rec.Base(i)
		fwd.SHLInsert2(b)
		fwd.Mask(2 * k)
		if opt.BothStrands {
			rc.SHRInsertAt(kmerword.ReverseComplement2Bit(b), 2*(k-1))
		}
		emit()
	}
	return out
}

// ExpandKXmersSingleStrand runs mode C: chains of up to max_x+1
// sliding k-mers packed into one KXRecord.
func ExpandKXmersSingleStrand(data []byte, opt Options) []kmerword.KXRecord {
	out := make([]kmerword.KXRecord, 0, len(data))
	r := NewReader(data, opt.K, opt.Quake)
	for {
		rec, ok := r.Next()
		if !ok {
			break
		}
		out = append(out, expandOneRecordKXmers(rec, opt)...)
	}
	return out
}

func expandOneRecordKXmers(rec Record, opt Options) []kmerword.KXRecord {
	k := opt.K
	maxX := opt.MaxX
	n := rec.NBases(k)

	limbs := kmerword.LimbsForBits(2 * k)
	base := kmerword.New(limbs)
	for i := 0; i < k; i++ {
		base.SHLInsert2(rec.Base(i))
	}
	base.Mask(2 * k)

	var chunks []kmerword.KXRecord
	pos := k
	for {
		x := maxX
		if remaining := n - pos; remaining < x {
			x = remaining
		}
		extra := make([]uint8, x)
		for j := 0; j < x; j++ {
			extra[j] = rec.Base(pos + j)
		}
		chunks = append(chunks, kmerword.KXRecord{Base: base.Clone(), Extra: extra, K: k})
		pos += x

		if pos >= n {
			break
		}
		// The last chunk's final slide (KmerAt(x)) is already emitted
		// as part of it; the next chunk's base is one slide further,
		// formed by consuming exactly one more symbol.
		base = chunks[len(chunks)-1].KmerAt(x)
		base.SHLInsert2(rec.Base(pos))
		base.Mask(2 * k)
		pos++
	}
	return chunks
}

// ExpandKXmersCanonicalParallel runs mode D: canonical k+x-mers,
// decoded by NThreads goroutines over near-equal byte ranges snapped
// to record boundaries, appending to a shared slice behind a mutex
// guarding a shared write cursor.
func ExpandKXmersCanonicalParallel(data []byte, opt Options) []kmerword.KXRecord {
	k := opt.K
	nThreads := opt.NThreads
	if nThreads < 1 {
		nThreads = 1
	}

	bounds := snapToRecordStarts(data, k, nThreads)

	var cursor atomic.Int64
	shared := make([]kmerword.KXRecord, estimateRecCount(data, k, opt.MaxX))
	var mu sync.Mutex
	grow := func(staged []kmerword.KXRecord) {
		mu.Lock()
		defer mu.Unlock()
		need := int(cursor.Load()) + len(staged)
		for need > len(shared) {
			shared = append(shared, make([]kmerword.KXRecord, len(shared)+expandBufferRecs)...)
		}
		base := cursor.Add(int64(len(staged))) - int64(len(staged))
		copy(shared[base:], staged)
	}

	var wg sync.WaitGroup
	for t := 0; t < len(bounds)-1; t++ {
		start, end := bounds[t], bounds[t+1]
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(seg []byte) {
			defer wg.Done()
			staging := make([]kmerword.KXRecord, 0, expandBufferRecs)
			r := NewReader(seg, k, opt.Quake)
			for {
				rec, ok := r.Next()
				if !ok {
					break
				}
				staging = append(staging, expandRecordKXmersCanonical(rec, opt)...)
				if len(staging) >= expandBufferRecs {
					grow(staging)
					staging = staging[:0]
				}
			}
			if len(staging) > 0 {
				grow(staging)
			}
		}(data[start:end])
	}
	wg.Wait()

	return shared[:cursor.Load()]
}

func estimateRecCount(data []byte, k, maxX int) int {
	if len(data) == 0 {
		return 0
	}
	avgRecLen := recordLen(k, maxX/2, false)
	if avgRecLen == 0 {
		avgRecLen = 1
	}
	return len(data)/avgRecLen + expandBufferRecs
}

// snapToRecordStarts splits data into nThreads+1 boundaries, each
// (after the first) advanced to the next record start so a segment
// never begins mid-record.
func snapToRecordStarts(data []byte, k, nThreads int) []int {
	n := len(data)
	bounds := make([]int, nThreads+1)
	bounds[0] = 0
	bounds[nThreads] = n
	if nThreads <= 1 || n == 0 {
		for i := 1; i < nThreads; i++ {
			bounds[i] = n
		}
		return bounds
	}
	chunk := n / nThreads
	for t := 1; t < nThreads; t++ {
		p := t * chunk
		if p > n {
			p = n
		}
		bounds[t] = nextRecordStart(data, p, k)
	}
	return bounds
}

// nextRecordStart walks forward from a byte offset guessed to be
// mid-record to the start of the next actual record by re-parsing
// from the nearest known-good boundary: offset 0. This is O(n) in the
// worst case but only runs nThreads-1 times per bin.
func nextRecordStart(data []byte, guess, k int) int {
	pos := 0
	for pos < len(data) {
		add := int(data[pos])
		n := recordLen(k, add, false)
		next := pos + n
		if pos <= guess && guess < next {
			return next
		}
		if pos >= guess {
			return pos
		}
		pos = next
	}
	return len(data)
}

// expandRecordKXmersCanonical chains one record's sliding k-mers into
// KXRecords the same way mode C does, picking whichever strand the
// record's leading k-mer favors before chaining. That pick only
// orients the chain; it does not make the embedded slides canonical
// on its own, since the locally-canonical strand can flip partway
// through a record. Correctness of mode D's output comes from
// kxmerset.FlattenCanonical, which canonicalizes every embedded slide
// individually after this chain is unpacked; the per-record strand
// pick here just keeps the chain builder identical to mode C's and
// tends to keep chain-relative bit patterns smaller on average.
func expandRecordKXmersCanonical(rec Record, opt Options) []kmerword.KXRecord {
	k := opt.K
	n := rec.NBases(k)

	fwdBases := make([]uint8, n)
	for i := 0; i < n; i++ {
		fwdBases[i] = rec.Base(i)
	}

	fwdKmer := kmerword.FromBases(fwdBases[:k])
	rcKmer := kmerword.New(len(fwdKmer))
	for i := 0; i < k; i++ {
		rcKmer.SHRInsertAt(kmerword.ReverseComplement2Bit(fwdBases[i]), 2*(k-1))
	}

	bases := fwdBases
	if kmerword.Less(rcKmer, fwdKmer) {
		rcBases := make([]uint8, n)
		for i := 0; i < n; i++ {
			rcBases[n-1-i] = kmerword.ReverseComplement2Bit(fwdBases[i])
		}
		bases = rcBases
	}

	chainRec := Record{AdditionalSymbols: len(bases) - k, Bytes: EncodeRecord(bases, k)}
	return expandOneRecordKXmers(chainRec, opt)
}

// ExpandKmersWithQuality runs Quake mode: every sliding window of
// every record, base k-mer and every k+x-mer extension slide alike,
// is emitted individually together with the rolling product of its
// bases' per-base correctness probabilities (quake.Rolling), each
// window canonicalized on its own when opt.BothStrands is set. Quake
// mode never chains KXRecords the way modes C and D do: quake.Rolling
// already has to touch every base to fold its probability into the
// window, so there is no shared-prefix work left for the k+x-mer
// tournament to amortize, matching the original's own Quake
// specialization (kb_sorter.h's quake Expand) which does not use the
// k+x-mer path at all, even when max_x > 0.
func ExpandKmersWithQuality(data []byte, opt Options) (kmers []kmerword.Word, weights []float64) {
	r := NewReader(data, opt.K, true)
	for {
		rec, ok := r.Next()
		if !ok {
			break
		}
		ks, ws := expandOneRecordWithQuality(rec, opt)
		kmers = append(kmers, ks...)
		weights = append(weights, ws...)
	}
	return kmers, weights
}

func expandOneRecordWithQuality(rec Record, opt Options) ([]kmerword.Word, []float64) {
	k := opt.K
	n := rec.NBases(k)
	limbs := kmerword.LimbsForBits(2 * k)
	fwd := kmerword.New(limbs)
	var rc kmerword.Word
	if opt.BothStrands {
		rc = kmerword.New(limbs)
	}

	roll := quake.NewRolling(k)
	kmers := make([]kmerword.Word, 0, n-k+1)
	weights := make([]float64, 0, n-k+1)

	for i := 0; i < n; i++ {
		b := rec.Base(i)
		fwd.SHLInsert2(b)
		fwd.Mask(2 * k)
		if opt.BothStrands {
			rc.SHRInsertAt(kmerword.ReverseComplement2Bit(b), 2*(k-1))
		}
		prob, ready := roll.Push(rec.Qual(i, k))
		if !ready {
			continue
		}
		if opt.BothStrands {
			kmers = append(kmers, canonical(fwd.Clone(), rc.Clone()))
		} else {
			kmers = append(kmers, fwd.Clone())
		}
		weights = append(weights, prob)
	}
	return kmers, weights
}
