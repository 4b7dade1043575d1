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

// Package kxmerset expands the k-mers packed inside an array of
// k+x-mers back out into a flat multiset ready for sorting.
//
// A k+x-mer's x+1 embedded sliding k-mers are not themselves in sorted
// order (sliding a window across a read is not a monotonic operation
// on the window's value), so unlike a classic k-way merge of
// already-sorted streams, there is no shortcut that avoids a real
// sort once the k-mers are unpacked. Flatten expands every embedded
// k-mer with its record's run count; the caller sorts the result with
// the same radix sort used for the max_x==0 path before handing it to
// the compactor. This replaces the original counter's symbol-group
// tournament (a binary-search partition over the sorted k+x-mer array
// at successive right-shift depths) with expand-then-sort, which is
// simpler to get right and costs the same asymptotically once the
// sort itself is the shared, well-tested primitive.
package kxmerset

import "github.com/shenwei356/kmcgo/internal/kmerword"

// PreCompactKxmers RLE-collapses bitwise-identical neighbouring
// k+x-mers in a sorted slice, returning one representative record per
// run plus the run length, so identical sub-counts contribute to the
// flattened multiset in a single step instead of one per physical
// occurrence.
func PreCompactKxmers(sorted []kmerword.KXRecord) ([]kmerword.KXRecord, []uint64) {
	if len(sorted) == 0 {
		return nil, nil
	}
	recs := make([]kmerword.KXRecord, 0, len(sorted))
	counts := make([]uint64, 0, len(sorted))

	cur := sorted[0]
	n := uint64(1)
	for i := 1; i < len(sorted); i++ {
		if sameKXRecord(cur, sorted[i]) {
			n++
			continue
		}
		recs = append(recs, cur)
		counts = append(counts, n)
		cur = sorted[i]
		n = 1
	}
	recs = append(recs, cur)
	counts = append(counts, n)
	return recs, counts
}

func sameKXRecord(a, b kmerword.KXRecord) bool {
	if !kmerword.Equal(a.Base, b.Base) || len(a.Extra) != len(b.Extra) {
		return false
	}
	for i := range a.Extra {
		if a.Extra[i] != b.Extra[i] {
			return false
		}
	}
	return true
}

// Flatten unpacks every k+x-mer record into its embedded sliding
// k-mers, pairing each with its record's run count. The result is in
// no particular order; the caller is expected to sort kmers (and
// permute counts alongside) before treating it as a Compactor source.
func Flatten(recs []kmerword.KXRecord, counts []uint64) (kmers []kmerword.Word, weights []uint64) {
	total := 0
	for _, r := range recs {
		total += r.NumKmers()
	}
	kmers = make([]kmerword.Word, 0, total)
	weights = make([]uint64, 0, total)
	for i, r := range recs {
		n := r.NumKmers()
		for slide := 0; slide < n; slide++ {
			kmers = append(kmers, r.KmerAt(slide))
			weights = append(weights, counts[i])
		}
	}
	return kmers, weights
}

// FlattenCanonical is Flatten's both-strands counterpart: a record's
// chain was built along whichever single strand its leading k-mer
// favored, so the embedded slides are forward windows of that one
// strand, not yet canonicalized individually. canonical(w) ==
// canonical(rc(w)) regardless of which strand a chain happened to be
// built on, so canonicalizing each slide here after the fact gives the
// same multiset per-symbol strand tracking during decoding would have,
// without needing the decoder to carry per-symbol strand provenance.
func FlattenCanonical(recs []kmerword.KXRecord, counts []uint64) (kmers []kmerword.Word, weights []uint64) {
	total := 0
	for _, r := range recs {
		total += r.NumKmers()
	}
	kmers = make([]kmerword.Word, 0, total)
	weights = make([]uint64, 0, total)
	for i, r := range recs {
		n := r.NumKmers()
		for slide := 0; slide < n; slide++ {
			kmers = append(kmers, canonicalWord(r.KmerAt(slide), r.K))
			weights = append(weights, counts[i])
		}
	}
	return kmers, weights
}

func canonicalWord(w kmerword.Word, k int) kmerword.Word {
	rc := kmerword.ReverseComplement(w, k)
	if kmerword.Less(rc, w) {
		return rc
	}
	return w
}
