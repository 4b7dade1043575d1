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

package compactor

import (
	"math"
	"testing"

	"github.com/shenwei356/kmcgo/internal/kmerword"
	"github.com/shenwei356/kmcgo/internal/kxmerset"
	"github.com/shenwei356/kmcgo/internal/quake"
)

var baseCode = map[byte]uint8{'A': 0, 'C': 1, 'G': 2, 'T': 3}

func kmer(s string) kmerword.Word {
	bases := make([]uint8, len(s))
	for i := 0; i < len(s); i++ {
		bases[i] = baseCode[s[i]]
	}
	return kmerword.FromBases(bases)
}

func rc(w kmerword.Word, k int) kmerword.Word {
	out := kmerword.New(len(w))
	for i := 0; i < k; i++ {
		sym := w.Get2Bits(2 * i)
		out.SHLInsert2(kmerword.ReverseComplement2Bit(sym))
	}
	return out
}

func canonical(s string, k int) kmerword.Word {
	f := kmer(s)
	r := rc(f, k)
	if kmerword.Less(r, f) {
		return r
	}
	return f
}

// Scenario 1: k=4, single strand, max_x=0. ACGTACGT -> ACGT:2,CGTA:1,GTAC:1,TACG:1.
func TestCompactSingleStrandWithCutoffMin(t *testing.T) {
	sorted := []kmerword.Word{kmer("ACGT"), kmer("ACGT"), kmer("CGTA"), kmer("GTAC"), kmer("TACG")}
	opt := Options{K: 4, LUTPrefixLen: 0, CutoffMin: 2, CutoffMax: math.MaxUint32, CounterMax: math.MaxUint32}
	_, _, stats := Compact(FromSortedKmers(sorted), opt)

	if stats.NUnique != 1 || stats.NCutoffMin != 3 || stats.NCutoffMax != 0 || stats.NTotal != 5 {
		t.Fatalf("got %+v, want {NUnique:1 NCutoffMin:3 NCutoffMax:0 NTotal:5}", stats)
	}
}

// Scenario 2: k=4, canonical, max_x=0. ACGTACGT -> canonical counts ACGT:2, CGTA:2, GTAC:1.
func TestCompactCanonicalGrouping(t *testing.T) {
	kmers := []string{"ACGT", "CGTA", "GTAC", "TACG", "ACGT"}
	var canon []kmerword.Word
	for _, s := range kmers {
		canon = append(canon, canonical(s, 4))
	}
	sortWords(canon)

	opt := Options{K: 4, LUTPrefixLen: 0, CutoffMin: 0, CutoffMax: math.MaxUint32, CounterMax: math.MaxUint32}
	_, _, stats := Compact(FromSortedKmers(canon), opt)

	if stats.NUnique != 3 || stats.NTotal != 5 {
		t.Fatalf("got %+v, want {NUnique:3 ... NTotal:5}", stats)
	}
}

// Scenario 3: k=5, single strand, max_x=2. AAAAAAA (7 A's) -> three AAAAA 5-mers chained
// into one k+x-mer record, flattened and re-sorted, single output count 3.
func TestCompactWeightedKmerSourceGroupsChainedKxmer(t *testing.T) {
	base := kmer("AAAAA")
	rec := kmerword.KXRecord{Base: base, Extra: []uint8{0, 0}, K: 5}
	recs, counts := kxmerset.PreCompactKxmers([]kmerword.KXRecord{rec})
	kmers, weights := kxmerset.Flatten(recs, counts)
	sortWeighted(kmers, weights)

	opt := Options{K: 5, LUTPrefixLen: 0, CutoffMin: 0, CutoffMax: math.MaxUint32, CounterMax: math.MaxUint32}
	_, _, stats := Compact(FromSortedWeightedKmers(kmers, weights), opt)

	if stats.NUnique != 1 || stats.NTotal != 3 {
		t.Fatalf("got %+v, want {NUnique:1 ... NTotal:3}", stats)
	}
}

// Scenario 4: k=6, canonical, Quake mode. Two reads of ACGTAC at Phred 40 everywhere.
func TestCompactQuakeModeSumsProbabilities(t *testing.T) {
	w := canonical("ACGTAC", 6)
	perBase := quake.ProbOfQual(40)
	perKmer := 1.0
	for i := 0; i < 6; i++ {
		perKmer *= perBase
	}

	src := FromSortedQuakeKmers([]kmerword.Word{w, w}, []float64{perKmer, perKmer})
	opt := Options{K: 6, LUTPrefixLen: 0, CutoffMin: 1, CutoffMax: math.MaxUint32, Quake: true}
	suffix, _, stats := Compact(src, opt)

	if stats.NUnique != 1 {
		t.Fatalf("NUnique = %d, want 1", stats.NUnique)
	}
	if len(suffix) != 2+4 { // k=6 -> 2 packed bytes + 4-byte float32 counter
		t.Fatalf("suffix len = %d, want 6", len(suffix))
	}
	gotBits := uint32(suffix[2]) | uint32(suffix[3])<<8 | uint32(suffix[4])<<16 | uint32(suffix[5])<<24
	got := math.Float32frombits(gotBits)
	want := float32(2 * perKmer)
	if math.Abs(float64(got-want)) > 1e-6 {
		t.Errorf("emitted count = %v, want ~%v", got, want)
	}
}

// Scenario 5: empty bin.
func TestCompactEmptyBin(t *testing.T) {
	opt := Options{K: 4, LUTPrefixLen: 2, CutoffMin: 0, CutoffMax: math.MaxUint32, CounterMax: math.MaxUint32}
	suffix, lut, stats := Compact(FromSortedKmers(nil), opt)

	if len(suffix) != 0 {
		t.Errorf("suffix len = %d, want 0", len(suffix))
	}
	for _, v := range lut {
		if v != 0 {
			t.Fatalf("lut not all zero: %v", lut)
		}
	}
	if stats != (Stats{}) {
		t.Fatalf("stats = %+v, want zero value", stats)
	}
}

// Scenario 6: cutoff clamp. k=3, single strand, AAAAAAAAAA (10 A's) -> AAA occurs 8 times,
// counter_max=5 clamps the emitted count while n_total keeps the true occurrence count.
func TestCompactClampsToCounterMax(t *testing.T) {
	var sorted []kmerword.Word
	for i := 0; i < 8; i++ {
		sorted = append(sorted, kmer("AAA"))
	}
	opt := Options{K: 3, LUTPrefixLen: 0, CutoffMin: 1, CutoffMax: math.MaxUint32, CounterMax: 5}
	suffix, _, stats := Compact(FromSortedKmers(sorted), opt)

	if stats.NUnique != 1 || stats.NTotal != 8 {
		t.Fatalf("got %+v, want {NUnique:1 ... NTotal:8}", stats)
	}
	// k=3 -> 1 packed byte + counterSize bytes; counter_max=5 fits in 1 byte.
	emitted := suffix[len(suffix)-1]
	if emitted != 5 {
		t.Errorf("emitted count = %d, want 5 (clamped)", emitted)
	}
}

func sortWords(ws []kmerword.Word) {
	for i := 1; i < len(ws); i++ {
		for j := i; j > 0 && kmerword.Less(ws[j], ws[j-1]); j-- {
			ws[j], ws[j-1] = ws[j-1], ws[j]
		}
	}
}

// sortWeighted insertion-sorts kmers ascending, permuting weights alongside.
func sortWeighted(ws []kmerword.Word, weights []uint64) {
	for i := 1; i < len(ws); i++ {
		for j := i; j > 0 && kmerword.Less(ws[j], ws[j-1]); j-- {
			ws[j], ws[j-1] = ws[j-1], ws[j]
			weights[j], weights[j-1] = weights[j-1], weights[j]
		}
	}
}
