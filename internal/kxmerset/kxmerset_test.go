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

package kxmerset

import (
	"sort"
	"testing"

	"github.com/shenwei356/kmcgo/internal/kmerword"
)

func bases(s string) []uint8 {
	out := make([]uint8, len(s))
	code := map[byte]uint8{'A': 0, 'C': 1, 'G': 2, 'T': 3}
	for i := 0; i < len(s); i++ {
		out[i] = code[s[i]]
	}
	return out
}

func TestPreCompactKxmersCollapsesDuplicates(t *testing.T) {
	r := kmerword.KXRecord{Base: kmerword.FromBases(bases("ACG")), Extra: []uint8{3}, K: 3}
	sorted := []kmerword.KXRecord{r, r, r}
	recs, counts := PreCompactKxmers(sorted)
	if len(recs) != 1 || counts[0] != 3 {
		t.Fatalf("got %d recs, counts %v, want 1 rec with count 3", len(recs), counts)
	}
}

func decode(w kmerword.Word, k int) string {
	out := make([]byte, k)
	letters := "ACGT"
	for i := 0; i < k; i++ {
		out[i] = letters[w.Get2Bits(2*(k-1-i))]
	}
	return string(out)
}

// Flatten makes no ordering promise for the embedded k-mers of a
// k+x-mer record, so this sorts the decoded slides before comparing:
// ACGTA with k=3 slides ACG, CGT, GTA, each with the record's count.
func TestFlattenExpandsEverySlideWithItsRunCount(t *testing.T) {
	rec := kmerword.KXRecord{Base: kmerword.FromBases(bases("ACG")), Extra: []uint8{3, 0}, K: 3} // ACG + T,A -> ACG,CGT,GTA
	recs, counts := PreCompactKxmers([]kmerword.KXRecord{rec, rec})

	kmers, weights := Flatten(recs, counts)
	if len(kmers) != 3 || len(weights) != 3 {
		t.Fatalf("got %d kmers, want 3 (one per slide)", len(kmers))
	}
	for _, w := range weights {
		if w != 2 {
			t.Errorf("weight = %d, want 2 (two identical input records)", w)
		}
	}

	got := make([]string, len(kmers))
	for i, k := range kmers {
		got[i] = decode(k, 3)
	}
	sort.Strings(got)
	want := []string{"ACG", "CGT", "GTA"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

// TestFlattenCanonicalCanonicalizesEachSlide mirrors mode D's chain
// for read AAAATTTT, k=4: the forward strand's leading 4-mer (AAAA) is
// canonical, so the chain carries the raw forward slides AAAA, AAAT,
// AATT, ATTT, TTTT. Flatten alone would emit those verbatim; every
// emitted k-mer must instead satisfy w <= rc(w), giving AAAA:2,
// AAAT:2, AATT:1 (canonical(ATTT)=AAAT, canonical(TTTT)=AAAA).
func TestFlattenCanonicalCanonicalizesEachSlide(t *testing.T) {
	rec := kmerword.KXRecord{Base: kmerword.FromBases(bases("AAAA")), Extra: []uint8{3, 3, 3, 3}, K: 4}
	kmers, weights := FlattenCanonical([]kmerword.KXRecord{rec}, []uint64{1})

	got := map[string]uint64{}
	for i, w := range kmers {
		got[decode(w, 4)] += weights[i]
	}
	want := map[string]uint64{"AAAA": 2, "AAAT": 2, "AATT": 1}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("count of %s = %d, want %d", k, got[k], v)
		}
	}
}

func TestFlattenHandlesRecordsOfDifferentLength(t *testing.T) {
	rec1 := kmerword.KXRecord{Base: kmerword.FromBases(bases("ACG")), Extra: []uint8{3}, K: 3} // ACG,CGT
	rec2 := kmerword.KXRecord{Base: kmerword.FromBases(bases("TTT")), Extra: nil, K: 3}          // TTT only

	kmers, weights := Flatten([]kmerword.KXRecord{rec1, rec2}, []uint64{1, 5})
	if len(kmers) != 3 {
		t.Fatalf("got %d kmers, want 3 (2 + 1)", len(kmers))
	}
	if weights[2] != 5 {
		t.Errorf("weight of rec2's single slide = %d, want 5", weights[2])
	}
}
