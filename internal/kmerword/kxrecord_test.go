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

package kmerword

import "testing"

func TestKXRecordKmerAtSlidesWindow(t *testing.T) {
	// bases: A C G T A A (k=4, x=2): base kmer = ACGT, extra = [A, A]
	r := KXRecord{
		Base:  FromBases([]uint8{0, 1, 2, 3}),
		Extra: []uint8{0, 0},
		K:     4,
	}
	if r.NumKmers() != 3 {
		t.Fatalf("NumKmers = %d, want 3", r.NumKmers())
	}

	k0 := r.KmerAt(0)
	want0 := FromBases([]uint8{0, 1, 2, 3}) // ACGT
	if !Equal(k0, want0) {
		t.Errorf("slide 0 = %v, want %v", k0, want0)
	}

	k1 := r.KmerAt(1)
	want1 := FromBases([]uint8{1, 2, 3, 0}) // CGTA
	if !Equal(k1, want1) {
		t.Errorf("slide 1 = %v, want %v", k1, want1)
	}

	k2 := r.KmerAt(2)
	want2 := FromBases([]uint8{2, 3, 0, 0}) // GTAA
	if !Equal(k2, want2) {
		t.Errorf("slide 2 = %v, want %v", k2, want2)
	}
}
