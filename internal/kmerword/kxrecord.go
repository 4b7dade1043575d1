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

// KXRecord is a k+x-mer: a base k-mer plus up to max_x trailing
// extension symbols. It packs the x+1 sliding k-mers that a
// compacted run of (k+x) consecutive bases covers, letting the
// expander emit one record instead of x+1 separate k-mers.
//
// Unlike the bit-packed tag field in the original counter, the
// extension length and symbols travel as a plain slice here — this
// record never touches disk, so there is no format to match, and a
// slice is far less error-prone than hand-rolled tag bits.
type KXRecord struct {
	Base  Word    // the k-mer at slide 0
	Extra []uint8 // up to max_x trailing symbols, oldest first
	K     int
}

// NumKmers is the number of sliding k-mers this record encodes: the
// base one plus one per extension symbol.
func (r KXRecord) NumKmers() int { return len(r.Extra) + 1 }

// KmerAt returns the k-mer at slide i (0 <= i <= len(Extra)): slide 0
// is Base itself; slide i for i>0 drops the i leading symbols of Base
// and appends the first i symbols of Extra.
func (r KXRecord) KmerAt(i int) Word {
	if i == 0 {
		return r.Base.Clone()
	}
	w := r.Base.Clone()
	for j := 0; j < i; j++ {
		w.SHLInsert2(r.Extra[j])
	}
	w.Mask(2 * r.K)
	return w
}
