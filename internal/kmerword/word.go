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

// Package kmerword implements a fixed-width, runtime-sized big-unsigned
// word over the 2-bit DNA alphabet {A=0, C=1, G=2, T=3}, used to hold
// k-mers and k+x-mers whose bit width exceeds a single uint64.
//
// A Word of S limbs holds S*64 bits. limb[0] is the most significant
// limb; within a limb, bit 0 is the least significant bit. Bit position
// p (0-based from the least significant bit of the whole word) lives in
// limb S-1-p/64 at local offset p%64, so a Word behaves like a
// big-endian array of little-endian uint64 legs.
package kmerword

// Word is a k-mer or k+x-mer packed 2 bits per symbol across S uint64
// limbs, most significant symbol at the high bit of limb[0].
type Word []uint64

// New allocates a zeroed Word of s limbs.
func New(s int) Word {
	return make(Word, s)
}

// Clone returns an independent copy.
func (w Word) Clone() Word {
	c := make(Word, len(w))
	copy(c, w)
	return c
}

// CopyFrom overwrites w in place with src, which must have equal length.
func (w Word) CopyFrom(src Word) {
	copy(w, src)
}

// limbOffset maps a bit position (0-based from the LSB of the whole
// word) to a limb index and the bit offset within that limb.
func limbOffset(s, p int) (idx, bit int) {
	return s - 1 - p/64, p % 64
}

// SHLInsert2 shifts the whole word left by 2 bits and ORs sym (only the
// low 2 bits are used) into bit 0. Mirrors CKmerWord::SHL_insert_2bits
// in the original kmer_counter.
func (w Word) SHLInsert2(sym uint8) {
	n := len(w)
	for i := 0; i < n-1; i++ {
		w[i] = (w[i] << 2) | (w[i+1] >> 62)
	}
	w[n-1] = (w[n-1] << 2) | uint64(sym&3)
}

// SHRInsertAt shifts the whole word right by 2 bits and ORs sym (low 2
// bits) at bit position atBit (0-based from the LSB). Used to maintain
// a reverse-complement word incrementally: mirrors
// CKmerWord::SHR_insert_2bits.
func (w Word) SHRInsertAt(sym uint8, atBit int) {
	n := len(w)
	for i := n - 1; i > 0; i-- {
		w[i] = (w[i] >> 2) | (w[i-1] << 62)
	}
	w[0] >>= 2

	idx, bit := limbOffset(n, atBit)
	w[idx] |= uint64(sym&3) << uint(bit)
}

// Mask clears every bit at position >= nBits, keeping only the low
// nBits bits of the word.
func (w Word) Mask(nBits int) {
	n := len(w)
	total := n * 64
	if nBits <= 0 {
		for i := range w {
			w[i] = 0
		}
		return
	}
	if nBits >= total {
		return
	}
	idx, bit := limbOffset(n, nBits)
	for i := 0; i < idx; i++ {
		w[i] = 0
	}
	if bit == 0 {
		w[idx] = 0
	} else {
		w[idx] &= (uint64(1) << uint(bit)) - 1
	}
}

// GetByte returns byte i (0-based from the LSB end of the word).
func (w Word) GetByte(i int) byte {
	idx, bit := limbOffset(len(w), i*8)
	return byte(w[idx] >> uint(bit))
}

// SetByte overwrites byte i (0-based from the LSB end of the word).
func (w Word) SetByte(i int, b byte) {
	idx, bit := limbOffset(len(w), i*8)
	w[idx] = (w[idx] &^ (uint64(0xff) << uint(bit))) | (uint64(b) << uint(bit))
}

// Get2Bits returns the 2-bit symbol at bit position at (0-based from
// the LSB end of the word).
func (w Word) Get2Bits(at int) uint8 {
	idx, bit := limbOffset(len(w), at)
	return uint8(w[idx]>>uint(bit)) & 3
}

// Set2Bits overwrites the 2-bit symbol at bit position at.
func (w Word) Set2Bits(v uint8, at int) {
	idx, bit := limbOffset(len(w), at)
	w[idx] = (w[idx] &^ (uint64(3) << uint(bit))) | (uint64(v&3) << uint(bit))
}

// Less reports whether a sorts strictly before b, comparing limbs from
// most significant (index 0) to least significant.
func Less(a, b Word) bool {
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Equal reports whether a and b hold the same bits.
func Equal(a, b Word) bool {
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Compare is the three-way comparator, for use with sort-adjacent code
// that wants -1/0/1 rather than a boolean.
func Compare(a, b Word) int {
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// LimbsForBits returns the number of 64-bit limbs needed to hold nBits
// bits, i.e. ceil(nBits/64).
func LimbsForBits(nBits int) int {
	return (nBits + 63) / 64
}

// FromBases packs a slice of 2-bit symbols (each 0..3, most significant
// base first) into a freshly allocated Word wide enough to hold them.
func FromBases(bases []uint8) Word {
	w := New(LimbsForBits(len(bases) * 2))
	for _, b := range bases {
		w.SHLInsert2(b)
	}
	return w
}

// ReverseComplement2Bit returns the complement of a 2-bit base: A<->T,
// C<->G, i.e. 3-sym.
func ReverseComplement2Bit(sym uint8) uint8 {
	return 3 - (sym & 3)
}

// ReverseComplement returns the reverse complement of the k-symbol
// k-mer held in w's low 2*k bits: symbol i of the result is the
// complement of symbol k-1-i of w.
func ReverseComplement(w Word, k int) Word {
	rc := New(len(w))
	for i := 0; i < k; i++ {
		sym := w.Get2Bits(2 * i)
		rc.SHLInsert2(ReverseComplement2Bit(sym))
	}
	rc.Mask(2 * k)
	return rc
}
