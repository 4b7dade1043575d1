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

func TestSHLInsert2SingleLimb(t *testing.T) {
	w := New(1)
	bases := []uint8{0, 1, 2, 3} // A C G T
	for _, b := range bases {
		w.SHLInsert2(b)
	}
	w.Mask(8) // 4 bases * 2 bits
	if w[0] != 0b00011011 {
		t.Errorf("expected 0b00011011, got %08b", w[0])
	}
}

func TestSHLInsert2CrossesLimbs(t *testing.T) {
	// k=40 needs 2 limbs. Push 40 'T' (3) symbols then check the top
	// and bottom limbs both carry bits.
	w := New(2)
	for i := 0; i < 40; i++ {
		w.SHLInsert2(3)
	}
	w.Mask(80)
	if w[0] == 0 || w[1] == 0 {
		t.Errorf("expected both limbs non-zero after 40 shifts, got %x %x", w[0], w[1])
	}
}

func TestMaskClearsHighBits(t *testing.T) {
	w := Word{^uint64(0), ^uint64(0)}
	w.Mask(70) // keep 70 of 128 bits
	// limb 0 should only retain the low 6 bits (70-64)
	if w[0] != 0x3f {
		t.Errorf("limb0 = %x, want 0x3f", w[0])
	}
	if w[1] != ^uint64(0) {
		t.Errorf("limb1 should be untouched, got %x", w[1])
	}
}

func TestGetSetByteRoundTrip(t *testing.T) {
	w := New(2)
	for i := 0; i < 16; i++ {
		w.SetByte(i, byte(i+1))
	}
	for i := 0; i < 16; i++ {
		if got := w.GetByte(i); got != byte(i+1) {
			t.Errorf("byte %d: got %d, want %d", i, got, i+1)
		}
	}
}

func TestGetSet2Bits(t *testing.T) {
	w := New(2)
	for at := 0; at < 128; at += 2 {
		w.Set2Bits(uint8(at%4), at)
	}
	for at := 0; at < 128; at += 2 {
		if got := w.Get2Bits(at); got != uint8(at%4) {
			t.Errorf("at %d: got %d, want %d", at, got, at%4)
		}
	}
}

func TestLessLexicographic(t *testing.T) {
	a := Word{1, 5}
	b := Word{1, 6}
	c := Word{2, 0}
	if !Less(a, b) {
		t.Error("expected a < b")
	}
	if !Less(b, c) {
		t.Error("expected b < c")
	}
	if Less(a, a) {
		t.Error("a should not be less than itself")
	}
}

func TestReverseComplementRoundTrip(t *testing.T) {
	// ACGT -> forward code, and incrementally build the RC word the
	// way Expander mode B does, then compare against a from-scratch RC.
	k := 4
	bases := []uint8{0, 1, 2, 3} // A C G T

	fwd := New(1)
	rc := New(1)
	for i, b := range bases {
		fwd.SHLInsert2(b)
		_ = i
		rc.SHRInsertAt(ReverseComplement2Bit(b), 2*(k-1))
	}
	fwd.Mask(2 * k)

	// direct computation: rc(ACGT) = ACGT (palindrome)
	want := New(1)
	for _, b := range []uint8{0, 1, 2, 3} { // complement("ACGT") reversed = "ACGT"
		want.SHLInsert2(b)
	}
	want.Mask(2 * k)

	if !Equal(rc, want) {
		t.Errorf("rc = %v, want %v", rc, want)
	}
}

func TestFromBasesAndLimbsForBits(t *testing.T) {
	if LimbsForBits(64) != 1 {
		t.Errorf("LimbsForBits(64) = %d, want 1", LimbsForBits(64))
	}
	if LimbsForBits(65) != 2 {
		t.Errorf("LimbsForBits(65) = %d, want 2", LimbsForBits(65))
	}

	w := FromBases([]uint8{0, 0, 0, 1}) // AAAC
	w.Mask(8)
	if w[0] != 0b00000001 {
		t.Errorf("got %08b, want 00000001", w[0])
	}
}
