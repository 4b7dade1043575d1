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

// Package expander decompacts a bin's raw byte stream into k-mers or
// k+x-mers, in the four modes selected by (max_x > 0, both_strands).
package expander

// A bin's byte stream is a sequence of self-delimiting records. Each
// record starts with one byte giving additional_symbols (the number
// of bases beyond the first k), followed by the packed bases for
// k+additional_symbols symbols, 2 bits each, most-significant base
// first within a byte, padded up to the next byte boundary so every
// record starts byte-aligned — this is what makes a splitter's
// segment boundaries for mode D safe to snap to record starts. In
// Quake mode, one raw byte of Phred quality per base follows the
// packed-bases block.
//
// This record layout (one contiguous 2-bit block for all k+add bases,
// rather than a separate k-symbol block and an extension block with
// the shared boundary byte reused) is a deliberate, self-consistent
// redefinition of the pinned external bin-file format: EncodeRecord
// and Reader are the only producer and consumer of it in this module,
// so nothing outside this package needs to agree on the split. See
// DESIGN.md.
const recordHeaderLen = 1

func packedLen(nBases int) int { return (nBases*2 + 7) / 8 }

// recordLen returns the total byte length of a record holding k+add
// bases, including a trailing one-byte-per-base quality block when
// quake is set.
func recordLen(k, add int, quake bool) int {
	n := recordHeaderLen + packedLen(k+add)
	if quake {
		n += k + add
	}
	return n
}

// symbolAt returns the 2-bit base at symbol index i (0-based) within
// the packed region of a record, i.e. after the header byte.
func symbolAt(packed []byte, i int) uint8 {
	byteIdx := i / 4
	shift := uint(6 - 2*(i%4))
	return (packed[byteIdx] >> shift) & 3
}

// Record is one decoded self-delimiting input record.
type Record struct {
	AdditionalSymbols int
	Bytes             []byte // recordLen(k, AdditionalSymbols, Quake) bytes
	Quake             bool   // whether Bytes carries a trailing per-base quality block
}

// Reader walks a bin's byte stream, yielding records in order.
type Reader struct {
	data  []byte
	pos   int
	k     int
	quake bool
}

// NewReader wraps data for a bin whose base k-mer width is k symbols.
// quake selects the Quake-mode record layout (a trailing per-base
// quality byte block).
func NewReader(data []byte, k int, quake bool) *Reader {
	return &Reader{data: data, k: k, quake: quake}
}

// Next returns the next record, or ok=false at end of stream.
func (r *Reader) Next() (rec Record, ok bool) {
	if r.pos >= len(r.data) {
		return Record{}, false
	}
	add := int(r.data[r.pos])
	n := recordLen(r.k, add, r.quake)
	rec = Record{AdditionalSymbols: add, Bytes: r.data[r.pos : r.pos+n], Quake: r.quake}
	r.pos += n
	return rec, true
}

// Pos reports the current byte offset into the stream, used by mode D
// to snap thread segment boundaries to record starts.
func (r *Reader) Pos() int { return r.pos }

// Base returns the i-th base (0-based) of a decoded record, i
// ranging over [0, k+AdditionalSymbols).
func (rec Record) Base(i int) uint8 {
	return symbolAt(rec.Bytes[recordHeaderLen:], i)
}

// NBases is the total number of bases this record carries.
func (rec Record) NBases(k int) int { return k + rec.AdditionalSymbols }

// Qual returns the i-th base's raw Phred quality score (0-based), for
// a Quake-mode record built with EncodeRecordWithQuality. k must be
// the same base k-mer width the record was decoded with.
func (rec Record) Qual(i, k int) int {
	off := recordHeaderLen + packedLen(rec.NBases(k))
	return int(rec.Bytes[off+i])
}

// EncodeRecord packs a record for a given k from a slice of 2-bit
// bases (length k+additional_symbols); it is the splitter-side
// counterpart used by tests and by any caller staging records ahead
// of the bin queue.
func EncodeRecord(bases []uint8, k int) []byte {
	add := len(bases) - k
	out := make([]byte, recordLen(k, add, false))
	out[0] = byte(add)
	packed := out[recordHeaderLen:]
	for i, b := range bases {
		byteIdx := i / 4
		shift := uint(6 - 2*(i%4))
		packed[byteIdx] |= (b & 3) << shift
	}
	return out
}

// EncodeRecordWithQuality is EncodeRecord's Quake-mode counterpart: it
// appends one raw Phred-quality byte per base after the packed-bases
// block, in the same order as bases. qual must have the same length
// as bases.
func EncodeRecordWithQuality(bases []uint8, qual []int, k int) []byte {
	add := len(bases) - k
	out := make([]byte, recordLen(k, add, true))
	out[0] = byte(add)
	packed := out[recordHeaderLen : recordHeaderLen+packedLen(len(bases))]
	for i, b := range bases {
		byteIdx := i / 4
		shift := uint(6 - 2*(i%4))
		packed[byteIdx] |= (b & 3) << shift
	}
	qualOff := recordHeaderLen + packedLen(len(bases))
	for i, q := range qual {
		out[qualOff+i] = byte(q)
	}
	return out
}
