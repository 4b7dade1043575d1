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

// Package compactor walks a non-decreasing stream of k-mer
// occurrences, groups runs of equal k-mers, applies the cutoff_min /
// cutoff_max / counter_max classification, and emits the packed
// suffix buffer and LUT for a bin.
package compactor

import (
	"encoding/binary"
	"math"

	"github.com/shenwei356/kmcgo/internal/kmerword"
)

// Source yields k-mer occurrences in non-decreasing k-mer order. A
// plain-mode source yields weight 1 per raw occurrence; a Quake-mode
// source yields the occurrence's quality probability; a flattened and
// re-sorted k+x-mer source yields the RLE count of the run that
// produced each slide.
type Source interface {
	Next() (kmer kmerword.Word, weight float64, ok bool)
}

// sliceSource adapts an already-sorted, ungrouped slice of k-mers
// (one entry per raw occurrence) into a Source, for the max_x == 0
// path where the radix-sorted buffer already holds every occurrence.
type sliceSource struct {
	kmers []kmerword.Word
	i     int
}

// FromSortedKmers builds a Source over the radix-sorted k-mer buffer
// used when max_x == 0 (one entry per raw occurrence, weight 1 each).
func FromSortedKmers(kmers []kmerword.Word) Source { return &sliceSource{kmers: kmers} }

func (s *sliceSource) Next() (kmerword.Word, float64, bool) {
	if s.i >= len(s.kmers) {
		return nil, 0, false
	}
	k := s.kmers[s.i]
	s.i++
	return k, 1, true
}

// weightedSliceSource is the Quake-mode counterpart: one occurrence
// per entry, each carrying its own quality probability instead of a
// unit weight.
type weightedSliceSource struct {
	kmers   []kmerword.Word
	weights []float64
	i       int
}

// FromSortedQuakeKmers builds a Source over a sorted buffer of
// k-mers, each paired with its per-occurrence probability.
func FromSortedQuakeKmers(kmers []kmerword.Word, weights []float64) Source {
	return &weightedSliceSource{kmers: kmers, weights: weights}
}

func (s *weightedSliceSource) Next() (kmerword.Word, float64, bool) {
	if s.i >= len(s.kmers) {
		return nil, 0, false
	}
	k, w := s.kmers[s.i], s.weights[s.i]
	s.i++
	return k, w, true
}

// weightedKmerSource pairs a sorted k-mer slice with integer weights,
// the shape produced by sorting kxmerset.Flatten's output (the
// max_x>0 path) before handing it to Compact.
type weightedKmerSource struct {
	kmers   []kmerword.Word
	weights []uint64
	i       int
}

// FromSortedWeightedKmers builds a Source over a slice of k-mers
// already sorted ascending, each paired with an integer run count
// (e.g. the flattened, re-sorted output of kxmerset.Flatten).
func FromSortedWeightedKmers(kmers []kmerword.Word, weights []uint64) Source {
	return &weightedKmerSource{kmers: kmers, weights: weights}
}

func (s *weightedKmerSource) Next() (kmerword.Word, float64, bool) {
	if s.i >= len(s.kmers) {
		return nil, 0, false
	}
	k, w := s.kmers[s.i], s.weights[s.i]
	s.i++
	return k, float64(w), true
}

// Options configures how a bin's grouped k-mer counts are classified
// and packed.
type Options struct {
	K            int
	LUTPrefixLen int
	CutoffMin    uint32
	CutoffMax    uint32
	CounterMax   uint32
	Quake        bool
}

// Stats are the four running counters the spec requires.
type Stats struct {
	NUnique    uint64
	NCutoffMin uint64
	NCutoffMax uint64
	NTotal     uint64
}

// byteLength is the BYTE_LOG(x) helper: the number of bytes needed to
// hold x as an unsigned little-endian integer.
func byteLength(x uint64) int {
	switch {
	case x < 1<<8:
		return 1
	case x < 1<<16:
		return 2
	case x < 1<<24:
		return 3
	case x < 1<<32:
		return 4
	case x < 1<<40:
		return 5
	case x < 1<<48:
		return 6
	case x < 1<<56:
		return 7
	default:
		return 8
	}
}

// counterSize returns the number of bytes used to store a count,
// min(BYTE_LOG(cutoff_max), BYTE_LOG(counter_max)), or 4 in Quake
// mode where the counter is always a float32.
func counterSize(opt Options) int {
	if opt.Quake {
		return 4
	}
	a := byteLength(uint64(opt.CutoffMax))
	b := byteLength(uint64(opt.CounterMax))
	if a < b {
		return a
	}
	return b
}

// suffixLen is the number of low-order symbols packed per k-mer (k
// minus the LUT prefix length) and its packed byte width.
func suffixLen(opt Options) (symbols, bytes int) {
	symbols = opt.K - opt.LUTPrefixLen
	bytes = (symbols*2 + 7) / 8
	return
}

// lutIndex extracts the high lut_prefix_len symbols of kmer (its
// prefix) as a LUT slot index.
func lutIndex(kmer kmerword.Word, opt Options) uint64 {
	k := opt.K
	var idx uint64
	for i := 0; i < opt.LUTPrefixLen; i++ {
		idx = idx<<2 | uint64(kmer.Get2Bits(2*(k-1-i)))
	}
	return idx
}

// packSuffix writes the low `symbols` bases of kmer into dst,
// most-significant base first, matching the 2-bit packing convention
// used everywhere else in this module.
func packSuffix(kmer kmerword.Word, k, symbols int, dst []byte) {
	for i := 0; i < symbols; i++ {
		base := kmer.Get2Bits(2 * (symbols - 1 - i))
		byteIdx := i / 4
		shift := uint(6 - 2*(i%4))
		dst[byteIdx] |= base << shift
	}
}

// Compact drains src, grouping consecutive equal k-mers, classifying
// each completed group against cutoff_min/cutoff_max/counter_max, and
// returns the packed suffix buffer, the LUT, and the four counters.
func Compact(src Source, opt Options) (suffix []byte, lut []uint64, stats Stats) {
	symbols, suffixBytes := suffixLen(opt)
	cSize := counterSize(opt)
	recLen := suffixBytes + cSize

	lutSize := uint64(1) << uint(2*opt.LUTPrefixLen)
	lut = make([]uint64, lutSize)

	var cur kmerword.Word
	var weight float64
	have := false

	flush := func() {
		if !have {
			return
		}
		stats.NTotal += uint64(math.Round(weight))

		switch {
		case weight < float64(opt.CutoffMin):
			stats.NCutoffMin++
		case weight > float64(opt.CutoffMax):
			stats.NCutoffMax++
		default:
			stats.NUnique++
			emitted := clampCount(opt, weight)
			rec := make([]byte, recLen)
			packSuffix(cur, opt.K, symbols, rec)
			if opt.Quake {
				bits := math.Float32bits(float32(emitted))
				binary.LittleEndian.PutUint32(rec[suffixBytes:], bits)
			} else {
				putUintN(rec[suffixBytes:], uint64(emitted), cSize)
			}
			suffix = append(suffix, rec...)
			lut[lutIndex(cur, opt)]++
		}
	}

	for {
		kmer, w, ok := src.Next()
		if !ok {
			break
		}
		if have && kmerword.Equal(kmer, cur) {
			weight += w
			continue
		}
		flush()
		cur, weight, have = kmer, w, true
	}
	flush()

	return suffix, lut, stats
}

func clampCount(opt Options, weight float64) float64 {
	if opt.Quake {
		return weight
	}
	if weight > float64(opt.CounterMax) {
		return float64(opt.CounterMax)
	}
	return weight
}

func putUintN(dst []byte, v uint64, n int) {
	for i := 0; i < n; i++ {
		dst[i] = byte(v >> uint(8*i))
	}
}
