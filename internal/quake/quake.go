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

// Package quake implements Quake-mode quality weighting: every k-mer
// occurrence contributes a probability (the product of its bases'
// per-base correctness probabilities, derived from Phred quality
// scores) instead of a unit count, and a k-mer's multiplicity becomes
// the sum of those probabilities.
package quake

import "math"

const maxPhred = 93

var probQual [maxPhred + 1]float64
var invProbQual [maxPhred + 1]float64

func init() {
	for q := 0; q <= maxPhred; q++ {
		p := 1 - math.Pow(10, -float64(q)/10)
		if p < 0.25 {
			p = 0.25
		}
		probQual[q] = p
		invProbQual[q] = 1 / p
	}
}

// ProbOfQual returns the probability that a base with the given
// Phred score (already offset from the FASTQ ASCII encoding) was
// called correctly, clamped to the same [0.25, 1) range as the
// original 94-entry table.
func ProbOfQual(phred int) float64 {
	if phred < 0 {
		phred = 0
	}
	if phred > maxPhred {
		phred = maxPhred
	}
	return probQual[phred]
}

func invProbOfQual(phred int) float64 {
	if phred < 0 {
		phred = 0
	}
	if phred > maxPhred {
		phred = maxPhred
	}
	return invProbQual[phred]
}

// Rolling maintains the probability of the current k-mer as bases
// slide through a window of width k, updating in O(1) per base by
// multiplying in the new base's probability and dividing out the
// oldest one (via its precomputed inverse) rather than recomputing
// the full product each step.
type Rolling struct {
	k      int
	window []int // ring buffer of the Phred scores currently in the window
	head   int
	filled int
	prob   float64
}

// NewRolling creates a rolling k-mer probability accumulator for
// k-mers of width k.
func NewRolling(k int) *Rolling {
	return &Rolling{k: k, window: make([]int, k), prob: 1}
}

// Push feeds the next base's Phred score into the window. ready is
// true once at least k bases have been pushed, at which point prob is
// the current k-mer's probability.
func (r *Rolling) Push(phred int) (prob float64, ready bool) {
	if r.filled < r.k {
		r.window[r.filled] = phred
		r.prob *= ProbOfQual(phred)
		r.filled++
		if r.filled < r.k {
			return 0, false
		}
		return r.prob, true
	}

	oldest := r.window[r.head]
	r.prob *= invProbOfQual(oldest)
	r.prob *= ProbOfQual(phred)
	r.window[r.head] = phred
	r.head = (r.head + 1) % r.k
	return r.prob, true
}

// Sum accumulates per-occurrence k-mer probabilities as float64 and
// narrows to float32 only at emission time, per the Quake-mode
// counter format.
type Sum struct {
	total float64
}

// Add folds in one occurrence's k-mer probability.
func (s *Sum) Add(prob float64) { s.total += prob }

// Float32 narrows the running sum to the 32-bit float the on-disk
// counter format stores.
func (s *Sum) Float32() float32 { return float32(s.total) }

// Float64 returns the full-precision running sum, for comparisons
// against cutoff_min/cutoff_max before narrowing.
func (s *Sum) Float64() float64 { return s.total }
