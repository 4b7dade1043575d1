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

// Package arena manages a single shared byte buffer carved up into
// per-bin reservations, each split into six role regions (input file,
// input array, tmp array, suffix/output, LUT, kxmer counters). A bin
// asks for a reservation sized from its sort-phase parity; the arena
// places it in the lowest-offset free gap wide enough (first fit, with
// no preference for the space after the most recent reservation),
// grows the buffer when it is completely empty, and blocks callers
// otherwise until enough space is freed.
package arena

import (
	"sync"

	"github.com/rdleal/intervalst/interval"
	"github.com/twotwotwo/sorts/sortutil"
)

// Role names one of the six memory-bin purposes a reservation can be
// sliced into, mirroring CMemoryBins::mem_bin_allocation in the
// original counter.
type Role int

const (
	RoleInputFile Role = iota
	RoleInputArray
	RoleTmpArray
	RoleSuffix
	RoleLUT
	RoleKxmerCounters
	numRoles
)

// Sizes carries the byte sizes needed by a single bin's sorting pass,
// the same values CMemoryBins::reserve derives from bin statistics.
type Sizes struct {
	FileSize         int
	KxmersSize       int
	OutBufferSize    int
	LUTSize          int
	KxmerCounterSize int
	OddPhase         bool // true when the number of radix-sort passes is odd
}

// partition returns (part1, part2) byte sizes following the parity
// rule in spec.md §4.1: the role regions interleave differently
// depending on whether the bin needs an even or odd number of
// radix-sort passes, because that determines which half holds the
// final sorted output.
func partition(s Sizes) (part1, part2 int) {
	if !s.OddPhase {
		part1 = s.KxmersSize + s.KxmerCounterSize
		part2 = max3(s.FileSize, s.KxmersSize, s.OutBufferSize+s.LUTSize)
	} else {
		part1 = max2(s.KxmersSize+s.KxmerCounterSize, s.FileSize)
		part2 = max2(s.KxmersSize, s.OutBufferSize+s.LUTSize)
	}
	return
}

func max2(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func max3(a, b, c int) int {
	return max2(max2(a, b), c)
}

type roleSlot struct {
	active bool
	offset int
	length int
}

// Reservation is a contiguous region of the arena's buffer assigned to
// one bin, sliced into role sub-regions.
type Reservation struct {
	BinID  uint32
	Offset int
	Length int

	roles [numRoles]roleSlot
}

// Role returns the byte slice for the requested role within this
// reservation's share of the arena buffer. It panics if the role was
// not part of the sizing request that produced the reservation, the
// same contract as CMemoryBins::reserve being called with a role the
// bin never requested.
func (r *Reservation) Role(buf []byte, role Role) []byte {
	s := r.roles[role]
	if !s.active {
		panic("arena: role not present in this reservation")
	}
	base := r.Offset + s.offset
	return buf[base : base+s.length]
}

func (r *Reservation) set(role Role, offset, length int) {
	r.roles[role] = roleSlot{active: true, offset: offset, length: length}
}

// buildRoles lays out the six roles within [0, part1+part2) by phase
// parity. Counters sit at 0 and input_file right after them in both
// cases; suffix and LUT always start at part1. When the phase count is
// even, input_array shares the low half with input_file and tmp_array
// starts at part1; when odd, the two swap: input_array starts at part1
// and tmp_array shares the low half with input_file.
func buildRoles(r *Reservation, s Sizes, part1, part2 int) {
	r.set(RoleKxmerCounters, 0, s.KxmerCounterSize)
	if !s.OddPhase {
		r.set(RoleInputFile, s.KxmerCounterSize, s.FileSize)
		r.set(RoleInputArray, s.KxmerCounterSize, s.KxmersSize)
		r.set(RoleTmpArray, part1, s.KxmersSize)
		r.set(RoleSuffix, part1, s.OutBufferSize)
		r.set(RoleLUT, part1+s.OutBufferSize, s.LUTSize)
	} else {
		r.set(RoleInputFile, s.KxmerCounterSize, s.FileSize)
		r.set(RoleInputArray, part1, s.KxmersSize)
		r.set(RoleTmpArray, s.KxmerCounterSize, s.KxmersSize)
		r.set(RoleSuffix, part1, s.OutBufferSize)
		r.set(RoleLUT, part1+s.OutBufferSize, s.LUTSize)
	}
}

type gap struct {
	offset int
	length int
}

// Arena owns one growable byte buffer shared by every bin's sorting
// pass. Space is handed out as Reservations and returned with Free;
// ReserveBlocking parks the caller on a condition variable when the
// request cannot be satisfied immediately and the arena is not empty.
type Arena struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf  []byte
	gaps []gap // free regions, kept sorted by offset via sortutil

	// live maps a bin's current reservation, for Free and for the
	// overlap-freedom check below.
	live map[uint32]*Reservation
	tree *interval.SearchTree[uint32, int]

	growQuantum int
}

func cmpInt(a, b int) int { return a - b }

// New creates an empty arena. growQuantum is the minimum number of
// bytes added each time the buffer has to grow; Reserve always grows
// by at least enough to satisfy the pending request.
func New(growQuantum int) *Arena {
	a := &Arena{
		gaps:        []gap{},
		live:        make(map[uint32]*Reservation),
		tree:        interval.NewSearchTree[uint32](cmpInt),
		growQuantum: growQuantum,
	}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// Reserve blocks until binID can be given a reservation sized for s,
// placing it by first fit over the free gaps in offset order; it keeps
// no record of where earlier reservations were placed. If the
// arena holds no live reservations at all and still cannot fit the
// request, it grows the buffer rather than deadlocking — the arena
// must never block a caller when there is nothing left to free.
func (a *Arena) Reserve(binID uint32, s Sizes) *Reservation {
	part1, part2 := partition(s)
	need := part1 + part2

	a.mu.Lock()
	defer a.mu.Unlock()

	for {
		if off, ok := a.findFit(need); ok {
			if _, overlaps := a.tree.AnyIntersection(off, off+need); overlaps {
				panic("arena: gap bookkeeping diverged from reservation tree")
			}
			r := &Reservation{BinID: binID, Offset: off, Length: need}
			buildRoles(r, s, part1, part2)
			a.commit(off, need)
			a.live[binID] = r
			if err := a.tree.Insert(off, off+need, binID); err != nil {
				panic(err)
			}
			return r
		}

		if len(a.live) == 0 {
			a.grow(need)
			continue
		}

		a.cond.Wait()
	}
}

// findFit scans the free-gap list (kept ordered by offset) for the
// first gap at least need bytes wide.
func (a *Arena) findFit(need int) (int, bool) {
	for _, g := range a.gaps {
		if g.length >= need {
			return g.offset, true
		}
	}
	return 0, false
}

// commit removes [off, off+need) from the free-gap list, splitting or
// shrinking the gap that contained it.
func (a *Arena) commit(off, need int) {
	out := a.gaps[:0]
	for _, g := range a.gaps {
		if off < g.offset || off >= g.offset+g.length {
			out = append(out, g)
			continue
		}
		if off > g.offset {
			out = append(out, gap{offset: g.offset, length: off - g.offset})
		}
		end := off + need
		if end < g.offset+g.length {
			out = append(out, gap{offset: end, length: g.offset + g.length - end})
		}
	}
	a.gaps = out
	a.sortGaps()
}

func (a *Arena) sortGaps() {
	offsets := make([]int, len(a.gaps))
	byOffset := make(map[int]gap, len(a.gaps))
	for i, g := range a.gaps {
		offsets[i] = g.offset
		byOffset[g.offset] = g
	}
	sortutil.Ints(offsets)
	for i, off := range offsets {
		a.gaps[i] = byOffset[off]
	}
}

// grow extends the buffer by at least need bytes (rounded up to
// growQuantum) and appends the new space as one free gap.
func (a *Arena) grow(need int) {
	add := need
	if add < a.growQuantum {
		add = a.growQuantum
	}
	start := len(a.buf)
	a.buf = append(a.buf, make([]byte, add)...)
	a.gaps = append(a.gaps, gap{offset: start, length: add})
	a.sortGaps()
}

// Free releases binID's reservation back to the free list and wakes
// any goroutine blocked in Reserve.
func (a *Arena) Free(binID uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.live[binID]
	if !ok {
		return
	}
	delete(a.live, binID)
	_ = a.tree.Delete(r.Offset, r.Offset+r.Length)

	a.gaps = append(a.gaps, gap{offset: r.Offset, length: r.Length})
	a.mergeGaps()
	a.cond.Broadcast()
}

// mergeGaps coalesces adjacent free regions after a Free, keeping the
// gap list from fragmenting into unusably small pieces.
func (a *Arena) mergeGaps() {
	a.sortGaps()
	merged := a.gaps[:0]
	for _, g := range a.gaps {
		if n := len(merged); n > 0 && merged[n-1].offset+merged[n-1].length == g.offset {
			merged[n-1].length += g.length
			continue
		}
		merged = append(merged, g)
	}
	a.gaps = merged
}

// Buffer returns the arena's backing storage. Callers slice it via
// Reservation.Role rather than indexing it directly.
func (a *Arena) Buffer() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf
}

// NoOverlap reports whether the live reservation set is mutually
// disjoint, a brute-force re-check of the invariant the gap/commit
// bookkeeping and the interval tree are meant to preserve; tests call
// it after randomized Reserve/Free sequences.
func (a *Arena) NoOverlap() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	rs := make([]*Reservation, 0, len(a.live))
	for _, r := range a.live {
		rs = append(rs, r)
	}
	for i := range rs {
		for j := i + 1; j < len(rs); j++ {
			if rs[i].Offset < rs[j].Offset+rs[j].Length && rs[j].Offset < rs[i].Offset+rs[i].Length {
				return false
			}
		}
	}
	return true
}
