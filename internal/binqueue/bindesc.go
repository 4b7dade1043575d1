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

package binqueue

import (
	"sync"

	"github.com/twotwotwo/sorts/sortutil"
	"github.com/zeebo/wyhash"
)

// BinDesc holds everything a BinWorker needs to know about a bin once
// the splitter has finished writing it, besides the raw bytes
// themselves which travel through the bin-parts queue.
type BinDesc struct {
	File         string
	TmpSize      int
	TmpNRec      uint64
	NPlusXRecs   uint64
	BufferSize   int
	KmerLen      int
	MaxX         int
	BothStrands  bool
	LUTPrefixLen int
	CutoffMin    uint32
	CutoffMax    uint32
	CounterMax   uint32
	Quake        bool
}

const binDescShards = 64

// BinDescTable is the append-mostly map from bin id to BinDesc, shared
// between the splitter (writer) and every bin worker (reader). It is
// sharded by wyhash of the bin id so that concurrent writers touching
// different bins rarely contend on the same lock.
type BinDescTable struct {
	shards [binDescShards]struct {
		mu sync.RWMutex
		m  map[uint32]*BinDesc
	}
}

// NewBinDescTable allocates an empty table.
func NewBinDescTable() *BinDescTable {
	t := &BinDescTable{}
	for i := range t.shards {
		t.shards[i].m = make(map[uint32]*BinDesc)
	}
	return t
}

func shardFor(binID uint32) int {
	var buf [4]byte
	buf[0] = byte(binID)
	buf[1] = byte(binID >> 8)
	buf[2] = byte(binID >> 16)
	buf[3] = byte(binID >> 24)
	return int(wyhash.Hash(buf[:], 0) % uint64(binDescShards))
}

// Set records (or replaces) the descriptor for a bin. Splitters call
// this once per bin, before the bin's parts are pushed to the
// bin-parts queue.
func (t *BinDescTable) Set(binID uint32, d *BinDesc) {
	s := &t.shards[shardFor(binID)]
	s.mu.Lock()
	s.m[binID] = d
	s.mu.Unlock()
}

// Read returns the descriptor for a bin, or nil if none was ever set.
func (t *BinDescTable) Read(binID uint32) *BinDesc {
	s := &t.shards[shardFor(binID)]
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[binID]
}

// Append folds in the byte/record counts of one more splitter-written
// part of a bin, creating the descriptor on first use. Several
// splitter goroutines may append to the same still-open bin
// concurrently before it closes.
func (t *BinDescTable) Append(binID uint32, tmpSize int, tmpNRec, nPlusXRecs uint64) {
	s := &t.shards[shardFor(binID)]
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.m[binID]
	if d == nil {
		d = &BinDesc{}
		s.m[binID] = d
	}
	d.TmpSize += tmpSize
	d.TmpNRec += tmpNRec
	d.NPlusXRecs += nPlusXRecs
}

// LargestFittingIn returns, among every bin currently registered, the
// id of the largest whose TmpSize is still <= budget, or ok=false if
// none fits. pipeline.Run does not call it: bins are handed to the
// sorters in the order the BinSource yields them.
func (t *BinDescTable) LargestFittingIn(budget int) (binID uint32, ok bool) {
	var ids []uint64
	sizes := make(map[uint64]int)
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		for id, d := range s.m {
			key := uint64(id)
			ids = append(ids, key)
			sizes[key] = d.TmpSize
		}
		s.mu.RUnlock()
	}
	sortutil.Uint64s(ids)

	best := -1
	var bestID uint64
	for _, id := range ids {
		sz := sizes[id]
		if sz <= budget && sz > best {
			best = sz
			bestID = id
		}
	}
	if best < 0 {
		return 0, false
	}
	return uint32(bestID), true
}
