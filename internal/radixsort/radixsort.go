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

// Package radixsort implements the bin sorter's stable LSB radix
// sort: a byte-stride generic variant for multi-limb records and a
// uint64-specialized variant for the common single-limb case.
package radixsort

import "sync"

const (
	buckets     = 256
	bufferWidth = 32
)

// scatterBuffer is the BUFFER_WIDTH-wide per-bucket coalescing buffer
// each thread uses during the scatter phase, pulled from a shared
// pool keyed by goroutine rather than allocated per pass.
type scatterBuffer struct {
	buf [buckets][bufferWidth]int
	n   [buckets]int
}

var scatterPool = sync.Pool{New: func() any { return new(scatterBuffer) }}

func minThreadChunk() int { return 4 * bufferWidth }

// threadRanges splits [0, size) into up to nThreads contiguous,
// near-equal ranges. It never returns fewer than 1 range and never
// produces a range smaller than minThreadChunk unless size itself is
// smaller, matching the single-threaded fallback edge case.
func threadRanges(size, nThreads int) [][2]int {
	if nThreads < 1 {
		nThreads = 1
	}
	if size < nThreads*minThreadChunk() {
		return [][2]int{{0, size}}
	}
	chunk := size / nThreads
	ranges := make([][2]int, 0, nThreads)
	start := 0
	for t := 0; t < nThreads; t++ {
		end := start + chunk
		if t == nThreads-1 {
			end = size
		}
		ranges = append(ranges, [2]int{start, end})
		start = end
	}
	return ranges
}

// Bytes stable-sorts a flat array of fixed-stride records by their
// first recLen key bytes, least-significant byte first. data and tmp
// must be equal length and a multiple of recStride; tmp is used as
// scratch and its contents are undefined on return. It reports which
// of the two buffers holds the sorted result.
func Bytes(data, tmp []byte, recStride, recLen, nThreads int) (sorted []byte, fromTmp bool) {
	if recLen == 0 {
		return data, false
	}
	nRec := len(data) / recStride
	src, dst := data, tmp
	for pass := 0; pass < recLen; pass++ {
		bytesPassStable(src, dst, recStride, pass, nRec, nThreads)
		src, dst = dst, src
	}
	return src, recLen%2 == 1
}

func bytesPassStable(src, dst []byte, recStride, byteOff, nRec, nThreads int) {
	ranges := threadRanges(nRec, nThreads)
	nt := len(ranges)

	counts := make([][buckets]int, nt)
	var wg sync.WaitGroup
	for t, r := range ranges {
		wg.Add(1)
		go func(t int, r [2]int) {
			defer wg.Done()
			var c [buckets]int
			for i := r[0]; i < r[1]; i++ {
				c[src[i*recStride+byteOff]]++
			}
			counts[t] = c
		}(t, r)
	}
	wg.Wait()

	// Prefix across buckets first, then across threads within a
	// bucket, so thread t's records for bucket b land right after
	// thread t-1's records for the same bucket: this is what makes
	// the pass stable.
	var total [buckets]int
	for b := 0; b < buckets; b++ {
		for t := 0; t < nt; t++ {
			total[b] += counts[t][b]
		}
	}
	var bucketStart [buckets]int
	acc := 0
	for b := 0; b < buckets; b++ {
		bucketStart[b] = acc
		acc += total[b]
	}

	offsets := make([][buckets]int, nt)
	for b := 0; b < buckets; b++ {
		pos := bucketStart[b]
		for t := 0; t < nt; t++ {
			offsets[t][b] = pos
			pos += counts[t][b]
		}
	}

	for t, r := range ranges {
		wg.Add(1)
		go func(t int, r [2]int) {
			defer wg.Done()
			sb := scatterPool.Get().(*scatterBuffer)
			*sb = scatterBuffer{}
			off := offsets[t]
			flush := func(b byte) {
				n := sb.n[b]
				for j := 0; j < n; j++ {
					srcIdx := sb.buf[b][j]
					copy(dst[off[b]*recStride:], src[srcIdx*recStride:srcIdx*recStride+recStride])
					off[b]++
				}
				sb.n[b] = 0
			}
			for i := r[0]; i < r[1]; i++ {
				b := src[i*recStride+byteOff]
				if sb.n[b] == bufferWidth {
					flush(b)
				}
				sb.buf[b][sb.n[b]] = i
				sb.n[b]++
			}
			for b := 0; b < buckets; b++ {
				flush(byte(b))
			}
			scatterPool.Put(sb)
		}(t, r)
	}
	wg.Wait()
}
