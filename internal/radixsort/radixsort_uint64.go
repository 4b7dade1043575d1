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

package radixsort

import "sync"

type scatterBuffer64 struct {
	buf [buckets][bufferWidth]uint64
	n   [buckets]int
}

var scatterPool64 = sync.Pool{New: func() any { return new(scatterBuffer64) }}

// byteOf extracts key byte `pass` from a uint64 record, pass 0 being
// the least significant byte — the single-limb fast path of the
// stride-generic byte order rule.
func byteOf(v uint64, pass int) byte {
	return byte(v >> uint(pass*8))
}

// Uint64s stable-sorts records that fit in a single uint64 (the
// common S=1 case), over the low recLen key bytes. It mirrors Bytes
// but skips the stride arithmetic entirely.
func Uint64s(data, tmp []uint64, recLen, nThreads int) (sorted []uint64, fromTmp bool) {
	if recLen == 0 {
		return data, false
	}
	src, dst := data, tmp
	for pass := 0; pass < recLen; pass++ {
		uint64PassStable(src, dst, pass, nThreads)
		src, dst = dst, src
	}
	return src, recLen%2 == 1
}

func uint64PassStable(src, dst []uint64, pass, nThreads int) {
	n := len(src)
	ranges := threadRanges(n, nThreads)
	nt := len(ranges)

	counts := make([][buckets]int, nt)
	var wg sync.WaitGroup
	for t, r := range ranges {
		wg.Add(1)
		go func(t int, r [2]int) {
			defer wg.Done()
			var c [buckets]int
			for i := r[0]; i < r[1]; i++ {
				c[byteOf(src[i], pass)]++
			}
			counts[t] = c
		}(t, r)
	}
	wg.Wait()

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
			sb := scatterPool64.Get().(*scatterBuffer64)
			*sb = scatterBuffer64{}
			off := offsets[t]
			flush := func(b byte) {
				n := sb.n[b]
				for j := 0; j < n; j++ {
					dst[off[b]] = sb.buf[b][j]
					off[b]++
				}
				sb.n[b] = 0
			}
			for i := r[0]; i < r[1]; i++ {
				v := src[i]
				b := byteOf(v, pass)
				if sb.n[b] == bufferWidth {
					flush(b)
				}
				sb.buf[b][sb.n[b]] = v
				sb.n[b]++
			}
			for b := 0; b < buckets; b++ {
				flush(byte(b))
			}
			scatterPool64.Put(sb)
		}(t, r)
	}
	wg.Wait()
}
