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

package arena

import (
	"sync"
	"testing"
	"time"
)

func smallSizes(odd bool) Sizes {
	return Sizes{
		FileSize:         100,
		KxmersSize:       200,
		OutBufferSize:    50,
		LUTSize:          20,
		KxmerCounterSize: 10,
		OddPhase:         odd,
	}
}

func TestPartitionEvenVsOdd(t *testing.T) {
	p1e, p2e := partition(smallSizes(false))
	if p1e != 210 { // KxmersSize + KxmerCounterSize
		t.Errorf("even part1 = %d, want 210", p1e)
	}
	if p2e != 200 { // max(100, 200, 70)
		t.Errorf("even part2 = %d, want 200", p2e)
	}

	p1o, p2o := partition(smallSizes(true))
	if p1o != 210 { // max(210, 100)
		t.Errorf("odd part1 = %d, want 210", p1o)
	}
	if p2o != 200 { // max(200, 70)
		t.Errorf("odd part2 = %d, want 200", p2o)
	}
}

func TestReserveAndFreeRoundTrip(t *testing.T) {
	a := New(4096)
	r := a.Reserve(1, smallSizes(false))
	if r.Length != 410 {
		t.Errorf("reservation length = %d, want 410", r.Length)
	}
	buf := a.Buffer()
	if len(r.Role(buf, RoleInputFile)) != 100 {
		t.Errorf("input file role size mismatch")
	}
	if len(r.Role(buf, RoleLUT)) != 20 {
		t.Errorf("lut role size mismatch")
	}
	if !a.NoOverlap() {
		t.Fatal("expected no overlap with a single reservation")
	}
	a.Free(1)
	if len(a.live) != 0 {
		t.Errorf("expected no live reservations after Free")
	}
}

func TestGrowthOnlyWhenEmpty(t *testing.T) {
	a := New(64)
	r1 := a.Reserve(1, smallSizes(false))
	before := len(a.buf)

	done := make(chan struct{})
	go func() {
		a.Reserve(2, smallSizes(false))
		close(done)
	}()

	// bin 2's reserve must block: the arena is not empty, so it must
	// not silently grow around bin 1's live reservation.
	select {
	case <-done:
		t.Fatal("bin 2 reserved without bin 1 freeing, arena should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	a.Free(1)
	<-done

	if len(a.buf) < before {
		t.Errorf("buffer shrank unexpectedly")
	}
	_ = r1
}

func TestNoOverlapUnderConcurrentReserveFree(t *testing.T) {
	a := New(8192)
	var wg sync.WaitGroup
	for i := uint32(0); i < 8; i++ {
		wg.Add(1)
		go func(id uint32) {
			defer wg.Done()
			for n := 0; n < 20; n++ {
				r := a.Reserve(id, smallSizes(n%2 == 1))
				if !a.NoOverlap() {
					t.Errorf("overlap detected with bin %d live", id)
				}
				_ = r
				a.Free(id)
			}
		}(i)
	}
	wg.Wait()
}
