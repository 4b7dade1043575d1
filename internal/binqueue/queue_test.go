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
	"testing"
	"time"
)

func TestPushPopFIFO(t *testing.T) {
	q := New[int](1)
	q.Push(1)
	q.Push(2)
	q.Push(3)
	for _, want := range []int{1, 2, 3} {
		v, ok := q.Pop()
		if !ok || v != want {
			t.Fatalf("got %d,%v want %d,true", v, ok, want)
		}
	}
}

func TestPopBlocksThenCompletes(t *testing.T) {
	q := New[int](1)
	done := make(chan bool)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	select {
	case <-done:
		t.Fatal("Pop returned before WriterDone or Push")
	case <-time.After(30 * time.Millisecond):
	}

	q.WriterDone()
	if ok := <-done; ok {
		t.Fatal("expected ok=false once drained with zero writers")
	}
}

func TestMarkCompletedWakesAllPoppers(t *testing.T) {
	q := New[int](3)
	var wg sync.WaitGroup
	results := make([]bool, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = q.Pop()
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	q.MarkCompleted()
	wg.Wait()
	for i, ok := range results {
		if ok {
			t.Errorf("popper %d got ok=true after MarkCompleted", i)
		}
	}
}

func TestWriterDoneOnlyUnblocksAfterLastWriter(t *testing.T) {
	q := New[int](2)
	done := make(chan bool)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	q.WriterDone() // one of two writers finishes; queue must still block
	select {
	case <-done:
		t.Fatal("Pop returned after only one of two writers finished")
	case <-time.After(30 * time.Millisecond):
	}

	q.Push(42)
	if ok := <-done; !ok {
		t.Fatal("expected ok=true once an item arrives")
	}
}
