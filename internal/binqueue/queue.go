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

// Package binqueue provides the monitor-style blocking queues that
// connect the pipeline's stages, and the bin descriptor table shared
// by every stage.
package binqueue

import "sync"

// Queue is a classic monitor: mutex, condition variable, writer
// count, and a completed flag. Push appends and signals if the queue
// was empty; Pop blocks while empty and writers remain, and returns
// ok=false once the last writer has called MarkCompleted and the
// queue has drained.
type Queue[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []T
	writers int
	done    bool
}

// New creates a queue with the given number of producers. A queue
// with zero writers is already logically drained once empty.
func New[T any](writers int) *Queue[T] {
	q := &Queue[T]{writers: writers}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item and wakes one blocked popper if the queue was
// empty.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	wasEmpty := len(q.items) == 0
	q.items = append(q.items, v)
	q.mu.Unlock()
	if wasEmpty {
		q.cond.Signal()
	}
}

// Pop removes and returns the oldest item. ok is false only once the
// queue is empty and every writer has finished.
func (q *Queue[T]) Pop() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if q.writers == 0 || q.done {
			return v, false
		}
		q.cond.Wait()
	}
	v, q.items = q.items[0], q.items[1:]
	return v, true
}

// WriterDone decrements the writer count; when it reaches zero every
// blocked popper is woken to observe end-of-stream.
func (q *Queue[T]) WriterDone() {
	q.mu.Lock()
	if q.writers > 0 {
		q.writers--
	}
	done := q.writers == 0
	q.mu.Unlock()
	if done {
		q.cond.Broadcast()
	}
}

// MarkCompleted force-ends the queue regardless of the writer count;
// pipeline.Run calls it on the sort-ready queue once every bin has
// been pushed.
func (q *Queue[T]) MarkCompleted() {
	q.mu.Lock()
	q.done = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Len reports the current backlog, for diagnostics only.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
