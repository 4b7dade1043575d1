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

// Package collab pins the interfaces of the two external collaborators
// the bin-processing core treats as given: the splitter that produces
// bin files (BinSource) and the KMC-style database writer that
// consumes compacted bins (DatabaseWriter). Only trivial in-memory and
// filesystem implementations live here; the real splitter and database
// writer are out of this core's scope.
package collab

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"

	"github.com/shenwei356/kmcgo/internal/binqueue"
)

// BinDescriptor is what the splitter hands the core once a bin is
// closed: enough of spec.md §3's bin metadata entry for the pipeline
// to register it in the BinDescTable and enqueue it for sorting.
type BinDescriptor struct {
	BinID uint32
	Desc  binqueue.BinDesc
}

// BinSource is the splitter's output interface: it produces compressed
// super-k-mer bin files and registers their metadata. The core only
// ever consumes what it emits.
type BinSource interface {
	Bins() <-chan BinDescriptor
}

// DatabaseWriter is the downstream KMC-style database writer. WriteBin
// is called once per compacted bin; bins arrive out of bin-id order.
type DatabaseWriter interface {
	WriteBin(result binqueue.CompactedBin) error
}

// MemoryBinSource is a BinSource backed by an in-memory list of
// (descriptor, raw bytes) pairs, used by tests and by the binworker
// package's own DataSource adapter below.
type MemoryBinSource struct {
	bins []memBin
}

type memBin struct {
	id   uint32
	desc binqueue.BinDesc
	data []byte
}

// NewMemoryBinSource builds a BinSource with no bins yet; call AddBin
// to register each one before Bins is consumed.
func NewMemoryBinSource() *MemoryBinSource {
	return &MemoryBinSource{}
}

// AddBin registers one bin's descriptor and raw packed-record bytes.
// TmpSize is filled in from len(data) if the caller left it zero,
// matching the splitter's normal "close bin, finalize metadata" step;
// TmpNRec is kept as given.
func (m *MemoryBinSource) AddBin(id uint32, desc binqueue.BinDesc, data []byte) {
	if desc.TmpSize == 0 {
		desc.TmpSize = len(data)
	}
	desc.File = memoryFileName(id)
	m.bins = append(m.bins, memBin{id: id, desc: desc, data: data})
}

func memoryFileName(id uint32) string {
	return "mem://bin/" + itoa(id)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// Bins streams every registered bin over a closed, unbuffered-enough
// channel; the pipeline drains it once.
func (m *MemoryBinSource) Bins() <-chan BinDescriptor {
	ch := make(chan BinDescriptor, len(m.bins))
	for _, b := range m.bins {
		ch <- BinDescriptor{BinID: b.id, Desc: b.desc}
	}
	close(ch)
	return ch
}

// ReadBin implements binworker.DataSource by looking up the
// previously registered bytes for desc.File.
func (m *MemoryBinSource) ReadBin(desc *binqueue.BinDesc) ([]byte, error) {
	for _, b := range m.bins {
		if b.desc.File == desc.File {
			return b.data, nil
		}
	}
	return nil, errors.Errorf("collab: no in-memory bytes registered for file %q", desc.File)
}

// MemoryDatabaseWriter is a DatabaseWriter that just collects every
// CompactedBin it is handed, guarded by a mutex since bins arrive
// concurrently from several sorter goroutines.
type MemoryDatabaseWriter struct {
	mu   sync.Mutex
	bins []binqueue.CompactedBin
}

// NewMemoryDatabaseWriter returns an empty collector.
func NewMemoryDatabaseWriter() *MemoryDatabaseWriter {
	return &MemoryDatabaseWriter{}
}

// WriteBin appends result to the collected bins.
func (w *MemoryDatabaseWriter) WriteBin(result binqueue.CompactedBin) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bins = append(w.bins, result)
	return nil
}

// Bins returns every bin written so far, in arrival order.
func (w *MemoryDatabaseWriter) Bins() []binqueue.CompactedBin {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]binqueue.CompactedBin, len(w.bins))
	copy(out, w.bins)
	return out
}

// FileBinSource is a filesystem-backed BinSource, the shape a real CLI
// run uses: one pre-split bin file per bin_id under a directory,
// mirroring the original counter's single-writer append-only bin file
// abstraction (mem_disk_file.cpp) now that appends have already
// happened upstream of this core and the files are closed and
// read-only by the time the core sees them.
type FileBinSource struct {
	descs []BinDescriptor
}

// NewFileBinSource wraps a slice of already-resolved descriptors (file
// path, size, and kmer parameters filled in by the caller, typically
// from a directory listing plus a sidecar metadata file).
func NewFileBinSource(descs []BinDescriptor) *FileBinSource {
	return &FileBinSource{descs: descs}
}

func (f *FileBinSource) Bins() <-chan BinDescriptor {
	ch := make(chan BinDescriptor, len(f.descs))
	for _, d := range f.descs {
		ch <- d
	}
	close(ch)
	return ch
}

// ReadBin reads desc.File from disk in full; it does not support
// partial/streamed reads because the arena's reservation already sizes
// the input-file role to hold the whole bin. A ".gz" bin file is
// transparently inflated with pgzip, the same compressor the teacher
// uses for its own large on-disk artifacts.
func (f *FileBinSource) ReadBin(desc *binqueue.BinDesc) ([]byte, error) {
	if strings.HasSuffix(desc.File, ".gz") {
		return readGzipFile(desc.File)
	}
	data, err := os.ReadFile(desc.File)
	if err != nil {
		return nil, errors.Wrapf(err, "reading bin file %s", desc.File)
	}
	return data, nil
}

func readGzipFile(path string) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening compressed bin file %s", path)
	}
	defer fh.Close()

	gz, err := pgzip.NewReader(fh)
	if err != nil {
		return nil, errors.Wrapf(err, "opening gzip stream for %s", path)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, errors.Wrapf(err, "inflating bin file %s", path)
	}
	return data, nil
}
