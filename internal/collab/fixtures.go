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

package collab

import (
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"

	"github.com/shenwei356/kmcgo/internal/expander"
)

var baseCode = map[byte]uint8{'A': 0, 'C': 1, 'G': 2, 'T': 3}

// EncodeRead validates read as strict ACGT DNA (mirroring
// seq.ValidateSeq's use in the teacher's own CLI commands) and packs
// it as one self-delimiting super-k-mer record for k, the format
// package expander's Reader expects.
func EncodeRead(read string, k int) ([]byte, error) {
	if len(read) < k {
		return nil, errors.Errorf("read length %d shorter than k=%d", len(read), k)
	}
	if _, err := seq.NewSeq(seq.DNA, []byte(read)); err != nil {
		return nil, errors.Wrapf(err, "read %q is not valid DNA", read)
	}
	bases := make([]uint8, len(read))
	for i := 0; i < len(read); i++ {
		b, ok := baseCode[read[i]]
		if !ok {
			return nil, errors.Errorf("read %q contains a non-ACGT base at position %d", read, i)
		}
		bases[i] = b
	}
	return expander.EncodeRecord(bases, k), nil
}

// EncodeReads concatenates EncodeRead's output for every read into one
// bin byte stream, the shape a splitter would have written to a bin
// file before closing it.
func EncodeReads(reads []string, k int) ([]byte, error) {
	var out []byte
	for _, r := range reads {
		rec, err := EncodeRead(r, k)
		if err != nil {
			return nil, err
		}
		out = append(out, rec...)
	}
	return out, nil
}

// EncodeReadWithQuality is EncodeRead's Quake-mode counterpart: qual
// holds one raw Phred score per base of read, same length as read.
func EncodeReadWithQuality(read string, qual []int, k int) ([]byte, error) {
	if len(read) < k {
		return nil, errors.Errorf("read length %d shorter than k=%d", len(read), k)
	}
	if len(qual) != len(read) {
		return nil, errors.Errorf("read %q has %d bases but %d quality scores", read, len(read), len(qual))
	}
	if _, err := seq.NewSeq(seq.DNA, []byte(read)); err != nil {
		return nil, errors.Wrapf(err, "read %q is not valid DNA", read)
	}
	bases := make([]uint8, len(read))
	for i := 0; i < len(read); i++ {
		b, ok := baseCode[read[i]]
		if !ok {
			return nil, errors.Errorf("read %q contains a non-ACGT base at position %d", read, i)
		}
		bases[i] = b
	}
	return expander.EncodeRecordWithQuality(bases, qual, k), nil
}

// EncodeReadsWithQuality is EncodeReads' Quake-mode counterpart: quals
// holds one quality slice per read, aligned with reads.
func EncodeReadsWithQuality(reads []string, quals [][]int, k int) ([]byte, error) {
	var out []byte
	for i, r := range reads {
		rec, err := EncodeReadWithQuality(r, quals[i], k)
		if err != nil {
			return nil, err
		}
		out = append(out, rec...)
	}
	return out, nil
}
