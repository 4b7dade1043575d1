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

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/klauspost/pgzip"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"gonum.org/v1/gonum/stat"

	"github.com/shenwei356/kmcgo/internal/binqueue"
	"github.com/shenwei356/kmcgo/internal/collab"
	"github.com/shenwei356/kmcgo/internal/pipeline"
)

var reBinFile = regexp.MustCompile(`(?i)\.bin$`)

// fileConfig mirrors pipeline.Config's tunables for a -c/--config-file
// driven run, so a user can pin a parameter set instead of re-typing
// flags (the original counter's kmc_params config shared the same
// role).
type fileConfig struct {
	K            int    `toml:"k"`
	MaxX         int    `toml:"max_x"`
	CutoffMin    uint32 `toml:"cutoff_min"`
	CutoffMax    uint32 `toml:"cutoff_max"`
	CounterMax   uint32 `toml:"counter_max"`
	LUTPrefixLen int    `toml:"lut_prefix_len"`
	BothStrands  bool   `toml:"both_strands"`
	Quake        bool   `toml:"quake"`
}

func init() {
	rootCmd.AddCommand(countCmd)

	countCmd.Flags().StringP("in-dir", "I", "", "directory of pre-split bin files to count")
	countCmd.Flags().StringP("out-dir", "O", "", "directory to write one result file per bin")
	countCmd.Flags().StringP("config-file", "c", "", "TOML file overriding the flags below")
	countCmd.Flags().BoolP("force", "f", false, "overwrite out-dir if it already exists and is not empty")

	countCmd.Flags().IntP("kmer", "k", 21, "k-mer length")
	countCmd.Flags().IntP("max-x", "x", pipeline.DefaultMaxX, "max extra bases packed per super-k-mer record")
	countCmd.Flags().Uint32P("cutoff-min", "", 2, "discard k-mers with a final count below this")
	countCmd.Flags().Uint32P("cutoff-max", "", 1e9, "discard k-mers with a final count above this")
	countCmd.Flags().Uint32P("counter-max", "", 255, "saturate counts at this value instead of overflowing")
	countCmd.Flags().IntP("lut-prefix-len", "", 0, "prefix length indexed by the per-bin lookup table")
	countCmd.Flags().BoolP("both-strands", "", true, "canonicalize k-mers across both strands")
	countCmd.Flags().BoolP("quake", "", false, "weight k-mer occurrences by base-call quality instead of counting")

	countCmd.Flags().IntP("sorters", "", 0, "number of concurrent bin workers, 0 for --threads")
	countCmd.Flags().IntP("arena-size", "", 1<<24, "initial arena buffer size in bytes")
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "count k-mers across a directory of pre-split bin files",
	Long: `count

Reads every *.bin file under -I/--in-dir (one radix-sortable bin of
super-k-mer records per file, the shape a splitter stage would have
produced), expands, sorts, and compacts each one independently, and
writes one suffix+LUT result file per bin under -O/--out-dir.
`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}
		timeStart := time.Now()
		defer func() {
			if opt.Verbose || opt.Log2File {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		inDir := getFlagString(cmd, "in-dir")
		outDir := getFlagString(cmd, "out-dir")
		if inDir == "" {
			checkError(fmt.Errorf("flag -I/--in-dir is needed"))
		}
		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir is needed"))
		}
		isDir, err := pathutil.IsDir(inDir)
		checkError(errors.Wrapf(err, "checking -I/--in-dir"))
		if !isDir {
			checkError(fmt.Errorf("value of -I/--in-dir should be a directory: %s", inDir))
		}
		makeOutDir(outDir, getFlagBool(cmd, "force"), "count", opt.Verbose)

		cfg := pipeline.DefaultConfig()
		cfg.K = getFlagPositiveInt(cmd, "kmer")
		cfg.MaxX = getFlagNonNegativeInt(cmd, "max-x")
		cfg.CutoffMin, _ = cmd.Flags().GetUint32("cutoff-min")
		cfg.CutoffMax, _ = cmd.Flags().GetUint32("cutoff-max")
		cfg.CounterMax, _ = cmd.Flags().GetUint32("counter-max")
		cfg.LUTPrefixLen = getFlagNonNegativeInt(cmd, "lut-prefix-len")
		cfg.BothStrands = getFlagBool(cmd, "both-strands")
		cfg.UseQuake = getFlagBool(cmd, "quake")
		cfg.ArenaSize = getFlagPositiveInt(cmd, "arena-size")
		cfg.GrowQuantum = cfg.ArenaSize

		sorters := getFlagNonNegativeInt(cmd, "sorters")
		if sorters == 0 {
			sorters = opt.NumCPUs
		}
		cfg.NSorters = sorters
		cfg.NOMPThreads = 1

		if cfgFile := getFlagString(cmd, "config-file"); cfgFile != "" {
			applyConfigFile(cfgFile, &cfg)
		}

		files, err := getFileListFromDir(inDir, reBinFile, opt.NumCPUs)
		checkError(err)
		if len(files) == 0 {
			checkError(fmt.Errorf("no *.bin files found under %s", inDir))
		}

		descs := make([]collab.BinDescriptor, len(files))
		for i, f := range files {
			info, err := os.Stat(f)
			checkError(err)
			descs[i] = collab.BinDescriptor{
				BinID: uint32(i + 1),
				Desc:  binqueue.BinDesc{KmerLen: cfg.K, File: f, TmpSize: int(info.Size())},
			}
		}
		src := collab.NewFileBinSource(descs)

		var bar *mpb.Bar
		var progress *mpb.Progress
		if opt.Verbose {
			progress = mpb.New(mpb.WithWidth(40))
			bar = progress.AddBar(int64(len(files)),
				mpb.PrependDecorators(decor.Name("counting bins: ")),
				mpb.AppendDecorators(decor.CountersNoUnit("%d / %d")))
		}

		out := collab.NewMemoryDatabaseWriter()
		writer := &progressWriter{inner: out, bar: bar}

		res, err := pipeline.Run(cfg, src, writer)
		checkError(err)

		if progress != nil {
			progress.Wait()
		}

		for _, bin := range res.Bins {
			outFile := filepath.Join(outDir, fmt.Sprintf("bin.%d.kmcgo.gz", bin.BinID))
			checkError(writeCompactedBin(outFile, bin))
		}

		if opt.Verbose {
			log.Infof("bins: %d, unique k-mers: %s, total occurrences: %s",
				len(res.Bins), humanize.Comma(int64(res.NUnique)), humanize.Comma(int64(res.NTotal)))
			log.Infof("dropped below cutoff_min: %s, dropped above cutoff_max: %s",
				humanize.Comma(int64(res.NCutoffMin)), humanize.Comma(int64(res.NCutoffMax)))
			if mean, stdev, ok := uniqueCountSpread(res.Bins); ok {
				log.Infof("unique k-mers per bin: mean %.1f, stdev %.1f", mean, stdev)
			}
		}
	},
}

// uniqueCountSpread reports the mean and standard deviation of
// per-bin unique-k-mer counts, flagging how evenly splitting spread
// load across bins; ok is false for fewer than two bins.
func uniqueCountSpread(bins []binqueue.CompactedBin) (mean, stdev float64, ok bool) {
	if len(bins) < 2 {
		return 0, 0, false
	}
	vals := make([]float64, len(bins))
	for i, b := range bins {
		vals[i] = float64(b.NUnique)
	}
	mean, stdev = stat.MeanStdDev(vals, nil)
	return mean, stdev, true
}

// progressWriter advances bar once per WriteBin call, so the count
// command's progress bar reflects bins finishing, not bins started.
type progressWriter struct {
	inner collab.DatabaseWriter
	bar   *mpb.Bar
}

func (w *progressWriter) WriteBin(result binqueue.CompactedBin) error {
	if w.bar != nil {
		w.bar.Increment()
	}
	return w.inner.WriteBin(result)
}

func applyConfigFile(path string, cfg *pipeline.Config) {
	path, err := homedir.Expand(path)
	checkError(err)
	raw, err := os.ReadFile(path)
	checkError(errors.Wrapf(err, "reading --config-file"))

	var fc fileConfig
	checkError(errors.Wrap(toml.Unmarshal(raw, &fc), "parsing --config-file as TOML"))

	if fc.K > 0 {
		cfg.K = fc.K
	}
	cfg.MaxX = fc.MaxX
	cfg.CutoffMin = fc.CutoffMin
	if fc.CutoffMax > 0 {
		cfg.CutoffMax = fc.CutoffMax
	}
	if fc.CounterMax > 0 {
		cfg.CounterMax = fc.CounterMax
	}
	cfg.LUTPrefixLen = fc.LUTPrefixLen
	cfg.BothStrands = fc.BothStrands
	cfg.UseQuake = fc.Quake
}

// writeCompactedBin serializes one bin's suffix array and LUT as a
// flat little-endian file: an 8-byte LUT length, the LUT itself, then
// the suffix bytes, gzipped with pgzip so large bins don't dominate
// out-dir's disk usage. cwalk-discovered *.bin inputs round-trip to
// one *.kmcgo.gz output per bin under this scheme.
func writeCompactedBin(path string, bin binqueue.CompactedBin) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	gz := pgzip.NewWriter(fh)
	defer gz.Close()

	var hdr [8]byte
	putUint64LE(hdr[:], uint64(len(bin.LUT)))
	if _, err := gz.Write(hdr[:]); err != nil {
		return err
	}
	lutBytes := make([]byte, 8*len(bin.LUT))
	for i, v := range bin.LUT {
		putUint64LE(lutBytes[i*8:i*8+8], v)
	}
	if _, err := gz.Write(lutBytes); err != nil {
		return err
	}
	if _, err := gz.Write(bin.Suffix); err != nil {
		return err
	}
	return gz.Close()
}
