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
	"runtime"

	"github.com/mattn/go-colorable"
	"github.com/pkg/errors"
	logging "github.com/shenwei356/go-logging"
	"github.com/spf13/cobra"
)

var log = logging.MustGetLogger("kmcgo")

var rootCmd = &cobra.Command{
	Use:   "kmcgo",
	Short: "a KMC-style disk-based k-mer counter",
	Long: `kmcgo

A disk-partitioned k-mer counter: given a directory of pre-split,
compressed super-k-mer bin files, it expands, radix-sorts, and
compacts each bin into a sorted suffix+LUT table with exact or
quality-weighted counts, subject to lower/upper count cutoffs.
`,
}

// Execute runs the root command and exits through checkError, which
// every command uses to report a fatal error and call os.Exit.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		checkError(err)
	}
}

func init() {
	rootCmd.PersistentFlags().IntP("threads", "j", 0, "number of CPUs to use, 0 for all available")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "do not print any verbose information")
	rootCmd.PersistentFlags().StringP("log", "", "", "also write log messages to this file")
}

// Options bundles the global flags shared by every subcommand.
type Options struct {
	NumCPUs int
	Verbose bool

	LogFile  string
	Log2File bool
}

func getOptions(cmd *cobra.Command) *Options {
	threads := getFlagNonNegativeInt(cmd, "threads")
	if threads == 0 {
		threads = runtime.NumCPU()
	}
	runtime.GOMAXPROCS(threads)

	logfile := getFlagString(cmd, "log")
	return &Options{
		NumCPUs:  threads,
		Verbose:  !getFlagBool(cmd, "quiet"),
		LogFile:  logfile,
		Log2File: logfile != "",
	}
}

// addLog wires go-logging to stderr (colorized via go-colorable) and,
// when logFile is set, also to a file, matching the sibling
// shenwei356 CLI tools' logging setup.
func addLog(logFile string, verbose bool) *os.File {
	level := logging.INFO
	if !verbose {
		level = logging.ERROR
	}

	format := "[%{level}] %{time:15:04:05.000} %{message}"
	if logFile != "" {
		format = "%{time:15:04:05.000} %{message}"
	}
	formatter := logging.MustStringFormatter(format)

	backendStderr := logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
	backendStderrFormatter := logging.NewBackendFormatter(backendStderr, formatter)
	backendStderrLeveled := logging.AddModuleLevel(backendStderrFormatter)
	backendStderrLeveled.SetLevel(level, "")

	if logFile == "" {
		logging.SetBackend(backendStderrLeveled)
		return nil
	}

	fh, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	checkError(err)

	backendFile := logging.NewLogBackend(fh, "", 0)
	backendFileFormatter := logging.NewBackendFormatter(backendFile, formatter)
	backendFileLeveled := logging.AddModuleLevel(backendFileFormatter)
	backendFileLeveled.SetLevel(level, "")

	logging.SetBackend(backendStderrLeveled, backendFileLeveled)
	return fh
}

// checkError logs a fatal error and exits 1. Library code under
// internal/ never calls this; it is the CLI boundary's only recovery
// mechanism for an unrecoverable error.
func checkError(err error) {
	if err == nil {
		return
	}
	log.Error(errors.Cause(err))
	os.Exit(1)
}

func getFlagString(cmd *cobra.Command, flag string) string {
	v, err := cmd.Flags().GetString(flag)
	checkError(err)
	return v
}

func getFlagBool(cmd *cobra.Command, flag string) bool {
	v, err := cmd.Flags().GetBool(flag)
	checkError(err)
	return v
}

func getFlagNonNegativeInt(cmd *cobra.Command, flag string) int {
	v, err := cmd.Flags().GetInt(flag)
	checkError(err)
	if v < 0 {
		checkError(fmt.Errorf("value of flag --%s should be >= 0", flag))
	}
	return v
}

func getFlagPositiveInt(cmd *cobra.Command, flag string) int {
	v, err := cmd.Flags().GetInt(flag)
	checkError(err)
	if v <= 0 {
		checkError(fmt.Errorf("value of flag --%s should be > 0", flag))
	}
	return v
}

func getFlagNonNegativeFloat(cmd *cobra.Command, flag string) float64 {
	v, err := cmd.Flags().GetFloat64(flag)
	checkError(err)
	if v < 0 {
		checkError(fmt.Errorf("value of flag --%s should be >= 0", flag))
	}
	return v
}
