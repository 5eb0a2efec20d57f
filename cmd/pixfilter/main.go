// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	nl "github.com/mlnoga/pixfilter/internal"
	"github.com/mlnoga/pixfilter/internal/filter"
	"github.com/mlnoga/pixfilter/internal/ops"
	"github.com/mlnoga/pixfilter/internal/ops/info"
	"github.com/mlnoga/pixfilter/internal/ops/transform"
	"github.com/mlnoga/pixfilter/internal/rest"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var out = flag.String("out", "out.ppm", "save output to `file`. With several inputs, %d in the name is replaced by the image ID")
var log = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")
var tiff = flag.String("tiff", "", "save 8bit preview of output as TIFF to `file`, e.g. `prev%d.tif`")
var binary = flag.Bool("binary", false, "write .ppm output as binary P6 instead of text")
var statsOut = flag.String("statsOut", "", "append per-image statistics as JSON lines to `file`")

var red = flag.Int("r", 0, "manual filter: offset for the red channel")
var green = flag.Int("g", 0, "manual filter: offset for the green channel")
var blue = flag.Int("b", 0, "manual filter: offset for the blue channel")
var sigma = flag.Float64("sigma", transform.DefaultSigma, "gaussian filter: standard deviation of the kernel, >0")

var workers = flag.Int("workers", 0, "number of parallel row workers per filter pass, 0=number of logical cores, 1=sequential")
var opsFile = flag.String("ops", "", "run: read JSON operator sequence from `file`")

var addr = flag.String("addr", ":8080", "serve: listen on given address")
var chroot = flag.String("chroot", "", "serve: change filesystem root to given directory (requires root)")
var setuid = flag.Int("setuid", -1, "serve: change user ID to given value after chroot, -1=keep")

func main() {
	logWriter := nl.LogWriter
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(logWriter, `Pixfilter Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] command (img0.ppm ... imgn.ppm)

Commands:
  manual    Add -r, -g and -b to the channels, clamping at 0 or 255
  inverse   Invert all channels
  grayscale Replace all channels with the weighted luminance
  sepia     Apply sepia tone
  dilation  Replace each sample with the maximum of its 3x3 neighborhood
  erosion   Replace each sample with the minimum of its 3x3 neighborhood
  median    Replace each sample with the median of its 3x3 neighborhood
  gaussian  Convolve with an unnormalized 3x3 gaussian kernel of given -sigma
  stats     Show input image statistics
  run       Apply JSON operator sequence from -ops to input images
  serve     Serve REST API on -addr
  legal     Show license and attribution information
  version   Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}
	cmd, files := args[0], args[1:]
	processing := cmd == "stats" || cmd == "run" || isFilter(cmd)

	// Initialize logging to file in addition to stdout, if selected
	if *log == "%auto" {
		if processing && *out != "" {
			base := strings.ReplaceAll(*out, "%d", "")
			*log = strings.TrimSuffix(base, filepath.Ext(base)) + ".log"
		} else {
			*log = ""
		}
	}
	if *log != "" {
		if err := nl.LogAlsoToFile(*log); err != nil {
			nl.LogFatalf("Unable to open logfile '%s'\n", *log)
		}
	}
	defer nl.LogSync()

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			nl.LogFatal("Could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			nl.LogFatal("Could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	c := ops.NewContext(logWriter, *workers)
	c.AllowAnyPath = true

	var err error
	switch {
	case isFilter(cmd):
		err = cmdFilter(c, cmd, files)

	case cmd == "stats":
		err = cmdStats(c, files)

	case cmd == "run":
		err = cmdRun(c, files)

	case cmd == "serve":
		if err = rest.MakeSandbox(logWriter, *chroot, *setuid); err == nil {
			err = rest.Serve(*addr, c)
		}

	case cmd == "legal":
		cmdLegal()

	case cmd == "version":
		fmt.Fprintf(logWriter, "Version %s on %s\n", version, c.Describe())

	case cmd == "help" || cmd == "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", cmd)
		flag.Usage()
		return
	}

	if processing {
		fmt.Fprintf(logWriter, "\nDone after %v\n", time.Since(start))
	}

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			nl.LogFatal("Could not create memory profile: ", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			nl.LogFatal("Could not write allocation profile: ", err)
		}
	}

	if err != nil {
		pprof.StopCPUProfile()
		nl.LogFatalf("Error: %s\n", err.Error())
	}
}

func isFilter(cmd string) bool {
	for _, name := range filter.Names() {
		if cmd == name {
			return true
		}
	}
	return false
}

// Adds savers for the output and the optional TIFF preview to the sequence
func appendSavers(seq *ops.OpSequence, numFiles int) error {
	if numFiles > 1 && *out != "" && !strings.Contains(*out, "%d") {
		return fmt.Errorf("%d input files need %%d in output file name '%s'", numFiles, *out)
	}
	seq.Append(ops.NewOpSave(*out, *binary))
	if *tiff != "" {
		seq.Append(ops.NewOpSave(*tiff, false))
	}
	return nil
}

func cmdFilter(c *ops.Context, name string, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("%s needs at least one input file", name)
	}
	p := filter.Params{Name: name, Red: *red, Green: *green, Blue: *blue, Sigma: *sigma}
	if _, err := filter.Select(p); err != nil { // fail before loading anything
		return err
	}
	seq := ops.NewOpSequence(ops.NewOpLoadMany(files), transform.NewOpFilter(p))
	if err := appendSavers(seq, len(files)); err != nil {
		return err
	}
	return ops.Run(seq, c)
}

func cmdStats(c *ops.Context, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("stats needs at least one input file")
	}
	opStats := info.NewOpStats(*statsOut)
	defer opStats.Close()
	return ops.Run(ops.NewOpSequence(ops.NewOpLoadMany(files), opStats), c)
}

// Runs the operator sequence from the -ops file. Input files given on the command line
// are loaded before the first step
func cmdRun(c *ops.Context, files []string) error {
	if *opsFile == "" {
		return fmt.Errorf("run needs an operator sequence, set -ops")
	}
	data, err := os.ReadFile(*opsFile)
	if err != nil {
		return err
	}
	seq := ops.NewOpSequence()
	if err = json.Unmarshal(data, seq); err != nil {
		return fmt.Errorf("parsing %s: %w", *opsFile, err)
	}
	if len(files) > 0 {
		seq.Steps = append([]ops.Operator{ops.NewOpLoadMany(files)}, seq.Steps...)
	}

	m, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Log, "Running %d steps with these settings:\n%s\n", len(seq.Steps), string(m))
	return ops.Run(seq, c)
}
