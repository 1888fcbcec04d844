// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/ir/irio"
	"github.com/gomlx/xetile/pkg/support/fsutil"
	"github.com/gomlx/xetile/pkg/support/xslices"
	"github.com/gomlx/xetile/pkg/transforms"
	"github.com/gomlx/xetile/pkg/transforms/conversion"
	"github.com/gomlx/xetile/pkg/transforms/wgtosg"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <program>...",
	Short: "Run the decomposition on program documents.",
	Long: "Run the decomposition on program documents, and write the resulting programs.\n\n" +
		"With no --output the programs are written to the standard output. With more than one input,\n" +
		"--output must be a directory, and each program is written there with the name of its input.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		options := wgtosg.Config().
			MaxSweeps(must.M1(cmd.Flags().GetInt("max-sweeps"))).
			Verify(must.M1(cmd.Flags().GetBool("verify"))).
			DumpIR(must.M1(cmd.Flags().GetBool("dump-ir"))).
			Done()
		format, err := irio.ParseFormat(must.M1(cmd.Flags().GetString("format")))
		if err != nil {
			return err
		}
		output := must.M1(cmd.Flags().GetString("output"))
		bar := newProgressBar(cmd.ErrOrStderr(), len(args))
		results := xslices.MapParallel(args, must.M1(cmd.Flags().GetInt("parallelism")),
			func(path string) *fileResult {
				result := processFile(path, options)
				if bar != nil {
					_ = bar.Add(1)
				}
				return result
			})
		if bar != nil {
			_ = bar.Finish()
		}

		summaryOut := cmd.OutOrStdout()
		if output == "" {
			summaryOut = cmd.ErrOrStderr()
		}
		var numFailed, numWritten int
		for _, result := range results {
			if result.err != nil {
				numFailed++
				klog.Errorf("%+v", result.err)
				continue
			}
			err := writeResult(cmd.OutOrStdout(), result, output, format, len(results) > 1, numWritten > 0)
			if err != nil {
				return err
			}
			numWritten++
			if must.M1(cmd.Flags().GetBool("summary")) {
				printSummary(summaryOut, result)
			}
		}
		if numFailed > 0 {
			return errors.Errorf("%d of %d programs failed", numFailed, len(results))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Int("max-sweeps", conversion.DefaultMaxSweeps, "maximum number of sweeps of the conversion driver")
	runCmd.Flags().Bool("verify", true, "verify the program before and after the decomposition")
	runCmd.Flags().Bool("dump-ir", false, "log the program before and after the decomposition (requires -v=3)")
	runCmd.Flags().StringP("output", "o", "", "output file (or directory, with more than one input)")
	runCmd.Flags().String("format", "yaml", "format of the programs written to the standard output: yaml or json")
	runCmd.Flags().Bool("summary", false, "print a summary table of the ops per kind before and after")
	runCmd.Flags().IntP("parallelism", "j", 0, "number of programs processed in parallel (0 for the number of CPUs)")
}

// newProgressBar returns a progress bar over the programs processed, or nil if w is not a terminal or there is
// only one program.
func newProgressBar(w io.Writer, numPrograms int) *progressbar.ProgressBar {
	if numPrograms <= 1 || !isTerminal(w) {
		return nil
	}
	return progressbar.NewOptions(numPrograms,
		progressbar.OptionSetDescription("decomposing"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("programs"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionClearOnFinish(),
	)
}

// fileResult is the outcome of the decomposition of one program document.
type fileResult struct {
	path          string
	module        *ir.Module
	before, after map[ir.Kind]int
	scratchBytes  int
	stats         *conversion.Stats
	err           error
}

// processFile reads the program in path and runs the decomposition on it. Errors are kept in the result.
func processFile(path string, options wgtosg.Options) *fileResult {
	result := &fileResult{path: path}
	result.module, result.err = irio.ReadFile(path)
	if result.err != nil {
		return result
	}
	result.before = result.module.CountKinds()
	pass := wgtosg.New(options)
	if err := transforms.NewPipeline(pass).Run(result.module); err != nil {
		result.err = errors.WithMessagef(err, "processing %q", path)
		return result
	}
	result.stats = pass.Stats
	result.after = result.module.CountKinds()
	result.scratchBytes = scratchBytes(result.module)
	return result
}

// scratchBytes returns the memory allocated by the memref.alloc ops of the module.
func scratchBytes(module *ir.Module) (total int) {
	for _, op := range module.CollectOps() {
		if op.Kind() != ir.KindAlloc {
			continue
		}
		memref, ok := op.Result(0).Type().(*ir.MemRefType)
		if !ok || !memref.HasStaticShape() {
			continue
		}
		total += memref.DType.SizeForDimensions(memref.Shape...)
	}
	return
}

// writeResult writes the resulting program to output, or to w if output is empty.
// With more than one program, YAML documents written to w after the first one are preceded by a "---" separator.
func writeResult(w io.Writer, result *fileResult, output string, format irio.Format, multiple, separate bool) error {
	if output == "" {
		data, err := irio.Encode(result.module, format)
		if err != nil {
			return err
		}
		if multiple && format == irio.FormatYAML && separate {
			_, _ = fmt.Fprintln(w, "---")
		}
		_, err = w.Write(data)
		return errors.Wrap(err, "failed to write program")
	}
	if multiple {
		dir, err := fsutil.ExpandHome(output)
		if err != nil {
			return err
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return errors.Errorf("--output=%q must be an existing directory when more than one program is given", output)
		}
		output = filepath.Join(dir, filepath.Base(result.path))
	}
	if err := irio.WriteFile(output, result.module); err != nil {
		return err
	}
	klog.V(1).Infof("wrote %q", output)
	return nil
}
