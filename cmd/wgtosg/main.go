// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// wgtosg decomposes the workgroup-level XeTile ops of program documents into subgroup-level ops.
//
// Usage:
//
//	wgtosg run [flags] <program.yaml>...
//	wgtosg analyze <program.yaml>...
//
// Program documents are YAML or JSON files (see package irio), optionally compressed with zstd (".zst" suffix).
package main

import (
	"flag"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "wgtosg",
	Short: "Workgroup to subgroup decomposition of XeTile programs.",
	Long: "Decomposes the workgroup-level tile and vector ops of XeTile programs into subgroup-level ops,\n" +
		"computing each subgroup's offsets from its subgroup id.",
	SilenceUsage: true,
}

func init() {
	goFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(goFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(goFlags)
	rootCmd.AddCommand(runCmd, analyzeCmd)
}

func main() {
	defer klog.Flush()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
