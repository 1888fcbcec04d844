// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/ir/irio"
	"github.com/gomlx/xetile/pkg/transforms/wgtosg"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <program>...",
	Short: "List the values whose subgroup ids are read in column-major order.",
	Long: "Run the transpose analysis on program documents, and list the values marked column-major:\n" +
		"transposes fed by tile loads, and the init_tile ops of the loaded tiles.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		for _, path := range args {
			module, err := irio.ReadFile(path)
			if err != nil {
				return err
			}
			orders := wgtosg.NewLayoutOrders()
			wgtosg.AnalyzeTransposes(module, orders)
			_, _ = fmt.Fprintf(w, "%s: %d values marked column-major\n", path, orders.Len())
			if orders.Len() == 0 {
				continue
			}
			table := newTable(useStyles(w), "function", "op", "result", "type")
			table.Rows(markedRows(module, orders)...)
			_, _ = fmt.Fprintln(w, table.Render())
		}
		return nil
	},
}

// markedRows lists the op results marked in orders, in program order.
func markedRows(module *ir.Module, orders *wgtosg.LayoutOrders) (rows [][]string) {
	for _, f := range module.Funcs() {
		funcName := f.Data().(*ir.FuncData).Name
		var ops []*ir.Op
		f.Walk(func(op *ir.Op) ir.WalkResult {
			ops = append(ops, op)
			return ir.WalkAdvance
		})
		for _, op := range ops {
			for i, v := range op.Results() {
				if !orders.IsColumnMajor(v) {
					continue
				}
				name := v.Name
				if name == "" {
					name = fmt.Sprintf("#%d", i)
				}
				rows = append(rows, []string{funcName, op.Kind().String(), name, v.Type().String()})
			}
		}
	}
	return
}
