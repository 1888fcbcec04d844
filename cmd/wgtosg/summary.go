// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/support/sets"
	"github.com/gomlx/xetile/pkg/support/xslices"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

// isTerminal returns whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// useStyles returns whether tables written to w are styled: only on terminals, and unless NO_COLOR is set.
func useStyles(w io.Writer) bool {
	return isTerminal(w) && !termenv.NewOutput(w).EnvNoColor()
}

// newTable creates a table with a header row. Styles are only used if styled is true. The first column is left
// aligned, the others right aligned.
func newTable(styled bool, headers ...string) *lgtable.Table {
	t := lgtable.New().Headers(headers...)
	if !styled {
		return t.Border(lipgloss.ASCIIBorder()).
			StyleFunc(func(row, col int) lipgloss.Style {
				s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
				if col > 0 {
					s = s.Align(lipgloss.Right)
				}
				return s
			})
	}
	return t.Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			switch {
			case row < 0:
				return headerRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			if col > 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

// summaryRows returns the rows of the summary table: the number of ops of each kind before and after the
// decomposition, in kind order.
func summaryRows(before, after map[ir.Kind]int) [][]string {
	kinds := sets.MakeWith(xslices.Keys(before)...)
	kinds.Insert(xslices.Keys(after)...)
	rows := make([][]string, 0, len(kinds))
	for _, kind := range xslices.SortedKeys(kinds) {
		rows = append(rows, []string{kind.String(),
			humanize.Comma(int64(before[kind])), humanize.Comma(int64(after[kind]))})
	}
	return rows
}

// printSummary writes the summary of the decomposition of one program.
func printSummary(w io.Writer, result *fileResult) {
	styled := useStyles(w)
	title := fmt.Sprintf("%s (module %q)", result.path, result.module.Name)
	if styled {
		title = titleStyle.Render(title)
	}
	_, _ = fmt.Fprintln(w, title)

	table := newTable(styled, "op", "before", "after")
	table.Rows(summaryRows(result.before, result.after)...)
	_, _ = fmt.Fprintln(w, table.Render())

	totals := newTable(styled, "", "")
	totals.Row("sweeps", humanize.Comma(int64(result.stats.Sweeps)))
	totals.Row("rewrites", humanize.Comma(int64(result.stats.TotalRewrites())))
	totals.Row("ops created", humanize.Comma(int64(result.stats.Created)))
	totals.Row("ops erased", humanize.Comma(int64(result.stats.Erased)))
	totals.Row("scratch memory", humanize.IBytes(uint64(result.scratchBytes)))
	_, _ = fmt.Fprintln(w, totals.Render())
}
