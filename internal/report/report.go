// Package report renders plans and transaction results for humans.
package report

import (
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/halvard/tunectl/internal/catalog"
	"github.com/halvard/tunectl/internal/diff"
	"github.com/halvard/tunectl/internal/probe"
	"github.com/halvard/tunectl/internal/txn"
)

// Options controls rendering.
type Options struct {
	// Color enables ANSI colors.
	Color bool
	// Verbose adds unified diffs for content-bearing changes.
	Verbose bool
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	faint  = color.New(color.Faint)
)

func (o Options) paint(c *color.Color, s string) string {
	if !o.Color {
		return s
	}
	return c.Sprint(s)
}

func (o Options) statusLabel(s diff.Status) string {
	label := string(s)
	switch s {
	case diff.StatusInSync, diff.StatusVerified, diff.StatusRolledBack:
		return o.paint(green, label)
	case diff.StatusPending, diff.StatusApplied:
		return o.paint(yellow, label)
	case diff.StatusApplyFailed, diff.StatusVerifyFailed, diff.StatusRollbackFailed:
		return o.paint(red, label)
	}
	return label
}

// RenderPlan writes a human-readable plan: one line per unit plus a
// summary. Pending counts toward the summary; settled units render faint.
func (o Options) RenderPlan(w io.Writer, units []*diff.ChangeUnit) {
	pending := 0
	for _, unit := range units {
		if unit.Status == diff.StatusPending {
			pending++
			fmt.Fprintf(w, "  %s %s: %s -> %s\n",
				o.paint(yellow, "~"), unit.Setting.ID,
				displayValue(unit.Before.String()), displayDesired(unit.Desired))
			if o.Verbose {
				o.renderUnitDiff(w, unit)
			}
			continue
		}
		fmt.Fprintf(w, "  %s %s: %s\n",
			o.paint(green, "="), unit.Setting.ID, o.paint(faint, "in sync"))
	}

	fmt.Fprintln(w)
	if pending == 0 {
		fmt.Fprintf(w, "%s\n", o.paint(green, fmt.Sprintf("All %d settings in sync, nothing to do.", len(units))))
		return
	}
	fmt.Fprintf(w, "%d of %d settings would change.\n", pending, len(units))
}

// RenderResult writes the transaction report.
func (o Options) RenderResult(w io.Writer, res *txn.Result) {
	switch res.State {
	case txn.StateCommitted:
		fmt.Fprintf(w, "%s transaction %s (%d units)\n",
			o.paint(green, "committed"), shortID(res.ID), len(res.Units))
	case txn.StateAborted:
		fmt.Fprintf(w, "%s transaction %s: %s\n",
			o.paint(red, "aborted"), shortID(res.ID), res.Reason)
		fmt.Fprintln(w, "No changes were made.")
		return
	default:
		fmt.Fprintf(w, "%s transaction %s\n", o.paint(red, string(res.State)), shortID(res.ID))
		if res.Reason != "" {
			fmt.Fprintf(w, "  reason: %s\n", res.Reason)
		}
	}

	for _, unit := range res.Units {
		fmt.Fprintf(w, "  [%s] %s", o.statusLabel(unit.Status), unit.Setting.ID)
		if unit.Reason != "" {
			fmt.Fprintf(w, ": %s", unit.Reason)
		}
		fmt.Fprintln(w)
		if unit.Status == diff.StatusRollbackFailed {
			fmt.Fprintf(w, "      %s rollback failed: %s\n", o.paint(red, "!"), unit.RollbackErr)
			if unit.BackupHash != "" {
				fmt.Fprintf(w, "      pre-change artifact is in backup %s; restore it manually\n", shortID(unit.BackupHash))
			}
		}
	}

	if res.RollbackFailures > 0 {
		fmt.Fprintf(w, "\n%s\n", o.paint(red,
			fmt.Sprintf("%d unit(s) could not be rolled back and need manual intervention.", res.RollbackFailures)))
	}
}

// renderUnitDiff prints a unified diff for content-bearing units. Scalar
// settings have nothing useful to diff beyond the plan line itself.
func (o Options) renderUnitDiff(w io.Writer, unit *diff.ChangeUnit) {
	if unit.Setting.Backend != catalog.BackendFile {
		return
	}
	before := ""
	if unit.Before.State == probe.StateObserved {
		before = unit.Before.Value.String()
	}
	after := unit.Desired.String()
	unified := udiff.Unified(unit.Setting.Path+" (current)", unit.Setting.Path+" (desired)", before, after)
	for _, line := range strings.Split(strings.TrimRight(unified, "\n"), "\n") {
		fmt.Fprintf(w, "      %s\n", o.paintDiffLine(line))
	}
}

func (o Options) paintDiffLine(line string) string {
	switch {
	case strings.HasPrefix(line, "+"):
		return o.paint(green, line)
	case strings.HasPrefix(line, "-"):
		return o.paint(red, line)
	case strings.HasPrefix(line, "@@"):
		return o.paint(faint, line)
	}
	return line
}

func displayDesired(v catalog.Value) string {
	return displayValue(v.String())
}

// displayValue keeps plan lines single-line: multiline content collapses
// to its digest and size.
func displayValue(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("content sha256:%x (%s)", sum[:4], humanize.Bytes(uint64(len(s))))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
