package render

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/axonworks/axon/pkg/scheduler"
)

const maxSignalRows = 15

// Text writes the colored terminal report: status, summary, node table,
// signal counts, window populations, and the duplicate-cluster inspector
// when dedup atoms ran.
func Text(w io.Writer, rep *scheduler.RunReport, meta Meta) error {
	writeStatus(w, rep)
	writeSummary(w, rep, meta)

	if len(rep.Nodes) > 0 {
		fmt.Fprintf(w, "\nNodes:\n%s\n", nodeTable(rep))
	}

	if counts := signalCounts(rep); len(counts) > 0 {
		fmt.Fprintf(w, "\nSignals:\n%s\n", signalTable(counts))
	}

	if len(meta.Windows) > 0 {
		fmt.Fprintf(w, "\nWindows:\n%s\n", windowTable(meta.Windows))
	}

	writeClustersText(w, rep)

	return nil
}

func writeStatus(w io.Writer, rep *scheduler.RunReport) {
	if rep.ErrorKind != "" || rep.Failed() {
		color.New(color.FgRed).Fprintf(w, "run %s failed (%s)\n", rep.RunID, rep.WorkflowID)
	} else {
		color.New(color.FgGreen).Fprintf(w, "run %s completed (%s)\n", rep.RunID, rep.WorkflowID)
	}

	if rep.ErrorKind != "" {
		color.New(color.FgRed).Fprintf(w, "  %s: %s\n", rep.ErrorKind, rep.Error)
	}
}

func writeSummary(w io.Writer, rep *scheduler.RunReport, meta Meta) {
	fmt.Fprintf(w, "  duration %s | firings %s | work units %s | signals %s\n",
		rep.Duration.Round(time.Millisecond),
		humanize.Comma(int64(rep.Firings())),
		humanize.CommafWithDigits(rep.WorkUnits, 1),
		humanize.Comma(int64(len(rep.Signals))))

	if meta.Tier != "" {
		fmt.Fprintf(w, "  tier %s | budget %s WU | utilization %.0f%%\n",
			meta.Tier,
			humanize.Comma(int64(meta.WorkUnitMax)),
			meta.Utilization*100)
	}

	if rep.ThrottleEvents > 0 {
		color.New(color.FgYellow).Fprintf(w, "  throttled %s times\n",
			humanize.Comma(int64(rep.ThrottleEvents)))
	}

	if rep.DroppedSignals > 0 {
		color.New(color.FgYellow).Fprintf(w, "  dropped %s signals\n",
			humanize.Comma(int64(rep.DroppedSignals)))
	}

	if rep.CycleDrops > 0 {
		color.New(color.FgYellow).Fprintf(w, "  stopped %s cycle re-entries\n",
			humanize.Comma(int64(rep.CycleDrops)))
	}
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false

	return tbl
}

func nodeTable(rep *scheduler.RunReport) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"NODE", "ATOM", "FIRINGS", "ERRORS", "SKIPS", "THROTTLED", "WORK UNITS", ""})

	for _, node := range rep.Nodes {
		flag := ""
		if node.Quarantined {
			flag = color.New(color.FgRed).Sprint("quarantined")
		}

		errs := fmt.Sprintf("%d", node.Errors)
		if node.Errors > 0 {
			errs = color.New(color.FgRed).Sprint(errs)
		}

		tbl.AppendRow(table.Row{
			node.NodeID,
			node.AtomName,
			node.Firings,
			errs,
			node.Skips,
			node.Throttled,
			humanize.CommafWithDigits(node.WorkUnits, 1),
			flag,
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d nodes", len(rep.Nodes))})

	return tbl.Render()
}

func signalTable(counts []nameCount) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"SIGNAL", "COUNT"})

	shown := counts
	if len(shown) > maxSignalRows {
		shown = shown[:maxSignalRows]
	}

	for _, nc := range shown {
		tbl.AppendRow(table.Row{nc.name, nc.count})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d distinct", len(counts))})

	return tbl.Render()
}

func windowTable(windows []WindowStat) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"WINDOW", "COUNT", "TIMESPAN"})

	for _, ws := range windows {
		tbl.AppendRow(table.Row{ws.Name, ws.Count, ws.Timespan.Round(time.Millisecond)})
	}

	return tbl.Render()
}

func writeClustersText(w io.Writer, rep *scheduler.RunReport) {
	views := clusterViews(rep)
	if len(views) == 0 {
		return
	}

	fmt.Fprintf(w, "\nDuplicate clusters:\n")

	dmp := diffmatchpatch.New()

	for _, view := range views {
		color.New(color.FgYellow).Fprintf(w, "  %s (+%d duplicates)\n", view.Identity, view.Size)

		for _, member := range view.Diffs {
			fmt.Fprintf(w, "    vs %s: %s\n", member.Identity, dmp.DiffPrettyText(member.Diffs))
		}
	}
}
