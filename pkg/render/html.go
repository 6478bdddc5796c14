package render

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/axonworks/axon/pkg/scheduler"
)

const (
	chartWidth       = "900px"
	chartHeight      = "400px"
	gaugeSide        = "400px"
	xAxisLabelRotate = 60
)

// HTML writes the report as a self-contained chart page: signal timeline,
// per-node dispatch bars, work-unit split, budget utilization, window
// populations, and the duplicate-cluster inspector.
func HTML(w io.Writer, rep *scheduler.RunReport, meta Meta) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("axon run %s", rep.RunID)
	page.SetLayout(components.PageFlexLayout)

	page.AddCharts(
		timelineChart(rep),
		nodeBarChart(rep),
	)

	if rep.WorkUnits > 0 {
		page.AddCharts(workUnitPie(rep))
	}

	if meta.WorkUnitMax > 0 {
		page.AddCharts(utilizationLiquid(meta))
	}

	if len(meta.Windows) > 0 {
		page.AddCharts(windowBarChart(meta.Windows))
	}

	var buf bytes.Buffer

	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render page: %w", err)
	}

	out := buf.String()
	if section := clustersHTML(rep); section != "" {
		out = injectBeforeBodyClose(out, section)
	}

	_, err := io.WriteString(w, out)
	if err != nil {
		return fmt.Errorf("write page: %w", err)
	}

	return nil
}

// timelineChart plots the cumulative emission count over the run, one
// point per signal in stamp order.
func timelineChart(rep *scheduler.RunReport) *charts.Line {
	labels := make([]string, len(rep.Signals))
	data := make([]opts.LineData, len(rep.Signals))

	for i, sig := range rep.Signals {
		if !sig.EmittedAt.IsZero() && !rep.StartedAt.IsZero() {
			labels[i] = sig.EmittedAt.Sub(rep.StartedAt).String()
		} else {
			labels[i] = strconv.Itoa(i)
		}

		data[i] = opts.LineData{Value: i + 1}
	}

	subtitle := fmt.Sprintf("%d signals over %s", len(rep.Signals), rep.Duration)
	if len(rep.Signals) == 0 {
		subtitle = "No data"
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Signal Timeline", Subtitle: subtitle}),
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	line.SetXAxis(labels)
	line.AddSeries("signals", data,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
	)

	return line
}

// nodeBarChart shows firings, errors, and throttles per node.
func nodeBarChart(rep *scheduler.RunReport) *charts.Bar {
	labels := make([]string, len(rep.Nodes))
	firings := make([]opts.BarData, len(rep.Nodes))
	errors := make([]opts.BarData, len(rep.Nodes))
	throttled := make([]opts.BarData, len(rep.Nodes))

	for i, node := range rep.Nodes {
		labels[i] = node.NodeID
		firings[i] = opts.BarData{Value: node.Firings}
		errors[i] = opts.BarData{Value: node.Errors}
		throttled[i] = opts.BarData{Value: node.Throttled}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Node Dispatch"}),
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Rotate: xAxisLabelRotate, Interval: "0"},
		}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("firings", firings)
	bar.AddSeries("errors", errors)
	bar.AddSeries("throttled", throttled)

	return bar
}

// workUnitPie splits recorded work units by node.
func workUnitPie(rep *scheduler.RunReport) *charts.Pie {
	data := make([]opts.PieData, 0, len(rep.Nodes))

	for _, node := range rep.Nodes {
		if node.WorkUnits <= 0 {
			continue
		}

		data = append(data, opts.PieData{Name: node.NodeID, Value: node.WorkUnits})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Work Units by Node"}),
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	pie.AddSeries("work units", data)

	return pie
}

// utilizationLiquid fills a liquid gauge with budget utilization in [0, 1].
func utilizationLiquid(meta Meta) *charts.Liquid {
	value := meta.Utilization
	if value < 0 {
		value = 0
	} else if value > 1 {
		value = 1
	}

	liquid := charts.NewLiquid()
	liquid.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Budget Utilization",
			Subtitle: fmt.Sprintf("%d WU ceiling, tier %s", meta.WorkUnitMax, meta.Tier),
		}),
		charts.WithInitializationOpts(opts.Initialization{Width: gaugeSide, Height: gaugeSide}),
	)
	liquid.AddSeries("utilization", []opts.LiquidData{{Value: value}})

	return liquid
}

func windowBarChart(windows []WindowStat) *charts.Bar {
	labels := make([]string, len(windows))
	counts := make([]opts.BarData, len(windows))

	for i, ws := range windows {
		labels[i] = ws.Name
		counts[i] = opts.BarData{Value: ws.Count}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Window Populations"}),
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("entries", counts)

	return bar
}

func injectBeforeBodyClose(page, section string) string {
	idx := strings.LastIndex(page, "</body>")
	if idx == -1 {
		return page + section
	}

	return page[:idx] + section + page[idx:]
}
