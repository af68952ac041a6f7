// Package report renders session analysis artifacts: an HTML timeline of the
// screening probability via go-echarts and a PNG gaze trace via gonum/plot.
package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/lexiscan/readtrace/internal/gaze"
	"github.com/lexiscan/readtrace/internal/sessiondb"
)

// RenderTimeline writes an HTML line chart of probability and cognitive load
// over the session to w. X axis values are seconds from the first frame.
func RenderTimeline(w io.Writer, sessionID string, points []sessiondb.TimelinePoint) error {
	if len(points) == 0 {
		return fmt.Errorf("no frames recorded for session %s", sessionID)
	}

	start := points[0].UnixNanos
	xAxis := make([]string, len(points))
	probability := make([]opts.LineData, len(points))
	load := make([]opts.LineData, len(points))
	for i, p := range points {
		xAxis[i] = fmt.Sprintf("%.2f", gaze.Seconds(p.UnixNanos-start))
		probability[i] = opts.LineData{Value: p.Probability}
		load[i] = opts.LineData{Value: p.CognitiveLoad}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Reading Session Timeline",
			Theme:     "dark",
			Width:     "1200px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Screening Probability",
			Subtitle: fmt.Sprintf("session=%s frames=%d", sessionID, len(points)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1}),
	)

	line.SetXAxis(xAxis).
		AddSeries("probability", probability).
		AddSeries("cognitive_load", load).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	return line.Render(w)
}

// SaveTracePlot writes a PNG of the gaze path in normalized screen
// coordinates. Missing samples are dropped from the trace.
func SaveTracePlot(path string, samples []gaze.GazeSample) error {
	pts := make(plotter.XYs, 0, len(samples))
	for _, s := range samples {
		if s.Missing {
			continue
		}
		g := s.Gaze()
		pts = append(pts, plotter.XY{X: g.X, Y: g.Y})
	}
	if len(pts) == 0 {
		return fmt.Errorf("no valid samples to plot")
	}

	p := plot.New()
	p.Title.Text = "Gaze Trace"
	p.X.Label.Text = "X (normalized)"
	p.Y.Label.Text = "Y (normalized)"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	trace, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to build trace line: %w", err)
	}
	trace.Width = vg.Points(1)
	p.Add(trace)
	p.Legend.Add("gaze", trace)
	p.Legend.Top = true

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save trace plot: %w", err)
	}
	return nil
}
