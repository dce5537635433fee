package report

import (
	"fmt"
	"image/color"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/swdee/go-footfall/counter"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	entryColor = color.RGBA{R: 0, G: 160, B: 0, A: 255}
	exitColor  = color.RGBA{R: 200, G: 0, B: 0, A: 255}
)

// cumulative returns the running count of events of kind against minutes
// elapsed since start, beginning at zero
func cumulative(events []counter.Event, kind counter.Direction,
	start time.Time) plotter.XYs {

	pts := plotter.XYs{{X: 0, Y: 0}}
	n := 0

	for _, ev := range events {
		if ev.Kind != kind {
			continue
		}
		n++
		pts = append(pts, plotter.XY{
			X: ev.Time.Sub(start).Minutes(),
			Y: float64(n),
		})
	}

	return pts
}

// writeTimeline plots the cumulative entries and exits over the session
func writeTimeline(path string, events []counter.Event) error {

	start := events[0].Time

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Crossings %s", start.Format(counter.TimeLayout))
	p.X.Label.Text = "Minutes"
	p.Y.Label.Text = "Cumulative count"

	series := []struct {
		name string
		kind counter.Direction
		clr  color.Color
	}{
		{"Entries", counter.Entry, entryColor},
		{"Exits", counter.Exit, exitColor},
	}

	for _, sr := range series {
		line, err := plotter.NewLine(cumulative(events, sr.kind, start))

		if err != nil {
			return fmt.Errorf("error creating %s line: %w", sr.name, err)
		}

		line.Color = sr.clr
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(sr.name, line)
	}

	p.Legend.Top = true

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("error saving timeline: %w", err)
	}

	return nil
}

// writeDashboard renders an HTML page with the totals and the number of
// crossings per minute
func writeDashboard(path string, s Summary, events []counter.Event) error {

	subtitle := s.Time.Format(counter.TimeLayout)

	if s.Video != "" {
		subtitle = s.Video + " " + subtitle
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Footfall Report", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Totals", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	bar.SetXAxis([]string{"Entries", "Exits"}).
		AddSeries("Total", []opts.BarData{
			{Value: s.Totals.Entries},
			{Value: s.Totals.Exits},
		}, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Crossings per minute"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	start, entries := minuteBuckets(events, counter.Entry)
	_, exits := minuteBuckets(events, counter.Exit)

	minutes := make([]string, len(entries))

	for i := range minutes {
		minutes[i] = start.Add(time.Duration(i) * time.Minute).Format("15:04")
	}

	line.SetXAxis(minutes).
		AddSeries("Entries", lineData(entries)).
		AddSeries("Exits", lineData(exits))

	page := components.NewPage()
	page.PageTitle = "Footfall Report"
	page.AddCharts(bar, line)

	f, err := os.Create(path)

	if err != nil {
		return fmt.Errorf("error creating dashboard: %w", err)
	}

	defer f.Close()

	if err := page.Render(f); err != nil {
		return fmt.Errorf("error rendering dashboard: %w", err)
	}

	return f.Close()
}

func lineData(counts []float64) []opts.LineData {

	data := make([]opts.LineData, 0, len(counts))

	for _, c := range counts {
		data = append(data, opts.LineData{Value: int(c)})
	}

	return data
}
