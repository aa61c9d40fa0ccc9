package main

import (
	"encoding/json"
	"io"

	"github.com/MakeNowJust/heredoc"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/convrate/dashboard/abtest"
)

const chartTitle = "A/B Test Conversion Rate"

var chartThemes = map[abtest.Theme]string{
	abtest.ThemeLight: types.ThemeWesteros,
	abtest.ThemeDark:  types.ThemeChalk,
}

// tooltipFormatter lists the hovered bucket sorted best first and puts a
// trophy next to every variation sharing the top rate.
func tooltipFormatter(points []abtest.Point) string {
	full := make([]string, 0, len(points))
	for _, p := range points {
		full = append(full, p.FullDate)
	}
	b, err := json.Marshal(full)
	if err != nil {
		b = []byte("[]")
	}
	return heredoc.Docf(`
		function (params) {
			var full = %s;
			if (!params || !params.length) { return ''; }
			var rows = params.slice().sort(function (a, b) { return b.value - a.value; });
			var top = rows[0].value;
			var out = (full[params[0].dataIndex] || params[0].axisValue) + '<br/>';
			rows.forEach(function (p) {
				out += p.marker + p.seriesName + (p.value === top ? ' &#127942;' : '') +
					': <b>' + Number(p.value).toFixed(2) + '%%</b><br/>';
			});
			return out;
		}`, string(b))
}

type conversionChart struct {
	Points    []abtest.Point
	Data      *abtest.ChartData
	Selection abtest.Selection
	Domain    [2]float64
}

func (c conversionChart) seriesOpts(color string) []charts.SeriesOpts {
	ret := []charts.SeriesOpts{
		charts.WithLineStyleOpts(opts.LineStyle{Color: color, Width: 2}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
	}
	switch c.Selection.LineStyle {
	case abtest.LineStyleNatural:
		ret = append(ret, charts.WithLineChartOpts(opts.LineChart{Smooth: true}))
	case abtest.LineStyleStep:
		ret = append(ret, charts.WithLineChartOpts(opts.LineChart{Step: "middle"}))
	case abtest.LineStyleArea:
		ret = append(ret,
			charts.WithLineChartOpts(opts.LineChart{Smooth: true}),
			charts.WithAreaStyleOpts(opts.AreaStyle{Color: color, Opacity: 0.2}))
	}
	return ret
}

func (c conversionChart) build() *charts.Line {
	initOpts := opts.Initialization{
		PageTitle: chartTitle,
		Width:     "100%",
		Height:    "400px",
		Theme:     chartThemes[c.Selection.Theme],
	}
	if cfg.AssetsHost != "" {
		initOpts.AssetsHost = cfg.AssetsHost
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:      true,
			Trigger:   "axis",
			Formatter: opts.FuncOpts(tooltipFormatter(c.Points)),
		}),
		charts.WithLegendOpts(opts.Legend{Show: true, Bottom: "0"}),
		charts.WithYAxisOpts(opts.YAxis{
			Min:       c.Domain[0],
			Max:       c.Domain[1],
			AxisLabel: &opts.AxisLabel{Show: true, Formatter: "{value}%"},
		}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "inside", Start: 0, End: 100},
			opts.DataZoom{Type: "slider", Start: 0, End: 100},
		),
		charts.WithToolboxOpts(opts.Toolbox{
			Show: true,
			Feature: &opts.ToolBoxFeature{
				SaveAsImage: &opts.ToolBoxFeatureSaveAsImage{Show: true, Type: "png", Name: "conversion-rate", Title: "Save as PNG"},
				DataZoom:    &opts.ToolBoxFeatureDataZoom{Show: true, Title: map[string]string{"zoom": "Zoom", "back": "Reset zoom"}},
				Restore:     &opts.ToolBoxFeatureRestore{Show: true, Title: "Restore"},
			},
		}),
	)

	labels := make([]string, 0, len(c.Points))
	for _, p := range c.Points {
		labels = append(labels, p.Label)
	}
	line.SetXAxis(labels)
	names := c.Data.Names()
	for i, id := range c.Data.IDs() {
		if !c.Selection.Variations[id] {
			continue
		}
		values := make([]opts.LineData, 0, len(c.Points))
		for _, p := range c.Points {
			values = append(values, opts.LineData{Value: p.Rates[id], Name: p.FullDate})
		}
		line.AddSeries(names[id], values, c.seriesOpts(abtest.Color(i))...)
	}
	return line
}

func (c conversionChart) Render(w io.Writer) error {
	return c.build().Render(w)
}
