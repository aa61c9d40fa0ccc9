package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/convrate/dashboard/abtest"
)

var errNothingToRender = errors.New("nothing to render")

type exportPalette struct {
	Background drawing.Color
	Font       drawing.Color
	Grid       drawing.Color
}

var exportPalettes = map[abtest.Theme]exportPalette{
	abtest.ThemeLight: {
		Background: drawing.ColorWhite,
		Font:       drawing.ColorFromHex("666666"),
		Grid:       drawing.ColorFromHex("E0DEE7"),
	},
	abtest.ThemeDark: {
		Background: drawing.ColorFromHex("1F1F28"),
		Font:       drawing.ColorFromHex("D0D0D8"),
		Grid:       drawing.ColorFromHex("3A3A46"),
	},
}

func percentFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%g%%", f)
	}
	return ""
}

// renderPNG draws the selected series with go-chart. go-chart has no curve
// smoothing, so natural and step styles come out as straight segments.
func renderPNG(w io.Writer, c conversionChart, width, height int) error {
	if len(c.Points) == 0 || c.Selection.Count() == 0 {
		return errNothingToRender
	}
	pal, ok := exportPalettes[c.Selection.Theme]
	if !ok {
		pal = exportPalettes[abtest.ThemeLight]
	}
	names := c.Data.Names()
	series := []chart.Series{}
	for i, id := range c.Data.IDs() {
		if !c.Selection.Variations[id] {
			continue
		}
		col := drawing.ColorFromHex(strings.TrimPrefix(abtest.Color(i), "#"))
		st := chart.Style{StrokeColor: col, StrokeWidth: 2}
		if c.Selection.LineStyle == abtest.LineStyleArea {
			st.FillColor = col.WithAlpha(48)
		}
		xs := make([]time.Time, 0, len(c.Points))
		ys := make([]float64, 0, len(c.Points))
		for _, p := range c.Points {
			xs = append(xs, p.Date)
			ys = append(ys, p.Rates[id])
		}
		series = append(series, chart.TimeSeries{Name: names[id], XValues: xs, YValues: ys, Style: st})
	}
	lo, hi := c.Domain[0], c.Domain[1]
	if hi <= lo {
		hi = lo + 1
	}
	axisStyle := chart.Style{FontColor: pal.Font, StrokeColor: pal.Grid}
	gridStyle := chart.Style{StrokeColor: pal.Grid, StrokeWidth: 1}
	graph := chart.Chart{
		Title:      chartTitle,
		TitleStyle: chart.Style{FontColor: pal.Font},
		Width:      width,
		Height:     height,
		Background: chart.Style{
			FillColor: pal.Background,
			Padding:   chart.Box{Top: 50, Left: 20, Right: 30, Bottom: 20},
		},
		Canvas: chart.Style{FillColor: pal.Background},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("Jan 2"),
			Style:          axisStyle,
			GridMajorStyle: gridStyle,
		},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: percentFormatter,
			Style:          axisStyle,
			GridMajorStyle: gridStyle,
		},
		Series: series,
	}
	if len(c.Points) == 1 {
		t := c.Points[0].Date
		graph.XAxis.Range = &chart.ContinuousRange{
			Min: chart.TimeToFloat64(t.AddDate(0, 0, -1)),
			Max: chart.TimeToFloat64(t.AddDate(0, 0, 1)),
		}
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph, chart.Style{FontColor: pal.Font, FillColor: pal.Background})}
	return graph.Render(chart.PNG, w)
}
