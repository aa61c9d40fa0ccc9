package abtest

import (
	"fmt"
	"math"
	"sort"
	"time"
)

var palette = []string{"#46464F", "#4142EF", "#FF8346", "#C0EEE9"}

// Color picks the palette entry for a variation by its position in the
// full variation list, so colors stay put while toggling.
func Color(index int) string {
	if index < 0 {
		index = -index
	}
	return palette[index%len(palette)]
}

func ConversionRate(conversions, visits int) float64 {
	if visits == 0 {
		return 0
	}
	return float64(conversions) / float64(visits) * 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type bucket struct {
	start       time.Time
	visits      map[string]int
	conversions map[string]int
}

// weekStart truncates t to the Monday that opens its ISO week.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// ProcessDataForChart buckets the daily records by day or ISO week and
// emits the rounded conversion rate of every selected variation per bucket.
func ProcessDataForChart(data *ChartData, selected map[string]bool, tr TimeRange) ([]Point, error) {
	if tr != TimeRangeDay && tr != TimeRangeWeek {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimeRange, tr)
	}
	buckets := map[time.Time]*bucket{}
	for _, dd := range data.Data {
		t, err := parseDate(dd.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q", ErrInvalidDataset, dd.Date)
		}
		if tr == TimeRangeWeek {
			t = weekStart(t)
		}
		b, ok := buckets[t]
		if !ok {
			b = &bucket{start: t, visits: map[string]int{}, conversions: map[string]int{}}
			buckets[t] = b
		}
		for k, v := range dd.Visits {
			b.visits[k] += v
		}
		for k, v := range dd.Conversions {
			b.conversions[k] += v
		}
	}
	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].start.Before(ordered[j].start)
	})
	ids := sortedKeys(selected)
	ret := make([]Point, 0, len(ordered))
	for _, b := range ordered {
		p := Point{
			Date:     b.start,
			Label:    b.start.Format(labelLayout),
			FullDate: b.start.Format(fullDateLayout),
			Rates:    make(map[string]float64, len(ids)),
		}
		for _, id := range ids {
			if !selected[id] {
				continue
			}
			p.Rates[id] = round2(ConversionRate(b.conversions[id], b.visits[id]))
		}
		ret = append(ret, p)
	}
	return ret, nil
}

// YAxisDomain derives chart bounds from the selected series. Smoothed and
// area styles get extra head room because their curves overshoot the points.
func YAxisDomain(points []Point, selected map[string]bool, style LineStyle) [2]float64 {
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, p := range points {
		for id, v := range p.Rates {
			if !selected[id] || math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) || math.IsInf(hi, -1) {
		return [2]float64{0, 40}
	}
	mult := 0.1
	if style == LineStyleNatural || style == LineStyleArea {
		mult = 0.2
	}
	pad := (hi - lo) * mult
	return [2]float64{math.Max(0, math.Floor(lo-pad)), math.Ceil(hi + pad)}
}

// Zoom keeps the buckets that overlap [from, to]. A week bucket covers
// [start, start+7d), so a window opening mid-week keeps that week. A zero
// bound leaves that side open.
func Zoom(points []Point, tr TimeRange, from, to time.Time) []Point {
	if from.IsZero() && to.IsZero() {
		return points
	}
	days := 1
	if tr == TimeRangeWeek {
		days = 7
	}
	ret := make([]Point, 0, len(points))
	for _, p := range points {
		if !from.IsZero() && !p.Date.AddDate(0, 0, days).After(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		ret = append(ret, p)
	}
	return ret
}

type Leader struct {
	ID     string  `json:"id"`
	Rate   float64 `json:"rate"`
	Winner bool    `json:"winner"`
}

// Leaders orders a point's selected rates from best to worst. Ties for the
// top rate are all winners.
func Leaders(p Point, selected map[string]bool) []Leader {
	ret := []Leader{}
	top := math.Inf(-1)
	for id, v := range p.Rates {
		if !selected[id] {
			continue
		}
		ret = append(ret, Leader{ID: id, Rate: v})
		top = math.Max(top, v)
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Rate == ret[j].Rate {
			return ret[i].ID < ret[j].ID
		}
		return ret[i].Rate > ret[j].Rate
	})
	for i := range ret {
		ret[i].Winner = ret[i].Rate == top
	}
	return ret
}
