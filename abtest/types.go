// Package abtest holds the A/B test dataset model and the aggregation into
// conversion-rate series shown on the dashboard.
package abtest

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	labelLayout    = "Jan 2"
	fullDateLayout = "02/01/2006"
)

var (
	ErrUnknownTimeRange = errors.New("unknown time range")
	ErrInvalidDataset   = errors.New("invalid dataset")
)

type Variation struct {
	ID   *int   `json:"id,omitempty"`
	Name string `json:"name"`
}

type DailyData struct {
	Date        string         `json:"date"`
	Visits      map[string]int `json:"visits"`
	Conversions map[string]int `json:"conversions"`
}

type ChartData struct {
	Variations []Variation `json:"variations"`
	Data       []DailyData `json:"data"`
}

type TimeRange string

const (
	TimeRangeDay  TimeRange = "day"
	TimeRangeWeek TimeRange = "week"
)

func ParseTimeRange(s string) (TimeRange, error) {
	switch TimeRange(s) {
	case TimeRangeDay, TimeRangeWeek:
		return TimeRange(s), nil
	}
	return "", ErrUnknownTimeRange
}

// Point is one bucket of the chart. Rates holds only selected variations.
type Point struct {
	Date     time.Time
	Label    string
	FullDate string
	Rates    map[string]float64
}

// MarshalJSON flattens rates next to the labels, keyed by variation id.
func (p Point) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Rates)+2)
	for k, v := range p.Rates {
		m[k] = v
	}
	m["date"] = p.Label
	m["fullDate"] = p.FullDate
	return json.Marshal(m)
}

// VariationID returns the key a variation uses in the visits and
// conversions maps.
func VariationID(v Variation) string {
	if v.ID != nil {
		return strconv.Itoa(*v.ID)
	}
	return "0"
}

// IDs lists variation ids in dataset order.
func (d *ChartData) IDs() []string {
	ret := make([]string, 0, len(d.Variations))
	for _, v := range d.Variations {
		ret = append(ret, VariationID(v))
	}
	return ret
}

// Names maps variation id to display name.
func (d *ChartData) Names() map[string]string {
	ret := make(map[string]string, len(d.Variations))
	for _, v := range d.Variations {
		ret[VariationID(v)] = v.Name
	}
	return ret
}

// Span returns the first and last dates found in the dataset.
func (d *ChartData) Span() (time.Time, time.Time) {
	var first, last time.Time
	for _, dd := range d.Data {
		t, err := parseDate(dd.Date)
		if err != nil {
			continue
		}
		if first.IsZero() || t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	return first, last
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func sortedKeys(m map[string]bool) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}
