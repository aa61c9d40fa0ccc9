package abtest

import (
	"errors"
	"strings"
)

type LineStyle string

const (
	LineStyleLine    LineStyle = "line"
	LineStyleNatural LineStyle = "natural"
	LineStyleStep    LineStyle = "step"
	LineStyleArea    LineStyle = "area"
)

var LineStyles = []LineStyle{LineStyleLine, LineStyleNatural, LineStyleStep, LineStyleArea}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

var Themes = []Theme{ThemeLight, ThemeDark}

var (
	ErrUnknownLineStyle = errors.New("unknown line style")
	ErrUnknownTheme     = errors.New("unknown theme")
)

func ParseLineStyle(s string) (LineStyle, error) {
	for _, v := range LineStyles {
		if string(v) == s {
			return v, nil
		}
	}
	return "", ErrUnknownLineStyle
}

func ParseTheme(s string) (Theme, error) {
	for _, v := range Themes {
		if string(v) == s {
			return v, nil
		}
	}
	return "", ErrUnknownTheme
}

// Selection is what the user currently looks at.
type Selection struct {
	Variations map[string]bool `json:"variations"`
	TimeRange  TimeRange       `json:"timeRange"`
	LineStyle  LineStyle       `json:"lineStyle"`
	Theme      Theme           `json:"theme"`
}

func DefaultSelection(data *ChartData) Selection {
	s := Selection{
		Variations: map[string]bool{},
		TimeRange:  TimeRangeDay,
		LineStyle:  LineStyleLine,
		Theme:      ThemeLight,
	}
	for _, id := range data.IDs() {
		s.Variations[id] = true
	}
	return s
}

// Toggle flips one variation. The last selected variation cannot be
// removed, ids that are not part of the dataset are ignored.
func (s *Selection) Toggle(data *ChartData, id string) bool {
	known := false
	for _, v := range data.IDs() {
		if v == id {
			known = true
			break
		}
	}
	if !known {
		return false
	}
	if s.Variations == nil {
		s.Variations = map[string]bool{}
	}
	if s.Variations[id] {
		if s.Count() <= 1 {
			return false
		}
		delete(s.Variations, id)
		return true
	}
	s.Variations[id] = true
	return true
}

func (s *Selection) Count() int {
	c := 0
	for _, v := range s.Variations {
		if v {
			c++
		}
	}
	return c
}

// Normalize drops unknown ids and fills empty fields from the defaults.
// An empty variation set falls back to every variation.
func (s *Selection) Normalize(data *ChartData) {
	def := DefaultSelection(data)
	valid := map[string]bool{}
	for id, on := range s.Variations {
		if on && def.Variations[id] {
			valid[id] = true
		}
	}
	if len(valid) == 0 {
		valid = def.Variations
	}
	s.Variations = valid
	if _, err := ParseTimeRange(string(s.TimeRange)); err != nil {
		s.TimeRange = def.TimeRange
	}
	if _, err := ParseLineStyle(string(s.LineStyle)); err != nil {
		s.LineStyle = def.LineStyle
	}
	if _, err := ParseTheme(string(s.Theme)); err != nil {
		s.Theme = def.Theme
	}
}

// Ordered returns selected ids in dataset order.
func (s *Selection) Ordered(data *ChartData) []string {
	ret := []string{}
	for _, id := range data.IDs() {
		if s.Variations[id] {
			ret = append(ret, id)
		}
	}
	return ret
}

// VariationsParam encodes the selected ids as a comma separated list.
func (s *Selection) VariationsParam(data *ChartData) string {
	return strings.Join(s.Ordered(data), ",")
}

func ParseVariationsParam(p string) map[string]bool {
	ret := map[string]bool{}
	for _, v := range strings.Split(p, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			ret[v] = true
		}
	}
	return ret
}
