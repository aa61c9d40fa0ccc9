package main

import (
	"net/http"
	"net/url"

	"github.com/davecgh/go-spew/spew"
	"github.com/gorilla/mux"

	"github.com/convrate/dashboard/abtest"
)

type controlButton struct {
	Label    string
	URL      string
	Color    string
	Selected bool
	Disabled bool
}

type winnerRow struct {
	Name   string
	Color  string
	Rate   float64
	Winner bool
}

// prepareChart runs the aggregation for a selection and zoom window.
func prepareChart(data *abtest.ChartData, sel abtest.Selection, r *http.Request) (conversionChart, error) {
	points, err := abtest.ProcessDataForChart(data, sel.Variations, sel.TimeRange)
	if err != nil {
		return conversionChart{}, err
	}
	from, to := requestZoom(r)
	points = abtest.Zoom(points, sel.TimeRange, from, to)
	return conversionChart{
		Points:    points,
		Data:      data,
		Selection: sel,
		Domain:    abtest.YAxisDomain(points, sel.Variations, sel.LineStyle),
	}, nil
}

func selectionQuery(data *abtest.ChartData, sel abtest.Selection, r *http.Request) url.Values {
	q := url.Values{}
	q.Set("range", string(sel.TimeRange))
	q.Set("style", string(sel.LineStyle))
	q.Set("theme", string(sel.Theme))
	q.Set("variations", sel.VariationsParam(data))
	for _, k := range []string{"from", "to"} {
		if v := parseQueryString(r, k, ""); v != "" {
			q.Set(k, v)
		}
	}
	return q
}

func zoomSuffix(r *http.Request) string {
	q := url.Values{}
	for _, k := range []string{"from", "to"} {
		if v := parseQueryString(r, k, ""); v != "" {
			q.Set(k, v)
		}
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func dashboardControls(data *abtest.ChartData, sel abtest.Selection, r *http.Request) map[string][]controlButton {
	suffix := zoomSuffix(r)
	variations := []controlButton{}
	for i, v := range data.Variations {
		id := abtest.VariationID(v)
		selected := sel.Variations[id]
		variations = append(variations, controlButton{
			Label:    v.Name,
			URL:      "/toggle/" + id + suffix,
			Color:    abtest.Color(i),
			Selected: selected,
			Disabled: selected && sel.Count() == 1,
		})
	}
	ranges := []controlButton{}
	for _, tr := range []abtest.TimeRange{abtest.TimeRangeDay, abtest.TimeRangeWeek} {
		ranges = append(ranges, controlButton{
			Label:    map[abtest.TimeRange]string{abtest.TimeRangeDay: "Day", abtest.TimeRangeWeek: "Week"}[tr],
			URL:      "/range/" + string(tr) + suffix,
			Selected: sel.TimeRange == tr,
		})
	}
	styles := []controlButton{}
	for _, ls := range abtest.LineStyles {
		styles = append(styles, controlButton{
			Label:    string(ls),
			URL:      "/style/" + string(ls) + suffix,
			Selected: sel.LineStyle == ls,
		})
	}
	themes := []controlButton{}
	for _, th := range abtest.Themes {
		themes = append(themes, controlButton{
			Label:    string(th),
			URL:      "/theme/" + string(th) + suffix,
			Selected: sel.Theme == th,
		})
	}
	return map[string][]controlButton{
		"Variations": variations,
		"Ranges":     ranges,
		"Styles":     styles,
		"Themes":     themes,
	}
}

func winnerTable(c conversionChart) (string, []winnerRow) {
	if len(c.Points) == 0 {
		return "", nil
	}
	last := c.Points[len(c.Points)-1]
	names := c.Data.Names()
	colors := map[string]string{}
	for i, id := range c.Data.IDs() {
		colors[id] = abtest.Color(i)
	}
	rows := []winnerRow{}
	for _, l := range abtest.Leaders(last, c.Selection.Variations) {
		rows = append(rows, winnerRow{Name: names[l.ID], Color: colors[l.ID], Rate: l.Rate, Winner: l.Winner})
	}
	return last.FullDate, rows
}

func dashboardHandler(w http.ResponseWriter, r *http.Request) {
	data, ver := store.Get()
	if data == nil {
		respondWithPlainMessage(w, r, http.StatusServiceUnavailable, "Dataset is not loaded yet")
		return
	}
	sel := requestSelection(r, data)
	c, err := prepareChart(data, sel, r)
	if !checkRespondGenericErrorAny(w, r, err) {
		return
	}
	q := selectionQuery(data, sel, r)
	first, last := data.Span()
	winnerDate, winners := winnerTable(c)
	basicLayoutLookupRespond(templateDashboard, w, r, map[string]interface{}{
		"Title":      chartTitle,
		"Theme":      string(sel.Theme),
		"Controls":   dashboardControls(data, sel, r),
		"ChartURL":   "/chart?" + q.Encode(),
		"ExportURL":  "/api/export.png?" + q.Encode(),
		"Domain":     c.Domain,
		"Points":     len(c.Points),
		"WinnerDate": winnerDate,
		"Winners":    winners,
		"From":       parseQueryString(r, "from", ""),
		"To":         parseQueryString(r, "to", ""),
		"First":      first.Format("2006-01-02"),
		"Last":       last.Format("2006-01-02"),
		"Version":    ver,
	})
}

// chartHandler serves the standalone interactive chart page the dashboard
// embeds.
func chartHandler(w http.ResponseWriter, r *http.Request) {
	data, _ := store.Get()
	if data == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	sel := requestSelection(r, data)
	c, err := prepareChart(data, sel, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := c.Render(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toggleHandler(w http.ResponseWriter, r *http.Request) {
	data, _ := store.Get()
	if data == nil {
		backToDashboard(w, r)
		return
	}
	sel := sessionGetSelection(r, data)
	if sel.Toggle(data, mux.Vars(r)["id"]) {
		sessionPutSelection(r, sel)
	}
	backToDashboard(w, r)
}

func rangeHandler(w http.ResponseWriter, r *http.Request) {
	tr, err := abtest.ParseTimeRange(mux.Vars(r)["range"])
	if err != nil {
		respondWithPlainMessage(w, r, http.StatusBadRequest, "Unknown time range")
		return
	}
	updateSessionSelection(w, r, func(s *abtest.Selection) { s.TimeRange = tr })
}

func styleHandler(w http.ResponseWriter, r *http.Request) {
	ls, err := abtest.ParseLineStyle(mux.Vars(r)["style"])
	if err != nil {
		respondWithPlainMessage(w, r, http.StatusBadRequest, "Unknown line style")
		return
	}
	updateSessionSelection(w, r, func(s *abtest.Selection) { s.LineStyle = ls })
}

func themeHandler(w http.ResponseWriter, r *http.Request) {
	th, err := abtest.ParseTheme(mux.Vars(r)["theme"])
	if err != nil {
		respondWithPlainMessage(w, r, http.StatusBadRequest, "Unknown theme")
		return
	}
	updateSessionSelection(w, r, func(s *abtest.Selection) { s.Theme = th })
}

func resetHandler(w http.ResponseWriter, r *http.Request) {
	sessionManager.Remove(r.Context(), keySelection)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func updateSessionSelection(w http.ResponseWriter, r *http.Request, f func(s *abtest.Selection)) {
	data, _ := store.Get()
	if data != nil {
		sel := sessionGetSelection(r, data)
		f(&sel)
		sessionPutSelection(r, sel)
	}
	backToDashboard(w, r)
}

func debugDatasetHandler(w http.ResponseWriter, r *http.Request) {
	data, _ := store.Get()
	basicLayoutLookupRespond(templatePlainMessage, w, r, map[string]interface{}{
		"nocenter": true,
		"pre":      spew.Sdump(store.Info(), data),
	})
}
