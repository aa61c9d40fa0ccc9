package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/convrate/dashboard/abtest"
)

const (
	keySelection = "Dashboard.Selection"
)

func sessionGetSelection(r *http.Request, data *abtest.ChartData) abtest.Selection {
	s := abtest.DefaultSelection(data)
	if !sessionManager.Exists(r.Context(), keySelection) {
		return s
	}
	var stored abtest.Selection
	if err := json.Unmarshal([]byte(sessionManager.GetString(r.Context(), keySelection)), &stored); err != nil {
		log.Println("Bad selection in session:", err)
		return s
	}
	stored.Normalize(data)
	return stored
}

func sessionPutSelection(r *http.Request, s abtest.Selection) {
	b, err := json.Marshal(s)
	if err != nil {
		log.Println("Failed to marshal selection:", err)
		return
	}
	sessionManager.Put(r.Context(), keySelection, string(b))
}

// requestSelection starts from the session and applies whatever the query
// string overrides.
func requestSelection(r *http.Request, data *abtest.ChartData) abtest.Selection {
	s := sessionGetSelection(r, data)
	if v := parseQueryString(r, "range", ""); v != "" {
		if tr, err := abtest.ParseTimeRange(v); err == nil {
			s.TimeRange = tr
		}
	}
	if v := parseQueryString(r, "style", ""); v != "" {
		if ls, err := abtest.ParseLineStyle(v); err == nil {
			s.LineStyle = ls
		}
	}
	if v := parseQueryString(r, "theme", ""); v != "" {
		if th, err := abtest.ParseTheme(v); err == nil {
			s.Theme = th
		}
	}
	if v := parseQueryString(r, "variations", ""); v != "" {
		s.Variations = abtest.ParseVariationsParam(v)
		s.Normalize(data)
	}
	return s
}

// requestZoom reads the from/to window, both YYYY-MM-DD and optional.
func requestZoom(r *http.Request) (time.Time, time.Time) {
	return parseQueryDate(r, "from"), parseQueryDate(r, "to")
}
