package main

import (
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

func parseQueryInt(r *http.Request, field string, d int) int {
	if val, ok := r.URL.Query()[field]; ok && len(val) > 0 {
		val2, err := strconv.Atoi(val[0])
		if err == nil {
			return val2
		}
	}
	return d
}

func parseQueryString(r *http.Request, field string, d string) string {
	if val, ok := r.URL.Query()[field]; ok && len(val) > 0 {
		return val[0]
	}
	return d
}

func parseQueryDate(r *http.Request, field string) time.Time {
	v := parseQueryString(r, field, "")
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// measureHandlerTimings logs how long a handler took.
func measureHandlerTimings(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := time.Now()
		h(w, r)
		log.Printf("Timings [%s]: %v", r.URL.Path, time.Since(s))
	}
}

// backToDashboard keeps the zoom window when redirecting after a control
// was clicked.
func backToDashboard(w http.ResponseWriter, r *http.Request) {
	q := url.Values{}
	for _, k := range []string{"from", "to"} {
		if v := parseQueryString(r, k, ""); v != "" {
			q.Set(k, v)
		}
	}
	target := "/"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func respondWithPlainMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.WriteHeader(status)
	basicLayoutLookupRespond(templatePlainMessage, w, r, map[string]interface{}{"msgred": status >= 400, "msg": msg})
}

func checkRespondGenericErrorAny(w http.ResponseWriter, r *http.Request, err error) bool {
	if err != nil {
		respondWithPlainMessage(w, r, http.StatusInternalServerError, "Error: "+err.Error())
	}
	return err == nil
}

func myNotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			basicLayoutLookupRespond("error404", w, r, map[string]interface{}{})
		}
	})
}
