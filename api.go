package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/convrate/dashboard/abtest"
)

var errDatasetNotLoaded = errors.New("dataset is not loaded")

// APIcall adapts a handler returning a status and a body. Errors become
// {"error": ...}, byte slices are written as is, anything else is JSON.
func APIcall(c func(w http.ResponseWriter, r *http.Request) (int, any)) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		code, content := c(w, r)
		if cfg.AllowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", cfg.AllowOrigin)
		}
		if content == nil {
			w.WriteHeader(code)
			return
		}
		switch v := content.(type) {
		case []byte:
			w.WriteHeader(code)
			w.Write(v)
			return
		case error:
			content = map[string]any{"error": v.Error()}
		}
		b, err := json.Marshal(content)
		if err != nil {
			log.Println("Failed to marshal api response:", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(code)
		w.Write(b)
	}
}

func APIgetVariations(_ http.ResponseWriter, r *http.Request) (int, any) {
	data, _ := store.Get()
	if data == nil {
		return http.StatusServiceUnavailable, errDatasetNotLoaded
	}
	type variation struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	ret := []variation{}
	for i, v := range data.Variations {
		ret = append(ret, variation{ID: abtest.VariationID(v), Name: v.Name, Color: abtest.Color(i)})
	}
	return http.StatusOK, ret
}

func APIgetChartData(_ http.ResponseWriter, r *http.Request) (int, any) {
	data, ver := store.Get()
	if data == nil {
		return http.StatusServiceUnavailable, errDatasetNotLoaded
	}
	sel := requestSelection(r, data)
	c, err := prepareChart(data, sel, r)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	colors := map[string]string{}
	for i, id := range data.IDs() {
		if sel.Variations[id] {
			colors[id] = abtest.Color(i)
		}
	}
	return http.StatusOK, map[string]any{
		"version":   ver,
		"selection": sel,
		"points":    c.Points,
		"domain":    c.Domain,
		"colors":    colors,
		"names":     data.Names(),
	}
}

func APIgetSelection(_ http.ResponseWriter, r *http.Request) (int, any) {
	data, _ := store.Get()
	if data == nil {
		return http.StatusServiceUnavailable, errDatasetNotLoaded
	}
	return http.StatusOK, sessionGetSelection(r, data)
}

type selectionRequest struct {
	Variations []string `json:"variations"`
	TimeRange  string   `json:"timeRange"`
	LineStyle  string   `json:"lineStyle"`
	Theme      string   `json:"theme"`
}

func APIsetSelection(w http.ResponseWriter, r *http.Request) (int, any) {
	data, _ := store.Get()
	if data == nil {
		return http.StatusServiceUnavailable, errDatasetNotLoaded
	}
	var req selectionRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		var mr *malformedRequest
		if errors.As(err, &mr) {
			return mr.status, mr
		}
		return http.StatusBadRequest, err
	}
	sel := sessionGetSelection(r, data)
	var err error
	if req.TimeRange != "" {
		if sel.TimeRange, err = abtest.ParseTimeRange(req.TimeRange); err != nil {
			return http.StatusBadRequest, err
		}
	}
	if req.LineStyle != "" {
		if sel.LineStyle, err = abtest.ParseLineStyle(req.LineStyle); err != nil {
			return http.StatusBadRequest, err
		}
	}
	if req.Theme != "" {
		if sel.Theme, err = abtest.ParseTheme(req.Theme); err != nil {
			return http.StatusBadRequest, err
		}
	}
	if req.Variations != nil {
		known := map[string]bool{}
		for _, id := range data.IDs() {
			known[id] = true
		}
		vars := map[string]bool{}
		for _, id := range req.Variations {
			if !known[id] {
				return http.StatusBadRequest, errors.New("unknown variation " + id)
			}
			vars[id] = true
		}
		if len(vars) == 0 {
			return http.StatusBadRequest, errors.New("at least one variation must stay selected")
		}
		sel.Variations = vars
	}
	sessionPutSelection(r, sel)
	return http.StatusOK, sel
}

func APIgetExportPNG(w http.ResponseWriter, r *http.Request) (int, any) {
	data, digest := store.GetDigest()
	if data == nil {
		return http.StatusServiceUnavailable, errDatasetNotLoaded
	}
	sel := requestSelection(r, data)
	c, err := prepareChart(data, sel, r)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	width := parseQueryInt(r, "width", cfg.Export.Width)
	height := parseQueryInt(r, "height", cfg.Export.Height)
	if width < 100 || width > 4000 || height < 100 || height > 4000 {
		return http.StatusBadRequest, errors.New("export size must be within 100..4000")
	}
	key := exportCacheKey(digest, selectionQuery(data, sel, r).Encode(), strconv.Itoa(width), strconv.Itoa(height))
	b, err := exportCacheGet(key, func() ([]byte, error) {
		var buf bytes.Buffer
		err := renderPNG(&buf, c, width, height)
		return buf.Bytes(), err
	})
	if errors.Is(err, errNothingToRender) {
		return http.StatusNotFound, err
	}
	if err != nil {
		return http.StatusInternalServerError, err
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", "attachment; filename=\"conversion-rate-"+time.Now().Format("2006-01-02")+".png\"")
	return http.StatusOK, b
}

func APIreloadDataset(_ http.ResponseWriter, r *http.Request) (int, any) {
	if cfg.AdminPasswordHash != "" {
		_, pass, ok := r.BasicAuth()
		if !ok || bcrypt.CompareHashAndPassword([]byte(cfg.AdminPasswordHash), []byte(pass)) != nil {
			return http.StatusUnauthorized, errors.New("unauthorized")
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := reloadDataset(ctx); err != nil {
		log.Println("Dataset reload failed:", err)
		return http.StatusUnprocessableEntity, err
	}
	return http.StatusOK, store.Info()
}
