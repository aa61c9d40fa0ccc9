package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testDataset = `{
	"variations": [{"name": "Original"}, {"id": 10001, "name": "Variation A"}, {"id": 10002, "name": "Variation B"}],
	"data": [
		{"date": "2025-01-01", "visits": {"0": 100, "10001": 200, "10002": 50}, "conversions": {"0": 10, "10001": 30, "10002": 5}},
		{"date": "2025-01-02", "visits": {"0": 300, "10001": 200, "10002": 50}, "conversions": {"0": 20, "10001": 10, "10002": 20}},
		{"date": "2025-01-06", "visits": {"0": 3, "10001": 7, "10002": 9}, "conversions": {"0": 1, "10001": 1, "10002": 3}}
	]
}`

func setupTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()
	cfg = defaultConfig()
	cfg.Dataset = filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(cfg.Dataset, []byte(testDataset), 0o644))

	l, err := loadLayouts("layouts")
	require.NoError(t, err)
	layouts.Store(l)
	sessionManager = scs.New()
	store = &datasetStore{}
	DashboardWSHub = nil
	dbpool = nil
	require.NoError(t, reloadDataset(context.Background()))

	srv := httptest.NewServer(sessionManager.LoadAndSave(newRouter()))
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return srv, &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

func get(t *testing.T, c *http.Client, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := c.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func getSelection(t *testing.T, c *http.Client, base string) map[string]any {
	t.Helper()
	resp, body := get(t, c, base+"/api/selection")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	return m
}

func TestDashboardPage(t *testing.T) {
	srv, c := setupTestServer(t)
	resp, body := get(t, c, srv.URL+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s := string(body)
	assert.Contains(t, s, "A/B Test Conversion Rate")
	assert.Contains(t, s, "Variation A")
	assert.Contains(t, s, "/chart?")
	assert.Contains(t, s, "06/01/2025")
}

func TestChartPage(t *testing.T) {
	srv, c := setupTestServer(t)
	resp, body := get(t, c, srv.URL+"/chart?style=area&theme=dark&range=week")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s := string(body)
	assert.Contains(t, s, "echarts")
	assert.Contains(t, s, "Variation B")
	assert.Contains(t, s, "areaStyle")
}

func TestToggleKeepsLastVariation(t *testing.T) {
	srv, c := setupTestServer(t)
	for _, id := range []string{"0", "10001"} {
		resp, _ := get(t, c, srv.URL+"/toggle/"+id)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	sel := getSelection(t, c, srv.URL)
	assert.Equal(t, map[string]any{"10002": true}, sel["variations"])

	get(t, c, srv.URL+"/toggle/10002")
	sel = getSelection(t, c, srv.URL)
	assert.Equal(t, map[string]any{"10002": true}, sel["variations"])

	_, body := get(t, c, srv.URL+"/")
	assert.Contains(t, string(body), "selected disabled")

	get(t, c, srv.URL+"/toggle/0")
	sel = getSelection(t, c, srv.URL)
	assert.Equal(t, map[string]any{"0": true, "10002": true}, sel["variations"])

	get(t, c, srv.URL+"/reset")
	sel = getSelection(t, c, srv.URL)
	assert.Len(t, sel["variations"], 3)
}

func TestSessionControls(t *testing.T) {
	srv, c := setupTestServer(t)
	get(t, c, srv.URL+"/range/week")
	get(t, c, srv.URL+"/style/natural")
	get(t, c, srv.URL+"/theme/dark")
	sel := getSelection(t, c, srv.URL)
	assert.Equal(t, "week", sel["timeRange"])
	assert.Equal(t, "natural", sel["lineStyle"])
	assert.Equal(t, "dark", sel["theme"])

	resp, _ := get(t, c, srv.URL+"/range/month")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = get(t, c, srv.URL+"/style/zigzag")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// another client has its own session
	_, other := setupClient(t)
	sel = getSelection(t, other, srv.URL)
	assert.Equal(t, "day", sel["timeRange"])
}

func setupClient(t *testing.T) (*cookiejar.Jar, *http.Client) {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return jar, &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

func TestAPIData(t *testing.T) {
	srv, c := setupTestServer(t)
	resp, body := get(t, c, srv.URL+"/api/data?range=week&variations=0,10001")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m struct {
		Points []map[string]any  `json:"points"`
		Domain [2]float64        `json:"domain"`
		Colors map[string]string `json:"colors"`
	}
	require.NoError(t, json.Unmarshal(body, &m))
	require.Len(t, m.Points, 2)
	assert.Equal(t, "Dec 30", m.Points[0]["date"])
	assert.Equal(t, 7.5, m.Points[0]["0"])
	assert.Equal(t, 10.0, m.Points[0]["10001"])
	assert.NotContains(t, m.Points[0], "10002")
	assert.Equal(t, [2]float64{4, 36}, m.Domain)
	assert.Equal(t, map[string]string{"0": "#46464F", "10001": "#4142EF"}, m.Colors)

	resp, body = get(t, c, srv.URL+"/api/data?from=2025-01-02&to=2025-01-02")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &m))
	require.Len(t, m.Points, 1)
	assert.Equal(t, "Jan 2", m.Points[0]["date"])
}

func TestAPIVariations(t *testing.T) {
	srv, c := setupTestServer(t)
	resp, body := get(t, c, srv.URL+"/api/variations")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[
		{"id": "0", "name": "Original", "color": "#46464F"},
		{"id": "10001", "name": "Variation A", "color": "#4142EF"},
		{"id": "10002", "name": "Variation B", "color": "#FF8346"}
	]`, string(body))
}

func postJSON(t *testing.T, c *http.Client, url, contentType, body string) (int, map[string]any) {
	t.Helper()
	resp, err := c.Post(url, contentType, strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var m map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&m)
	return resp.StatusCode, m
}

func TestAPISetSelection(t *testing.T) {
	srv, c := setupTestServer(t)
	code, m := postJSON(t, c, srv.URL+"/api/selection", "application/json", `{"timeRange": "week", "variations": ["10001"], "theme": "dark"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"10001": true}, m["variations"])

	sel := getSelection(t, c, srv.URL)
	assert.Equal(t, "week", sel["timeRange"])
	assert.Equal(t, "dark", sel["theme"])

	code, m = postJSON(t, c, srv.URL+"/api/selection", "application/json", `{"variations": ["42"]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, m["error"], "unknown variation")

	code, _ = postJSON(t, c, srv.URL+"/api/selection", "application/json", `{"variations": []}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = postJSON(t, c, srv.URL+"/api/selection", "application/json", `{"lineStyle": "zigzag"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, m = postJSON(t, c, srv.URL+"/api/selection", "application/json", `{"colour": "red"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, m["error"], "unknown field")

	code, _ = postJSON(t, c, srv.URL+"/api/selection", "text/plain", `{}`)
	assert.Equal(t, http.StatusUnsupportedMediaType, code)

	code, _ = postJSON(t, c, srv.URL+"/api/selection", "application/json", `{"theme": "dark"} {}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestExportPNG(t *testing.T) {
	srv, c := setupTestServer(t)
	for _, q := range []string{"", "&theme=dark&style=area", "&range=week&style=step", "&from=2025-01-06"} {
		resp, body := get(t, c, srv.URL+"/api/export.png?width=400&height=300"+q)
		require.Equal(t, http.StatusOK, resp.StatusCode, "query %q: %s", q, body)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
		img, err := png.DecodeConfig(bytes.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, 400, img.Width)
		assert.Equal(t, 300, img.Height)
	}

	resp, _ := get(t, c, srv.URL+"/api/export.png?from=2030-01-01")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, c, srv.URL+"/api/export.png?width=10")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportCache(t *testing.T) {
	srv, c := setupTestServer(t)
	cfg.Export.CacheDir = filepath.Join(t.TempDir(), "export")
	resp, first := get(t, c, srv.URL+"/api/export.png?width=300&height=200")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries, err := os.ReadDir(cfg.Export.CacheDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, second := get(t, c, srv.URL+"/api/export.png?width=300&height=200")
	assert.Equal(t, first, second)

	assert.NotEqual(t, exportCacheKey("a", "x"), exportCacheKey("b", "x"))
}

func TestReloadDataset(t *testing.T) {
	srv, c := setupTestServer(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg.AdminPasswordHash = string(hash)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/reload", nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.SetBasicAuth("admin", "secret")
	resp, err = c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, ver := store.Get()
	assert.Equal(t, 2, ver)

	require.NoError(t, os.WriteFile(cfg.Dataset, []byte(`{"variations": []}`), 0o644))
	resp, err = c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	data, ver := store.Get()
	assert.Equal(t, 2, ver)
	assert.Len(t, data.Variations, 3)
}

func TestStatusAndNotFound(t *testing.T) {
	srv, c := setupTestServer(t)
	resp, body := get(t, c, srv.URL+"/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	ds, ok := m["dataset"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3.0, ds["variations"])
	assert.Equal(t, "2025-01-06", ds["last"])

	resp, _ = get(t, c, srv.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = get(t, c, srv.URL+"/api/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebsocketReload(t *testing.T) {
	srv, _ := setupTestServer(t)
	DashboardWSHub = NewWSHub()
	go DashboardWSHub.Run()
	t.Cleanup(func() { DashboardWSHub = nil })

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws/dashboard", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return DashboardWSHub.Count() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, reloadDataset(context.Background()))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var m map[string]any
	require.NoError(t, conn.ReadJSON(&m))
	assert.Equal(t, "DatasetReload", m["type"])
	assert.Equal(t, 2.0, m["version"])
}
