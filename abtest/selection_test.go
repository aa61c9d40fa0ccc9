package abtest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DataDog/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggle(t *testing.T) {
	t.Parallel()
	d := sampleData()
	s := DefaultSelection(d)
	require.Equal(t, 3, s.Count())

	assert.True(t, s.Toggle(d, "0"))
	assert.True(t, s.Toggle(d, "10001"))
	assert.Equal(t, 1, s.Count())

	// last one stays
	assert.False(t, s.Toggle(d, "10002"))
	assert.True(t, s.Variations["10002"])

	assert.False(t, s.Toggle(d, "999"))
	assert.True(t, s.Toggle(d, "0"))
	assert.Equal(t, []string{"0", "10002"}, s.Ordered(d))
	assert.Equal(t, "0,10002", s.VariationsParam(d))
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	d := sampleData()
	s := Selection{
		Variations: map[string]bool{"999": true, "10001": true},
		TimeRange:  "year",
		LineStyle:  LineStyleArea,
	}
	s.Normalize(d)
	assert.Equal(t, map[string]bool{"10001": true}, s.Variations)
	assert.Equal(t, TimeRangeDay, s.TimeRange)
	assert.Equal(t, LineStyleArea, s.LineStyle)
	assert.Equal(t, ThemeLight, s.Theme)

	empty := Selection{Variations: map[string]bool{"10001": false}}
	empty.Normalize(d)
	assert.Equal(t, 3, empty.Count())
}

func TestParsers(t *testing.T) {
	t.Parallel()
	_, err := ParseLineStyle("zigzag")
	assert.ErrorIs(t, err, ErrUnknownLineStyle)
	ls, err := ParseLineStyle("step")
	require.NoError(t, err)
	assert.Equal(t, LineStyleStep, ls)

	_, err = ParseTheme("sepia")
	assert.ErrorIs(t, err, ErrUnknownTheme)
	_, err = ParseTimeRange("week")
	assert.NoError(t, err)

	assert.Equal(t, map[string]bool{"0": true, "10001": true}, ParseVariationsParam(" 0,,10001 "))
}

const sampleJSON = `{
	"variations": [{"name": "Original"}, {"id": 10001, "name": "Variation A"}],
	"data": [
		{"date": "2025-01-01", "visits": {"0": 10, "10001": 20}, "conversions": {"0": 1, "10001": 4}}
	]
}`

func TestLoad(t *testing.T) {
	t.Parallel()
	d, err := Load(strings.NewReader(sampleJSON))
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "10001"}, d.IDs())
	assert.Equal(t, "Variation A", d.Names()["10001"])

	_, err = Load(strings.NewReader(`{"variations": []}`))
	assert.ErrorIs(t, err, ErrInvalidDataset)

	_, err = Load(strings.NewReader(`{"variations": [{"name": "a"}, {"name": "b"}]}`))
	assert.ErrorIs(t, err, ErrInvalidDataset)

	_, err = Load(strings.NewReader(`{"variations": [{"name": "a"}], "data": [{"date": "2025-01-01", "visits": {"0": -1}}]}`))
	assert.ErrorIs(t, err, ErrInvalidDataset)

	_, err = Load(strings.NewReader(`{`))
	assert.Error(t, err)
}

func TestLoadFileCompressed(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	plain := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(plain, []byte(sampleJSON), 0o644))

	d, err := LoadFile(plain)
	require.NoError(t, err)

	b, err := Pack(d, zstd.BestCompression)
	require.NoError(t, err)
	packed := filepath.Join(dir, "data.json.zst")
	require.NoError(t, os.WriteFile(packed, b, 0o644))

	d2, err := LoadFile(packed)
	require.NoError(t, err)
	assert.Equal(t, d, d2)

	require.NoError(t, os.WriteFile(packed, bytes.Repeat([]byte{1}, 16), 0o644))
	_, err = LoadFile(packed)
	assert.Error(t, err)
}

func TestSpan(t *testing.T) {
	t.Parallel()
	first, last := sampleData().Span()
	assert.Equal(t, "2025-01-01", first.Format(dateLayout))
	assert.Equal(t, "2025-01-06", last.Format(dateLayout))
}
