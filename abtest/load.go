package abtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/DataDog/zstd"
)

func Load(r io.Reader) (*ChartData, error) {
	var d ChartData
	dec := json.NewDecoder(r)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decoding dataset: %w", err)
	}
	if err := Validate(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadFile reads a dataset, decompressing it first when the name ends in .zst.
func LoadFile(p string) (*ChartData, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(p, ".zst") {
		b, err = zstd.Decompress(nil, b)
		if err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", p, err)
		}
	}
	return Load(bytes.NewReader(b))
}

// Pack encodes a dataset and compresses it with the given zstd level.
func Pack(d *ChartData, level int) ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return zstd.CompressLevel(nil, b, level)
}

func Validate(d *ChartData) error {
	if len(d.Variations) == 0 {
		return fmt.Errorf("%w: no variations", ErrInvalidDataset)
	}
	seen := map[string]bool{}
	for _, v := range d.Variations {
		id := VariationID(v)
		if seen[id] {
			return fmt.Errorf("%w: duplicate variation id %s", ErrInvalidDataset, id)
		}
		seen[id] = true
	}
	for i, dd := range d.Data {
		if _, err := parseDate(dd.Date); err != nil {
			return fmt.Errorf("%w: record %d has bad date %q", ErrInvalidDataset, i, dd.Date)
		}
		for k, v := range dd.Visits {
			if v < 0 {
				return fmt.Errorf("%w: record %d has negative visits for %s", ErrInvalidDataset, i, k)
			}
		}
		for k, v := range dd.Conversions {
			if v < 0 {
				return fmt.Errorf("%w: record %d has negative conversions for %s", ErrInvalidDataset, i, k)
			}
		}
	}
	return nil
}
