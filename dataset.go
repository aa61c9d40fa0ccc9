package main

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/convrate/dashboard/abtest"
	"github.com/convrate/dashboard/db"
)

const datasetSourceDB = "db"

var errDatasetNeedsDB = errors.New("dataset source db needs DB to be configured")

type datasetStore struct {
	lock     sync.RWMutex
	data     *abtest.ChartData
	version  int
	loadedAt time.Time
	source   string
	digest   string
}

func (s *datasetStore) Get() (*abtest.ChartData, int) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.data, s.version
}

func (s *datasetStore) Set(d *abtest.ChartData, source string) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.data = d
	s.version++
	s.loadedAt = time.Now()
	s.source = source
	s.digest = datasetDigest(d)
	return s.version
}

// GetDigest returns the dataset together with a digest of its content.
// Unlike the version the digest stays the same across restarts.
func (s *datasetStore) GetDigest() (*abtest.ChartData, string) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.data, s.digest
}

func datasetDigest(d *abtest.ChartData) string {
	b, err := json.Marshal(d)
	if err != nil {
		log.Println("Failed to marshal dataset for digest:", err)
		return ""
	}
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

func (s *datasetStore) Info() map[string]any {
	s.lock.RLock()
	defer s.lock.RUnlock()
	ret := map[string]any{
		"version":  s.version,
		"source":   s.source,
		"loadedAt": s.loadedAt,
		"digest":   s.digest,
	}
	if s.data != nil {
		first, last := s.data.Span()
		ret["variations"] = len(s.data.Variations)
		ret["days"] = len(s.data.Data)
		ret["first"] = first.Format("2006-01-02")
		ret["last"] = last.Format("2006-01-02")
	}
	return ret
}

func fetchDataset(ctx context.Context) (*abtest.ChartData, error) {
	if cfg.Dataset == datasetSourceDB {
		if dbpool == nil {
			return nil, errDatasetNeedsDB
		}
		return db.LoadDataset(ctx, dbpool)
	}
	return abtest.LoadFile(cfg.Dataset)
}

// reloadDataset swaps in a freshly loaded dataset. On failure the
// previous one stays in place.
func reloadDataset(ctx context.Context) error {
	d, err := fetchDataset(ctx)
	if err != nil {
		return err
	}
	ver := store.Set(d, cfg.Dataset)
	log.Printf("Dataset loaded from [%s]: %d variations, %d days (version %d)", cfg.Dataset, len(d.Variations), len(d.Data), ver)
	if dbpool != nil {
		if err := db.AddEventLog(ctx, dbpool, "Dataset reloaded from %s, version %d", cfg.Dataset, ver); err != nil {
			log.Println("Failed to add event log:", err)
		}
	}
	WSDashboardDatasetReload(ver)
	return nil
}
