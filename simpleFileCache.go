package main

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
)

// exportCacheKey identifies one rendered export. The dataset digest is part
// of the key so neither a reload nor a restart serves a stale picture.
func exportCacheKey(digest string, parts ...string) string {
	h := sha1.New()
	io.WriteString(h, digest)
	for _, p := range parts {
		fmt.Fprintf(h, "|%s", p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// exportCacheGet returns the cached file for key, producing and storing it
// with render on a miss. Without a cache directory it always renders.
func exportCacheGet(key string, render func() ([]byte, error)) ([]byte, error) {
	if cfg.Export.CacheDir == "" {
		return render()
	}
	p := path.Join(cfg.Export.CacheDir, key+".png")
	b, err := os.ReadFile(p)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	out, err := render()
	if err != nil {
		return nil, err
	}
	err = os.MkdirAll(cfg.Export.CacheDir, 0755)
	if err != nil {
		return nil, err
	}
	err = os.WriteFile(p, out, 0644)
	if err != nil {
		return nil, err
	}
	return out, nil
}
