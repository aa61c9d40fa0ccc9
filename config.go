package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/imdario/mergo"
	"gopkg.in/yaml.v3"
)

type exportConfig struct {
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	CacheDir string `yaml:"cacheDir"`
}

type config struct {
	Port              string        `yaml:"port"`
	Dataset           string        `yaml:"dataset"`
	DB                string        `yaml:"db"`
	LogFile           string        `yaml:"logFile"`
	Layouts           string        `yaml:"layouts"`
	Static            string        `yaml:"static"`
	AssetsHost        string        `yaml:"assetsHost"`
	AllowOrigin       string        `yaml:"allowOrigin"`
	AdminPasswordHash string        `yaml:"adminPasswordHash"`
	SessionLifetime   time.Duration `yaml:"sessionLifetime"`
	Export            exportConfig  `yaml:"export"`
}

var cfg = defaultConfig()

func defaultConfig() config {
	return config{
		Port:            "3000",
		Dataset:         "./data.json",
		LogFile:         "./logs/" + BuildType + ".log",
		Layouts:         "layouts/",
		Static:          "./static",
		SessionLifetime: time.Hour * 24 * 30,
		Export: exportConfig{
			Width:  1200,
			Height: 500,
		},
	}
}

// loadConfig reads the yaml file at p when it exists, fills whatever it
// leaves empty from the defaults and lets environment variables win.
func loadConfig(p string) (config, error) {
	ret := config{}
	b, err := os.ReadFile(p)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return ret, err
	}
	if err == nil {
		if err := yaml.Unmarshal(b, &ret); err != nil {
			return ret, fmt.Errorf("parsing %s: %w", p, err)
		}
	}
	if err := mergo.Merge(&ret, defaultConfig()); err != nil {
		return ret, err
	}
	envOverride(&ret.Port, "PORT")
	envOverride(&ret.Dataset, "DATASET")
	envOverride(&ret.DB, "DB")
	envOverride(&ret.LogFile, "LOGFILE")
	envOverride(&ret.Layouts, "LAYOUTS")
	envOverride(&ret.AssetsHost, "ASSETS_HOST")
	envOverride(&ret.AdminPasswordHash, "ADMIN_PASSWORD_HASH")
	envOverride(&ret.Export.CacheDir, "EXPORT_CACHE")
	if v := os.Getenv("EXPORT_WIDTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ret, fmt.Errorf("EXPORT_WIDTH: %w", err)
		}
		ret.Export.Width = n
	}
	if v := os.Getenv("EXPORT_HEIGHT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ret, fmt.Errorf("EXPORT_HEIGHT: %w", err)
		}
		ret.Export.Height = n
	}
	return ret, nil
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
