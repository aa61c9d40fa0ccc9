package main

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

var startedAt = time.Now()

func APIgetStatus(_ http.ResponseWriter, r *http.Request) (int, any) {
	var vm *mem.VirtualMemoryStat
	var uptime uint64
	err := RequestMultiple(func() error {
		var err error
		vm, err = mem.VirtualMemoryWithContext(r.Context())
		return err
	}, func() error {
		var err error
		uptime, err = host.UptimeWithContext(r.Context())
		return err
	})
	ret := map[string]any{
		"build": map[string]string{
			"time":    BuildTime,
			"commit":  CommitHash,
			"tag":     GitTag,
			"type":    BuildType,
			"version": GoVersion,
		},
		"dataset":    store.Info(),
		"goroutines": runtime.NumGoroutine(),
		"dashboards": dashboardsConnected(),
		"uptime":     time.Since(startedAt).Round(time.Second).String(),
	}
	if err == nil {
		ret["host"] = map[string]any{
			"memTotal":       vm.Total,
			"memUsedPercent": vm.UsedPercent,
			"uptime":         uptime,
		}
	} else {
		ret["hostError"] = err.Error()
	}
	return http.StatusOK, ret
}

func dashboardsConnected() int {
	if DashboardWSHub == nil {
		return 0
	}
	return DashboardWSHub.Count()
}
