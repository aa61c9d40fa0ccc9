package main

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024 * 4,
	}
)

func APIWSHub(hub *WSHub, w http.ResponseWriter, r *http.Request) {
	if hub == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to accept dashboard listener websocket: %s", err.Error())
		return
	}
	client := &WSHubClient{hub: hub, conn: conn, send: make(chan any, 4), remote: r.RemoteAddr}
	client.hub.connect <- client
}

// WSDashboardDatasetReload tells open dashboards there is a new dataset
// version to fetch.
func WSDashboardDatasetReload(version int) {
	if DashboardWSHub == nil {
		return
	}
	DashboardWSHub.bcast <- map[string]any{
		"type":    "DatasetReload",
		"version": version,
	}
}
