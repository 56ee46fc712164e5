// Package main runs a demo WebSocket client for plan events.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/events/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	for i, topic := range []string{"plans", "incidents"} {
		pl, _ := json.Marshal(map[string]string{"topic": topic})
		if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: fmt.Sprint(i + 1), Payload: pl}); err != nil {
			log.Fatal(err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s [%s]: %s", m.Type, m.ID, string(m.Payload))
		}
	}()

	// Trigger events: report incidents, then ask for a patrol plan.
	time.Sleep(500 * time.Millisecond)
	post(base+"/v1/incidents", `{"incidents":[{"lat":12.9345,"lng":77.6101,"location":"Koramangala","type":"theft","severity":2}]}`)
	post(base+"/api/allocate-patrol", `{"hotspots":[
		{"id":1,"lat":12.9345,"lng":77.6101,"location":"Koramangala","incidents":12},
		{"id":2,"lat":12.9400,"lng":77.5950,"location":"Jayanagar","incidents":6},
		{"id":3,"lat":12.9200,"lng":77.6200,"location":"HSR Layout","incidents":2}
	],"total_officers":4,"patrol_shift_minutes":240}`)

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}

func post(url, body string) {
	req, _ := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "dispatcher")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()
	log.Printf("POST %s -> %d", url, resp.StatusCode)
}
