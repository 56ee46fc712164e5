package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const heartbeatInterval = 15 * time.Second

func validTopic(t string) bool { return t == TopicPlans || t == TopicIncidents }

func topicParam(r *http.Request) string {
	if t := r.URL.Query().Get("topic"); t != "" {
		return t
	}
	return TopicPlans
}

// EventsStreamHandler handles GET /v1/events/stream?topic= (Server-Sent Events).
func (s *Server) EventsStreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	topic := topicParam(r)
	if !validTopic(topic) {
		writeProblem(w, http.StatusBadRequest, "Unknown topic", topic, r.URL.Path)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(topic)
	defer s.Broker.Unsubscribe(topic, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"topic\":%q,\"ts\":%q}\n\n", topic, time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		case <-ticker.C:
			heartbeat()
		}
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// wsMessage follows the graphql-transport-ws framing: connection_init/ack,
// subscribe/next/complete keyed by id, ping/pong.
type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsSubscribePayload struct {
	Topic string `json:"topic"`
}

// EventsWSHandler handles GET /v1/events/ws. A ?topic= query subscribes
// immediately under id "default"; more topics can be added with subscribe messages.
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}

	type sub struct {
		topic string
		ch    chan Event
	}
	subs := map[string]sub{}
	subscribe := func(id, topic string) {
		if !validTopic(topic) {
			payload, _ := json.Marshal(map[string]string{"message": "unknown topic " + topic})
			_ = write(wsMessage{Type: "error", ID: id, Payload: payload})
			_ = write(wsMessage{Type: "complete", ID: id})
			return
		}
		if old, ok := subs[id]; ok {
			s.Broker.Unsubscribe(old.topic, old.ch)
		}
		ch := s.Broker.Subscribe(topic)
		subs[id] = sub{topic: topic, ch: ch}
		go func() {
			for evt := range ch {
				payload, _ := json.Marshal(evt)
				if err := write(wsMessage{Type: "next", ID: id, Payload: payload}); err != nil {
					return
				}
			}
			_ = write(wsMessage{Type: "complete", ID: id})
		}()
	}
	defer func() {
		for id, sb := range subs {
			s.Broker.Unsubscribe(sb.topic, sb.ch)
			delete(subs, id)
		}
	}()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(60 * time.Second)) })

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				wmu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				wmu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	if t := r.URL.Query().Get("topic"); t != "" {
		subscribe("default", t)
	}
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl wsSubscribePayload
			_ = json.Unmarshal(msg.Payload, &pl)
			if pl.Topic == "" {
				pl.Topic = TopicPlans
			}
			subscribe(msg.ID, pl.Topic)
		case "complete":
			if sb, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(sb.topic, sb.ch)
				delete(subs, msg.ID)
			}
		}
	}
}
