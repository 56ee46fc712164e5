package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patrolnav/internal/model"
)

func TestEventsStreamSSE(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/events/stream?topic=plans", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: heartbeat", lines.Text())
	require.True(t, lines.Scan())
	assert.Contains(t, lines.Text(), `"topic":"plans"`)

	post, err := http.Post(ts.URL+"/api/allocate-patrol", "application/json", strings.NewReader(`{"hotspots":[{"lat":1,"lng":2,"location":"X","incidents":6}]}`))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusOK, post.StatusCode)

	var event, data string
	for lines.Scan() {
		line := lines.Text()
		if strings.HasPrefix(line, "event: ") && line != "event: heartbeat" {
			event = strings.TrimPrefix(line, "event: ")
			require.True(t, lines.Scan())
			data = strings.TrimPrefix(lines.Text(), "data: ")
			break
		}
	}
	assert.Equal(t, model.EventPatrolPlanCreated, event)
	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(data), &summary))
	assert.EqualValues(t, 6, summary["total_incidents"])
}

func TestEventsStreamRejectsUnknownTopic(t *testing.T) {
	s := newTestServer(t)
	rr := do(s, s.EventsStreamHandler, http.MethodGet, "/v1/events/stream?topic=routes", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEventsWebSocket(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events/ws?topic=incidents"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "connection_init"}))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "connection_ack", msg.Type)

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "subscribe", ID: "bad", Payload: json.RawMessage(`{"topic":"nope"}`)}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "complete", msg.Type)

	s.Broker.Publish(TopicIncidents, Event{Type: model.EventIncidentReported, Data: map[string]any{"count": 2}})
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "next", msg.Type)
	assert.Equal(t, "default", msg.ID)
	var evt Event
	require.NoError(t, json.Unmarshal(msg.Payload, &evt))
	assert.Equal(t, model.EventIncidentReported, evt.Type)
	assert.EqualValues(t, 2, evt.Data["count"])

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "complete", ID: "default"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "complete", msg.Type)
}
