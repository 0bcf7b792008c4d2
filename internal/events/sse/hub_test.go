package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/villefarm/internal/model"
	"github.com/mcoot/villefarm/internal/testutil"
)

func TestFormatSSEMessage(t *testing.T) {
	tests := []struct {
		name      string
		eventName string
		data      string
		expected  string
	}{
		{
			name:      "single line data",
			eventName: "planted",
			data:      `{"kind":"peasant"}`,
			expected:  "event: planted\ndata: {\"kind\":\"peasant\"}\n\n",
		},
		{
			name:      "multi-line data",
			eventName: "harvested",
			data:      "{\n  \"kind\": \"peasant\"\n}",
			expected:  "event: harvested\ndata: {\ndata:   \"kind\": \"peasant\"\ndata: }\n\n",
		},
		{
			name:      "empty data",
			eventName: "ping",
			data:      "",
			expected:  "event: ping\ndata: \n\n",
		},
		{
			name:      "data with carriage returns",
			eventName: "test",
			data:      "line1\r\nline2",
			expected:  "event: test\ndata: line1\ndata: line2\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(formatSSEMessage(tt.eventName, tt.data)))
		})
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "single line", input: "hello", expected: []string{"hello"}},
		{name: "two lines", input: "line1\nline2", expected: []string{"line1", "line2"}},
		{name: "trailing newline", input: "line1\n", expected: []string{"line1"}},
		{name: "empty string", input: "", expected: []string{""}},
		{name: "crlf line endings", input: "line1\r\nline2\r\n", expected: []string{"line1", "line2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, splitLines(tt.input))
		})
	}
}

func newRunningHub(t *testing.T) *Hub {
	hub := NewHub("alice", testutil.NopLogger())
	go hub.Run()
	t.Cleanup(hub.Close)
	return hub
}

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub := newRunningHub(t)

	client := NewClient(hub, "alice")
	require.True(t, hub.Register(client))
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastEvent("planted", "data")

	select {
	case msg := <-client.send:
		assert.Equal(t, "event: planted\ndata: data\n\n", string(msg))
	case <-time.After(time.Second):
		t.Fatal("client did not receive message")
	}
}

func TestHub_Unregister(t *testing.T) {
	hub := newRunningHub(t)

	client := NewClient(hub, "alice")
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Unregister(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-client.send
	assert.False(t, open)
}

func TestHub_BroadcastToMultipleClients(t *testing.T) {
	hub := newRunningHub(t)

	clients := []*Client{NewClient(hub, "alice"), NewClient(hub, "bot"), NewClient(hub, "bob")}
	for _, c := range clients {
		hub.Register(c)
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 3 }, time.Second, 5*time.Millisecond)

	hub.BroadcastEvent("update", "data")

	for i, c := range clients {
		select {
		case msg := <-c.send:
			assert.Equal(t, "event: update\ndata: data\n\n", string(msg))
		case <-time.After(time.Second):
			t.Errorf("client %d did not receive message", i+1)
		}
	}
}

func TestHub_RegisterAfterCloseFails(t *testing.T) {
	hub := NewHub("alice", testutil.NopLogger())
	hub.Close()
	hub.Close() // idempotent

	assert.False(t, hub.Register(NewClient(hub, "alice")))
}

func TestHubManager_GetOrCreateHub(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	defer manager.CloseAll()

	hub1 := manager.GetOrCreateHub("alice")
	require.NotNil(t, hub1)
	assert.Same(t, hub1, manager.GetOrCreateHub("alice"))
	assert.NotSame(t, hub1, manager.GetOrCreateHub("bob"))
	assert.Same(t, hub1, manager.GetHub("alice"))
	assert.Nil(t, manager.GetHub("carol"))
}

func TestHubManager_CleanupEmptyHubs(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	defer manager.CloseAll()

	manager.GetOrCreateHub("empty")
	active := manager.GetOrCreateHub("active")
	active.Register(NewClient(active, "watcher"))
	require.Eventually(t, func() bool { return active.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, manager.CleanupEmptyHubs())
	assert.Nil(t, manager.GetHub("empty"))
	assert.NotNil(t, manager.GetHub("active"))
}

// streamRecorder is a ResponseWriter safe to read while ServeSSE writes
type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	buf    bytes.Buffer
}

func (r *streamRecorder) Header() http.Header { return r.header }
func (r *streamRecorder) WriteHeader(int)     {}
func (r *streamRecorder) Flush()              {}

func (r *streamRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func (r *streamRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

func TestServeSSEStreamsBroadcastEvents(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	defer manager.CloseAll()
	hub := manager.GetOrCreateHub("alice")
	broadcaster := NewBroadcaster(manager, testutil.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/farms/alice/events", nil).WithContext(ctx)
	rec := &streamRecorder{header: http.Header{}}

	done := make(chan struct{})
	go func() {
		ServeSSE(rec, req, hub, "bob")
		close(done)
	}()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	broadcaster.Publish(context.Background(), model.Event{
		ID:      "evt-1",
		Type:    model.EventPlanted,
		Owner:   "alice",
		Signer:  "bob",
		Payload: model.PlantedPayload{Kind: model.KindPeasant, Cost: 5, GoldAfter: 0},
	})
	require.Eventually(t, func() bool { return strings.Contains(rec.String(), "event: planted") }, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.String()
	assert.True(t, strings.HasPrefix(body, "event: connected\n"))

	var dataLine string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: {\"id\":\"evt-1\"") {
			dataLine = strings.TrimPrefix(line, "data: ")
		}
	}
	require.NotEmpty(t, dataLine)

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(dataLine), &msg))
	assert.Equal(t, "planted", msg.Type)
	assert.Equal(t, "bob", msg.Signer)
	assert.Equal(t, map[string]any{"kind": "peasant", "cost": float64(5), "gold_after": float64(0)}, msg.Payload)
}

func TestBroadcasterSkipsUnwatchedFarm(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	broadcaster := NewBroadcaster(manager, testutil.NopLogger())

	broadcaster.Publish(context.Background(), model.Event{Type: model.EventUpdated, Owner: "nobody"})
	assert.Nil(t, manager.GetHub("nobody"))
}
