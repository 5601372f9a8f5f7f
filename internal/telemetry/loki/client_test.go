package loki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushEventJSON(t *testing.T) {
	var got PushRequest
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	raw := []byte(`{"eventType":"login_success","source":"api","userId":"u-1","method":"email","createdAt":"2026-03-01T09:00:00Z"}`)

	require.NoError(t, NewClient(server.URL+"/").PushEventJSON(context.Background(), raw))

	assert.Equal(t, "/loki/api/v1/push", path)
	require.Len(t, got.Streams, 1)
	s := got.Streams[0]
	assert.Equal(t, map[string]string{"job": JobLabel, "event_type": "login_success", "source": "api", "method": "email"}, s.Stream)
	require.Len(t, s.Values, 1)
	assert.Equal(t, strconv.FormatInt(at.UnixNano(), 10), s.Values[0][0])
	assert.Equal(t, string(raw), s.Values[0][1])
}

func TestPushEventJSON_Unparseable(t *testing.T) {
	var got PushRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer server.Close()

	require.NoError(t, NewClient(server.URL).PushEventJSON(context.Background(), []byte("not json")))
	require.Len(t, got.Streams, 1)
	assert.Equal(t, map[string]string{"job": JobLabel}, got.Streams[0].Stream)
	assert.Equal(t, "not json", got.Streams[0].Values[0][1])
}

func TestPushEvent_SanitizesLabels(t *testing.T) {
	var got PushRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer server.Close()

	err := NewClient(server.URL).PushEvent(context.Background(), time.Now(), "line", map[string]string{"event_type": "bad value/x", "empty": "  "})
	require.NoError(t, err)
	assert.Equal(t, "bad_value_x", got.Streams[0].Stream["event_type"])
	assert.NotContains(t, got.Streams[0].Stream, "empty")
}

func TestPushEvent_Errors(t *testing.T) {
	assert.Error(t, NewClient("").PushEvent(context.Background(), time.Now(), "x", nil))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()
	assert.Error(t, NewClient(server.URL).PushEvent(context.Background(), time.Now(), "x", nil))
}
