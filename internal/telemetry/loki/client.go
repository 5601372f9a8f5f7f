// Package loki pushes auth events to Grafana Loki.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// JobLabel is the job label on every stream this package writes.
const JobLabel = "learning-panda"

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // each entry is [timestamp_ns, log_line]
}

// Label values may be any string but we keep them to a safe charset.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// eventFields are the AuthEvent JSON fields promoted to labels. user_id stays in the line to keep cardinality low.
type eventFields struct {
	EventType string    `json:"eventType"`
	Source    string    `json:"source"`
	Method    string    `json:"method"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client pushes to one Loki instance.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client for baseURL (e.g. http://localhost:3100).
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

// PushEventJSON pushes an AuthEvent JSON document (a Kafka message value), labelled by event type, source and method.
// Unparseable input is pushed as-is at the current time with only the job label.
func (c *Client) PushEventJSON(ctx context.Context, rawJSON []byte) error {
	labels := map[string]string{}
	ts := time.Now().UTC()
	var fields eventFields
	if err := json.Unmarshal(rawJSON, &fields); err == nil {
		labels["event_type"] = fields.EventType
		labels["source"] = fields.Source
		labels["method"] = fields.Method
		if !fields.CreatedAt.IsZero() {
			ts = fields.CreatedAt
		}
	}
	return c.PushEvent(ctx, ts, string(rawJSON), labels)
}

// PushEvent sends a single log line. Empty label values are dropped.
func (c *Client) PushEvent(ctx context.Context, timestamp time.Time, line string, labels map[string]string) error {
	if c.BaseURL == "" {
		return fmt.Errorf("loki: base URL is empty")
	}
	streamLabels := map[string]string{"job": JobLabel}
	for k, v := range labels {
		if sanitized := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_"); sanitized != "" {
			streamLabels[k] = sanitized
		}
	}
	payload, err := json.Marshal(PushRequest{Streams: []Stream{{
		Stream: streamLabels,
		Values: [][]string{{strconv.FormatInt(timestamp.UnixNano(), 10), line}},
	}}})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(c.BaseURL, "/")+"/loki/api/v1/push", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}
