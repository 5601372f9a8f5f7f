package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learning-panda-ai/website/internal/telemetry/domain"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed int
}

func (w *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *captureWriter) Close() error {
	w.closed++
	return nil
}

func TestNewKafkaProducer_EmptyConfig(t *testing.T) {
	p, err := NewKafkaProducer(nil, "auth-events")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewKafkaProducer([]string{"localhost:9092"}, "")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestKafkaProducer_Emit(t *testing.T) {
	w := &captureWriter{}
	p := &KafkaProducer{writer: w, topic: "auth-events"}
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	err := p.Emit(context.Background(), &domain.AuthEvent{
		EventType: domain.EventLoginSuccess, Source: domain.SourceAPI,
		UserID: "user-1", Email: "k***@example.com", Method: domain.MethodEmail, CreatedAt: at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, []byte("user-1"), msg.Key)
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, domain.EventLoginSuccess, string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "login_success", decoded["eventType"])
	assert.Equal(t, "email", decoded["method"])
	assert.NotContains(t, decoded, "reason", "empty fields are omitted")
}

func TestKafkaProducer_EmitError(t *testing.T) {
	p := &KafkaProducer{writer: &captureWriter{err: errors.New("broker down")}}
	assert.Error(t, p.Emit(context.Background(), &domain.AuthEvent{EventType: domain.EventLogout}))
}

func TestKafkaProducer_NilSafe(t *testing.T) {
	var p *KafkaProducer
	assert.NoError(t, p.Emit(context.Background(), &domain.AuthEvent{}))
	assert.NoError(t, p.Close())

	w := &captureWriter{}
	p = &KafkaProducer{writer: w}
	assert.NoError(t, p.Emit(context.Background(), nil))
	assert.Empty(t, w.msgs)
	assert.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)
}
