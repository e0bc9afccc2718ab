package usecase

import (
	"context"
	"strconv"
	"testing"
	"time"
)

func TestVerdictsHandlerRecordsMessage(t *testing.T) {
	registry := NewVerdictRegistry()
	h := NewKafkaVerdictsHandler("verdicts", registry, newRecordingMetrics())

	if h.Topic() != "verdicts" {
		t.Fatalf("topic = %s", h.Topic())
	}

	msg := []byte(`{"instrument":"BTCUSDT","indicator":"rsi","long":true,"short":false,"t":` +
		strconv.FormatInt(time.Now().Unix(), 10) + `}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	vs := registry.Snapshot("BTCUSDT")
	if len(vs) != 1 || !vs["rsi"].Long || vs["rsi"].Short {
		t.Fatalf("verdicts = %+v", vs)
	}
}

func TestVerdictsHandlerUnknownIndicator(t *testing.T) {
	registry := NewVerdictRegistry()
	m := newRecordingMetrics()
	h := NewKafkaVerdictsHandler("verdicts", registry, m)

	msg := []byte(`{"instrument":"BTCUSDT","indicator":"astrology","long":true}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if registry.Snapshot("BTCUSDT") != nil {
		t.Fatalf("unknown indicator recorded")
	}
	if m.errorCount("consumer_unknown_indicator") != 1 {
		t.Fatalf("unknown-indicator errors = %d, want 1", m.errorCount("consumer_unknown_indicator"))
	}
}

func TestVerdictsHandlerMalformedPayload(t *testing.T) {
	m := newRecordingMetrics()
	h := NewKafkaVerdictsHandler("verdicts", NewVerdictRegistry(), m)

	if err := h.Handle(context.Background(), []byte("not json")); err == nil {
		t.Fatalf("expected unmarshal error")
	}
	if m.errorCount("consumer_unmarshal") != 1 {
		t.Fatalf("unmarshal errors = %d, want 1", m.errorCount("consumer_unmarshal"))
	}
}
