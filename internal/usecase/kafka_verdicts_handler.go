package usecase

import (
	"context"
	"encoding/json"
	"time"

	"PairScan/internal/domain/models"
	domrepo "PairScan/internal/domain/repository"
	pkgkafka "PairScan/pkg/kafka"
)

// KafkaVerdictsHandler consumes indicator verdict messages and feeds the
// registry the consensus unit reads from.
type KafkaVerdictsHandler struct {
	topic    string
	registry *VerdictRegistry
	metrics  domrepo.Metrics
}

func NewKafkaVerdictsHandler(topic string, registry *VerdictRegistry, metrics domrepo.Metrics) *KafkaVerdictsHandler {
	return &KafkaVerdictsHandler{topic: topic, registry: registry, metrics: metrics}
}

func (h *KafkaVerdictsHandler) Topic() string { return h.topic }

// incoming message schema: {instrument, indicator, long, short, t}
func (h *KafkaVerdictsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Instrument string `json:"instrument"`
		Indicator  string `json:"indicator"`
		Long       bool   `json:"long"`
		Short      bool   `json:"short"`
		T          int64  `json:"t"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	if m.T > 0 {
		h.metrics.RecordLatency("verdict_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())
	}

	if !h.registry.Record(m.Instrument, m.Indicator, models.Verdict{Long: m.Long, Short: m.Short}) {
		h.metrics.RecordError("consumer_unknown_indicator")
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaVerdictsHandler)(nil)
