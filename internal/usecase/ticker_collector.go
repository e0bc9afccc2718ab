package usecase

import (
	"context"

	"PairScan/internal/domain/models"
	drepo "PairScan/internal/domain/repository"
	mid "PairScan/internal/middleware"
)

// VolumeSink feeds live ticker updates into the filter's volume cache so the
// liquidity layer sees fresh 24h volumes between cycles.
type VolumeSink struct {
	filter *FilterEngine
}

func NewVolumeSink(filter *FilterEngine) *VolumeSink {
	return &VolumeSink{filter: filter}
}

func (s *VolumeSink) Process(ctx context.Context, t *models.Ticker) error {
	s.filter.RefreshVolume(*t)
	return nil
}

var _ mid.Sink = (*VolumeSink)(nil)

// TickerCollector collects ticker updates from the market stream and routes
// them through the pipeline.
type TickerCollector struct {
	stream  drepo.TickerStream
	symbols []string
	metrics drepo.Metrics
	pipe    *mid.TickerPipeline
}

// NewTickerCollector creates a new TickerCollector instance.
func NewTickerCollector(stream drepo.TickerStream, symbols []string, metrics drepo.Metrics, pipe *mid.TickerPipeline) *TickerCollector {
	return &TickerCollector{stream: stream, symbols: symbols, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the market stream is connected.
func (c *TickerCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TickerCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx, c.symbols); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	tkCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tkCh, errCh)
	return nil
}

func (c *TickerCollector) consume(ctx context.Context, tkCh <-chan models.Ticker, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case t, ok := <-tkCh:
			if !ok {
				return
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, &t)
			}
		}
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *TickerCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
