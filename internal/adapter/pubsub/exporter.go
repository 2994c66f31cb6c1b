package pubsub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/webitel/pricing-sync-service/internal/adapter/metrics"
	"github.com/webitel/pricing-sync-service/internal/domain/model"
)

const publishTimeout = 5 * time.Second

// Exporter accepts audit events from the relay hot path.
type Exporter interface {
	Export(ev model.OutboundEventer) bool
}

// AsyncExporter decouples the relay from the broker.
type AsyncExporter struct {
	// [MAILBOX]
	// Buffered channel that keeps broker latency away from the relay lock.
	mailbox chan model.OutboundEventer

	dispatcher EventDispatcher
	logger     *slog.Logger
	metrics    *metrics.RelayMetrics

	doneCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewAsyncExporter(dispatcher EventDispatcher, logger *slog.Logger, m *metrics.RelayMetrics, bufferSize int) *AsyncExporter {
	e := &AsyncExporter{
		mailbox:    make(chan model.OutboundEventer, bufferSize),
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
		doneCh:     make(chan struct{}),
	}
	e.wg.Add(1)
	go e.loop()
	return e
}

// Export enqueues ev; a full mailbox drops it.
func (e *AsyncExporter) Export(ev model.OutboundEventer) bool {
	select {
	case <-e.doneCh:
		return false
	default:
	}

	select {
	case e.mailbox <- ev:
		return true
	default:
		e.metrics.ExportFailures.Inc()
		e.logger.Warn("EXPORT_MAILBOX_FULL", "routing_key", ev.GetRoutingKey())
		return false
	}
}

func (e *AsyncExporter) loop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.doneCh:
			return
		case ev := <-e.mailbox:
			e.publish(ev)
		}
	}
}

func (e *AsyncExporter) publish(ev model.OutboundEventer) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := e.dispatcher.Publish(ctx, ev); err != nil {
		e.metrics.ExportFailures.Inc()
		e.logger.Error("EXPORT_FAILED", "routing_key", ev.GetRoutingKey(), "err", err)
	}
}

// Stop terminates the loop; events still queued are dropped.
func (e *AsyncExporter) Stop() {
	e.stopOnce.Do(func() {
		close(e.doneCh)
	})
	e.wg.Wait()
}
