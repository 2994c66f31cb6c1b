package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/pricing-sync-service/internal/domain/event"
)

// Interface guard
var _ Connector = (*connect)(nil)

// [CONNECTOR] THE INTERFACE FOR EXTERNAL LAYERS (REGISTRY/HUB)
// This allows mocking and decoupling from the concrete implementation
type Connector interface {
	GetID() uuid.UUID
	GetMetadata() ConnectMetadata
	Send(ev event.Eventer) bool // Non-blocking enqueue, false when closed or saturated
	Recv() <-chan event.Eventer
	Done() <-chan struct{}
	Dropped() uint64
	Close() // Terminate connection and release resources
}

// [METADATA] EXPORTED FOR TRANSPORT AND ANALYTICS LAYERS
type ConnectMetadata struct {
	RemoteIP  string
	UserAgent string
	Origin    string
}

// [CONNECT] CONCRETE IMPLEMENTATION (UNEXPORTED TO FORCE INTERFACE USAGE)
type connect struct {
	id        uuid.UUID
	metadata  ConnectMetadata
	createdAt time.Time

	ctx      context.Context
	cancelFn context.CancelFunc

	// sendCh is never closed: concurrent broadcasters may still hold a
	// reference after Close, so termination is signalled through ctx instead.
	sendCh    chan event.Eventer
	closeOnce sync.Once

	droppedCount atomic.Uint64
}

// NewConnector allocates a connection with a fresh opaque identifier.
func NewConnector(ctx context.Context, meta ConnectMetadata, bufferSize int) Connector {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	childCtx, cancel := context.WithCancel(ctx)

	return &connect{
		id:        uuid.New(),
		metadata:  meta,
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan event.Eventer, bufferSize),
	}
}

// --- IMPLEMENTATION OF CONNECTOR INTERFACE ---

func (c *connect) GetID() uuid.UUID             { return c.id }
func (c *connect) GetMetadata() ConnectMetadata { return c.metadata }
func (c *connect) Recv() <-chan event.Eventer   { return c.sendCh }
func (c *connect) Done() <-chan struct{}        { return c.ctx.Done() }
func (c *connect) Dropped() uint64              { return c.droppedCount.Load() }

// Send enqueues ev without blocking the caller. A saturated mailbox means the
// consumer cannot keep up; the caller treats that as a transport failure.
func (c *connect) Send(ev event.Eventer) bool {
	// 1. [LIFECYCLE_GATE] Immediately abort if the underlying transport is already dead.
	select {
	case <-c.ctx.Done():
		return false
	default:
	}

	// 2. [PRIMARY_DELIVERY] Enqueue into the session's mailbox.
	select {
	case c.sendCh <- ev:
		return true
	default:
		// 3. [BACKPRESSURE_THRESHOLD]
		c.droppedCount.Add(1)
		return false
	}
}

// Close terminates the session. Safe to call from any goroutine, any number of times.
func (c *connect) Close() {
	c.closeOnce.Do(func() {
		c.cancelFn()
	})
}
