package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/webitel/pricing-sync-service/internal/domain/model"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultURL            = "ws://localhost:3001"
	DefaultReconnectDelay = 3 * time.Second

	outboxSize   = 64
	writeTimeout = 5 * time.Second
)

var (
	ErrOutboxFull = errors.New("relay client outbox is full")
	ErrClosed     = errors.New("relay client is closed")
)

type (
	StateHandler  func(state model.SharedState)
	ActionHandler func(action string)
)

type Options struct {
	URL            string
	ReconnectDelay time.Duration
	Header         http.Header
	Dialer         *websocket.Dialer
	Logger         *slog.Logger
}

// outbound is a queued frame plus the writer's verdict on it.
type outbound struct {
	frame []byte
	done  chan error
}

// Client keeps a connection to the relay alive, reconnecting after a fixed
// delay, and dispatches received frames to registered handlers.
type Client struct {
	opts   Options
	logger *slog.Logger

	mu       sync.RWMutex
	onState  []StateHandler
	onAction []ActionHandler

	outbox chan outbound
	closed chan struct{}

	latest    atomic.Pointer[model.SharedState]
	ready     chan struct{}
	readyOnce sync.Once
	connected atomic.Bool
	dials     atomic.Int64
}

func New(opts Options) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		opts:   opts,
		logger: opts.Logger.With("relay_url", opts.URL),
		outbox: make(chan outbound, outboxSize),
		closed: make(chan struct{}),
		ready:  make(chan struct{}),
	}
}

// OnState registers a handler for initialState and stateUpdate frames.
func (c *Client) OnState(fn StateHandler) {
	c.mu.Lock()
	c.onState = append(c.onState, fn)
	c.mu.Unlock()
}

// OnAction registers a handler for relayed actions.
func (c *Client) OnAction(fn ActionHandler) {
	c.mu.Lock()
	c.onAction = append(c.onAction, fn)
	c.mu.Unlock()
}

func (c *Client) Connected() bool { return c.connected.Load() }

// Dials is the number of successful connections so far.
func (c *Client) Dials() int64 { return c.dials.Load() }

// State returns the last state received from the relay.
func (c *Client) State() (model.SharedState, bool) {
	st := c.latest.Load()
	if st == nil {
		return model.SharedState{}, false
	}
	return st.Clone(), true
}

// WaitState blocks until the first state has been received.
func (c *Client) WaitState(ctx context.Context) (model.SharedState, error) {
	select {
	case <-c.ready:
		st, _ := c.State()
		return st, nil
	case <-ctx.Done():
		return model.SharedState{}, ctx.Err()
	}
}

// Run maintains the connection until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.closed)

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(ctx.Err())
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.opts.ReconnectDelay)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("relay connection lost, reconnecting", "err", err, "retry_in", next)
		}),
	)

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// session runs one connection; it always returns a non-nil error.
func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.dials.Add(1)
	c.connected.Store(true)
	defer c.connected.Store(false)
	c.logger.Debug("relay connection established")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return conn.Close()
	})

	g.Go(func() error {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
			c.handle(data)
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case out := <-c.outbox:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				err := conn.WriteMessage(websocket.TextMessage, out.frame)
				out.done <- err
				if err != nil {
					return fmt.Errorf("write: %w", err)
				}
			}
		}
	})

	return g.Wait()
}

func (c *Client) handle(data []byte) {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("RELAY_FRAME_MALFORMED", "err", err)
		return
	}

	switch env.Type {
	case model.InitialState.String(), model.StateUpdate.String():
		var st model.SharedState
		if err := json.Unmarshal(env.Data, &st); err != nil {
			c.logger.Warn("RELAY_STATE_MALFORMED", "err", err)
			return
		}
		c.latest.Store(&st)
		c.readyOnce.Do(func() { close(c.ready) })

		c.mu.RLock()
		handlers := c.onState
		c.mu.RUnlock()
		for _, fn := range handlers {
			fn(st.Clone())
		}

	case model.Action.String():
		var action string
		if err := json.Unmarshal(env.Data, &action); err != nil {
			c.logger.Warn("RELAY_ACTION_MALFORMED", "err", err)
			return
		}

		c.mu.RLock()
		handlers := c.onAction
		c.mu.RUnlock()
		for _, fn := range handlers {
			fn(action)
		}

	default:
		c.logger.Debug("RELAY_FRAME_IGNORED", "type", env.Type)
	}
}

// SendStateUpdate queues a full replacement state and waits until it has
// been written to the socket. Frames queued while disconnected are sent
// after the next successful reconnect.
func (c *Client) SendStateUpdate(ctx context.Context, st model.SharedState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := c.send(ctx, model.StateUpdate, data); err != nil {
		return err
	}
	// Our own update is never echoed back.
	c.latest.Store(&st)
	return nil
}

func (c *Client) SendAction(ctx context.Context, action string) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}
	return c.send(ctx, model.Action, data)
}

func (c *Client) send(ctx context.Context, mt model.MessageType, data json.RawMessage) error {
	frame, err := json.Marshal(&model.Envelope{Type: mt.String(), Data: data})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	out := outbound{frame: frame, done: make(chan error, 1)}
	select {
	case <-c.closed:
		return ErrClosed
	case c.outbox <- out:
	default:
		return ErrOutboxFull
	}

	select {
	case err := <-out.done:
		return err
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
