package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/pricing-sync-service/config"
	"github.com/webitel/pricing-sync-service/internal/adapter/metrics"
	"github.com/webitel/pricing-sync-service/internal/domain/event"
	"github.com/webitel/pricing-sync-service/internal/domain/model"
	"github.com/webitel/pricing-sync-service/internal/domain/registry"
	wsmarshaller "github.com/webitel/pricing-sync-service/internal/handler/marshaller/ws"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	stateS1 = `{"type":"stateUpdate","data":{"beers":[{"id":"1","name":"Classic","currentPrice":6,"basePrice":5,"priceHistory":[],"purchases":1,"pendingPurchases":0,"lastPurchased":null}],"lastUpdate":1000}}`
	stateS2 = `{"type":"stateUpdate","data":{"beers":[],"lastUpdate":2000}}`
)

type recordingExporter struct {
	mu     sync.Mutex
	events []model.OutboundEventer
}

func (r *recordingExporter) Export(ev model.OutboundEventer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recordingExporter) all() []model.OutboundEventer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.OutboundEventer(nil), r.events...)
}

type fixture struct {
	svc      *RelayService
	hub      *registry.Hub
	exporter *recordingExporter
	metrics  *metrics.RelayMetrics
}

func newFixture(t *testing.T, sendBuffer int, opts ...Option) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClock()
	initial, err := model.NewSnapshot(model.NewDefaultState(clock.Now().UnixMilli()))
	require.NoError(t, err)
	hub := registry.NewHub(initial, registry.WithClock(clock))
	t.Cleanup(hub.Shutdown)

	cfg := &config.Config{Hub: config.HubConfig{SendBuffer: sendBuffer, SnapshotCache: 4}}
	exp := &recordingExporter{}
	m := metrics.NewRelayMetrics(prometheus.NewRegistry())

	svc, err := NewRelayService(cfg, hub, exp, m, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	require.NoError(t, err)

	return &fixture{svc: svc, hub: hub, exporter: exp, metrics: m}
}

func (f *fixture) join(t *testing.T) registry.Connector {
	t.Helper()
	conn, err := f.svc.Join(context.Background(), registry.ConnectMetadata{RemoteIP: "127.0.0.1"})
	require.NoError(t, err)
	return conn
}

func nextFrame(t *testing.T, conn registry.Connector) string {
	t.Helper()
	select {
	case ev := <-conn.Recv():
		frame, err := wsmarshaller.MarshallDeliveryEvent(ev)
		require.NoError(t, err)
		return string(frame)
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return ""
	}
}

func assertNoFrame(t *testing.T, conn registry.Connector) {
	t.Helper()
	select {
	case ev := <-conn.Recv():
		t.Fatalf("unexpected %s frame", ev.GetKind())
	default:
	}
}

func TestRelayService_JoinSeedsDefaultState(t *testing.T) {
	f := newFixture(t, 8)
	conn := f.join(t)

	var env model.Envelope
	require.NoError(t, json.Unmarshal([]byte(nextFrame(t, conn)), &env))
	assert.Equal(t, "initialState", env.Type)

	var st model.SharedState
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Empty(t, st.Beers)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ActiveConnections))
}

func TestRelayService_SeedFrameCachedByRevision(t *testing.T) {
	f := newFixture(t, 8)
	a := f.join(t)
	b := f.join(t)

	first := <-a.Recv()
	second := <-b.Recv()
	fa, _ := first.GetCached().([]byte)
	fb, _ := second.GetCached().([]byte)
	require.NotEmpty(t, fa)
	assert.Same(t, &fa[0], &fb[0])
}

func TestRelayService_StateUpdateScenario(t *testing.T) {
	f := newFixture(t, 8)
	a := f.join(t)
	b := f.join(t)
	nextFrame(t, a)
	nextFrame(t, b)

	require.NoError(t, f.svc.Dispatch(context.Background(), a.GetID(), []byte(stateS1)))

	assert.JSONEq(t, stateS1, nextFrame(t, b))
	assertNoFrame(t, a)

	snap, rev := f.svc.Snapshot()
	assert.Equal(t, uint64(1), rev)
	assert.Equal(t, "Classic", snap.State.Beers[0].Name)

	// A late joiner sees the last accepted state.
	c := f.join(t)
	assert.JSONEq(t, `{"type":"initialState","data":`+string(snap.Raw)+`}`, nextFrame(t, c))

	exported := f.exporter.all()
	require.Len(t, exported, 1)
	assert.Equal(t, event.RoutingStateUpdated, exported[0].GetRoutingKey())
}

func TestRelayService_LastWriteWins(t *testing.T) {
	f := newFixture(t, 8)
	a := f.join(t)

	require.NoError(t, f.svc.Dispatch(context.Background(), a.GetID(), []byte(stateS1)))
	require.NoError(t, f.svc.Dispatch(context.Background(), a.GetID(), []byte(stateS2)))

	snap, rev := f.svc.Snapshot()
	assert.Equal(t, uint64(2), rev)
	assert.Equal(t, int64(2000), snap.State.LastUpdate)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.StateRevision))
}

func TestRelayService_ActionIsOpaque(t *testing.T) {
	f := newFixture(t, 8)
	a := f.join(t)
	b := f.join(t)
	nextFrame(t, a)
	nextFrame(t, b)
	before, revBefore := f.svc.Snapshot()

	require.NoError(t, f.svc.Dispatch(context.Background(), b.GetID(), []byte(`{"type":"action","data":"UPDATE_PRICES"}`)))

	assert.Equal(t, `{"type":"action","data":"UPDATE_PRICES"}`, nextFrame(t, a))
	assertNoFrame(t, b)

	after, revAfter := f.svc.Snapshot()
	assert.Equal(t, revBefore, revAfter)
	assert.Equal(t, string(before.Raw), string(after.Raw))

	exported := f.exporter.all()
	require.Len(t, exported, 1)
	assert.Equal(t, event.RoutingActionRelayed, exported[0].GetRoutingKey())
}

func TestRelayService_RejectsAndKeepsSender(t *testing.T) {
	f := newFixture(t, 8)
	a := f.join(t)
	b := f.join(t)
	nextFrame(t, a)
	nextFrame(t, b)

	cases := []struct {
		name   string
		raw    string
		reason string
	}{
		{"not json", `hello`, "malformed"},
		{"unknown type", `{"type":"chat","data":"x"}`, "unknown_type"},
		{"initial from client", `{"type":"initialState","data":{"beers":[],"lastUpdate":1}}`, "server_only_type"},
		{"bad state", `{"type":"stateUpdate","data":{"beers":"nope","lastUpdate":1}}`, "invalid_state"},
		{"non-string action", `{"type":"action","data":42}`, "invalid_action"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.svc.Dispatch(context.Background(), a.GetID(), []byte(tc.raw))
			require.Error(t, err)
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MessagesRejected.WithLabelValues(tc.reason)))
		})
	}

	assertNoFrame(t, b)
	assert.True(t, f.hub.IsConnected(a.GetID()))
	_, rev := f.svc.Snapshot()
	assert.Zero(t, rev)
	assert.Empty(t, f.exporter.all())
}

func TestRelayService_LeaveIsolatesConnection(t *testing.T) {
	f := newFixture(t, 8)
	a := f.join(t)
	b := f.join(t)
	c := f.join(t)
	nextFrame(t, a)
	nextFrame(t, b)
	nextFrame(t, c)

	assert.True(t, f.svc.Leave(b.GetID()))
	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("left connection not closed")
	}

	require.NoError(t, f.svc.Dispatch(context.Background(), a.GetID(), []byte(stateS1)))
	assert.JSONEq(t, stateS1, nextFrame(t, c))
	assertNoFrame(t, b)

	assert.ErrorIs(t, f.svc.Dispatch(context.Background(), b.GetID(), []byte(stateS2)), ErrNotRegistered)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ActiveConnections))
}

func TestRelayService_EvictsSaturatedRecipient(t *testing.T) {
	f := newFixture(t, 1)
	a := f.join(t)
	slow := f.join(t)
	nextFrame(t, a)
	// slow never drains its seed frame, so its single-slot mailbox stays full.

	require.NoError(t, f.svc.Dispatch(context.Background(), a.GetID(), []byte(`{"type":"action","data":"X"}`)))

	assert.False(t, f.hub.IsConnected(slow.GetID()))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RecipientsEvicted))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ActiveConnections))

	// Leave after eviction does not double count.
	assert.False(t, f.svc.Leave(slow.GetID()))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ActiveConnections))
}

func TestLoggingMiddleware_Delegates(t *testing.T) {
	f := newFixture(t, 8)
	mw := NewLoggingMiddleware(f.svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	conn, err := mw.Join(context.Background(), registry.ConnectMetadata{})
	require.NoError(t, err)
	require.Error(t, mw.Dispatch(context.Background(), conn.GetID(), []byte(`{}`)))

	assert.Equal(t, 1, mw.Stats().TotalConnections)
	assert.True(t, mw.Leave(conn.GetID()))
	assert.Equal(t, 0, mw.Stats().TotalConnections)
}

func TestLoggingMiddleware_SkipsDisconnectForEvicted(t *testing.T) {
	f := newFixture(t, 1)
	var buf bytes.Buffer
	mw := NewLoggingMiddleware(f.svc, slog.New(slog.NewTextHandler(&buf, nil)))

	a, err := mw.Join(context.Background(), registry.ConnectMetadata{})
	require.NoError(t, err)
	slow, err := mw.Join(context.Background(), registry.ConnectMetadata{})
	require.NoError(t, err)
	nextFrame(t, a)

	require.NoError(t, mw.Dispatch(context.Background(), a.GetID(), []byte(`{"type":"action","data":"X"}`)))
	require.False(t, f.hub.IsConnected(slow.GetID()))

	buf.Reset()
	assert.False(t, mw.Leave(slow.GetID()))
	assert.NotContains(t, buf.String(), "client disconnected")

	assert.True(t, mw.Leave(a.GetID()))
	assert.Contains(t, buf.String(), "client disconnected")
	assert.Contains(t, buf.String(), a.GetID().String())
}

func TestRelayService_DispatchRecordsSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := newFixture(t, 8, WithTracerProvider(tp))
	a := f.join(t)

	require.NoError(t, f.svc.Dispatch(context.Background(), a.GetID(), []byte(stateS1)))
	require.Error(t, f.svc.Dispatch(context.Background(), a.GetID(), []byte(`{"type":"chat","data":"x"}`)))

	spans := rec.Ended()
	require.Len(t, spans, 2)

	attrs := func(s sdktrace.ReadOnlySpan) map[attribute.Key]string {
		out := make(map[attribute.Key]string)
		for _, kv := range s.Attributes() {
			out[kv.Key] = kv.Value.Emit()
		}
		return out
	}

	ok := spans[0]
	assert.Equal(t, "relay.dispatch", ok.Name())
	assert.Equal(t, "stateUpdate", attrs(ok)["message.type"])
	assert.Equal(t, a.GetID().String(), attrs(ok)["conn.id"])
	assert.NotEqual(t, codes.Error, ok.Status().Code)

	rejected := spans[1]
	assert.Equal(t, "relay.dispatch", rejected.Name())
	assert.Equal(t, codes.Error, rejected.Status().Code)
}
