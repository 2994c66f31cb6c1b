package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/webitel/pricing-sync-service/internal/domain/event"
	"github.com/webitel/pricing-sync-service/internal/domain/model"
	wsmarshaller "github.com/webitel/pricing-sync-service/internal/handler/marshaller/ws"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Dispatch classifies the frame and routes it to replace or relay.
func (s *RelayService) Dispatch(ctx context.Context, connID uuid.UUID, raw []byte) error {
	_, span := s.tracer.Start(ctx, "relay.dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("conn.id", connID.String()))

	if !s.hub.IsConnected(connID) {
		return ErrNotRegistered
	}

	in, err := wsmarshaller.UnmarshalInbound(raw)
	if err != nil {
		s.metrics.MessagesRejected.WithLabelValues(rejectReason(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "message discarded")
		return err
	}

	span.SetAttributes(attribute.String("message.type", in.Type.String()))
	s.metrics.MessagesReceived.WithLabelValues(in.Type.String()).Inc()

	switch in.Type {
	case model.StateUpdate:
		return s.replaceState(connID, in.Snapshot)
	case model.Action:
		return s.relayAction(connID, in.RawData)
	default:
		return fmt.Errorf("%w: %s", model.ErrUnknownType, in.Type)
	}
}

// replaceState stores the snapshot and fans it out to everyone but the sender.
func (s *RelayService) replaceState(senderID uuid.UUID, snap model.Snapshot) error {
	ev := event.NewStateUpdatedEvent(senderID, snap.Raw)
	// [ENCODE_ONCE] Frame is cached on the event before any writer sees it.
	if _, err := wsmarshaller.MarshallDeliveryEvent(ev); err != nil {
		return err
	}

	out := s.hub.Replace(senderID, snap, ev)
	s.metrics.StateRevision.Set(float64(out.Revision))
	s.afterFanout(ev.GetKind(), out)

	s.logger.Debug("[RELAY] state replaced",
		slog.String("sender_id", senderID.String()),
		slog.Uint64("revision", out.Revision),
		slog.Int("items", len(snap.State.Beers)),
		slog.Int("recipients", out.Delivered),
	)

	s.exporter.Export(model.NewOutboundEvent(ev.GetRoutingKey(), ev.GetKind().String(), senderID, out.Revision, snap.Raw))
	return nil
}

// relayAction forwards the opaque action verbatim; state is untouched.
func (s *RelayService) relayAction(senderID uuid.UUID, action []byte) error {
	ev := event.NewActionEvent(senderID, action)
	if _, err := wsmarshaller.MarshallDeliveryEvent(ev); err != nil {
		return err
	}

	out := s.hub.Relay(senderID, ev)
	s.afterFanout(ev.GetKind(), out)

	s.logger.Debug("[RELAY] action relayed",
		slog.String("sender_id", senderID.String()),
		slog.String("action", string(action)),
		slog.Int("recipients", out.Delivered),
	)

	s.exporter.Export(model.NewOutboundEvent(ev.GetRoutingKey(), ev.GetKind().String(), senderID, out.Revision, action))
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, model.ErrMalformedEnvelope):
		return "malformed"
	case errors.Is(err, model.ErrUnknownType):
		return "unknown_type"
	case errors.Is(err, model.ErrClientOnlyType):
		return "server_only_type"
	case errors.Is(err, model.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, model.ErrInvalidAction):
		return "invalid_action"
	default:
		return "other"
	}
}
