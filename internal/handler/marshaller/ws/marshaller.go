package wsmarshaller

import (
	"encoding/json"
	"fmt"

	"github.com/webitel/pricing-sync-service/internal/domain/event"
	"github.com/webitel/pricing-sync-service/internal/domain/model"
)

// MarshallDeliveryEvent prepares the wire frame for WebSocket transmission.
// The result is cached on the event so fan-out to N recipients encodes once;
// callers encode before the event is shared between writer goroutines.
func MarshallDeliveryEvent(ev event.Eventer) ([]byte, error) {
	if cached := ev.GetCached(); cached != nil {
		if frame, ok := cached.([]byte); ok {
			return frame, nil
		}
	}

	wireType := ev.GetKind().WireType()
	if wireType == "" {
		return nil, fmt.Errorf("marshal ws frame: unsupported event kind %d", ev.GetKind())
	}

	frame, err := json.Marshal(&model.Envelope{
		Type: wireType,
		Data: ev.GetPayload(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ws frame: %w", err)
	}

	ev.SetCached(frame)
	return frame, nil
}
