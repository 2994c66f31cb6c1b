package registry

import "github.com/google/uuid"

// Recipients returns every connection in conns except the sender.
// The result order is unspecified.
func Recipients(conns map[uuid.UUID]Connector, senderID uuid.UUID) []Connector {
	out := make([]Connector, 0, len(conns))
	for id, conn := range conns {
		if id == senderID {
			continue
		}
		out = append(out, conn)
	}
	return out
}
