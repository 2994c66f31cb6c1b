package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PricePoint is a single sample of an item's price history.
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

// Beer is one priced item on the board.
type Beer struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	CurrentPrice     float64      `json:"currentPrice"`
	BasePrice        float64      `json:"basePrice"`
	PriceHistory     []PricePoint `json:"priceHistory"`
	Purchases        int          `json:"purchases"`
	PendingPurchases int          `json:"pendingPurchases"`
	LastPurchased    *int64       `json:"lastPurchased"`
}

// SharedState is the single authoritative snapshot synchronized across clients.
type SharedState struct {
	Beers      []Beer `json:"beers"`
	LastUpdate int64  `json:"lastUpdate"`
}

// NewDefaultState returns the state a freshly started relay holds.
func NewDefaultState(nowMillis int64) SharedState {
	return SharedState{
		Beers:      []Beer{},
		LastUpdate: nowMillis,
	}
}

// Clone returns a deep copy so callers can mutate without touching the original.
func (s SharedState) Clone() SharedState {
	out := SharedState{
		Beers:      make([]Beer, len(s.Beers)),
		LastUpdate: s.LastUpdate,
	}
	for i, b := range s.Beers {
		cp := b
		cp.PriceHistory = append([]PricePoint(nil), b.PriceHistory...)
		if b.LastPurchased != nil {
			ts := *b.LastPurchased
			cp.LastPurchased = &ts
		}
		out.Beers[i] = cp
	}
	return out
}

// Find returns the index of the item with the given name or -1.
func (s SharedState) Find(name string) int {
	for i, b := range s.Beers {
		if b.Name == name {
			return i
		}
	}
	return -1
}

// wireBeer mirrors Beer with pointer fields so that missing required keys
// can be told apart from zero values.
type wireBeer struct {
	ID               *string      `json:"id"`
	Name             *string      `json:"name"`
	CurrentPrice     *float64     `json:"currentPrice"`
	BasePrice        *float64     `json:"basePrice"`
	PriceHistory     []PricePoint `json:"priceHistory"`
	Purchases        int          `json:"purchases"`
	PendingPurchases int          `json:"pendingPurchases"`
	LastPurchased    *int64       `json:"lastPurchased"`
}

type wireState struct {
	Beers      *[]wireBeer `json:"beers"`
	LastUpdate *int64      `json:"lastUpdate"`
}

// Snapshot is a validated SharedState together with the exact bytes it was
// accepted from. Raw is what gets forwarded to other clients.
type Snapshot struct {
	State SharedState
	Raw   json.RawMessage
}

// NewSnapshot encodes a locally built state.
func NewSnapshot(s SharedState) (Snapshot, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode shared state: %w", err)
	}
	return Snapshot{State: s, Raw: raw}, nil
}

// DecodeSharedState validates raw as a SharedState. Unknown keys are tolerated
// and kept in the forwarded bytes; missing or mistyped required keys are not.
func DecodeSharedState(raw []byte) (Snapshot, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Snapshot{}, fmt.Errorf("%w: payload is not an object", ErrInvalidState)
	}

	var w wireState
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if w.Beers == nil {
		return Snapshot{}, fmt.Errorf("%w: missing beers", ErrInvalidState)
	}
	if w.LastUpdate == nil {
		return Snapshot{}, fmt.Errorf("%w: missing lastUpdate", ErrInvalidState)
	}

	state := SharedState{
		Beers:      make([]Beer, 0, len(*w.Beers)),
		LastUpdate: *w.LastUpdate,
	}
	for i, wb := range *w.Beers {
		b, err := wb.toBeer()
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: beers[%d]: %v", ErrInvalidState, i, err)
		}
		state.Beers = append(state.Beers, b)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	return Snapshot{State: state, Raw: compact.Bytes()}, nil
}

func (w wireBeer) toBeer() (Beer, error) {
	switch {
	case w.ID == nil || *w.ID == "":
		return Beer{}, fmt.Errorf("missing id")
	case w.Name == nil:
		return Beer{}, fmt.Errorf("missing name")
	case w.CurrentPrice == nil:
		return Beer{}, fmt.Errorf("missing currentPrice")
	case w.BasePrice == nil:
		return Beer{}, fmt.Errorf("missing basePrice")
	case *w.CurrentPrice < 0 || *w.BasePrice < 0:
		return Beer{}, fmt.Errorf("negative price")
	case w.Purchases < 0 || w.PendingPurchases < 0:
		return Beer{}, fmt.Errorf("negative purchase counter")
	}

	history := w.PriceHistory
	if history == nil {
		history = []PricePoint{}
	}

	return Beer{
		ID:               *w.ID,
		Name:             *w.Name,
		CurrentPrice:     *w.CurrentPrice,
		BasePrice:        *w.BasePrice,
		PriceHistory:     history,
		Purchases:        w.Purchases,
		PendingPurchases: w.PendingPurchases,
		LastPurchased:    w.LastPurchased,
	}, nil
}
