// Package pricing holds the board's price arithmetic. The relay never calls
// it; clients do before they publish a stateUpdate.
package pricing

import (
	"math"

	"github.com/google/uuid"
	"github.com/webitel/pricing-sync-service/internal/domain/model"
)

const (
	DecayRate      = 0.98 // per tick without purchases
	IncreaseRate   = 1.05 // per pending purchase
	MinPriceFactor = 0.5
	MaxPriceFactor = 2.0

	// DemandPrice parameters.
	Volatility            = 0.1
	AverageSalesThreshold = 5
)

// Item is a predefined board entry.
type Item struct {
	Name      string
	BasePrice float64
}

var PredefinedItems = []Item{
	{Name: "Grøn", BasePrice: 15},
	{Name: "Classic", BasePrice: 18},
	{Name: "Drink", BasePrice: 25},
	{Name: "Sodavand", BasePrice: 12},
	{Name: "Drinkskande", BasePrice: 80},
	{Name: "Shot", BasePrice: 10},
}

// Clamp bounds price to [0.5 x base, 2.0 x base].
func Clamp(price, base float64) float64 {
	return math.Max(math.Min(price, base*MaxPriceFactor), base*MinPriceFactor)
}

// DemandPrice moves current by at most ±10% depending on how recentSales
// compares to the average threshold.
func DemandPrice(current, base float64, recentSales int) float64 {
	demand := float64(recentSales-AverageSalesThreshold) / AverageSalesThreshold
	demand = math.Max(math.Min(demand, 1), -1)
	return Clamp(current*(1+demand*Volatility), base)
}

// SeedPredefined appends predefined items whose names are not on the board yet.
func SeedPredefined(s model.SharedState, nowMillis int64) model.SharedState {
	out := s.Clone()
	for _, item := range PredefinedItems {
		if out.Find(item.Name) >= 0 {
			continue
		}
		out.Beers = append(out.Beers, model.Beer{
			ID:           uuid.NewString(),
			Name:         item.Name,
			CurrentPrice: item.BasePrice,
			BasePrice:    item.BasePrice,
			PriceHistory: []model.PricePoint{{Timestamp: nowMillis, Price: item.BasePrice}},
		})
	}
	out.LastUpdate = nowMillis
	return out
}

// RecordPurchase counts a pending purchase; prices move on the next tick.
// ok is false when no item has that name.
func RecordPurchase(s model.SharedState, name string, nowMillis int64) (out model.SharedState, ok bool) {
	out = s.Clone()
	i := out.Find(name)
	if i < 0 {
		return out, false
	}
	ts := nowMillis
	out.Beers[i].PendingPurchases++
	out.Beers[i].LastPurchased = &ts
	return out, true
}

// RemoveItem drops the item with the given name.
func RemoveItem(s model.SharedState, name string) (out model.SharedState, ok bool) {
	out = s.Clone()
	i := out.Find(name)
	if i < 0 {
		return out, false
	}
	out.Beers = append(out.Beers[:i], out.Beers[i+1:]...)
	return out, true
}

// UpdatePrices applies one pricing tick: every pending purchase compounds a
// 5% increase, an item without pending purchases decays by 2%.
func UpdatePrices(s model.SharedState, nowMillis int64) model.SharedState {
	out := s.Clone()
	for i := range out.Beers {
		b := &out.Beers[i]
		price := b.CurrentPrice
		if b.PendingPurchases > 0 {
			for range b.PendingPurchases {
				price = math.Min(price*IncreaseRate, b.BasePrice*MaxPriceFactor)
			}
		} else {
			price = math.Max(price*DecayRate, b.BasePrice*MinPriceFactor)
		}
		b.CurrentPrice = price
		b.Purchases += b.PendingPurchases
		b.PendingPurchases = 0
		b.PriceHistory = append(b.PriceHistory, model.PricePoint{Timestamp: nowMillis, Price: price})
	}
	out.LastUpdate = nowMillis
	return out
}

// Reset puts every item back at its base price and clears counters.
func Reset(s model.SharedState, nowMillis int64) model.SharedState {
	out := s.Clone()
	for i := range out.Beers {
		b := &out.Beers[i]
		b.CurrentPrice = b.BasePrice
		b.Purchases = 0
		b.PendingPurchases = 0
		b.LastPurchased = nil
		b.PriceHistory = append(b.PriceHistory, model.PricePoint{Timestamp: nowMillis, Price: b.BasePrice})
	}
	out.LastUpdate = nowMillis
	return out
}

// UpdatePricesByDemand is the demand-driven variant of UpdatePrices: the
// pending purchases since the last tick are the recent sales fed to DemandPrice.
func UpdatePricesByDemand(s model.SharedState, nowMillis int64) model.SharedState {
	out := s.Clone()
	for i := range out.Beers {
		b := &out.Beers[i]
		b.CurrentPrice = DemandPrice(b.CurrentPrice, b.BasePrice, b.PendingPurchases)
		b.Purchases += b.PendingPurchases
		b.PendingPurchases = 0
		b.PriceHistory = append(b.PriceHistory, model.PricePoint{Timestamp: nowMillis, Price: b.CurrentPrice})
	}
	out.LastUpdate = nowMillis
	return out
}
