package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/pricing-sync-service/internal/domain/model"
)

func board(t *testing.T) model.SharedState {
	t.Helper()
	s := SeedPredefined(model.NewDefaultState(0), 100)
	require.Len(t, s.Beers, len(PredefinedItems))
	return s
}

func TestSeedPredefined_SkipsExistingNames(t *testing.T) {
	s := board(t)
	again := SeedPredefined(s, 200)

	assert.Len(t, again.Beers, len(PredefinedItems))
	assert.Equal(t, int64(200), again.LastUpdate)
	assert.Equal(t, s.Beers[0].ID, again.Beers[0].ID)
}

func TestRecordPurchase(t *testing.T) {
	s := board(t)

	out, ok := RecordPurchase(s, "Classic", 500)
	require.True(t, ok)

	i := out.Find("Classic")
	assert.Equal(t, 1, out.Beers[i].PendingPurchases)
	require.NotNil(t, out.Beers[i].LastPurchased)
	assert.Equal(t, int64(500), *out.Beers[i].LastPurchased)
	assert.Zero(t, s.Beers[i].PendingPurchases, "input must not be mutated")

	_, ok = RecordPurchase(s, "Missing", 500)
	assert.False(t, ok)
}

func TestUpdatePrices_IncreaseAndDecay(t *testing.T) {
	s := board(t)
	s, _ = RecordPurchase(s, "Classic", 1)
	s, _ = RecordPurchase(s, "Classic", 2)

	out := UpdatePrices(s, 1000)

	classic := out.Beers[out.Find("Classic")]
	assert.InDelta(t, 18*1.05*1.05, classic.CurrentPrice, 1e-9)
	assert.Equal(t, 2, classic.Purchases)
	assert.Zero(t, classic.PendingPurchases)
	assert.Len(t, classic.PriceHistory, 2)

	shot := out.Beers[out.Find("Shot")]
	assert.InDelta(t, 10*0.98, shot.CurrentPrice, 1e-9)
	assert.Equal(t, int64(1000), out.LastUpdate)
}

func TestUpdatePrices_Bounds(t *testing.T) {
	s := model.SharedState{Beers: []model.Beer{
		{ID: "hi", Name: "hi", BasePrice: 10, CurrentPrice: 19.9, PendingPurchases: 10},
		{ID: "lo", Name: "lo", BasePrice: 10, CurrentPrice: 5.01},
	}}

	out := UpdatePrices(s, 1)

	assert.Equal(t, 20.0, out.Beers[0].CurrentPrice)
	assert.Equal(t, 5.0, out.Beers[1].CurrentPrice)
}

func TestReset(t *testing.T) {
	s := board(t)
	s, _ = RecordPurchase(s, "Drink", 1)
	s = UpdatePrices(s, 2)

	out := Reset(s, 3)

	d := out.Beers[out.Find("Drink")]
	assert.Equal(t, d.BasePrice, d.CurrentPrice)
	assert.Zero(t, d.Purchases)
	assert.Nil(t, d.LastPurchased)
	assert.Equal(t, d.BasePrice, d.PriceHistory[len(d.PriceHistory)-1].Price)
}

func TestRemoveItem(t *testing.T) {
	s := board(t)
	out, ok := RemoveItem(s, "Shot")
	require.True(t, ok)
	assert.Equal(t, -1, out.Find("Shot"))
	assert.Len(t, out.Beers, len(s.Beers)-1)
}

func TestDemandPrice(t *testing.T) {
	assert.InDelta(t, 11.0, DemandPrice(10, 10, 100), 1e-9)
	assert.InDelta(t, 9.0, DemandPrice(10, 10, 0), 1e-9)
	assert.InDelta(t, 10.0, DemandPrice(10, 10, AverageSalesThreshold), 1e-9)
	assert.Equal(t, 20.0, DemandPrice(19.5, 10, 100))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5.0, Clamp(1, 10))
	assert.Equal(t, 20.0, Clamp(100, 10))
	assert.Equal(t, 12.0, Clamp(12, 10))
}

func TestUpdatePricesByDemand(t *testing.T) {
	s := board(t)
	i := s.Find("Classic")
	s.Beers[i].PendingPurchases = 10

	out := UpdatePricesByDemand(s, 900)

	assert.InDelta(t, 19.8, out.Beers[i].CurrentPrice, 1e-9)
	assert.Equal(t, 10, out.Beers[i].Purchases)
	assert.Zero(t, out.Beers[i].PendingPurchases)

	j := out.Find("Sodavand")
	assert.InDelta(t, 10.8, out.Beers[j].CurrentPrice, 1e-9)
	assert.Equal(t, int64(900), out.LastUpdate)
	assert.Equal(t, int64(900), out.Beers[j].PriceHistory[len(out.Beers[j].PriceHistory)-1].Timestamp)
}
