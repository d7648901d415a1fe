package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func int64p(v int64) *int64 { return &v }
func intp(v int) *int       { return &v }

func TestUpsertProductInsertsThenUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &Product{
		ShopeeID: "67890",
		ShopID:   "12345",
		Name:     "Sepatu Lari",
		Price:    int64p(150000),
	}
	created, err := s.UpsertProduct(ctx, p)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, p.ID)
	firstSeen := p.FirstSeenAt

	time.Sleep(10 * time.Millisecond)

	update := &Product{
		ShopeeID: "67890",
		ShopID:   "12345",
		Name:     "Sepatu Lari Original",
		Price:    int64p(140000),
	}
	created, err = s.UpsertProduct(ctx, update)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p.ID, update.ID)

	got, err := s.GetProduct(ctx, "67890")
	require.NoError(t, err)
	assert.Equal(t, "Sepatu Lari Original", got.Name)
	assert.Equal(t, int64(140000), *got.Price)
	assert.Equal(t, firstSeen.Unix(), got.FirstSeenAt.Unix())
	assert.True(t, got.LastSeenAt.After(got.FirstSeenAt) || got.LastSeenAt.Equal(got.FirstSeenAt))
}

func TestGetProductNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPriceHistoryAndDirection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &Product{ShopeeID: "1", Name: "x"}
	_, err := s.UpsertProduct(ctx, p)
	require.NoError(t, err)

	dir, err := s.LatestPriceDirection(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, PriceStable, dir)

	require.NoError(t, s.RecordPrice(ctx, p.ID, 100000, nil, nil))
	require.NoError(t, s.RecordPrice(ctx, p.ID, 90000, int64p(120000), intp(25)))

	history, err := s.PriceHistory(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(90000), history[0].Price)
	assert.Equal(t, int64(100000), history[1].Price)
	require.NotNil(t, history[0].OriginalPrice)
	assert.Equal(t, int64(120000), *history[0].OriginalPrice)

	dir, err = s.LatestPriceDirection(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, PriceDown, dir)

	require.NoError(t, s.RecordPrice(ctx, p.ID, 95000, nil, nil))
	dir, err = s.LatestPriceDirection(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, PriceUp, dir)
}

func TestUpsertSellerAndLink(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sellerID, err := s.UpsertSeller(ctx, &Seller{
		ShopID: "12345",
		Name:   "Toko Sepatu",
	})
	require.NoError(t, err)
	assert.NotZero(t, sellerID)

	// Same shop id resolves to the same record.
	again, err := s.UpsertSeller(ctx, &Seller{
		ShopID:   "12345",
		Name:     "Toko Sepatu Jaya",
		Location: "Kota Bandung",
	})
	require.NoError(t, err)
	assert.Equal(t, sellerID, again)

	p := &Product{ShopeeID: "9", ShopID: "12345", Name: "x"}
	_, err = s.UpsertProduct(ctx, p)
	require.NoError(t, err)

	require.NoError(t, s.LinkSeller(ctx, p.ID, sellerID))

	got, err := s.GetProduct(ctx, "9")
	require.NoError(t, err)
	require.NotNil(t, got.SellerID)
	assert.Equal(t, sellerID, *got.SellerID)
}
