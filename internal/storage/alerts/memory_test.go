package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/notifier"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func alert(symbol string, bias core.Bias, at time.Time) notifier.Alert {
	return notifier.Alert{Symbol: symbol, Interval: "5m", Previous: core.BiasNeutral, Current: bias, At: at}
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := NewMemoryStore(100)
	ctx := context.Background()

	saved, err := store.Save(ctx, alert("BTCUSDT", core.BiasLong, t0))
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	got, err := store.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, *got)

	_, err = store.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrAlertNotFound)
}

func TestMemoryStore_ListFilters(t *testing.T) {
	store := NewMemoryStore(100)
	ctx := context.Background()

	_, _ = store.Save(ctx, alert("BTCUSDT", core.BiasLong, t0))
	_, _ = store.Save(ctx, alert("ETHUSDT", core.BiasShort, t0.Add(time.Hour)))
	_, _ = store.Save(ctx, alert("BTCUSDT", core.BiasNeutral, t0.Add(2*time.Hour)))

	all, err := store.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, core.BiasNeutral, all[0].Current, "newest first")

	btc, _ := store.List(ctx, ListFilter{Symbol: "BTCUSDT"})
	assert.Len(t, btc, 2)

	short, _ := store.List(ctx, ListFilter{Bias: core.BiasShort})
	require.Len(t, short, 1)
	assert.Equal(t, "ETHUSDT", short[0].Symbol)

	recent, _ := store.List(ctx, ListFilter{From: t0.Add(30 * time.Minute)})
	assert.Len(t, recent, 2)

	early, _ := store.List(ctx, ListFilter{To: t0.Add(30 * time.Minute)})
	assert.Len(t, early, 1)

	n, err := store.Count(ctx, ListFilter{Symbol: "BTCUSDT"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryStore_LimitOffset(t *testing.T) {
	store := NewMemoryStore(100)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = store.Save(ctx, alert("BTCUSDT", core.BiasLong, t0.Add(time.Duration(i)*time.Minute)))
	}

	page, _ := store.List(ctx, ListFilter{Limit: 2, Offset: 1})
	require.Len(t, page, 2)
	assert.Equal(t, t0.Add(3*time.Minute), page[0].At)
	assert.Equal(t, t0.Add(2*time.Minute), page[1].At)

	past, _ := store.List(ctx, ListFilter{Offset: 10})
	assert.Empty(t, past)
}

func TestMemoryStore_MaxSize(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()

	first, _ := store.Save(ctx, alert("AAAUSDT", core.BiasLong, t0))
	for i := 1; i <= 3; i++ {
		_, _ = store.Save(ctx, alert("BBBUSDT", core.BiasLong, t0.Add(time.Duration(i)*time.Minute)))
	}

	n, _ := store.Count(ctx, ListFilter{})
	assert.Equal(t, 3, n)
	_, err := store.GetByID(ctx, first.ID)
	assert.ErrorIs(t, err, core.ErrAlertNotFound)
}
