package pnl

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartDayIsIdempotent(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	first, err := store.StartDay("equity", "2026-08-31", decimal.NewFromInt(100000))
	require.NoError(t, err)
	assert.Equal(t, "100000", first.StartingEquity.String())

	// a restart within the day must not move the anchor
	again, err := store.StartDay("equity", "2026-08-31", decimal.NewFromInt(99000))
	require.NoError(t, err)
	assert.Equal(t, "100000", again.StartingEquity.String())
}

func TestEndDayComputesReturn(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.StartDay("crypto", "2026-08-31", decimal.NewFromInt(10000))
	require.NoError(t, err)

	snap, err := store.EndDay("crypto", "2026-08-31", decimal.NewFromInt(10250), 4)
	require.NoError(t, err)

	assert.Equal(t, "250", snap.PnL.String())
	assert.InDelta(t, 2.5, snap.ReturnPct, 1e-9)
	assert.Equal(t, 4, snap.TradesCount)
}

func TestUniquePerDateAfterReplay(t *testing.T) {
	dir := t.TempDir()

	store, err := NewWALStore(dir)
	require.NoError(t, err)

	_, err = store.StartDay("equity", "2026-08-30", decimal.NewFromInt(100000))
	require.NoError(t, err)
	_, err = store.EndDay("equity", "2026-08-30", decimal.NewFromInt(101000), 2)
	require.NoError(t, err)
	_, err = store.StartDay("equity", "2026-08-31", decimal.NewFromInt(101000))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = NewWALStore(dir)
	require.NoError(t, err)
	defer store.Close()

	history := store.History("equity", 10)
	require.Len(t, history, 2)
	assert.Equal(t, "2026-08-31", history[0].Date)
	assert.Equal(t, "2026-08-30", history[1].Date)
	assert.Equal(t, "1000", history[1].PnL.String())

	// domains are isolated
	assert.Empty(t, store.History("crypto", 10))
}
