package decisions

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanabot/amana/internal/domain"
)

func TestWALStoreRecentNewestFirst(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(domain.DecisionRecord{
			ID:        fmt.Sprintf("dec-%d", i),
			Timestamp: time.Now().UTC(),
			Domain:    "crypto",
			Provider:  "test",
			Model:     "test-model",
			Buys:      i,
		}))
	}

	recent, err := store.Recent(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "dec-4", recent[0].ID)
	assert.Equal(t, "dec-2", recent[2].ID)
}

func TestWALStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewWALStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append(domain.DecisionRecord{ID: "dec-1", Domain: "equity", Error: "timeout"}))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	recent, err := reopened.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "dec-1", recent[0].ID)
	assert.Equal(t, "timeout", recent[0].Error)
}
