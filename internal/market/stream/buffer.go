// Package stream maintains rolling candle buffers fed by exchange
// websocket kline streams.
package stream

import (
	"sync"

	"github.com/amanabot/amana/internal/domain"
)

// buffer is a fixed-capacity rolling window of candles for one symbol.
// The last entry may be a still-forming candle; an update with the same
// open time replaces it in place, so the window never holds two entries
// for one open time and never drops a closed candle.
type buffer struct {
	mu       sync.RWMutex
	capacity int
	candles  []domain.Candle
}

func newBuffer(capacity int) *buffer {
	return &buffer{capacity: capacity, candles: make([]domain.Candle, 0, capacity)}
}

func (b *buffer) apply(c domain.Candle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n := len(b.candles); n > 0 && b.candles[n-1].OpenTime.Equal(c.OpenTime) {
		b.candles[n-1] = c
		return
	}

	b.candles = append(b.candles, c)
	if len(b.candles) > b.capacity {
		b.candles = b.candles[len(b.candles)-b.capacity:]
	}
}

// snapshot returns up to limit most recent candles, oldest first.
// limit <= 0 returns the whole window.
func (b *buffer) snapshot(limit int) []domain.Candle {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.candles)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.Candle, limit)
	copy(out, b.candles[n-limit:])
	return out
}

func (b *buffer) size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.candles)
}

func (b *buffer) closedCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, c := range b.candles {
		if c.Closed {
			count++
		}
	}
	return count
}
