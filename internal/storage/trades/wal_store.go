// Package trades persists the trade audit log in a WAL.
package trades

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/amanabot/amana/internal/domain"
)

const (
	defaultTradesDir   = "./wal/trades"
	tradesSegmentLimit = 1000
	tradesMaxSegments  = 20
	tradeKeyPrefix     = "trade_"
)

// WALStore is an append-only trade journal backed by a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens or creates the trade journal under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultTradesDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "trade_",
		SegmentThreshold: tradesSegmentLimit,
		MaxSegments:      tradesMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init trades WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes one trade record.
func (s *WALStore) Append(rec domain.TradeRecord) error {
	if s == nil || s.wal == nil {
		return errors.New("trade store is not initialized")
	}
	if rec.Symbol == "" {
		return errors.New("trade record symbol is required")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal trade record")
	}

	key := fmt.Sprintf("%s%s", tradeKeyPrefix, rec.Symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// Recent returns up to limit most recent trades, newest first.
func (s *WALStore) Recent(limit int) ([]domain.TradeRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("trade store is not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TradeRecord, 0, limit)
	for idx := s.wal.CurrentIndex(); idx >= 1 && len(out) < limit; idx-- {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, tradeKeyPrefix) {
			continue
		}
		var rec domain.TradeRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, errors.Wrap(err, "decode trade record")
		}
		out = append(out, rec)
	}

	return out, nil
}

// CountForDay returns how many trades were recorded on the given UTC date.
func (s *WALStore) CountForDay(day string) (int, error) {
	if s == nil || s.wal == nil {
		return 0, errors.New("trade store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for idx := s.wal.CurrentIndex(); idx >= 1; idx-- {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, tradeKeyPrefix) {
			continue
		}
		var rec domain.TradeRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			continue
		}
		if rec.Day() == day {
			count++
		} else if rec.Day() < day {
			// journal is chronological, nothing older matches
			break
		}
	}

	return count, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("trade store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
