// Package pnl persists daily profit-and-loss snapshots in a WAL keyed by
// UTC date, with last-write-wins replay.
package pnl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"

	"github.com/amanabot/amana/internal/domain"
)

const (
	defaultPnLDir   = "./wal/pnl"
	pnlSegmentLimit = 400
	pnlMaxSegments  = 50
	pnlKeyPrefix    = "pnl_"
)

// WALStore keeps one snapshot per domain and UTC date. Re-writing a date
// updates the row instead of duplicating it.
type WALStore struct {
	wal       *gowal.Wal
	mu        sync.RWMutex
	snapshots map[string]domain.PnLSnapshot
}

// NewWALStore opens the snapshot store under dir and replays existing rows.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultPnLDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "pnl_",
		SegmentThreshold: pnlSegmentLimit,
		MaxSegments:      pnlMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init pnl WAL")
	}

	s := &WALStore{wal: wal, snapshots: make(map[string]domain.PnLSnapshot)}
	if err := s.replay(); err != nil {
		wal.Close()
		return nil, err
	}
	return s, nil
}

func (s *WALStore) replay() error {
	for idx := uint64(1); idx <= s.wal.CurrentIndex(); idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, pnlKeyPrefix) {
			continue
		}
		var snap domain.PnLSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return errors.Wrap(err, "decode pnl snapshot")
		}
		s.snapshots[snapKey(snap.Domain, snap.Date)] = snap
	}
	return nil
}

func snapKey(tradingDomain, date string) string {
	return tradingDomain + "_" + date
}

// StartDay records the opening equity for a date. Existing rows keep their
// original starting equity so restarts within a day do not reset the anchor.
func (s *WALStore) StartDay(tradingDomain, date string, starting decimal.Decimal) (domain.PnLSnapshot, error) {
	if s == nil || s.wal == nil {
		return domain.PnLSnapshot{}, errors.New("pnl store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.snapshots[snapKey(tradingDomain, date)]; ok {
		return existing, nil
	}

	snap := domain.PnLSnapshot{
		Date:           date,
		Domain:         tradingDomain,
		StartingEquity: starting,
		EndingEquity:   starting,
	}
	if err := s.write(snap); err != nil {
		return domain.PnLSnapshot{}, err
	}
	return snap, nil
}

// EndDay closes out the date with the ending equity and trade count.
func (s *WALStore) EndDay(tradingDomain, date string, ending decimal.Decimal, trades int) (domain.PnLSnapshot, error) {
	if s == nil || s.wal == nil {
		return domain.PnLSnapshot{}, errors.New("pnl store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[snapKey(tradingDomain, date)]
	if !ok {
		snap = domain.PnLSnapshot{Date: date, Domain: tradingDomain, StartingEquity: ending}
	}

	snap.EndingEquity = ending
	snap.PnL = ending.Sub(snap.StartingEquity)
	snap.TradesCount = trades
	if snap.StartingEquity.IsPositive() {
		ret, _ := snap.PnL.Div(snap.StartingEquity).Float64()
		snap.ReturnPct = ret * 100
	}

	if err := s.write(snap); err != nil {
		return domain.PnLSnapshot{}, err
	}
	return snap, nil
}

// Get returns the snapshot for a domain and date.
func (s *WALStore) Get(tradingDomain, date string) (domain.PnLSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[snapKey(tradingDomain, date)]
	return snap, ok
}

// History returns up to limit snapshots for a domain, most recent date first.
func (s *WALStore) History(tradingDomain string, limit int) []domain.PnLSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PnLSnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		if snap.Domain == tradingDomain {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// write must be called with the mutex held.
func (s *WALStore) write(snap domain.PnLSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshal pnl snapshot")
	}

	key := fmt.Sprintf("%s%s", pnlKeyPrefix, snapKey(snap.Domain, snap.Date))
	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		return err
	}

	s.snapshots[snapKey(snap.Domain, snap.Date)] = snap
	return nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("pnl store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
