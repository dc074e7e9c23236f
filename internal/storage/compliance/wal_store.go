// Package compliance caches halal screening verdicts in a WAL with
// last-write-wins replay into memory.
package compliance

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/amanabot/amana/internal/domain"
)

const (
	defaultComplianceDir   = "./wal/compliance"
	complianceSegmentLimit = 500
	complianceMaxSegments  = 50
	complianceKeyPrefix    = "screen_"
)

// WALStore keeps screening verdicts on disk and serves reads from an
// in-memory map rebuilt from the WAL at open. Read paths never touch the
// network or the disk.
type WALStore struct {
	wal     *gowal.Wal
	mu      sync.RWMutex
	records map[string]domain.ComplianceRecord
}

// NewWALStore opens the cache under dir and replays existing entries.
// Later writes for the same symbol win over earlier ones.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultComplianceDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "screen_",
		SegmentThreshold: complianceSegmentLimit,
		MaxSegments:      complianceMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init compliance WAL")
	}

	s := &WALStore{wal: wal, records: make(map[string]domain.ComplianceRecord)}
	if err := s.replay(); err != nil {
		wal.Close()
		return nil, err
	}
	return s, nil
}

func (s *WALStore) replay() error {
	for idx := uint64(1); idx <= s.wal.CurrentIndex(); idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, complianceKeyPrefix) {
			continue
		}
		var rec domain.ComplianceRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return errors.Wrap(err, "decode compliance record")
		}
		s.records[strings.ToUpper(rec.Symbol)] = rec
	}
	return nil
}

// Upsert stores a verdict for one symbol, replacing any previous one.
func (s *WALStore) Upsert(rec domain.ComplianceRecord) error {
	if s == nil || s.wal == nil {
		return errors.New("compliance store is not initialized")
	}
	if rec.Symbol == "" {
		return errors.New("compliance record symbol is required")
	}

	rec.Symbol = strings.ToUpper(rec.Symbol)
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal compliance record")
	}

	key := fmt.Sprintf("%s%s", complianceKeyPrefix, rec.Symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		return err
	}

	s.records[rec.Symbol] = rec
	return nil
}

// Get returns the cached verdict for a symbol.
func (s *WALStore) Get(symbol string) (domain.ComplianceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[strings.ToUpper(symbol)]
	return rec, ok
}

// HalalSymbols returns all symbols whose cached verdict is halal, sorted.
func (s *WALStore) HalalSymbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.records))
	for symbol, rec := range s.records {
		if rec.Status.IsHalal() {
			out = append(out, symbol)
		}
	}
	sort.Strings(out)
	return out
}

// Fresh reports whether any cached verdict is newer than maxAge. An empty
// cache is never fresh.
func (s *WALStore) Fresh(maxAge time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	for _, rec := range s.records {
		if rec.UpdatedAt.After(cutoff) {
			return true
		}
	}
	return false
}

// Len returns the number of cached verdicts.
func (s *WALStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("compliance store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
