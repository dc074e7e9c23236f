// Package decisions persists decision model audit records in a WAL.
package decisions

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
	defaultDecisionsDir   = "./wal/decisions"
	decisionsSegmentLimit = 200
	decisionsMaxSegments  = 10
	decisionKeyPrefix     = "decision_"
)

// WALStore is an append-only journal of decision model invocations.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens or creates the decision journal under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultDecisionsDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "decision_",
		SegmentThreshold: decisionsSegmentLimit,
		MaxSegments:      decisionsMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init decisions WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes one decision record.
func (s *WALStore) Append(rec domain.DecisionRecord) error {
	if s == nil || s.wal == nil {
		return errors.New("decision store is not initialized")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal decision record")
	}

	key := fmt.Sprintf("%s%s", decisionKeyPrefix, rec.Domain)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// Recent returns up to limit most recent decision records, newest first.
func (s *WALStore) Recent(limit int) ([]domain.DecisionRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("decision store is not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DecisionRecord, 0, limit)
	for idx := s.wal.CurrentIndex(); idx >= 1 && len(out) < limit; idx-- {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, decisionKeyPrefix) {
			continue
		}
		var rec domain.DecisionRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, errors.Wrap(err, "decode decision record")
		}
		out = append(out, rec)
	}

	return out, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("decision store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
