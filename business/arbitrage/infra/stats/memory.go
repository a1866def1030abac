// Package stats persists daily risk statistics. The redis store survives
// restarts; the memory store backs tests and redis-less deployments.
package stats

import (
	"context"
	"sync"

	"github.com/fd1az/flashloan-bot/business/arbitrage/domain"
)

// MemoryStore keeps daily stats in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	days map[string]domain.DailyRiskStats
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{days: make(map[string]domain.DailyRiskStats)}
}

// Load returns the stats for a day, or a fresh block when none exist.
func (s *MemoryStore) Load(_ context.Context, day string) (*domain.DailyRiskStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stats, ok := s.days[day]; ok {
		copied := stats
		return &copied, nil
	}
	return domain.NewDailyRiskStats(day), nil
}

// Save stores a copy of the stats under their day key.
func (s *MemoryStore) Save(_ context.Context, stats *domain.DailyRiskStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.days[stats.Day] = *stats
	return nil
}
