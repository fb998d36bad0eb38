package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	botID     string
	expiresAt time.Time
}

// MemoryLedger is the in-process ledger used by tests and single-node
// deployments. The mutex around the check-and-set mirrors the atomicity
// the Redis ledger gets from SetNX.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: make(map[string]memoryRecord),
		now:     time.Now,
	}
}

func (l *MemoryLedger) Mark(_ context.Context, eventID, botID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if rec, ok := l.records[eventID]; ok && l.now().Before(rec.expiresAt) {
		return false, nil
	}

	l.records[eventID] = memoryRecord{botID: botID, expiresAt: l.now().Add(ttl)}

	return true, nil
}

func (l *MemoryLedger) Extend(_ context.Context, eventID, botID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.records[eventID] = memoryRecord{botID: botID, expiresAt: l.now().Add(ttl)}

	return nil
}

func (l *MemoryLedger) Release(_ context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.records, eventID)

	return nil
}

func (l *MemoryLedger) Seen(_ context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[eventID]
	if !ok {
		return false, nil
	}

	return l.now().Before(rec.expiresAt), nil
}

// Sweep drops expired markers. Called periodically by the janitor.
func (l *MemoryLedger) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0

	for id, rec := range l.records {
		if !l.now().Before(rec.expiresAt) {
			delete(l.records, id)

			removed++
		}
	}

	return removed
}
