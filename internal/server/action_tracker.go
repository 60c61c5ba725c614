package server

import (
	"sync"
	"time"
)

// processedAction is one applied request kept for duplicate detection.
type processedAction struct {
	playerID  string
	tableID   string
	timestamp time.Time
}

// ActionTracker deduplicates retransmitted intents by request id. A
// client that resends after a network hiccup gets its second copy dropped
// instead of replayed as a fresh action.
type ActionTracker struct {
	mu        sync.RWMutex
	processed map[string]processedAction
	retention time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewActionTracker() *ActionTracker {
	at := &ActionTracker{
		processed: make(map[string]processedAction),
		retention: 5 * time.Minute,
		stop:      make(chan struct{}),
	}
	go at.cleanupLoop()
	return at
}

// IsDuplicate reports whether the request id was already applied. An
// empty id is never tracked. Ids are global, not per player, so a reused
// id from a different connection is still rejected.
func (at *ActionTracker) IsDuplicate(requestID string) bool {
	if requestID == "" {
		return false
	}
	at.mu.RLock()
	defer at.mu.RUnlock()
	_, exists := at.processed[requestID]
	return exists
}

// MarkProcessed records an applied request. Only called after the engine
// accepted the action; rejected intents stay unmarked so the client may
// retry them with the same id.
func (at *ActionTracker) MarkProcessed(requestID, playerID, tableID string) {
	if requestID == "" {
		return
	}
	at.mu.Lock()
	defer at.mu.Unlock()
	at.processed[requestID] = processedAction{
		playerID:  playerID,
		tableID:   tableID,
		timestamp: time.Now(),
	}
}

// Cleanup drops entries older than the retention period and returns how
// many were removed.
func (at *ActionTracker) Cleanup(retention time.Duration) int {
	at.mu.Lock()
	defer at.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	removed := 0
	for id, action := range at.processed {
		if action.timestamp.Before(cutoff) {
			delete(at.processed, id)
			removed++
		}
	}
	return removed
}

func (at *ActionTracker) cleanupLoop() {
	ticker := time.NewTicker(at.retention)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			at.Cleanup(at.retention)
		case <-at.stop:
			return
		}
	}
}

func (at *ActionTracker) Stop() {
	at.stopOnce.Do(func() { close(at.stop) })
}
