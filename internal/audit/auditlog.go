// Package audit keeps a hash-chained, process-scoped trail of key
// lifecycle events (rotations, migrations, cache invalidations). Each
// entry's hash covers the previous hash, so in-process tampering with the
// trail is detectable via Verify.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

type Entry struct {
	TS    int64  `json:"ts"`
	Event string `json:"event"`
	Items int    `json:"items,omitempty"`
	Hash  string `json:"hash"`
}

type Log struct {
	mu       sync.Mutex
	lastHash []byte
	entries  []Entry
}

func New() *Log { return &Log{} }

// Append records an event and returns the chained entry.
func (l *Log) Append(event string, items int) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	h := sha256.New()
	h.Write(l.lastHash)
	h.Write([]byte(event))
	h.Write([]byte(fmt.Sprintf("%d", items)))
	sum := h.Sum(nil)
	l.lastHash = sum

	e := Entry{TS: time.Now().Unix(), Event: event, Items: items, Hash: hex.EncodeToString(sum)}
	l.entries = append(l.entries, e)
	return e
}

// Verify recomputes the chain and fails if any entry was altered.
func (l *Log) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var prev []byte
	for _, e := range l.entries {
		h := sha256.New()
		h.Write(prev)
		h.Write([]byte(e.Event))
		h.Write([]byte(fmt.Sprintf("%d", e.Items)))
		sum := h.Sum(nil)
		if hex.EncodeToString(sum) != e.Hash {
			return fmt.Errorf("audit chain broken at %s", e.Event)
		}
		prev = sum
	}
	return nil
}

// Entries returns a copy of the trail.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}
