package cache

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Entry records when a fingerprint was last seen
type Entry struct {
	Intent    string
	Timestamp time.Time
}

// GenerateKey fingerprints an intent and its slot values independent of map order
func GenerateKey(intent string, data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(intent))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(data[k]))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Window remembers fingerprints for a fixed duration
type Window struct {
	ttl     time.Duration
	entries sync.Map
}

// NewWindow creates a window that forgets keys after ttl
func NewWindow(ttl time.Duration) *Window {
	return &Window{ttl: ttl}
}

// Seen reports whether key was stored within the window ending at now.
func (w *Window) Seen(key string, now time.Time) bool {
	val, ok := w.entries.Load(key)
	if !ok {
		return false
	}
	if now.Sub(val.(Entry).Timestamp) >= w.ttl {
		w.entries.Delete(key)
		return false
	}
	return true
}

// Store marks key as seen at now
func (w *Window) Store(key, intent string, now time.Time) {
	w.entries.Store(key, Entry{Intent: intent, Timestamp: now})
}

// Forget drops key so the next Seen reports false
func (w *Window) Forget(key string) {
	w.entries.Delete(key)
}
