package classifier

import (
	"strconv"
	"sync"

	"github.com/dgraph-io/ristretto"

	"github.com/adalundhe/architect/core/request"
)

const (
	defaultMemoCounters = 1e5
	defaultMemoMaxCost  = 1 << 22 // 4MB
	defaultBufferItems  = 64
)

type memoEntry struct {
	mode   request.Mode
	signal Signal
}

// SignalCache memoizes classifications by policy generation and text.
// All methods are safe on a nil receiver, which behaves as an empty cache.
type SignalCache struct {
	cache  *ristretto.Cache
	mu     sync.RWMutex
	closed bool
}

// NewSignalCache creates a memo bounded to maxCost bytes of text. A
// non-positive maxCost uses the default.
func NewSignalCache(maxCost int64) (*SignalCache, error) {
	if maxCost <= 0 {
		maxCost = defaultMemoMaxCost
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: defaultMemoCounters,
		MaxCost:     maxCost,
		BufferItems: defaultBufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &SignalCache{cache: cache}, nil
}

func memoKey(generation uint64, text string) string {
	return strconv.FormatUint(generation, 10) + "\x00" + text
}

// Get looks up a memoized classification.
func (s *SignalCache) Get(generation uint64, text string) (request.Mode, Signal, bool) {
	if !s.usable() {
		return "", Signal{}, false
	}
	v, ok := s.cache.Get(memoKey(generation, text))
	if !ok {
		return "", Signal{}, false
	}
	e, ok := v.(memoEntry)
	if !ok {
		return "", Signal{}, false
	}
	return e.mode, e.signal, true
}

// Set stores a classification. Admission is best effort.
func (s *SignalCache) Set(generation uint64, text string, mode request.Mode, sig Signal) {
	if !s.usable() {
		return
	}
	key := memoKey(generation, text)
	s.cache.Set(key, memoEntry{mode: mode, signal: sig.clone()}, int64(len(key)+64))
}

// Wait blocks until buffered writes are applied.
func (s *SignalCache) Wait() {
	if s.usable() {
		s.cache.Wait()
	}
}

// Clear drops every entry.
func (s *SignalCache) Clear() {
	if s.usable() {
		s.cache.Clear()
	}
}

// Close releases the cache. Further calls are no-ops.
func (s *SignalCache) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cache.Close()
}

func (s *SignalCache) usable() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}
