package cache

import (
	"sync/atomic"
	"time"
)

// Stats tracks result cache behaviour.
type Stats struct {
	hits      atomic.Int64
	misses    atomic.Int64
	stores    atomic.Int64
	evictions atomic.Int64
	computes  atomic.Int64
	startTime time.Time
}

func newStats() *Stats {
	return &Stats{startTime: time.Now()}
}

func (s *Stats) recordHit()      { s.hits.Add(1) }
func (s *Stats) recordMiss()     { s.misses.Add(1) }
func (s *Stats) recordStore()    { s.stores.Add(1) }
func (s *Stats) recordEviction() { s.evictions.Add(1) }
func (s *Stats) recordCompute()  { s.computes.Add(1) }

// Snapshot is a point-in-time copy of Stats for reporting.
type Snapshot struct {
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Stores    int64         `json:"stores"`
	Evictions int64         `json:"evictions"`
	Computes  int64         `json:"computes"`
	Entries   int           `json:"entries"`
	HitRate   float64       `json:"hit_rate"`
	Uptime    time.Duration `json:"uptime"`
}

func (s *Stats) snapshot(entries int) Snapshot {
	snap := Snapshot{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Stores:    s.stores.Load(),
		Evictions: s.evictions.Load(),
		Computes:  s.computes.Load(),
		Entries:   entries,
		Uptime:    time.Since(s.startTime),
	}
	if total := snap.Hits + snap.Misses; total > 0 {
		snap.HitRate = float64(snap.Hits) / float64(total)
	}
	return snap
}
