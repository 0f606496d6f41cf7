package metrics

import (
	"encoding/json"
	"os"
	"sync"

	eb "thor-mesh/internal/eventBus"
)

// Global is set by the entrypoint so deep call sites can count without
// plumbing.
var Global *Collector

type Counters struct {
	TotalOriginated   uint64 `json:"total_originated"`
	TotalForwarded    uint64 `json:"total_forwarded"`
	TotalDelivered    uint64 `json:"total_delivered"`
	TotalQueued       uint64 `json:"total_queued"`
	TotalDrained      uint64 `json:"total_drained"`
	TotalExpired      uint64 `json:"total_expired"`
	QueueOverflows    uint64 `json:"queue_overflows"`
	NeighborsExpired  uint64 `json:"neighbors_expired"`
	PathLocks         uint64 `json:"path_locks"`
	PathReleases      uint64 `json:"path_releases"`
	TTLSum            uint64 `json:"ttl_sum"`
	TTLSamples        uint64 `json:"ttl_samples"`
}

type Collector struct {
	mu sync.Mutex
	Counters
}

func NewCollector() *Collector {
	return &Collector{}
}

// Consume counts bus events until ch closes. Run it in its own goroutine.
func (c *Collector) Consume(ch chan eb.Event) {
	for ev := range ch {
		c.Add(ev)
	}
}

func (c *Collector) Add(ev eb.Event) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev.Type {
	case eb.EventPacketSent:
		c.TotalOriginated++
	case eb.EventPacketForwarded:
		c.TotalForwarded++
		c.TTLSum += uint64(ev.TTL)
		c.TTLSamples++
	case eb.EventPacketDelivered:
		c.TotalDelivered++
	case eb.EventPacketQueued:
		c.TotalQueued++
	case eb.EventQueueDrained:
		c.TotalDrained += uint64(ev.Count)
	case eb.EventPacketExpired:
		c.TotalExpired++
	case eb.EventQueueOverflow:
		c.QueueOverflows++
	case eb.EventNeighborExpired:
		c.NeighborsExpired += uint64(ev.Count)
	case eb.EventPathLocked:
		c.PathLocks++
	case eb.EventPathReleased:
		c.PathReleases++
	}
}

func (c *Collector) Snapshot() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Counters
}

func (c *Collector) Flush(file string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c.Counters)
}
