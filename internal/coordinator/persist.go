package coordinator

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/nao1215/surveilscope/internal/metrics"
)

// Snapshot keys in the store.
const (
	keyTrackingDatabase    = "trackingDatabase"
	keyFingerprints        = "fingerprints"
	keyPriceHistory        = "priceHistory"
	keyFingerprintTimeline = "fingerprintTimeline"
	keyExfiltrationData    = "exfiltrationData"
	keyBeaconingPatterns   = "beaconingPatterns"
	keySecurityAlerts      = "securityAlerts"
	keySettings            = "settings"
	keyDataFlow            = "dataFlow"
	keyPages               = "pages"
)

// snapshotKeys lists every key LoadFromStore reads.
var snapshotKeys = []string{
	keyTrackingDatabase,
	keyFingerprints,
	keyPriceHistory,
	keyFingerprintTimeline,
	keyExfiltrationData,
	keyBeaconingPatterns,
	keySecurityAlerts,
	keySettings,
	keyDataFlow,
	keyPages,
}

// writeTimeout bounds a single background write.
const writeTimeout = 30 * time.Second

func (c *Coordinator) markDirty(keys ...string) {
	for _, key := range keys {
		c.dirty[key] = struct{}{}
	}
}

// commit serializes every dirty part and hands the bytes to the background
// writer. Without a store the dirty set is simply dropped.
func (c *Coordinator) commit() {
	if len(c.dirty) == 0 {
		return
	}
	if c.persister == nil {
		clear(c.dirty)
		return
	}

	entries := make(map[string][]byte, len(c.dirty))
	for key := range c.dirty {
		data, err := json.Marshal(c.snapshotPart(key))
		if err != nil {
			c.logger.Error("failed to serialize snapshot", "key", key, "error", err)
			c.metrics.PersistWrite(err)
			continue
		}
		entries[key] = data
	}
	clear(c.dirty)
	c.persister.submit(entries)
}

// snapshotPart returns the value stored under key.
func (c *Coordinator) snapshotPart(key string) any {
	switch key {
	case keyTrackingDatabase:
		return c.tracking.Export()
	case keyFingerprints:
		return c.headerprints.Export()
	case keyPriceHistory:
		return c.prices.Export()
	case keyFingerprintTimeline:
		return c.tracker.Export()
	case keyExfiltrationData:
		return c.exfiltration.Export()
	case keyBeaconingPatterns:
		return c.beaconing.Export()
	case keySecurityAlerts:
		return c.alerts.Alerts()
	case keySettings:
		return c.settings
	case keyDataFlow:
		return c.dataFlowPairs()
	case keyPages:
		return c.pageState()
	default:
		return nil
	}
}

// persister writes snapshots in the background. Pending entries for the
// same key are coalesced so only the newest bytes are written.
type persister struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	idle    *sync.Cond
	pending map[string][]byte
	busy    bool
	closed  bool

	wake chan struct{}
	done chan struct{}
}

func newPersister(store Store, logger *slog.Logger, m *metrics.Metrics) *persister {
	p := &persister{
		store:   store,
		logger:  logger,
		metrics: m,
		pending: make(map[string][]byte),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	p.idle = sync.NewCond(&p.mu)
	go p.run()
	return p
}

func (p *persister) submit(entries map[string][]byte) {
	if len(entries) == 0 {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	maps.Copy(p.pending, entries)
	select {
	case p.wake <- struct{}{}:
	default:
	}
	p.mu.Unlock()
}

func (p *persister) run() {
	defer close(p.done)
	for range p.wake {
		for {
			p.mu.Lock()
			if len(p.pending) == 0 {
				p.busy = false
				p.idle.Broadcast()
				p.mu.Unlock()
				break
			}
			batch := p.pending
			p.pending = make(map[string][]byte)
			p.busy = true
			p.mu.Unlock()

			p.write(batch)
		}
	}
}

func (p *persister) write(batch map[string][]byte) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := p.store.Set(ctx, batch)
	p.metrics.PersistWrite(err)
	if err != nil {
		p.logger.Error("failed to persist snapshot", "keys", len(batch), "error", err)
	}
}

// flush blocks until nothing is pending and no write is in flight.
func (p *persister) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waitIdle()
}

// waitIdle must be called with mu held.
func (p *persister) waitIdle() {
	for len(p.pending) > 0 || p.busy {
		p.idle.Wait()
	}
}

// close drains pending writes and stops the writer.
func (p *persister) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.waitIdle()
	close(p.wake)
	p.mu.Unlock()

	<-p.done
}
