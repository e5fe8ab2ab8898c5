package notify

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/nao1215/surveilscope/internal/model"
)

// Dedupe defaults.
const (
	DefaultDedupeCapacity  = 10000
	DefaultDedupeFalseRate = 0.001
	DefaultDedupeWindow    = time.Hour
)

// Dedupe suppresses notifications whose title, message and priority were
// already delivered in the current window. A beaconing origin re-detected on
// every request therefore notifies once per window instead of every few seconds.
//
// Membership is tracked with a Bloom filter, so a small share of first-time
// notifications may be dropped as false positives. The filter is reset when
// the window elapses or the capacity is reached.
type Dedupe struct {
	next     Notifier
	window   time.Duration
	capacity uint
	rate     float64
	now      func() time.Time

	mu      sync.Mutex
	filter  *bloom.BloomFilter
	count   uint
	resetAt time.Time
}

// DedupeOption configures a Dedupe.
type DedupeOption func(*Dedupe)

// WithWindow sets how long a delivered notification stays suppressed.
func WithWindow(d time.Duration) DedupeOption {
	return func(dd *Dedupe) {
		if d > 0 {
			dd.window = d
		}
	}
}

// WithCapacity sets the expected number of distinct notifications per window.
func WithCapacity(n uint, falsePositiveRate float64) DedupeOption {
	return func(dd *Dedupe) {
		if n > 0 {
			dd.capacity = n
		}
		if falsePositiveRate > 0 && falsePositiveRate < 1 {
			dd.rate = falsePositiveRate
		}
	}
}

// WithDedupeClock sets the time source.
func WithDedupeClock(now func() time.Time) DedupeOption {
	return func(dd *Dedupe) {
		if now != nil {
			dd.now = now
		}
	}
}

// NewDedupe wraps next.
func NewDedupe(next Notifier, opts ...DedupeOption) *Dedupe {
	d := &Dedupe{
		next:     next,
		window:   DefaultDedupeWindow,
		capacity: DefaultDedupeCapacity,
		rate:     DefaultDedupeFalseRate,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.filter = bloom.NewWithEstimates(d.capacity, d.rate)
	d.resetAt = d.now().Add(d.window)
	return d
}

// Notify forwards n unless it was seen in the current window.
// A failed delivery is not remembered, so the next attempt goes through.
func (d *Dedupe) Notify(ctx context.Context, n model.Notification) error {
	key := []byte(n.Title + "\x00" + n.Message + "\x00" + strconv.Itoa(n.Priority))

	d.mu.Lock()
	now := d.now()
	if !now.Before(d.resetAt) || d.count >= d.capacity {
		d.filter.ClearAll()
		d.count = 0
		d.resetAt = now.Add(d.window)
	}
	if d.filter.Test(key) {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	if err := d.next.Notify(ctx, n); err != nil {
		return err
	}

	d.mu.Lock()
	d.filter.Add(key)
	d.count++
	d.mu.Unlock()
	return nil
}

// Reset forgets every delivered notification.
func (d *Dedupe) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filter.ClearAll()
	d.count = 0
	d.resetAt = d.now().Add(d.window)
}
