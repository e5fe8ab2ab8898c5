package ledger

import (
	"slices"
	"strconv"
	"time"

	"github.com/nao1215/surveilscope/internal/model"
)

const (
	// MaxPricePoints caps the price points kept per origin and tab.
	MaxPricePoints = 100

	// PricingWindow is how recent a price point must be to count towards
	// personalized pricing.
	PricingWindow = 5 * time.Minute

	// minPricePoints is the history length below which no verdict is made.
	minPricePoints = 3

	// personalizedThreshold is exceeded by the number of recent points when
	// the pricing looks personalized.
	personalizedThreshold = 3
)

// PricePoint is one commerce-related request.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	Method    string    `json:"method,omitempty"`
}

// PriceHistory is the commerce request history of one origin in one tab.
type PriceHistory struct {
	Origin              string       `json:"origin"`
	TabID               int          `json:"tabId"`
	PricePoints         []PricePoint `json:"pricePoints"`
	PersonalizedPricing bool         `json:"personalizedPricing"`
}

func (h *PriceHistory) clone() *PriceHistory {
	c := *h
	c.PricePoints = slices.Clone(h.PricePoints)
	return &c
}

// PriceKey returns the store key of an origin and tab.
func PriceKey(origin string, tabID int) string {
	return origin + "_" + strconv.Itoa(tabID)
}

// PriceLedger records commerce requests per origin and tab.
type PriceLedger struct {
	store OriginProfileStore[*PriceHistory]
}

// NewPriceLedger returns a ledger backed by store, or by a MemoryStore when store is nil.
func NewPriceLedger(store OriginProfileStore[*PriceHistory]) *PriceLedger {
	if store == nil {
		store = NewMemoryStore[*PriceHistory]()
	}
	return &PriceLedger{store: store}
}

// Record appends point to the history of origin in tab. Once the history has
// more than two points, the personalized-pricing verdict is recomputed as
// "more than three points within PricingWindow of now".
func (l *PriceLedger) Record(origin string, tabID int, point PricePoint, now time.Time) *PriceHistory {
	key := PriceKey(origin, tabID)
	history, ok := l.store.Get(key)
	if !ok {
		history = &PriceHistory{Origin: origin, TabID: tabID}
		l.store.Put(key, history)
	}

	history.PricePoints = append(history.PricePoints, point)
	if len(history.PricePoints) > MaxPricePoints {
		history.PricePoints = slices.Clone(history.PricePoints[len(history.PricePoints)-MaxPricePoints:])
	}

	if len(history.PricePoints) >= minPricePoints {
		recent := 0
		for _, p := range history.PricePoints {
			if now.Sub(p.Timestamp) < PricingWindow {
				recent++
			}
		}
		history.PersonalizedPricing = recent > personalizedThreshold
	}
	return history
}

// Get returns the history of origin in tab.
func (l *PriceLedger) Get(origin string, tabID int) (*PriceHistory, bool) {
	return l.store.Get(PriceKey(origin, tabID))
}

// Len returns the number of origin/tab histories.
func (l *PriceLedger) Len() int {
	return l.store.Len()
}

// PersonalizedCount returns how many histories are flagged as personalized pricing.
func (l *PriceLedger) PersonalizedCount() int {
	n := 0
	l.store.Range(func(_ string, h *PriceHistory) bool {
		if h.PersonalizedPricing {
			n++
		}
		return true
	})
	return n
}

// Export returns a deep copy of the ledger as key/history pairs.
func (l *PriceLedger) Export() []model.Pair[string, *PriceHistory] {
	pairs := make([]model.Pair[string, *PriceHistory], 0, l.store.Len())
	l.store.Range(func(key string, h *PriceHistory) bool {
		pairs = append(pairs, model.Pair[string, *PriceHistory]{Key: key, Value: h.clone()})
		return true
	})
	return pairs
}

// Import replaces the ledger content with pairs.
func (l *PriceLedger) Import(pairs []model.Pair[string, *PriceHistory]) {
	l.store.Clear()
	for _, pair := range pairs {
		if pair.Value == nil {
			continue
		}
		l.store.Put(pair.Key, pair.Value.clone())
	}
}

// Clear removes every history.
func (l *PriceLedger) Clear() {
	l.store.Clear()
}
