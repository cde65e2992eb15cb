package observability

import (
	"sync"
	"time"
)

// Observation is one recorded measurement. Only the fields relevant to Kind are set.
type Observation struct {
	Kind   string    `json:"kind"`
	At     time.Time `json:"at"`
	Source string    `json:"source,omitempty"`
	Method string    `json:"method,omitempty"`
	Route  string    `json:"route,omitempty"`
	Status int       `json:"status,omitempty"`
	OK     bool      `json:"ok,omitempty"`
	// CacheMs and NetMs are set for lookups, DurMs for everything else.
	CacheMs float64 `json:"cacheMs,omitempty"`
	NetMs   float64 `json:"netMs,omitempty"`
	DurMs   float64 `json:"durMs,omitempty"`
}

// Stats is a copy of the sink's counters and most recent observations.
type Stats struct {
	CacheHits   int           `json:"cacheHits"`
	CacheMisses int           `json:"cacheMisses"`
	Last        []Observation `json:"last"`
}

// Inmem keeps the last max observations in memory. It backs the debug metrics endpoint.
type Inmem struct {
	mu     sync.Mutex
	last   []Observation
	max    int
	now    func() time.Time
	totals struct {
		cacheHits, cacheMiss int
	}
}

func NewInmem(max int) *Inmem {
	return &Inmem{
		max: max,
		now: time.Now,
	}
}

func (m *Inmem) push(o Observation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.now != nil {
		o.At = m.now()
	}
	m.last = append(m.last, o)
	if len(m.last) > m.max {
		m.last = m.last[1:]
	}
}

func (m *Inmem) ObserveLookup(source string, cacheMs, netMs float64) {
	m.push(Observation{Kind: "lookup", Source: source, CacheMs: cacheMs, NetMs: netMs})
}

func (m *Inmem) ObserveUpstream(api string, status int, durMs float64) {
	m.push(Observation{Kind: "upstream", Source: api, Status: status, DurMs: durMs})
}

func (m *Inmem) ObserveHTTP(method, route string, status int, durMs float64) {
	m.push(Observation{Kind: "http", Method: method, Route: route, Status: status, DurMs: durMs})
}

func (m *Inmem) ObserveKafka(processMs float64, ok bool) {
	m.push(Observation{Kind: "kafka", DurMs: processMs, OK: ok})
}

func (m *Inmem) IncCacheHit() {
	m.mu.Lock()
	m.totals.cacheHits++
	m.mu.Unlock()
}

func (m *Inmem) IncCacheMiss() {
	m.mu.Lock()
	m.totals.cacheMiss++
	m.mu.Unlock()
}

func (m *Inmem) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		CacheHits:   m.totals.cacheHits,
		CacheMisses: m.totals.cacheMiss,
		Last:        append([]Observation{}, m.last...),
	}
}
