package observability

// Metrics receives timings from the list retrievers, the upstream client, the
// HTTP layer and the event consumer.
type Metrics interface {
	ObserveLookup(source string, cacheMs, netMs float64)
	ObserveUpstream(api string, status int, durMs float64)
	ObserveHTTP(method, route string, status int, durMs float64)
	ObserveKafka(processMs float64, ok bool)
	IncCacheHit()
	IncCacheMiss()
}

type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) ObserveLookup(string, float64, float64)   {}
func (Noop) ObserveUpstream(string, int, float64)     {}
func (Noop) ObserveHTTP(string, string, int, float64) {}
func (Noop) ObserveKafka(float64, bool)               {}
func (Noop) IncCacheHit()                             {}
func (Noop) IncCacheMiss()                            {}
