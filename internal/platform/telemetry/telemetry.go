// Package telemetry records HTTP server and intake metrics and serves them in
// the Prometheus text exposition format at /metrics.
package telemetry

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medq/medq/internal/platform/db"
	"github.com/medq/medq/pkg/models"
)

var defaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// histogram stores non-cumulative bucket counts; cumulative counts are
// computed at export time.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

func (h *histogram) Count() int64 { return atomic.LoadInt64(&h.count) }

func (h *histogram) Sum() float64 { return math.Float64frombits(atomic.LoadUint64(&h.sum)) }

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	cum := make([]int64, len(h.bucketCounts))
	var running int64
	for i, c := range h.bucketCounts {
		running += c
		cum[i] = running
	}
	return cum
}

func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(addr, old, next) {
			return
		}
	}
}

// requestKey labels a request duration series.
type requestKey struct {
	method, route, status string
}

// PoolStatter reports connection pool statistics at scrape time.
type PoolStatter func() db.PoolStats

// Provider holds every metric of one server process.
type Provider struct {
	mu       sync.RWMutex
	requests map[requestKey]*histogram
	active   int64

	eventMu sync.Mutex
	events  map[string]int64

	pool PoolStatter
}

func NewProvider(pool PoolStatter) *Provider {
	return &Provider{
		requests: make(map[requestKey]*histogram),
		events:   make(map[string]int64),
		pool:     pool,
	}
}

func (p *Provider) requestHistogram(k requestKey) *histogram {
	p.mu.RLock()
	h, ok := p.requests[k]
	p.mu.RUnlock()
	if ok {
		return h
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok = p.requests[k]; !ok {
		h = newHistogram(defaultDurationBuckets)
		p.requests[k] = h
	}
	return h
}

// Middleware records the duration of every request by method, route template
// and status code.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&p.active, 1)
			start := time.Now()

			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status is known.
				c.Error(err)
			}

			atomic.AddInt64(&p.active, -1)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			key := requestKey{c.Request().Method, route, strconv.Itoa(c.Response().Status)}
			p.requestHistogram(key).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// RecordEvent counts one intake event by type.
func (p *Provider) RecordEvent(evt models.IntakeEvent) {
	p.eventMu.Lock()
	p.events[evt.Type]++
	p.eventMu.Unlock()
}

// EventCount returns how many events of type were recorded.
func (p *Provider) EventCount(typ string) int64 {
	p.eventMu.Lock()
	defer p.eventMu.Unlock()
	return p.events[typ]
}

// Subscriber is satisfied by *notify.Hub.
type Subscriber interface {
	Subscribe() (<-chan models.IntakeEvent, func())
}

// WatchEvents counts intake events from events until ctx is done.
func (p *Provider) WatchEvents(ctx context.Context, events Subscriber) {
	ch, cancel := events.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			p.RecordEvent(evt)
		}
	}
}

// Handler serves the metrics in Prometheus text format.
func (p *Provider) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder
		p.writeRequests(&b)

		b.WriteString("# HELP http_server_active_requests Number of in-flight HTTP requests.\n")
		b.WriteString("# TYPE http_server_active_requests gauge\n")
		fmt.Fprintf(&b, "http_server_active_requests %d\n\n", atomic.LoadInt64(&p.active))

		p.writeEvents(&b)

		if p.pool != nil {
			s := p.pool()
			for _, g := range []struct {
				name, help string
				val        int64
			}{
				{"db_pool_total_connections", "Open database pool connections.", int64(s.TotalConns)},
				{"db_pool_idle_connections", "Idle database pool connections.", int64(s.IdleConns)},
				{"db_pool_acquired_connections", "Database pool connections in use.", int64(s.AcquiredConns)},
			} {
				fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", g.name, g.help, g.name, g.name, g.val)
			}
		}

		return c.Blob(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

func (p *Provider) writeRequests(b *strings.Builder) {
	const name = "http_server_request_duration_seconds"
	fmt.Fprintf(b, "# HELP %s Duration of HTTP requests in seconds.\n", name)
	fmt.Fprintf(b, "# TYPE %s histogram\n", name)

	p.mu.RLock()
	keys := make([]requestKey, 0, len(p.requests))
	for k := range p.requests {
		keys = append(keys, k)
	}
	p.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].route != keys[j].route {
			return keys[i].route < keys[j].route
		}
		if keys[i].method != keys[j].method {
			return keys[i].method < keys[j].method
		}
		return keys[i].status < keys[j].status
	})

	for _, k := range keys {
		h := p.requestHistogram(k)
		labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", k.method, k.route, k.status)
		for i, c := range h.cumulativeBuckets() {
			fmt.Fprintf(b, "%s_bucket{%s,le=%q} %d\n", name, labels, formatBound(h.boundaries[i]), c)
		}
		fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, h.Count())
		fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, h.Sum())
		fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, h.Count())
	}
	b.WriteByte('\n')
}

func (p *Provider) writeEvents(b *strings.Builder) {
	b.WriteString("# HELP medq_intake_events_total Intake events observed by type.\n")
	b.WriteString("# TYPE medq_intake_events_total counter\n")

	p.eventMu.Lock()
	types := make([]string, 0, len(p.events))
	for t := range p.events {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(b, "medq_intake_events_total{type=%q} %d\n", t, p.events[t])
	}
	p.eventMu.Unlock()
	b.WriteByte('\n')
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
