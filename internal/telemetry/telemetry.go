// Package telemetry exposes the core's health counters through OpenTelemetry
// metrics while keeping a synchronously-readable local snapshot. The core is
// single-threaded and frame-driven; the snapshot is what tests and the
// report binaries read, the OTel instruments are what an operator scrapes.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/skirmishlab/tactical-core/internal/telemetry"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Counters is a point-in-time copy of the local counters.
type Counters struct {
	GridFallbacks  int64 // queries issued before grid initialization
	CacheHits      int64 // LOS cache hits within TTL
	CacheMisses    int64 // LOS cache misses (full evaluation or budget path)
	BudgetDenials  int64 // LOS evaluations refused by the raycast budget
	TerrainRays    int64 // terrain raycasts actually performed
	LatencySamples int64 // spatial query latency samples recorded
}

// Sink records the core's telemetry events. Every event lands in both the
// local counter and its OTel instrument.
type Sink struct {
	counters Counters

	fallbacks    metric.Int64Counter
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
	denials      metric.Int64Counter
	terrainRays  metric.Int64Counter
	queryLatency metric.Float64Histogram
}

// NewSink builds a sink on the globally registered meter provider. With no
// provider configured the instruments are no-ops and only the local
// counters accumulate.
func NewSink() (*Sink, error) {
	m := meter()
	s := &Sink{}
	var err error

	s.fallbacks, err = m.Int64Counter(
		"tactical.grid.fallbacks",
		metric.WithDescription("Spatial queries degraded because the grid was not initialized"))
	if err != nil {
		return nil, err
	}
	s.cacheHits, err = m.Int64Counter(
		"tactical.los.cache_hits",
		metric.WithDescription("LOS cache hits within TTL"))
	if err != nil {
		return nil, err
	}
	s.cacheMisses, err = m.Int64Counter(
		"tactical.los.cache_misses",
		metric.WithDescription("LOS cache misses"))
	if err != nil {
		return nil, err
	}
	s.denials, err = m.Int64Counter(
		"tactical.los.budget_denials",
		metric.WithDescription("LOS evaluations denied by the per-frame raycast budget"))
	if err != nil {
		return nil, err
	}
	s.terrainRays, err = m.Int64Counter(
		"tactical.los.terrain_raycasts",
		metric.WithDescription("Terrain occlusion raycasts performed"))
	if err != nil {
		return nil, err
	}
	s.queryLatency, err = m.Float64Histogram(
		"tactical.grid.query_latency_us",
		metric.WithDescription("Spatial query latency in microseconds"),
		metric.WithUnit("us"))
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GridFallback records a query that degraded to an empty result because the
// grid manager had not been initialized. site names the calling operation.
func (s *Sink) GridFallback(site string) {
	if s == nil {
		return
	}
	s.counters.GridFallbacks++
	s.fallbacks.Add(context.Background(), 1, metric.WithAttributes(attribute.String("site", site)))
}

// CacheHit records an LOS cache hit.
func (s *Sink) CacheHit() {
	if s == nil {
		return
	}
	s.counters.CacheHits++
	s.cacheHits.Add(context.Background(), 1)
}

// CacheMiss records an LOS cache miss.
func (s *Sink) CacheMiss() {
	if s == nil {
		return
	}
	s.counters.CacheMisses++
	s.cacheMisses.Add(context.Background(), 1)
}

// BudgetDenial records an occlusion evaluation refused by the frame budget.
func (s *Sink) BudgetDenial() {
	if s == nil {
		return
	}
	s.counters.BudgetDenials++
	s.denials.Add(context.Background(), 1)
}

// TerrainRay records one terrain raycast actually performed.
func (s *Sink) TerrainRay() {
	if s == nil {
		return
	}
	s.counters.TerrainRays++
	s.terrainRays.Add(context.Background(), 1)
}

// QueryLatency records one spatial query latency sample, in microseconds.
func (s *Sink) QueryLatency(op string, micros float64) {
	if s == nil {
		return
	}
	s.counters.LatencySamples++
	s.queryLatency.Record(context.Background(), micros,
		metric.WithAttributes(attribute.String("op", op)))
}

// Snapshot returns a copy of the local counters. Safe on a nil sink.
func (s *Sink) Snapshot() Counters {
	if s == nil {
		return Counters{}
	}
	return s.counters
}
