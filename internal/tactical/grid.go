package tactical

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/skirmishlab/tactical-core/internal/config"
	"github.com/skirmishlab/tactical-core/internal/telemetry"
)

// latencyWindowSize is the rolling sample count for query latency averages.
const latencyWindowSize = 100

// latencyWindow is a fixed-size ring of query latency samples.
type latencyWindow struct {
	samples [latencyWindowSize]float64 // microseconds
	next    int
	count   int
}

func (w *latencyWindow) add(micros float64) {
	w.samples[w.next] = micros
	w.next = (w.next + 1) % latencyWindowSize
	if w.count < latencyWindowSize {
		w.count++
	}
}

// Average returns the mean of the recorded samples, 0 when empty.
func (w *latencyWindow) Average() float64 {
	if w.count == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < w.count; i++ {
		sum += w.samples[i]
	}
	return sum / float64(w.count)
}

// EntityState is one row of the per-frame position feed.
type EntityState struct {
	ID    string
	Pos   Vec3
	State BehaviorState
}

// GridManager owns the lifecycle of one spatial index. Nothing else mutates
// the octree. Calls before Initialize degrade to empty results, count a
// fallback and log once per call-site; they never panic and never pretend
// stale data is fresh.
type GridManager struct {
	log zerolog.Logger
	tun config.Tuning
	tel *telemetry.Sink

	tree        *Octree
	initialized bool
	worldSize   float64
	rebuiltAt   time.Time

	frame            uint64 // monotonically incrementing, driven by BeginFrame
	queriesThisFrame int
	fallbackCount    int
	warnedSites      map[string]bool

	latency latencyWindow
}

// NewGridManager builds an uninitialized manager. Initialize must be called
// before any sync or query.
func NewGridManager(log zerolog.Logger, tun config.Tuning, tel *telemetry.Sink) *GridManager {
	return &GridManager{
		log:         log.With().Str("component", "grid").Logger(),
		tun:         tun,
		tel:         tel,
		warnedSites: map[string]bool{},
	}
}

// Initialize builds the index for a cubic world of edge worldSize. Calling
// it again with the same size is a no-op: same entity count, same rebuild
// timestamp.
func (g *GridManager) Initialize(worldSize float64) {
	if g.initialized && g.worldSize == worldSize {
		return
	}
	g.rebuild(worldSize)
}

// Reinitialize forces a rebuild; the entity count resets to zero.
func (g *GridManager) Reinitialize(worldSize float64) {
	g.rebuild(worldSize)
}

func (g *GridManager) rebuild(worldSize float64) {
	g.tree = NewOctree(worldSize, g.tun.OctreeMaxDepth, g.tun.OctreeSplitAt, g.tun.CombatantRadius)
	g.initialized = true
	g.worldSize = worldSize
	g.rebuiltAt = time.Now()
	g.log.Info().Float64("world_size", worldSize).Msg("spatial index built")
}

// Initialized reports whether the index exists.
func (g *GridManager) Initialized() bool { return g.initialized }

// RebuiltAt returns the timestamp of the last (re)build.
func (g *GridManager) RebuiltAt() time.Time { return g.rebuiltAt }

// EntityCount returns the number of mapped entities, 0 before Initialize.
func (g *GridManager) EntityCount() int {
	if !g.initialized {
		return 0
	}
	return g.tree.Len()
}

// BeginFrame advances the frame counter and resets the per-frame query
// counter. The surrounding loop must call this exactly once per frame,
// before any sync or query of that frame.
func (g *GridManager) BeginFrame() {
	g.frame++
	g.queriesThisFrame = 0
}

// Frame returns the current frame number.
func (g *GridManager) Frame() uint64 { return g.frame }

// QueriesThisFrame returns the number of queries since the last BeginFrame.
func (g *GridManager) QueriesThisFrame() int { return g.queriesThisFrame }

// FallbackCount returns how many calls degraded because the index was not
// initialized.
func (g *GridManager) FallbackCount() int { return g.fallbackCount }

// AverageQueryLatency returns the rolling mean query latency in microseconds
// over the last hundred samples.
func (g *GridManager) AverageQueryLatency() float64 { return g.latency.Average() }

// fallback records a degraded call and logs it once per call-site.
func (g *GridManager) fallback(site string) {
	g.fallbackCount++
	g.tel.GridFallback(site)
	if !g.warnedSites[site] {
		g.warnedSites[site] = true
		g.log.Warn().Str("site", site).Msg("spatial query before initialization, returning empty result")
	}
}

// lodTier buckets dist into an update tier.
func (g *GridManager) lodTier(dist float64) LODTier {
	switch {
	case dist < g.tun.LODNearDist:
		return LODNear
	case dist < g.tun.LODMidDist:
		return LODMid
	case dist < g.tun.LODFarDist:
		return LODFar
	default:
		return LODRemote
	}
}

// tierDue reports whether the tier updates on the current frame.
func (g *GridManager) tierDue(tier LODTier) bool {
	var every uint64
	switch tier {
	case LODNear:
		every = g.tun.LODNearEvery
	case LODMid:
		every = g.tun.LODMidEvery
	case LODFar:
		every = g.tun.LODFarEvery
	default:
		every = g.tun.LODRemoteEvery
	}
	if every <= 1 {
		return true
	}
	return g.frame%every == 0
}

// SyncAllPositions pushes the frame's position feed into the index. Each
// entity's distance to referencePoint selects its LOD tier; only tiers due
// on this frame are written. Terminal-state entities are removed instead.
// Returns the number of positions written.
func (g *GridManager) SyncAllPositions(entities []EntityState, referencePoint Vec3) int {
	if !g.initialized {
		g.fallback("sync_all")
		return 0
	}
	updated := 0
	for _, e := range entities {
		if e.State.Terminal() {
			g.tree.Remove(e.ID)
			continue
		}
		tier := g.lodTier(e.Pos.DistTo(referencePoint))
		if !g.tierDue(tier) && g.tree.Contains(e.ID) {
			continue
		}
		g.tree.InsertOrUpdate(e.ID, e.Pos)
		updated++
	}
	return updated
}

// SyncEntity writes one position immediately, bypassing the LOD tiers.
func (g *GridManager) SyncEntity(id string, pos Vec3) {
	if !g.initialized {
		g.fallback("sync_entity")
		return
	}
	g.tree.InsertOrUpdate(id, pos)
}

// RemoveEntity drops an entity from the index.
func (g *GridManager) RemoveEntity(id string) {
	if !g.initialized {
		g.fallback("remove_entity")
		return
	}
	g.tree.Remove(id)
}

// Clear removes every entity but keeps the index alive.
func (g *GridManager) Clear() {
	if !g.initialized {
		g.fallback("clear")
		return
	}
	g.tree = NewOctree(g.worldSize, g.tun.OctreeMaxDepth, g.tun.OctreeSplitAt, g.tun.CombatantRadius)
}

// instrument wraps one query: per-frame counter, rolling latency window and
// the telemetry histogram.
func (g *GridManager) instrument(op string, start time.Time) {
	g.queriesThisFrame++
	micros := float64(time.Since(start).Nanoseconds()) / 1e3
	g.latency.add(micros)
	g.tel.QueryLatency(op, micros)
}

// QueryRadius returns exactly the ids within the closed ball (center, r).
func (g *GridManager) QueryRadius(center Vec3, r float64) []string {
	if !g.initialized {
		g.fallback("query_radius")
		return nil
	}
	start := time.Now()
	defer g.instrument("radius", start)
	return g.tree.QueryRadius(center, r)
}

// QueryNearestK returns up to k ids within maxDistance, ascending distance.
func (g *GridManager) QueryNearestK(center Vec3, k int, maxDistance float64) []string {
	if !g.initialized {
		g.fallback("query_nearest_k")
		return nil
	}
	start := time.Now()
	defer g.instrument("nearest_k", start)
	return g.tree.QueryNearestK(center, k, maxDistance)
}

// QueryRay returns ids whose bounding sphere intersects the segment.
func (g *GridManager) QueryRay(origin, dir Vec3, maxDistance float64) []string {
	if !g.initialized {
		g.fallback("query_ray")
		return nil
	}
	start := time.Now()
	defer g.instrument("ray", start)
	return g.tree.QueryRay(origin, dir, maxDistance)
}

// Stats exposes the index shape, zero-valued before initialization.
func (g *GridManager) Stats() OctreeStats {
	if !g.initialized {
		g.fallback("stats")
		return OctreeStats{}
	}
	return g.tree.Stats()
}
