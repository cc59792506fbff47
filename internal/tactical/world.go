package tactical

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/skirmishlab/tactical-core/internal/config"
	"github.com/skirmishlab/tactical-core/internal/telemetry"
)

// World wires the tactical services together and owns the frame ordering:
// BeginFrame resets the shared raycast budget and the grid's per-frame
// counters, position syncs happen before queries, and the flank controller
// ticks last. Everything is synchronous; the surrounding loop drives it.
//
// The world is an explicitly constructed, injected value. There is no
// package-level instance.
type World struct {
	log zerolog.Logger
	tun config.Tuning
	tel *telemetry.Sink

	Grid       *GridManager
	Visibility *VisibilityService
	Hits       *HitResolver
	Flanks     *FlankController

	budget RaycastBudget

	combatants map[string]*Combatant
	squads     map[string]*Squad
}

// NewWorld builds a fully wired world. tel may be nil (counters no-op).
func NewWorld(log zerolog.Logger, tun config.Tuning, tel *telemetry.Sink, seed int64) *World {
	w := &World{
		log:        log,
		tun:        tun,
		tel:        tel,
		combatants: make(map[string]*Combatant),
		squads:     make(map[string]*Squad),
	}
	w.Grid = NewGridManager(log, tun, tel)
	w.Visibility = NewVisibilityService(log, tun, tel, &w.budget)
	w.Hits = NewHitResolver(log, tun, w.Grid)
	w.Flanks = NewFlankController(log, tun, seed, w.Combatant)
	return w
}

// Combatant resolves an id to its live state, nil when unknown.
func (w *World) Combatant(id string) *Combatant {
	return w.combatants[id]
}

// Squad resolves a squad id, nil when unknown.
func (w *World) Squad(id string) *Squad {
	return w.squads[id]
}

// AddCombatant registers a combatant with the world. The caller retains
// ownership of the struct; the core reads and updates it in place.
func (w *World) AddCombatant(c *Combatant) {
	w.combatants[c.ID] = c
}

// AddSquad registers a squad.
func (w *World) AddSquad(sq *Squad) {
	w.squads[sq.ID] = sq
}

// CombatantIDs returns all registered ids in sorted order, for
// deterministic iteration.
func (w *World) CombatantIDs() []string {
	ids := make([]string, 0, len(w.combatants))
	for id := range w.combatants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SquadIDs returns all squad ids in sorted order.
func (w *World) SquadIDs() []string {
	ids := make([]string, 0, len(w.squads))
	for id := range w.squads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BeginFrame must run exactly once per frame before any sync or query: it
// refills the shared raycast budget and resets the grid's frame counters.
func (w *World) BeginFrame() {
	w.budget.Reset(w.tun.RaycastBudget)
	w.Grid.BeginFrame()
}

// RaycastBudgetRemaining exposes the unconsumed budget for diagnostics.
func (w *World) RaycastBudgetRemaining() int { return w.budget.Remaining() }

// SyncPositions pushes every registered combatant through the grid's
// LOD-throttled sync, with referencePoint (usually the player or camera)
// selecting tiers. Each combatant's LOD tier is refreshed here so later
// visibility checks budget correctly.
func (w *World) SyncPositions(referencePoint Vec3) int {
	feed := make([]EntityState, 0, len(w.combatants))
	for _, id := range w.CombatantIDs() {
		c := w.combatants[id]
		c.LOD = w.Grid.lodTier(c.Pos.DistTo(referencePoint))
		feed = append(feed, EntityState{ID: c.ID, Pos: c.Pos, State: c.State})
	}
	return w.Grid.SyncAllPositions(feed, referencePoint)
}

// TickFlanks runs succession and the flank state machine for every squad,
// then sweeps dead operations.
func (w *World) TickFlanks() {
	for _, id := range w.SquadIDs() {
		sq := w.squads[id]
		if _, active := w.Flanks.ActiveOperation(sq.ID); !active {
			// Succession only runs between operations; during one, the
			// casualty guard owns leader-loss handling.
			if sq.Succession(w.Combatant) {
				w.log.Info().Str("squad", sq.ID).Str("leader", sq.LeaderID).Msg("squad leadership changed")
			}
			continue
		}
		w.Flanks.UpdateFlankingOperation(sq)
	}
	w.Flanks.CleanupOperations(w.Squad)
}

// Telemetry returns a snapshot of the local telemetry counters.
func (w *World) Telemetry() telemetry.Counters {
	return w.tel.Snapshot()
}

// DecayPressure relaxes panic and suppression on every living combatant.
// dt is the frame delta. Fire raises these levels through
// HitResolver.ResolveShot; this is the settling half.
func (w *World) DecayPressure(dt time.Duration) {
	k := dt.Seconds()
	for _, c := range w.combatants {
		if !c.Alive() {
			continue
		}
		c.Suppression -= w.tun.SuppressDecayPerSec * k
		if c.Suppression < 0 {
			c.Suppression = 0
		}
		c.Panic -= w.tun.PanicDecayPerSec * k
		if c.Panic < 0 {
			c.Panic = 0
		}
	}
}
