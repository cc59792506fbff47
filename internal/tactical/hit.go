package tactical

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/skirmishlab/tactical-core/internal/config"
)

// HitResult describes where a firing ray struck a combatant.
type HitResult struct {
	TargetID     string
	Region       ZoneRegion
	SurfacePoint Vec3
	Distance     float64 // ray parameter t of the zone-center projection
}

// HitResolver answers hit/miss questions against combatant hit zones,
// using the grid manager's index to find candidates.
type HitResolver struct {
	log  zerolog.Logger
	tun  config.Tuning
	grid *GridManager

	// FriendlyFire allows rays to strike same-faction combatants.
	// Default off.
	FriendlyFire bool

	now func() time.Time
}

// NewHitResolver wires a resolver to the grid manager that owns the index.
func NewHitResolver(log zerolog.Logger, tun config.Tuning, grid *GridManager) *HitResolver {
	return &HitResolver{
		log:          log.With().Str("component", "hit").Logger(),
		tun:          tun,
		grid:         grid,
		FriendlyFire: tun.FriendlyFire,
		now:          time.Now,
	}
}

// TestHit runs the single-target test: zones are checked in set order (head
// first) and the FIRST qualifying zone wins, regardless of its distance
// along the ray. A projection at exactly the zone radius counts as a hit.
// Degenerate rays fail closed.
func (h *HitResolver) TestHit(origin, dir Vec3, target *Combatant) (HitResult, bool) {
	unit, ok := dir.Normalized()
	if !ok || !origin.IsFinite() || !target.Alive() {
		return HitResult{}, false
	}
	return h.testZones(origin, unit, target)
}

// testZones expects a unit direction. Shared by single and multi-candidate
// paths; the caller decides what to do with the returned first-zone hit.
func (h *HitResolver) testZones(origin, unit Vec3, target *Combatant) (HitResult, bool) {
	for _, z := range ZonesFor(target) {
		center := target.Pos.Add(z.Offset)
		t := center.Sub(origin).Dot(unit)
		if t < 0 || t > h.tun.MaxEngagementRange {
			continue
		}
		closest := origin.Add(unit.Scale(t))
		if closest.DistSqTo(center) > z.Radius*z.Radius {
			continue
		}
		// Exact surface point: project the closest approach back onto the
		// zone sphere. When the ray passes dead through the center there is
		// no radial direction; use the reverse ray direction instead.
		normal, ok := closest.Sub(center).Normalized()
		if !ok {
			normal = unit.Scale(-1)
		}
		return HitResult{
			TargetID:     target.ID,
			Region:       z.Region,
			SurfacePoint: center.Add(normal.Scale(z.Radius)),
			Distance:     t,
		}, true
	}
	return HitResult{}, false
}

// closestZoneHit returns the minimum-t qualifying zone hit on one target.
// Used by the multi-candidate path, which ranks by distance rather than by
// zone order. The two rules differ on purpose: single-target resolution is
// head-biased, multi-candidate resolution must not let a far head zone
// outrank a near torso.
func (h *HitResolver) closestZoneHit(origin, unit Vec3, target *Combatant) (HitResult, bool) {
	best := HitResult{}
	found := false
	for _, z := range ZonesFor(target) {
		center := target.Pos.Add(z.Offset)
		t := center.Sub(origin).Dot(unit)
		if t < 0 || t > h.tun.MaxEngagementRange {
			continue
		}
		closest := origin.Add(unit.Scale(t))
		if closest.DistSqTo(center) > z.Radius*z.Radius {
			continue
		}
		if found && t >= best.Distance {
			continue
		}
		normal, ok := closest.Sub(center).Normalized()
		if !ok {
			normal = unit.Scale(-1)
		}
		best = HitResult{
			TargetID:     target.ID,
			Region:       z.Region,
			SurfacePoint: center.Add(normal.Scale(z.Radius)),
			Distance:     t,
		}
		found = true
	}
	return best, found
}

// RaycastCombatants fires a ray through the world and returns the closest
// qualifying hit across all candidates near the ray origin. Same-faction
// targets are skipped unless FriendlyFire is on; terminal-state targets are
// always skipped. lookup resolves candidate ids from the spatial index.
func (h *HitResolver) RaycastCombatants(origin, dir Vec3, shooterFaction Faction, lookup func(string) *Combatant) (HitResult, bool) {
	unit, ok := dir.Normalized()
	if !ok || !origin.IsFinite() {
		return HitResult{}, false
	}

	candidates := h.grid.QueryRadius(origin, h.tun.MaxEngagementRange)
	best := HitResult{}
	found := false
	for _, id := range candidates {
		c := lookup(id)
		if !c.Alive() {
			continue
		}
		if c.Faction == shooterFaction && !h.FriendlyFire {
			continue
		}
		res, hit := h.closestZoneHit(origin, unit, c)
		if !hit {
			continue
		}
		if !found || res.Distance < best.Distance {
			best = res
			found = true
		}
	}
	return best, found
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

// ResolveShot fires one live round: it stamps the shooter's trigger time,
// resolves the closest qualifying hit and applies the pressure bookkeeping.
// The struck combatant takes suppression and panic plus a hit timestamp;
// enemies close to the bullet path soak near-miss suppression. Friendly
// rounds cracking past do not suppress their own side.
func (h *HitResolver) ResolveShot(origin, dir Vec3, shooter *Combatant, lookup func(string) *Combatant) (HitResult, bool) {
	if !shooter.Alive() {
		return HitResult{}, false
	}
	unit, ok := dir.Normalized()
	if !ok || !origin.IsFinite() {
		return HitResult{}, false
	}
	nowT := h.now()
	shooter.LastShot = nowT

	res, hit := h.RaycastCombatants(origin, unit, shooter.Faction, lookup)

	end := origin.Add(unit.Scale(h.tun.MaxEngagementRange))
	nearSq := h.tun.NearMissRadius * h.tun.NearMissRadius
	for _, id := range h.grid.QueryRadius(origin, h.tun.MaxEngagementRange) {
		c := lookup(id)
		if !c.Alive() || c.Faction == shooter.Faction {
			continue
		}
		if hit && c.ID == res.TargetID {
			continue
		}
		if pointToSegmentDistSq(c.Pos, origin, end) <= nearSq {
			c.Suppression = clampUnit(c.Suppression + h.tun.SuppressPerNearMiss)
		}
	}

	if !hit {
		return res, false
	}
	target := lookup(res.TargetID)
	target.LastHitTaken = nowT
	target.Suppression = clampUnit(target.Suppression + h.tun.SuppressPerHit)
	target.Panic = clampUnit(target.Panic + h.tun.PanicPerHit)
	shooter.LastHitDealt = nowT
	h.log.Debug().
		Str("shooter", shooter.ID).
		Str("target", res.TargetID).
		Str("zone", res.Region.String()).
		Float64("t", res.Distance).
		Msg("shot resolved")
	return res, true
}

// CheckPlayerHit tests a firing ray against the player combatant only,
// using the player zone set via ZonesFor.
func (h *HitResolver) CheckPlayerHit(origin, dir Vec3, player *Combatant) (HitResult, bool) {
	if player == nil || player.Faction != FactionPlayer {
		return HitResult{}, false
	}
	return h.TestHit(origin, dir, player)
}
