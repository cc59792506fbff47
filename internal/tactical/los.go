package tactical

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/skirmishlab/tactical-core/internal/config"
	"github.com/skirmishlab/tactical-core/internal/telemetry"
)

// TerrainSampler is the terrain collaborator. Implementations live outside
// the core (terrain generation is asynchronous elsewhere); the core only
// ever calls these synchronous accessors.
type TerrainSampler interface {
	HeightAt(x, z float64) float64
	// RaycastTerrain returns whether the ray hits terrain within maxDistance
	// and at what distance.
	RaycastTerrain(origin, dir Vec3, maxDistance float64) (bool, float64)
}

// ObstructionSet supplies static occluder boxes (buildings, wrecks).
type ObstructionSet interface {
	Boxes() []AABB
}

// ObscurantField reports area obscurants (smoke, foliage volumes).
type ObscurantField interface {
	IsLineBlocked(a, b Vec3) bool
}

// RaycastBudget is the shared per-frame cap on occlusion raycasts. The
// frame loop resets it once per frame; visibility instances consume it.
type RaycastBudget struct {
	remaining int
}

// Reset refills the budget. Called once per frame.
func (b *RaycastBudget) Reset(n int) { b.remaining = n }

// Remaining returns the unconsumed units.
func (b *RaycastBudget) Remaining() int { return b.remaining }

// TryConsume takes one unit, reporting false when exhausted.
func (b *RaycastBudget) TryConsume() bool {
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

type losKey struct {
	source, target string
}

type losEntry struct {
	visible bool
	at      time.Time
}

// VisibilityService answers can-see questions through an ordered,
// short-circuiting pipeline: range, field of view, TTL cache, budget gate,
// then the full occlusion evaluation (terrain, static boxes, obscurants).
// Each instance owns its own cache; instances share only the frame budget.
type VisibilityService struct {
	log    zerolog.Logger
	tun    config.Tuning
	tel    *telemetry.Sink
	budget *RaycastBudget

	// Optional collaborators; a nil collaborator skips its stage
	// (reduced-fidelity operation).
	terrain      TerrainSampler
	obstructions ObstructionSet
	obscurants   ObscurantField

	cache map[losKey]losEntry
	now   func() time.Time
}

// NewVisibilityService builds a service around a shared frame budget.
func NewVisibilityService(log zerolog.Logger, tun config.Tuning, tel *telemetry.Sink, budget *RaycastBudget) *VisibilityService {
	return &VisibilityService{
		log:    log.With().Str("component", "los").Logger(),
		tun:    tun,
		tel:    tel,
		budget: budget,
		cache:  make(map[losKey]losEntry),
		now:    time.Now,
	}
}

// SetTerrain installs the terrain collaborator.
func (v *VisibilityService) SetTerrain(t TerrainSampler) { v.terrain = t }

// SetObstructions installs the static occluder collaborator.
func (v *VisibilityService) SetObstructions(o ObstructionSet) { v.obstructions = o }

// SetObscurants installs the area obscurant collaborator.
func (v *VisibilityService) SetObscurants(o ObscurantField) { v.obscurants = o }

// CacheSize returns the live cache entry count.
func (v *VisibilityService) CacheSize() int { return len(v.cache) }

// CanSeeTarget reports whether source currently sees target.
func (v *VisibilityService) CanSeeTarget(source, target *Combatant) bool {
	if !source.Alive() || target == nil || source.ID == target.ID {
		return false
	}

	// Stage 1: range.
	visualRange := source.VisualRange
	if visualRange <= 0 {
		visualRange = v.tun.DefaultVisualRange
	}
	distSq := source.Pos.DistSqTo(target.Pos)
	if distSq > visualRange*visualRange {
		return false
	}

	// Stage 2: field of view. Degenerate geometry fails closed.
	toTarget, ok := target.Pos.Sub(source.Pos).Normalized()
	if !ok {
		return false
	}
	facing, ok := source.Facing.Normalized()
	if !ok {
		return false
	}
	halfFOV := v.tun.FOVDegrees * math.Pi / 360.0
	cos := facing.Dot(toTarget)
	if cos < -1 {
		cos = -1
	} else if cos > 1 {
		cos = 1
	}
	if math.Acos(cos) > halfFOV {
		return false
	}

	// Stage 3: cache within TTL.
	key := losKey{source: source.ID, target: target.ID}
	nowT := v.now()
	if e, hit := v.cache[key]; hit && nowT.Sub(e.at) <= v.tun.LOSCacheTTL {
		v.tel.CacheHit()
		return e.visible
	}
	v.tel.CacheMiss()

	// Stage 4: budget gate. Only the two highest LOD tiers pay for the
	// expensive evaluation; remote entities evaluate so rarely that they
	// ride outside the budget.
	if source.LOD <= LODMid && !v.budget.TryConsume() {
		v.tel.BudgetDenial()
		if e, hasStale := v.cache[key]; hasStale {
			return e.visible
		}
		return false // conservative: unseen until affordable
	}

	// Stage 5: full occlusion evaluation.
	visible := v.evaluateOcclusion(source, target)

	// Stage 6: cache write, plus an opportunistic expired sweep once the
	// cache grows past the sweep threshold.
	v.cache[key] = losEntry{visible: visible, at: nowT}
	if len(v.cache) > v.tun.LOSCacheSweepAt {
		for k, e := range v.cache {
			if nowT.Sub(e.at) > v.tun.LOSCacheTTL {
				delete(v.cache, k)
			}
		}
	}
	return visible
}

// evaluateOcclusion runs the three occlusion stages eye-to-eye. Any stage
// that blocks short-circuits to not-visible.
func (v *VisibilityService) evaluateOcclusion(source, target *Combatant) bool {
	eyeSrc := source.EyePos(v.tun.EyeHeight)
	eyeDst := target.EyePos(v.tun.EyeHeight)
	span := eyeDst.Sub(eyeSrc)
	targetDist := span.Length()
	unit, ok := span.Normalized()
	if !ok {
		return false
	}

	if v.terrain != nil {
		v.tel.TerrainRay()
		if hit, d := v.terrain.RaycastTerrain(eyeSrc, unit, targetDist); hit && d < targetDist-v.tun.TerrainTolerance {
			return false
		}
	}

	if v.obstructions != nil {
		for _, box := range v.obstructions.Boxes() {
			if t, hit := box.segmentHitT(eyeSrc, eyeDst); hit && t*targetDist < targetDist-v.tun.TerrainTolerance {
				return false
			}
		}
	}

	if v.obscurants != nil && v.obscurants.IsLineBlocked(eyeSrc, eyeDst) {
		return false
	}

	return true
}
