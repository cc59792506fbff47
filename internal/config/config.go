// Package config holds the tactical core's tuning values.
//
// Every numeric constant that shapes behaviour (LOD tiers, flanking timing,
// LOS budget/TTL) is loaded through viper so scenarios can override it from
// a config file, while the defaults reproduce the shipped balance exactly.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Tuning is the resolved, typed view of the configuration. It is built once
// by Load (or Defaults) and passed by value into constructors; nothing reads
// viper at runtime.
type Tuning struct {
	// World / spatial index.
	WorldSize       float64 // edge length of the cubic play volume
	OctreeMaxDepth  int     // hard subdivision cap
	OctreeSplitAt   int     // leaf entry count that triggers a split
	CombatantRadius float64 // bounding-sphere radius used by ray queries

	// LOD position-sync tiers. An entity closer than NearDist to the
	// reference point syncs every frame; the remaining bands sync on the
	// frame counter modulo their cadence.
	LODNearDist    float64
	LODMidDist     float64
	LODFarDist     float64
	LODNearEvery   uint64
	LODMidEvery    uint64
	LODFarEvery    uint64
	LODRemoteEvery uint64

	// Hit resolution.
	MaxEngagementRange float64
	FriendlyFire       bool

	// Visibility.
	DefaultVisualRange float64
	FOVDegrees         float64
	EyeHeight          float64
	TerrainTolerance   float64 // terrain hit must be this much closer than the target to block
	LOSCacheTTL        time.Duration
	LOSCacheSweepAt    int // cache size that triggers an expired-entry sweep
	RaycastBudget      int // per-frame occlusion raycast cap

	// Psychological pressure. Suppression and panic are 0..1 levels on each
	// combatant; fire raises them, every frame decays them.
	SuppressPerHit      float64
	SuppressPerNearMiss float64
	PanicPerHit         float64
	NearMissRadius      float64 // rounds passing closer than this suppress
	SuppressDecayPerSec float64
	PanicDecayPerSec    float64

	// Flanking.
	FlankMinMembers     int
	FlankRangeMin       float64
	FlankRangeMax       float64
	FlankDamageWindow   time.Duration // squad hit this recently => flank trigger
	FlankStallWindow    time.Duration // no hits dealt for this long => stalled trigger
	FlankTimeout        time.Duration
	FlankCasualtyAbort  int
	FlankMinSuppress    time.Duration
	FlankMinEngage      time.Duration
	FlankArrivalTol     float64
	FlankCooldown       time.Duration
	FlankLateralOffset  float64       // how far to the side flankers swing
	FlankCleanupMinimum int           // squads below this many living members get their op aborted
	FlankSuppressGoal   float64       // target suppression that ends the suppression phase
	FlankMaxSuppress    time.Duration // give up waiting for effect and maneuver anyway
	FlankPanicCap       float64       // members at or above this panic level don't count toward viability
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("world.size", 4000.0)
	v.SetDefault("octree.maxDepth", 6)
	v.SetDefault("octree.splitAt", 8)
	v.SetDefault("octree.combatantRadius", 1.0)

	v.SetDefault("lod.nearDist", 150.0)
	v.SetDefault("lod.midDist", 300.0)
	v.SetDefault("lod.farDist", 500.0)
	v.SetDefault("lod.nearEvery", 1)
	v.SetDefault("lod.midEvery", 2)
	v.SetDefault("lod.farEvery", 5)
	v.SetDefault("lod.remoteEvery", 30)

	v.SetDefault("hit.maxEngagementRange", 150.0)
	v.SetDefault("hit.friendlyFire", false)

	v.SetDefault("los.visualRange", 120.0)
	v.SetDefault("los.fovDegrees", 120.0)
	v.SetDefault("los.eyeHeight", 1.7)
	v.SetDefault("los.terrainTolerance", 1.0)
	v.SetDefault("los.cacheTTLMillis", 150)
	v.SetDefault("los.cacheSweepAt", 200)
	v.SetDefault("los.raycastBudget", 32)

	v.SetDefault("pressure.suppressPerHit", 0.45)
	v.SetDefault("pressure.suppressPerNearMiss", 0.2)
	v.SetDefault("pressure.panicPerHit", 0.3)
	v.SetDefault("pressure.nearMissRadius", 3.0)
	v.SetDefault("pressure.suppressDecayPerSec", 0.35)
	v.SetDefault("pressure.panicDecayPerSec", 0.15)

	v.SetDefault("flank.minMembers", 3)
	v.SetDefault("flank.rangeMin", 20.0)
	v.SetDefault("flank.rangeMax", 80.0)
	v.SetDefault("flank.damageWindowMillis", 3000)
	v.SetDefault("flank.stallWindowMillis", 8000)
	v.SetDefault("flank.timeoutMillis", 20000)
	v.SetDefault("flank.casualtyAbort", 2)
	v.SetDefault("flank.minSuppressMillis", 3000)
	v.SetDefault("flank.minEngageMillis", 5000)
	v.SetDefault("flank.arrivalTolerance", 3.0)
	v.SetDefault("flank.cooldownMillis", 30000)
	v.SetDefault("flank.lateralOffset", 30.0)
	v.SetDefault("flank.cleanupMinimum", 2)
	v.SetDefault("flank.suppressGoal", 0.5)
	v.SetDefault("flank.maxSuppressMillis", 8000)
	v.SetDefault("flank.panicCap", 0.8)
}

func fromViper(v *viper.Viper) Tuning {
	return Tuning{
		WorldSize:       v.GetFloat64("world.size"),
		OctreeMaxDepth:  v.GetInt("octree.maxDepth"),
		OctreeSplitAt:   v.GetInt("octree.splitAt"),
		CombatantRadius: v.GetFloat64("octree.combatantRadius"),

		LODNearDist:    v.GetFloat64("lod.nearDist"),
		LODMidDist:     v.GetFloat64("lod.midDist"),
		LODFarDist:     v.GetFloat64("lod.farDist"),
		LODNearEvery:   v.GetUint64("lod.nearEvery"),
		LODMidEvery:    v.GetUint64("lod.midEvery"),
		LODFarEvery:    v.GetUint64("lod.farEvery"),
		LODRemoteEvery: v.GetUint64("lod.remoteEvery"),

		MaxEngagementRange: v.GetFloat64("hit.maxEngagementRange"),
		FriendlyFire:       v.GetBool("hit.friendlyFire"),

		DefaultVisualRange: v.GetFloat64("los.visualRange"),
		FOVDegrees:         v.GetFloat64("los.fovDegrees"),
		EyeHeight:          v.GetFloat64("los.eyeHeight"),
		TerrainTolerance:   v.GetFloat64("los.terrainTolerance"),
		LOSCacheTTL:        time.Duration(v.GetInt("los.cacheTTLMillis")) * time.Millisecond,
		LOSCacheSweepAt:    v.GetInt("los.cacheSweepAt"),
		RaycastBudget:      v.GetInt("los.raycastBudget"),

		SuppressPerHit:      v.GetFloat64("pressure.suppressPerHit"),
		SuppressPerNearMiss: v.GetFloat64("pressure.suppressPerNearMiss"),
		PanicPerHit:         v.GetFloat64("pressure.panicPerHit"),
		NearMissRadius:      v.GetFloat64("pressure.nearMissRadius"),
		SuppressDecayPerSec: v.GetFloat64("pressure.suppressDecayPerSec"),
		PanicDecayPerSec:    v.GetFloat64("pressure.panicDecayPerSec"),

		FlankMinMembers:     v.GetInt("flank.minMembers"),
		FlankRangeMin:       v.GetFloat64("flank.rangeMin"),
		FlankRangeMax:       v.GetFloat64("flank.rangeMax"),
		FlankDamageWindow:   time.Duration(v.GetInt("flank.damageWindowMillis")) * time.Millisecond,
		FlankStallWindow:    time.Duration(v.GetInt("flank.stallWindowMillis")) * time.Millisecond,
		FlankTimeout:        time.Duration(v.GetInt("flank.timeoutMillis")) * time.Millisecond,
		FlankCasualtyAbort:  v.GetInt("flank.casualtyAbort"),
		FlankMinSuppress:    time.Duration(v.GetInt("flank.minSuppressMillis")) * time.Millisecond,
		FlankMinEngage:      time.Duration(v.GetInt("flank.minEngageMillis")) * time.Millisecond,
		FlankArrivalTol:     v.GetFloat64("flank.arrivalTolerance"),
		FlankCooldown:       time.Duration(v.GetInt("flank.cooldownMillis")) * time.Millisecond,
		FlankLateralOffset:  v.GetFloat64("flank.lateralOffset"),
		FlankCleanupMinimum: v.GetInt("flank.cleanupMinimum"),
		FlankSuppressGoal:   v.GetFloat64("flank.suppressGoal"),
		FlankMaxSuppress:    time.Duration(v.GetInt("flank.maxSuppressMillis")) * time.Millisecond,
		FlankPanicCap:       v.GetFloat64("flank.panicCap"),
	}
}

// Defaults returns the shipped tuning without touching the filesystem.
func Defaults() Tuning {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

// Load reads tactical.cfg.json from configDir on top of the defaults.
// A missing file is not an error; a malformed one is.
func Load(configDir string) (Tuning, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("tactical.cfg.json")
	v.SetConfigType("json")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Tuning{}, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return fromViper(v), nil
}
