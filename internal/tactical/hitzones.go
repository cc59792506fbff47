package tactical

// ZoneRegion classifies where on the body a hit landed.
type ZoneRegion int

const (
	ZoneHead ZoneRegion = iota
	ZoneTorso
	ZonePelvis
	ZoneLegs
)

func (z ZoneRegion) String() string {
	switch z {
	case ZoneHead:
		return "head"
	case ZoneTorso:
		return "torso"
	case ZonePelvis:
		return "pelvis"
	case ZoneLegs:
		return "legs"
	default:
		return "unknown"
	}
}

// HitZone is a sphere relative to the combatant's anchor (feet). Zone sets
// are immutable configuration; iteration order is meaningful (head first)
// and must not change, single-target resolution depends on it.
type HitZone struct {
	Offset Vec3
	Radius float64
	Region ZoneRegion
}

// Zone sets per behavioural posture. Alert and engaging combatants crouch,
// shrinking and lowering the spheres; the player's silhouette is slightly
// generous to keep shots against the player feeling fair.
var (
	zonesDefault = []HitZone{
		{Offset: Vec3{0, 1.65, 0}, Radius: 0.22, Region: ZoneHead},
		{Offset: Vec3{0, 1.20, 0}, Radius: 0.42, Region: ZoneTorso},
		{Offset: Vec3{0, 0.85, 0}, Radius: 0.32, Region: ZonePelvis},
		{Offset: Vec3{0, 0.40, 0}, Radius: 0.38, Region: ZoneLegs},
	}
	zonesAlert = []HitZone{
		{Offset: Vec3{0, 1.45, 0}, Radius: 0.22, Region: ZoneHead},
		{Offset: Vec3{0, 1.05, 0}, Radius: 0.40, Region: ZoneTorso},
		{Offset: Vec3{0, 0.72, 0}, Radius: 0.30, Region: ZonePelvis},
		{Offset: Vec3{0, 0.35, 0}, Radius: 0.34, Region: ZoneLegs},
	}
	zonesEngaging = []HitZone{
		{Offset: Vec3{0, 1.25, 0}, Radius: 0.20, Region: ZoneHead},
		{Offset: Vec3{0, 0.90, 0}, Radius: 0.36, Region: ZoneTorso},
		{Offset: Vec3{0, 0.62, 0}, Radius: 0.28, Region: ZonePelvis},
		{Offset: Vec3{0, 0.30, 0}, Radius: 0.30, Region: ZoneLegs},
	}
	zonesPlayer = []HitZone{
		{Offset: Vec3{0, 1.65, 0}, Radius: 0.26, Region: ZoneHead},
		{Offset: Vec3{0, 1.20, 0}, Radius: 0.46, Region: ZoneTorso},
		{Offset: Vec3{0, 0.85, 0}, Radius: 0.36, Region: ZonePelvis},
		{Offset: Vec3{0, 0.40, 0}, Radius: 0.42, Region: ZoneLegs},
	}
)

// ZonesFor selects the zone set for a combatant's current posture.
func ZonesFor(c *Combatant) []HitZone {
	if c.Faction == FactionPlayer {
		return zonesPlayer
	}
	switch c.State {
	case StateEngaging, StateSuppressing:
		return zonesEngaging
	case StateAlert, StateSeekingCover, StateAdvancing:
		return zonesAlert
	default:
		return zonesDefault
	}
}
