package tactical

import "time"

// Faction identifies a side in the engagement.
type Faction int

const (
	FactionRed Faction = iota
	FactionBlue
	FactionPlayer
)

func (f Faction) String() string {
	switch f {
	case FactionRed:
		return "red"
	case FactionBlue:
		return "blue"
	case FactionPlayer:
		return "player"
	default:
		return "unknown"
	}
}

// BehaviorState is a combatant's coarse behavioural mode. It selects the hit
// zone set and feeds the flanking orchestrator's progress checks.
type BehaviorState int

const (
	StateIdle BehaviorState = iota
	StateAlert
	StateEngaging
	StateSuppressing
	StateAdvancing
	StateSeekingCover
	StateFleeing
	StateDead
)

func (s BehaviorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAlert:
		return "alert"
	case StateEngaging:
		return "engaging"
	case StateSuppressing:
		return "suppressing"
	case StateAdvancing:
		return "advancing"
	case StateSeekingCover:
		return "seeking_cover"
	case StateFleeing:
		return "fleeing"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state removes the combatant from play.
func (s BehaviorState) Terminal() bool { return s == StateDead }

// LODTier buckets a combatant by distance to the reference point. Lower
// tiers are closer and update more often.
type LODTier int

const (
	LODNear LODTier = iota
	LODMid
	LODFar
	LODRemote
)

// SquadRole is a member's job within the squad.
type SquadRole int

const (
	RoleRifleman SquadRole = iota
	RoleLeader
	RoleSupport
)

// Combatant is the live state of one mobile entity. The simulation layer
// owns these and pushes them into the World each frame; the core never
// creates or destroys them.
type Combatant struct {
	ID      string
	Pos     Vec3
	Facing  Vec3 // unit look direction
	Faction Faction
	Health  float64
	State   BehaviorState

	SquadID string
	Role    SquadRole

	// Combat timers, maintained by the consuming combat code.
	LastShot     time.Time // last trigger pull
	LastHitTaken time.Time // last time this combatant was hit
	LastHitDealt time.Time // last time this combatant scored a hit

	// Psychological pressure, 0..1 each.
	Panic       float64
	Suppression float64

	// LOD tier assigned by the grid manager during position sync.
	LOD LODTier

	// VisualRange overrides the configured default when > 0.
	VisualRange float64
}

// Alive reports whether the combatant is still in play.
func (c *Combatant) Alive() bool { return c != nil && !c.State.Terminal() }

// EyePos returns the eye-height point used for visibility rays.
func (c *Combatant) EyePos(eyeHeight float64) Vec3 {
	return Vec3{c.Pos.X, c.Pos.Y + eyeHeight, c.Pos.Z}
}

// Squad groups combatants under a leader. Member order is meaningful: it is
// the succession order and the suppressor/flanker partition order.
type Squad struct {
	ID        string
	Faction   Faction
	MemberIDs []string
	LeaderID  string
}

// Succession promotes the first living member to leader when the current
// leader is dead or missing. Returns true when leadership changed.
func (sq *Squad) Succession(lookup func(string) *Combatant) bool {
	if leader := lookup(sq.LeaderID); leader.Alive() {
		return false
	}
	for _, id := range sq.MemberIDs {
		if c := lookup(id); c.Alive() {
			if sq.LeaderID == id {
				return false
			}
			sq.LeaderID = id
			c.Role = RoleLeader
			return true
		}
	}
	return false
}

// LivingMembers returns the living members in squad order.
func (sq *Squad) LivingMembers(lookup func(string) *Combatant) []*Combatant {
	out := make([]*Combatant, 0, len(sq.MemberIDs))
	for _, id := range sq.MemberIDs {
		if c := lookup(id); c.Alive() {
			out = append(out, c)
		}
	}
	return out
}
