package tactical

import (
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/skirmishlab/tactical-core/internal/config"
)

// FlankStatus is the phase of a flanking operation.
type FlankStatus int

const (
	FlankPlanning FlankStatus = iota
	FlankSuppressing
	FlankFlanking
	FlankEngaging
	FlankComplete
	FlankAborted
)

func (s FlankStatus) String() string {
	switch s {
	case FlankPlanning:
		return "planning"
	case FlankSuppressing:
		return "suppressing"
	case FlankFlanking:
		return "flanking"
	case FlankEngaging:
		return "engaging"
	case FlankComplete:
		return "complete"
	case FlankAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the operation is finished.
func (s FlankStatus) Terminal() bool { return s == FlankComplete || s == FlankAborted }

// FlankOperation is one squad's fire-and-maneuver attempt: suppressors fix
// the target while flankers swing to lateral positions, then assault.
type FlankOperation struct {
	SquadID          string
	TargetID         string
	Status           FlankStatus
	Suppressors      []string
	Flankers         []string
	Direction        Vec3 // lateral unit vector the flankers swing along
	TargetPos        Vec3
	Destinations     map[string]Vec3 // flanker id -> assigned position
	StartedAt        time.Time
	LastStatusUpdate time.Time
	CasualtiesBefore int // dead members when the operation started
	AbortReason      string
}

// FlankController runs every squad's flanking state machine. It owns the
// active-operation map and the per-squad cooldowns; squads have at most one
// active operation.
type FlankController struct {
	log    zerolog.Logger
	tun    config.Tuning
	lookup func(string) *Combatant

	ops           map[string]*FlankOperation
	cooldownUntil map[string]time.Time

	rng *rand.Rand
	now func() time.Time
}

// NewFlankController builds a controller. lookup resolves member ids to
// live combatant state and must not be nil.
func NewFlankController(log zerolog.Logger, tun config.Tuning, seed int64, lookup func(string) *Combatant) *FlankController {
	return &FlankController{
		log:           log.With().Str("component", "flank").Logger(),
		tun:           tun,
		lookup:        lookup,
		ops:           make(map[string]*FlankOperation),
		cooldownUntil: make(map[string]time.Time),
		rng:           rand.New(rand.NewSource(seed)), // #nosec G404 -- tactical jitter only
		now:           time.Now,
	}
}

// ActiveOperation returns the squad's running operation, if any.
func (f *FlankController) ActiveOperation(squadID string) (*FlankOperation, bool) {
	op, ok := f.ops[squadID]
	return op, ok
}

// ActiveCount returns the number of running operations.
func (f *FlankController) ActiveCount() int { return len(f.ops) }

func (f *FlankController) casualties(sq *Squad) int {
	return len(sq.MemberIDs) - len(sq.LivingMembers(f.lookup))
}

// steadyMembers returns the members fit to maneuver: alive and below the
// panic cap. Panicked members hold ground but count against viability.
func (f *FlankController) steadyMembers(sq *Squad) []*Combatant {
	out := make([]*Combatant, 0, len(sq.MemberIDs))
	for _, m := range sq.LivingMembers(f.lookup) {
		if m.Panic < f.tun.FlankPanicCap {
			out = append(out, m)
		}
	}
	return out
}

// ShouldInitiateFlank decides whether a squad should start a flank against
// target. tracking reports whether the squad still has a live track on the
// target (required for the stall trigger).
func (f *FlankController) ShouldInitiateFlank(sq *Squad, target *Combatant, tracking bool) bool {
	if _, busy := f.ops[sq.ID]; busy {
		return false
	}
	if until, ok := f.cooldownUntil[sq.ID]; ok && f.now().Before(until) {
		return false
	}
	if !target.Alive() {
		return false
	}
	living := sq.LivingMembers(f.lookup)
	if len(f.steadyMembers(sq)) < f.tun.FlankMinMembers {
		return false
	}
	leader := f.lookup(sq.LeaderID)
	if !leader.Alive() || leader.Panic >= f.tun.FlankPanicCap {
		return false
	}
	dist := leader.Pos.DistTo(target.Pos)
	if dist < f.tun.FlankRangeMin || dist > f.tun.FlankRangeMax {
		return false
	}

	nowT := f.now()

	// Trigger 1: the squad took damage recently, answer with maneuver.
	for _, m := range living {
		if !m.LastHitTaken.IsZero() && nowT.Sub(m.LastHitTaken) <= f.tun.FlankDamageWindow {
			return true
		}
	}

	// Trigger 2: stalled engagement. The squad is firing and tracking but
	// has not scored in the stall window; a never-scored engagement counts
	// as stalled too.
	if tracking {
		var lastDealt, lastShot time.Time
		for _, m := range living {
			if m.LastHitDealt.After(lastDealt) {
				lastDealt = m.LastHitDealt
			}
			if m.LastShot.After(lastShot) {
				lastShot = m.LastShot
			}
		}
		if !lastShot.IsZero() && nowT.Sub(lastDealt) > f.tun.FlankStallWindow {
			return true
		}
	}

	return false
}

// InitiateFlank creates the operation, or returns nil when the squad
// cannot support one. The squad's cooldown is stamped immediately, so even
// an operation that aborts seconds later costs the full cooldown.
func (f *FlankController) InitiateFlank(sq *Squad, target *Combatant) *FlankOperation {
	if _, busy := f.ops[sq.ID]; busy {
		return nil
	}
	if !target.Alive() {
		return nil
	}
	steady := f.steadyMembers(sq)
	if len(steady) < f.tun.FlankMinMembers {
		return nil
	}
	leader := f.lookup(sq.LeaderID)
	if !leader.Alive() || leader.Panic >= f.tun.FlankPanicCap {
		return nil
	}

	nowT := f.now()
	f.cooldownUntil[sq.ID] = nowT.Add(f.tun.FlankCooldown)
	targetPos := target.Pos

	// Flank direction: perpendicular to the leader->target axis on the
	// ground plane, side chosen at random.
	axis, ok := Vec3{X: targetPos.X - leader.Pos.X, Z: targetPos.Z - leader.Pos.Z}.Normalized()
	if !ok {
		axis = Vec3{X: 1}
	}
	lateral := Vec3{X: -axis.Z, Z: axis.X}
	if f.rng.Intn(2) == 0 {
		lateral = lateral.Scale(-1)
	}

	// Partition: the leader anchors the suppression element; steady members
	// alternate so roughly half maneuver.
	op := &FlankOperation{
		SquadID:          sq.ID,
		TargetID:         target.ID,
		Status:           FlankPlanning,
		Direction:        lateral,
		TargetPos:        targetPos,
		Destinations:     make(map[string]Vec3),
		StartedAt:        nowT,
		LastStatusUpdate: nowT,
		CasualtiesBefore: f.casualties(sq),
	}
	idx := 0
	for _, m := range steady {
		if m.ID == leader.ID || idx%2 == 0 {
			op.Suppressors = append(op.Suppressors, m.ID)
		} else {
			op.Flankers = append(op.Flankers, m.ID)
		}
		if m.ID != leader.ID {
			idx++
		}
	}
	for i, id := range op.Flankers {
		// Stagger flankers along the approach axis so they don't stack.
		dest := targetPos.Add(lateral.Scale(f.tun.FlankLateralOffset)).Sub(axis.Scale(float64(i) * 4))
		op.Destinations[id] = dest
	}

	f.ops[sq.ID] = op
	f.log.Info().
		Str("squad", sq.ID).
		Int("suppressors", len(op.Suppressors)).
		Int("flankers", len(op.Flankers)).
		Msg("flank initiated")
	return op
}

// transition moves the operation to next and refreshes the status clock.
func (f *FlankController) transition(op *FlankOperation, next FlankStatus) {
	f.log.Debug().
		Str("squad", op.SquadID).
		Str("from", op.Status.String()).
		Str("to", next.String()).
		Msg("flank transition")
	op.Status = next
	op.LastStatusUpdate = f.now()
	if next.Terminal() {
		delete(f.ops, op.SquadID)
	}
}

func (f *FlankController) abort(op *FlankOperation, reason string) {
	op.AbortReason = reason
	f.log.Info().Str("squad", op.SquadID).Str("reason", reason).Msg("flank aborted")
	f.transition(op, FlankAborted)
}

// UpdateFlankingOperation advances one squad's operation by a tick. The
// checks run in a fixed order: abort guards first, then the phase
// progression. Returns the status after the tick; squads with no active
// operation report FlankComplete.
func (f *FlankController) UpdateFlankingOperation(sq *Squad) FlankStatus {
	op, ok := f.ops[sq.ID]
	if !ok {
		return FlankComplete
	}
	nowT := f.now()

	// (a) Abort guards: overall timeout, then casualty pressure.
	if nowT.Sub(op.StartedAt) > f.tun.FlankTimeout {
		f.abort(op, "timeout")
		return op.Status
	}
	if f.casualties(sq)-op.CasualtiesBefore > f.tun.FlankCasualtyAbort {
		f.abort(op, "casualties")
		return op.Status
	}

	switch op.Status {
	case FlankPlanning:
		// (b) First tick commits the plan and starts suppression.
		f.assignRoles(op)
		f.transition(op, FlankSuppressing)

	case FlankSuppressing:
		// (c) Hold suppression for its minimum duration, then maneuver once
		// the base of fire is actually working. A target that never breaks
		// doesn't stall the operation past the max suppress window.
		held := nowT.Sub(op.LastStatusUpdate)
		if held < f.tun.FlankMinSuppress {
			break
		}
		if f.suppressionEffective(op) || held >= f.tun.FlankMaxSuppress {
			f.transition(op, FlankFlanking)
		}

	case FlankFlanking:
		// (d) Wait for every living flanker to reach its assigned position.
		if f.flankersArrived(op) {
			for _, id := range op.Flankers {
				if c := f.lookup(id); c.Alive() {
					c.State = StateEngaging
				}
			}
			f.transition(op, FlankEngaging)
		}

	case FlankEngaging:
		// (e) Sustain the assault for its minimum duration, then done.
		if nowT.Sub(op.LastStatusUpdate) >= f.tun.FlankMinEngage {
			f.transition(op, FlankComplete)
		}
	}

	return op.Status
}

// suppressionEffective reports whether the base of fire has done its job:
// the target is pinned at or above the suppression goal, or is no longer a
// factor at all.
func (f *FlankController) suppressionEffective(op *FlankOperation) bool {
	target := f.lookup(op.TargetID)
	if !target.Alive() {
		return true
	}
	return target.Suppression >= f.tun.FlankSuppressGoal
}

// assignRoles pushes the operation's roles into member behavioural state.
func (f *FlankController) assignRoles(op *FlankOperation) {
	for _, id := range op.Suppressors {
		if c := f.lookup(id); c.Alive() {
			c.State = StateSuppressing
		}
	}
	for _, id := range op.Flankers {
		if c := f.lookup(id); c.Alive() {
			c.State = StateAdvancing
		}
	}
}

// flankersArrived reports whether every living flanker is within the
// arrival tolerance of its destination. Dead flankers don't hold up the
// maneuver; the casualty guard handles losses.
func (f *FlankController) flankersArrived(op *FlankOperation) bool {
	tol := f.tun.FlankArrivalTol
	for _, id := range op.Flankers {
		c := f.lookup(id)
		if !c.Alive() {
			continue
		}
		dest, ok := op.Destinations[id]
		if !ok {
			continue
		}
		if c.Pos.DistTo(dest) > tol {
			return false
		}
	}
	return true
}

// CleanupOperations sweeps operations whose squad is gone or has bled out
// below the continuation minimum. Called periodically by the frame loop.
func (f *FlankController) CleanupOperations(squadLookup func(string) *Squad) {
	for id, op := range f.ops {
		sq := squadLookup(id)
		if sq == nil {
			f.abort(op, "squad missing")
			continue
		}
		if len(sq.LivingMembers(f.lookup)) < f.tun.FlankCleanupMinimum {
			f.abort(op, "squad depleted")
		}
	}
}

// OnCooldown reports whether the squad's flank cooldown is still running.
func (f *FlankController) OnCooldown(squadID string) bool {
	until, ok := f.cooldownUntil[squadID]
	return ok && f.now().Before(until)
}
