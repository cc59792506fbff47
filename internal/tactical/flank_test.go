package tactical

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/skirmishlab/tactical-core/internal/config"
)

type flankFixture struct {
	ctrl    *FlankController
	squad   *Squad
	target  *Combatant
	members map[string]*Combatant
	clock   time.Time
}

// newFlankFixture builds a five-man red squad 50m from a blue target, with
// the controller clock under test control.
func newFlankFixture(t *testing.T) *flankFixture {
	t.Helper()
	f := &flankFixture{
		members: map[string]*Combatant{},
		clock:   time.Unix(1_700_000_000, 0),
	}
	ids := []string{"L", "m1", "m2", "m3", "m4"}
	for i, id := range ids {
		f.members[id] = &Combatant{
			ID:      id,
			Pos:     Vec3{Z: float64(i) * 2},
			Facing:  Vec3{X: 1},
			Faction: FactionRed,
			Health:  100,
			State:   StateAlert,
			SquadID: "alpha",
		}
	}
	f.members["L"].Role = RoleLeader
	f.target = &Combatant{
		ID:      "tgt",
		Pos:     Vec3{X: 50},
		Facing:  Vec3{X: -1},
		Faction: FactionBlue,
		Health:  100,
		State:   StateAlert,
	}
	f.members["tgt"] = f.target
	f.squad = &Squad{ID: "alpha", Faction: FactionRed, MemberIDs: ids, LeaderID: "L"}
	f.ctrl = NewFlankController(zerolog.Nop(), config.Defaults(), 1, func(id string) *Combatant {
		return f.members[id]
	})
	f.ctrl.now = func() time.Time { return f.clock }
	return f
}

func (f *flankFixture) kill(ids ...string) {
	for _, id := range ids {
		f.members[id].State = StateDead
	}
}

// pin drives the target to the suppression goal so the suppressing phase
// can hand off to the maneuver.
func (f *flankFixture) pin() {
	f.target.Suppression = 1.0
}

func TestShouldInitiate_Guards(t *testing.T) {
	f := newFlankFixture(t)
	recent := f.clock.Add(-time.Second)
	f.members["L"].LastHitTaken = recent

	if !f.ctrl.ShouldInitiateFlank(f.squad, f.target, false) {
		t.Fatal("recently hit squad in range should flank")
	}

	// Too close and too far are both out.
	f.target.Pos = Vec3{X: 10}
	if f.ctrl.ShouldInitiateFlank(f.squad, f.target, false) {
		t.Fatal("target inside minimum flank range")
	}
	f.target.Pos = Vec3{X: 100}
	if f.ctrl.ShouldInitiateFlank(f.squad, f.target, false) {
		t.Fatal("target beyond maximum flank range")
	}
	f.target.Pos = Vec3{X: 50}

	// A dead target is nothing to maneuver against.
	f.target.State = StateDead
	if f.ctrl.ShouldInitiateFlank(f.squad, f.target, false) {
		t.Fatal("dead target must not trigger a flank")
	}
	f.target.State = StateAlert

	// Not enough living members.
	f.kill("m2", "m3", "m4")
	if f.ctrl.ShouldInitiateFlank(f.squad, f.target, false) {
		t.Fatal("two-man squad cannot flank")
	}
}

func TestShouldInitiate_PanickedMembersDontCount(t *testing.T) {
	f := newFlankFixture(t)
	f.members["L"].LastHitTaken = f.clock.Add(-time.Second)

	// Three of five are broken: only two steady members remain.
	f.members["m2"].Panic = 0.9
	f.members["m3"].Panic = 0.85
	f.members["m4"].Panic = 1.0
	if f.ctrl.ShouldInitiateFlank(f.squad, f.target, false) {
		t.Fatal("panicked members must not count toward viability")
	}

	// A panicked leader cannot lead the maneuver either.
	f2 := newFlankFixture(t)
	f2.members["L"].LastHitTaken = f2.clock.Add(-time.Second)
	f2.members["L"].Panic = 0.9
	if f2.ctrl.ShouldInitiateFlank(f2.squad, f2.target, false) {
		t.Fatal("panicked leader must not initiate")
	}
}

func TestShouldInitiate_DeadLeader(t *testing.T) {
	f := newFlankFixture(t)
	f.members["m1"].LastHitTaken = f.clock.Add(-time.Second)
	f.kill("L")
	if f.ctrl.ShouldInitiateFlank(f.squad, f.target, false) {
		t.Fatal("leaderless squad cannot flank until succession runs")
	}
}

func TestShouldInitiate_BusyAndCooldown(t *testing.T) {
	f := newFlankFixture(t)
	f.members["L"].LastHitTaken = f.clock.Add(-time.Second)

	if f.ctrl.InitiateFlank(f.squad, f.target) == nil {
		t.Fatal("initiation failed")
	}
	if f.ctrl.ShouldInitiateFlank(f.squad, f.target, false) {
		t.Fatal("squad with an active operation must not start another")
	}

	// Drive the operation to abort via timeout; the cooldown from the
	// original initiation still holds.
	f.clock = f.clock.Add(21 * time.Second)
	if st := f.ctrl.UpdateFlankingOperation(f.squad); st != FlankAborted {
		t.Fatalf("status = %v, want aborted", st)
	}
	f.members["L"].LastHitTaken = f.clock.Add(-time.Second)
	if f.ctrl.ShouldInitiateFlank(f.squad, f.target, false) {
		t.Fatal("cooldown must hold even after an aborted operation")
	}
	if !f.ctrl.OnCooldown("alpha") {
		t.Fatal("cooldown not reported")
	}

	// 30s after initiation the cooldown lapses.
	f.clock = f.clock.Add(10 * time.Second)
	f.members["L"].LastHitTaken = f.clock.Add(-time.Second)
	if !f.ctrl.ShouldInitiateFlank(f.squad, f.target, false) {
		t.Fatal("expired cooldown must allow a new operation")
	}
}

func TestShouldInitiate_StallTrigger(t *testing.T) {
	f := newFlankFixture(t)

	// Firing for a while with nothing to show for it.
	f.members["m1"].LastShot = f.clock.Add(-10 * time.Second)
	if !f.ctrl.ShouldInitiateFlank(f.squad, f.target, true) {
		t.Fatal("stalled engagement with a live track should trigger")
	}

	// Same history without a track: no trigger.
	if f.ctrl.ShouldInitiateFlank(f.squad, f.target, false) {
		t.Fatal("stall trigger requires a live track")
	}

	// A recent scored hit resets the stall.
	f.members["m2"].LastHitDealt = f.clock.Add(-time.Second)
	if f.ctrl.ShouldInitiateFlank(f.squad, f.target, true) {
		t.Fatal("squad that is scoring hits is not stalled")
	}

	// A squad that never pulled the trigger is holding, not stalled.
	f2 := newFlankFixture(t)
	if f2.ctrl.ShouldInitiateFlank(f2.squad, f2.target, true) {
		t.Fatal("squad that never fired must not trigger")
	}
}

func TestInitiateFlank_UnderStrength(t *testing.T) {
	f := newFlankFixture(t)
	f.kill("m2", "m3", "m4")
	if f.ctrl.InitiateFlank(f.squad, f.target) != nil {
		t.Fatal("two-man squad must not get an operation")
	}

	f2 := newFlankFixture(t)
	f2.kill("L")
	if f2.ctrl.InitiateFlank(f2.squad, f2.target) != nil {
		t.Fatal("leaderless squad must not get an operation")
	}
}

func TestInitiateFlank_Partition(t *testing.T) {
	f := newFlankFixture(t)
	op := f.ctrl.InitiateFlank(f.squad, f.target)
	if op == nil {
		t.Fatal("initiation failed")
	}
	if op.Status != FlankPlanning {
		t.Fatalf("status = %v, want planning", op.Status)
	}
	if op.TargetID != "tgt" {
		t.Fatalf("target id = %q, want tgt", op.TargetID)
	}

	// The leader always anchors suppression; the rest alternate.
	foundLeader := false
	for _, id := range op.Suppressors {
		if id == "L" {
			foundLeader = true
		}
	}
	if !foundLeader {
		t.Fatal("leader must be a suppressor")
	}
	if len(op.Suppressors) != 3 || len(op.Flankers) != 2 {
		t.Fatalf("partition = %d/%d, want 3 suppressors and 2 flankers",
			len(op.Suppressors), len(op.Flankers))
	}
	for _, id := range op.Flankers {
		dest, ok := op.Destinations[id]
		if !ok {
			t.Fatalf("flanker %s has no destination", id)
		}
		// Destinations sit on the lateral offset ring around the target.
		if d := dest.DistTo(f.target.Pos); d < 25 || d > 45 {
			t.Fatalf("flanker %s destination %v is %vm from the target", id, dest, d)
		}
	}
	if _, active := f.ctrl.ActiveOperation("alpha"); !active {
		t.Fatal("operation not registered")
	}

	if f.ctrl.InitiateFlank(f.squad, f.target) != nil {
		t.Fatal("second initiation while busy must fail")
	}
}

func TestFlank_FullProgression(t *testing.T) {
	f := newFlankFixture(t)
	op := f.ctrl.InitiateFlank(f.squad, f.target)
	if op == nil {
		t.Fatal("initiation failed")
	}

	// Tick 1: the plan commits and roles push into behaviour state.
	if st := f.ctrl.UpdateFlankingOperation(f.squad); st != FlankSuppressing {
		t.Fatalf("status = %v, want suppressing", st)
	}
	for _, id := range op.Suppressors {
		if f.members[id].State != StateSuppressing {
			t.Fatalf("suppressor %s state = %v", id, f.members[id].State)
		}
	}
	for _, id := range op.Flankers {
		if f.members[id].State != StateAdvancing {
			t.Fatalf("flanker %s state = %v", id, f.members[id].State)
		}
	}

	// Suppression holds until its minimum duration elapses, and then some:
	// the target is not pinned yet.
	f.pin()
	f.clock = f.clock.Add(time.Second)
	if st := f.ctrl.UpdateFlankingOperation(f.squad); st != FlankSuppressing {
		t.Fatalf("status after 1s = %v, want still suppressing", st)
	}
	f.clock = f.clock.Add(2 * time.Second)
	if st := f.ctrl.UpdateFlankingOperation(f.squad); st != FlankFlanking {
		t.Fatalf("status after 3s = %v, want flanking", st)
	}

	// Flankers still en route: no transition.
	if st := f.ctrl.UpdateFlankingOperation(f.squad); st != FlankFlanking {
		t.Fatalf("status = %v, want flanking while en route", st)
	}

	// Teleport the flankers onto their marks.
	for _, id := range op.Flankers {
		f.members[id].Pos = op.Destinations[id]
	}
	if st := f.ctrl.UpdateFlankingOperation(f.squad); st != FlankEngaging {
		t.Fatalf("status = %v, want engaging", st)
	}
	for _, id := range op.Flankers {
		if f.members[id].State != StateEngaging {
			t.Fatalf("arrived flanker %s state = %v", id, f.members[id].State)
		}
	}

	// The assault runs its minimum duration, then the operation retires.
	f.clock = f.clock.Add(5 * time.Second)
	if st := f.ctrl.UpdateFlankingOperation(f.squad); st != FlankComplete {
		t.Fatalf("status = %v, want complete", st)
	}
	if _, active := f.ctrl.ActiveOperation("alpha"); active {
		t.Fatal("completed operation must be swept")
	}
}

func TestFlank_SuppressionGatesManeuver(t *testing.T) {
	f := newFlankFixture(t)
	f.ctrl.InitiateFlank(f.squad, f.target)
	f.ctrl.UpdateFlankingOperation(f.squad) // planning -> suppressing

	// The minimum hold has elapsed but the target is not suppressed: the
	// maneuver waits.
	f.clock = f.clock.Add(4 * time.Second)
	if st := f.ctrl.UpdateFlankingOperation(f.squad); st != FlankSuppressing {
		t.Fatalf("status = %v, want suppressing while the target is unpinned", st)
	}

	// Incoming fire takes effect; the next tick hands off.
	f.target.Suppression = 0.6
	if st := f.ctrl.UpdateFlankingOperation(f.squad); st != FlankFlanking {
		t.Fatalf("status = %v, want flanking once the target is pinned", st)
	}
}

func TestFlank_SuppressionGateGivesUpEventually(t *testing.T) {
	f := newFlankFixture(t)
	f.ctrl.InitiateFlank(f.squad, f.target)
	f.ctrl.UpdateFlankingOperation(f.squad)

	// The target never breaks; past the max suppress window the squad
	// maneuvers anyway rather than burning the whole timeout in place.
	f.clock = f.clock.Add(8 * time.Second)
	if st := f.ctrl.UpdateFlankingOperation(f.squad); st != FlankFlanking {
		t.Fatalf("status = %v, want flanking after the max suppress window", st)
	}
}

func TestFlank_SuppressionGateSkipsDeadTarget(t *testing.T) {
	f := newFlankFixture(t)
	f.ctrl.InitiateFlank(f.squad, f.target)
	f.ctrl.UpdateFlankingOperation(f.squad)

	// The target went down during suppression: nothing left to pin.
	f.target.State = StateDead
	f.clock = f.clock.Add(3 * time.Second)
	if st := f.ctrl.UpdateFlankingOperation(f.squad); st != FlankFlanking {
		t.Fatalf("status = %v, want flanking once the target is down", st)
	}
}

func TestFlank_ArrivalToleratesDeadFlankers(t *testing.T) {
	f := newFlankFixture(t)
	op := f.ctrl.InitiateFlank(f.squad, f.target)
	f.ctrl.UpdateFlankingOperation(f.squad) // planning -> suppressing
	f.pin()
	f.clock = f.clock.Add(3 * time.Second)
	f.ctrl.UpdateFlankingOperation(f.squad) // suppressing -> flanking

	// One flanker dies on the approach; the survivor reaching its mark is
	// enough.
	f.kill(op.Flankers[0])
	f.members[op.Flankers[1]].Pos = op.Destinations[op.Flankers[1]]
	if st := f.ctrl.UpdateFlankingOperation(f.squad); st != FlankEngaging {
		t.Fatalf("status = %v, want engaging with a dead flanker", st)
	}
}

func TestFlank_TimeoutAbort(t *testing.T) {
	f := newFlankFixture(t)
	f.ctrl.InitiateFlank(f.squad, f.target)
	f.ctrl.UpdateFlankingOperation(f.squad)

	f.clock = f.clock.Add(20*time.Second + time.Millisecond)
	if st := f.ctrl.UpdateFlankingOperation(f.squad); st != FlankAborted {
		t.Fatalf("status = %v, want aborted on timeout", st)
	}
	if _, active := f.ctrl.ActiveOperation("alpha"); active {
		t.Fatal("aborted operation must be swept")
	}
}

func TestFlank_CasualtyAbort(t *testing.T) {
	f := newFlankFixture(t)
	op := f.ctrl.InitiateFlank(f.squad, f.target)
	f.ctrl.UpdateFlankingOperation(f.squad)

	// Two losses are sustainable.
	f.kill("m3", "m4")
	if st := f.ctrl.UpdateFlankingOperation(f.squad); st == FlankAborted {
		t.Fatal("two casualties must not abort")
	}
	// The third breaks the operation.
	f.kill("m2")
	if st := f.ctrl.UpdateFlankingOperation(f.squad); st != FlankAborted {
		t.Fatalf("status = %v, want aborted on casualties", st)
	}
	if op.AbortReason != "casualties" {
		t.Fatalf("abort reason = %q", op.AbortReason)
	}
}

func TestFlank_CasualtiesBeforeBaseline(t *testing.T) {
	// Losses taken before the operation started do not count against it.
	f := newFlankFixture(t)
	f.kill("m4", "m3")
	op := f.ctrl.InitiateFlank(f.squad, f.target)
	if op == nil {
		t.Fatal("three-man squad should still initiate")
	}
	if op.CasualtiesBefore != 2 {
		t.Fatalf("casualty baseline = %d, want 2", op.CasualtiesBefore)
	}
	if st := f.ctrl.UpdateFlankingOperation(f.squad); st == FlankAborted {
		t.Fatal("pre-existing casualties must not abort")
	}
}

func TestFlank_Cleanup(t *testing.T) {
	f := newFlankFixture(t)
	op := f.ctrl.InitiateFlank(f.squad, f.target)

	// Squad still healthy: cleanup leaves it alone.
	f.ctrl.CleanupOperations(func(id string) *Squad { return f.squad })
	if _, active := f.ctrl.ActiveOperation("alpha"); !active {
		t.Fatal("healthy operation must survive cleanup")
	}

	// Squad bleeds below the continuation minimum.
	f.kill("m1", "m2", "m3", "m4")
	f.ctrl.CleanupOperations(func(id string) *Squad { return f.squad })
	if _, active := f.ctrl.ActiveOperation("alpha"); active {
		t.Fatal("depleted squad's operation must be aborted")
	}
	if op.AbortReason != "squad depleted" {
		t.Fatalf("abort reason = %q", op.AbortReason)
	}

	// A vanished squad aborts too.
	f2 := newFlankFixture(t)
	f2.ctrl.InitiateFlank(f2.squad, f2.target)
	f2.ctrl.CleanupOperations(func(id string) *Squad { return nil })
	if f2.ctrl.ActiveCount() != 0 {
		t.Fatal("operation for a missing squad must be aborted")
	}
}
