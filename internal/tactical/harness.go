package tactical

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/skirmishlab/tactical-core/internal/config"
	"github.com/skirmishlab/tactical-core/internal/telemetry"
)

// Sim is a headless scenario harness around a World. It drives the frame
// loop on a simulated clock so scenario tests and the report binary get
// deterministic TTL and timeout behaviour. Mirrors how the interactive
// layer is expected to drive the core: BeginFrame, sync, queries, flanks.
type Sim struct {
	World *World
	Tun   config.Tuning

	Reference Vec3 // LOD reference point, usually the player

	clock   time.Time
	frameDt time.Duration
	seed    int64

	pendingCombatants []*Combatant
	pendingSquads     []*Squad
	obstructions      *StaticBoxes
	terrain           TerrainSampler
	obscurants        ObscurantField
	logger            zerolog.Logger
	tun               config.Tuning
	tunSet            bool
}

// SimOption configures a Sim under construction.
type SimOption func(*Sim)

// WithTuning overrides the default tuning.
func WithTuning(tun config.Tuning) SimOption {
	return func(s *Sim) { s.tun = tun; s.tunSet = true }
}

// WithSeed sets the deterministic seed for flank direction choices.
func WithSeed(seed int64) SimOption {
	return func(s *Sim) { s.seed = seed }
}

// WithLogger installs a logger; default is a no-op logger.
func WithLogger(log zerolog.Logger) SimOption {
	return func(s *Sim) { s.logger = log }
}

// WithCombatant adds a combatant facing +X with full health.
func WithCombatant(id string, faction Faction, pos Vec3) SimOption {
	return func(s *Sim) {
		s.pendingCombatants = append(s.pendingCombatants, &Combatant{
			ID:      id,
			Pos:     pos,
			Facing:  Vec3{X: 1},
			Faction: faction,
			Health:  100,
			State:   StateIdle,
		})
	}
}

// WithSquad forms a squad from previously added members; the first member
// listed is the leader.
func WithSquad(id string, faction Faction, memberIDs ...string) SimOption {
	return func(s *Sim) {
		sq := &Squad{ID: id, Faction: faction, MemberIDs: memberIDs}
		if len(memberIDs) > 0 {
			sq.LeaderID = memberIDs[0]
		}
		s.pendingSquads = append(s.pendingSquads, sq)
	}
}

// WithObstruction adds a static occluder box.
func WithObstruction(box AABB) SimOption {
	return func(s *Sim) {
		if s.obstructions == nil {
			s.obstructions = &StaticBoxes{}
		}
		s.obstructions.Add(box)
	}
}

// WithTerrain installs a terrain collaborator.
func WithTerrain(t TerrainSampler) SimOption {
	return func(s *Sim) { s.terrain = t }
}

// WithObscurants installs an area obscurant collaborator.
func WithObscurants(o ObscurantField) SimOption {
	return func(s *Sim) { s.obscurants = o }
}

// NewSim builds the harness, initializes the grid and wires collaborators.
func NewSim(opts ...SimOption) *Sim {
	s := &Sim{
		clock:   time.Unix(1_700_000_000, 0), // arbitrary fixed epoch
		frameDt: 16 * time.Millisecond,
		seed:    1,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.tunSet {
		s.tun = config.Defaults()
	}
	s.Tun = s.tun

	tel, err := telemetry.NewSink()
	if err != nil {
		// The global no-op meter cannot fail to build instruments; a real
		// provider that does is a setup bug worth surfacing immediately.
		panic(err)
	}

	s.World = NewWorld(s.logger, s.tun, tel, s.seed)
	s.World.Grid.Initialize(s.tun.WorldSize)

	// Pin all domain clocks to the simulated one.
	s.World.Visibility.now = s.Now
	s.World.Flanks.now = s.Now
	s.World.Hits.now = s.Now

	if s.terrain != nil {
		s.World.Visibility.SetTerrain(s.terrain)
	}
	if s.obstructions != nil {
		s.World.Visibility.SetObstructions(s.obstructions)
	}
	if s.obscurants != nil {
		s.World.Visibility.SetObscurants(s.obscurants)
	}

	for _, c := range s.pendingCombatants {
		s.World.AddCombatant(c)
	}
	for _, sq := range s.pendingSquads {
		s.World.AddSquad(sq)
	}
	return s
}

// Now returns the simulated time.
func (s *Sim) Now() time.Time { return s.clock }

// Advance moves the simulated clock without running a frame.
func (s *Sim) Advance(d time.Duration) { s.clock = s.clock.Add(d) }

// Step runs one frame: clock advance, budget/counter reset, LOD position
// sync, flank tick, pressure decay.
func (s *Sim) Step() {
	s.clock = s.clock.Add(s.frameDt)
	s.World.BeginFrame()
	s.World.SyncPositions(s.Reference)
	s.World.TickFlanks()
	s.World.DecayPressure(s.frameDt)
}

// RunFrames steps n frames.
func (s *Sim) RunFrames(n int) {
	for i := 0; i < n; i++ {
		s.Step()
	}
}

// Obstructions returns the scenario's occluder boxes, for debug rendering.
func (s *Sim) Obstructions() []AABB {
	if s.obstructions == nil {
		return nil
	}
	return s.obstructions.Boxes()
}

// StaticBoxes is the simplest ObstructionSet: a plain box list.
type StaticBoxes struct {
	boxes []AABB
}

// Add appends an occluder box.
func (s *StaticBoxes) Add(b AABB) { s.boxes = append(s.boxes, b) }

// Boxes returns the occluder list.
func (s *StaticBoxes) Boxes() []AABB { return s.boxes }

// FlatTerrain is a terrain plane at a fixed height, good enough for
// scenarios and the report binary: a ray hits it where it crosses Y.
type FlatTerrain struct {
	Height float64
}

// HeightAt returns the plane height everywhere.
func (t FlatTerrain) HeightAt(x, z float64) float64 { return t.Height }

// RaycastTerrain intersects the ray with the plane y = Height.
func (t FlatTerrain) RaycastTerrain(origin, dir Vec3, maxDistance float64) (bool, float64) {
	unit, ok := dir.Normalized()
	if !ok || unit.Y == 0 {
		return false, 0
	}
	d := (t.Height - origin.Y) / unit.Y
	if d < 0 || d > maxDistance {
		return false, 0
	}
	return true, d
}

// ObscurantFunc adapts a function to the ObscurantField interface.
type ObscurantFunc func(a, b Vec3) bool

// IsLineBlocked calls the wrapped function.
func (f ObscurantFunc) IsLineBlocked(a, b Vec3) bool { return f(a, b) }
