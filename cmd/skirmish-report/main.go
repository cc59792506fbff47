package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/skirmishlab/tactical-core/internal/config"
	"github.com/skirmishlab/tactical-core/internal/tactical"
)

type runStats struct {
	runIndex int
	seed     int64

	outcome       string
	abortReason   string
	framesToDone  int
	suppressors   int
	flankers      int
	sightChecks   int
	sightVisible  int
	cacheHits     int64
	cacheMisses   int64
	budgetDenials int64
	terrainRays   int64

	gridEntities int
	gridNodes    int
	avgLatencyUs float64
}

func main() {
	var runs int
	var frames int
	var seedBase int64
	var seedStep int64
	var configDir string
	var verbose bool

	flag.IntVar(&runs, "runs", 5, "number of headless simulation runs")
	flag.IntVar(&frames, "frames", 1800, "frames per run (60 per simulated second)")
	flag.Int64Var(&seedBase, "seed-base", 42, "base RNG seed for run 1")
	flag.Int64Var(&seedStep, "seed-step", 1, "seed increment between runs")
	flag.StringVar(&configDir, "config", ".", "directory holding tactical.cfg.json")
	flag.BoolVar(&verbose, "v", false, "verbose core logging")
	flag.Parse()

	if runs <= 0 {
		fmt.Println("error: -runs must be > 0")
		return
	}
	if frames <= 0 {
		fmt.Println("error: -frames must be > 0")
		return
	}

	tun, err := config.Load(configDir)
	if err != nil {
		fmt.Printf("error: loading config: %v\n", err)
		return
	}

	log := zerolog.Nop()
	if verbose {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	fmt.Printf("=== Skirmish Flank Report ===\n")
	fmt.Printf("runs=%d frames=%d seed_base=%d seed_step=%d world=%.0f budget=%d\n\n",
		runs, frames, seedBase, seedStep, tun.WorldSize, tun.RaycastBudget)

	all := make([]runStats, 0, runs)
	for i := 0; i < runs; i++ {
		seed := seedBase + int64(i)*seedStep
		stats := runFlankScenario(i+1, seed, frames, tun, log)
		all = append(all, stats)
		printRun(stats)
	}

	printAggregate(all)
}

// runFlankScenario drives one fire-and-maneuver attempt: a red squad fixes a
// blue target behind a low wall, the maneuver element walks to its marks, and
// the run records how the operation and the visibility pipeline behaved.
func runFlankScenario(runIndex int, seed int64, frames int, tun config.Tuning, log zerolog.Logger) runStats {
	s := tactical.NewSim(
		tactical.WithTuning(tun),
		tactical.WithSeed(seed),
		tactical.WithLogger(log),
		tactical.WithTerrain(tactical.FlatTerrain{Height: 0}),
		tactical.WithObstruction(tactical.AABB{
			Min: tactical.Vec3{X: 30, Y: 0, Z: -4},
			Max: tactical.Vec3{X: 32, Y: 1.2, Z: 4},
		}),
		tactical.WithCombatant("red-1", tactical.FactionRed, tactical.Vec3{}),
		tactical.WithCombatant("red-2", tactical.FactionRed, tactical.Vec3{Z: 3}),
		tactical.WithCombatant("red-3", tactical.FactionRed, tactical.Vec3{Z: 6}),
		tactical.WithCombatant("red-4", tactical.FactionRed, tactical.Vec3{Z: -3}),
		tactical.WithCombatant("red-5", tactical.FactionRed, tactical.Vec3{Z: -6}),
		tactical.WithCombatant("blue-1", tactical.FactionBlue, tactical.Vec3{X: 55}),
		tactical.WithSquad("red", tactical.FactionRed, "red-1", "red-2", "red-3", "red-4", "red-5"),
	)

	sq := s.World.Squad("red")
	target := s.World.Combatant("blue-1")

	rs := runStats{runIndex: runIndex, seed: seed, outcome: "none", framesToDone: -1}
	const moveSpeed = 8.0 // meters per simulated second, a jog

	var op *tactical.FlankOperation
	for frame := 1; frame <= frames; frame++ {
		s.Step()

		// The suppression element keeps eyes on the target every frame; this
		// is what exercises the cache, the budget and the occlusion stages.
		leader := s.World.Combatant(sq.LeaderID)
		rs.sightChecks++
		if s.World.Visibility.CanSeeTarget(leader, target) {
			rs.sightVisible++
		}

		if op == nil {
			// Synthetic firing history: the squad has been shooting since
			// before the run without scoring, so the stall trigger is live.
			leader.LastShot = s.Now().Add(-10 * time.Second)
			if s.World.Flanks.ShouldInitiateFlank(sq, target, true) {
				op = s.World.Flanks.InitiateFlank(sq, target)
				if op != nil {
					rs.suppressors = len(op.Suppressors)
					rs.flankers = len(op.Flankers)
				}
			}
			continue
		}

		// The base of fire works the target over in bursts; suppression on
		// the target is what releases the maneuver element.
		if op.Status == tactical.FlankSuppressing && frame%10 == 0 {
			for _, id := range op.Suppressors {
				c := s.World.Combatant(id)
				if !c.Alive() {
					continue
				}
				muzzle := c.Pos.Add(tactical.Vec3{Y: 1.2})
				aim := target.Pos.Add(tactical.Vec3{Y: 1.2}).Sub(muzzle)
				s.World.Hits.ResolveShot(muzzle, aim, c, s.World.Combatant)
			}
		}

		// Walk the maneuver element toward its marks.
		if op.Status == tactical.FlankFlanking {
			dt := 16 * time.Millisecond
			for _, id := range op.Flankers {
				c := s.World.Combatant(id)
				if !c.Alive() {
					continue
				}
				dest := op.Destinations[id]
				step := dest.Sub(c.Pos)
				maxStep := moveSpeed * dt.Seconds()
				if step.Length() > maxStep {
					unit, ok := step.Normalized()
					if !ok {
						continue
					}
					step = unit.Scale(maxStep)
				}
				c.Pos = c.Pos.Add(step)
				c.Facing = dest.Sub(c.Pos)
			}
		}

		if op.Status.Terminal() && rs.framesToDone < 0 {
			rs.framesToDone = frame
			if op.Status == tactical.FlankAborted {
				rs.outcome = "aborted"
				rs.abortReason = op.AbortReason
			} else {
				rs.outcome = "complete"
			}
		}
	}
	if op != nil && rs.outcome == "none" {
		rs.outcome = "unfinished:" + op.Status.String()
	}

	snap := s.World.Telemetry()
	rs.cacheHits = snap.CacheHits
	rs.cacheMisses = snap.CacheMisses
	rs.budgetDenials = snap.BudgetDenials
	rs.terrainRays = snap.TerrainRays

	st := s.World.Grid.Stats()
	rs.gridEntities = st.Entities
	rs.gridNodes = st.Nodes
	rs.avgLatencyUs = s.World.Grid.AverageQueryLatency()
	return rs
}

func printRun(rs runStats) {
	fmt.Printf("--- Run %d (seed=%d) ---\n", rs.runIndex, rs.seed)
	fmt.Printf("flank: outcome=%s reason=%q frames_to_done=%d suppressors=%d flankers=%d\n",
		rs.outcome, rs.abortReason, rs.framesToDone, rs.suppressors, rs.flankers)
	fmt.Printf("sight: checks=%d visible=%d cache_hits=%d cache_misses=%d budget_denials=%d terrain_rays=%d\n",
		rs.sightChecks, rs.sightVisible, rs.cacheHits, rs.cacheMisses, rs.budgetDenials, rs.terrainRays)
	fmt.Printf("grid: entities=%d nodes=%d avg_query_latency_us=%.2f\n\n",
		rs.gridEntities, rs.gridNodes, rs.avgLatencyUs)
}

func printAggregate(all []runStats) {
	completed := 0
	aborted := 0
	unfinished := 0
	doneFrames := 0
	doneRuns := 0
	var hits, misses, denials int64
	for _, rs := range all {
		switch rs.outcome {
		case "complete":
			completed++
		case "aborted":
			aborted++
		default:
			unfinished++
		}
		if rs.framesToDone >= 0 {
			doneFrames += rs.framesToDone
			doneRuns++
		}
		hits += rs.cacheHits
		misses += rs.cacheMisses
		denials += rs.budgetDenials
	}

	fmt.Printf("=== Aggregate (%d runs) ===\n", len(all))
	fmt.Printf("outcomes: complete=%d aborted=%d unfinished=%d\n", completed, aborted, unfinished)
	if doneRuns > 0 {
		fmt.Printf("avg_frames_to_done=%.1f\n", float64(doneFrames)/float64(doneRuns))
	}
	total := hits + misses
	if total > 0 {
		fmt.Printf("los_cache: hits=%d misses=%d hit_rate=%.1f%% budget_denials=%d\n",
			hits, misses, 100*float64(hits)/float64(total), denials)
	}
}
