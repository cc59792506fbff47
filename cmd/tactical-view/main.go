// tactical-view is a top-down debug viewer for the tactical core: it runs the
// headless flank scenario under ebiten and draws the spatial index contents,
// the leader's sight line and the maneuver plan while it unfolds.
package main

import (
	"fmt"
	"image/color"
	"log"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/rs/zerolog"

	"github.com/skirmishlab/tactical-core/internal/config"
	"github.com/skirmishlab/tactical-core/internal/tactical"
)

const (
	screenW = 1280
	screenH = 720

	// World-to-screen: the scenario plays out in a ~100m box.
	pixelsPerMeter = 9.0
	moveSpeed      = 8.0 // flanker speed, meters per simulated second
)

var (
	colRed      = color.RGBA{R: 220, G: 70, B: 70, A: 255}
	colBlue     = color.RGBA{R: 80, G: 140, B: 255, A: 255}
	colDead     = color.RGBA{R: 90, G: 90, B: 90, A: 255}
	colSightOK  = color.RGBA{R: 80, G: 220, B: 80, A: 160}
	colSightCut = color.RGBA{R: 220, G: 80, B: 80, A: 160}
	colWall     = color.RGBA{R: 120, G: 110, B: 90, A: 255}
	colDest     = color.RGBA{R: 240, G: 200, B: 60, A: 220}
	colGround   = color.RGBA{R: 30, G: 42, B: 30, A: 255}
)

type View struct {
	sim      *tactical.Sim
	tun      config.Tuning
	squad    *tactical.Squad
	targetID string

	op      *tactical.FlankOperation
	visible bool
	paused  bool

	prevKeys map[ebiten.Key]bool
	status   string
}

func newView() *View {
	v := &View{prevKeys: map[ebiten.Key]bool{}}
	v.reset()
	return v
}

// reset rebuilds the scenario from scratch.
func (v *View) reset() {
	tun, err := config.Load(".")
	if err != nil {
		tun = config.Defaults()
	}
	v.tun = tun
	v.sim = tactical.NewSim(
		tactical.WithTuning(tun),
		tactical.WithLogger(zerolog.Nop()),
		tactical.WithTerrain(tactical.FlatTerrain{Height: 0}),
		tactical.WithObstruction(tactical.AABB{
			Min: tactical.Vec3{X: 30, Y: 0, Z: -4},
			Max: tactical.Vec3{X: 32, Y: 2.2, Z: 4},
		}),
		tactical.WithCombatant("red-1", tactical.FactionRed, tactical.Vec3{}),
		tactical.WithCombatant("red-2", tactical.FactionRed, tactical.Vec3{Z: 3}),
		tactical.WithCombatant("red-3", tactical.FactionRed, tactical.Vec3{Z: 6}),
		tactical.WithCombatant("red-4", tactical.FactionRed, tactical.Vec3{Z: -3}),
		tactical.WithCombatant("red-5", tactical.FactionRed, tactical.Vec3{Z: -6}),
		tactical.WithCombatant("blue-1", tactical.FactionBlue, tactical.Vec3{X: 55}),
		tactical.WithSquad("red", tactical.FactionRed, "red-1", "red-2", "red-3", "red-4", "red-5"),
	)
	v.squad = v.sim.World.Squad("red")
	v.targetID = "blue-1"
	v.op = nil
	v.paused = false
	v.status = "running"
}

// keyEdge reports a fresh press of k since the previous Update.
func (v *View) keyEdge(k ebiten.Key) bool {
	down := ebiten.IsKeyPressed(k)
	was := v.prevKeys[k]
	v.prevKeys[k] = down
	return down && !was
}

func (v *View) Update() error {
	if v.keyEdge(ebiten.KeySpace) {
		v.paused = !v.paused
	}
	if v.keyEdge(ebiten.KeyR) {
		v.reset()
	}
	if v.keyEdge(ebiten.KeyF) && v.op == nil {
		target := v.sim.World.Combatant(v.targetID)
		v.op = v.sim.World.Flanks.InitiateFlank(v.squad, target)
	}
	if v.keyEdge(ebiten.KeyC) {
		if err := clipboard.WriteAll(v.report()); err == nil {
			v.status = "report copied"
		} else {
			v.status = "clipboard unavailable"
		}
	}

	if v.paused {
		return nil
	}
	v.sim.Step()

	leader := v.sim.World.Combatant(v.squad.LeaderID)
	target := v.sim.World.Combatant(v.targetID)
	v.visible = v.sim.World.Visibility.CanSeeTarget(leader, target)

	// Suppressors fire in bursts while the maneuver waits on the target
	// breaking; the viewer shows the pressure climb on the HUD.
	if v.op != nil && v.op.Status == tactical.FlankSuppressing &&
		v.sim.World.Grid.Frame()%10 == 0 {
		for _, id := range v.op.Suppressors {
			c := v.sim.World.Combatant(id)
			if !c.Alive() {
				continue
			}
			muzzle := c.Pos.Add(tactical.Vec3{Y: 1.2})
			aim := target.Pos.Add(tactical.Vec3{Y: 1.2}).Sub(muzzle)
			v.sim.World.Hits.ResolveShot(muzzle, aim, c, v.sim.World.Combatant)
		}
	}

	if v.op != nil && v.op.Status == tactical.FlankFlanking {
		dt := 16 * time.Millisecond
		for _, id := range v.op.Flankers {
			c := v.sim.World.Combatant(id)
			if !c.Alive() {
				continue
			}
			dest := v.op.Destinations[id]
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
		}
	}
	return nil
}

// toScreen maps world X/Z onto the screen with the scenario roughly centered.
func toScreen(p tactical.Vec3) (float32, float32) {
	return float32(p.X*pixelsPerMeter + 200), float32(p.Z*pixelsPerMeter + screenH/2)
}

func (v *View) Draw(screen *ebiten.Image) {
	vector.FillRect(screen, 0, 0, screenW, screenH, colGround, false)

	// Occluder boxes.
	for _, b := range v.sim.Obstructions() {
		x0, y0 := toScreen(b.Min)
		x1, y1 := toScreen(b.Max)
		vector.FillRect(screen, x0, y0, x1-x0, y1-y0, colWall, false)
	}

	// Sight line, leader eye to target eye, in ground projection.
	leader := v.sim.World.Combatant(v.squad.LeaderID)
	target := v.sim.World.Combatant(v.targetID)
	lx, ly := toScreen(leader.Pos)
	tx, ty := toScreen(target.Pos)
	sightCol := colSightCut
	if v.visible {
		sightCol = colSightOK
	}
	vector.StrokeLine(screen, lx, ly, tx, ty, 1.2, sightCol, false)

	// Flank destinations.
	if v.op != nil {
		for _, dest := range v.op.Destinations {
			dx, dy := toScreen(dest)
			vector.StrokeLine(screen, dx-4, dy, dx+4, dy, 1.0, colDest, false)
			vector.StrokeLine(screen, dx, dy-4, dx, dy+4, 1.0, colDest, false)
		}
	}

	// Combatants.
	for _, id := range v.sim.World.CombatantIDs() {
		c := v.sim.World.Combatant(id)
		x, y := toScreen(c.Pos)
		col := colRed
		if c.Faction == tactical.FactionBlue {
			col = colBlue
		}
		if !c.Alive() {
			col = colDead
		}
		vector.FillCircle(screen, x, y, 4.5, col, false)
		ebitenutil.DebugPrintAt(screen, c.State.String(), int(x)+6, int(y)-6)
	}

	ebitenutil.DebugPrintAt(screen, v.report(), 8, 8)
	ebitenutil.DebugPrintAt(screen, "space: pause  f: flank  r: reset  c: copy report", 8, screenH-18)
}

// report renders the HUD / clipboard summary.
func (v *View) report() string {
	snap := v.sim.World.Telemetry()
	st := v.sim.World.Grid.Stats()

	var b strings.Builder
	fmt.Fprintf(&b, "frame=%d budget=%d/%d  %s\n",
		v.sim.World.Grid.Frame(), v.sim.World.RaycastBudgetRemaining(), v.tun.RaycastBudget, v.status)
	fmt.Fprintf(&b, "grid: entities=%d nodes=%d avg_query_us=%.1f\n",
		st.Entities, st.Nodes, v.sim.World.Grid.AverageQueryLatency())
	fmt.Fprintf(&b, "los: visible=%v cache=%d hits=%d misses=%d denials=%d\n",
		v.visible, v.sim.World.Visibility.CacheSize(), snap.CacheHits, snap.CacheMisses, snap.BudgetDenials)
	tgt := v.sim.World.Combatant(v.targetID)
	fmt.Fprintf(&b, "target: suppress=%.2f panic=%.2f\n", tgt.Suppression, tgt.Panic)
	if v.op != nil {
		fmt.Fprintf(&b, "flank: status=%s suppressors=%d flankers=%d reason=%q\n",
			v.op.Status, len(v.op.Suppressors), len(v.op.Flankers), v.op.AbortReason)
	} else {
		fmt.Fprintf(&b, "flank: idle (press f)\n")
	}
	return b.String()
}

func (v *View) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenW, screenH
}

func main() {
	ebiten.SetWindowTitle("Tactical View")
	ebiten.SetWindowSize(screenW, screenH)
	if err := ebiten.RunGame(newView()); err != nil {
		log.Fatal(err)
	}
}
