package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults_BehavioralParity(t *testing.T) {
	tun := Defaults()

	// These literals are load-bearing for game balance; changing a default
	// changes behaviour everywhere, so pin them.
	if tun.LODNearDist != 150 || tun.LODMidDist != 300 || tun.LODFarDist != 500 {
		t.Fatalf("LOD tier distances changed: %v %v %v", tun.LODNearDist, tun.LODMidDist, tun.LODFarDist)
	}
	if tun.LODNearEvery != 1 || tun.LODMidEvery != 2 || tun.LODFarEvery != 5 || tun.LODRemoteEvery != 30 {
		t.Fatalf("LOD cadences changed")
	}
	if tun.MaxEngagementRange != 150 {
		t.Fatalf("max engagement range = %v, want 150", tun.MaxEngagementRange)
	}
	if tun.LOSCacheTTL != 150*time.Millisecond {
		t.Fatalf("LOS cache TTL = %v, want 150ms", tun.LOSCacheTTL)
	}
	if tun.FlankTimeout != 20*time.Second {
		t.Fatalf("flank timeout = %v, want 20s", tun.FlankTimeout)
	}
	if tun.FlankMinMembers != 3 || tun.FlankRangeMin != 20 || tun.FlankRangeMax != 80 {
		t.Fatalf("flank initiation guards changed")
	}
	if tun.FriendlyFire {
		t.Fatal("friendly fire must default off")
	}
	if tun.SuppressPerHit != 0.45 || tun.SuppressPerNearMiss != 0.2 || tun.PanicPerHit != 0.3 {
		t.Fatalf("pressure gains changed: %v %v %v", tun.SuppressPerHit, tun.SuppressPerNearMiss, tun.PanicPerHit)
	}
	if tun.SuppressDecayPerSec != 0.35 || tun.PanicDecayPerSec != 0.15 {
		t.Fatalf("pressure decay changed: %v %v", tun.SuppressDecayPerSec, tun.PanicDecayPerSec)
	}
	if tun.FlankSuppressGoal != 0.5 || tun.FlankMaxSuppress != 8*time.Second {
		t.Fatalf("suppression phase gates changed: %v %v", tun.FlankSuppressGoal, tun.FlankMaxSuppress)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	tun, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("missing config file should not error: %v", err)
	}
	if tun.RaycastBudget != Defaults().RaycastBudget {
		t.Fatal("missing file should yield defaults")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg := []byte(`{"los": {"raycastBudget": 8}, "flank": {"minMembers": 4}}`)
	if err := os.WriteFile(filepath.Join(dir, "tactical.cfg.json"), cfg, 0o644); err != nil {
		t.Fatal(err)
	}

	tun, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tun.RaycastBudget != 8 {
		t.Fatalf("raycast budget = %d, want 8", tun.RaycastBudget)
	}
	if tun.FlankMinMembers != 4 {
		t.Fatalf("flank min members = %d, want 4", tun.FlankMinMembers)
	}
	// Untouched keys keep their defaults.
	if tun.LOSCacheTTL != 150*time.Millisecond {
		t.Fatalf("unrelated key lost its default: %v", tun.LOSCacheTTL)
	}
}

func TestLoad_MalformedFileErrors(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tactical.cfg.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("malformed config file should error")
	}
}
