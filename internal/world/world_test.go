package world

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/AlexbavGamer/enet-gameserver/internal/network"
	"github.com/AlexbavGamer/enet-gameserver/internal/protocol"
)

func newTestPlayer(peer network.PeerID, username string, x, z float32) *Player {
	p := NewPlayer(peer, uint64(peer)+100, username)
	p.SetPosition(protocol.Vector3f{X: x, Y: 0, Z: z})
	return p
}

func TestWorldAddRemoveKeepsGridInSync(t *testing.T) {
	w := New(50)
	p := newTestPlayer(1, "alice", 10, 10)

	w.Add(p)
	if !w.Grid().Contains(p.PeerID) {
		t.Fatalf("player missing from grid after Add")
	}
	if _, ok := w.Get(p.PeerID); !ok {
		t.Fatalf("player missing from registry after Add")
	}

	w.Remove(p.PeerID)
	if w.Grid().Contains(p.PeerID) {
		t.Fatalf("grid still references removed player")
	}
	if _, ok := w.Get(p.PeerID); ok {
		t.Fatalf("registry still references removed player")
	}
	if got := w.PlayersInRadius(10, 10, 100); len(got) != 0 {
		t.Fatalf("removed player still visible in query: %v", got)
	}
}

func TestWorldUpdateReconcilesGrid(t *testing.T) {
	w := New(50)
	p := newTestPlayer(1, "alice", 10, 10)
	w.Add(p)

	p.SetPosition(protocol.Vector3f{X: 510, Y: 0, Z: 510})
	w.Update(1.0 / 30.0)

	got := w.PlayersInRadius(510, 510, 1)
	if len(got) != 1 || got[0].Username != "alice" {
		t.Fatalf("player not found at new position: %v", got)
	}
	if got := w.PlayersInRadius(10, 10, 1); len(got) != 0 {
		t.Fatalf("player still at old position: %v", got)
	}
}

func TestPlayersInRadiusSkipsDanglingIDs(t *testing.T) {
	w := New(50)
	p1 := newTestPlayer(1, "alice", 10, 10)
	p2 := newTestPlayer(2, "bob", 12, 12)
	w.Add(p1)
	w.Add(p2)

	// simulate a transient race: id in the grid without a registry entry
	w.mu.Lock()
	delete(w.players, p2.PeerID)
	w.mu.Unlock()

	got := w.PlayersInRadius(10, 10, 50)
	if len(got) != 1 || got[0].Username != "alice" {
		t.Fatalf("dangling id not skipped: %v", got)
	}
}

func TestWorldSnapshotsWireShape(t *testing.T) {
	w := New(50)
	p := newTestPlayer(2, "bob", 0, 0)
	p.SetHealth(80)
	p.SetLevel(3)
	w.Add(p)

	snaps := w.Snapshots()
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}

	raw, err := json.Marshal(snaps[0])
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"peer_id", "db_id", "username", "position", "health", "level"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("snapshot missing %q: %s", key, raw)
		}
	}
	pos, ok := decoded["position"].(map[string]interface{})
	if !ok {
		t.Fatalf("position is not an object: %s", raw)
	}
	for _, key := range []string{"x", "y", "z"} {
		if _, ok := pos[key]; !ok {
			t.Fatalf("position missing %q: %s", key, raw)
		}
	}
	if decoded["username"] != "bob" {
		t.Fatalf("username = %v", decoded["username"])
	}
}

func TestWorldGetByUsername(t *testing.T) {
	w := New(50)
	w.Add(newTestPlayer(1, "alice", 0, 0))

	if _, ok := w.GetByUsername("alice"); !ok {
		t.Fatalf("GetByUsername missed existing player")
	}
	if _, ok := w.GetByUsername("carol"); ok {
		t.Fatalf("GetByUsername found absent player")
	}
}

func TestIdlePlayers(t *testing.T) {
	w := New(50)
	idle := newTestPlayer(1, "alice", 0, 0)
	idle.mu.Lock()
	idle.LastActivity = time.Now().Add(-10 * time.Minute)
	idle.mu.Unlock()
	active := newTestPlayer(2, "bob", 0, 0)
	w.Add(idle)
	w.Add(active)

	got := w.IdlePlayers(5 * time.Minute)
	if len(got) != 1 || got[0].Username != "alice" {
		t.Fatalf("idle sweep = %v", got)
	}
}
