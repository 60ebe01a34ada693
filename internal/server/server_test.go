package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/AlexbavGamer/enet-gameserver/internal/anticheat"
	"github.com/AlexbavGamer/enet-gameserver/internal/network"
	"github.com/AlexbavGamer/enet-gameserver/internal/protocol"
	"github.com/AlexbavGamer/enet-gameserver/internal/rpc"
	"github.com/AlexbavGamer/enet-gameserver/internal/world"
	"github.com/AlexbavGamer/enet-gameserver/pkg/config"
)

// newSimTestServer builds just enough of a Server to drive packet handlers
// directly; the transport stays nil and must not be reached.
func newSimTestServer() *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig()
	return &Server{
		config:    cfg,
		logger:    logger,
		world:     world.New(float32(cfg.Server.CellSize)),
		antiCheat: anticheat.New(anticheat.DefaultConfig(), logger),
		hooks:     NewHooks(nil, logger),
		tickRate:  time.Second / time.Duration(cfg.Server.TickRate),
		lastDT:    1.0 / 30.0,
	}
}

func TestPlayerMoveAcceptedAppliesPosition(t *testing.T) {
	s := newSimTestServer()
	p := world.NewPlayer(network.PeerID(1), 10, "alice")
	s.world.Add(p)

	body := (&protocol.PlayerMoveBody{
		Position: protocol.Vector3f{X: 0.3, Y: 0, Z: 0},
	}).Encode()
	s.handlePlayerMove(1, body)

	if got := p.GetPosition(); got.X != 0.3 {
		t.Fatalf("position = %+v, want x=0.3", got)
	}
	if n := s.antiCheat.SuspicionCount(1); n != 0 {
		t.Fatalf("legitimate move flagged: suspicion = %d", n)
	}
}

func TestPlayerMoveRejectedButNotBannedStillApplies(t *testing.T) {
	s := newSimTestServer()
	p := world.NewPlayer(network.PeerID(1), 10, "alice")
	s.world.Add(p)

	// far beyond the speed limit for one tick, but a single violation
	// stays well under the ban threshold
	body := (&protocol.PlayerMoveBody{
		Position: protocol.Vector3f{X: 1000, Y: 0, Z: 0},
	}).Encode()
	s.handlePlayerMove(1, body)

	if n := s.antiCheat.SuspicionCount(1); n != 1 {
		t.Fatalf("suspicion = %d, want 1", n)
	}
	if got := p.GetPosition(); got.X != 1000 {
		t.Fatalf("rejected-but-not-banned move not applied: %+v", got)
	}
	if _, ok := s.world.Get(1); !ok {
		t.Fatalf("player removed without reaching the ban threshold")
	}
}

func TestWorldStateBodyShape(t *testing.T) {
	w := world.New(50)
	p := world.NewPlayer(network.PeerID(2), 42, "bob")
	p.SetPosition(protocol.Vector3f{X: 0, Y: 0, Z: 0})
	w.Add(p)

	body, err := json.Marshal(WorldStateJSON{Players: w.Snapshots()})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded struct {
		Players []struct {
			PeerID   uint32 `json:"peer_id"`
			Username string `json:"username"`
			Position struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
				Z float64 `json:"z"`
			} `json:"position"`
		} `json:"players"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(decoded.Players) != 1 {
		t.Fatalf("players = %d, want 1", len(decoded.Players))
	}
	entry := decoded.Players[0]
	if entry.Username != "bob" || entry.PeerID != 2 {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.Position.X != 0 || entry.Position.Y != 0 || entry.Position.Z != 0 {
		t.Fatalf("position = %+v", entry.Position)
	}
}

func TestWorldStateBodyEmptyWorld(t *testing.T) {
	body, err := json.Marshal(WorldStateJSON{Players: []world.PlayerJSON{}})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(body) != `{"players":[]}` {
		t.Fatalf("empty snapshot = %s", body)
	}
}

func TestVariantToLua(t *testing.T) {
	cases := []struct {
		in   rpc.Variant
		want interface{}
	}{
		{rpc.Nil(), nil},
		{rpc.Bool(true), true},
		{rpc.Int(3), int64(3)},
		{rpc.Float(1.5), 1.5},
		{rpc.Str("hi"), "hi"},
	}
	for _, tc := range cases {
		if got := variantToLua(tc.in); got != tc.want {
			t.Errorf("variantToLua(%v) = %#v, want %#v", tc.in, got, tc.want)
		}
	}

	vec := variantToLua(rpc.Vec3(1, 2, 3))
	table, ok := vec.(map[string]interface{})
	if !ok || table["x"] != 1.0 || table["y"] != 2.0 || table["z"] != 3.0 {
		t.Fatalf("vector conversion = %#v", vec)
	}

	arr := variantToLua(rpc.Array(rpc.Int(1), rpc.Str("two")))
	items, ok := arr.([]interface{})
	if !ok || len(items) != 2 || items[0] != int64(1) || items[1] != "two" {
		t.Fatalf("array conversion = %#v", arr)
	}

	dict := variantToLua(rpc.Dict(rpc.DictEntry{Key: "k", Value: rpc.Bool(false)}))
	m, ok := dict.(map[string]interface{})
	if !ok || m["k"] != false {
		t.Fatalf("dict conversion = %#v", dict)
	}
}
