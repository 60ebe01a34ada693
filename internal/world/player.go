package world

import (
	"sync"
	"time"

	"github.com/AlexbavGamer/enet-gameserver/internal/network"
	"github.com/AlexbavGamer/enet-gameserver/internal/protocol"
)

// Player is the authoritative record for one authenticated peer. The world
// owns it; the peer id is a non-owning reference into the session layer.
type Player struct {
	PeerID   network.PeerID
	DBID     uint64
	Username string

	Position     protocol.Vector3f
	Health       int
	Level        int
	LastActivity time.Time

	mu sync.RWMutex
}

func NewPlayer(peerID network.PeerID, dbID uint64, username string) *Player {
	return &Player{
		PeerID:       peerID,
		DBID:         dbID,
		Username:     username,
		Health:       100,
		Level:        1,
		LastActivity: time.Now(),
	}
}

func (p *Player) GetPosition() protocol.Vector3f {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Position
}

func (p *Player) SetPosition(pos protocol.Vector3f) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Position = pos
	p.LastActivity = time.Now()
}

func (p *Player) GetHealth() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Health
}

func (p *Player) SetHealth(health int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if health < 0 {
		health = 0
	}
	p.Health = health
}

func (p *Player) GetLevel() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Level
}

func (p *Player) SetLevel(level int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if level < 1 {
		level = 1
	}
	p.Level = level
}

func (p *Player) Touch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LastActivity = time.Now()
}

func (p *Player) IdleSince() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.LastActivity
}

// PositionJSON is the nested position object in WORLD_STATE snapshots.
type PositionJSON struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// PlayerJSON is one entry of the WORLD_STATE players array. Field names are
// part of the wire contract.
type PlayerJSON struct {
	PeerID   uint32       `json:"peer_id"`
	DBID     uint64       `json:"db_id"`
	Username string       `json:"username"`
	Position PositionJSON `json:"position"`
	Health   int          `json:"health"`
	Level    int          `json:"level"`
}

// Snapshot returns a consistent copy for serialization.
func (p *Player) Snapshot() PlayerJSON {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PlayerJSON{
		PeerID:   uint32(p.PeerID),
		DBID:     p.DBID,
		Username: p.Username,
		Position: PositionJSON{X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z},
		Health:   p.Health,
		Level:    p.Level,
	}
}
