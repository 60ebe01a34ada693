package anticheat

import (
	"log/slog"
	"math"
	"time"

	"github.com/AlexbavGamer/enet-gameserver/internal/network"
)

const (
	DefaultMaxSpeed            = 15.0
	DefaultMaxActionsPerSecond = 20
	DefaultSuspiciousThreshold = 10

	actionWindow = time.Second
)

type Config struct {
	MaxSpeed            float64
	MaxActionsPerSecond int
	SuspiciousThreshold int
}

func DefaultConfig() Config {
	return Config{
		MaxSpeed:            DefaultMaxSpeed,
		MaxActionsPerSecond: DefaultMaxActionsPerSecond,
		SuspiciousThreshold: DefaultSuspiciousThreshold,
	}
}

// behavior tracks one peer's recent history. Created lazily on first use,
// purged on disconnect.
type behavior struct {
	actionTimes     []time.Time
	lastX, lastZ    float64
	lastMovement    time.Time
	suspiciousCount int
}

// AntiCheat holds per-peer behavioural state. All methods run on the sim
// thread; the state is deliberately unguarded.
type AntiCheat struct {
	cfg       Config
	behaviors map[network.PeerID]*behavior
	logger    *slog.Logger
	now       func() time.Time
}

func New(cfg Config, logger *slog.Logger) *AntiCheat {
	if cfg.MaxSpeed <= 0 {
		cfg.MaxSpeed = DefaultMaxSpeed
	}
	if cfg.MaxActionsPerSecond <= 0 {
		cfg.MaxActionsPerSecond = DefaultMaxActionsPerSecond
	}
	if cfg.SuspiciousThreshold <= 0 {
		cfg.SuspiciousThreshold = DefaultSuspiciousThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AntiCheat{
		cfg:       cfg,
		behaviors: make(map[network.PeerID]*behavior),
		logger:    logger,
		now:       time.Now,
	}
}

func (ac *AntiCheat) get(peer network.PeerID) *behavior {
	b, ok := ac.behaviors[peer]
	if !ok {
		b = &behavior{}
		ac.behaviors[peer] = b
	}
	return b
}

// ValidateAction records an action timestamp and enforces the sliding
// one-second rate window. A rejected action still counts toward the window.
func (ac *AntiCheat) ValidateAction(peer network.PeerID, actionType string) bool {
	b := ac.get(peer)
	now := ac.now()

	b.actionTimes = append(b.actionTimes, now)

	cutoff := now.Add(-actionWindow)
	kept := b.actionTimes[:0]
	for _, ts := range b.actionTimes {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.actionTimes = kept

	if len(b.actionTimes) > ac.cfg.MaxActionsPerSecond {
		ac.Flag(peer, "action rate exceeded: "+actionType)
		return false
	}
	return true
}

// ValidateMovement checks implied speed over (x, z). dt <= 0 is treated as
// zero speed. On success the last position and movement time are updated;
// a rejected move leaves them untouched.
func (ac *AntiCheat) ValidateMovement(peer network.PeerID, oldX, oldZ, newX, newZ float64, dt float64) bool {
	b := ac.get(peer)

	dx := newX - oldX
	dz := newZ - oldZ
	distance := math.Sqrt(dx*dx + dz*dz)

	var speed float64
	if dt > 0 {
		speed = distance / dt
	}

	if speed > ac.cfg.MaxSpeed {
		ac.Flag(peer, "speed hack detected")
		ac.logger.Warn("player moving too fast",
			"peer", peer,
			"speed", speed,
			"max_speed", ac.cfg.MaxSpeed)
		return false
	}

	b.lastX = newX
	b.lastZ = newZ
	b.lastMovement = ac.now()
	return true
}

// Flag increments the peer's suspicion counter. The counter is monotonic
// for the lifetime of the connection.
func (ac *AntiCheat) Flag(peer network.PeerID, reason string) {
	b := ac.get(peer)
	b.suspiciousCount++

	ac.logger.Warn("suspicious activity",
		"peer", peer,
		"reason", reason,
		"total", b.suspiciousCount)
}

func (ac *AntiCheat) ShouldBan(peer network.PeerID) bool {
	b, ok := ac.behaviors[peer]
	if !ok {
		return false
	}
	return b.suspiciousCount >= ac.cfg.SuspiciousThreshold
}

func (ac *AntiCheat) SuspicionCount(peer network.PeerID) int {
	b, ok := ac.behaviors[peer]
	if !ok {
		return 0
	}
	return b.suspiciousCount
}

// Purge drops a peer's behavioural state after disconnect.
func (ac *AntiCheat) Purge(peer network.PeerID) {
	delete(ac.behaviors, peer)
}
