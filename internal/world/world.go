package world

import (
	"sync"
	"time"

	"github.com/AlexbavGamer/enet-gameserver/internal/network"
)

// World owns the player records and the spatial index. The tick loop is the
// only mutator on the simulation path; hooks and stats readers may query
// concurrently.
type World struct {
	mu      sync.RWMutex
	players map[network.PeerID]*Player
	grid    *Grid
}

func New(cellSize float32) *World {
	return &World{
		players: make(map[network.PeerID]*Player),
		grid:    NewGrid(cellSize),
	}
}

func (w *World) Grid() *Grid {
	return w.grid
}

// Add inserts the player into the registry and the grid together. Replacing
// an existing entry for the same peer removes its old grid slot first.
func (w *World) Add(p *Player) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.players[p.PeerID]; exists {
		w.grid.Remove(p.PeerID)
	}
	w.players[p.PeerID] = p
	pos := p.GetPosition()
	w.grid.Insert(p.PeerID, pos.X, pos.Z)
}

// Remove drops the player from the registry and the grid together.
func (w *World) Remove(peerID network.PeerID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.players[peerID]; !exists {
		return
	}
	delete(w.players, peerID)
	w.grid.Remove(peerID)
}

func (w *World) Get(peerID network.PeerID) (*Player, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[peerID]
	return p, ok
}

func (w *World) GetByUsername(username string) (*Player, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, p := range w.players {
		if p.Username == username {
			return p, true
		}
	}
	return nil, false
}

func (w *World) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.players)
}

// ForEach calls fn over a snapshot of the players, so fn may mutate the
// world without holding its lock.
func (w *World) ForEach(fn func(*Player)) {
	w.mu.RLock()
	players := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		players = append(players, p)
	}
	w.mu.RUnlock()

	for _, p := range players {
		fn(p)
	}
}

// Update reconciles every player's grid cell with its current position.
// It takes the registry read lock only while snapshotting, so concurrent
// QueryRadius calls cannot deadlock against it.
func (w *World) Update(dt float64) {
	w.ForEach(func(p *Player) {
		pos := p.GetPosition()
		w.grid.Update(p.PeerID, pos.X, pos.Z)
	})
}

// PlayersInRadius joins a grid query with the player registry. IDs without
// a live player are skipped; a disconnect between the query and the join is
// not an error.
func (w *World) PlayersInRadius(x, z, r float32) []*Player {
	ids := w.grid.QueryRadius(x, z, r)

	w.mu.RLock()
	defer w.mu.RUnlock()

	result := make([]*Player, 0, len(ids))
	for _, id := range ids {
		if p, ok := w.players[id]; ok {
			result = append(result, p)
		}
	}
	return result
}

// Snapshots returns the serializable state of every player for WORLD_STATE.
func (w *World) Snapshots() []PlayerJSON {
	w.mu.RLock()
	players := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		players = append(players, p)
	}
	w.mu.RUnlock()

	out := make([]PlayerJSON, 0, len(players))
	for _, p := range players {
		out = append(out, p.Snapshot())
	}
	return out
}

// IdlePlayers returns players whose last activity is older than cutoff.
func (w *World) IdlePlayers(cutoff time.Duration) []*Player {
	now := time.Now()

	w.mu.RLock()
	defer w.mu.RUnlock()

	var idle []*Player
	for _, p := range w.players {
		if now.Sub(p.IdleSince()) > cutoff {
			idle = append(idle, p)
		}
	}
	return idle
}
