package world

import (
	"math"
	"sync"

	"github.com/AlexbavGamer/enet-gameserver/internal/network"
)

const DefaultCellSize = 50.0

type cell struct {
	X, Z int32
}

// Grid is a hashed uniform grid over (x, z). One reader-writer lock guards
// the whole index: queries share, mutations are exclusive. Cells with no
// occupants are pruned so memory stays proportional to occupied cells.
type Grid struct {
	mu       sync.RWMutex
	cellSize float32
	cells    map[cell][]network.PeerID
	peerCell map[network.PeerID]cell
}

func NewGrid(cellSize float32) *Grid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cell][]network.PeerID),
		peerCell: make(map[network.PeerID]cell),
	}
}

func (g *Grid) cellFor(x, z float32) cell {
	return cell{
		X: int32(math.Floor(float64(x / g.cellSize))),
		Z: int32(math.Floor(float64(z / g.cellSize))),
	}
}

func (g *Grid) Insert(peer network.PeerID, x, z float32) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c := g.cellFor(x, z)
	g.cells[c] = append(g.cells[c], peer)
	g.peerCell[peer] = c
}

func (g *Grid) Remove(peer network.PeerID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(peer)
}

func (g *Grid) removeLocked(peer network.PeerID) {
	c, ok := g.peerCell[peer]
	if !ok {
		return
	}

	occupants := g.cells[c]
	for i, id := range occupants {
		if id == peer {
			occupants[i] = occupants[len(occupants)-1]
			occupants = occupants[:len(occupants)-1]
			break
		}
	}

	if len(occupants) == 0 {
		delete(g.cells, c)
	} else {
		g.cells[c] = occupants
	}
	delete(g.peerCell, peer)
}

// Update moves a peer to the cell covering (x, z). No-op when the cell is
// unchanged; otherwise the move is atomic under the exclusive lock.
func (g *Grid) Update(peer network.PeerID, x, z float32) {
	g.mu.Lock()
	defer g.mu.Unlock()

	newCell := g.cellFor(x, z)
	oldCell, ok := g.peerCell[peer]
	if !ok {
		return
	}
	if oldCell == newCell {
		return
	}

	g.removeLocked(peer)
	g.cells[newCell] = append(g.cells[newCell], peer)
	g.peerCell[peer] = newCell
}

func (g *Grid) Contains(peer network.PeerID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.peerCell[peer]
	return ok
}

// QueryRadius returns every peer in the cells covering the disk of radius r
// around (x, z). Cell-granular: callers needing an exact radius apply a
// second distance filter.
func (g *Grid) QueryRadius(x, z, r float32) []network.PeerID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cellRadius := int32(math.Ceil(float64(r / g.cellSize)))
	center := g.cellFor(x, z)

	var result []network.PeerID
	for dx := -cellRadius; dx <= cellRadius; dx++ {
		for dz := -cellRadius; dz <= cellRadius; dz++ {
			c := cell{X: center.X + dx, Z: center.Z + dz}
			result = append(result, g.cells[c]...)
		}
	}
	return result
}

// QueryArea returns every peer in the cells intersecting the AABB.
func (g *Grid) QueryArea(minX, minZ, maxX, maxZ float32) []network.PeerID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	minCell := g.cellFor(minX, minZ)
	maxCell := g.cellFor(maxX, maxZ)

	var result []network.PeerID
	for cx := minCell.X; cx <= maxCell.X; cx++ {
		for cz := minCell.Z; cz <= maxCell.Z; cz++ {
			c := cell{X: cx, Z: cz}
			result = append(result, g.cells[c]...)
		}
	}
	return result
}

// OccupiedCells reports the number of live cells, for metrics.
func (g *Grid) OccupiedCells() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cells)
}
