package server

import (
	"github.com/AlexbavGamer/enet-gameserver/internal/network"
	"github.com/AlexbavGamer/enet-gameserver/internal/persistence"
	"github.com/AlexbavGamer/enet-gameserver/internal/protocol"
	"github.com/AlexbavGamer/enet-gameserver/internal/rpc"
	"github.com/AlexbavGamer/enet-gameserver/internal/world"
	"github.com/AlexbavGamer/enet-gameserver/pkg/luavm"
)

// Server implements luavm.ServerFacade; this file is the documented surface
// scripts may call back through. All of it runs on the sim thread.

func (s *Server) SendPacket(peer uint32, packetType uint8, body []byte, reliable bool) bool {
	ok := s.transport.Send(network.PeerID(peer), protocol.PacketType(packetType), body, reliable)
	if ok {
		s.monitor.RecordPacketSent()
	}
	return ok
}

func (s *Server) BroadcastPacket(packetType uint8, body []byte, exclude uint32) bool {
	ok := s.transport.Broadcast(protocol.PacketType(packetType), body, network.PeerID(exclude))
	if ok {
		s.monitor.RecordPacketSent()
	}
	return ok
}

func (s *Server) DisconnectPeer(peer uint32) {
	s.transport.Disconnect(network.PeerID(peer))
}

// AddPlayer inserts an authenticated player. The peer must still be
// connected; a player for a vanished peer would dangle in the grid.
func (s *Server) AddPlayer(peer uint32, dbID uint64, username string, x, y, z float64) bool {
	id := network.PeerID(peer)
	if !s.transport.Registry().Contains(id) {
		s.logger.Warn("add_player for unknown peer", "peer", peer)
		return false
	}
	if _, taken := s.world.GetByUsername(username); taken {
		s.logger.Warn("add_player with duplicate username", "username", username)
		return false
	}

	p := world.NewPlayer(id, dbID, username)
	p.SetPosition(protocol.Vector3f{X: float32(x), Y: float32(y), Z: float32(z)})
	s.world.Add(p)
	s.logger.Info("player joined", "peer", peer, "username", username)
	return true
}

func (s *Server) RemovePlayer(peer uint32) {
	s.world.Remove(network.PeerID(peer))
}

func (s *Server) GetPlayer(peer uint32) (luavm.PlayerInfo, bool) {
	p, ok := s.world.Get(network.PeerID(peer))
	if !ok {
		return luavm.PlayerInfo{}, false
	}
	snap := p.Snapshot()
	return luavm.PlayerInfo{
		PeerID:   snap.PeerID,
		DBID:     snap.DBID,
		Username: snap.Username,
		X:        float64(snap.Position.X),
		Y:        float64(snap.Position.Y),
		Z:        float64(snap.Position.Z),
		Health:   snap.Health,
		Level:    snap.Level,
	}, true
}

func (s *Server) SetPlayerPosition(peer uint32, x, y, z float64) bool {
	p, ok := s.world.Get(network.PeerID(peer))
	if !ok {
		return false
	}
	p.SetPosition(protocol.Vector3f{X: float32(x), Y: float32(y), Z: float32(z)})
	return true
}

func (s *Server) SetPlayerHealth(peer uint32, health int) bool {
	p, ok := s.world.Get(network.PeerID(peer))
	if !ok {
		return false
	}
	p.SetHealth(health)
	return true
}

func (s *Server) SetPlayerLevel(peer uint32, level int) bool {
	p, ok := s.world.Get(network.PeerID(peer))
	if !ok {
		return false
	}
	p.SetLevel(level)
	return true
}

func (s *Server) PlayerCount() int {
	return s.world.Count()
}

func (s *Server) PlayersInRadius(x, z, r float64) []uint32 {
	players := s.world.PlayersInRadius(float32(x), float32(z), float32(r))
	out := make([]uint32, 0, len(players))
	for _, p := range players {
		out = append(out, uint32(p.PeerID))
	}
	return out
}

func (s *Server) RegisterRPC(name string, luaFunc string) (uint16, error) {
	return s.rpc.Register(name, s.luaRPCHandler(luaFunc))
}

func (s *Server) RegisterRPCWithID(id uint16, name string, luaFunc string) error {
	return s.rpc.RegisterWithID(id, name, s.luaRPCHandler(luaFunc))
}

func (s *Server) luaRPCHandler(luaFunc string) rpc.Handler {
	return func(peer network.PeerID, args []rpc.Variant) {
		if s.vm == nil {
			return
		}
		luaArgs := make([]interface{}, 0, len(args))
		for i := range args {
			luaArgs = append(luaArgs, variantToLua(args[i]))
		}
		if err := s.vm.CallFunction(luaFunc, uint32(peer), luaArgs); err != nil {
			s.logger.Error("rpc script handler failed", "handler", luaFunc, "error", err)
		}
	}
}

func variantToLua(v rpc.Variant) interface{} {
	switch v.Type {
	case rpc.TypeBool:
		return v.Bool
	case rpc.TypeInt:
		return v.Int
	case rpc.TypeFloat:
		return v.Float
	case rpc.TypeString:
		return v.Str
	case rpc.TypeVector3:
		return map[string]interface{}{"x": v.Vec.X, "y": v.Vec.Y, "z": v.Vec.Z}
	case rpc.TypeArray:
		arr := make([]interface{}, 0, len(v.Array))
		for i := range v.Array {
			arr = append(arr, variantToLua(v.Array[i]))
		}
		return arr
	case rpc.TypeDict:
		dict := make(map[string]interface{}, len(v.Dict))
		for i := range v.Dict {
			dict[v.Dict[i].Key] = variantToLua(v.Dict[i].Value)
		}
		return dict
	default:
		return nil
	}
}

func (s *Server) EnqueuePosition(dbID uint64, x, y, z float64) bool {
	return s.persist.EnqueueUpdatePosition(dbID, x, y, z)
}

func (s *Server) EnqueueStats(dbID uint64, level, health int) bool {
	return s.persist.EnqueueUpdateStats(dbID, level, health)
}

func (s *Server) GetAccount(username string) (*luavm.Account, bool, error) {
	rec, found, err := s.persist.GetPlayerByUsername(username)
	if err != nil || !found {
		return nil, found, err
	}
	return &luavm.Account{
		ID:           rec.ID,
		Username:     rec.Username,
		PasswordHash: rec.PasswordHash,
		Salt:         rec.Salt,
		Level:        rec.Level,
		Health:       rec.Health,
		X:            rec.X,
		Y:            rec.Y,
		Z:            rec.Z,
	}, true, nil
}

func (s *Server) CreateAccount(username, passwordHash, salt string) (uint64, error) {
	return s.store.CreatePlayer(&persistence.PlayerRecord{
		Username:     username,
		PasswordHash: passwordHash,
		Salt:         salt,
		Level:        1,
		Health:       100,
	})
}
