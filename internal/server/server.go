package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/AlexbavGamer/enet-gameserver/internal/anticheat"
	"github.com/AlexbavGamer/enet-gameserver/internal/network"
	"github.com/AlexbavGamer/enet-gameserver/internal/perf"
	"github.com/AlexbavGamer/enet-gameserver/internal/persistence"
	"github.com/AlexbavGamer/enet-gameserver/internal/protocol"
	"github.com/AlexbavGamer/enet-gameserver/internal/rpc"
	"github.com/AlexbavGamer/enet-gameserver/internal/world"
	"github.com/AlexbavGamer/enet-gameserver/pkg/config"
	"github.com/AlexbavGamer/enet-gameserver/pkg/luavm"
)

const (
	pollTimeout      = time.Millisecond
	maxEventsPerTick = 256
)

// accountStore is the store shape the login path needs on top of the
// queue-facing port.
type accountStore interface {
	persistence.Store
	CreatePlayer(rec *persistence.PlayerRecord) (uint64, error)
}

// Server owns the simulation. The tick loop is the single mutator of world
// state; the transport is polled only from it.
type Server struct {
	config    *config.Config
	logger    *slog.Logger
	transport *network.Transport
	world     *world.World
	antiCheat *anticheat.AntiCheat
	rpc       *rpc.Dispatcher
	store     accountStore
	persist   *persistence.Port
	monitor   *perf.Monitor
	vm        *luavm.VM
	hooks     *Hooks

	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	tickRate time.Duration

	stateAccum   float64
	persistAccum float64
	lastDT       float64
}

// WorldStateJSON is the WORLD_STATE snapshot body.
type WorldStateJSON struct {
	Players []world.PlayerJSON `json:"players"`
}

func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	transport, err := network.NewTransport(cfg.Server.Port, cfg.Server.MaxClients, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	var store accountStore
	if cfg.Database.Connection != "" {
		mysqlStore, err := persistence.OpenMySQL(cfg.Database.Connection, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store = mysqlStore
	} else {
		logger.Warn("no database connection configured, using in-memory store")
		store = persistence.NewMemoryStore()
	}

	ctx, cancel := context.WithCancel(context.Background())

	srv := &Server{
		config:    cfg,
		logger:    logger,
		transport: transport,
		world:     world.New(float32(cfg.Server.CellSize)),
		rpc:       rpc.NewDispatcher(logger),
		store:     store,
		monitor:   perf.NewMonitor(logger),
		ctx:       ctx,
		cancel:    cancel,
		tickRate:  time.Second / time.Duration(cfg.Server.TickRate),
	}

	srv.antiCheat = anticheat.New(anticheat.Config{
		MaxSpeed:            cfg.AntiCheat.MaxSpeed,
		MaxActionsPerSecond: cfg.AntiCheat.MaxActionsPerSecond,
		SuspiciousThreshold: cfg.AntiCheat.SuspiciousThreshold,
	}, logger)

	srv.persist = persistence.NewPort(store, cfg.Database.QueueSize, logger)
	srv.persist.SetApplyObserver(func(d time.Duration, err error) {
		srv.monitor.RecordDatabaseQuery(d)
	})

	return srv, nil
}

// Start binds the transport and loads the scripts. Registration of RPC
// methods happens here, before the first tick; a registration conflict is
// fatal.
func (s *Server) Start() error {
	if err := s.transport.Start(); err != nil {
		return fmt.Errorf("transport init: %w", err)
	}

	if err := s.loadScripts(); err != nil {
		return err
	}

	s.running.Store(true)
	s.logger.Info("server started",
		"port", s.config.Server.Port,
		"max_clients", s.config.Server.MaxClients,
		"tick_rate", s.config.Server.TickRate)
	return nil
}

func (s *Server) loadScripts() error {
	mainScript := filepath.Join(s.config.Scripts.Path, "main.lua")
	if !luavm.FileExists(mainScript) {
		s.logger.Warn("no main.lua found, running without scripts", "path", mainScript)
		s.hooks = NewHooks(nil, s.logger)
		return nil
	}

	s.vm = luavm.NewVM()
	api := luavm.NewGameAPI(s, s.logger)
	api.RegisterFunctions(s.vm)

	if err := s.vm.LoadFile(mainScript); err != nil {
		return fmt.Errorf("failed to load scripts: %w", err)
	}

	s.hooks = NewHooks(s.vm, s.logger)
	s.logger.Info("scripts loaded", "path", mainScript)
	return nil
}

// Stop requests shutdown; the current tick finishes first.
func (s *Server) Stop() {
	s.cancel()
}

// Run drives the fixed-rate main loop until Stop, then performs the
// ordered shutdown. Nothing on the steady-state path aborts the process.
func (s *Server) Run() {
	s.logger.Info("main loop started")

	lastTime := time.Now()
	lastReport := lastTime
	lastCleanup := lastTime

	for s.running.Load() {
		select {
		case <-s.ctx.Done():
			s.running.Store(false)
			continue
		default:
		}

		frameStart := time.Now()
		s.monitor.StartFrame()

		dt := frameStart.Sub(lastTime).Seconds()
		lastTime = frameStart
		s.lastDT = dt

		s.processEvents()
		s.update(dt)

		if s.config.Cleanup.Enabled &&
			frameStart.Sub(lastCleanup).Seconds() >= s.config.Cleanup.Interval {
			s.cleanupIdlePlayers()
			lastCleanup = frameStart
		}

		s.monitor.SetConnectedPlayers(s.world.Count())
		s.monitor.SetDBQueueStats(s.persist.QueueDepth(), s.persist.Dropped())
		s.monitor.EndFrame()

		if frameStart.Sub(lastReport).Seconds() >= s.config.Server.PerfReportPeriod {
			s.monitor.Report()
			lastReport = frameStart
		}

		if elapsed := time.Since(frameStart); elapsed < s.tickRate {
			time.Sleep(s.tickRate - elapsed)
		}
	}

	s.shutdown()
}

func (s *Server) processEvents() {
	events, err := s.transport.Poll(pollTimeout, maxEventsPerTick)
	if err != nil {
		s.logger.Error("transport poll failed", "error", err)
		return
	}

	for _, event := range events {
		switch event.Kind {
		case network.EventConnect:
			s.handleConnect(event.Peer)

		case network.EventDisconnect:
			s.handleDisconnect(event.Peer)

		case network.EventReceive:
			s.monitor.RecordPacketReceived()
			s.handlePacket(event.Peer, event.Type, event.Body)
		}
	}
}

func (s *Server) handleConnect(peer network.PeerID) {
	s.logger.Info("client connected", "peer", peer)
	// No Player yet; the script hook inserts one once auth succeeds.
	s.hooks.OnPlayerConnect(peer, "")
}

func (s *Server) handleDisconnect(peer network.PeerID) {
	username := ""
	if p, ok := s.world.Get(peer); ok {
		username = p.Username
	}
	s.logger.Info("client disconnected", "peer", peer, "username", username)

	s.world.Remove(peer)
	s.antiCheat.Purge(peer)
	s.hooks.OnPlayerDisconnect(peer, username)
}

func (s *Server) handlePacket(peer network.PeerID, packetType protocol.PacketType, body []byte) {
	switch packetType {
	case protocol.PacketTypeAuthRequest:
		s.hooks.HandleAuthRequest(peer, body)

	case protocol.PacketTypePlayerMove:
		s.handlePlayerMove(peer, body)

	case protocol.PacketTypePlayerAction:
		s.handlePlayerAction(peer, body)

	case protocol.PacketTypeChatMessage:
		s.logger.Debug("chat message", "peer", peer, "text", protocol.ConsoleSafe(body))
		s.hooks.HandleChatMessage(peer, body)

	case protocol.PacketTypeRemoteCall:
		s.handleRemoteCall(peer, body)

	case protocol.PacketTypeRPCCall:
		s.logger.Debug("legacy rpc_call tag", "peer", peer)
		s.handleRemoteCall(peer, body)

	default:
		s.logger.Warn("unhandled packet", "peer", peer, "type", packetType, "len", len(body))
	}
}

func (s *Server) handlePlayerMove(peer network.PeerID, body []byte) {
	player, ok := s.world.Get(peer)
	if !ok {
		s.logger.Debug("move from peer without player", "peer", peer)
		return
	}

	var move protocol.PlayerMoveBody
	if err := move.Decode(body); err != nil {
		s.logger.Warn("invalid player move body", "peer", peer, "error", err)
		return
	}
	pos := move.Position
	if !protocol.IsValidPosition(pos.X, pos.Y, pos.Z) {
		s.logger.Warn("rejecting non-finite position", "peer", peer)
		return
	}

	if s.config.AntiCheat.Enabled {
		old := player.GetPosition()
		dt := s.lastDT
		if dt <= 0 {
			dt = s.tickRate.Seconds()
		}
		if !s.antiCheat.ValidateMovement(peer,
			float64(old.X), float64(old.Z),
			float64(pos.X), float64(pos.Z), dt) {
			// A failed check alone does not drop the connection; only the
			// suspicion threshold does.
			if s.antiCheat.ShouldBan(peer) {
				s.logger.Warn("disconnecting peer for cheating", "peer", peer)
				s.transport.Disconnect(peer)
				return
			}
		}
	}

	player.SetPosition(pos)
	s.hooks.HandlePlayerMove(peer, body)
}

func (s *Server) handlePlayerAction(peer network.PeerID, body []byte) {
	// Rate-limited actions are silently dropped; the peer stays connected.
	if s.config.AntiCheat.Enabled && !s.antiCheat.ValidateAction(peer, "action") {
		return
	}
	if p, ok := s.world.Get(peer); ok {
		p.Touch()
	}
	s.hooks.HandlePlayerAction(peer, body)
}

func (s *Server) handleRemoteCall(peer network.PeerID, body []byte) {
	call, err := rpc.DecodeCall(body)
	if err != nil {
		s.logger.Warn("bad rpc frame", "peer", peer, "error", err)
		return
	}

	if err := s.rpc.Dispatch(peer, call.MethodID, call.Args); err != nil {
		if errors.Is(err, rpc.ErrUnknownMethod) {
			s.logger.Warn("rpc method not registered", "peer", peer, "method_id", call.MethodID)
			return
		}
		s.logger.Error("rpc dispatch failed", "peer", peer, "error", err)
	}
}

func (s *Server) update(dt float64) {
	s.world.Update(dt)
	s.hooks.UpdateWorld(dt)
	s.hooks.UpdateTimers()

	s.stateAccum += dt
	if s.stateAccum >= s.config.Server.StateBroadcastPeriod {
		s.broadcastWorldState()
		s.stateAccum = 0
	}

	s.persistAccum += dt
	if s.persistAccum >= s.config.Server.PersistPeriod {
		s.persistPlayerStates()
		s.persistAccum = 0
	}
}

func (s *Server) broadcastWorldState() {
	snapshot := WorldStateJSON{Players: s.world.Snapshots()}
	if snapshot.Players == nil {
		snapshot.Players = []world.PlayerJSON{}
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error("failed to encode world state", "error", err)
		return
	}

	if s.transport.Broadcast(protocol.PacketTypeWorldState, body, 0) {
		s.monitor.RecordPacketSent()
	}
}

func (s *Server) persistPlayerStates() {
	s.world.ForEach(func(p *world.Player) {
		pos := p.GetPosition()
		if !s.persist.EnqueueUpdatePosition(p.DBID,
			float64(pos.X), float64(pos.Y), float64(pos.Z)) {
			s.logger.Warn("persistence queue full, dropping position write",
				"player", p.Username)
		}
	})
}

func (s *Server) cleanupIdlePlayers() {
	cutoff := time.Duration(s.config.Cleanup.IdleTimeout * float64(time.Second))
	for _, p := range s.world.IdlePlayers(cutoff) {
		s.logger.Info("removing idle player", "peer", p.PeerID, "username", p.Username)
		s.world.Remove(p.PeerID)
		s.transport.Disconnect(p.PeerID)
	}
}

// shutdown runs once after the loop exits: final snapshot, worker drain,
// then transport teardown.
func (s *Server) shutdown() {
	s.logger.Info("shutting down")

	s.persistPlayerStates()

	if err := s.persist.Close(); err != nil {
		s.logger.Error("persistence close failed", "error", err)
	}

	s.transport.Stop()

	if s.vm != nil {
		s.vm.Close()
	}

	s.monitor.Report()
	s.logger.Info("shutdown complete")
}
