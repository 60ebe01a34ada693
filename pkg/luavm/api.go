package luavm

import (
	"log/slog"
	"time"

	"github.com/AlexbavGamer/enet-gameserver/pkg/authutil"

	"github.com/Shopify/go-lua"
)

// PlayerInfo is the player view handed to scripts.
type PlayerInfo struct {
	PeerID   uint32
	DBID     uint64
	Username string
	X, Y, Z  float64
	Health   int
	Level    int
}

// Account is one persistence row as seen by the login scripts.
type Account struct {
	ID           uint64
	Username     string
	PasswordHash string
	Salt         string
	Level        int
	Health       int
	X, Y, Z      float64
}

// ServerFacade is the only surface scripts may call back into. Everything
// here is safe to invoke from a hook running on the sim thread.
type ServerFacade interface {
	SendPacket(peer uint32, packetType uint8, body []byte, reliable bool) bool
	BroadcastPacket(packetType uint8, body []byte, exclude uint32) bool
	DisconnectPeer(peer uint32)

	AddPlayer(peer uint32, dbID uint64, username string, x, y, z float64) bool
	RemovePlayer(peer uint32)
	GetPlayer(peer uint32) (PlayerInfo, bool)
	SetPlayerPosition(peer uint32, x, y, z float64) bool
	SetPlayerHealth(peer uint32, health int) bool
	SetPlayerLevel(peer uint32, level int) bool
	PlayerCount() int
	PlayersInRadius(x, z, r float64) []uint32

	RegisterRPC(name string, luaFunc string) (uint16, error)
	RegisterRPCWithID(id uint16, name string, luaFunc string) error

	EnqueuePosition(dbID uint64, x, y, z float64) bool
	EnqueueStats(dbID uint64, level, health int) bool
	GetAccount(username string) (*Account, bool, error)
	CreateAccount(username, passwordHash, salt string) (uint64, error)
}

// GameAPI registers the scripting surface into a VM.
type GameAPI struct {
	server ServerFacade
	vm     *VM
	logger *slog.Logger
}

func NewGameAPI(server ServerFacade, logger *slog.Logger) *GameAPI {
	if logger == nil {
		logger = slog.Default()
	}
	return &GameAPI{
		server: server,
		logger: logger,
	}
}

func (api *GameAPI) RegisterFunctions(vm *VM) {
	api.vm = vm
	state := vm.State()

	state.Register("log", api.log)

	state.Register("send_packet", api.sendPacket)
	state.Register("broadcast_packet", api.broadcastPacket)
	state.Register("disconnect_peer", api.disconnectPeer)

	state.Register("add_player", api.addPlayer)
	state.Register("remove_player", api.removePlayer)
	state.Register("get_player", api.getPlayer)
	state.Register("get_player_count", api.getPlayerCount)
	state.Register("set_player_position", api.setPlayerPosition)
	state.Register("set_player_health", api.setPlayerHealth)
	state.Register("set_player_level", api.setPlayerLevel)
	state.Register("players_in_radius", api.playersInRadius)

	state.Register("register_rpc", api.registerRPC)
	state.Register("register_rpc_with_id", api.registerRPCWithID)

	state.Register("enqueue_position", api.enqueuePosition)
	state.Register("enqueue_stats", api.enqueueStats)
	state.Register("get_account", api.getAccount)
	state.Register("create_account", api.createAccount)

	state.Register("hash_password", api.hashPassword)
	state.Register("verify_password", api.verifyPassword)
	state.Register("generate_salt", api.generateSalt)
	state.Register("generate_session_token", api.generateSessionToken)

	state.Register("schedule_callback", api.scheduleCallback)
	state.Register("cancel_callback", api.cancelCallback)
}

func (api *GameAPI) log(state *lua.State) int {
	level, _ := state.ToString(1)
	message, _ := state.ToString(2)

	switch level {
	case "debug":
		api.logger.Debug(message, "source", "lua")
	case "warn":
		api.logger.Warn(message, "source", "lua")
	case "error":
		api.logger.Error(message, "source", "lua")
	default:
		api.logger.Info(message, "source", "lua")
	}
	return 0
}

func (api *GameAPI) sendPacket(state *lua.State) int {
	peer, _ := state.ToInteger(1)
	packetType, _ := state.ToInteger(2)
	body, _ := state.ToString(3)
	reliable := state.ToBoolean(4)

	ok := api.server.SendPacket(uint32(peer), uint8(packetType), []byte(body), reliable)
	state.PushBoolean(ok)
	return 1
}

func (api *GameAPI) broadcastPacket(state *lua.State) int {
	packetType, _ := state.ToInteger(1)
	body, _ := state.ToString(2)
	exclude, _ := state.ToInteger(3)

	ok := api.server.BroadcastPacket(uint8(packetType), []byte(body), uint32(exclude))
	state.PushBoolean(ok)
	return 1
}

func (api *GameAPI) disconnectPeer(state *lua.State) int {
	peer, _ := state.ToInteger(1)
	api.server.DisconnectPeer(uint32(peer))
	return 0
}

func (api *GameAPI) addPlayer(state *lua.State) int {
	peer, _ := state.ToInteger(1)
	dbID, _ := state.ToInteger(2)
	username, _ := state.ToString(3)
	x, _ := state.ToNumber(4)
	y, _ := state.ToNumber(5)
	z, _ := state.ToNumber(6)

	ok := api.server.AddPlayer(uint32(peer), uint64(dbID), username, x, y, z)
	state.PushBoolean(ok)
	return 1
}

func (api *GameAPI) removePlayer(state *lua.State) int {
	peer, _ := state.ToInteger(1)
	api.server.RemovePlayer(uint32(peer))
	return 0
}

func pushPlayerTable(state *lua.State, info PlayerInfo) {
	state.NewTable()
	state.PushInteger(int(info.PeerID))
	state.SetField(-2, "peer_id")
	state.PushInteger(int(info.DBID))
	state.SetField(-2, "db_id")
	state.PushString(info.Username)
	state.SetField(-2, "username")
	state.PushInteger(info.Health)
	state.SetField(-2, "health")
	state.PushInteger(info.Level)
	state.SetField(-2, "level")

	state.NewTable()
	state.PushNumber(info.X)
	state.SetField(-2, "x")
	state.PushNumber(info.Y)
	state.SetField(-2, "y")
	state.PushNumber(info.Z)
	state.SetField(-2, "z")
	state.SetField(-2, "position")
}

func (api *GameAPI) getPlayer(state *lua.State) int {
	peer, _ := state.ToInteger(1)

	info, ok := api.server.GetPlayer(uint32(peer))
	if !ok {
		state.PushNil()
		return 1
	}
	pushPlayerTable(state, info)
	return 1
}

func (api *GameAPI) getPlayerCount(state *lua.State) int {
	state.PushInteger(api.server.PlayerCount())
	return 1
}

func (api *GameAPI) setPlayerPosition(state *lua.State) int {
	peer, _ := state.ToInteger(1)
	x, _ := state.ToNumber(2)
	y, _ := state.ToNumber(3)
	z, _ := state.ToNumber(4)

	state.PushBoolean(api.server.SetPlayerPosition(uint32(peer), x, y, z))
	return 1
}

func (api *GameAPI) setPlayerHealth(state *lua.State) int {
	peer, _ := state.ToInteger(1)
	health, _ := state.ToInteger(2)

	state.PushBoolean(api.server.SetPlayerHealth(uint32(peer), health))
	return 1
}

func (api *GameAPI) setPlayerLevel(state *lua.State) int {
	peer, _ := state.ToInteger(1)
	level, _ := state.ToInteger(2)

	state.PushBoolean(api.server.SetPlayerLevel(uint32(peer), level))
	return 1
}

func (api *GameAPI) playersInRadius(state *lua.State) int {
	x, _ := state.ToNumber(1)
	z, _ := state.ToNumber(2)
	r, _ := state.ToNumber(3)

	peers := api.server.PlayersInRadius(x, z, r)

	state.NewTable()
	for i, peer := range peers {
		state.PushInteger(int(peer))
		state.RawSetInt(-2, i+1)
	}
	return 1
}

func (api *GameAPI) registerRPC(state *lua.State) int {
	name, _ := state.ToString(1)
	luaFunc, _ := state.ToString(2)

	id, err := api.server.RegisterRPC(name, luaFunc)
	if err != nil {
		api.logger.Error("rpc registration failed", "method", name, "error", err)
		lua.Errorf(state, "rpc registration failed: %s", err.Error())
		panic("unreachable")
	}
	state.PushInteger(int(id))
	return 1
}

func (api *GameAPI) registerRPCWithID(state *lua.State) int {
	id, _ := state.ToInteger(1)
	name, _ := state.ToString(2)
	luaFunc, _ := state.ToString(3)

	if err := api.server.RegisterRPCWithID(uint16(id), name, luaFunc); err != nil {
		api.logger.Error("rpc registration failed", "method", name, "id", id, "error", err)
		lua.Errorf(state, "rpc registration failed: %s", err.Error())
		panic("unreachable")
	}
	state.PushBoolean(true)
	return 1
}

func (api *GameAPI) enqueuePosition(state *lua.State) int {
	dbID, _ := state.ToInteger(1)
	x, _ := state.ToNumber(2)
	y, _ := state.ToNumber(3)
	z, _ := state.ToNumber(4)

	state.PushBoolean(api.server.EnqueuePosition(uint64(dbID), x, y, z))
	return 1
}

func (api *GameAPI) enqueueStats(state *lua.State) int {
	dbID, _ := state.ToInteger(1)
	level, _ := state.ToInteger(2)
	health, _ := state.ToInteger(3)

	state.PushBoolean(api.server.EnqueueStats(uint64(dbID), level, health))
	return 1
}

func (api *GameAPI) getAccount(state *lua.State) int {
	username, _ := state.ToString(1)

	account, found, err := api.server.GetAccount(username)
	if err != nil {
		api.logger.Error("account lookup failed", "username", username, "error", err)
		state.PushNil()
		return 1
	}
	if !found {
		state.PushNil()
		return 1
	}

	state.NewTable()
	state.PushInteger(int(account.ID))
	state.SetField(-2, "id")
	state.PushString(account.Username)
	state.SetField(-2, "username")
	state.PushString(account.PasswordHash)
	state.SetField(-2, "password_hash")
	state.PushString(account.Salt)
	state.SetField(-2, "salt")
	state.PushInteger(account.Level)
	state.SetField(-2, "level")
	state.PushInteger(account.Health)
	state.SetField(-2, "health")
	state.PushNumber(account.X)
	state.SetField(-2, "x")
	state.PushNumber(account.Y)
	state.SetField(-2, "y")
	state.PushNumber(account.Z)
	state.SetField(-2, "z")
	return 1
}

func (api *GameAPI) createAccount(state *lua.State) int {
	username, _ := state.ToString(1)
	passwordHash, _ := state.ToString(2)
	salt, _ := state.ToString(3)

	id, err := api.server.CreateAccount(username, passwordHash, salt)
	if err != nil {
		api.logger.Error("account creation failed", "username", username, "error", err)
		state.PushNil()
		return 1
	}
	state.PushInteger(int(id))
	return 1
}

func (api *GameAPI) hashPassword(state *lua.State) int {
	password, _ := state.ToString(1)
	salt, _ := state.ToString(2)
	state.PushString(authutil.HashPassword(password, salt))
	return 1
}

func (api *GameAPI) verifyPassword(state *lua.State) int {
	password, _ := state.ToString(1)
	hash, _ := state.ToString(2)
	salt, _ := state.ToString(3)
	state.PushBoolean(authutil.VerifyPassword(password, hash, salt))
	return 1
}

func (api *GameAPI) generateSalt(state *lua.State) int {
	salt, err := authutil.GenerateSalt(authutil.DefaultSaltLen)
	if err != nil {
		state.PushNil()
		return 1
	}
	state.PushString(salt)
	return 1
}

func (api *GameAPI) generateSessionToken(state *lua.State) int {
	token, err := authutil.GenerateSessionToken()
	if err != nil {
		state.PushNil()
		return 1
	}
	state.PushString(token)
	return 1
}

func (api *GameAPI) scheduleCallback(state *lua.State) int {
	callback, _ := state.ToString(1)
	intervalMs, _ := state.ToInteger(2)
	repeat := state.ToBoolean(3)

	if api.vm == nil {
		state.PushInteger(-1)
		return 1
	}
	id := api.vm.RegisterTimer(callback, time.Duration(intervalMs)*time.Millisecond, repeat)
	state.PushInteger(id)
	return 1
}

func (api *GameAPI) cancelCallback(state *lua.State) int {
	id, _ := state.ToInteger(1)
	if api.vm != nil {
		api.vm.CancelTimer(id)
	}
	return 0
}
