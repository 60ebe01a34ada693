package server

import (
	"errors"
	"log/slog"

	"github.com/AlexbavGamer/enet-gameserver/internal/network"
	"github.com/AlexbavGamer/enet-gameserver/pkg/luavm"
)

// Hooks is the narrow port the core uses to notify the script layer of
// events. Missing hooks are tolerated; a crashing hook is logged and the
// tick continues.
type Hooks struct {
	vm     *luavm.VM
	logger *slog.Logger
}

func NewHooks(vm *luavm.VM, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{vm: vm, logger: logger}
}

func (h *Hooks) call(name string, args ...interface{}) {
	if h.vm == nil {
		return
	}
	if err := h.vm.CallFunction(name, args...); err != nil {
		if errors.Is(err, luavm.ErrNoFunction) {
			h.logger.Debug("script hook not defined", "hook", name)
			return
		}
		h.logger.Error("script hook failed", "hook", name, "error", err)
	}
}

func (h *Hooks) HandleAuthRequest(peer network.PeerID, body []byte) {
	h.call("handle_auth_request", uint32(peer), body)
}

func (h *Hooks) HandlePlayerMove(peer network.PeerID, body []byte) {
	h.call("handle_player_move", uint32(peer), body)
}

func (h *Hooks) HandlePlayerAction(peer network.PeerID, body []byte) {
	h.call("handle_player_action", uint32(peer), body)
}

func (h *Hooks) HandleChatMessage(peer network.PeerID, body []byte) {
	h.call("handle_chat_message", uint32(peer), body)
}

func (h *Hooks) UpdateWorld(dt float64) {
	h.call("update_world", dt)
}

func (h *Hooks) OnPlayerConnect(peer network.PeerID, username string) {
	h.call("on_player_connect", uint32(peer), username)
}

func (h *Hooks) OnPlayerDisconnect(peer network.PeerID, username string) {
	h.call("on_player_disconnect", uint32(peer), username)
}

// UpdateTimers pumps the script timer wheel once per tick.
func (h *Hooks) UpdateTimers() {
	if h.vm == nil {
		return
	}
	if err := h.vm.UpdateTimers(); err != nil {
		h.logger.Error("script timer failed", "error", err)
	}
}
