package protocol

import (
	"fmt"
	"math"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const (
	DefaultPort       = 7777
	DefaultMaxClients = 32
	ChannelCount      = 2
)

// PacketType is the first byte of every datagram; the rest is the body.
type PacketType uint8

const (
	PacketTypeConnect      PacketType = 0
	PacketTypeDisconnect   PacketType = 1
	PacketTypeAuthRequest  PacketType = 2
	PacketTypeAuthResponse PacketType = 3
	PacketTypePlayerMove   PacketType = 4
	PacketTypePlayerAction PacketType = 5
	PacketTypeChatMessage  PacketType = 6
	PacketTypeWorldState   PacketType = 7
	// PacketTypeRPCCall shares the REMOTE_CALL payload and decoding path.
	// Whether it is legacy or a parallel channel is an open protocol
	// question; it is accepted as an alias for now.
	PacketTypeRPCCall    PacketType = 8
	PacketTypeBroadcast  PacketType = 9
	PacketTypeRemoteCall PacketType = 0x20
)

func (t PacketType) String() string {
	switch t {
	case PacketTypeConnect:
		return "connect"
	case PacketTypeDisconnect:
		return "disconnect"
	case PacketTypeAuthRequest:
		return "auth_request"
	case PacketTypeAuthResponse:
		return "auth_response"
	case PacketTypePlayerMove:
		return "player_move"
	case PacketTypePlayerAction:
		return "player_action"
	case PacketTypeChatMessage:
		return "chat_message"
	case PacketTypeWorldState:
		return "world_state"
	case PacketTypeRPCCall:
		return "rpc_call"
	case PacketTypeBroadcast:
		return "broadcast"
	case PacketTypeRemoteCall:
		return "remote_call"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Reliable reports the default delivery flag for a packet type. AUTH_* and
// RPC traffic must arrive; state snapshots and movement are latency-bound.
func (t PacketType) Reliable() bool {
	switch t {
	case PacketTypeWorldState, PacketTypePlayerMove:
		return false
	default:
		return true
	}
}

type Vector3f struct {
	X, Y, Z float32
}

// PlayerMoveBody is the PLAYER_MOVE payload: three little-endian float32s.
type PlayerMoveBody struct {
	Position Vector3f
}

const playerMoveBodyLen = 12

func (p *PlayerMoveBody) Decode(data []byte) error {
	if len(data) < playerMoveBodyLen {
		return fmt.Errorf("player move body too short: %d bytes", len(data))
	}
	ds := NewDataStream(data)
	var err error
	if p.Position.X, err = ds.ReadFloat32(); err != nil {
		return err
	}
	if p.Position.Y, err = ds.ReadFloat32(); err != nil {
		return err
	}
	if p.Position.Z, err = ds.ReadFloat32(); err != nil {
		return err
	}
	return nil
}

func (p *PlayerMoveBody) Encode() []byte {
	ds := NewDataStreamWriter()
	ds.WriteFloat32(p.Position.X)
	ds.WriteFloat32(p.Position.Y)
	ds.WriteFloat32(p.Position.Z)
	return ds.Bytes()
}

func IsValidPosition(x, y, z float32) bool {
	for _, v := range [3]float32{x, y, z} {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// StringToCP437 converts a UTF-8 string to CP437 bytes for clients and
// consoles that still speak the DOS codepage. Unmappable runes fail.
func StringToCP437(s string) ([]byte, error) {
	return charmap.CodePage437.NewEncoder().Bytes([]byte(s))
}

func CP437ToString(b []byte) (string, error) {
	decoded, err := charmap.CodePage437.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// ConsoleSafe renders chat bytes for logging: UTF-8 passthrough when valid,
// CP437 decode otherwise.
func ConsoleSafe(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	if s, err := CP437ToString(b); err == nil {
		return s
	}
	return string(b)
}
