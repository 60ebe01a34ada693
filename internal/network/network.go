package network

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/AlexbavGamer/enet-gameserver/internal/protocol"

	"github.com/codecat/go-enet"
)

// Transport owns the ENet UDP host and the peer registry. It is polled by
// the tick loop only; no other goroutine touches the host.
type Transport struct {
	host       enet.Host
	port       uint16
	maxClients int
	registry   *Registry[enet.Peer]
	logger     *slog.Logger
}

type EventKind int

const (
	EventNone EventKind = iota
	EventConnect
	EventDisconnect
	EventReceive
)

// Event is a typed transport event. For EventReceive the leading tag byte
// has already been split off into Type; Body is the remainder. The receive
// buffer is released before the event leaves the transport.
type Event struct {
	Kind EventKind
	Peer PeerID
	Type protocol.PacketType
	Body []byte
}

func NewTransport(port int, maxClients int, logger *slog.Logger) (*Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	return &Transport{
		port:       uint16(port),
		maxClients: maxClients,
		registry:   NewRegistry[enet.Peer](),
		logger:     logger,
	}, nil
}

func (t *Transport) Start() error {
	address := enet.NewListenAddress(t.port)

	var err error
	t.host, err = enet.NewHost(address, uint64(t.maxClients), protocol.ChannelCount, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to create ENet host: %w", err)
	}

	if err := t.host.CompressWithRangeCoder(); err != nil {
		return fmt.Errorf("failed to setup range coder compression: %w", err)
	}

	t.logger.Info("transport started", "port", t.port, "max_clients", t.maxClients)
	return nil
}

func (t *Transport) Stop() {
	if t.host != nil {
		t.host.Destroy()
		t.host = nil
		t.logger.Info("transport stopped")
	}
}

func (t *Transport) Registry() *Registry[enet.Peer] {
	return t.registry
}

func (t *Transport) ConnectedCount() int {
	return t.registry.Count()
}

// Poll drains up to maxEvents pending transport events. The first service
// call blocks for at most timeout; subsequent calls do not block. Events
// keep the order ENet delivered them in, so per-peer order is preserved.
func (t *Transport) Poll(timeout time.Duration, maxEvents int) ([]Event, error) {
	if t.host == nil {
		return nil, fmt.Errorf("transport not started")
	}

	var events []Event
	timeoutMs := uint32(timeout.Milliseconds())

	for i := 0; i < maxEvents; i++ {
		enetEvent := t.host.Service(timeoutMs)
		timeoutMs = 0

		if enetEvent == nil || enetEvent.GetType() == enet.EventNone {
			break
		}

		switch enetEvent.GetType() {
		case enet.EventConnect:
			peer := enetEvent.GetPeer()
			id, err := t.registry.Attach(peer)
			if err != nil {
				t.logger.Warn("connect from attached endpoint", "address", peer.GetAddress(), "error", err)
				continue
			}
			t.logger.Debug("peer connected", "peer", id, "address", peer.GetAddress())
			events = append(events, Event{Kind: EventConnect, Peer: id})

		case enet.EventDisconnect:
			peer := enetEvent.GetPeer()
			id, ok := t.registry.Reverse(peer)
			if !ok {
				continue
			}
			t.registry.Detach(peer)
			t.logger.Debug("peer disconnected", "peer", id)
			events = append(events, Event{Kind: EventDisconnect, Peer: id})

		case enet.EventReceive:
			peer := enetEvent.GetPeer()
			id, ok := t.registry.Reverse(peer)
			packet := enetEvent.GetPacket()
			if packet == nil {
				continue
			}
			data := packet.GetData()
			packet.Destroy()
			if !ok || len(data) < 1 {
				continue
			}
			body := make([]byte, len(data)-1)
			copy(body, data[1:])
			events = append(events, Event{
				Kind: EventReceive,
				Peer: id,
				Type: protocol.PacketType(data[0]),
				Body: body,
			})
		}
	}

	return events, nil
}

// Send prepends the tag byte and sends on channel 0. Returns false when the
// peer is unknown or the transport rejected the packet.
func (t *Transport) Send(id PeerID, packetType protocol.PacketType, body []byte, reliable bool) bool {
	peer, ok := t.registry.Lookup(id)
	if !ok {
		return false
	}
	return t.sendToPeer(peer, packetType, body, reliable)
}

// Broadcast sends to every connected peer except exclude (0 excludes none).
func (t *Transport) Broadcast(packetType protocol.PacketType, body []byte, exclude PeerID) bool {
	if t.host == nil {
		return false
	}

	ok := true
	for id, peer := range t.registry.Snapshot() {
		if id == exclude {
			continue
		}
		if !t.sendToPeer(peer, packetType, body, packetType.Reliable()) {
			ok = false
		}
	}
	return ok
}

func (t *Transport) sendToPeer(peer enet.Peer, packetType protocol.PacketType, body []byte, reliable bool) bool {
	data := make([]byte, 0, len(body)+1)
	data = append(data, byte(packetType))
	data = append(data, body...)

	flags := enet.PacketFlagUnsequenced
	if reliable {
		flags = enet.PacketFlagReliable
	}

	packet, err := enet.NewPacket(data, flags)
	if err != nil {
		t.logger.Error("failed to create packet", "type", packetType, "error", err)
		return false
	}

	if err := peer.SendPacket(packet, 0); err != nil {
		t.logger.Debug("failed to send packet", "type", packetType, "error", err)
		return false
	}
	return true
}

// Disconnect initiates a graceful close; the DISCONNECT event arrives on a
// later poll and detaches the registry entry.
func (t *Transport) Disconnect(id PeerID) {
	peer, ok := t.registry.Lookup(id)
	if !ok {
		return
	}
	peer.Disconnect(0)
}
