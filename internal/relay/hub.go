package relay

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/TusharChoudharyy/zava-chat-app/internal/events"
	"github.com/TusharChoudharyy/zava-chat-app/internal/metrics"
	"github.com/TusharChoudharyy/zava-chat-app/internal/protocol"
	"github.com/TusharChoudharyy/zava-chat-app/internal/registry"
)

// Emitter receives room lifecycle events. *events.Async satisfies it.
type Emitter interface {
	Emit(events.Event)
}

type nopEmitter struct{}

func (nopEmitter) Emit(events.Event) {}

type inbound struct {
	client *Client
	msg    *protocol.Message
}

// Hub is the relay's single routing goroutine. It owns the identity ->
// client map; room membership lives in the registry.
type Hub struct {
	registry *registry.Registry
	metrics  *metrics.Relay
	events   Emitter

	// clients maps connection identities to live connections.
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewHub(reg *registry.Registry, m *metrics.Relay, em Emitter) *Hub {
	if m == nil {
		m = metrics.NewRelay()
	}
	if em == nil {
		em = nopEmitter{}
	}
	return &Hub{
		registry:   reg,
		metrics:    m,
		events:     em,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Register hands a new connection to the hub. It reports false once the hub
// has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// Deliver queues a message read from c. Messages from one connection are
// processed in the order they are delivered.
func (h *Hub) Deliver(c *Client, msg *protocol.Message) {
	select {
	case h.inbound <- inbound{client: c, msg: msg}:
	case <-h.quit:
	}
}

// Stop terminates Run and closes every client's send queue.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
	<-h.done
}

// Run processes hub events until Stop is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.quit:
			for id, c := range h.clients {
				close(c.Send)
				delete(h.clients, id)
			}
			h.metrics.Connections.Set(0)
			return

		case c := <-h.register:
			h.clients[c.ID] = c
			h.metrics.Connections.Inc()
			log.Debug().Str("client_id", c.ID).Msg("Client registered")
			h.send(c, protocol.NewWelcome(c.ID))

		case c := <-h.unregister:
			if _, ok := h.clients[c.ID]; !ok {
				continue
			}
			delete(h.clients, c.ID)
			h.metrics.Connections.Dec()

			if dep, ok := h.registry.Leave(c.ID); ok {
				h.departed(c.ID, dep)
			}
			close(c.Send)
			log.Debug().Str("client_id", c.ID).Msg("Client unregistered")

		case in := <-h.inbound:
			if _, ok := h.clients[in.client.ID]; !ok {
				continue
			}
			h.handle(in.client, in.msg)
		}
	}
}

func (h *Hub) handle(c *Client, msg *protocol.Message) {
	h.metrics.Received(msg.Type)

	switch msg.Type {
	case protocol.MessageTypeJoin:
		h.join(c, msg)
	case protocol.MessageTypeSignal:
		h.signal(c, msg)
	case protocol.MessageTypeHostAction:
		h.hostAction(c, msg)
	default:
		log.Debug().Str("client_id", c.ID).Str("type", msg.Type).Msg("Unknown message type")
		h.metrics.Drop(metrics.DropUnknownType)
	}
}

func (h *Hub) join(c *Client, msg *protocol.Message) {
	view, moved, err := h.registry.Join(msg.RoomID, c.ID, msg.IsHost)
	if err != nil {
		log.Debug().Err(err).Str("client_id", c.ID).Msg("Join rejected")
		h.metrics.Drop(metrics.DropInvalidJoin)
		return
	}

	if moved != nil {
		h.departed(c.ID, *moved)
	}

	if view.Created {
		h.events.Emit(events.New(events.RoomCreated, view.ID, c.ID))
	}

	if !view.Rejoined {
		notice := protocol.NewPeerJoined(c.ID)
		for _, id := range view.Participants {
			if id == c.ID {
				continue
			}
			if peer, ok := h.clients[id]; ok {
				h.send(peer, notice)
			}
		}
		h.events.Emit(events.New(events.ParticipantJoined, view.ID, c.ID))
		log.Info().Str("client_id", c.ID).Str("room_id", view.ID).Int("participants", len(view.Participants)).Msg("Client joined room")
	}

	h.send(c, protocol.NewJoined(view.ID, view.Host == c.ID))
	h.metrics.SetRegistryStats(h.registry.Stats())
}

func (h *Hub) signal(c *Client, msg *protocol.Message) {
	target, ok := h.clients[msg.To]
	if !ok {
		log.Debug().Str("client_id", c.ID).Str("to", msg.To).Msg("Signal target not connected")
		h.metrics.Drop(metrics.DropStaleTarget)
		return
	}

	if h.send(target, protocol.NewSignalReceived(c.ID, msg.Payload)) {
		h.metrics.SignalsRelayed.Inc()
	}
}

func (h *Hub) hostAction(c *Client, msg *protocol.Message) {
	if !h.registry.IsHost(msg.RoomID, c.ID) {
		log.Debug().Str("client_id", c.ID).Str("room_id", msg.RoomID).Msg("Host action from non-host")
		h.metrics.HostActionsDenied.Inc()
		h.metrics.Drop(metrics.DropNotHost)
		return
	}

	target, ok := h.clients[msg.TargetID]
	if !ok {
		h.metrics.Drop(metrics.DropStaleTarget)
		return
	}

	log.Info().Str("client_id", c.ID).Str("target_id", msg.TargetID).Str("action", msg.Action).Msg("Relaying host action")
	h.send(target, protocol.NewHostActionDelivery(msg.Action))
}

// departed notifies the rest of a room that id has left it.
func (h *Hub) departed(id string, dep registry.Departure) {
	notice := protocol.NewPeerLeft(id)
	for _, peerID := range dep.Remaining {
		if peer, ok := h.clients[peerID]; ok {
			h.send(peer, notice)
		}
	}
	h.events.Emit(events.New(events.ParticipantLeft, dep.RoomID, id))

	if dep.NewHost != "" {
		if peer, ok := h.clients[dep.NewHost]; ok {
			h.send(peer, protocol.NewJoined(dep.RoomID, true))
		}
		h.events.Emit(events.New(events.HostChanged, dep.RoomID, dep.NewHost))
	}

	if dep.Reaped {
		h.events.Emit(events.New(events.RoomReaped, dep.RoomID, ""))
		log.Info().Str("room_id", dep.RoomID).Msg("Room deleted")
	} else {
		log.Info().Str("client_id", id).Str("room_id", dep.RoomID).Int("participants", len(dep.Remaining)).Msg("Peer left room")
	}

	h.metrics.SetRegistryStats(h.registry.Stats())
}

// send never blocks the hub: a client whose queue is full loses the message.
func (h *Hub) send(c *Client, msg *protocol.Message) bool {
	select {
	case c.Send <- msg:
		return true
	default:
		log.Warn().Str("client_id", c.ID).Str("type", msg.Type).Msg("Send queue full, dropping message")
		h.metrics.Drop(metrics.DropQueueFull)
		return false
	}
}
