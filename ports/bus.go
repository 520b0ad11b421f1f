package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnknownPort is returned when a message targets a port no handler serves.
	ErrUnknownPort = errors.New("unknown port")
	// ErrNotStarted is returned when dispatching on a bus that was not started.
	ErrNotStarted = errors.New("bus not started")
)

// Message is a single message on the channel, in either direction.
type Message struct {
	ID      string          `json:"id"`
	Port    string          `json:"port"`
	Payload json.RawMessage `json:"payload"`
}

// Bus is the message channel between the front-end and the handlers.
//
// Inbound messages are routed by port name to the Handler that declared it.
// Outbound messages are fanned out to every subscriber.
type Bus struct {
	// Name identifies the bus in logs.
	Name string
	// Handlers served by this bus.
	Handlers []Handler

	tracer  Tracer
	portmap map[string]Handler

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Message
}

func NewBus(name string, handlers ...Handler) *Bus {
	return &Bus{
		Name:     name,
		Handlers: handlers,
		subs:     make(map[int]chan Message),
	}
}

// Start starts every handler and registers it under its declared port.
func (b *Bus) Start(ctx context.Context, tracer Tracer) error {
	if tracer == nil {
		tracer = NopTracer{}
	}
	b.tracer = tracer

	portmap := make(map[string]Handler, len(b.Handlers))
	for _, h := range b.Handlers {
		d := h.Declare()
		if _, exists := portmap[d.Name]; exists {
			return fmt.Errorf("port %q declared twice", d.Name)
		}
		if err := h.Start(ctx, b, tracer); err != nil {
			return fmt.Errorf("starting handler for %q: %w", d.Name, err)
		}
		portmap[d.Name] = h
	}
	b.portmap = portmap
	return nil
}

// Ports returns the sorted inbound port names.
func (b *Bus) Ports() []string {
	names := make([]string, 0, len(b.portmap))
	for name := range b.portmap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a handler serves port.
func (b *Bus) Has(port string) bool {
	_, ok := b.portmap[port]
	return ok
}

// Dispatch delivers an inbound message to its handler and waits for it to return.
func (b *Bus) Dispatch(ctx context.Context, msg Message) error {
	if b.portmap == nil {
		return ErrNotStarted
	}
	h, exists := b.portmap[msg.Port]
	if !exists {
		return fmt.Errorf("%w %q", ErrUnknownPort, msg.Port)
	}
	payload := msg.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	h.Handle(ctx, payload)
	return nil
}

// NewMessage builds a message with a fresh ID, marshalling payload to JSON.
func NewMessage(port string, payload any) (Message, error) {
	var raw json.RawMessage
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("encoding payload for %q: %w", port, err)
		}
		raw = data
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return Message{ID: uuid.NewString(), Port: port, Payload: raw}, nil
}

// Send publishes payload on an outbound port. It never blocks: a subscriber whose
// buffer is full misses the message.
func (b *Bus) Send(port string, payload any) error {
	msg, err := NewMessage(port, payload)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			logrus.WithFields(logrus.Fields{
				"bus":        b.Name,
				"port":       port,
				"subscriber": id,
			}).Warn("subscriber buffer full, message dropped")
		}
	}
	return nil
}

// Subscribe returns a channel receiving every outbound message from now on, and a
// function to stop the subscription. The channel is closed by cancel.
func (b *Bus) Subscribe(buffer int) (<-chan Message, func()) {
	ch := make(chan Message, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
