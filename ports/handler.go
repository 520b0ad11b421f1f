package ports

import (
	"context"
	"encoding/json"
)

// Declaration describes an inbound port as seen by the front-end.
type Declaration struct {
	// Name is the port name the front-end publishes to.
	Name string `json:"name"`
	// Description tells what the port does and what it answers on.
	Description string `json:"description"`
}

// Sender publishes a payload on an outbound port.
type Sender interface {
	Send(port string, payload any) error
}

// Handler is anything that serves an inbound port.
type Handler interface {
	// Declare returns the Declaration of the port this handler serves.
	Declare() Declaration
	// Start is called once, before any message is dispatched.
	Start(context.Context, Sender, Tracer) error
	// Handle is called for each message received on the port. Outcomes, errors included,
	// are reported through the Sender, never returned.
	Handle(ctx context.Context, payload json.RawMessage)
}
