package ports

// Tracer is an interface for logging the traffic between the front-end and
// the port handlers. An implementation is passed to the bus at startup.
type Tracer interface {
	LogInbound(port, text string)
	LogOutbound(port, text string)
}

// NopTracer discards everything.
type NopTracer struct{}

func (NopTracer) LogInbound(port, text string)  {}
func (NopTracer) LogOutbound(port, text string) {}
