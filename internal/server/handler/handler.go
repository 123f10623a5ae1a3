package handler

import (
	"ace/internal/engine/broadcast"
	"ace/internal/server/dispatch"
)

var (
	bus        *broadcast.Broadcaster
	dispatcher *dispatch.Dispatcher
)

// Init wires the handlers to the process-wide broadcaster and dispatcher.
// A nil dispatcher is tolerated: submits then rely on the periodic sweep.
func Init(b *broadcast.Broadcaster, d *dispatch.Dispatcher) {
	bus = b
	dispatcher = d
}
