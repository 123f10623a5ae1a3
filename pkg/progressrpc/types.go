package progressrpc

import "ace/internal/engine/broadcast"

const ServiceName = "ProgressCallbackService"
const PushEventMethod = ServiceName + ".PushEvent"

// PushEventRequest carries one run progress event from a worker to the
// API server, which fans it out to its SSE subscribers.
type PushEventRequest struct {
	Event broadcast.Event
}

type PushEventResponse struct {
}
