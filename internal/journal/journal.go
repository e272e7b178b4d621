package journal

import (
	"context"
	"time"
)

// Event is one inbound gateway notification, recorded verbatim before any
// side effect. Events are append-only; the single permitted amendment is
// attaching a failure reason after the fact.
type Event struct {
	ID             string
	Provider       string
	Payload        map[string]string
	RawBody        string
	RemoteAddr     string
	SignatureValid bool
	Status         string
	FailureReason  string
	ReceivedAt     time.Time
}

// Journal durably records inbound webhook events for audit and replay.
// Implementations never delete events.
type Journal interface {
	Record(ctx context.Context, event Event) (string, error)
	AmendFailure(ctx context.Context, id, reason string) error
}
