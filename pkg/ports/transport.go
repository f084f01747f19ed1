package ports

import (
	"context"

	"github.com/aretw0/sagalens/pkg/domain"
)

// Transport delivers telemetry messages to the inspection client.
// Send returns domain.ErrClientNotReady (possibly wrapped) when nobody listens.
type Transport interface {
	Send(ctx context.Context, msg domain.Message) error
}

// Dialer establishes a Transport. It mirrors the asynchronous client
// acquisition of dev-tools plugins: failure keeps the monitor buffering.
type Dialer func(ctx context.Context) (Transport, error)
