package domain

import "errors"

// ErrEffectNotFound is returned when an effect id is not present in the registry.
var ErrEffectNotFound = errors.New("effect not found")

// ErrClientNotReady is returned by transports that have no connected client.
var ErrClientNotReady = errors.New("inspection client not ready")

// ErrUnknownEvent is returned when an ingested event has an unrecognized kind.
var ErrUnknownEvent = errors.New("unknown event kind")

// ErrInvalidEvent is returned when an ingested event is missing required fields.
var ErrInvalidEvent = errors.New("invalid event")

// ErrTaskSettled is returned when settling a task handle that already settled.
var ErrTaskSettled = errors.New("task already settled")

// ErrTaskCancelled is the settlement error of a cancelled task handle.
var ErrTaskCancelled = errors.New("task cancelled")
