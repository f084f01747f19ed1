/*
Package ports defines the interfaces that decouple the sagalens monitor from
the host middleware and from the outside world.

# Key Interfaces

  - Hooks: the inbound contract consumed by the host task middleware.
  - Transport: moves telemetry messages to an external inspection client.
  - SnapshotStore: keeps the history of shipped snapshots for late readers.
*/
package ports
