/*
Package domain contains the core models of the sagalens effect monitor.

It describes what the host task middleware reports (effect descriptors, lifecycle
events, task handles) and what the monitor produces (records, flattened trees,
snapshots and outbound messages). This package is kept free of I/O and
persistence so that adapters and the runtime can share it.

# Key Entities

  - Effect: the descriptor of one unit of work as submitted by the middleware.
  - Record: the monitor's view of one observed effect instance.
  - Resolution: the tagged outcome of a resolved effect (Immediate or Deferred).
  - Snapshot: the serialized, shippable tree of a completed task.
  - Message: an outbound telemetry message (saga.task.list, saga.task.complete).
*/
package domain
