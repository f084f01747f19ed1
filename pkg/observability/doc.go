/*
Package observability provides Prometheus instrumentation for the sagalens monitor.

It counts effect transitions, measures effect durations, and tracks the outbound
shipping pipeline (messages sent, snapshots buffered while no client is
connected, snapshots dropped by the buffer cap). All methods are safe to call
on a nil *Metrics, so instrumentation stays optional.
*/
package observability
