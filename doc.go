/*
Package sagalens is a saga effect monitor: it observes the lifecycle of the
effects a saga runtime executes, rebuilds the tree of effects each task
produced, and ships a snapshot of every completed task to an inspection client.

# Concept

The host saga runtime calls the Monitor's hooks (ports.Hooks) as effects start
and settle. The Monitor keeps a registry of every effect, pairs race winners
with their settlement, waits on background tasks returned by forks, and
serializes the finished task into a flat, depth-first list of effects.

Snapshots are buffered until the inspection client says it is ready. The
first flush sends the whole buffer as one "saga.task.list" message; after that
each completed task is sent as a "saga.task.complete" message.

# Usage

	mon := sagalens.New(
		sagalens.WithTransport(transport),
		sagalens.WithExcept("watchIdle"),
		sagalens.WithErrorHandler(func(err error) { log.Println(err) }),
	)
	defer mon.Close()

	mon.RootStarted(ctx, 1, domain.RootMeta{Name: "rootSaga"})
	mon.EffectTriggered(ctx, 2, 1, "", domain.Effect{Type: "CALL", Fn: "fetchUser"})
	mon.EffectResolved(ctx, 2, domain.Immediate(user))

	// later, once the client is listening
	mon.ClientReady(ctx)

Hosts in other processes can send the same hooks as JSON events (see package
ingest) to the HTTP adapter.
*/
package sagalens
