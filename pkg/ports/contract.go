package ports

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
// The store must be empty when passed in.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		n, err := store.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		list, err := store.List(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("Append and List keep completion order", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			desc := fmt.Sprintf("saga-%d", i)
			err := store.Append(ctx, domain.Snapshot{
				TriggerType: fmt.Sprintf("ACTION_%d", i),
				Description: &desc,
				Duration:    int64(i * 10),
				Children: []domain.FlatEffect{
					{Depth: 0, EffectID: domain.EffectID(i * 100)},
				},
			})
			require.NoError(t, err, "Append should not return error")
		}

		list, err := store.List(ctx, 0)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "ACTION_1", list[0].TriggerType)
		assert.Equal(t, "ACTION_3", list[2].TriggerType)
		require.NotNil(t, list[1].Description)
		assert.Equal(t, "saga-2", *list[1].Description)
		assert.Equal(t, int64(20), list[1].Duration)
		require.Len(t, list[2].Children, 1)
		assert.Equal(t, domain.EffectID(300), list[2].Children[0].EffectID)
	})

	t.Run("List with limit returns newest entries", func(t *testing.T) {
		list, err := store.List(ctx, 2)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "ACTION_2", list[0].TriggerType)
		assert.Equal(t, "ACTION_3", list[1].TriggerType)
	})

	t.Run("Len", func(t *testing.T) {
		n, err := store.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})
}

// RunTransportContract verifies that a Transport with a listening client
// delivers messages intact and in send order. recv blocks until the client
// has received n messages and returns them.
func RunTransportContract(t *testing.T, transport Transport, recv func(t *testing.T, n int) []domain.Message) {
	ctx := context.Background()
	desc := "watchFetch"
	first := domain.Snapshot{TriggerType: "FETCH", Description: &desc, Duration: 12, Children: []domain.FlatEffect{}}
	second := domain.Snapshot{TriggerType: "SAVE", Duration: 3, Children: []domain.FlatEffect{}}

	require.NoError(t, transport.Send(ctx, domain.Message{Type: domain.MessageTaskList, Payload: []domain.Snapshot{first}}))
	require.NoError(t, transport.Send(ctx, domain.Message{Type: domain.MessageTaskComplete, Payload: second}))
	require.NoError(t, transport.Send(ctx, domain.Message{Type: domain.MessageTaskList, Payload: []domain.Snapshot{}}))

	got := recv(t, 3)
	require.Len(t, got, 3)

	t.Run("Order and types", func(t *testing.T) {
		assert.Equal(t, domain.MessageTaskList, got[0].Type)
		assert.Equal(t, domain.MessageTaskComplete, got[1].Type)
		assert.Equal(t, domain.MessageTaskList, got[2].Type)
	})

	t.Run("Payloads", func(t *testing.T) {
		list := got[0].Snapshots()
		require.Len(t, list, 1)
		assert.Equal(t, "FETCH", list[0].TriggerType)
		require.NotNil(t, list[0].Description)
		assert.Equal(t, desc, *list[0].Description)
		assert.Equal(t, int64(12), list[0].Duration)

		complete := got[1].Snapshots()
		require.Len(t, complete, 1)
		assert.Equal(t, "SAVE", complete[0].TriggerType)
		assert.Nil(t, complete[0].Description)

		assert.Empty(t, got[2].Snapshots(), "an empty list is still delivered")
	})
}
