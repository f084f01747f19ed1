package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/sagalens"
	"github.com/aretw0/sagalens/pkg/adapters/memory"
	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/aretw0/sagalens/pkg/task"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *sagalens.Monitor) {
	t.Helper()
	history := memory.NewStore()
	mon := sagalens.New(sagalens.WithHistory(history))
	t.Cleanup(func() { _ = mon.Close() })

	ctx := context.Background()
	for i, name := range []string{"first", "second", "third"} {
		id := domain.EffectID(i*10 + 1)
		mon.RootStarted(ctx, id, domain.RootMeta{Name: name})
		mon.EffectTriggered(ctx, id+1, id, "", domain.Effect{Type: "CALL", Fn: "work"})
		mon.EffectResolved(ctx, id+1, domain.Immediate(nil))
		tk := task.New()
		mon.EffectResolved(ctx, id, domain.Deferred(tk))
		require.NoError(t, tk.Resolve(nil))
	}
	return NewServer(mon, history), mon
}

func TestListSnapshots(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	all, err := s.handleListSnapshots(ctx, mcp.CallToolRequest{}, listArgs{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	require.Len(t, all.Snapshots, 3)
	assert.Equal(t, "first()", all.Snapshots[0].TriggerType)

	newest, err := s.handleListSnapshots(ctx, mcp.CallToolRequest{}, listArgs{Limit: 1})
	require.NoError(t, err)
	require.Len(t, newest.Snapshots, 1)
	assert.Equal(t, "third()", newest.Snapshots[0].TriggerType)

	_, err = s.handleListSnapshots(ctx, mcp.CallToolRequest{}, listArgs{Limit: -1})
	assert.Error(t, err)
}

func TestListSnapshots_NoHistory(t *testing.T) {
	mon := sagalens.New()
	defer mon.Close()
	s := NewServer(mon, nil)

	list, err := s.handleListSnapshots(context.Background(), mcp.CallToolRequest{}, listArgs{})
	require.NoError(t, err)
	assert.NotNil(t, list.Snapshots)
	assert.Empty(t, list.Snapshots)
}

func TestMonitorStats(t *testing.T) {
	s, _ := newTestServer(t)

	stats, err := s.handleStats(context.Background(), mcp.CallToolRequest{}, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Effects)
	assert.Equal(t, 3, stats.Roots)
	assert.Equal(t, 3, stats.Buffered)
}

func TestInspectEffect(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	got, err := s.handleInspect(ctx, mcp.CallToolRequest{}, inspectArgs{EffectID: 11})
	require.NoError(t, err)
	assert.Equal(t, "second()", got.Snapshot.TriggerType)
	require.Len(t, got.Tree, 1)
	assert.Equal(t, domain.EffectID(12), got.Tree[0].EffectID)

	_, err = s.handleInspect(ctx, mcp.CallToolRequest{}, inspectArgs{EffectID: 999})
	assert.ErrorIs(t, err, domain.ErrEffectNotFound)
}

func TestSnapshotsResource(t *testing.T) {
	s, _ := newTestServer(t)

	contents, err := s.readSnapshots(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, SnapshotsURI, text.URI)

	var snaps []domain.Snapshot
	require.NoError(t, json.Unmarshal([]byte(text.Text), &snaps))
	assert.Len(t, snaps, 3)
}
