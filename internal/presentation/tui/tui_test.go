package tui_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/sagalens/internal/presentation/tui"
	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func sampleSnapshot() domain.Snapshot {
	return domain.Snapshot{
		TriggerType: "FETCH_USER",
		Description: ptr("watchFetch"),
		Duration:    1030,
		Children: []domain.FlatEffect{
			{Depth: 0, EffectID: 5, Name: ptr("RACE"), Status: ptr("RESOLVED"), Duration: 1000, Result: map[string]any{"timeout": true}},
			{Depth: 1, EffectID: 6, Name: ptr("CALL"), Description: ptr("delay"), Status: ptr("RESOLVED"), Duration: 1000, Winner: ptr(true)},
			{Depth: 1, EffectID: 7, Name: ptr("TAKE"), Description: ptr("A|B"), Status: ptr("CANCELLED"), Duration: 1000},
		},
	}
}

func TestSnapshotMarkdown(t *testing.T) {
	md := tui.SnapshotMarkdown(sampleSnapshot())

	assert.Contains(t, md, "## FETCH_USER")
	assert.Contains(t, md, "*watchFetch* · 1030 ms")
	assert.Contains(t, md, `| 5 | RACE |  | RESOLVED | 1000 | {"timeout":true} |`)
	assert.Contains(t, md, "| 6 | · CALL ★ | delay |")
	assert.Contains(t, md, `A\|B`, "pipes are escaped")
}

func TestSnapshotMarkdown_Empty(t *testing.T) {
	md := tui.SnapshotMarkdown(domain.Snapshot{TriggerType: "rootSaga()"})
	assert.Contains(t, md, "_no effects_")
	assert.NotContains(t, md, "| id |")
}

func TestMessageMarkdown(t *testing.T) {
	msg := domain.Message{Type: domain.MessageTaskList, Payload: []domain.Snapshot{sampleSnapshot(), sampleSnapshot()}}
	md := tui.MessageMarkdown(msg)

	assert.True(t, strings.HasPrefix(md, "# saga.task.list (2)"))
	assert.Equal(t, 2, strings.Count(md, "## FETCH_USER"))
}

func TestRenderer(t *testing.T) {
	render, err := tui.NewRenderer("notty", 100)
	require.NoError(t, err)

	out, err := render(tui.SnapshotMarkdown(sampleSnapshot()))
	require.NoError(t, err)
	assert.Contains(t, out, "FETCH_USER")
	assert.Contains(t, out, "watchFetch")

	plain, err := tui.Plain("# x")
	require.NoError(t, err)
	assert.Equal(t, "# x", plain)
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "saga effect monitor 1.2.3")
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"clean", "api.get", "api.get"},
		{"ansi escape", "\x1b[31mred\x1b[0m", "[31mred[0m"},
		{"line breaks", "a\nb\tc\r", "a b c "},
		{"bell and nul", "a\x07b\x00", "ab"},
		{"invalid utf8", "a\xffb", "a�b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tui.Sanitize(tt.in))
		})
	}
}

func TestSnapshotMarkdown_LongResultIsTruncated(t *testing.T) {
	snap := domain.Snapshot{
		TriggerType: "X",
		Children: []domain.FlatEffect{
			{EffectID: 1, Name: ptr("CALL"), Result: strings.Repeat("é", 60)},
		},
	}
	md := tui.SnapshotMarkdown(snap)
	assert.Contains(t, md, `"`+strings.Repeat("é", 38)+"…")
	assert.NotContains(t, md, strings.Repeat("é", 39))
}
