package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/sagalens/pkg/domain"
)

// MessageMarkdown renders every snapshot carried by msg.
func MessageMarkdown(msg domain.Message) string {
	var b strings.Builder
	snaps := msg.Snapshots()
	fmt.Fprintf(&b, "# %s (%d)\n\n", msg.Type, len(snaps))
	for _, snap := range snaps {
		b.WriteString(SnapshotMarkdown(snap))
		b.WriteString("\n")
	}
	return b.String()
}

// SnapshotMarkdown renders a snapshot as a heading and a table of its effects.
// Nesting is shown by indenting the effect name.
func SnapshotMarkdown(snap domain.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s\n\n", escape(snap.TriggerType))
	if snap.Description != nil {
		fmt.Fprintf(&b, "*%s* · ", escape(*snap.Description))
	}
	fmt.Fprintf(&b, "%d ms\n\n", snap.Duration)

	if len(snap.Children) == 0 {
		b.WriteString("_no effects_\n")
		return b.String()
	}

	b.WriteString("| id | effect | description | status | ms | result |\n")
	b.WriteString("|---:|---|---|---|---:|---|\n")
	for _, e := range snap.Children {
		name := deref(e.Name)
		if e.Winner != nil && *e.Winner {
			name += " ★"
		}
		fmt.Fprintf(&b, "| %d | %s%s | %s | %s | %d | %s |\n",
			e.EffectID,
			strings.Repeat("· ", e.Depth),
			escape(name),
			escape(deref(e.Description)),
			deref(e.Status),
			e.Duration,
			escape(compact(e.Result)),
		)
	}
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// compact renders a value as short single-line JSON.
func compact(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return truncate(string(data), 40)
}

func escape(s string) string {
	return strings.ReplaceAll(Sanitize(s), "|", `\|`)
}
