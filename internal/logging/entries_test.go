package logging

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const sampleLog = `{"time":"2026-03-01T10:00:02Z","level":"WARN","msg":"illegal transition","component":"engine","from":"HIDDEN","to":"FLEEING"}
not json
{"time":"2026-03-01T10:00:01Z","level":"INFO","msg":"lifecycle transition","run_id":"r1","component":"engine"}

{"time":"2026-03-01T10:00:03Z","level":"TRACE","msg":"stale result dropped","component":"engine"}
{"time":"2026-03-01T10:00:04Z","level":"ERROR","msg":"playback failed","component":"audio"}
`

func TestDecodeEntries(t *testing.T) {
	entries, err := DecodeEntries(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("DecodeEntries failed: %v", err)
	}

	var msgs []string
	for _, e := range entries {
		msgs = append(msgs, e.Message)
	}
	want := []string{"lifecycle transition", "illegal transition", "stale result dropped", "playback failed"}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}

	if entries[0].RunID != "r1" {
		t.Errorf("Expected run_id r1, got %q", entries[0].RunID)
	}
	if entries[1].Attrs["from"] != "HIDDEN" {
		t.Errorf("Expected attr from=HIDDEN, got %v", entries[1].Attrs["from"])
	}
	if _, ok := entries[1].Attrs["component"]; ok {
		t.Error("reserved keys should not appear in Attrs")
	}
}

func TestFilterEntries(t *testing.T) {
	entries, err := DecodeEntries(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("DecodeEntries failed: %v", err)
	}

	tests := []struct {
		name   string
		filter EntryFilter
		want   []string
	}{
		{"empty", EntryFilter{}, []string{"lifecycle transition", "illegal transition", "stale result dropped", "playback failed"}},
		{"warn and up", EntryFilter{Level: "warn"}, []string{"illegal transition", "playback failed"}},
		{"component", EntryFilter{Component: "audio"}, []string{"playback failed"}},
		{"contains", EntryFilter{Contains: "transition"}, []string{"lifecycle transition", "illegal transition"}},
		{"since", EntryFilter{Since: time.Date(2026, 3, 1, 10, 0, 3, 0, time.UTC)}, []string{"stale result dropped", "playback failed"}},
		{"run", EntryFilter{RunID: "r1"}, []string{"lifecycle transition"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range FilterEntries(entries, tt.filter) {
				got = append(got, e.Message)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FilterEntries mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEntryFormat(t *testing.T) {
	e := Entry{
		Time:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Level:     "INFO",
		Message:   "hi",
		Component: "engine",
		Attrs:     map[string]any{"b": 2, "a": 1},
	}
	want := "[2026-03-01 10:00:00.000] INFO  engine: hi a=1 b=2"
	if got := e.Format(); got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}
