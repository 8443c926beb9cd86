package dao

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAsInt64(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want int64
		ok   bool
	}{
		{"int64", int64(5), 5, true},
		{"int", 5, 5, true},
		{"float64 from json", float64(5), 5, true},
		{"json.Number", json.Number("5"), 5, true},
		{"numeric string", "5", 5, true},
		{"garbage string", "five", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := AsInt64(tc.in)
			if ok != tc.ok || got != tc.want {
				t.Errorf("AsInt64(%v) = (%d, %v), want (%d, %v)", tc.in, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestAsTime(t *testing.T) {
	ref := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	got, ok := AsTime(ref.Format(time.RFC3339Nano))
	if !ok || !got.Equal(ref) {
		t.Errorf("expected %s, got (%s, %v)", ref, got, ok)
	}

	if _, ok := AsTime("not-a-timestamp"); ok {
		t.Error("expected unparsable timestamp reported as absent")
	}
	if _, ok := AsTime(nil); ok {
		t.Error("expected nil reported as absent")
	}

	got, ok = AsTime(ref)
	if !ok || !got.Equal(ref) {
		t.Error("expected time.Time passthrough")
	}
}

func TestAnimeSnapshotRoundTrip(t *testing.T) {
	row := &AnimeDao{
		ID:       1,
		Title:    "Cowboy Bebop",
		Episodes: 26,
		Status:   "finished",
		Version:  3,
	}
	snap := row.Snapshot()

	// Simulate the redis backend's JSON round trip.
	encoded, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	rebuilt := AnimeFromSnapshot(1, decoded)
	if rebuilt.Title != row.Title || rebuilt.Episodes != row.Episodes || rebuilt.Version != row.Version {
		t.Errorf("round trip lost data: %+v", rebuilt)
	}
}
