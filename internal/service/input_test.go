package service

import (
	"errors"
	"testing"
	"time"

	"taskbook/internal/model"
)

func TestResolveID(t *testing.T) {
	t.Parallel()

	ids := []string{
		"3f2a1c44-8a61-4e0b-9d1f-0c6f3b2a9e10",
		"3f2b7d01-1b22-4c3d-8e4f-5a6b7c8d9e0f",
		"9c1e0a55-2f3e-4d5c-a6b7-c8d9e0f1a2b3",
	}

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{"exact", ids[1], ids[1], nil},
		{"unique prefix", "3f2a", ids[0], nil},
		{"case insensitive", " 9C1E ", ids[2], nil},
		{"urn form", "urn:uuid:" + ids[2], ids[2], nil},
		{"ambiguous", "3f2", "", ErrAmbiguousID},
		{"unknown", "zz", "", ErrNoMatch},
		{"empty", "", "", ErrNoMatch},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ResolveID(ids, tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ResolveID(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ResolveID(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestStoreResolve(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	task := mustAddTask(t, store, model.TaskInput{Title: "Buy milk"})
	mustAddTask(t, store, model.TaskInput{Title: "Pay rent"})

	got, err := store.ResolveTask(task.ID)
	if err != nil || got != task.ID {
		t.Fatalf("ResolveTask = %q, %v", got, err)
	}
	if _, err := store.ResolveTask("task"); !errors.Is(err, ErrAmbiguousID) {
		t.Fatalf("shared prefix resolved: %v", err)
	}
	if _, err := store.ResolveCategory(task.ID); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("task id resolved as a category: %v", err)
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Time
	}{
		{"today", time.Date(2026, time.October, 16, 0, 0, 0, 0, testZone)},
		{"Tomorrow", time.Date(2026, time.October, 17, 0, 0, 0, 0, testZone)},
		{"2026-11-01", time.Date(2026, time.November, 1, 0, 0, 0, 0, testZone)},
		{" 2026-11-01 09:30 ", time.Date(2026, time.November, 1, 9, 30, 0, 0, testZone)},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in, testNow)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", tt.in, err)
		}
		if !got.Equal(tt.want) || got.Location() != testZone {
			t.Fatalf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseDate("next week", testNow); err == nil {
		t.Fatalf("expected error for free text")
	}
}
