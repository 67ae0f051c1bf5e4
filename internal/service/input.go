package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04"
)

var (
	ErrNoMatch     = errors.New("no match")
	ErrAmbiguousID = errors.New("ambiguous id")
)

// ResolveID matches raw against ids, either exactly or as a unique prefix.
// Full UUIDs are accepted in any of the forms uuid.Parse understands.
func ResolveID(ids []string, raw string) (string, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", ErrNoMatch
	}
	if u, err := uuid.Parse(raw); err == nil {
		raw = u.String()
	}

	var match string
	for _, id := range ids {
		lower := strings.ToLower(id)
		if lower == raw {
			return id, nil
		}
		if strings.HasPrefix(lower, raw) {
			if match != "" {
				return "", ErrAmbiguousID
			}
			match = id
		}
	}
	if match == "" {
		return "", ErrNoMatch
	}
	return match, nil
}

// ResolveTask resolves raw against the loaded task ids.
func (s *Store) ResolveTask(raw string) (string, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		ids = append(ids, t.ID)
	}
	s.mu.RUnlock()
	return ResolveID(ids, raw)
}

// ResolveCategory resolves raw against the loaded category ids.
func (s *Store) ResolveCategory(raw string) (string, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.categories))
	for _, c := range s.categories {
		ids = append(ids, c.ID)
	}
	s.mu.RUnlock()
	return ResolveID(ids, raw)
}

// ParseDate understands "today", "tomorrow", DateLayout and DateTimeLayout,
// all in now's location. Date-only values land at midnight.
func ParseDate(text string, now time.Time) (time.Time, error) {
	loc := now.Location()
	y, m, d := now.Date()
	text = strings.TrimSpace(text)
	switch strings.ToLower(text) {
	case "today":
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	case "tomorrow":
		return time.Date(y, m, d+1, 0, 0, 0, 0, loc), nil
	}
	if t, err := time.ParseInLocation(DateTimeLayout, text, loc); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(DateLayout, text, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("use %s or %s", DateLayout, DateTimeLayout)
	}
	return t, nil
}
