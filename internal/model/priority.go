package model

import (
	"fmt"
	"strings"
)

// Priority is an optional task urgency level.
type Priority string

const (
	PriorityNone   Priority = ""
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities high first, unset last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Label is the display form, e.g. "High".
func (p Priority) Label() string {
	if p == PriorityNone {
		return ""
	}
	s := string(p)
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParsePriority accepts low/medium/high (any case) and "" or "none" for unset.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if p == "none" {
		return PriorityNone, nil
	}
	if !p.Valid() {
		return PriorityNone, fmt.Errorf("unknown priority %q", raw)
	}
	return p, nil
}
