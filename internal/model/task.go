package model

import (
	"strings"
	"time"
)

// Task represents a single to-do item.
type Task struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Completed    bool           `json:"completed"`
	DueDate      *time.Time     `json:"dueDate,omitempty"`
	ReminderTime *time.Time     `json:"reminderTime,omitempty"`
	Category     string         `json:"category,omitempty"` // category id, may dangle
	Priority     Priority       `json:"priority,omitempty"`
	Repeat       *RepeatPattern `json:"repeat,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	Symbol       string         `json:"symbol,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy so callers can't mutate cached pointers.
func (t Task) Clone() Task {
	out := t
	if t.DueDate != nil {
		d := *t.DueDate
		out.DueDate = &d
	}
	if t.ReminderTime != nil {
		r := *t.ReminderTime
		out.ReminderTime = &r
	}
	if t.Repeat != nil {
		rp := t.Repeat.Clone()
		out.Repeat = &rp
	}
	return out
}

// TaskInput holds the fields accepted when a task is created.
type TaskInput struct {
	Title        string         `validate:"notblank,max=500"`
	Description  string         `validate:"max=5000"`
	Completed    bool
	DueDate      *time.Time
	ReminderTime *time.Time
	Category     string
	Priority     Priority       `validate:"omitempty,oneof=low medium high"`
	Repeat       *RepeatPattern `validate:"omitempty"`
	Notes        string         `validate:"max=5000"`
	Symbol       string         `validate:"max=64"`
}

// TaskField names an optional task property that a patch may reset.
type TaskField string

const (
	FieldDueDate      TaskField = "dueDate"
	FieldReminderTime TaskField = "reminderTime"
	FieldPriority     TaskField = "priority"
	FieldRepeat       TaskField = "repeat"
	FieldNotes        TaskField = "notes"
	FieldDescription  TaskField = "description"
	FieldSymbol       TaskField = "symbol"
)

// TaskPatch is a partial update. Nil pointers leave the stored value alone,
// fields listed in Clear are reset to null. ID, CreatedAt and Category have no
// slot here: the first two are immutable and membership goes through assignment.
type TaskPatch struct {
	Title        *string        `validate:"omitempty,notblank,max=500"`
	Description  *string        `validate:"omitempty,max=5000"`
	Completed    *bool
	DueDate      *time.Time
	ReminderTime *time.Time
	Priority     *Priority      `validate:"omitempty,oneof=low medium high"`
	Repeat       *RepeatPattern `validate:"omitempty"`
	Notes        *string        `validate:"omitempty,max=5000"`
	Symbol       *string        `validate:"omitempty,max=64"`
	Clear        []TaskField    `validate:"dive,oneof=dueDate reminderTime priority repeat notes description symbol"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil && p.DueDate == nil &&
		p.ReminderTime == nil && p.Priority == nil && p.Repeat == nil && p.Notes == nil &&
		p.Symbol == nil && len(p.Clear) == 0
}

// Clears reports whether f is listed in p.Clear.
func (p TaskPatch) Clears(f TaskField) bool {
	for _, c := range p.Clear {
		if c == f {
			return true
		}
	}
	return false
}

// Apply merges the patch into t. Backends that can't express a partial update
// natively (and the in-memory fakes) use it to compute the stored row.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
	if p.ReminderTime != nil {
		r := *p.ReminderTime
		t.ReminderTime = &r
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Repeat != nil {
		rp := p.Repeat.Clone()
		t.Repeat = &rp
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.Symbol != nil {
		t.Symbol = *p.Symbol
	}
	for _, f := range p.Clear {
		switch f {
		case FieldDueDate:
			t.DueDate = nil
		case FieldReminderTime:
			t.ReminderTime = nil
		case FieldPriority:
			t.Priority = PriorityNone
		case FieldRepeat:
			t.Repeat = nil
		case FieldNotes:
			t.Notes = ""
		case FieldDescription:
			t.Description = ""
		case FieldSymbol:
			t.Symbol = ""
		}
	}
}
