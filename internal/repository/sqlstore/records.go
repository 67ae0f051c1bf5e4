package sqlstore

import (
	"strconv"
	"strings"
	"time"

	"taskbook/internal/model"
)

type taskRecord struct {
	ID               string  `gorm:"primaryKey;size:36"`
	Title            string  `gorm:"not null"`
	Description      *string
	Completed        bool       `gorm:"not null;default:false"`
	DueDate          *time.Time `gorm:"index"`
	ReminderTime     *time.Time
	Category         *string `gorm:"index"`
	Priority         *string
	RepeatType       *string
	RepeatInterval   *int
	RepeatEndDate    *time.Time
	RepeatDaysOfWeek *string // comma-separated weekday numbers
	Notes            *string
	Symbol           *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (taskRecord) TableName() string { return "tasks" }

type categoryRecord struct {
	ID    string `gorm:"primaryKey;size:36"`
	Name  string `gorm:"not null"`
	Color string `gorm:"not null"`
	Icon  *string
}

func (categoryRecord) TableName() string { return "categories" }

// membershipRecord is the BELONGS_TO edge. A task has at most one.
type membershipRecord struct {
	TaskID     string `gorm:"primaryKey;size:36"`
	CategoryID string `gorm:"index;not null;size:36"`
	CreatedAt  time.Time
}

func (membershipRecord) TableName() string { return "task_categories" }

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func encodeWeekdays(days []time.Weekday) *string {
	if len(days) == 0 {
		return nil
	}
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	s := strings.Join(parts, ",")
	return &s
}

func decodeWeekdays(raw *string) []time.Weekday {
	if raw == nil || *raw == "" {
		return nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(*raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		days = append(days, time.Weekday(n))
	}
	return days
}

// repeatColumns flattens a pattern into the four repeat_* columns.
func repeatColumns(r *model.RepeatPattern) map[string]interface{} {
	if r == nil {
		return map[string]interface{}{
			"repeat_type":         nil,
			"repeat_interval":     nil,
			"repeat_end_date":     nil,
			"repeat_days_of_week": nil,
		}
	}
	interval := r.Interval
	return map[string]interface{}{
		"repeat_type":         string(r.Type),
		"repeat_interval":     &interval,
		"repeat_end_date":     utcPtr(r.EndDate),
		"repeat_days_of_week": encodeWeekdays(r.DaysOfWeek),
	}
}

func newTaskRecord(id string, in model.TaskInput, now time.Time) taskRecord {
	rec := taskRecord{
		ID:           id,
		Title:        strings.TrimSpace(in.Title),
		Description:  optString(in.Description),
		Completed:    in.Completed,
		DueDate:      utcPtr(in.DueDate),
		ReminderTime: utcPtr(in.ReminderTime),
		Category:     optString(in.Category),
		Priority:     optString(string(in.Priority)),
		Notes:        optString(in.Notes),
		Symbol:       optString(in.Symbol),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Repeat != nil {
		t := string(in.Repeat.Type)
		interval := in.Repeat.Interval
		rec.RepeatType = &t
		rec.RepeatInterval = &interval
		rec.RepeatEndDate = utcPtr(in.Repeat.EndDate)
		rec.RepeatDaysOfWeek = encodeWeekdays(in.Repeat.DaysOfWeek)
	}
	return rec
}

func (r taskRecord) toModel() model.Task {
	task := model.Task{
		ID:           r.ID,
		Title:        r.Title,
		Description:  derefString(r.Description),
		Completed:    r.Completed,
		DueDate:      r.DueDate,
		ReminderTime: r.ReminderTime,
		Category:     derefString(r.Category),
		Priority:     model.Priority(derefString(r.Priority)),
		Notes:        derefString(r.Notes),
		Symbol:       derefString(r.Symbol),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.RepeatType != nil && *r.RepeatType != "" {
		interval := 1
		if r.RepeatInterval != nil {
			interval = *r.RepeatInterval
		}
		task.Repeat = &model.RepeatPattern{
			Type:       model.RepeatType(*r.RepeatType),
			Interval:   interval,
			EndDate:    r.RepeatEndDate,
			DaysOfWeek: decodeWeekdays(r.RepeatDaysOfWeek),
		}
	}
	return task
}

// patchColumns maps a patch onto column updates. Column names are fixed here,
// values are always bound by gorm.
func patchColumns(p model.TaskPatch, now time.Time) map[string]interface{} {
	cols := map[string]interface{}{"updated_at": now}
	if p.Title != nil {
		cols["title"] = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		cols["description"] = optString(*p.Description)
	}
	if p.Completed != nil {
		cols["completed"] = *p.Completed
	}
	if p.DueDate != nil {
		cols["due_date"] = utcPtr(p.DueDate)
	}
	if p.ReminderTime != nil {
		cols["reminder_time"] = utcPtr(p.ReminderTime)
	}
	if p.Priority != nil {
		cols["priority"] = optString(string(*p.Priority))
	}
	if p.Repeat != nil {
		for k, v := range repeatColumns(p.Repeat) {
			cols[k] = v
		}
	}
	if p.Notes != nil {
		cols["notes"] = optString(*p.Notes)
	}
	if p.Symbol != nil {
		cols["symbol"] = optString(*p.Symbol)
	}
	for _, f := range p.Clear {
		switch f {
		case model.FieldDueDate:
			cols["due_date"] = nil
		case model.FieldReminderTime:
			cols["reminder_time"] = nil
		case model.FieldPriority:
			cols["priority"] = nil
		case model.FieldRepeat:
			for k, v := range repeatColumns(nil) {
				cols[k] = v
			}
		case model.FieldNotes:
			cols["notes"] = nil
		case model.FieldDescription:
			cols["description"] = nil
		case model.FieldSymbol:
			cols["symbol"] = nil
		}
	}
	return cols
}

func (r categoryRecord) toModel() model.Category {
	return model.Category{ID: r.ID, Name: r.Name, Color: r.Color, Icon: derefString(r.Icon)}
}
