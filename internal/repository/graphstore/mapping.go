package graphstore

import (
	"fmt"
	"strings"
	"time"

	"taskbook/internal/model"
)

// Node property names.
const (
	propTitle            = "title"
	propDescription      = "description"
	propCompleted        = "completed"
	propDueDate          = "dueDate"
	propReminderTime     = "reminderTime"
	propCategory         = "category"
	propPriority         = "priority"
	propRepeatType       = "repeatType"
	propRepeatInterval   = "repeatInterval"
	propRepeatEndDate    = "repeatEndDate"
	propRepeatDaysOfWeek = "repeatDaysOfWeek"
	propNotes            = "notes"
	propSymbol           = "symbol"
	propCreatedAt        = "createdAt"
	propUpdatedAt        = "updatedAt"
)

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func timeParam(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func weekdaysParam(days []time.Weekday) interface{} {
	if len(days) == 0 {
		return nil
	}
	out := make([]int64, 0, len(days))
	for _, d := range days {
		out = append(out, int64(d))
	}
	return out
}

func repeatProps(r *model.RepeatPattern) map[string]interface{} {
	if r == nil {
		return map[string]interface{}{
			propRepeatType:       nil,
			propRepeatInterval:   nil,
			propRepeatEndDate:    nil,
			propRepeatDaysOfWeek: nil,
		}
	}
	return map[string]interface{}{
		propRepeatType:       string(r.Type),
		propRepeatInterval:   int64(r.Interval),
		propRepeatEndDate:    timeParam(r.EndDate),
		propRepeatDaysOfWeek: weekdaysParam(r.DaysOfWeek),
	}
}

func createTaskParams(in model.TaskInput) map[string]interface{} {
	params := map[string]interface{}{
		propTitle:        strings.TrimSpace(in.Title),
		propDescription:  nullString(in.Description),
		propCompleted:    in.Completed,
		propDueDate:      timeParam(in.DueDate),
		propReminderTime: timeParam(in.ReminderTime),
		propCategory:     nullString(in.Category),
		propPriority:     nullString(string(in.Priority)),
		propNotes:        nullString(in.Notes),
		propSymbol:       nullString(in.Symbol),
	}
	for k, v := range repeatProps(in.Repeat) {
		params[k] = v
	}
	return params
}

// patchProps builds the map applied with SET t += $props. A nil value removes
// the property.
func patchProps(p model.TaskPatch) map[string]interface{} {
	props := map[string]interface{}{}
	if p.Title != nil {
		props[propTitle] = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		props[propDescription] = nullString(*p.Description)
	}
	if p.Completed != nil {
		props[propCompleted] = *p.Completed
	}
	if p.DueDate != nil {
		props[propDueDate] = timeParam(p.DueDate)
	}
	if p.ReminderTime != nil {
		props[propReminderTime] = timeParam(p.ReminderTime)
	}
	if p.Priority != nil {
		props[propPriority] = nullString(string(*p.Priority))
	}
	if p.Repeat != nil {
		for k, v := range repeatProps(p.Repeat) {
			props[k] = v
		}
	}
	if p.Notes != nil {
		props[propNotes] = nullString(*p.Notes)
	}
	if p.Symbol != nil {
		props[propSymbol] = nullString(*p.Symbol)
	}
	for _, f := range p.Clear {
		switch f {
		case model.FieldDueDate:
			props[propDueDate] = nil
		case model.FieldReminderTime:
			props[propReminderTime] = nil
		case model.FieldPriority:
			props[propPriority] = nil
		case model.FieldRepeat:
			for k, v := range repeatProps(nil) {
				props[k] = v
			}
		case model.FieldNotes:
			props[propNotes] = nil
		case model.FieldDescription:
			props[propDescription] = nil
		case model.FieldSymbol:
			props[propSymbol] = nil
		}
	}
	return props
}

func categoryPatchProps(p model.CategoryPatch) map[string]interface{} {
	props := map[string]interface{}{}
	if p.Name != nil {
		props["name"] = *p.Name
	}
	if p.Color != nil {
		props["color"] = *p.Color
	}
	if p.Icon != nil {
		props["icon"] = nullString(*p.Icon)
	}
	if p.ClearIcon {
		props["icon"] = nil
	}
	return props
}

func str(props map[string]interface{}, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

// toTime accepts native temporal values and the ISO strings written by older clients.
func toTime(v interface{}) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &t, nil
	case interface{ Time() time.Time }:
		tt := t.Time()
		return &tt, nil
	case string:
		if t == "" {
			return nil, nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil, fmt.Errorf("parse time %q: %w", t, err)
		}
		return &parsed, nil
	default:
		return nil, fmt.Errorf("unsupported time value %T", v)
	}
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

func taskFromProps(props map[string]interface{}) (model.Task, error) {
	task := model.Task{
		ID:          str(props, "id"),
		Title:       str(props, propTitle),
		Description: str(props, propDescription),
		Category:    str(props, propCategory),
		Priority:    model.Priority(str(props, propPriority)),
		Notes:       str(props, propNotes),
		Symbol:      str(props, propSymbol),
	}
	if done, ok := props[propCompleted].(bool); ok {
		task.Completed = done
	}

	var err error
	if task.DueDate, err = toTime(props[propDueDate]); err != nil {
		return task, fmt.Errorf("task %s dueDate: %w", task.ID, err)
	}
	if task.ReminderTime, err = toTime(props[propReminderTime]); err != nil {
		return task, fmt.Errorf("task %s reminderTime: %w", task.ID, err)
	}
	created, err := toTime(props[propCreatedAt])
	if err != nil {
		return task, fmt.Errorf("task %s createdAt: %w", task.ID, err)
	}
	if created != nil {
		task.CreatedAt = *created
	}
	updated, err := toTime(props[propUpdatedAt])
	if err != nil {
		return task, fmt.Errorf("task %s updatedAt: %w", task.ID, err)
	}
	if updated != nil {
		task.UpdatedAt = *updated
	}

	if rt := str(props, propRepeatType); rt != "" {
		interval, ok := toInt(props[propRepeatInterval])
		if !ok || interval < 1 {
			interval = 1
		}
		end, err := toTime(props[propRepeatEndDate])
		if err != nil {
			return task, fmt.Errorf("task %s repeatEndDate: %w", task.ID, err)
		}
		pattern := &model.RepeatPattern{Type: model.RepeatType(rt), Interval: interval, EndDate: end}
		if list, ok := props[propRepeatDaysOfWeek].([]interface{}); ok {
			for _, item := range list {
				if n, ok := toInt(item); ok {
					pattern.DaysOfWeek = append(pattern.DaysOfWeek, time.Weekday(n))
				}
			}
		}
		task.Repeat = pattern
	}
	return task, nil
}

func categoryFromProps(props map[string]interface{}) model.Category {
	return model.Category{
		ID:    str(props, "id"),
		Name:  str(props, "name"),
		Color: str(props, "color"),
		Icon:  str(props, "icon"),
	}
}
