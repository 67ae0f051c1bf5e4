package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"taskbook/internal/logger"
	"taskbook/internal/model"
	"taskbook/internal/repository"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	g := New(dsn, logger.Nop())
	if err := g.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = g.Close(context.Background()) })
	return g
}

func mustCreateTask(t *testing.T, g *Gateway, in model.TaskInput) *model.Task {
	t.Helper()

	task, err := g.CreateTask(context.Background(), in)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func mustCreateCategory(t *testing.T, g *Gateway, name string) *model.Category {
	t.Helper()

	cat, err := g.CreateCategory(context.Background(), model.CategoryInput{Name: name, Color: "#ff0000"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	return cat
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)
	ctx := context.Background()

	due := time.Date(2026, time.October, 20, 18, 30, 0, 0, time.UTC)
	end := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)
	in := model.TaskInput{
		Title:       "Pay rent",
		Description: "landlord transfer",
		DueDate:     &due,
		Priority:    model.PriorityHigh,
		Repeat:      &model.RepeatPattern{Type: model.RepeatMonthly, Interval: 1, EndDate: &end, DaysOfWeek: []time.Weekday{time.Monday, time.Friday}},
		Notes:       "before the 1st",
		Symbol:      "cash",
	}

	created := mustCreateTask(t, g, in)
	if created.ID == "" || created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("backend-assigned fields missing: %+v", created)
	}
	if created.Completed {
		t.Fatalf("new task should not be completed")
	}

	got, err := g.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got == nil {
		t.Fatalf("task %s not found", created.ID)
	}
	if got.Title != in.Title || got.Description != in.Description || got.Priority != in.Priority ||
		got.Notes != in.Notes || got.Symbol != in.Symbol {
		t.Fatalf("scalar fields differ: %+v", got)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Fatalf("due date = %v, want %v", got.DueDate, due)
	}
	if got.Repeat == nil || got.Repeat.String() != in.Repeat.String() {
		t.Fatalf("repeat = %v, want %v", got.Repeat, in.Repeat)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("createdAt changed: %v vs %v", got.CreatedAt, created.CreatedAt)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)
	task, err := g.GetTask(context.Background(), "missing")
	if err != nil || task != nil {
		t.Fatalf("GetTask(missing) = %v, %v", task, err)
	}
	cat, err := g.GetCategory(context.Background(), "missing")
	if err != nil || cat != nil {
		t.Fatalf("GetCategory(missing) = %v, %v", cat, err)
	}
}

func TestUpdateTaskRefreshesUpdatedAtAndKeepsCreatedAt(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)
	ctx := context.Background()
	base := time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return base }

	due := base.AddDate(0, 0, 2)
	created := mustCreateTask(t, g, model.TaskInput{Title: "Buy milk", DueDate: &due, Priority: model.PriorityLow})

	g.now = func() time.Time { return base.Add(time.Hour) }
	done := true
	updated, err := g.UpdateTask(ctx, created.ID, model.TaskPatch{Completed: &done, Clear: []model.TaskField{model.FieldDueDate}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated == nil {
		t.Fatalf("update returned nil for existing task")
	}
	if !updated.Completed || updated.DueDate != nil {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if updated.Priority != model.PriorityLow || updated.Title != "Buy milk" {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
	if !updated.CreatedAt.Equal(base) {
		t.Fatalf("createdAt = %v, want %v", updated.CreatedAt, base)
	}
	if !updated.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("updatedAt = %v, want %v", updated.UpdatedAt, base.Add(time.Hour))
	}
}

func TestUpdateMissingTaskReturnsNil(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)
	title := "x"
	task, err := g.UpdateTask(context.Background(), "missing", model.TaskPatch{Title: &title})
	if err != nil || task != nil {
		t.Fatalf("UpdateTask(missing) = %v, %v", task, err)
	}
}

func TestPatchValuesAreBoundNotInterpolated(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)
	ctx := context.Background()
	victim := mustCreateTask(t, g, model.TaskInput{Title: "keep me"})
	target := mustCreateTask(t, g, model.TaskInput{Title: "target"})

	evil := "x', title = 'pwned"
	if _, err := g.UpdateTask(ctx, target.ID, model.TaskPatch{Notes: &evil}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := g.GetTask(ctx, target.ID)
	if got.Notes != evil || got.Title != "target" {
		t.Fatalf("notes not stored verbatim: %+v", got)
	}
	other, _ := g.GetTask(ctx, victim.ID)
	if other.Title != "keep me" {
		t.Fatalf("unrelated task modified: %+v", other)
	}
}

func TestDeleteTask(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)
	ctx := context.Background()
	task := mustCreateTask(t, g, model.TaskInput{Title: "temp"})

	ok, err := g.DeleteTask(ctx, task.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteTask = %v, %v", ok, err)
	}
	ok, err = g.DeleteTask(ctx, task.ID)
	if err != nil || ok {
		t.Fatalf("second DeleteTask = %v, %v", ok, err)
	}
}

func TestAssignAndTasksByCategory(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)
	ctx := context.Background()
	work := mustCreateCategory(t, g, "Work")
	home := mustCreateCategory(t, g, "Home")
	task := mustCreateTask(t, g, model.TaskInput{Title: "Report"})

	if err := g.AssignTaskToCategory(ctx, task.ID, work.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := g.AssignTaskToCategory(ctx, task.ID, home.ID); err != nil {
		t.Fatalf("reassign: %v", err)
	}

	got, _ := g.GetTask(ctx, task.ID)
	if got.Category != home.ID {
		t.Fatalf("scalar category = %q, want %q", got.Category, home.ID)
	}
	inWork, err := g.TasksByCategory(ctx, work.ID)
	if err != nil {
		t.Fatalf("tasks by category: %v", err)
	}
	if len(inWork) != 0 {
		t.Fatalf("old edge kept: %v", inWork)
	}
	inHome, _ := g.TasksByCategory(ctx, home.ID)
	if len(inHome) != 1 || inHome[0].ID != task.ID {
		t.Fatalf("tasks in home = %v", inHome)
	}

	if err := g.UnassignTask(ctx, task.ID); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	got, _ = g.GetTask(ctx, task.ID)
	if got.Category != "" {
		t.Fatalf("scalar category not cleared: %q", got.Category)
	}
	inHome, _ = g.TasksByCategory(ctx, home.ID)
	if len(inHome) != 0 {
		t.Fatalf("edge not removed: %v", inHome)
	}
}

func TestAssignMissingIDs(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)
	ctx := context.Background()
	cat := mustCreateCategory(t, g, "Work")
	task := mustCreateTask(t, g, model.TaskInput{Title: "Report"})

	err := g.AssignTaskToCategory(ctx, "nope", cat.ID)
	var nf *repository.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "task" {
		t.Fatalf("expected task NotFoundError, got %v", err)
	}
	err = g.AssignTaskToCategory(ctx, task.ID, "nope")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateWithCategoryCreatesEdge(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)
	ctx := context.Background()
	cat := mustCreateCategory(t, g, "Errands")
	task := mustCreateTask(t, g, model.TaskInput{Title: "Post office", Category: cat.ID})

	tasks, err := g.TasksByCategory(ctx, cat.ID)
	if err != nil || len(tasks) != 1 || tasks[0].ID != task.ID {
		t.Fatalf("TasksByCategory = %v, %v", tasks, err)
	}

	orphan := mustCreateTask(t, g, model.TaskInput{Title: "Orphan", Category: "unknown"})
	if orphan.Category != "unknown" {
		t.Fatalf("dangling scalar dropped: %+v", orphan)
	}
}

func TestDeleteCategoryLeavesDanglingReference(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)
	ctx := context.Background()
	cat := mustCreateCategory(t, g, "Work")
	task := mustCreateTask(t, g, model.TaskInput{Title: "Report"})
	if err := g.AssignTaskToCategory(ctx, task.ID, cat.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	ok, err := g.DeleteCategory(ctx, cat.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteCategory = %v, %v", ok, err)
	}

	got, _ := g.GetTask(ctx, task.ID)
	if got == nil || got.Category != cat.ID {
		t.Fatalf("task category changed after delete: %+v", got)
	}
	tasks, err := g.TasksByCategory(ctx, cat.ID)
	if err != nil || len(tasks) != 0 {
		t.Fatalf("TasksByCategory(deleted) = %v, %v", tasks, err)
	}
}

func TestUpdateCategory(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)
	ctx := context.Background()
	cat, err := g.CreateCategory(ctx, model.CategoryInput{Name: "Work", Color: "#000", Icon: "briefcase"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "Office"
	updated, err := g.UpdateCategory(ctx, cat.ID, model.CategoryPatch{Name: &name, ClearIcon: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Office" || updated.Color != "#000" || updated.Icon != "" {
		t.Fatalf("unexpected category: %+v", updated)
	}
	if updated.IconOrDefault() != model.DefaultCategoryIcon {
		t.Fatalf("icon default not applied")
	}

	missing, err := g.UpdateCategory(ctx, "missing", model.CategoryPatch{Name: &name})
	if err != nil || missing != nil {
		t.Fatalf("UpdateCategory(missing) = %v, %v", missing, err)
	}
}

func TestOperationsBeforeConnect(t *testing.T) {
	t.Parallel()

	g := New("file:unused?mode=memory", logger.Nop())
	if _, err := g.ListTasks(context.Background()); !errors.Is(err, repository.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}
