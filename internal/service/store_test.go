package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taskbook/internal/logger"
	"taskbook/internal/model"
	"taskbook/internal/repository"
)

func newTestStore(t *testing.T) (*Store, *fakeGateway) {
	t.Helper()

	gw := newFakeGateway()
	s := NewStore(gw, logger.Nop(), model.NewValidator())
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return s, gw
}

func mustAddTask(t *testing.T, s *Store, in model.TaskInput) *model.Task {
	t.Helper()

	task, err := s.AddTask(context.Background(), in)
	if err != nil {
		t.Fatalf("add task %q: %v", in.Title, err)
	}
	return task
}

func TestInitLoadsBothCollections(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.seedTask(model.Task{ID: "t1", Title: "seeded"})
	gw.categories["c1"] = model.Category{ID: "c1", Name: "Home", Color: "#0f0"}

	s := NewStore(gw, logger.Nop(), nil)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if len(s.Tasks()) != 1 || len(s.Categories()) != 1 {
		t.Fatalf("loaded %d tasks, %d categories", len(s.Tasks()), len(s.Categories()))
	}
	if s.Loading() || s.Err() != "" {
		t.Fatalf("loading=%v err=%q after init", s.Loading(), s.Err())
	}
}

func TestInitFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		op   string
		err  error
	}{
		{name: "unreachable", op: "Connect", err: &repository.ConnectionError{Target: "neo4j://x", Err: errors.New("refused")}},
		{name: "tasks fetch", op: "ListTasks", err: errors.New("boom")},
		{name: "categories fetch", op: "ListCategories", err: errors.New("boom")},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gw := newFakeGateway()
			gw.fail(tt.op, tt.err)
			s := NewStore(gw, logger.Nop(), nil)

			err := s.Init(context.Background())
			if !errors.Is(err, tt.err) {
				t.Fatalf("Init err = %v, want %v", err, tt.err)
			}
			if s.Err() != MsgConnect {
				t.Fatalf("Err() = %q", s.Err())
			}
			if s.Loading() {
				t.Fatalf("loading must be cleared after failure")
			}
			if gw.calls["Connect"] != 1 {
				t.Fatalf("connect called %d times, want exactly 1", gw.calls["Connect"])
			}
		})
	}
}

func TestTodayUpcomingAndCompletionScenario(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	today := testNow
	nextWeek := testNow.AddDate(0, 0, 7)
	milk := mustAddTask(t, s, model.TaskInput{Title: "Buy milk", DueDate: &today})
	mustAddTask(t, s, model.TaskInput{Title: "Pay rent", DueDate: &nextWeek})

	tasks := s.Tasks()
	if got := titles(Today(tasks, testNow)); len(got) != 1 || got[0] != "Buy milk" {
		t.Fatalf("Today = %v", got)
	}
	if got := titles(Upcoming(tasks, testNow)); len(got) != 1 || got[0] != "Pay rent" {
		t.Fatalf("Upcoming = %v", got)
	}
	if r := CompletionRatio(tasks); r != 0 {
		t.Fatalf("ratio before toggle = %v", r)
	}

	if _, err := s.ToggleCompletion(ctx, milk.ID, true); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if r := CompletionRatio(s.Tasks()); r != 0.5 {
		t.Fatalf("ratio after toggle = %v, want 0.5", r)
	}
}

func titles(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func TestFailedMutationRecordsMessageAndReturnsError(t *testing.T) {
	t.Parallel()

	s, gw := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("backend exploded")

	gw.fail("CreateTask", boom)
	if _, err := s.AddTask(ctx, model.TaskInput{Title: "x"}); !errors.Is(err, boom) {
		t.Fatalf("AddTask err = %v, want %v", err, boom)
	}
	if s.Err() != MsgAddTask {
		t.Fatalf("Err() = %q", s.Err())
	}
	if len(s.Tasks()) != 0 {
		t.Fatalf("failed add must not touch the cache")
	}
	if s.Loading() {
		t.Fatalf("loading left set after failure")
	}

	gw.heal("CreateTask")
	mustAddTask(t, s, model.TaskInput{Title: "x"})
	if s.Err() != "" {
		t.Fatalf("success must clear the error, got %q", s.Err())
	}
}

func TestValidationStopsBeforeGateway(t *testing.T) {
	t.Parallel()

	bad := model.PriorityHigh + "est"
	tests := []struct {
		name string
		in   model.TaskInput
	}{
		{name: "blank title", in: model.TaskInput{Title: "   "}},
		{name: "unknown priority", in: model.TaskInput{Title: "ok", Priority: bad}},
		{name: "zero interval", in: model.TaskInput{Title: "ok", Repeat: &model.RepeatPattern{Type: model.RepeatDaily}}},
		{name: "unknown repeat type", in: model.TaskInput{Title: "ok", Repeat: &model.RepeatPattern{Type: "hourly", Interval: 1}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, gw := newTestStore(t)
			_, err := s.AddTask(context.Background(), tt.in)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
			if gw.calls["CreateTask"] != 0 {
				t.Fatalf("gateway reached with invalid input")
			}
		})
	}
}

func TestUpdateReconcilesSingleTask(t *testing.T) {
	t.Parallel()

	s, gw := newTestStore(t)
	ctx := context.Background()
	a := mustAddTask(t, s, model.TaskInput{Title: "a"})
	b := mustAddTask(t, s, model.TaskInput{Title: "b"})
	listCalls := gw.calls["ListTasks"]

	title := "  a renamed "
	updated, err := s.UpdateTask(ctx, a.ID, model.TaskPatch{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "a renamed" || !updated.UpdatedAt.After(a.UpdatedAt) {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if got, _ := s.Task(a.ID); got.Title != "a renamed" {
		t.Fatalf("cache not reconciled: %q", got.Title)
	}
	if got, _ := s.Task(b.ID); got.Title != "b" {
		t.Fatalf("unrelated task changed")
	}
	if gw.calls["ListTasks"] != listCalls {
		t.Fatalf("update must not refetch the collection")
	}
}

func TestUpdateMissingTask(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	done := true
	_, err := s.UpdateTask(context.Background(), "nope", model.TaskPatch{Completed: &done})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if s.Err() != MsgUpdateTask {
		t.Fatalf("Err() = %q", s.Err())
	}
}

func TestDeleteTask(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	task := mustAddTask(t, s, model.TaskInput{Title: "temp"})

	ok, err := s.DeleteTask(ctx, task.ID)
	if err != nil || !ok {
		t.Fatalf("delete = %v, %v", ok, err)
	}
	if _, found := s.Task(task.ID); found {
		t.Fatalf("deleted task still cached")
	}
	ok, err = s.DeleteTask(ctx, task.ID)
	if err != nil || ok {
		t.Fatalf("second delete = %v, %v", ok, err)
	}
}

func TestAssignUpdatesOnlyLoadedTasks(t *testing.T) {
	t.Parallel()

	s, gw := newTestStore(t)
	ctx := context.Background()
	cat, err := s.AddCategory(ctx, model.CategoryInput{Name: "Work", Color: "#00f"})
	if err != nil {
		t.Fatalf("add category: %v", err)
	}
	loaded := mustAddTask(t, s, model.TaskInput{Title: "loaded"})
	gw.seedTask(model.Task{ID: "ghost", Title: "added elsewhere"})

	if err := s.AssignTaskToCategory(ctx, loaded.ID, cat.ID); err != nil {
		t.Fatalf("assign loaded: %v", err)
	}
	if got, _ := s.Task(loaded.ID); got.Category != cat.ID {
		t.Fatalf("cached category = %q", got.Category)
	}

	if err := s.AssignTaskToCategory(ctx, "ghost", cat.ID); err != nil {
		t.Fatalf("assign ghost: %v", err)
	}
	if _, found := s.Task("ghost"); found {
		t.Fatalf("assign must not pull unknown tasks into the cache")
	}

	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got, _ := s.Task("ghost"); got.Category != cat.ID {
		t.Fatalf("refresh did not pick up assignment: %+v", got)
	}

	members, err := s.TasksByCategory(ctx, cat.ID)
	if err != nil || len(members) != 2 {
		t.Fatalf("TasksByCategory = %v, %v", members, err)
	}

	if err := s.UnassignTask(ctx, loaded.ID); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if got, _ := s.Task(loaded.ID); got.Category != "" {
		t.Fatalf("unassign left category %q", got.Category)
	}
}

func TestAssignMissingIDs(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	task := mustAddTask(t, s, model.TaskInput{Title: "x"})

	err := s.AssignTaskToCategory(ctx, task.ID, "missing")
	var nf *repository.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "category" {
		t.Fatalf("err = %v, want category not found", err)
	}
	if s.Err() != MsgAssign {
		t.Fatalf("Err() = %q", s.Err())
	}
}

func TestDeleteCategoryLeavesDanglingReference(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	cat, err := s.AddCategory(ctx, model.CategoryInput{Name: "Errands", Color: "#f80"})
	if err != nil {
		t.Fatalf("add category: %v", err)
	}
	task := mustAddTask(t, s, model.TaskInput{Title: "groceries", Category: cat.ID})

	ok, err := s.DeleteCategory(ctx, cat.ID)
	if err != nil || !ok {
		t.Fatalf("delete category = %v, %v", ok, err)
	}
	if got, _ := s.Task(task.ID); got.Category != cat.ID {
		t.Fatalf("task category = %q, want dangling %q", got.Category, cat.ID)
	}
	if _, found := s.Category(cat.ID); found {
		t.Fatalf("category still cached")
	}
	members, err := s.TasksByCategory(ctx, cat.ID)
	if err != nil || len(members) != 0 {
		t.Fatalf("TasksByCategory after delete = %v, %v", members, err)
	}
}

func TestUpdateCategory(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	cat, err := s.AddCategory(ctx, model.CategoryInput{Name: "Work", Color: "#00f", Icon: "briefcase"})
	if err != nil {
		t.Fatalf("add category: %v", err)
	}

	name := "Office"
	got, err := s.UpdateCategory(ctx, cat.ID, model.CategoryPatch{Name: &name, ClearIcon: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Office" || got.IconOrDefault() != model.DefaultCategoryIcon {
		t.Fatalf("unexpected category %+v", got)
	}
	if cached, _ := s.Category(cat.ID); cached.Name != "Office" {
		t.Fatalf("cache not reconciled")
	}

	blank := " "
	if _, err := s.UpdateCategory(ctx, cat.ID, model.CategoryPatch{Name: &blank}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank name err = %v", err)
	}
}

func TestLoadingCountsConcurrentOperations(t *testing.T) {
	t.Parallel()

	s, gw := newTestStore(t)
	release := make(chan struct{})
	gw.mu.Lock()
	gw.block = release
	gw.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.FetchTasks(context.Background())
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Pending() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("pending = %d, want 2", s.Pending())
		}
		time.Sleep(time.Millisecond)
	}
	if !s.Loading() {
		t.Fatalf("loading must be true with operations in flight")
	}

	close(release)
	wg.Wait()
	if s.Loading() || s.Pending() != 0 {
		t.Fatalf("loading=%v pending=%d after all calls returned", s.Loading(), s.Pending())
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	due := testNow
	task := mustAddTask(t, s, model.TaskInput{Title: "original", DueDate: &due})

	snap := s.Tasks()
	snap[0].Title = "mutated"
	*snap[0].DueDate = due.AddDate(1, 0, 0)

	got, _ := s.Task(task.ID)
	if got.Title != "original" || !got.DueDate.Equal(due) {
		t.Fatalf("cache mutated through snapshot: %+v", got)
	}
}

func TestOperationsBeforeInit(t *testing.T) {
	t.Parallel()

	s := NewStore(newFakeGateway(), logger.Nop(), nil)
	if err := s.FetchTasks(context.Background()); !errors.Is(err, repository.ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
	if s.Err() != MsgFetchTasks {
		t.Fatalf("Err() = %q", s.Err())
	}
}
