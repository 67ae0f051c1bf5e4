package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"taskbook/internal/logger"
	"taskbook/internal/model"
	"taskbook/internal/repository"
)

// User-facing messages recorded when an operation fails.
const (
	MsgConnect        = "Failed to connect to database. Please try again later."
	MsgFetchTasks     = "Failed to fetch tasks. Please try again later."
	MsgFetchCats      = "Failed to fetch categories. Please try again later."
	MsgAddTask        = "Failed to add task. Please try again later."
	MsgUpdateTask     = "Failed to update task. Please try again later."
	MsgDeleteTask     = "Failed to delete task. Please try again later."
	MsgAddCategory    = "Failed to add category. Please try again later."
	MsgUpdateCategory = "Failed to update category. Please try again later."
	MsgDeleteCategory = "Failed to delete category. Please try again later."
	MsgAssign         = "Failed to assign task to category. Please try again later."
	MsgUnassign       = "Failed to remove task from category. Please try again later."
	MsgTasksByCat     = "Failed to fetch tasks by category. Please try again later."
)

// ErrInvalidInput wraps validation failures. Such calls never reach the gateway.
var ErrInvalidInput = errors.New("invalid input")

// Store caches the loaded tasks and categories and routes every write through
// the gateway. It is safe for concurrent use.
type Store struct {
	gw       repository.Gateway
	log      *logger.Logger
	validate *validator.Validate

	inflight atomic.Int64

	mu         sync.RWMutex
	tasks      []model.Task
	categories []model.Category
	lastErr    string
}

func NewStore(gw repository.Gateway, log *logger.Logger, validate *validator.Validate) *Store {
	if validate == nil {
		validate = model.NewValidator()
	}
	return &Store{
		gw:       gw,
		log:      log.WithComponent("store"),
		validate: validate,
	}
}

// Loading reports whether any operation is in flight.
func (s *Store) Loading() bool {
	return s.inflight.Load() > 0
}

// Pending returns the number of operations in flight.
func (s *Store) Pending() int {
	return int(s.inflight.Load())
}

// Err returns the message left by the last failed operation, or "".
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store) begin() func() {
	s.inflight.Add(1)
	return func() { s.inflight.Add(-1) }
}

func (s *Store) succeed() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *Store) fail(msg, op string, err error) error {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
	s.log.Errorw("operation failed", "op", op, "error", err)
	return err
}

func (s *Store) check(v interface{}) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (s *Store) checkRepeat(r *model.RepeatPattern) error {
	if r == nil {
		return nil
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Init connects the gateway and loads both collections concurrently. It does
// not retry.
func (s *Store) Init(ctx context.Context) error {
	defer s.begin()()

	if err := s.gw.Connect(ctx); err != nil {
		return s.fail(MsgConnect, "connect", err)
	}
	tasks, cats, err := s.fetchAll(ctx)
	if err != nil {
		return s.fail(MsgConnect, "initial fetch", err)
	}

	s.mu.Lock()
	s.tasks, s.categories, s.lastErr = tasks, cats, ""
	s.mu.Unlock()
	s.log.Infow("store initialised", "tasks", len(tasks), "categories", len(cats))
	return nil
}

func (s *Store) fetchAll(ctx context.Context) ([]model.Task, []model.Category, error) {
	var (
		tasks []model.Task
		cats  []model.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = s.gw.ListTasks(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		cats, err = s.gw.ListCategories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return tasks, cats, nil
}

// Refresh reloads both collections, replacing the cache only when both succeed.
func (s *Store) Refresh(ctx context.Context) error {
	defer s.begin()()

	tasks, cats, err := s.fetchAll(ctx)
	if err != nil {
		return s.fail(MsgFetchTasks, "refresh", err)
	}
	s.mu.Lock()
	s.tasks, s.categories, s.lastErr = tasks, cats, ""
	s.mu.Unlock()
	return nil
}

func (s *Store) FetchTasks(ctx context.Context) error {
	defer s.begin()()

	tasks, err := s.gw.ListTasks(ctx)
	if err != nil {
		return s.fail(MsgFetchTasks, "fetch tasks", err)
	}
	s.mu.Lock()
	s.tasks, s.lastErr = tasks, ""
	s.mu.Unlock()
	return nil
}

func (s *Store) FetchCategories(ctx context.Context) error {
	defer s.begin()()

	cats, err := s.gw.ListCategories(ctx)
	if err != nil {
		return s.fail(MsgFetchCats, "fetch categories", err)
	}
	s.mu.Lock()
	s.categories, s.lastErr = cats, ""
	s.mu.Unlock()
	return nil
}

func (s *Store) AddTask(ctx context.Context, in model.TaskInput) (*model.Task, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if err := s.checkRepeat(in.Repeat); err != nil {
		return nil, err
	}
	defer s.begin()()

	task, err := s.gw.CreateTask(ctx, in)
	if err != nil {
		return nil, s.fail(MsgAddTask, "add task", err)
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, task.Clone())
	s.lastErr = ""
	s.mu.Unlock()

	out := task.Clone()
	return &out, nil
}

// UpdateTask applies a partial update. A task that no longer exists is
// dropped from the cache and reported as *repository.NotFoundError.
func (s *Store) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	if err := s.check(patch); err != nil {
		return nil, err
	}
	if err := s.checkRepeat(patch.Repeat); err != nil {
		return nil, err
	}
	defer s.begin()()

	task, err := s.gw.UpdateTask(ctx, id, patch)
	if err != nil {
		return nil, s.fail(MsgUpdateTask, "update task", err)
	}
	if task == nil {
		s.removeTask(id)
		return nil, s.fail(MsgUpdateTask, "update task", &repository.NotFoundError{Kind: "task", ID: id})
	}

	s.mu.Lock()
	s.replaceTask(task.Clone())
	s.lastErr = ""
	s.mu.Unlock()

	out := task.Clone()
	return &out, nil
}

// ToggleCompletion sets the completed flag.
func (s *Store) ToggleCompletion(ctx context.Context, id string, completed bool) (*model.Task, error) {
	return s.UpdateTask(ctx, id, model.TaskPatch{Completed: &completed})
}

// DeleteTask reports whether the backend had the task.
func (s *Store) DeleteTask(ctx context.Context, id string) (bool, error) {
	defer s.begin()()

	ok, err := s.gw.DeleteTask(ctx, id)
	if err != nil {
		return false, s.fail(MsgDeleteTask, "delete task", err)
	}
	s.removeTask(id)
	s.succeed()
	return ok, nil
}

func (s *Store) AddCategory(ctx context.Context, in model.CategoryInput) (*model.Category, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	defer s.begin()()

	cat, err := s.gw.CreateCategory(ctx, in)
	if err != nil {
		return nil, s.fail(MsgAddCategory, "add category", err)
	}

	s.mu.Lock()
	s.categories = append(s.categories, *cat)
	s.lastErr = ""
	s.mu.Unlock()

	out := *cat
	return &out, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id string, patch model.CategoryPatch) (*model.Category, error) {
	if err := s.check(patch); err != nil {
		return nil, err
	}
	defer s.begin()()

	cat, err := s.gw.UpdateCategory(ctx, id, patch)
	if err != nil {
		return nil, s.fail(MsgUpdateCategory, "update category", err)
	}
	if cat == nil {
		s.removeCategory(id)
		return nil, s.fail(MsgUpdateCategory, "update category", &repository.NotFoundError{Kind: "category", ID: id})
	}

	s.mu.Lock()
	for i := range s.categories {
		if s.categories[i].ID == id {
			s.categories[i] = *cat
		}
	}
	s.lastErr = ""
	s.mu.Unlock()

	out := *cat
	return &out, nil
}

// DeleteCategory removes the category. Cached tasks keep their category
// value, matching what the backend does.
func (s *Store) DeleteCategory(ctx context.Context, id string) (bool, error) {
	defer s.begin()()

	ok, err := s.gw.DeleteCategory(ctx, id)
	if err != nil {
		return false, s.fail(MsgDeleteCategory, "delete category", err)
	}
	s.removeCategory(id)
	s.succeed()
	return ok, nil
}

// AssignTaskToCategory links a task to a category. The cached task is updated
// only when it is loaded; otherwise the next fetch picks the change up.
func (s *Store) AssignTaskToCategory(ctx context.Context, taskID, categoryID string) error {
	defer s.begin()()

	if err := s.gw.AssignTaskToCategory(ctx, taskID, categoryID); err != nil {
		return s.fail(MsgAssign, "assign task", err)
	}
	s.setCachedCategory(taskID, categoryID)
	s.succeed()
	return nil
}

func (s *Store) UnassignTask(ctx context.Context, taskID string) error {
	defer s.begin()()

	if err := s.gw.UnassignTask(ctx, taskID); err != nil {
		return s.fail(MsgUnassign, "unassign task", err)
	}
	s.setCachedCategory(taskID, "")
	s.succeed()
	return nil
}

// TasksByCategory asks the backend for the tasks linked to a category. The
// cache is not touched.
func (s *Store) TasksByCategory(ctx context.Context, categoryID string) ([]model.Task, error) {
	defer s.begin()()

	tasks, err := s.gw.TasksByCategory(ctx, categoryID)
	if err != nil {
		return nil, s.fail(MsgTasksByCat, "tasks by category", err)
	}
	s.succeed()
	return tasks, nil
}

// Tasks returns a copy of the cached tasks in load order.
func (s *Store) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

func (s *Store) Categories() []model.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Category(nil), s.categories...)
}

func (s *Store) TaskCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *Store) CategoryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.categories)
}

// Task looks a task up in the cache.
func (s *Store) Task(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return model.Task{}, false
}

func (s *Store) Category(id string) (model.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return model.Category{}, false
}

func (s *Store) Close(ctx context.Context) error {
	return s.gw.Close(ctx)
}

// replaceTask expects s.mu to be held.
func (s *Store) replaceTask(task model.Task) {
	for i := range s.tasks {
		if s.tasks[i].ID == task.ID {
			s.tasks[i] = task
			return
		}
	}
	s.tasks = append(s.tasks, task)
}

func (s *Store) removeTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return
		}
	}
}

func (s *Store) removeCategory(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.categories {
		if s.categories[i].ID == id {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			return
		}
	}
}

func (s *Store) setCachedCategory(taskID, categoryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == taskID {
			s.tasks[i].Category = categoryID
			return
		}
	}
}
