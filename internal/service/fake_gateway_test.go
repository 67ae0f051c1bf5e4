package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskbook/internal/model"
	"taskbook/internal/repository"
)

// fakeGateway keeps everything in memory, with a separate edge map so
// membership behaves like the real backends.
type fakeGateway struct {
	mu sync.Mutex

	nextID     int
	now        time.Time
	connected  bool
	tasks      map[string]model.Task
	order      []string
	categories map[string]model.Category
	edges      map[string]string // task id -> category id

	// failOn makes the named operation return the error.
	failOn map[string]error
	// block, when set, is waited on by ListTasks.
	block chan struct{}

	calls map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		now:        time.Date(2026, time.October, 16, 7, 0, 0, 0, time.UTC),
		tasks:      make(map[string]model.Task),
		categories: make(map[string]model.Category),
		edges:      make(map[string]string),
		failOn:     make(map[string]error),
		calls:      make(map[string]int),
	}
}

func (f *fakeGateway) enter(op string) error {
	f.calls[op]++
	if err, ok := f.failOn[op]; ok {
		return err
	}
	if op != "Connect" && !f.connected {
		return repository.ErrNotConnected
	}
	return nil
}

func (f *fakeGateway) tick() time.Time {
	f.now = f.now.Add(time.Minute)
	return f.now
}

func (f *fakeGateway) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeGateway) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Connect"); err != nil {
		return err
	}
	f.connected = true
	return nil
}

func (f *fakeGateway) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeGateway) CreateTask(_ context.Context, in model.TaskInput) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateTask"); err != nil {
		return nil, err
	}
	now := f.tick()
	task := model.Task{
		ID:           f.newID("task"),
		Title:        in.Title,
		Description:  in.Description,
		Completed:    in.Completed,
		DueDate:      in.DueDate,
		ReminderTime: in.ReminderTime,
		Category:     in.Category,
		Priority:     in.Priority,
		Repeat:       in.Repeat,
		Notes:        in.Notes,
		Symbol:       in.Symbol,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.tasks[task.ID] = task.Clone()
	f.order = append(f.order, task.ID)
	if _, ok := f.categories[in.Category]; ok {
		f.edges[task.ID] = in.Category
	}
	return &task, nil
}

func (f *fakeGateway) GetTask(_ context.Context, id string) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetTask"); err != nil {
		return nil, err
	}
	task, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	out := task.Clone()
	return &out, nil
}

func (f *fakeGateway) ListTasks(context.Context) ([]model.Task, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListTasks"); err != nil {
		return nil, err
	}
	out := make([]model.Task, 0, len(f.order))
	for _, id := range f.order {
		if task, ok := f.tasks[id]; ok {
			out = append(out, task.Clone())
		}
	}
	return out, nil
}

func (f *fakeGateway) UpdateTask(_ context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateTask"); err != nil {
		return nil, err
	}
	task, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	patch.Apply(&task)
	task.UpdatedAt = f.tick()
	f.tasks[id] = task
	out := task.Clone()
	return &out, nil
}

func (f *fakeGateway) DeleteTask(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteTask"); err != nil {
		return false, err
	}
	if _, ok := f.tasks[id]; !ok {
		return false, nil
	}
	delete(f.tasks, id)
	delete(f.edges, id)
	return true, nil
}

func (f *fakeGateway) CreateCategory(_ context.Context, in model.CategoryInput) (*model.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateCategory"); err != nil {
		return nil, err
	}
	cat := model.Category{ID: f.newID("cat"), Name: in.Name, Color: in.Color, Icon: in.Icon}
	f.categories[cat.ID] = cat
	return &cat, nil
}

func (f *fakeGateway) GetCategory(_ context.Context, id string) (*model.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetCategory"); err != nil {
		return nil, err
	}
	cat, ok := f.categories[id]
	if !ok {
		return nil, nil
	}
	return &cat, nil
}

func (f *fakeGateway) ListCategories(context.Context) ([]model.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListCategories"); err != nil {
		return nil, err
	}
	out := make([]model.Category, 0, len(f.categories))
	for _, c := range f.categories {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeGateway) UpdateCategory(_ context.Context, id string, patch model.CategoryPatch) (*model.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateCategory"); err != nil {
		return nil, err
	}
	cat, ok := f.categories[id]
	if !ok {
		return nil, nil
	}
	patch.Apply(&cat)
	f.categories[id] = cat
	return &cat, nil
}

func (f *fakeGateway) DeleteCategory(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteCategory"); err != nil {
		return false, err
	}
	if _, ok := f.categories[id]; !ok {
		return false, nil
	}
	delete(f.categories, id)
	for taskID, catID := range f.edges {
		if catID == id {
			delete(f.edges, taskID)
		}
	}
	return true, nil
}

func (f *fakeGateway) AssignTaskToCategory(_ context.Context, taskID, categoryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AssignTaskToCategory"); err != nil {
		return err
	}
	task, ok := f.tasks[taskID]
	if !ok {
		return &repository.NotFoundError{Kind: "task", ID: taskID}
	}
	if _, ok := f.categories[categoryID]; !ok {
		return &repository.NotFoundError{Kind: "category", ID: categoryID}
	}
	f.edges[taskID] = categoryID
	task.Category = categoryID
	task.UpdatedAt = f.tick()
	f.tasks[taskID] = task
	return nil
}

func (f *fakeGateway) UnassignTask(_ context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UnassignTask"); err != nil {
		return err
	}
	task, ok := f.tasks[taskID]
	if !ok {
		return &repository.NotFoundError{Kind: "task", ID: taskID}
	}
	delete(f.edges, taskID)
	task.Category = ""
	task.UpdatedAt = f.tick()
	f.tasks[taskID] = task
	return nil
}

func (f *fakeGateway) TasksByCategory(_ context.Context, categoryID string) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("TasksByCategory"); err != nil {
		return nil, err
	}
	var out []model.Task
	for _, id := range f.order {
		if f.edges[id] == categoryID {
			if task, ok := f.tasks[id]; ok {
				out = append(out, task.Clone())
			}
		}
	}
	return out, nil
}

// seedTask inserts a task behind the store's back, as another client would.
func (f *fakeGateway) seedTask(task model.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[task.ID] = task
	f.order = append(f.order, task.ID)
}

func (f *fakeGateway) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[op] = err
}

func (f *fakeGateway) heal(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failOn, op)
}
