package graphstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"taskbook/internal/config"
	"taskbook/internal/logger"
	"taskbook/internal/model"
	"taskbook/internal/repository"
)

// Gateway talks to a Neo4j database. Every call opens its own session and
// closes it before returning, on success and on failure.
type Gateway struct {
	cfg config.Neo4jConfig
	log *logger.Logger

	mu     sync.RWMutex
	driver neo4j.DriverWithContext
}

var _ repository.Gateway = (*Gateway)(nil)

func New(cfg config.Neo4jConfig, log *logger.Logger) *Gateway {
	return &Gateway{cfg: cfg, log: log.WithComponent("graphstore")}
}

func (g *Gateway) Connect(ctx context.Context) error {
	driver, err := neo4j.NewDriverWithContext(g.cfg.URI, neo4j.BasicAuth(g.cfg.Username, g.cfg.Password, ""))
	if err != nil {
		return &repository.ConnectionError{Target: g.cfg.URI, Err: err}
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return &repository.ConnectionError{Target: g.cfg.URI, Err: err}
	}

	g.mu.Lock()
	old := g.driver
	g.driver = driver
	g.mu.Unlock()
	if old != nil {
		_ = old.Close(ctx)
	}

	g.log.Infow("connected", "uri", g.cfg.URI, "database", g.cfg.Database)
	return nil
}

func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	driver := g.driver
	g.driver = nil
	g.mu.Unlock()
	if driver == nil {
		return nil
	}
	g.log.Infow("disconnected", "uri", g.cfg.URI)
	return driver.Close(ctx)
}

// run executes one auto-commit statement in a fresh session.
func (g *Gateway) run(ctx context.Context, mode neo4j.AccessMode, query string, params map[string]interface{}) (records []*neo4j.Record, err error) {
	g.mu.RLock()
	driver := g.driver
	g.mu.RUnlock()
	if driver == nil {
		return nil, repository.ErrNotConnected
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: g.cfg.Database})
	defer func() {
		if cerr := session.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return result.Collect(ctx)
}

func (g *Gateway) write(ctx context.Context, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	return g.run(ctx, neo4j.AccessModeWrite, query, params)
}

func (g *Gateway) read(ctx context.Context, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	return g.run(ctx, neo4j.AccessModeRead, query, params)
}

func nodeProps(rec *neo4j.Record, key string) (map[string]interface{}, error) {
	raw, ok := rec.Get(key)
	if !ok {
		return nil, fmt.Errorf("record has no %q column", key)
	}
	node, ok := raw.(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("column %q is %T, not a node", key, raw)
	}
	return node.Props, nil
}

func taskFromRecord(rec *neo4j.Record) (model.Task, error) {
	props, err := nodeProps(rec, "t")
	if err != nil {
		return model.Task{}, err
	}
	return taskFromProps(props)
}

func tasksFromRecords(records []*neo4j.Record) ([]model.Task, error) {
	out := make([]model.Task, 0, len(records))
	for _, rec := range records {
		task, err := taskFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}

func firstTask(records []*neo4j.Record) (*model.Task, error) {
	if len(records) == 0 {
		return nil, nil
	}
	task, err := taskFromRecord(records[0])
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func firstCategory(records []*neo4j.Record) (*model.Category, error) {
	if len(records) == 0 {
		return nil, nil
	}
	props, err := nodeProps(records[0], "c")
	if err != nil {
		return nil, err
	}
	cat := categoryFromProps(props)
	return &cat, nil
}

func deletedCount(records []*neo4j.Record) bool {
	if len(records) == 0 {
		return false
	}
	raw, _ := records[0].Get("deleted")
	n, _ := toInt(raw)
	return n > 0
}

func flag(rec *neo4j.Record, key string) bool {
	raw, _ := rec.Get(key)
	b, _ := raw.(bool)
	return b
}

func (g *Gateway) CreateTask(ctx context.Context, in model.TaskInput) (*model.Task, error) {
	records, err := g.write(ctx, createTaskQuery, createTaskParams(in))
	if err != nil {
		return nil, repository.Wrap("create task", err)
	}
	task, err := firstTask(records)
	if err != nil {
		return nil, repository.Wrap("create task", err)
	}
	if task == nil {
		return nil, repository.Wrap("create task", fmt.Errorf("no node returned"))
	}
	return task, nil
}

func (g *Gateway) GetTask(ctx context.Context, id string) (*model.Task, error) {
	records, err := g.read(ctx, getTaskQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, repository.Wrap("get task", err)
	}
	task, err := firstTask(records)
	return task, repository.Wrap("get task", err)
}

func (g *Gateway) ListTasks(ctx context.Context) ([]model.Task, error) {
	records, err := g.read(ctx, listTasksQuery, nil)
	if err != nil {
		return nil, repository.Wrap("list tasks", err)
	}
	tasks, err := tasksFromRecords(records)
	return tasks, repository.Wrap("list tasks", err)
}

func (g *Gateway) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	params := map[string]interface{}{"id": id, "props": patchProps(patch)}
	records, err := g.write(ctx, updateTaskQuery, params)
	if err != nil {
		return nil, repository.Wrap("update task", err)
	}
	task, err := firstTask(records)
	return task, repository.Wrap("update task", err)
}

func (g *Gateway) DeleteTask(ctx context.Context, id string) (bool, error) {
	records, err := g.write(ctx, deleteTaskQuery, map[string]interface{}{"id": id})
	if err != nil {
		return false, repository.Wrap("delete task", err)
	}
	return deletedCount(records), nil
}

func (g *Gateway) CreateCategory(ctx context.Context, in model.CategoryInput) (*model.Category, error) {
	params := map[string]interface{}{"name": in.Name, "color": in.Color, "icon": nullString(in.Icon)}
	records, err := g.write(ctx, createCategoryQuery, params)
	if err != nil {
		return nil, repository.Wrap("create category", err)
	}
	cat, err := firstCategory(records)
	if err != nil {
		return nil, repository.Wrap("create category", err)
	}
	if cat == nil {
		return nil, repository.Wrap("create category", fmt.Errorf("no node returned"))
	}
	return cat, nil
}

func (g *Gateway) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	records, err := g.read(ctx, getCategoryQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, repository.Wrap("get category", err)
	}
	cat, err := firstCategory(records)
	return cat, repository.Wrap("get category", err)
}

func (g *Gateway) ListCategories(ctx context.Context) ([]model.Category, error) {
	records, err := g.read(ctx, listCategoriesQuery, nil)
	if err != nil {
		return nil, repository.Wrap("list categories", err)
	}
	out := make([]model.Category, 0, len(records))
	for _, rec := range records {
		props, err := nodeProps(rec, "c")
		if err != nil {
			return nil, repository.Wrap("list categories", err)
		}
		out = append(out, categoryFromProps(props))
	}
	return out, nil
}

func (g *Gateway) UpdateCategory(ctx context.Context, id string, patch model.CategoryPatch) (*model.Category, error) {
	params := map[string]interface{}{"id": id, "props": categoryPatchProps(patch)}
	records, err := g.write(ctx, updateCategoryQuery, params)
	if err != nil {
		return nil, repository.Wrap("update category", err)
	}
	cat, err := firstCategory(records)
	return cat, repository.Wrap("update category", err)
}

func (g *Gateway) DeleteCategory(ctx context.Context, id string) (bool, error) {
	records, err := g.write(ctx, deleteCategoryQuery, map[string]interface{}{"id": id})
	if err != nil {
		return false, repository.Wrap("delete category", err)
	}
	return deletedCount(records), nil
}

func (g *Gateway) AssignTaskToCategory(ctx context.Context, taskID, categoryID string) error {
	params := map[string]interface{}{"taskId": taskID, "categoryId": categoryID}
	records, err := g.write(ctx, assignQuery, params)
	if err != nil {
		return repository.Wrap("assign task", err)
	}
	if len(records) == 0 || !flag(records[0], "hasTask") {
		return &repository.NotFoundError{Kind: "task", ID: taskID}
	}
	if !flag(records[0], "hasCategory") {
		return &repository.NotFoundError{Kind: "category", ID: categoryID}
	}
	return nil
}

func (g *Gateway) UnassignTask(ctx context.Context, taskID string) error {
	records, err := g.write(ctx, unassignQuery, map[string]interface{}{"taskId": taskID})
	if err != nil {
		return repository.Wrap("unassign task", err)
	}
	if len(records) == 0 || !flag(records[0], "hasTask") {
		return &repository.NotFoundError{Kind: "task", ID: taskID}
	}
	return nil
}

func (g *Gateway) TasksByCategory(ctx context.Context, categoryID string) ([]model.Task, error) {
	records, err := g.read(ctx, tasksByCategoryQuery, map[string]interface{}{"categoryId": categoryID})
	if err != nil {
		return nil, repository.Wrap("tasks by category", err)
	}
	tasks, err := tasksFromRecords(records)
	return tasks, repository.Wrap("tasks by category", err)
}
