package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskbook/internal/logger"
	"taskbook/internal/model"
	"taskbook/internal/repository"
)

// Gateway stores tasks and categories in SQLite. The BELONGS_TO edge lives in
// its own table so membership queries don't depend on the scalar column.
type Gateway struct {
	dsn string
	log *logger.Logger
	now func() time.Time

	mu sync.RWMutex
	db *gorm.DB
}

var _ repository.Gateway = (*Gateway)(nil)

func New(dsn string, log *logger.Logger) *Gateway {
	return &Gateway{
		dsn: dsn,
		log: log.WithComponent("sqlstore"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (g *Gateway) Connect(ctx context.Context) error {
	db, err := openDB(g.dsn, g.log)
	if err != nil {
		return &repository.ConnectionError{Target: g.dsn, Err: err}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return &repository.ConnectionError{Target: g.dsn, Err: err}
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return &repository.ConnectionError{Target: g.dsn, Err: err}
	}

	g.mu.Lock()
	g.db = db
	g.mu.Unlock()
	g.log.Infow("connected", "dsn", g.dsn)
	return nil
}

func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	db := g.db
	g.db = nil
	g.mu.Unlock()
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	g.log.Infow("disconnected", "dsn", g.dsn)
	return sqlDB.Close()
}

// session returns a context-scoped handle; gorm returns the connection to the pool
// when the statement finishes.
func (g *Gateway) session(ctx context.Context) (*gorm.DB, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.db == nil {
		return nil, repository.ErrNotConnected
	}
	return g.db.WithContext(ctx), nil
}

func (g *Gateway) CreateTask(ctx context.Context, in model.TaskInput) (*model.Task, error) {
	db, err := g.session(ctx)
	if err != nil {
		return nil, err
	}

	rec := newTaskRecord(uuid.NewString(), in, g.now())
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		if in.Category == "" {
			return nil
		}
		// The scalar is kept even when the category is unknown; the edge needs a target.
		var count int64
		if err := tx.Model(&categoryRecord{}).Where("id = ?", in.Category).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		return tx.Create(&membershipRecord{TaskID: rec.ID, CategoryID: in.Category, CreatedAt: rec.CreatedAt}).Error
	})
	if err != nil {
		return nil, repository.Wrap("create task", err)
	}

	task := rec.toModel()
	return &task, nil
}

func (g *Gateway) GetTask(ctx context.Context, id string) (*model.Task, error) {
	db, err := g.session(ctx)
	if err != nil {
		return nil, err
	}
	return findTask(db, id)
}

func findTask(db *gorm.DB, id string) (*model.Task, error) {
	var rec taskRecord
	err := db.Where("id = ?", id).First(&rec).Error
	switch {
	case err == nil:
		task := rec.toModel()
		return &task, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, repository.Wrap("get task", err)
	}
}

func (g *Gateway) ListTasks(ctx context.Context) ([]model.Task, error) {
	db, err := g.session(ctx)
	if err != nil {
		return nil, err
	}
	var recs []taskRecord
	if err := db.Find(&recs).Error; err != nil {
		return nil, repository.Wrap("list tasks", err)
	}
	return toTasks(recs), nil
}

func (g *Gateway) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	db, err := g.session(ctx)
	if err != nil {
		return nil, err
	}

	var task *model.Task
	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&taskRecord{}).Where("id = ?", id).Updates(patchColumns(patch, g.now()))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		var ferr error
		task, ferr = findTask(tx, id)
		return ferr
	})
	if err != nil {
		return nil, repository.Wrap("update task", err)
	}
	return task, nil
}

func (g *Gateway) DeleteTask(ctx context.Context, id string) (bool, error) {
	db, err := g.session(ctx)
	if err != nil {
		return false, err
	}
	var deleted bool
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&membershipRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&taskRecord{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, repository.Wrap("delete task", err)
	}
	return deleted, nil
}

func (g *Gateway) CreateCategory(ctx context.Context, in model.CategoryInput) (*model.Category, error) {
	db, err := g.session(ctx)
	if err != nil {
		return nil, err
	}
	rec := categoryRecord{ID: uuid.NewString(), Name: in.Name, Color: in.Color, Icon: optString(in.Icon)}
	if err := db.Create(&rec).Error; err != nil {
		return nil, repository.Wrap("create category", err)
	}
	cat := rec.toModel()
	return &cat, nil
}

func (g *Gateway) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	db, err := g.session(ctx)
	if err != nil {
		return nil, err
	}
	var rec categoryRecord
	err = db.Where("id = ?", id).First(&rec).Error
	switch {
	case err == nil:
		cat := rec.toModel()
		return &cat, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, repository.Wrap("get category", err)
	}
}

func (g *Gateway) ListCategories(ctx context.Context) ([]model.Category, error) {
	db, err := g.session(ctx)
	if err != nil {
		return nil, err
	}
	var recs []categoryRecord
	if err := db.Find(&recs).Error; err != nil {
		return nil, repository.Wrap("list categories", err)
	}
	out := make([]model.Category, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (g *Gateway) UpdateCategory(ctx context.Context, id string, patch model.CategoryPatch) (*model.Category, error) {
	db, err := g.session(ctx)
	if err != nil {
		return nil, err
	}

	cols := map[string]interface{}{}
	if patch.Name != nil {
		cols["name"] = *patch.Name
	}
	if patch.Color != nil {
		cols["color"] = *patch.Color
	}
	if patch.Icon != nil {
		cols["icon"] = optString(*patch.Icon)
	}
	if patch.ClearIcon {
		cols["icon"] = nil
	}

	if len(cols) > 0 {
		if err := db.Model(&categoryRecord{}).Where("id = ?", id).Updates(cols).Error; err != nil {
			return nil, repository.Wrap("update category", err)
		}
	}
	return g.GetCategory(ctx, id)
}

// DeleteCategory removes the category and its edges. Tasks keep their scalar
// category value.
func (g *Gateway) DeleteCategory(ctx context.Context, id string) (bool, error) {
	db, err := g.session(ctx)
	if err != nil {
		return false, err
	}
	var deleted bool
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("category_id = ?", id).Delete(&membershipRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&categoryRecord{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, repository.Wrap("delete category", err)
	}
	return deleted, nil
}

func (g *Gateway) AssignTaskToCategory(ctx context.Context, taskID, categoryID string) error {
	db, err := g.session(ctx)
	if err != nil {
		return err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &taskRecord{}, "task", taskID); err != nil {
			return err
		}
		if err := mustExist(tx, &categoryRecord{}, "category", categoryID); err != nil {
			return err
		}
		now := g.now()
		edge := membershipRecord{TaskID: taskID, CategoryID: categoryID, CreatedAt: now}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"category_id", "created_at"}),
		}).Create(&edge).Error; err != nil {
			return err
		}
		return tx.Model(&taskRecord{}).Where("id = ?", taskID).
			Updates(map[string]interface{}{"category": categoryID, "updated_at": now}).Error
	})
	return repository.Wrap("assign task", err)
}

func (g *Gateway) UnassignTask(ctx context.Context, taskID string) error {
	db, err := g.session(ctx)
	if err != nil {
		return err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &taskRecord{}, "task", taskID); err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&membershipRecord{}).Error; err != nil {
			return err
		}
		return tx.Model(&taskRecord{}).Where("id = ?", taskID).
			Updates(map[string]interface{}{"category": nil, "updated_at": g.now()}).Error
	})
	return repository.Wrap("unassign task", err)
}

func (g *Gateway) TasksByCategory(ctx context.Context, categoryID string) ([]model.Task, error) {
	db, err := g.session(ctx)
	if err != nil {
		return nil, err
	}
	var recs []taskRecord
	err = db.Select("tasks.*").
		Joins("JOIN task_categories ON task_categories.task_id = tasks.id").
		Where("task_categories.category_id = ?", categoryID).
		Find(&recs).Error
	if err != nil {
		return nil, repository.Wrap("tasks by category", err)
	}
	return toTasks(recs), nil
}

func mustExist(tx *gorm.DB, table interface{}, kind, id string) error {
	var count int64
	if err := tx.Model(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("lookup %s: %w", kind, err)
	}
	if count == 0 {
		return &repository.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func toTasks(recs []taskRecord) []model.Task {
	out := make([]model.Task, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out
}
