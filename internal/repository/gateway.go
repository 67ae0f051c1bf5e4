package repository

import (
	"context"

	"taskbook/internal/model"
)

// Gateway is the persistence boundary for tasks and categories.
//
// Lookups and updates of a missing id return (nil, nil); deletes report whether
// anything was removed. Relationship calls referencing a missing id fail with
// *NotFoundError. Backend failures surface as *BackendError without retries.
type Gateway interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	CreateTask(ctx context.Context, in model.TaskInput) (*model.Task, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context) ([]model.Task, error)
	UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) (bool, error)

	CreateCategory(ctx context.Context, in model.CategoryInput) (*model.Category, error)
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	UpdateCategory(ctx context.Context, id string, patch model.CategoryPatch) (*model.Category, error)
	DeleteCategory(ctx context.Context, id string) (bool, error)

	// AssignTaskToCategory replaces the task's BELONGS_TO edge and its scalar
	// category field in one request.
	AssignTaskToCategory(ctx context.Context, taskID, categoryID string) error
	// UnassignTask drops the edge and clears the scalar field.
	UnassignTask(ctx context.Context, taskID string) error
	// TasksByCategory follows the edge, not the scalar field.
	TasksByCategory(ctx context.Context, categoryID string) ([]model.Task, error)
}
