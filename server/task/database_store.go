// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	a2a "github.com/go-a2a/a2a-stepup"
)

// DatabaseStore is a [Store] backed by a GORM database.
type DatabaseStore struct {
	db          *gorm.DB
	autoMigrate bool
}

var _ Store = (*DatabaseStore)(nil)

// DatabaseStoreConfig holds configuration for DatabaseStore.
type DatabaseStoreConfig struct {
	DB *gorm.DB
	// AutoMigrate creates or updates the tasks table in Initialize.
	AutoMigrate bool
}

// NewDatabaseStore creates a new DatabaseStore.
func NewDatabaseStore(config DatabaseStoreConfig) (*DatabaseStore, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}

	return &DatabaseStore{
		db:          config.DB,
		autoMigrate: config.AutoMigrate,
	}, nil
}

// Save implements [Store].
func (s *DatabaseStore) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return &ValidationError{TaskID: task.ID, Err: err}
	}

	if err := s.db.WithContext(ctx).Save(NewTaskModel(task)).Error; err != nil {
		return &StoreError{Operation: "save", TaskID: task.ID, Err: err}
	}

	return nil
}

// Get implements [Store].
func (s *DatabaseStore) Get(ctx context.Context, taskID string) (*a2a.Task, error) {
	var model TaskModel
	if err := s.db.WithContext(ctx).Where("id = ?", taskID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{TaskID: taskID}
		}
		return nil, &StoreError{Operation: "get", TaskID: taskID, Err: err}
	}

	return model.ToTask(), nil
}

// Delete implements [Store].
func (s *DatabaseStore) Delete(ctx context.Context, taskID string) error {
	result := s.db.WithContext(ctx).Where("id = ?", taskID).Delete(&TaskModel{})
	if result.Error != nil {
		return &StoreError{Operation: "delete", TaskID: taskID, Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{TaskID: taskID}
	}

	return nil
}

// List implements [Store].
func (s *DatabaseStore) List(ctx context.Context, contextID string, limit, offset int) ([]*a2a.Task, error) {
	db := s.db.WithContext(ctx).Order("id")
	if contextID != "" {
		db = db.Where("context_id = ?", contextID)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}

	var models []TaskModel
	if err := db.Find(&models).Error; err != nil {
		return nil, &StoreError{Operation: "list", Err: err}
	}

	tasks := make([]*a2a.Task, len(models))
	for i := range models {
		tasks[i] = models[i].ToTask()
	}

	return tasks, nil
}

// ListByState returns the tasks currently in state.
func (s *DatabaseStore) ListByState(ctx context.Context, state a2a.TaskState) ([]*a2a.Task, error) {
	var models []TaskModel
	if err := s.db.WithContext(ctx).Where("state = ?", string(state)).Order("id").Find(&models).Error; err != nil {
		return nil, &StoreError{Operation: "list_by_state", Err: err}
	}

	tasks := make([]*a2a.Task, len(models))
	for i := range models {
		tasks[i] = models[i].ToTask()
	}

	return tasks, nil
}

// Count implements [Store].
func (s *DatabaseStore) Count(ctx context.Context, contextID string) (int64, error) {
	query := s.db.WithContext(ctx).Model(&TaskModel{})
	if contextID != "" {
		query = query.Where("context_id = ?", contextID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, &StoreError{Operation: "count", Err: err}
	}

	return count, nil
}

// Initialize implements [Store].
func (s *DatabaseStore) Initialize(ctx context.Context) error {
	if !s.autoMigrate {
		return nil
	}
	if err := s.db.WithContext(ctx).AutoMigrate(&TaskModel{}); err != nil {
		return &StoreError{Operation: "initialize", Err: err}
	}
	return nil
}

// Close implements [Store].
func (s *DatabaseStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return &StoreError{Operation: "close", Err: err}
	}
	return sqlDB.Close()
}

// Transaction runs fn with a store bound to a single database transaction.
func (s *DatabaseStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DatabaseStore{db: tx, autoMigrate: s.autoMigrate})
	})
}
