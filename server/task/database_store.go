// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	a2a "github.com/go-a2a/a2a-runtime"
)

// DatabaseTaskStore is a database implementation of TaskStore using GORM.
type DatabaseTaskStore struct {
	db          *gorm.DB
	tableName   string
	createTable bool
	logger      *slog.Logger
}

var _ TaskStore = (*DatabaseTaskStore)(nil)

// DatabaseTaskStoreConfig holds configuration for DatabaseTaskStore.
type DatabaseTaskStoreConfig struct {
	DB          *gorm.DB
	TableName   string // Optional, defaults to "tasks"
	CreateTable bool   // Whether Initialize migrates the table
	Logger      *slog.Logger
}

// NewDatabaseTaskStore creates a new DatabaseTaskStore.
func NewDatabaseTaskStore(config DatabaseTaskStoreConfig) (*DatabaseTaskStore, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}

	tableName := config.TableName
	if tableName == "" {
		tableName = DefaultTableName
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DatabaseTaskStore{
		db:          config.DB,
		tableName:   tableName,
		createTable: config.CreateTable,
		logger:      logger,
	}, nil
}

// OpenDatabase opens a GORM connection for one of the supported drivers:
// "sqlite", "postgres" or "mysql".
func OpenDatabase(driver, dsn string, logger *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if logger == nil {
		logger = slog.Default()
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.NewSlogLogger(logger, gormlogger.Config{
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	return db, nil
}

func (s *DatabaseTaskStore) table(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.tableName)
}

// Save inserts or replaces a task. A new task is appended to the insertion order.
func (s *DatabaseTaskStore) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return NewTaskValidationError(task.ID, err)
	}

	model, err := NewTaskModelFromTask(task)
	if err != nil {
		return NewTaskStoreError("save", task.ID, fmt.Errorf("failed to convert task to model: %w", err))
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing TaskModel
		err := tx.Table(s.tableName).Select("id", "seq").Where("id = ?", task.ID).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			var maxSeq int64
			if err := tx.Table(s.tableName).Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error; err != nil {
				return err
			}
			model.Seq = maxSeq + 1
			return tx.Table(s.tableName).Create(model).Error

		case err != nil:
			return err
		}

		model.Seq = existing.Seq
		return tx.Table(s.tableName).
			Where("id = ?", task.ID).
			Select("context_id", "state", "kind", "status", "artifacts", "history", "metadata", "updated_at").
			Updates(model).Error
	})
	if err != nil {
		return NewTaskStoreError("save", task.ID, err)
	}
	return nil
}

// Get retrieves a task by its ID from the database.
func (s *DatabaseTaskStore) Get(ctx context.Context, taskID string) (*a2a.Task, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task ID cannot be empty")
	}

	var model TaskModel
	if err := s.table(ctx).Where("id = ?", taskID).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &a2a.TaskNotFoundError{TaskID: taskID}
		}
		return nil, NewTaskStoreError("get", taskID, err)
	}

	task, err := model.ToTask()
	if err != nil {
		return nil, NewTaskStoreError("get", taskID, fmt.Errorf("failed to convert model to task: %w", err))
	}
	return task, nil
}

// Delete removes a task from the database.
func (s *DatabaseTaskStore) Delete(ctx context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}

	result := s.table(ctx).Where("id = ?", taskID).Delete(&TaskModel{})
	if result.Error != nil {
		return NewTaskStoreError("delete", taskID, result.Error)
	}
	if result.RowsAffected == 0 {
		s.logger.WarnContext(ctx, "attempted to delete non-existent task", slog.String("task_id", taskID))
	}
	return nil
}

// List implements [TaskStore]. Rows are ordered by insertion sequence, then
// id; the page token is the id of the last task of the previous page.
func (s *DatabaseTaskStore) List(ctx context.Context, params *ListParams) (*ListResult, error) {
	if params == nil {
		params = &ListParams{}
	}

	query := s.table(ctx)
	if params.PageToken != "" {
		var cursor TaskModel
		err := s.table(ctx).Select("id", "seq").Where("id = ?", params.PageToken).Take(&cursor).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			s.logger.WarnContext(ctx, "invalid page token, starting from beginning",
				slog.String("page_token", params.PageToken))
		case err != nil:
			return nil, NewTaskStoreError("list", "", err)
		default:
			// Concurrent inserts may share a seq; id breaks the tie.
			query = query.Where("(seq > ? OR (seq = ? AND id > ?))", cursor.Seq, cursor.Seq, cursor.ID)
		}
	}
	if params.ContextID != "" {
		query = query.Where("context_id = ?", params.ContextID)
	}
	if len(params.States) > 0 {
		states := make([]string, len(params.States))
		for i, st := range params.States {
			states[i] = string(st)
		}
		query = query.Where("state IN ?", states)
	}
	query = query.Order("seq").Order("id")
	if params.PageSize > 0 {
		// One extra row tells whether another page exists.
		query = query.Limit(params.PageSize + 1)
	}

	var models []TaskModel
	if err := query.Find(&models).Error; err != nil {
		return nil, NewTaskStoreError("list", "", err)
	}

	result := &ListResult{Tasks: []*a2a.Task{}}
	more := params.PageSize > 0 && len(models) > params.PageSize
	if more {
		models = models[:params.PageSize]
	}
	for i := range models {
		task, err := models[i].ToTask()
		if err != nil {
			return nil, NewTaskStoreError("list", models[i].ID, fmt.Errorf("failed to convert model to task: %w", err))
		}
		result.Tasks = append(result.Tasks, task)
	}
	if more {
		result.NextPageToken = models[len(models)-1].ID
	}

	return result, nil
}

// Count returns the total number of tasks in the database.
func (s *DatabaseTaskStore) Count(ctx context.Context, contextID string) (int64, error) {
	var count int64
	query := s.table(ctx)
	if contextID != "" {
		query = query.Where("context_id = ?", contextID)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, NewTaskStoreError("count", "", err)
	}
	return count, nil
}

// Initialize migrates the task table when CreateTable was set.
func (s *DatabaseTaskStore) Initialize(ctx context.Context) error {
	if !s.createTable {
		return nil
	}
	if err := s.table(ctx).AutoMigrate(&TaskModel{}); err != nil {
		return NewTaskStoreError("initialize", "", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *DatabaseTaskStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return NewTaskStoreError("close", "", err)
	}
	return sqlDB.Close()
}

// Transaction executes fn with a store bound to a database transaction.
func (s *DatabaseTaskStore) Transaction(ctx context.Context, fn func(TaskStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DatabaseTaskStore{
			db:          tx,
			tableName:   s.tableName,
			createTable: s.createTable,
			logger:      s.logger,
		})
	})
}
