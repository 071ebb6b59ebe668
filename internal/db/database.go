// Package db provides the submission document store and the Redis
// connection shared by server and worker.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"algojudge/pkg/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	ErrNotFound = errors.New("submission not found")

	// ErrTerminalState is returned when an update would transition a
	// submission out of a terminal status. Terminal states are sinks.
	ErrTerminalState = errors.New("submission already in terminal state")
)

// Store wraps the GORM handle for submission persistence.
type Store struct {
	db *gorm.DB
}

// New connects to PostgreSQL and migrates the schema.
func New(dsn string) (*Store, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return NewWithDB(gdb)
}

// NewWithDB wraps an existing GORM handle (tests pass sqlite here) and
// runs migrations.
func NewWithDB(gdb *gorm.DB) (*Store, error) {
	if err := gdb.AutoMigrate(&models.Submission{}); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return &Store{db: gdb}, nil
}

// CreateSubmission persists a new submission record.
func (s *Store) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	return s.db.WithContext(ctx).Create(sub).Error
}

// GetSubmission loads one submission by id.
func (s *Store) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	var sub models.Submission
	err := s.db.WithContext(ctx).First(&sub, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListByUser returns a user's submissions, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]models.Submission, error) {
	var subs []models.Submission
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

// UpdateSubmission applies mutate to the current row inside one
// transaction, holding a row lock for the duration. It refuses to touch
// submissions already in a terminal state, which makes job re-delivery a
// no-op.
func (s *Store) UpdateSubmission(ctx context.Context, id string, mutate func(*models.Submission) error) (*models.Submission, error) {
	var out *models.Submission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		// SQLite (tests) serializes writers itself and rejects FOR UPDATE.
		if tx.Dialector.Name() == "postgres" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var sub models.Submission
		err := query.First(&sub, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if sub.Status.Terminal() {
			return ErrTerminalState
		}
		if err := mutate(&sub); err != nil {
			return err
		}
		if err := tx.Save(&sub).Error; err != nil {
			return err
		}
		out = &sub
		return nil
	})
	return out, err
}

// Health pings the underlying connection.
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
