package settings

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"roomchat/internal/errors"
	"roomchat/internal/migrations"
	"roomchat/internal/retry"
	"roomchat/internal/security"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

var (
	_ KV = (*Store)(nil)
	_ KV = (*Memory)(nil)
)

// Store is a sqlite-backed KV
type Store struct {
	db        *sql.DB
	encryptor *encryptor
	backoff   *retry.Backoff
	logger    *logrus.Logger
}

// Open creates the database file if needed, applies migrations and reads
// encryption settings from the environment
func Open(ctx context.Context, path string, backoff retry.BackoffConfig, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if err := security.ValidateFilePath(path); err != nil {
		return nil, errors.NewConfigError("settings.db_path", err).
			WithContext("path", path)
	}

	enc, err := newEncryptorFromEnv()
	if err != nil {
		return nil, errors.NewConfigError("settings.encryption", err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseConnection, "failed to create database file")
	}
	if err := file.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseConnection, "failed to close database file")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseConnection, "failed to open database")
	}

	s := &Store{
		db:        db,
		encryptor: enc,
		backoff:   retry.NewBackoff(backoff),
		logger:    logger,
	}
	s.backoff.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).WithError(err).Warn("Retrying settings database operation")
	}

	if err := s.withRetry(ctx, "ping", func() error { return db.PingContext(ctx) }); err != nil {
		return nil, closeAfter(db, err)
	}

	var applied int
	if err := s.withRetry(ctx, "migrate", func() error {
		n, err := migrations.Apply(ctx, db)
		applied += n
		return err
	}); err != nil {
		return nil, closeAfter(db, err)
	}

	logger.WithFields(logrus.Fields{
		"path":       path,
		"migrations": applied,
		"encrypted":  enc.enabled(),
	}).Info("Settings store opened")

	return s, nil
}

func closeAfter(db *sql.DB, err error) error {
	if closeErr := db.Close(); closeErr != nil {
		return fmt.Errorf("%w (close error: %v)", err, closeErr)
	}
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var stored string
	err := s.withRetry(ctx, "get", func() error {
		return s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&stored)
	})
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	value, err := s.encryptor.open(stored)
	if err != nil {
		return "", false, errors.NewDatabaseError("decrypt", err).WithContext("key", key)
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	sealed, err := s.encryptor.seal(value)
	if err != nil {
		return errors.NewDatabaseError("encrypt", err).WithContext("key", key)
	}

	return s.withRetry(ctx, "set", func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
			key, sealed)
		return err
	})
}

// Delete removes key, reporting whether it existed
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	var affected int64
	err := s.withRetry(ctx, "delete", func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected > 0, err
}

func (s *Store) withRetry(ctx context.Context, operation string, fn func() error) error {
	err := s.backoff.RetryWithPredicate(ctx, fn, isRetryableDBError)
	if err == nil || stderrors.Is(err, sql.ErrNoRows) {
		return err
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	if isRetryableDBError(err) {
		return errors.WrapRetryable(err, errors.ErrCodeDatabaseQuery, "settings "+operation+" failed").
			WithContext("operation", operation).
			WithUserMessage("Database operation failed")
	}
	return errors.NewDatabaseError(operation, err)
}

// isRetryableDBError reports transient sqlite failures
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "disk I/O error")
}
