// Package persist stores upscaled images in a relational database and on disk.
package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

const defaultTimeout = 10 * time.Second

var (
	ErrUnsupportedDialect = errors.New("unsupported database dialect")
	ErrEmptyUsername      = errors.New("username is empty")
)

// Config selects the database a Store talks to.
type Config struct {
	Dialect Dialect
	DSN     string
	Timeout time.Duration
}

// Store opens a fresh connection for every operation and closes it before
// returning. Nothing is pooled across operations.
type Store struct {
	dialect Dialect
	dsn     string
	timeout time.Duration
	logger  logrus.FieldLogger
}

func NewStore(cfg Config, logger logrus.FieldLogger) (*Store, error) {
	switch cfg.Dialect {
	case DialectMySQL, DialectSQLite:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, cfg.Dialect)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database DSN is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{
		dialect: cfg.Dialect,
		dsn:     cfg.DSN,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

// withConn opens, pings and closes a connection around fn.
func (s *Store) withConn(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	db, err := sql.Open(string(s.dialect), s.dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	defer func() {
		if cerr := db.Close(); cerr != nil {
			s.logger.WithError(cerr).Warn("Failed to close database connection")
		}
	}()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	return fn(ctx, db)
}

// withTx runs fn inside a transaction that is committed when fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return s.withConn(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := fn(ctx, tx); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				s.logger.WithError(rerr).Warn("Failed to roll back transaction")
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit: %w", err)
		}
		return nil
	})
}

// EnsureSchema creates the users and images tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.withConn(ctx, func(ctx context.Context, db *sql.DB) error {
		for _, stmt := range schema(s.dialect) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create schema: %w", err)
			}
		}
		s.logger.WithField("dialect", s.dialect).Debug("Database schema ensured")
		return nil
	})
}

// InsertImage stores image bytes for a user and returns the new row id.
func (s *Store) InsertImage(ctx context.Context, data []byte, userID int64) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO images (image_data, user_id) VALUES (?, ?)", data, userID)
		if err != nil {
			return fmt.Errorf("failed to insert image: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read inserted id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"image_id": id,
		"user_id":  userID,
		"bytes":    len(data),
	}).Info("Image stored in database")
	return id, nil
}

// Authenticate resolves username to a user id, registering it on first use.
func (s *Store) Authenticate(ctx context.Context, username string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, ErrEmptyUsername
	}

	var id int64
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, "SELECT id FROM users WHERE username = ?", username).Scan(&id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to look up user: %w", err)
		}
		res, err := tx.ExecContext(ctx, "INSERT INTO users (username) VALUES (?)", username)
		if err != nil {
			return fmt.Errorf("failed to register user: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  id,
		"username": username,
	}).Info("User authenticated")
	return id, nil
}

// CountImages returns how many images a user has saved.
func (s *Store) CountImages(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.withConn(ctx, func(ctx context.Context, db *sql.DB) error {
		return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images WHERE user_id = ?", userID).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return n, nil
}

func schema(d Dialect) []string {
	if d == DialectMySQL {
		return []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				username VARCHAR(255) NOT NULL UNIQUE,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS images (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				image_data LONGBLOB NOT NULL,
				user_id BIGINT NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				INDEX idx_images_user (user_id)
			)`,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS images (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			image_data BLOB NOT NULL,
			user_id INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_images_user ON images (user_id)`,
	}
}
