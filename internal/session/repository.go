package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Repository persists sessions under an opaque key: the CLI profile name or the
// gateway's sid cookie.
type Repository interface {
	Save(ctx context.Context, key string, s Session) error
	Get(ctx context.Context, key string) (Session, error)
	Delete(ctx context.Context, key string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); path != ":memory:" && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("session db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	repo := &SQLiteRepository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session db migrate: %w", err)
	}
	return repo, nil
}

func (r *SQLiteRepository) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS sessions (
  key TEXT PRIMARY KEY,
  token TEXT NOT NULL,
  username TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);`
	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteRepository) Close() error { return r.db.Close() }

func (r *SQLiteRepository) Save(ctx context.Context, key string, s Session) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions(key,token,username,created_at,updated_at) VALUES(?,?,?,?,?)
		 ON CONFLICT(key) DO UPDATE SET token=excluded.token, username=excluded.username, updated_at=excluded.updated_at`,
		key, s.Token, s.Username, now, now)
	return err
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT token,username FROM sessions WHERE key=?`, key)
	var s Session
	if err := row.Scan(&s.Token, &s.Username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE key=?`, key)
	return err
}

// PurgeBefore drops sessions not updated since t. The gateway runs it at startup so
// abandoned browser sessions do not accumulate.
func (r *SQLiteRepository) PurgeBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, t.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
