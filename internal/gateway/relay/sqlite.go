package relay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore 将邮箱持久化到 SQLite，进程重启后未过期的消息仍可读取。
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore 打开（必要时创建）数据库文件；":memory:" 用于测试。
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create relay store directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open relay store: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init relay store: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS mailboxes (
			id TEXT PRIMARY KEY,
			message BLOB NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_mailboxes_created_at ON mailboxes(created_at)`)
	return err
}

// Get 实现 Store。
func (s *SQLiteStore) Get(ctx context.Context, id string) (Mailbox, bool, error) {
	var (
		message []byte
		created int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT message, created_at FROM mailboxes WHERE id = ?`, id).Scan(&message, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Mailbox{}, false, nil
	}
	if err != nil {
		return Mailbox{}, false, err
	}
	return Mailbox{Message: message, CreatedAt: time.Unix(0, created)}, true, nil
}

// Put 实现 Store。
func (s *SQLiteStore) Put(ctx context.Context, id string, box Mailbox) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO mailboxes (id, message, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		id, []byte(box.Message), box.CreatedAt.UnixNano())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

// Delete 实现 Store。
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM mailboxes WHERE id = ?`, id)
	return err
}

// DeleteBefore 实现 Store。
func (s *SQLiteStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mailboxes WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Close 实现 Store。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
