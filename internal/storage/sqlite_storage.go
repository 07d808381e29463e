package storage

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"
)

var (
	//go:embed migrations
	migrationsFS embed.FS
)

// SQLiteStorage is a StorageEngine that keeps file contents as BLOBs in a
// single SQLite table. Each upload is one transaction, so a file is either
// fully present or absent.
type SQLiteStorage struct {
	db *sql.DB
}

var _ StorageEngine = (*SQLiteStorage)(nil)

// initSchema applies all SQL files in the embedded migrations in
// lexicographical order.
func initSchema(ctx context.Context, db *sql.DB) error {
	return fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		content, readError := migrationsFS.ReadFile(path)
		if readError != nil {
			return fmt.Errorf("error reading SQL file: %w", readError)
		}

		slog.Debug("Running migration", "path", path)
		_, execError := db.ExecContext(ctx, string(content))
		return execError
	})
}

// NewSQLiteStorage opens (creating if needed) the database at dbPath and
// applies the schema.
func NewSQLiteStorage(ctx context.Context, dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// withTransaction runs a function within a database transaction.
func withTransaction(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return fmt.Errorf("error executing transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) List(ctx context.Context) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, size, uploaded_at FROM files`)
	if err != nil {
		return nil, fmt.Errorf("%w: query files: %w", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	records := make([]FileRecord, 0)
	for rows.Next() {
		var r FileRecord
		if err := rows.Scan(&r.Name, &r.Size, &r.UploadDate); err != nil {
			return nil, err
		}
		r.UploadDate = r.UploadDate.UTC()
		records = append(records, r)
	}

	return records, rows.Err()
}

func (s *SQLiteStorage) exists(ctx context.Context, key string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE name = ?`, key).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *SQLiteStorage) Put(ctx context.Context, key string, content io.Reader, size int64) (FileRecord, error) {
	taken, err := s.exists(ctx, key)
	if err != nil {
		return FileRecord{}, err
	}
	if taken {
		return FileRecord{}, ErrKeyExists
	}

	data, err := io.ReadAll(&contextReader{ctx: ctx, r: content})
	if err != nil {
		return FileRecord{}, fmt.Errorf("read content: %w", err)
	}

	if size >= 0 && int64(len(data)) != size {
		return FileRecord{}, fmt.Errorf("short read: got %d of %d bytes", len(data), size)
	}

	record := FileRecord{
		Name:       key,
		Size:       int64(len(data)),
		UploadDate: time.Now().UTC(),
	}

	err = withTransaction(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO files(name, size, content, uploaded_at) VALUES(?, ?, ?, ?)`,
			record.Name, record.Size, data, record.UploadDate,
		)
		return err
	})

	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return FileRecord{}, fmt.Errorf("%w: %s", errPublishConflict, key)
		}
		return FileRecord{}, err
	}

	return record, nil
}

func (s *SQLiteStorage) Open(ctx context.Context, key string) (DownloadTarget, error) {
	record := FileRecord{Name: key}
	var content []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT size, uploaded_at, content FROM files WHERE name = ?`, key,
	).Scan(&record.Size, &record.UploadDate, &content)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DownloadTarget{}, ErrNotFound
		}
		return DownloadTarget{}, err
	}

	record.UploadDate = record.UploadDate.UTC()

	return DownloadTarget{
		Record: record,
		Body:   io.NopCloser(bytes.NewReader(content)),
	}, nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE name = ?`, key)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
