// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// SQLite stores everything in a single file on disk, which makes it the
// backend of choice for local development and tests (storage.driver: sqlite).
//
// SQLite has no built-in regular expressions: the REGEXP operator calls a
// user function named regexp. We register one backed by Go's regexp
// package on every new connection through a dedicated driver name.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/aanand-mishra/students-web/internal/config"
	"github.com/aanand-mishra/students-web/internal/storage"
	"github.com/aanand-mishra/students-web/internal/types"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// driverName is the sqlite3 driver with the regexp function installed.
const driverName = "sqlite3_students"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// pure=true lets SQLite cache results for identical arguments.
			return conn.RegisterFunc("regexp", matchRegexp, true)
		},
	})
}

// matchRegexp backs `value REGEXP pattern`; SQLite calls it as
// regexp(pattern, value). An invalid pattern fails the query.
func matchRegexp(pattern, value string) (bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(value), nil
}

// SQLite is the concrete implementation of storage.Storage.
// A single *sql.DB is safe for concurrent use by multiple goroutines.
type SQLite struct {
	Db *sql.DB
}

// New opens the SQLite database at cfg.Storage.SQLitePath, creates the
// students table if it does not already exist, and returns a ready-to-use
// *SQLite.
func New(cfg *config.Config) (*SQLite, error) {
	return Open(cfg.Storage.SQLitePath)
}

// Open is New for a bare path. ":memory:" is not supported because every
// pooled connection would get its own database.
func Open(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite.Open: create dir: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: open db: %w", err)
	}

	// Schema:
	//   id        UUID assigned by CreateStudent
	//   photo_url generated filename of the uploaded image
	//
	// Rows are listed in rowid (insertion) order.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			id        TEXT    PRIMARY KEY,
			name      TEXT    NOT NULL,
			age       INTEGER NOT NULL,
			email     TEXT    NOT NULL,
			bio       TEXT    NOT NULL,
			photo_url TEXT    NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.Open: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

func (s *SQLite) query(ctx context.Context, query string, args ...any) ([]types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	students := make([]types.Student, 0)

	for rows.Next() {
		var student types.Student
		if err := rows.Scan(
			&student.ID,
			&student.Name,
			&student.Age,
			&student.Email,
			&student.Bio,
			&student.PhotoURL,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		students = append(students, student)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return students, nil
}

func (s *SQLite) GetStudents(ctx context.Context) ([]types.Student, error) {
	students, err := s.query(ctx,
		"SELECT id, name, age, email, bio, photo_url FROM students ORDER BY rowid",
	)
	if err != nil {
		return nil, fmt.Errorf("GetStudents: %w", err)
	}
	return students, nil
}

// SearchStudents matches name against keyword with the regexp function.
// Go's RE2 syntax applies, so there is no catastrophic backtracking, but
// the keyword is still used unescaped.
func (s *SQLite) SearchStudents(ctx context.Context, keyword string) ([]types.Student, error) {
	students, err := s.query(ctx,
		"SELECT id, name, age, email, bio, photo_url FROM students WHERE name REGEXP ? ORDER BY rowid",
		keyword,
	)
	if err != nil {
		return nil, fmt.Errorf("SearchStudents: %w", err)
	}
	return students, nil
}

func (s *SQLite) GetStudentByID(ctx context.Context, id string) (types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"SELECT id, name, age, email, bio, photo_url FROM students WHERE id = ? LIMIT 1",
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("GetStudentByID: prepare: %w", err)
	}
	defer stmt.Close()

	var student types.Student
	err = stmt.QueryRowContext(ctx, id).Scan(
		&student.ID,
		&student.Name,
		&student.Age,
		&student.Email,
		&student.Bio,
		&student.PhotoURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Student{}, storage.ErrNotFound
	}
	if err != nil {
		return types.Student{}, fmt.Errorf("GetStudentByID: scan: %w", err)
	}

	return student, nil
}

func (s *SQLite) CreateStudent(ctx context.Context, student types.Student) (string, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"INSERT INTO students (id, name, age, email, bio, photo_url) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return "", fmt.Errorf("CreateStudent: prepare: %w", err)
	}
	defer stmt.Close()

	id := uuid.NewString()
	_, err = stmt.ExecContext(ctx, id, student.Name, student.Age, student.Email, student.Bio, student.PhotoURL)
	if err != nil {
		return "", fmt.Errorf("CreateStudent: exec: %w", err)
	}

	return id, nil
}

func (s *SQLite) UpdateStudent(ctx context.Context, student types.Student) error {
	stmt, err := s.Db.PrepareContext(ctx,
		"UPDATE students SET name = ?, age = ?, email = ?, bio = ?, photo_url = ? WHERE id = ?",
	)
	if err != nil {
		return fmt.Errorf("UpdateStudent: prepare: %w", err)
	}
	defer stmt.Close()

	// Argument order matches the ? order in the SQL.
	result, err := stmt.ExecContext(ctx,
		student.Name, student.Age, student.Email, student.Bio, student.PhotoURL, student.ID,
	)
	if err != nil {
		return fmt.Errorf("UpdateStudent: exec: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStudent: rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.Db.PingContext(ctx)
}

func (s *SQLite) Close(_ context.Context) error {
	return s.Db.Close()
}
