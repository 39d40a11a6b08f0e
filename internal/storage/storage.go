// Package storage defines the Storage interface, the contract that any
// database backend must satisfy to work with this application.
//
// Handlers depend only on this interface, so the Mongo and SQLite
// backends are interchangeable and tests can pass an in-memory fake.
package storage

import (
	"context"
	"errors"

	"github.com/aanand-mishra/students-web/internal/types"
)

// ErrNotFound is returned by GetStudentByID and UpdateStudent when no
// student has the given id. Malformed ids are reported the same way.
var ErrNotFound = errors.New("storage: student not found")

// Storage is the database contract.
type Storage interface {
	// GetStudents returns every student in storage order.
	// Returns an empty slice (not nil) if there are no students.
	GetStudents(ctx context.Context) ([]types.Student, error)

	// SearchStudents returns students whose name matches keyword used as a
	// case-sensitive regular expression. The keyword is not escaped.
	// An empty keyword matches every student.
	SearchStudents(ctx context.Context, keyword string) ([]types.Student, error)

	// GetStudentByID fetches a single student, or ErrNotFound.
	GetStudentByID(ctx context.Context, id string) (types.Student, error)

	// CreateStudent inserts a new student and returns its generated id.
	CreateStudent(ctx context.Context, student types.Student) (string, error)

	// UpdateStudent overwrites the stored record with student.ID.
	UpdateStudent(ctx context.Context, student types.Student) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection(s).
	Close(ctx context.Context) error
}
