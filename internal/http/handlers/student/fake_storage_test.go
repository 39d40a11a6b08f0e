package student

import (
	"context"
	"regexp"
	"strconv"
	"sync"

	"github.com/aanand-mishra/students-web/internal/storage"
	"github.com/aanand-mishra/students-web/internal/types"
)

// fakeStorage is an in-memory storage.Storage keeping insertion order.
type fakeStorage struct {
	mu       sync.Mutex
	order    []string
	students map[string]types.Student
	nextID   int

	getErr    error
	createErr error
	updateErr error

	creates int
	updates int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{students: make(map[string]types.Student)}
}

func (f *fakeStorage) seed(s types.Student) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	s.ID = "id-" + strconv.Itoa(f.nextID)
	f.order = append(f.order, s.ID)
	f.students[s.ID] = s
	return s.ID
}

func (f *fakeStorage) all() []types.Student {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Student, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.students[id])
	}
	return out
}

func (f *fakeStorage) GetStudents(_ context.Context) ([]types.Student, error) {
	return f.all(), nil
}

func (f *fakeStorage) SearchStudents(_ context.Context, keyword string) ([]types.Student, error) {
	re, err := regexp.Compile(keyword)
	if err != nil {
		return nil, err
	}
	var out []types.Student
	for _, s := range f.all() {
		if re.MatchString(s.Name) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStorage) GetStudentByID(_ context.Context, id string) (types.Student, error) {
	if f.getErr != nil {
		return types.Student{}, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.students[id]
	if !ok {
		return types.Student{}, storage.ErrNotFound
	}
	return s, nil
}

func (f *fakeStorage) CreateStudent(_ context.Context, s types.Student) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.creates++
	return f.seed(s), nil
}

func (f *fakeStorage) UpdateStudent(_ context.Context, s types.Student) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.students[s.ID]; !ok {
		return storage.ErrNotFound
	}
	f.updates++
	f.students[s.ID] = s
	return nil
}

func (f *fakeStorage) Ping(_ context.Context) error  { return nil }
func (f *fakeStorage) Close(_ context.Context) error { return nil }
