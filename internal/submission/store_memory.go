package submission

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	order   []string
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]Record{}, now: time.Now}
}

func (m *MemoryStore) Create(_ context.Context, n New) (string, error) {
	if err := n.validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	r := Record{
		ID:          id,
		ExerciseID:  n.ExerciseID,
		StudentID:   n.StudentID,
		SubmittedAt: m.now(),
		Duration:    n.Duration,
		AnswerText:  n.AnswerText,
	}
	if n.SelectedOptions != nil {
		r.SelectedOptions = append([]string{}, n.SelectedOptions...)
	}
	m.records[id] = r
	m.order = append(m.order, id)
	return id, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) ListByExercise(_ context.Context, exerciseID string) ([]Record, error) {
	return m.filter(func(r Record) bool { return r.ExerciseID == exerciseID }), nil
}

func (m *MemoryStore) ListByStudentAndExercise(_ context.Context, studentID, exerciseID string) ([]Record, error) {
	return m.filter(func(r Record) bool { return r.StudentID == studentID && r.ExerciseID == exerciseID }), nil
}

func (m *MemoryStore) ListByStudent(_ context.Context, studentID string) ([]Record, error) {
	return m.filter(func(r Record) bool { return r.StudentID == studentID }), nil
}

// Len reports how many records exist.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryStore) filter(keep func(Record) bool) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Record{}
	for _, id := range m.order {
		if r := m.records[id]; keep(r) {
			out = append(out, r)
		}
	}
	return SortNewestFirst(out)
}
