package submission

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("submission not found")

// Record is the immutable result of one completed attempt.
type Record struct {
	ID          string    `json:"id"`
	ExerciseID  string    `json:"exercise_id"`
	StudentID   string    `json:"student_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	Duration    int       `json:"duration"` // whole seconds
	AnswerText  string    `json:"answer_text"`
	// SelectedOptions is non-nil only for multiple-choice exercises.
	SelectedOptions []string `json:"selected_options,omitempty"`
}

// New is a record before the store assigns its identifier and timestamp.
type New struct {
	ExerciseID      string
	StudentID       string
	Duration        int
	AnswerText      string
	SelectedOptions []string
}

// Repository is the narrow persistence boundary for submissions. There is no
// update: a new attempt produces a new record.
type Repository interface {
	Create(ctx context.Context, n New) (string, error)
	GetByID(ctx context.Context, id string) (Record, error)
	ListByExercise(ctx context.Context, exerciseID string) ([]Record, error)
	ListByStudentAndExercise(ctx context.Context, studentID, exerciseID string) ([]Record, error)
	ListByStudent(ctx context.Context, studentID string) ([]Record, error)
}

func (n New) validate() error {
	if n.ExerciseID == "" || n.StudentID == "" {
		return errors.New("submission: exercise and student are required")
	}
	if n.Duration < 0 {
		return errors.New("submission: negative duration")
	}
	return nil
}
