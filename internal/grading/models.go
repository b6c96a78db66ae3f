// Package grading stores teacher evaluations of submissions and suggests a
// starting grade where the answer can be checked mechanically.
package grading

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	MinGrade = 1
	MaxGrade = 5
)

var (
	ErrNotFound     = errors.New("grade not found")
	ErrInvalidGrade = errors.New("grading: invalid grade")
)

// Grade is one teacher's evaluation of exactly one submission.
type Grade struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	TeacherID    string    `json:"teacher_id"`
	Value        int       `json:"grade"`
	Feedback     string    `json:"feedback,omitempty"`
	GradedAt     time.Time `json:"graded_at"`
}

type Store interface {
	// Save creates or replaces the grade of g.SubmissionID.
	Save(ctx context.Context, g Grade) (Grade, error)
	GetBySubmission(ctx context.Context, submissionID string) (Grade, error)
}

// Validate reports every rejection as ErrInvalidGrade.
func Validate(g Grade) error {
	if g.SubmissionID == "" {
		return fmt.Errorf("%w: submission is required", ErrInvalidGrade)
	}
	if g.TeacherID == "" {
		return fmt.Errorf("%w: teacher is required", ErrInvalidGrade)
	}
	if g.Value < MinGrade || g.Value > MaxGrade {
		return fmt.Errorf("%w: must be between %d and %d, got %d", ErrInvalidGrade, MinGrade, MaxGrade, g.Value)
	}
	return nil
}
