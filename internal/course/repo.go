package course

import (
	"context"
	"errors"
)

var (
	ErrSubjectNotFound  = errors.New("subject not found")
	ErrNotionNotFound   = errors.New("notion not found")
	ErrLessonNotFound   = errors.New("lesson not found")
	ErrExerciseNotFound = errors.New("exercise not found")
)

// LessonPatch carries the updatable lesson fields; nil means unchanged.
type LessonPatch struct {
	SubjectID *string   `json:"subject_id,omitempty"`
	Title     *string   `json:"title,omitempty"`
	Notions   *[]string `json:"notions,omitempty"`
}

type Store interface {
	CreateSubject(ctx context.Context, name string) (string, error)
	ListSubjects(ctx context.Context) ([]Subject, error)
	RenameSubject(ctx context.Context, id, name string) error
	DeleteSubject(ctx context.Context, id string) error

	CreateNotion(ctx context.Context, subjectID, name string) (string, error)
	ListNotions(ctx context.Context, subjectID string) ([]Notion, error)
	RenameNotion(ctx context.Context, id, name string) error
	DeleteNotion(ctx context.Context, id string) error

	CreateLesson(ctx context.Context, l Lesson) (string, error)
	GetLesson(ctx context.Context, id string) (Lesson, error)
	ListLessons(ctx context.Context, subjectID string) ([]Lesson, error) // newest first; "" = all
	UpdateLesson(ctx context.Context, id string, p LessonPatch) error
	DeleteLesson(ctx context.Context, id string) error // cascades to exercises

	CreateExercise(ctx context.Context, e Exercise, opts []Option) (string, error)
	GetExercise(ctx context.Context, id string) (Exercise, error)
	ListExercises(ctx context.Context, lessonID string) ([]Exercise, error) // oldest first
	UpdateExercise(ctx context.Context, e Exercise, opts []Option) error    // replaces options for multiple-choice
	DeleteExercise(ctx context.Context, id string) error                    // cascades to options, submissions, grades

	ListOptions(ctx context.Context, exerciseID string) ([]Option, error)
}
