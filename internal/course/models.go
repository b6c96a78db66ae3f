package course

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the shape of an exercise's expected answer.
type Kind string

const (
	KindMultipleChoice Kind = "multiple-choice"
	KindFreeText       Kind = "free-text"
	KindCode           Kind = "code"
)

// ParseKind accepts the canonical names and the short legacy aliases
// (qcm, text) still found in exported content.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "multiple-choice", "qcm", "mcq":
		return KindMultipleChoice, nil
	case "free-text", "text":
		return KindFreeText, nil
	case "code":
		return KindCode, nil
	}
	return "", fmt.Errorf("unknown exercise kind %q", s)
}

type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Notion struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Lesson struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	Title     string    `json:"title"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	Notions   []string  `json:"notions"` // notion IDs
}

type Exercise struct {
	ID       string `json:"id"`
	LessonID string `json:"lesson_id"`
	Kind     Kind   `json:"kind"`
	Title    string `json:"title"`
	Prompt   string `json:"prompt"` // markdown
	// TimeLimitMinutes is nil for untimed exercises.
	TimeLimitMinutes *int      `json:"time_limit_min,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// TimeLimit reports the countdown length and whether the exercise is timed.
func (e Exercise) TimeLimit() (time.Duration, bool) {
	if e.TimeLimitMinutes == nil || *e.TimeLimitMinutes <= 0 {
		return 0, false
	}
	return time.Duration(*e.TimeLimitMinutes) * time.Minute, true
}

type Option struct {
	ID         string `json:"id"`
	ExerciseID string `json:"exercise_id"`
	Text       string `json:"option_text"`
	Correct    bool   `json:"is_correct"`
}

// IsMultiSelect reports whether more than one option is flagged correct.
// There is no stored flag; the count is the source of truth.
func IsMultiSelect(opts []Option) bool {
	n := 0
	for _, o := range opts {
		if o.Correct {
			n++
		}
	}
	return n > 1
}

// CorrectIDs returns the ids of the correct options in input order.
func CorrectIDs(opts []Option) []string {
	var out []string
	for _, o := range opts {
		if o.Correct {
			out = append(out, o.ID)
		}
	}
	return out
}

// FindOption returns the option with the given id.
func FindOption(opts []Option, id string) (Option, bool) {
	for _, o := range opts {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Minutes is a small helper for building timed exercises.
func Minutes(n int) *int { return &n }
