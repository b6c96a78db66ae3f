package course

import (
	"fmt"
	"strings"
)

// ValidationError reports an invalid authoring input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }

// ValidateExercise checks an exercise definition and returns the options that
// should be stored: blank options are dropped, the rest are trimmed.
func ValidateExercise(e Exercise, opts []Option) ([]Option, error) {
	if strings.TrimSpace(e.LessonID) == "" {
		return nil, invalid("lesson_id", "required")
	}
	if strings.TrimSpace(e.Title) == "" {
		return nil, invalid("title", "required")
	}
	if strings.TrimSpace(e.Prompt) == "" {
		return nil, invalid("prompt", "required")
	}
	if e.TimeLimitMinutes != nil && *e.TimeLimitMinutes < 1 {
		return nil, invalid("time_limit_min", "must be at least 1 minute")
	}
	switch e.Kind {
	case KindFreeText, KindCode:
		return nil, nil
	case KindMultipleChoice:
	default:
		return nil, invalid("kind", fmt.Sprintf("unknown kind %q", e.Kind))
	}

	kept := make([]Option, 0, len(opts))
	correct := 0
	for _, o := range opts {
		o.Text = strings.TrimSpace(o.Text)
		if o.Text == "" {
			continue
		}
		if o.Correct {
			correct++
		}
		kept = append(kept, o)
	}
	if len(kept) < 2 {
		return nil, invalid("options", "at least 2 options are required")
	}
	if correct == 0 {
		return nil, invalid("options", "at least one option must be correct")
	}
	return kept, nil
}

func validateName(field, s string) error {
	if strings.TrimSpace(s) == "" {
		return invalid(field, "required")
	}
	return nil
}
