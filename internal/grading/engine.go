package grading

import (
	"fmt"
	"math"

	"github.com/mind-engage/mindengage-clab/internal/course"
	"github.com/mind-engage/mindengage-clab/internal/submission"
)

// Suggestion pre-fills the review form. Teachers always confirm the grade.
type Suggestion struct {
	Grade       int      `json:"grade,omitempty"`
	NeedsManual bool     `json:"needs_manual"`
	Feedback    []string `json:"feedback,omitempty"`
}

// Strategy suggests a grade for one kind of exercise.
type Strategy interface {
	Suggest(ex course.Exercise, opts []course.Option, rec submission.Record) Suggestion
}

type Suggester struct {
	strategies map[course.Kind]Strategy
}

// NewSuggester installs the built-in strategies.
func NewSuggester() *Suggester {
	return &Suggester{
		strategies: map[course.Kind]Strategy{
			course.KindMultipleChoice: choiceStrategy{},
			course.KindFreeText:       manualStrategy{note: "free-text answers are graded by hand"},
			course.KindCode:           codeStrategy{},
		},
	}
}

func (s *Suggester) Suggest(ex course.Exercise, opts []course.Option, rec submission.Record) Suggestion {
	st, ok := s.strategies[ex.Kind]
	if !ok {
		return Suggestion{NeedsManual: true, Feedback: []string{"no strategy available"}}
	}
	return st.Suggest(ex, opts, rec)
}

// --- Strategies ---

type choiceStrategy struct{}

func (choiceStrategy) Suggest(_ course.Exercise, opts []course.Option, rec submission.Record) Suggestion {
	correct := toSet(course.CorrectIDs(opts))
	picked := toSet(rec.SelectedOptions)
	out := Suggestion{Grade: SuggestChoiceGrade(opts, rec.SelectedOptions)}
	if setEqual(correct, picked) {
		out.Feedback = append(out.Feedback, "all correct options selected")
		return out
	}
	hits, wrong := overlap(correct, picked)
	out.Feedback = append(out.Feedback, fmt.Sprintf("correct picks: %d/%d, wrong picks: %d", hits, len(correct), wrong))
	return out
}

type manualStrategy struct{ note string }

func (s manualStrategy) Suggest(course.Exercise, []course.Option, submission.Record) Suggestion {
	return Suggestion{NeedsManual: true, Feedback: []string{s.note}}
}

type codeStrategy struct{}

func (codeStrategy) Suggest(_ course.Exercise, _ []course.Option, rec submission.Record) Suggestion {
	if rec.AnswerText == "" {
		return Suggestion{Grade: MinGrade, NeedsManual: true, Feedback: []string{"no code submitted"}}
	}
	return Suggestion{NeedsManual: true, Feedback: []string{"code answers are graded by hand"}}
}

// SuggestChoiceGrade maps a multiple-choice answer onto the 1..5 scale: the
// share of correct options picked, less one share per wrong pick, clamped to
// [0,1]. Nothing picked, or no key, scores the minimum.
func SuggestChoiceGrade(opts []course.Option, selected []string) int {
	correct := toSet(course.CorrectIDs(opts))
	if len(correct) == 0 || len(selected) == 0 {
		return MinGrade
	}
	hits, wrong := overlap(correct, toSet(selected))
	frac := float64(hits-wrong) / float64(len(correct))
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return MinGrade + int(math.Round(frac*float64(MaxGrade-MinGrade)))
}

// helpers

func overlap(correct, picked map[string]struct{}) (hits, wrong int) {
	for k := range picked {
		if _, ok := correct[k]; ok {
			hits++
		} else {
			wrong++
		}
	}
	return hits, wrong
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
