package attempt

import (
	"github.com/mind-engage/mindengage-clab/internal/course"
	"github.com/mind-engage/mindengage-clab/internal/rbac"
	"github.com/mind-engage/mindengage-clab/internal/submission"
)

// ReviewView is what a renderer needs to draw an exercise with its answer.
// When ReadOnly is set every control is disabled and multiple-choice options
// carry their correctness flag.
type ReviewView struct {
	ReadOnly bool          `json:"read_only"`
	Kind     course.Kind   `json:"kind"`
	Title    string        `json:"title"`
	Prompt   string        `json:"prompt"`
	Text     string        `json:"text,omitempty"`
	Language string        `json:"language,omitempty"`
	Code     string        `json:"code,omitempty"`
	Options  []OptionView  `json:"options,omitempty"`
	Outcome  *ChoiceResult `json:"outcome,omitempty"`
}

type OptionView struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
	// Correct is nil unless the view is read-only.
	Correct *bool `json:"correct,omitempty"`
}

// ChoiceResult summarises a multiple-choice answer against the key.
type ChoiceResult struct {
	Correct bool `json:"correct"`
	Hits    int  `json:"hits"`
	Misses  int  `json:"misses"` // correct options left unselected
	Wrong   int  `json:"wrong"`  // incorrect options selected
}

// View projects the attempt for viewer. Anyone but the owning student, and
// the owner once Completed, gets the read-only form.
func (a *Attempt) View(viewer rbac.Identity) ReviewView {
	a.mu.Lock()
	readOnly := a.state == Completed || viewer.ID != a.student.ID
	draft := clone(a.draft)
	a.mu.Unlock()
	return buildView(a.exercise, a.options, draft, readOnly)
}

// ReviewSubmission rebuilds the read-only view of a persisted record.
func ReviewSubmission(ex course.Exercise, opts []course.Option, rec submission.Record) ReviewView {
	var a Answer
	switch ex.Kind {
	case course.KindFreeText:
		a = FreeTextAnswer{Text: rec.AnswerText}
	case course.KindCode:
		lang, src := "", ""
		if rec.AnswerText != "" {
			lang, src = ParseCode(rec.AnswerText)
		}
		a = CodeAnswer{Language: lang, Source: src}
	case course.KindMultipleChoice:
		a = ChoiceAnswer{Multi: course.IsMultiSelect(opts), Selected: append([]string{}, rec.SelectedOptions...)}
	default:
		a = FreeTextAnswer{Text: rec.AnswerText}
	}
	return buildView(ex, opts, a, true)
}

func buildView(ex course.Exercise, opts []course.Option, a Answer, readOnly bool) ReviewView {
	v := ReviewView{
		ReadOnly: readOnly,
		Kind:     ex.Kind,
		Title:    ex.Title,
		Prompt:   ex.Prompt,
	}
	switch d := a.(type) {
	case FreeTextAnswer:
		v.Text = d.Text
	case CodeAnswer:
		v.Language, v.Code = d.Language, d.Source
	case ChoiceAnswer:
		selected := make(map[string]bool, len(d.Selected))
		for _, id := range d.Selected {
			selected[id] = true
		}
		v.Options = make([]OptionView, 0, len(opts))
		for _, o := range opts {
			ov := OptionView{ID: o.ID, Text: o.Text, Selected: selected[o.ID]}
			if readOnly {
				c := o.Correct
				ov.Correct = &c
			}
			v.Options = append(v.Options, ov)
		}
		if readOnly {
			r := scoreChoice(opts, selected)
			v.Outcome = &r
		}
	}
	return v
}

func scoreChoice(opts []course.Option, selected map[string]bool) ChoiceResult {
	var r ChoiceResult
	for _, o := range opts {
		switch {
		case o.Correct && selected[o.ID]:
			r.Hits++
		case o.Correct:
			r.Misses++
		case selected[o.ID]:
			r.Wrong++
		}
	}
	r.Correct = r.Hits > 0 && r.Misses == 0 && r.Wrong == 0
	return r
}
