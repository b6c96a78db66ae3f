package attempt

import (
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-clab/internal/course"
)

// DefaultLanguage labels code answers when the student did not pick one.
const DefaultLanguage = "c"

// Answer is the draft held by a running attempt. It is a closed set:
// FreeTextAnswer, CodeAnswer and ChoiceAnswer are the only implementations.
type Answer interface {
	Kind() course.Kind
	answer()
}

type FreeTextAnswer struct {
	Text string `json:"text"`
}

type CodeAnswer struct {
	Language string `json:"language"`
	Source   string `json:"code"`
}

type ChoiceAnswer struct {
	Multi    bool     `json:"multi"`
	Selected []string `json:"selected"` // ordered by first selection
}

func (FreeTextAnswer) Kind() course.Kind { return course.KindFreeText }
func (CodeAnswer) Kind() course.Kind     { return course.KindCode }
func (ChoiceAnswer) Kind() course.Kind   { return course.KindMultipleChoice }

func (FreeTextAnswer) answer() {}
func (CodeAnswer) answer()     {}
func (ChoiceAnswer) answer()   {}

func newDraft(e course.Exercise, opts []course.Option) (Answer, error) {
	switch e.Kind {
	case course.KindFreeText:
		return FreeTextAnswer{}, nil
	case course.KindCode:
		return CodeAnswer{Language: DefaultLanguage}, nil
	case course.KindMultipleChoice:
		return ChoiceAnswer{Multi: course.IsMultiSelect(opts), Selected: []string{}}, nil
	}
	return nil, fmt.Errorf("attempt: unsupported exercise kind %q", e.Kind)
}

// clone returns a copy that shares no memory with a.
func clone(a Answer) Answer {
	if c, ok := a.(ChoiceAnswer); ok {
		c.Selected = append([]string{}, c.Selected...)
		return c
	}
	return a
}

// toggle applies one option click. Multi-select toggles membership;
// single-select replaces the current selection.
func (c ChoiceAnswer) toggle(id string) ChoiceAnswer {
	if !c.Multi {
		c.Selected = []string{id}
		return c
	}
	out := make([]string, 0, len(c.Selected)+1)
	found := false
	for _, s := range c.Selected {
		if s == id {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		out = append(out, id)
	}
	c.Selected = out
	return c
}

// validate enforces the non-empty rule of manual submissions.
func validate(a Answer) error {
	switch v := a.(type) {
	case FreeTextAnswer:
		if strings.TrimSpace(v.Text) == "" {
			return &ValidationError{Field: "text", Reason: "answer is empty"}
		}
	case CodeAnswer:
		if strings.TrimSpace(v.Source) == "" {
			return &ValidationError{Field: "code", Reason: "code is empty"}
		}
	case ChoiceAnswer:
		if len(v.Selected) == 0 {
			return &ValidationError{Field: "options", Reason: "select at least one option"}
		}
	default:
		panic(fmt.Sprintf("attempt: unhandled answer type %T", a))
	}
	return nil
}

// normalize flattens a draft into the persisted answer text and, for
// multiple-choice, the selected option ids.
func normalize(a Answer) (text string, selected []string) {
	switch v := a.(type) {
	case FreeTextAnswer:
		return v.Text, nil
	case CodeAnswer:
		if strings.TrimSpace(v.Source) == "" {
			return "", nil
		}
		return FormatCode(v.Language, v.Source), nil
	case ChoiceAnswer:
		sel := append([]string{}, v.Selected...)
		return strings.Join(sel, ","), sel
	default:
		panic(fmt.Sprintf("attempt: unhandled answer type %T", a))
	}
}

// FormatCode tags source with its language: "[c]\n<source>".
func FormatCode(lang, src string) string {
	if strings.TrimSpace(lang) == "" {
		lang = DefaultLanguage
	}
	return "[" + lang + "]\n" + src
}

// ParseCode splits a stored code answer back into language and source.
// Untagged text is returned as source with the default language.
func ParseCode(text string) (lang, src string) {
	if strings.HasPrefix(text, "[") {
		if end := strings.Index(text, "]\n"); end > 1 {
			return text[1:end], text[end+2:]
		}
	}
	return DefaultLanguage, text
}
