package grading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-clab/internal/course"
	"github.com/mind-engage/mindengage-clab/internal/db"
	"github.com/mind-engage/mindengage-clab/internal/submission"
	syncx "github.com/mind-engage/mindengage-clab/internal/sync"
)

func TestValidate(t *testing.T) {
	ok := Grade{SubmissionID: "s1", TeacherID: "t1", Value: 3}
	if err := Validate(ok); err != nil {
		t.Fatalf("valid grade rejected: %v", err)
	}
	for _, v := range []int{0, 6, -1} {
		g := ok
		g.Value = v
		if err := Validate(g); !errors.Is(err, ErrInvalidGrade) {
			t.Errorf("grade %d: %v", v, err)
		}
	}
	if err := Validate(Grade{TeacherID: "t1", Value: 3}); !errors.Is(err, ErrInvalidGrade) {
		t.Errorf("missing submission: %v", err)
	}
	if err := Validate(Grade{SubmissionID: "s1", Value: 3}); !errors.Is(err, ErrInvalidGrade) {
		t.Errorf("missing teacher: %v", err)
	}
}

func TestSQLStoreUpsert(t *testing.T) {
	ctx := context.Background()
	h, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	for _, q := range []string{
		`INSERT INTO lessons (id,subject_id,title,created_by,created_at) VALUES ('l1','s1','L','t',0)`,
		`INSERT INTO exercises (id,lesson_id,kind,title,prompt,created_at) VALUES ('e1','l1','free-text','T','P',0)`,
		`INSERT INTO submissions (id,exercise_id,student_id,submitted_at,duration_sec,answer_text) VALUES ('s1','e1','u1',0,10,'x')`,
	} {
		if _, err := h.Exec(q); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	st := NewSQLStore(h)
	st.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	if _, err := st.GetBySubmission(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get before save: %v", err)
	}
	first, err := st.Save(ctx, Grade{SubmissionID: "s1", TeacherID: "t1", Value: 2, Feedback: "  check bounds  "})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := st.Save(ctx, Grade{SubmissionID: "s1", TeacherID: "t2", Value: 4})
	if err != nil {
		t.Fatalf("resave: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("upsert created a second grade")
	}
	got, err := st.GetBySubmission(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Value != 4 || got.TeacherID != "t2" || got.Feedback != "" || !got.GradedAt.Equal(st.now()) {
		t.Fatalf("grade = %+v", got)
	}
	if _, err := st.Save(ctx, Grade{SubmissionID: "s1", TeacherID: "t1", Value: 9}); err == nil {
		t.Fatalf("out of range grade saved")
	}

	evs, err := syncx.NewEventRepo(h).Since(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 2 || evs[0].Type != syncx.TypeGradeSaved || evs[1].Key != "s1" {
		t.Fatalf("events = %+v", evs)
	}
}

func TestSuggestChoiceGrade(t *testing.T) {
	opts := []course.Option{{ID: "a", Correct: true}, {ID: "b", Correct: true}, {ID: "c"}, {ID: "d"}}
	cases := []struct {
		picked []string
		want   int
	}{
		{[]string{"a", "b"}, 5},
		{[]string{"a"}, 3},
		{[]string{"a", "c"}, 1},
		{[]string{"a", "b", "c"}, 3},
		{[]string{"c", "d"}, 1},
		{nil, 1},
	}
	for _, tc := range cases {
		if got := SuggestChoiceGrade(opts, tc.picked); got != tc.want {
			t.Errorf("SuggestChoiceGrade(%v) = %d want %d", tc.picked, got, tc.want)
		}
	}
	if got := SuggestChoiceGrade([]course.Option{{ID: "x"}}, []string{"x"}); got != MinGrade {
		t.Errorf("no key should score the minimum, got %d", got)
	}
}

func TestSuggester(t *testing.T) {
	s := NewSuggester()
	mc := course.Exercise{Kind: course.KindMultipleChoice}
	opts := []course.Option{{ID: "a", Correct: true}, {ID: "b"}}

	got := s.Suggest(mc, opts, submission.Record{SelectedOptions: []string{"a"}})
	if got.Grade != 5 || got.NeedsManual {
		t.Fatalf("choice suggestion = %+v", got)
	}
	got = s.Suggest(course.Exercise{Kind: course.KindFreeText}, nil, submission.Record{AnswerText: "x"})
	if !got.NeedsManual || got.Grade != 0 {
		t.Fatalf("free-text suggestion = %+v", got)
	}
	got = s.Suggest(course.Exercise{Kind: course.KindCode}, nil, submission.Record{})
	if !got.NeedsManual || got.Grade != MinGrade {
		t.Fatalf("empty code suggestion = %+v", got)
	}
}
