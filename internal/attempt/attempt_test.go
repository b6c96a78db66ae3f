package attempt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-clab/internal/course"
	"github.com/mind-engage/mindengage-clab/internal/rbac"
	"github.com/mind-engage/mindengage-clab/internal/submission"
)

// ---- fakes ----

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time), done: make(chan struct{})}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

// Advance moves time forward n steps and hands one tick per step to every
// live ticker, waiting until the consumer has taken it.
func (c *fakeClock) Advance(n int, step time.Duration) {
	for i := 0; i < n; i++ {
		c.mu.Lock()
		c.now = c.now.Add(step)
		now := c.now
		ts := append([]*fakeTicker(nil), c.tickers...)
		c.mu.Unlock()
		for _, t := range ts {
			select {
			case t.ch <- now:
			case <-t.done:
			}
		}
	}
}

func (c *fakeClock) liveTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		select {
		case <-t.done:
		default:
			n++
		}
	}
	return n
}

type fakeTicker struct {
	ch   chan time.Time
	done chan struct{}
	once sync.Once
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.once.Do(func() { close(t.done) }) }

// gatedRepo wraps the in-memory store with failure injection and an optional
// gate that holds Create until released.
type gatedRepo struct {
	*submission.MemoryStore

	mu       sync.Mutex
	failNext int
	calls    int
	gate     chan struct{}
	entered  chan struct{}
}

func newGatedRepo() *gatedRepo {
	return &gatedRepo{MemoryStore: submission.NewMemoryStore(), entered: make(chan struct{}, 8)}
}

func (r *gatedRepo) Create(ctx context.Context, n submission.New) (string, error) {
	r.mu.Lock()
	r.calls++
	gate := r.gate
	fail := r.failNext > 0
	if fail {
		r.failNext--
	}
	r.mu.Unlock()
	r.entered <- struct{}{}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if fail {
		return "", errors.New("network unreachable")
	}
	return r.MemoryStore.Create(ctx, n)
}

func (r *gatedRepo) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type recorder struct {
	mu        sync.Mutex
	ticks     []int
	timeUps   int
	errs      []error
	submitted chan string
}

func newRecorder() *recorder { return &recorder{submitted: make(chan string, 4)} }

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnTick: func(n int) {
			r.mu.Lock()
			r.ticks = append(r.ticks, n)
			r.mu.Unlock()
		},
		OnTimeUp: func() {
			r.mu.Lock()
			r.timeUps++
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
		OnSubmitted: func(id string) { r.submitted <- id },
	}
}

func (r *recorder) waitSubmitted(t *testing.T) string {
	t.Helper()
	select {
	case id := <-r.submitted:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("no submission")
		return ""
	}
}

func (r *recorder) waitTimeUp(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, n, _ := r.snapshot(); n > 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("time up never fired")
		}
		time.Sleep(time.Millisecond)
	}
}

func (r *recorder) snapshot() (ticks []int, timeUps int, errs []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.ticks...), r.timeUps, append([]error(nil), r.errs...)
}

var student = rbac.Identity{ID: "stu-1", Role: rbac.RoleStudent}

func freeText(limit *int) course.Exercise {
	return course.Exercise{ID: "ex-text", Kind: course.KindFreeText, Title: "Pointers", Prompt: "Explain `*p`.", TimeLimitMinutes: limit}
}

func started(t *testing.T, ex course.Exercise, opts []course.Option, repo Submitter, rec *recorder, clk *fakeClock) *Attempt {
	t.Helper()
	a, err := New(student, ex, opts, repo, rec.callbacks(), WithClock(clk))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := a.Confirm(); err != nil {
		t.Fatal(err)
	}
	return a
}

func waitState(t *testing.T, a *Attempt, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for a.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", a.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func onlyRecord(t *testing.T, repo *gatedRepo, exerciseID string) submission.Record {
	t.Helper()
	rs, err := repo.ListByStudentAndExercise(context.Background(), student.ID, exerciseID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rs) != 1 {
		t.Fatalf("got %d records, want 1", len(rs))
	}
	return rs[0]
}

// ---- lifecycle ----

func TestConfirmationStep(t *testing.T) {
	clk := newFakeClock()
	a, err := New(student, freeText(nil), nil, newGatedRepo(), Callbacks{}, WithClock(clk))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Confirm(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("confirm before begin: %v", err)
	}
	if err := a.SetText("early"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("edit before start: %v", err)
	}
	if err := a.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := a.Cancel(); err != nil {
		t.Fatal(err)
	}
	if a.State() != NotStarted {
		t.Fatalf("state after cancel = %s", a.State())
	}
	if !a.Snapshot().StartedAt.IsZero() {
		t.Fatalf("cancel must not record a start")
	}
	_ = a.Begin()
	if err := a.Confirm(); err != nil {
		t.Fatal(err)
	}
	if got := a.Snapshot().StartedAt; !got.Equal(clk.Now()) {
		t.Fatalf("started at %v, want %v", got, clk.Now())
	}
}

func TestOnlyStudentsStart(t *testing.T) {
	teacher := rbac.Identity{ID: "t1", Role: rbac.RoleTeacher}
	if _, err := New(teacher, freeText(nil), nil, newGatedRepo(), Callbacks{}); !errors.Is(err, ErrNotStudent) {
		t.Fatalf("err = %v", err)
	}
}

type mapSource map[string]course.Exercise

func (m mapSource) GetExercise(_ context.Context, id string) (course.Exercise, error) {
	e, ok := m[id]
	if !ok {
		return course.Exercise{}, course.ErrExerciseNotFound
	}
	return e, nil
}

func (m mapSource) ListOptions(context.Context, string) ([]course.Option, error) {
	return []course.Option{{ID: "A", Text: "int", Correct: true}, {ID: "B", Text: "char"}}, nil
}

func TestOpen(t *testing.T) {
	src := mapSource{"mc": {ID: "mc", Kind: course.KindMultipleChoice, Title: "Types"}}
	if _, err := Open(context.Background(), src, "missing", student, newGatedRepo(), Callbacks{}); !errors.Is(err, ErrExerciseNotFound) {
		t.Fatalf("err = %v", err)
	}
	a, err := Open(context.Background(), src, "mc", student, newGatedRepo(), Callbacks{})
	if err != nil {
		t.Fatal(err)
	}
	if c, ok := a.Draft().(ChoiceAnswer); !ok || c.Multi {
		t.Fatalf("draft = %#v", a.Draft())
	}
}

// ---- countdown ----

func TestTimeoutForcesEmptySubmission(t *testing.T) {
	clk := newFakeClock()
	repo := newGatedRepo()
	rec := newRecorder()
	a := started(t, freeText(course.Minutes(1)), nil, repo, rec, clk)

	clk.Advance(61, time.Second)
	id := rec.waitSubmitted(t)

	r := onlyRecord(t, repo, "ex-text")
	if r.ID != id || r.AnswerText != "" || r.Duration != 60 {
		t.Fatalf("record = %+v", r)
	}
	if a.State() != Completed || a.SubmissionID() != id {
		t.Fatalf("state %s id %q", a.State(), a.SubmissionID())
	}
	ticks, timeUps, _ := rec.snapshot()
	if timeUps != 1 {
		t.Fatalf("time up fired %d times", timeUps)
	}
	if len(ticks) != 61 || ticks[0] != 60 || ticks[len(ticks)-1] != 0 {
		t.Fatalf("ticks = %v", ticks)
	}
	if clk.liveTickers() != 0 {
		t.Fatalf("timer still armed after timeout")
	}
}

func TestTimeoutSubmitsDraftAsIs(t *testing.T) {
	clk := newFakeClock()
	repo := newGatedRepo()
	rec := newRecorder()
	a := started(t, freeText(course.Minutes(2)), nil, repo, rec, clk)
	if err := a.SetText("partial"); err != nil {
		t.Fatal(err)
	}
	clk.Advance(120, time.Second)
	rec.waitSubmitted(t)
	if r := onlyRecord(t, repo, "ex-text"); r.AnswerText != "partial" || r.Duration != 120 {
		t.Fatalf("record = %+v", r)
	}
}

func TestCoalescedTicks(t *testing.T) {
	clk := newFakeClock()
	repo := newGatedRepo()
	rec := newRecorder()
	a := started(t, freeText(course.Minutes(1)), nil, repo, rec, clk)

	clk.Advance(1, 25*time.Second)
	if rem, timed := a.Remaining(); !timed || rem != 35 {
		t.Fatalf("remaining = %d %v", rem, timed)
	}
	clk.Advance(1, 500*time.Millisecond)
	if rem, _ := a.Remaining(); rem != 35 {
		t.Fatalf("remaining rounds up: got %d", rem)
	}
	clk.Advance(1, 90*time.Second)
	rec.waitSubmitted(t)
	if r := onlyRecord(t, repo, "ex-text"); r.Duration != 60 {
		t.Fatalf("duration = %d, want the limit", r.Duration)
	}
}

func TestUntimedNeverAutoSubmits(t *testing.T) {
	clk := newFakeClock()
	repo := newGatedRepo()
	rec := newRecorder()
	a := started(t, freeText(nil), nil, repo, rec, clk)

	clk.Advance(3, 24*time.Hour)
	if a.State() != Running || repo.Calls() != 0 {
		t.Fatalf("state %s calls %d", a.State(), repo.Calls())
	}
	if _, timed := a.Remaining(); timed {
		t.Fatalf("untimed attempt reports a countdown")
	}
	if len(clk.tickers) != 0 {
		t.Fatalf("untimed attempt armed a ticker")
	}
	_ = a.SetText("done")
	if _, err := a.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r := onlyRecord(t, repo, "ex-text"); r.Duration != 3*24*3600 {
		t.Fatalf("duration = %d", r.Duration)
	}
}

// ---- answers and validation ----

func TestManualSubmitRejectsBlankAnswers(t *testing.T) {
	clk := newFakeClock()
	code := course.Exercise{ID: "ex-code", Kind: course.KindCode}
	mc := course.Exercise{ID: "ex-mc", Kind: course.KindMultipleChoice}
	opts := []course.Option{{ID: "A", Correct: true}, {ID: "B"}}

	cases := []struct {
		name string
		ex   course.Exercise
		opts []course.Option
		set  func(*Attempt) error
	}{
		{"text", freeText(nil), nil, func(a *Attempt) error { return a.SetText(" \n\t ") }},
		{"code", code, nil, func(a *Attempt) error { return a.SetCode("c", "   ") }},
		{"choice", mc, opts, func(*Attempt) error { return nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newGatedRepo()
			a := started(t, tc.ex, tc.opts, repo, newRecorder(), clk)
			if err := tc.set(a); err != nil {
				t.Fatal(err)
			}
			_, err := a.Submit(context.Background())
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v", err)
			}
			if a.State() != Running || repo.Calls() != 0 {
				t.Fatalf("state %s calls %d", a.State(), repo.Calls())
			}
		})
	}
}

func TestWrongKindEdits(t *testing.T) {
	a := started(t, freeText(nil), nil, newGatedRepo(), newRecorder(), newFakeClock())
	if err := a.SetCode("c", "int main;"); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("err = %v", err)
	}
	if err := a.SelectOption("A"); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("err = %v", err)
	}
}

func TestSingleSelectReplaces(t *testing.T) {
	clk := newFakeClock()
	repo := newGatedRepo()
	mc := course.Exercise{ID: "ex-mc", Kind: course.KindMultipleChoice}
	opts := []course.Option{{ID: "A", Text: "int", Correct: true}, {ID: "B", Text: "float"}}
	a := started(t, mc, opts, repo, newRecorder(), clk)

	_ = a.SelectOption("B")
	_ = a.SelectOption("A")
	if got := a.Draft().(ChoiceAnswer).Selected; len(got) != 1 || got[0] != "A" {
		t.Fatalf("selected = %v", got)
	}
	if err := a.SelectOption("Z"); err == nil {
		t.Fatalf("unknown option accepted")
	}
	if _, err := a.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	r := onlyRecord(t, repo, "ex-mc")
	if len(r.SelectedOptions) != 1 || r.SelectedOptions[0] != "A" || r.AnswerText != "A" {
		t.Fatalf("record = %+v", r)
	}
}

func TestMultiSelectAccumulates(t *testing.T) {
	mc := course.Exercise{ID: "ex-mc", Kind: course.KindMultipleChoice}
	opts := []course.Option{{ID: "A", Correct: true}, {ID: "B", Correct: true}, {ID: "C"}}
	a := started(t, mc, opts, newGatedRepo(), newRecorder(), newFakeClock())

	_ = a.SelectOption("A")
	_ = a.SelectOption("B")
	if got := a.Draft().(ChoiceAnswer).Selected; len(got) != 2 {
		t.Fatalf("selected = %v", got)
	}
	_ = a.SelectOption("A")
	if got := a.Draft().(ChoiceAnswer).Selected; len(got) != 1 || got[0] != "B" {
		t.Fatalf("toggle off failed: %v", got)
	}
}

func TestCodeAnswerIsTagged(t *testing.T) {
	repo := newGatedRepo()
	a := started(t, course.Exercise{ID: "ex-code", Kind: course.KindCode}, nil, repo, newRecorder(), newFakeClock())
	_ = a.SetCode("", "int main(void) { return 0; }")
	if _, err := a.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	r := onlyRecord(t, repo, "ex-code")
	if r.AnswerText != "[c]\nint main(void) { return 0; }" {
		t.Fatalf("answer = %q", r.AnswerText)
	}
	if r.SelectedOptions != nil {
		t.Fatalf("code answer carries options: %v", r.SelectedOptions)
	}
	lang, src := ParseCode(r.AnswerText)
	if lang != "c" || src != "int main(void) { return 0; }" {
		t.Fatalf("parse = %q %q", lang, src)
	}
}

// ---- submission races and failures ----

func TestManualSubmitWinsOverTimeout(t *testing.T) {
	clk := newFakeClock()
	repo := newGatedRepo()
	repo.gate = make(chan struct{})
	rec := newRecorder()
	a := started(t, freeText(course.Minutes(1)), nil, repo, rec, clk)
	_ = a.SetText("mine")

	result := make(chan error, 1)
	go func() {
		_, err := a.Submit(context.Background())
		result <- err
	}()
	<-repo.entered

	if _, err := a.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("second submit: %v", err)
	}
	clk.Advance(60, time.Second)
	rec.waitTimeUp(t)
	close(repo.gate)
	if err := <-result; err != nil {
		t.Fatal(err)
	}
	rec.waitSubmitted(t)

	if repo.Calls() != 1 || repo.Len() != 1 {
		t.Fatalf("calls %d records %d", repo.Calls(), repo.Len())
	}
	if _, timeUps, _ := rec.snapshot(); timeUps != 1 {
		t.Fatalf("time up fired %d times", timeUps)
	}
	if _, err := a.Submit(context.Background()); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("submit after completion: %v", err)
	}
}

func TestTimeoutWinsOverManualSubmit(t *testing.T) {
	clk := newFakeClock()
	repo := newGatedRepo()
	repo.gate = make(chan struct{})
	rec := newRecorder()
	a := started(t, freeText(course.Minutes(1)), nil, repo, rec, clk)
	_ = a.SetText("late")

	clk.Advance(60, time.Second)
	<-repo.entered
	if _, err := a.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("manual submit during forced one: %v", err)
	}
	close(repo.gate)
	rec.waitSubmitted(t)
	if repo.Calls() != 1 {
		t.Fatalf("calls = %d", repo.Calls())
	}
	if r := onlyRecord(t, repo, "ex-text"); r.AnswerText != "late" || r.Duration != 60 {
		t.Fatalf("record = %+v", r)
	}
}

func TestRetryAfterPersistenceFailure(t *testing.T) {
	clk := newFakeClock()
	repo := newGatedRepo()
	repo.failNext = 1
	rec := newRecorder()
	a := started(t, freeText(nil), nil, repo, rec, clk)
	_ = a.SetText("answer")

	clk.Advance(1, 5*time.Second)
	_, err := a.Submit(context.Background())
	var pe *PersistenceError
	if !errors.As(err, &pe) || !pe.Retryable() {
		t.Fatalf("err = %v", err)
	}
	if a.State() != Running {
		t.Fatalf("state = %s", a.State())
	}
	if d := a.Draft().(FreeTextAnswer); d.Text != "answer" {
		t.Fatalf("draft lost: %+v", d)
	}
	if _, _, errs := rec.snapshot(); len(errs) != 1 {
		t.Fatalf("errors reported = %d", len(errs))
	}

	clk.Advance(1, 3*time.Second)
	if _, err := a.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r := onlyRecord(t, repo, "ex-text"); r.Duration != 8 {
		t.Fatalf("duration = %d, want 8 from the original start", r.Duration)
	}
}

func TestForcedSubmitFailureKeepsTimedOut(t *testing.T) {
	clk := newFakeClock()
	repo := newGatedRepo()
	repo.failNext = 1
	rec := newRecorder()
	a := started(t, freeText(course.Minutes(1)), nil, repo, rec, clk)

	clk.Advance(60, time.Second)
	waitState(t, a, TimedOut)
	if err := a.SetText("too late"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("edit after timeout: %v", err)
	}

	clk.Advance(1, time.Minute)
	if _, err := a.Submit(context.Background()); err != nil {
		t.Fatalf("retry from timed out: %v", err)
	}
	if r := onlyRecord(t, repo, "ex-text"); r.Duration != 60 || r.AnswerText != "" {
		t.Fatalf("record = %+v", r)
	}
}

// ---- abandon ----

func TestAbandonWritesNothing(t *testing.T) {
	clk := newFakeClock()
	repo := newGatedRepo()
	a := started(t, freeText(course.Minutes(5)), nil, repo, newRecorder(), clk)
	first := a.Snapshot().StartedAt
	_ = a.SetText("draft")
	clk.Advance(10, time.Second)

	a.Close()
	if a.State() != Abandoned || clk.liveTickers() != 0 {
		t.Fatalf("state %s live tickers %d", a.State(), clk.liveTickers())
	}
	clk.Advance(400, time.Second)
	if repo.Calls() != 0 {
		t.Fatalf("abandoned attempt wrote %d records", repo.Calls())
	}
	if _, err := a.Submit(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("submit after close: %v", err)
	}

	b := started(t, freeText(course.Minutes(5)), nil, repo, newRecorder(), clk)
	if !b.Snapshot().StartedAt.After(first) {
		t.Fatalf("restart reused the old start timestamp")
	}
	if d := b.Draft().(FreeTextAnswer); d.Text != "" {
		t.Fatalf("restart kept the old draft")
	}
	b.Close()
}

func TestCloseDuringInFlightSubmit(t *testing.T) {
	repo := newGatedRepo()
	repo.gate = make(chan struct{})
	rec := newRecorder()
	a := started(t, freeText(nil), nil, repo, rec, newFakeClock())
	_ = a.SetText("late")

	type result struct {
		id  string
		err error
	}
	res := make(chan result, 1)
	go func() {
		id, err := a.Submit(context.Background())
		res <- result{id, err}
	}()
	<-repo.entered

	a.Close()
	close(repo.gate)
	r := <-res
	if r.err != nil || r.id == "" {
		t.Fatalf("submit = %q, %v", r.id, r.err)
	}
	if a.State() != Abandoned || a.SubmissionID() != r.id {
		t.Fatalf("state %s submission %q", a.State(), a.SubmissionID())
	}
	if repo.Len() != 1 {
		t.Fatalf("records %d", repo.Len())
	}
	select {
	case id := <-rec.submitted:
		t.Fatalf("OnSubmitted fired for an abandoned attempt: %s", id)
	default:
	}
}

func TestCloseAfterCompletionKeepsResult(t *testing.T) {
	a := started(t, freeText(nil), nil, newGatedRepo(), newRecorder(), newFakeClock())
	_ = a.SetText("x")
	id, err := a.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	a.Close()
	if a.State() != Completed || a.SubmissionID() != id {
		t.Fatalf("close clobbered a completed attempt")
	}
}

// ---- review ----

func TestViewReadOnlyAnnotations(t *testing.T) {
	mc := course.Exercise{ID: "ex-mc", Kind: course.KindMultipleChoice, Prompt: "Pick"}
	opts := []course.Option{{ID: "A", Text: "int", Correct: true}, {ID: "B", Text: "float"}}
	a := started(t, mc, opts, newGatedRepo(), newRecorder(), newFakeClock())
	_ = a.SelectOption("B")

	own := a.View(student)
	if own.ReadOnly || own.Options[0].Correct != nil || own.Outcome != nil {
		t.Fatalf("owner view leaks the key: %+v", own)
	}
	if !own.Options[1].Selected {
		t.Fatalf("selection not shown")
	}

	teacher := rbac.Identity{ID: "t1", Role: rbac.RoleTeacher}
	v := a.View(teacher)
	if !v.ReadOnly || v.Options[0].Correct == nil || !*v.Options[0].Correct {
		t.Fatalf("teacher view = %+v", v)
	}
	if v.Outcome == nil || v.Outcome.Correct || v.Outcome.Wrong != 1 || v.Outcome.Misses != 1 {
		t.Fatalf("outcome = %+v", v.Outcome)
	}

	_ = a.SelectOption("A")
	if _, err := a.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if done := a.View(student); !done.ReadOnly || !done.Outcome.Correct {
		t.Fatalf("completed view = %+v", done)
	}
}

func TestReviewSubmission(t *testing.T) {
	ex := course.Exercise{ID: "ex-code", Kind: course.KindCode, Prompt: "Write main"}
	v := ReviewSubmission(ex, nil, submission.Record{AnswerText: "[cpp]\nint x;"})
	if !v.ReadOnly || v.Language != "cpp" || v.Code != "int x;" {
		t.Fatalf("view = %+v", v)
	}
	empty := ReviewSubmission(ex, nil, submission.Record{})
	if empty.Code != "" || empty.Language != "" {
		t.Fatalf("empty code view = %+v", empty)
	}
}

// ---- registry ----

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	clk := newFakeClock()
	a := started(t, freeText(course.Minutes(1)), nil, newGatedRepo(), newRecorder(), clk)
	id := reg.Add(a)

	if _, err := reg.Get(id, "someone-else"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("foreign get: %v", err)
	}
	if got, err := reg.Get(id, student.ID); err != nil || got != a {
		t.Fatalf("get = %v %v", got, err)
	}
	if n := reg.AbandonAllFor(student.ID); n != 1 {
		t.Fatalf("abandoned %d", n)
	}
	if a.State() != Abandoned || reg.Len() != 0 {
		t.Fatalf("state %s len %d", a.State(), reg.Len())
	}
}
