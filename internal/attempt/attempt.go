// Package attempt implements one student's timed pass at one exercise:
// confirmation, countdown, answer collection and the single submission it
// may produce.
package attempt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mind-engage/mindengage-clab/internal/course"
	"github.com/mind-engage/mindengage-clab/internal/rbac"
	"github.com/mind-engage/mindengage-clab/internal/submission"
)

// Submitter persists a finished attempt. submission.Repository satisfies it.
type Submitter interface {
	Create(ctx context.Context, n submission.New) (string, error)
}

// ExerciseSource loads exercise definitions. course.Store satisfies it.
type ExerciseSource interface {
	GetExercise(ctx context.Context, id string) (course.Exercise, error)
	ListOptions(ctx context.Context, exerciseID string) ([]course.Option, error)
}

// Callbacks are invoked outside the attempt's lock, in the goroutine that
// caused the event. Any of them may be nil.
type Callbacks struct {
	OnTick        func(remaining int)
	OnTimeUp      func()
	OnSubmitted   func(submissionID string)
	OnError       func(err error)
	OnStateChange func(from, to State)
}

type Option func(*Attempt)

func WithClock(c Clock) Option { return func(a *Attempt) { a.clock = c } }

func WithTickInterval(d time.Duration) Option {
	return func(a *Attempt) {
		if d > 0 {
			a.interval = d
		}
	}
}

type Attempt struct {
	mu sync.Mutex

	student  rbac.Identity
	exercise course.Exercise
	options  []course.Option
	repo     Submitter
	cb       Callbacks
	clock    Clock
	interval time.Duration
	log      zerolog.Logger

	state        State
	startedAt    time.Time
	timed        bool
	limit        time.Duration
	deadline     time.Time
	expired      bool
	draft        Answer
	submissionID string
	timer        *countdown

	// ctx scopes forced submissions; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
}

// New prepares an attempt in NotStarted. Only a student may own one.
func New(student rbac.Identity, ex course.Exercise, opts []course.Option, repo Submitter, cb Callbacks, options ...Option) (*Attempt, error) {
	if student.Role != rbac.RoleStudent || student.ID == "" {
		return nil, ErrNotStudent
	}
	if repo == nil {
		return nil, fmt.Errorf("attempt: nil submitter")
	}
	draft, err := newDraft(ex, opts)
	if err != nil {
		return nil, err
	}
	a := &Attempt{
		student:  student,
		exercise: ex,
		options:  append([]course.Option(nil), opts...),
		repo:     repo,
		cb:       cb,
		clock:    SystemClock{},
		interval: time.Second,
		state:    NotStarted,
		draft:    draft,
	}
	for _, o := range options {
		o(a)
	}
	a.limit, a.timed = ex.TimeLimit()
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.log = log.With().
		Str("exercise_id", ex.ID).
		Str("student_id", student.ID).
		Logger()
	return a, nil
}

// Open loads the exercise and its options and builds an attempt for it.
// A missing exercise yields ErrExerciseNotFound.
func Open(ctx context.Context, src ExerciseSource, exerciseID string, student rbac.Identity, repo Submitter, cb Callbacks, options ...Option) (*Attempt, error) {
	if student.Role != rbac.RoleStudent || student.ID == "" {
		return nil, ErrNotStudent
	}
	ex, err := src.GetExercise(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	var opts []course.Option
	if ex.Kind == course.KindMultipleChoice {
		if opts, err = src.ListOptions(ctx, exerciseID); err != nil {
			return nil, err
		}
	}
	return New(student, ex, opts, repo, cb, options...)
}

// ---- transitions ----

// Begin asks for confirmation before the clock starts.
func (a *Attempt) Begin() error {
	a.mu.Lock()
	if a.state != NotStarted {
		defer a.mu.Unlock()
		return transitionErr("begin", a.state)
	}
	var ev events
	a.setStateLocked(Confirming, &ev)
	a.mu.Unlock()
	ev.fire()
	return nil
}

// Cancel backs out of the confirmation step.
func (a *Attempt) Cancel() error {
	a.mu.Lock()
	if a.state != Confirming {
		defer a.mu.Unlock()
		return transitionErr("cancel", a.state)
	}
	var ev events
	a.setStateLocked(NotStarted, &ev)
	a.mu.Unlock()
	ev.fire()
	return nil
}

// Confirm starts the attempt: the start instant is recorded and, for timed
// exercises, the countdown is armed.
func (a *Attempt) Confirm() error {
	a.mu.Lock()
	if a.state != Confirming {
		defer a.mu.Unlock()
		return transitionErr("confirm", a.state)
	}
	var ev events
	a.startedAt = a.clock.Now()
	a.setStateLocked(Running, &ev)
	if a.timed {
		a.deadline = a.startedAt.Add(a.limit)
		cd := newCountdown(a.clock.NewTicker(a.interval))
		a.timer = cd
		go a.run(cd)
		rem := remainingSeconds(a.deadline, a.startedAt)
		ev.add(func() { a.cb.tick(rem) })
	}
	a.log.Info().
		Bool("timed", a.timed).
		Dur("limit", a.limit).
		Msg("attempt started")
	a.mu.Unlock()
	ev.fire()
	return nil
}

// Submit persists the current draft. From Running the draft must be
// non-empty; from TimedOut (a failed forced submission) it is sent as is.
// The first submission wins: a concurrent call gets ErrSubmitInFlight.
func (a *Attempt) Submit(ctx context.Context) (string, error) {
	a.mu.Lock()
	switch a.state {
	case Running:
		if err := validate(a.draft); err != nil {
			a.mu.Unlock()
			return "", err
		}
	case TimedOut:
	case Submitting:
		a.mu.Unlock()
		return "", ErrSubmitInFlight
	case Completed:
		a.mu.Unlock()
		return "", ErrAlreadySubmitted
	default:
		defer a.mu.Unlock()
		return "", transitionErr("submit", a.state)
	}
	var ev events
	req := a.beginSubmitLocked(&ev)
	a.mu.Unlock()
	ev.fire()
	return a.persist(ctx, req)
}

// Close abandons the attempt. The countdown is stopped and nothing is
// written. A completed attempt is left as is. A submission already in
// flight is not cancelled: if it lands, SubmissionID reports it.
func (a *Attempt) Close() {
	a.mu.Lock()
	if a.state.Terminal() {
		a.mu.Unlock()
		return
	}
	var ev events
	a.stopTimerLocked()
	a.cancel()
	a.log.Info().Stringer("from", a.state).Msg("attempt abandoned")
	a.setStateLocked(Abandoned, &ev)
	a.mu.Unlock()
	ev.fire()
}

// ---- answer editing ----

func (a *Attempt) SetText(text string) error {
	return a.edit(func(d Answer) (Answer, error) {
		if _, ok := d.(FreeTextAnswer); !ok {
			return nil, ErrWrongKind
		}
		return FreeTextAnswer{Text: text}, nil
	})
}

func (a *Attempt) SetCode(language, source string) error {
	return a.edit(func(d Answer) (Answer, error) {
		if _, ok := d.(CodeAnswer); !ok {
			return nil, ErrWrongKind
		}
		if language == "" {
			language = DefaultLanguage
		}
		return CodeAnswer{Language: language, Source: source}, nil
	})
}

// SelectOption applies one click on an option.
func (a *Attempt) SelectOption(id string) error {
	return a.edit(func(d Answer) (Answer, error) {
		c, ok := d.(ChoiceAnswer)
		if !ok {
			return nil, ErrWrongKind
		}
		if _, ok := course.FindOption(a.options, id); !ok {
			return nil, &ValidationError{Field: "options", Reason: "unknown option " + id}
		}
		return c.toggle(id), nil
	})
}

func (a *Attempt) edit(fn func(Answer) (Answer, error)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Running {
		return transitionErr("edit the answer", a.state)
	}
	next, err := fn(a.draft)
	if err != nil {
		return err
	}
	a.draft = next
	return nil
}

// ---- accessors ----

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Remaining returns the whole seconds left and whether the attempt is timed.
// Before Confirm it is the full limit.
func (a *Attempt) Remaining() (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.timed {
		return 0, false
	}
	if a.startedAt.IsZero() {
		return int(a.limit / time.Second), true
	}
	if a.expired {
		return 0, true
	}
	return remainingSeconds(a.deadline, a.clock.Now()), true
}

// Draft returns a copy of the current answer.
func (a *Attempt) Draft() Answer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return clone(a.draft)
}

// SubmissionID is empty until a record is stored. That is normally on
// Completed, or on Abandoned when Close raced an in-flight write.
func (a *Attempt) SubmissionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.submissionID
}

func (a *Attempt) Owner() rbac.Identity { return a.student }

func (a *Attempt) Exercise() course.Exercise { return a.exercise }

// Snapshot is a consistent read of the attempt for display.
type Snapshot struct {
	ExerciseID   string      `json:"exercise_id"`
	StudentID    string      `json:"student_id"`
	Kind         course.Kind `json:"kind"`
	State        State       `json:"state"`
	Timed        bool        `json:"timed"`
	Remaining    int         `json:"remaining"`
	StartedAt    time.Time   `json:"started_at,omitempty"`
	Elapsed      int         `json:"elapsed"`
	Draft        Answer      `json:"draft"`
	SubmissionID string      `json:"submission_id,omitempty"`
}

func (a *Attempt) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Snapshot{
		ExerciseID:   a.exercise.ID,
		StudentID:    a.student.ID,
		Kind:         a.exercise.Kind,
		State:        a.state,
		Timed:        a.timed,
		StartedAt:    a.startedAt,
		Draft:        clone(a.draft),
		SubmissionID: a.submissionID,
	}
	if a.timed {
		switch {
		case a.startedAt.IsZero():
			s.Remaining = int(a.limit / time.Second)
		case !a.expired:
			s.Remaining = remainingSeconds(a.deadline, a.clock.Now())
		}
	}
	if !a.startedAt.IsZero() {
		s.Elapsed = a.elapsedLocked()
	}
	return s
}

// ---- internals ----

func (a *Attempt) setStateLocked(to State, ev *events) {
	from := a.state
	if from == to {
		return
	}
	a.state = to
	a.log.Debug().Stringer("from", from).Stringer("to", to).Msg("attempt transition")
	ev.add(func() { a.cb.stateChange(from, to) })
}

// elapsedLocked is the whole seconds since start. A timed-out attempt stops
// at its deadline so retries keep the original duration.
func (a *Attempt) elapsedLocked() int {
	end := a.clock.Now()
	if a.expired {
		end = a.deadline
	}
	d := end.Sub(a.startedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// beginSubmitLocked captures the draft and enters Submitting.
func (a *Attempt) beginSubmitLocked(ev *events) submission.New {
	text, selected := normalize(a.draft)
	req := submission.New{
		ExerciseID:      a.exercise.ID,
		StudentID:       a.student.ID,
		Duration:        a.elapsedLocked(),
		AnswerText:      text,
		SelectedOptions: selected,
	}
	a.setStateLocked(Submitting, ev)
	return req
}

func (a *Attempt) persist(ctx context.Context, req submission.New) (string, error) {
	id, err := a.repo.Create(ctx, req)

	a.mu.Lock()
	if a.state != Submitting {
		// Closed while the write was in flight. Close does not cancel the
		// write, so a stored record is kept and reported, but the attempt
		// stays abandoned and OnSubmitted does not fire.
		if err != nil {
			a.mu.Unlock()
			return "", &PersistenceError{Err: err}
		}
		a.submissionID = id
		a.log.Warn().Str("submission_id", id).Msg("submission stored after the attempt was abandoned")
		a.mu.Unlock()
		return id, nil
	}
	var ev events
	if err != nil {
		perr := &PersistenceError{Err: err}
		back := Running
		if a.expired {
			back = TimedOut
		}
		a.setStateLocked(back, &ev)
		a.log.Warn().Err(err).Stringer("state", back).Msg("submission failed")
		ev.add(func() { a.cb.err(perr) })
		a.mu.Unlock()
		ev.fire()
		return "", perr
	}
	a.submissionID = id
	a.stopTimerLocked()
	a.cancel()
	a.setStateLocked(Completed, &ev)
	a.log.Info().
		Str("submission_id", id).
		Int("duration", req.Duration).
		Msg("attempt submitted")
	ev.add(func() { a.cb.submitted(id) })
	a.mu.Unlock()
	ev.fire()
	return id, nil
}

func (a *Attempt) stopTimerLocked() {
	if a.timer != nil {
		a.timer.stop()
		a.timer = nil
	}
}

// ---- countdown ----

type countdown struct {
	ticker Ticker
	done   chan struct{}
	once   sync.Once
}

func newCountdown(t Ticker) *countdown {
	return &countdown{ticker: t, done: make(chan struct{})}
}

func (c *countdown) stop() {
	c.once.Do(func() {
		c.ticker.Stop()
		close(c.done)
	})
}

func (a *Attempt) run(cd *countdown) {
	for {
		select {
		case <-cd.done:
			return
		case <-cd.ticker.C():
			if !a.tick(cd) {
				return
			}
		}
	}
}

// tick reports the remaining time and, at zero, times the attempt out and
// forces exactly one submission. It returns false once the countdown is over.
func (a *Attempt) tick(cd *countdown) bool {
	a.mu.Lock()
	if a.timer != cd {
		a.mu.Unlock()
		return false
	}
	var ev events
	rem := remainingSeconds(a.deadline, a.clock.Now())
	ev.add(func() { a.cb.tick(rem) })
	if rem > 0 {
		a.mu.Unlock()
		ev.fire()
		return true
	}

	a.expired = true
	a.stopTimerLocked()
	ev.add(func() { a.cb.timeUp() })
	a.log.Info().Stringer("state", a.state).Msg("time is up")

	// A manual submission already in flight wins.
	forced := a.state == Running
	var req submission.New
	if forced {
		a.setStateLocked(TimedOut, &ev)
		req = a.beginSubmitLocked(&ev)
	}
	ctx := a.ctx
	a.mu.Unlock()
	ev.fire()
	if forced {
		_, _ = a.persist(ctx, req)
	}
	return false
}

// remainingSeconds rounds up so the display reaches 0 exactly at the deadline.
func remainingSeconds(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// ---- callback dispatch ----

type events []func()

func (e *events) add(f func()) { *e = append(*e, f) }

func (e events) fire() {
	for _, f := range e {
		f()
	}
}

func (c Callbacks) tick(n int) {
	if c.OnTick != nil {
		c.OnTick(n)
	}
}

func (c Callbacks) timeUp() {
	if c.OnTimeUp != nil {
		c.OnTimeUp()
	}
}

func (c Callbacks) submitted(id string) {
	if c.OnSubmitted != nil {
		c.OnSubmitted(id)
	}
}

func (c Callbacks) err(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

func (c Callbacks) stateChange(from, to State) {
	if c.OnStateChange != nil {
		c.OnStateChange(from, to)
	}
}
