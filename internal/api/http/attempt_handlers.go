package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-clab/internal/attempt"
	"github.com/mind-engage/mindengage-clab/internal/course"
	"github.com/mind-engage/mindengage-clab/internal/rbac"
)

// Attempts serves the attempt session endpoints. Each session is one live
// attempt.Attempt kept in the registry and watched through the hub.
type Attempts struct {
	Registry    *attempt.Registry
	Exercises   attempt.ExerciseSource
	Submissions attempt.Submitter
	Hub         *Hub
	// Clock and TickInterval are optional overrides for tests.
	Clock        attempt.Clock
	TickInterval time.Duration
	KeepAlive    time.Duration
}

type attemptView struct {
	SessionID string             `json:"session_id"`
	Attempt   attempt.Snapshot   `json:"attempt"`
	View      attempt.ReviewView `json:"view"`
}

func (h *Attempts) render(sid string, a *attempt.Attempt, viewer rbac.Identity) attemptView {
	return attemptView{SessionID: sid, Attempt: a.Snapshot(), View: a.View(viewer)}
}

// POST /exercises/{exerciseID}/attempts
func (h *Attempts) Start() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := rbac.IdentityFromContext(r.Context())
		exerciseID := chi.URLParam(r, "exerciseID")

		var sid string
		cb := attempt.Callbacks{
			OnTick: func(n int) {
				h.Hub.Publish(sid, Event{Type: "tick", Data: map[string]int{"remaining": n}})
			},
			OnTimeUp: func() {
				h.Hub.Publish(sid, Event{Type: "time_up"})
			},
			OnStateChange: func(from, to attempt.State) {
				h.Hub.Publish(sid, Event{Type: "state", Data: map[string]string{"from": from.String(), "to": to.String()}})
				if to == attempt.Abandoned {
					h.Registry.Forget(sid)
					h.Hub.Close(sid)
				}
			},
			OnError: func(err error) {
				h.Hub.Publish(sid, Event{Type: "error", Data: map[string]any{"message": err.Error(), "retryable": true}})
			},
			OnSubmitted: func(submissionID string) {
				h.Hub.Publish(sid, Event{Type: "submitted", Data: map[string]string{"submission_id": submissionID}})
				h.Registry.Forget(sid)
				h.Hub.Close(sid)
			},
		}
		var opts []attempt.Option
		if h.Clock != nil {
			opts = append(opts, attempt.WithClock(h.Clock))
		}
		if h.TickInterval > 0 {
			opts = append(opts, attempt.WithTickInterval(h.TickInterval))
		}

		a, err := attempt.Open(r.Context(), h.Exercises, exerciseID, id, h.Submissions, cb, opts...)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		sid = h.Registry.Add(a)
		h.Hub.Open(sid)
		if err := a.Begin(); err != nil {
			h.Registry.Remove(sid)
			h.Hub.Close(sid)
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, h.render(sid, a, id))
	}
}

func (h *Attempts) lookup(w http.ResponseWriter, r *http.Request) (string, *attempt.Attempt, bool) {
	sid := chi.URLParam(r, "attemptID")
	a, err := h.Registry.Get(sid, rbac.SubjectFromContext(r.Context()))
	if err != nil {
		writeErr(w, r, err)
		return "", nil, false
	}
	return sid, a, true
}

// GET /attempts/{attemptID}
func (h *Attempts) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, a, ok := h.lookup(w, r)
		if !ok {
			return
		}
		respondJSON(w, http.StatusOK, h.render(sid, a, rbac.IdentityFromContext(r.Context())))
	}
}

// POST /attempts/{attemptID}/confirm
func (h *Attempts) Confirm() http.HandlerFunc {
	return h.transition(func(a *attempt.Attempt) error { return a.Confirm() })
}

// POST /attempts/{attemptID}/cancel
func (h *Attempts) Cancel() http.HandlerFunc {
	return h.transition(func(a *attempt.Attempt) error { return a.Cancel() })
}

func (h *Attempts) transition(fn func(*attempt.Attempt) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, a, ok := h.lookup(w, r)
		if !ok {
			return
		}
		if err := fn(a); err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, h.render(sid, a, rbac.IdentityFromContext(r.Context())))
	}
}

type answerReq struct {
	Text     *string `json:"text,omitempty"`
	Language string  `json:"language,omitempty"`
	Code     *string `json:"code,omitempty"`
	OptionID string  `json:"option_id,omitempty"`
}

// PUT /attempts/{attemptID}/answer
func (h *Attempts) Answer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, a, ok := h.lookup(w, r)
		if !ok {
			return
		}
		var req answerReq
		if !decodeJSON(w, r, &req) {
			return
		}
		var err error
		switch a.Exercise().Kind {
		case course.KindFreeText:
			if req.Text == nil {
				http.Error(w, "text required", http.StatusBadRequest)
				return
			}
			err = a.SetText(*req.Text)
		case course.KindCode:
			if req.Code == nil {
				http.Error(w, "code required", http.StatusBadRequest)
				return
			}
			err = a.SetCode(req.Language, *req.Code)
		case course.KindMultipleChoice:
			if req.OptionID == "" {
				http.Error(w, "option_id required", http.StatusBadRequest)
				return
			}
			err = a.SelectOption(req.OptionID)
		}
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, h.render(sid, a, rbac.IdentityFromContext(r.Context())))
	}
}

// POST /attempts/{attemptID}/submit
func (h *Attempts) Submit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, a, ok := h.lookup(w, r)
		if !ok {
			return
		}
		id, err := a.Submit(r.Context())
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]string{"submission_id": id})
	}
}

// DELETE /attempts/{attemptID}
func (h *Attempts) Abandon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, _, ok := h.lookup(w, r)
		if !ok {
			return
		}
		h.Registry.Remove(sid)
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /attempts/{attemptID}/events
// A session that finishes between lookup and subscribe yields a stream that
// ends immediately.
func (h *Attempts) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, _, ok := h.lookup(w, r)
		if !ok {
			return
		}
		events, unsubscribe := h.Hub.Subscribe(sid)
		defer unsubscribe()
		keep := h.KeepAlive
		if keep <= 0 {
			keep = 15 * time.Second
		}
		serveSSE(w, r, events, keep)
	}
}

// AbandonOnSignOut closes a student's live attempts when they sign out.
// Their event streams end with the abandon transition.
func (h *Attempts) AbandonOnSignOut(studentID string) int {
	return h.Registry.AbandonAllFor(studentID)
}
