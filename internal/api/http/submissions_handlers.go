package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-clab/internal/attempt"
	"github.com/mind-engage/mindengage-clab/internal/course"
	"github.com/mind-engage/mindengage-clab/internal/grading"
	"github.com/mind-engage/mindengage-clab/internal/rbac"
	"github.com/mind-engage/mindengage-clab/internal/submission"
)

// Submissions serves submission listings, the review page and grades.
type Submissions struct {
	Records   submission.Repository
	Catalog   course.Store
	Grades    grading.Store
	Suggester *grading.Suggester
}

// GET /exercises/{exerciseID}/submissions?latest=1&student_id=
// Staff see every student's records; students only ever see their own.
func (h *Submissions) ListForExercise() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := rbac.IdentityFromContext(r.Context())
		exerciseID := chi.URLParam(r, "exerciseID")
		if _, err := h.Catalog.GetExercise(r.Context(), exerciseID); err != nil {
			writeErr(w, r, err)
			return
		}

		var (
			list []submission.Record
			err  error
		)
		if rbac.Can(id, "submission:view-all") {
			list, err = h.Records.ListByExercise(r.Context(), exerciseID)
		} else {
			list, err = h.Records.ListByStudentAndExercise(r.Context(), id.ID, exerciseID)
		}
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if sid := strings.TrimSpace(r.URL.Query().Get("student_id")); sid != "" {
			list = submission.FilterByStudent(list, sid)
		}
		if r.URL.Query().Get("latest") == "1" {
			list = submission.LatestPerStudent(list)
		}
		respondJSON(w, http.StatusOK, submission.SortNewestFirst(list))
	}
}

// GET /students/{studentID}/exercises/{exerciseID}/submissions
func (h *Submissions) ListForStudent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := rbac.IdentityFromContext(r.Context())
		studentID := strings.TrimSpace(chi.URLParam(r, "studentID"))
		if studentID != id.ID && !rbac.Can(id, "submission:view-all") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		list, err := h.Records.ListByStudentAndExercise(r.Context(), studentID, chi.URLParam(r, "exerciseID"))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, submission.SortNewestFirst(list))
	}
}

type reviewOut struct {
	Submission submission.Record   `json:"submission"`
	View       attempt.ReviewView  `json:"view"`
	Grade      *grading.Grade      `json:"grade,omitempty"`
	Suggestion *grading.Suggestion `json:"suggestion,omitempty"`
}

// GET /submissions/{submissionID}
func (h *Submissions) Review() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := rbac.IdentityFromContext(r.Context())
		rec, ok := h.visible(w, r, id)
		if !ok {
			return
		}
		ex, err := h.Catalog.GetExercise(r.Context(), rec.ExerciseID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		var opts []course.Option
		if ex.Kind == course.KindMultipleChoice {
			if opts, err = h.Catalog.ListOptions(r.Context(), ex.ID); err != nil {
				writeErr(w, r, err)
				return
			}
		}

		out := reviewOut{Submission: rec, View: attempt.ReviewSubmission(ex, opts, rec)}
		g, err := h.Grades.GetBySubmission(r.Context(), rec.ID)
		switch {
		case err == nil:
			out.Grade = &g
		case !errors.Is(err, grading.ErrNotFound):
			writeErr(w, r, err)
			return
		}
		if rbac.Can(id, "grade:write") && h.Suggester != nil {
			s := h.Suggester.Suggest(ex, opts, rec)
			out.Suggestion = &s
		}
		respondJSON(w, http.StatusOK, out)
	}
}

// GET /submissions/{submissionID}/grade
func (h *Submissions) GetGrade() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := h.visible(w, r, rbac.IdentityFromContext(r.Context()))
		if !ok {
			return
		}
		g, err := h.Grades.GetBySubmission(r.Context(), rec.ID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, g)
	}
}

type gradeReq struct {
	Grade    int    `json:"grade"`
	Feedback string `json:"feedback"`
}

// PUT /submissions/{submissionID}/grade
func (h *Submissions) PutGrade() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := rbac.IdentityFromContext(r.Context())
		rec, err := h.Records.GetByID(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		var req gradeReq
		if !decodeJSON(w, r, &req) {
			return
		}
		g, err := h.Grades.Save(r.Context(), grading.Grade{
			SubmissionID: rec.ID,
			TeacherID:    id.ID,
			Value:        req.Grade,
			Feedback:     req.Feedback,
		})
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, g)
	}
}

// visible loads the submission named in the URL if the caller may see it.
// Other students' records read as not found.
func (h *Submissions) visible(w http.ResponseWriter, r *http.Request, id rbac.Identity) (submission.Record, bool) {
	rec, err := h.Records.GetByID(r.Context(), chi.URLParam(r, "submissionID"))
	if err == nil && rec.StudentID != id.ID && !rbac.Can(id, "submission:view-all") {
		err = submission.ErrNotFound
	}
	if err != nil {
		writeErr(w, r, err)
		return submission.Record{}, false
	}
	return rec, true
}
