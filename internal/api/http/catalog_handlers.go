package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-clab/internal/course"
	"github.com/mind-engage/mindengage-clab/internal/rbac"
)

type nameReq struct {
	Name string `json:"name"`
}

// ---- subjects ----

// GET /subjects
func ListSubjectsHandler(st course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjects, err := st.ListSubjects(r.Context())
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, subjects)
	}
}

// POST /subjects
func CreateSubjectHandler(st course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nameReq
		if !decodeJSON(w, r, &req) {
			return
		}
		id, err := st.CreateSubject(r.Context(), req.Name)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, course.Subject{ID: id, Name: strings.TrimSpace(req.Name)})
	}
}

// PUT /subjects/{subjectID}
func RenameSubjectHandler(st course.Store) http.HandlerFunc {
	return rename(func(r *http.Request, name string) error {
		return st.RenameSubject(r.Context(), chi.URLParam(r, "subjectID"), name)
	})
}

// DELETE /subjects/{subjectID}
func DeleteSubjectHandler(st course.Store) http.HandlerFunc {
	return remove(func(r *http.Request) error {
		return st.DeleteSubject(r.Context(), chi.URLParam(r, "subjectID"))
	})
}

// ---- notions ----

// GET /subjects/{subjectID}/notions
func ListNotionsHandler(st course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notions, err := st.ListNotions(r.Context(), chi.URLParam(r, "subjectID"))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, notions)
	}
}

// POST /notions  { "subject_id": "...", "name": "..." }
func CreateNotionHandler(st course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SubjectID string `json:"subject_id"`
			Name      string `json:"name"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		id, err := st.CreateNotion(r.Context(), req.SubjectID, req.Name)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]string{"id": id})
	}
}

// PUT /notions/{notionID}
func RenameNotionHandler(st course.Store) http.HandlerFunc {
	return rename(func(r *http.Request, name string) error {
		return st.RenameNotion(r.Context(), chi.URLParam(r, "notionID"), name)
	})
}

// DELETE /notions/{notionID}
func DeleteNotionHandler(st course.Store) http.HandlerFunc {
	return remove(func(r *http.Request) error {
		return st.DeleteNotion(r.Context(), chi.URLParam(r, "notionID"))
	})
}

// ---- lessons ----

// GET /lessons?subject_id=
func ListLessonsHandler(st course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lessons, err := st.ListLessons(r.Context(), strings.TrimSpace(r.URL.Query().Get("subject_id")))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, lessons)
	}
}

// POST /lessons
func CreateLessonHandler(st course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var l course.Lesson
		if !decodeJSON(w, r, &l) {
			return
		}
		l.CreatedBy = rbac.SubjectFromContext(r.Context())
		id, err := st.CreateLesson(r.Context(), l)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		created, err := st.GetLesson(r.Context(), id)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, created)
	}
}

// GET /lessons/{lessonID}
// The lesson comes back with its exercises so a lesson page is one request.
func GetLessonHandler(st course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "lessonID")
		l, err := st.GetLesson(r.Context(), id)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		exercises, err := st.ListExercises(r.Context(), id)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"lesson": l, "exercises": exercises})
	}
}

// PUT /lessons/{lessonID}
func UpdateLessonHandler(st course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p course.LessonPatch
		if !decodeJSON(w, r, &p) {
			return
		}
		if err := st.UpdateLesson(r.Context(), chi.URLParam(r, "lessonID"), p); err != nil {
			writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DELETE /lessons/{lessonID}
func DeleteLessonHandler(st course.Store) http.HandlerFunc {
	return remove(func(r *http.Request) error {
		return st.DeleteLesson(r.Context(), chi.URLParam(r, "lessonID"))
	})
}

// GET /lessons/{lessonID}/exercises
func ListLessonExercisesHandler(st course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "lessonID")
		if _, err := st.GetLesson(r.Context(), id); err != nil {
			writeErr(w, r, err)
			return
		}
		exercises, err := st.ListExercises(r.Context(), id)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, exercises)
	}
}

// ---- exercises ----

type optionIn struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

type exerciseReq struct {
	LessonID         string     `json:"lesson_id"`
	Kind             string     `json:"kind"`
	Title            string     `json:"title"`
	Prompt           string     `json:"prompt"`
	TimeLimitMinutes *int       `json:"time_limit_min"`
	Options          []optionIn `json:"options"`
}

func (req exerciseReq) toModel() (course.Exercise, []course.Option, error) {
	kind, err := course.ParseKind(req.Kind)
	if err != nil {
		return course.Exercise{}, nil, &course.ValidationError{Field: "kind", Reason: err.Error()}
	}
	e := course.Exercise{
		LessonID:         req.LessonID,
		Kind:             kind,
		Title:            req.Title,
		Prompt:           req.Prompt,
		TimeLimitMinutes: req.TimeLimitMinutes,
	}
	opts := make([]course.Option, 0, len(req.Options))
	for _, o := range req.Options {
		opts = append(opts, course.Option{Text: o.Text, Correct: o.Correct})
	}
	return e, opts, nil
}

// optionOut hides the correctness flag from students.
type optionOut struct {
	ID      string `json:"id"`
	Text    string `json:"option_text"`
	Correct *bool  `json:"is_correct,omitempty"`
}

type exerciseOut struct {
	course.Exercise
	MultiSelect bool        `json:"multi_select"`
	Options     []optionOut `json:"options,omitempty"`
}

func exerciseView(e course.Exercise, opts []course.Option, withAnswers bool) exerciseOut {
	out := exerciseOut{Exercise: e, MultiSelect: course.IsMultiSelect(opts)}
	for _, o := range opts {
		v := optionOut{ID: o.ID, Text: o.Text}
		if withAnswers {
			c := o.Correct
			v.Correct = &c
		}
		out.Options = append(out.Options, v)
	}
	return out
}

// POST /exercises
func CreateExerciseHandler(st course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exerciseReq
		if !decodeJSON(w, r, &req) {
			return
		}
		e, opts, err := req.toModel()
		if err != nil {
			writeErr(w, r, err)
			return
		}
		id, err := st.CreateExercise(r.Context(), e, opts)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]string{"id": id})
	}
}

// GET /exercises/{exerciseID}
func GetExerciseHandler(st course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "exerciseID")
		e, err := st.GetExercise(r.Context(), id)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		var opts []course.Option
		if e.Kind == course.KindMultipleChoice {
			if opts, err = st.ListOptions(r.Context(), id); err != nil {
				writeErr(w, r, err)
				return
			}
		}
		staff := rbac.IdentityFromContext(r.Context()).IsStaff()
		respondJSON(w, http.StatusOK, exerciseView(e, opts, staff))
	}
}

// PUT /exercises/{exerciseID}
func UpdateExerciseHandler(st course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exerciseReq
		if !decodeJSON(w, r, &req) {
			return
		}
		e, opts, err := req.toModel()
		if err != nil {
			writeErr(w, r, err)
			return
		}
		e.ID = chi.URLParam(r, "exerciseID")
		if e.LessonID == "" {
			cur, err := st.GetExercise(r.Context(), e.ID)
			if err != nil {
				writeErr(w, r, err)
				return
			}
			e.LessonID = cur.LessonID
		}
		if err := st.UpdateExercise(r.Context(), e, opts); err != nil {
			writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DELETE /exercises/{exerciseID}
func DeleteExerciseHandler(st course.Store) http.HandlerFunc {
	return remove(func(r *http.Request) error {
		return st.DeleteExercise(r.Context(), chi.URLParam(r, "exerciseID"))
	})
}

func rename(fn func(r *http.Request, name string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nameReq
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := fn(r, req.Name); err != nil {
			writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func remove(fn func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r); err != nil {
			writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
