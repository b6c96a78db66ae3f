package http

import (
	"net/http"

	auth "github.com/mind-engage/mindengage-clab/internal/auth"
	"github.com/mind-engage/mindengage-clab/internal/course"
	"github.com/mind-engage/mindengage-clab/internal/rbac"
	"github.com/mind-engage/mindengage-clab/internal/submission"
)

const recentItems = 5

type dashboard struct {
	Role              string              `json:"role"`
	TotalLessons      int                 `json:"total_lessons"`
	TotalExercises    int                 `json:"total_exercises"`
	TotalSubmissions  int                 `json:"total_submissions"`
	TotalStudents     int                 `json:"total_students"`
	ActiveStudents    int                 `json:"active_students,omitempty"`
	RecentLessons     []course.Lesson     `json:"recent_lessons"`
	RecentSubmissions []submission.Record `json:"recent_submissions"`
}

// GET /dashboard
// Students get their own submission history; staff get platform-wide counts.
func DashboardHandler(st course.Store, records submission.Repository, dir *auth.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := rbac.IdentityFromContext(ctx)

		lessons, err := st.ListLessons(ctx, "")
		if err != nil {
			writeErr(w, r, err)
			return
		}
		out := dashboard{Role: id.Role, TotalLessons: len(lessons), RecentLessons: head(lessons, recentItems)}

		var subs []submission.Record
		if id.IsStaff() {
			for _, l := range lessons {
				exercises, err := st.ListExercises(ctx, l.ID)
				if err != nil {
					writeErr(w, r, err)
					return
				}
				out.TotalExercises += len(exercises)
				for _, e := range exercises {
					rs, err := records.ListByExercise(ctx, e.ID)
					if err != nil {
						writeErr(w, r, err)
						return
					}
					subs = append(subs, rs...)
				}
			}
			students, err := dir.ListByRole(ctx, rbac.RoleStudent)
			if err != nil {
				writeErr(w, r, err)
				return
			}
			out.TotalStudents = len(students)
			out.ActiveStudents = len(submission.GroupByStudent(subs))
		} else {
			if subs, err = records.ListByStudent(ctx, id.ID); err != nil {
				writeErr(w, r, err)
				return
			}
		}
		out.TotalSubmissions = len(subs)
		out.RecentSubmissions = head(submission.SortNewestFirst(subs), recentItems)
		respondJSON(w, http.StatusOK, out)
	}
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	if s == nil {
		return []T{}
	}
	return s
}
