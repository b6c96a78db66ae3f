package http

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mind-engage/mindengage-clab/internal/attempt"
	auth "github.com/mind-engage/mindengage-clab/internal/auth"
	authmw "github.com/mind-engage/mindengage-clab/internal/auth/middleware"
	"github.com/mind-engage/mindengage-clab/internal/course"
	"github.com/mind-engage/mindengage-clab/internal/grading"
	"github.com/mind-engage/mindengage-clab/internal/rbac"
	"github.com/mind-engage/mindengage-clab/internal/storage"
	"github.com/mind-engage/mindengage-clab/internal/submission"
	syncx "github.com/mind-engage/mindengage-clab/internal/sync"
)

// Deps are the collaborators behind the HTTP surface.
type Deps struct {
	Auth        *authmw.AuthService
	Users       *auth.Directory
	Catalog     course.Store
	Submissions submission.Repository
	Grades      grading.Store
	Events      *syncx.EventRepo
	Blobs       storage.BlobStore
	Attempts    *Attempts
	// DB, when set, refreshes roles from the users table on every request so
	// role changes and deletions apply before tokens expire.
	DB *sql.DB

	CORSOrigins    []string
	LocalAuth      bool
	RequestTimeout time.Duration
}

// NewRouter wires every route. Attempt event streams sit outside the request
// timeout because they stay open for the whole countdown.
func NewRouter(d Deps) chi.Router {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	// Local login
	if d.LocalAuth {
		r.Group(func(pub chi.Router) {
			pub.Use(middleware.Timeout(timeout))
			pub.Post("/auth/login", authmw.LoginHandler(d.Auth))
			pub.Post("/auth/register", RegisterHandler(d.Users, d.Auth))
		})
	}

	// Long-lived streams
	r.Group(func(sr chi.Router) {
		sr.Use(authmw.JWTMiddleware(d.Auth))
		if d.DB != nil {
			sr.Use(authmw.AttachRoleFromDB(d.DB, false))
		}
		sr.With(rbac.Require("attempt:start")).
			Get("/attempts/{attemptID}/events", d.Attempts.Events())
	})

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(middleware.Timeout(timeout))
		pr.Use(authmw.JWTMiddleware(d.Auth))
		if d.DB != nil {
			pr.Use(authmw.AttachRoleFromDB(d.DB, false))
		}

		pr.Post("/auth/logout", authmw.LogoutHandler(d.Auth))
		pr.Get("/me", MeHandler(d.Users))
		pr.Get("/dashboard", DashboardHandler(d.Catalog, d.Submissions, d.Users))

		// Catalog
		view := rbac.Require("exercise:view")
		pr.With(view).Get("/subjects", ListSubjectsHandler(d.Catalog))
		pr.With(view).Get("/subjects/{subjectID}/notions", ListNotionsHandler(d.Catalog))
		pr.With(view).Get("/lessons", ListLessonsHandler(d.Catalog))
		pr.With(view).Get("/lessons/{lessonID}", GetLessonHandler(d.Catalog))
		pr.With(view).Get("/lessons/{lessonID}/exercises", ListLessonExercisesHandler(d.Catalog))
		pr.With(view).Get("/exercises/{exerciseID}", GetExerciseHandler(d.Catalog))

		pr.Group(func(cr chi.Router) {
			cr.Use(rbac.Require("catalog:author"))
			cr.Post("/subjects", CreateSubjectHandler(d.Catalog))
			cr.Put("/subjects/{subjectID}", RenameSubjectHandler(d.Catalog))
			cr.Delete("/subjects/{subjectID}", DeleteSubjectHandler(d.Catalog))
			cr.Post("/notions", CreateNotionHandler(d.Catalog))
			cr.Put("/notions/{notionID}", RenameNotionHandler(d.Catalog))
			cr.Delete("/notions/{notionID}", DeleteNotionHandler(d.Catalog))
		})
		pr.Group(func(lr chi.Router) {
			lr.Use(rbac.Require("lesson:author"))
			lr.Post("/lessons", CreateLessonHandler(d.Catalog))
			lr.Put("/lessons/{lessonID}", UpdateLessonHandler(d.Catalog))
			lr.Delete("/lessons/{lessonID}", DeleteLessonHandler(d.Catalog))
		})
		pr.Group(func(er chi.Router) {
			er.Use(rbac.Require("exercise:author"))
			er.Post("/exercises", CreateExerciseHandler(d.Catalog))
			er.Put("/exercises/{exerciseID}", UpdateExerciseHandler(d.Catalog))
			er.Delete("/exercises/{exerciseID}", DeleteExerciseHandler(d.Catalog))
		})
		if d.Blobs != nil {
			pr.With(view).Route("/lessons/{lessonID}/assets", func(ar chi.Router) {
				MountLessonAssets(ar, d.Blobs, d.Catalog, rbac.Require("lesson:author"))
			})
		}

		// Attempt sessions
		pr.With(rbac.Require("attempt:start")).Post("/exercises/{exerciseID}/attempts", d.Attempts.Start())
		pr.Route("/attempts/{attemptID}", func(ar chi.Router) {
			ar.Use(rbac.Require("attempt:start"))
			ar.Get("/", d.Attempts.Get())
			ar.Post("/confirm", d.Attempts.Confirm())
			ar.Post("/cancel", d.Attempts.Cancel())
			ar.Put("/answer", d.Attempts.Answer())
			ar.With(rbac.Require("attempt:submit")).Post("/submit", d.Attempts.Submit())
			ar.Delete("/", d.Attempts.Abandon())
		})

		// Submissions and grades
		subs := &Submissions{Records: d.Submissions, Catalog: d.Catalog, Grades: d.Grades, Suggester: grading.NewSuggester()}
		own := rbac.RequireAny("submission:view-own", "submission:view-all")
		pr.With(own).Get("/exercises/{exerciseID}/submissions", subs.ListForExercise())
		pr.With(own).Get("/students/{studentID}/exercises/{exerciseID}/submissions", subs.ListForStudent())
		pr.With(own).Get("/submissions/{submissionID}", subs.Review())
		pr.With(own).Get("/submissions/{submissionID}/grade", subs.GetGrade())
		pr.With(rbac.Require("grade:write")).Put("/submissions/{submissionID}/grade", subs.PutGrade())

		// Users
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", ChangePasswordHandler(d.Users))
		pr.With(rbac.Require("users:list")).Get("/users", ListUsersHandler(d.Users))
		pr.With(rbac.Require("users:manage")).Delete("/users/{userID}", DeleteUserHandler(d.Users))
		pr.With(rbac.Require("users:role")).Put("/users/{userID}/role", AdminUpdateUserRoleHandler(d.Users))
		pr.With(rbac.Require("users:role")).Post("/users/bulk", BulkRegisterUsersHandler(d.Users))

		// Admin: compliance & audit
		pr.Route("/admin", func(ad chi.Router) {
			ad.Use(rbac.Require("admin:audit"))
			ad.Get("/users/{userID}/export", HandleAdminPIIExport(d.Users, d.Submissions))
			if d.Events != nil {
				ad.Get("/events", HandleAdminEvents(d.Events))
			}
		})
	})

	return r
}

// NewAttempts builds the attempt session handlers over a fresh registry and hub.
func NewAttempts(exercises attempt.ExerciseSource, subs attempt.Submitter, tick time.Duration) *Attempts {
	return &Attempts{
		Registry:     attempt.NewRegistry(),
		Exercises:    exercises,
		Submissions:  subs,
		Hub:          NewHub(),
		TickInterval: tick,
	}
}
