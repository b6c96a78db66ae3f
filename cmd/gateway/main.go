package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	api "github.com/mind-engage/mindengage-clab/internal/api/http"
	auth "github.com/mind-engage/mindengage-clab/internal/auth"
	authmw "github.com/mind-engage/mindengage-clab/internal/auth/middleware"
	"github.com/mind-engage/mindengage-clab/internal/config"
	"github.com/mind-engage/mindengage-clab/internal/course"
	"github.com/mind-engage/mindengage-clab/internal/db"
	"github.com/mind-engage/mindengage-clab/internal/grading"
	"github.com/mind-engage/mindengage-clab/internal/logger"
	"github.com/mind-engage/mindengage-clab/internal/rbac"
	"github.com/mind-engage/mindengage-clab/internal/storage"
	"github.com/mind-engage/mindengage-clab/internal/submission"
	syncx "github.com/mind-engage/mindengage-clab/internal/sync"
)

func main() {
	cfg := config.FromEnv()
	logger.Init(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		log.Fatal().Err(err).Msg("db driver")
	}
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, driver, cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("db open failed")
	}
	defer dbh.Close()

	users := auth.NewDirectory(dbh)
	if created, err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassHash); err != nil {
		log.Fatal().Err(err).Msg("admin bootstrap")
	} else if created {
		log.Info().Str("email", cfg.AdminEmail).Msg("bootstrap admin created")
	}

	catalog := course.NewSQLStore(dbh)
	subs := submission.NewSQLStore(dbh)

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("blob store")
	}

	// --- Auth (local JWT) ---
	authSvc := authmw.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL, users)

	attempts := api.NewAttempts(catalog, subs, cfg.AttemptTickInterval)
	// Signing out abandons whatever the student left running.
	unsub := authSvc.Subscribe(func(c authmw.Change) {
		if c.SignedIn || c.Identity.Role != rbac.RoleStudent {
			return
		}
		if n := attempts.AbandonOnSignOut(c.Identity.ID); n > 0 {
			log.Info().Str("student_id", c.Identity.ID).Int("attempts", n).Msg("abandoned on sign-out")
		}
	})
	defer unsub()

	r := api.NewRouter(api.Deps{
		Auth:        authSvc,
		Users:       users,
		Catalog:     catalog,
		Submissions: subs,
		Grades:      grading.NewSQLStore(dbh),
		Events:      syncx.NewEventRepo(dbh),
		Blobs:       bs,
		Attempts:    attempts,
		DB:          dbh,
		CORSOrigins: cfg.CORSOrigins(),
		LocalAuth:   cfg.EnableLocalAuth,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		attempts.Registry.CloseAll()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("mode", string(cfg.Mode)).
		Str("db", string(driver)).
		Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server")
	}
}
