package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/alecthomas/kingpin.v2"

	auth "github.com/mind-engage/mindengage-clab/internal/auth"
	"github.com/mind-engage/mindengage-clab/internal/config"
	"github.com/mind-engage/mindengage-clab/internal/course"
	"github.com/mind-engage/mindengage-clab/internal/db"
	"github.com/mind-engage/mindengage-clab/internal/logger"
	"github.com/mind-engage/mindengage-clab/internal/submission"
	syncx "github.com/mind-engage/mindengage-clab/internal/sync"
)

var (
	dbDriver = kingpin.Flag("db-driver", "sqlite or postgres (default: DB_DRIVER)").String()
	dbDSN    = kingpin.Flag("db-dsn", "Connection string (default: DB_DSN)").String()

	migrateCmd = kingpin.Command("migrate", "Create or update the database schema")

	userCmd      = kingpin.Command("user", "Manage accounts")
	userAddCmd   = userCmd.Command("add", "Register an account")
	userEmail    = userAddCmd.Flag("email", "Login email").Required().String()
	userPassword = userAddCmd.Flag("password", "Initial password").Required().String()
	userName     = userAddCmd.Flag("name", "Display name").String()
	userRole     = userAddCmd.Flag("role", "student, teacher or admin").Default("student").Enum("student", "teacher", "admin")

	importCmd    = kingpin.Command("import", "Import a YAML lesson bundle")
	importFile   = importCmd.Arg("bundle", "Path to the bundle file").Required().ExistingFile()
	importAuthor = importCmd.Flag("author", "User id recorded as the lesson author").Default("clabctl").String()

	subsCmd      = kingpin.Command("submissions", "List submissions for an exercise")
	subsExercise = subsCmd.Arg("exerciseID", "Exercise id").Required().String()
	subsLatest   = subsCmd.Flag("latest", "Only the most recent submission per student").Bool()

	eventsCmd   = kingpin.Command("events", "Print the event log")
	eventsAfter = eventsCmd.Flag("after", "Only events after this sequence number").Default("0").Int64()
	eventsLimit = eventsCmd.Flag("limit", "Maximum number of events").Default("100").Int()

	hashCmd      = kingpin.Command("hash-password", "Print a bcrypt hash, e.g. for ADMIN_PASS_HASH")
	hashPassword = hashCmd.Arg("password", "Password to hash").Required().String()
)

func main() {
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version("0.1")
	kingpin.CommandLine.Help = "mindengage-clab administration"
	cmd := kingpin.Parse()

	cfg := config.FromEnv()
	logger.Init(cfg.LogLevel, true)
	if *dbDriver == "" {
		*dbDriver = cfg.DBDriver
	}
	if *dbDSN == "" {
		*dbDSN = cfg.DBDSN
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var err error
	switch cmd {
	case hashCmd.FullCommand():
		err = runHash(*hashPassword)
	case migrateCmd.FullCommand():
		err = withDB(ctx, func(*sql.DB) error {
			log.Info().Str("driver", *dbDriver).Msg("schema is up to date")
			return nil
		})
	case userAddCmd.FullCommand():
		err = withDB(ctx, func(h *sql.DB) error { return runUserAdd(ctx, h) })
	case importCmd.FullCommand():
		err = withDB(ctx, func(h *sql.DB) error { return runImport(ctx, h) })
	case subsCmd.FullCommand():
		err = withDB(ctx, func(h *sql.DB) error { return runSubmissions(ctx, h) })
	case eventsCmd.FullCommand():
		err = withDB(ctx, func(h *sql.DB) error { return runEvents(ctx, h) })
	default:
		log.Fatal().Str("command", cmd).Msg("unknown command")
	}
	if err != nil {
		log.Fatal().Err(err).Msgf("%s failed", cmd)
	}
}

// withDB opens the database, which also ensures the schema.
func withDB(ctx context.Context, fn func(*sql.DB) error) error {
	driver, err := db.ParseDriver(*dbDriver)
	if err != nil {
		return err
	}
	h, err := db.Open(ctx, driver, *dbDSN)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer h.Close()
	return fn(h)
}

func runHash(pw string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), 12)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	fmt.Println(string(hash))
	return nil
}

func runUserAdd(ctx context.Context, h *sql.DB) error {
	u, err := auth.NewDirectory(h).Register(ctx, *userName, *userEmail, *userPassword, *userRole)
	if err != nil {
		return errors.Wrapf(err, "register %s", *userEmail)
	}
	log.Info().Str("id", u.ID).Str("email", u.Email).Str("role", u.Role).Msg("user created")
	return nil
}

func runImport(ctx context.Context, h *sql.DB) error {
	f, err := os.Open(*importFile)
	if err != nil {
		return errors.Wrap(err, "open bundle")
	}
	defer f.Close()
	b, err := course.LoadBundle(f)
	if err != nil {
		return errors.Wrapf(err, "load %s", *importFile)
	}
	res, err := course.ImportBundle(ctx, course.NewSQLStore(h), b, *importAuthor)
	if err != nil {
		return errors.Wrapf(err, "import %s", *importFile)
	}
	log.Info().
		Str("lesson_id", res.LessonID).
		Int("exercises", len(res.ExerciseIDs)).
		Int("notions", len(res.NotionIDs)).
		Msgf("imported %q", b.Lesson)
	return nil
}

func runSubmissions(ctx context.Context, h *sql.DB) error {
	list, err := submission.NewSQLStore(h).ListByExercise(ctx, *subsExercise)
	if err != nil {
		return errors.Wrap(err, "list submissions")
	}
	if *subsLatest {
		list = submission.LatestPerStudent(list)
	}
	return printJSON(submission.SortNewestFirst(list))
}

func runEvents(ctx context.Context, h *sql.DB) error {
	list, err := syncx.NewEventRepo(h).Since(ctx, *eventsAfter, *eventsLimit)
	if err != nil {
		return errors.Wrap(err, "read events")
	}
	return printJSON(list)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
