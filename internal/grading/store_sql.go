package grading

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-clab/internal/db"
	syncx "github.com/mind-engage/mindengage-clab/internal/sync"
)

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(h *sql.DB) *SQLStore { return &SQLStore{db: h, now: time.Now} }

func (s *SQLStore) Save(ctx context.Context, g Grade) (Grade, error) {
	g.Feedback = strings.TrimSpace(g.Feedback)
	if err := Validate(g); err != nil {
		return Grade{}, err
	}
	g.GradedAt = s.now().UTC()

	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx, `SELECT id FROM grades WHERE submission_id=$1`, g.SubmissionID).Scan(&existing)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			g.ID = uuid.NewString()
			_, err = tx.ExecContext(ctx,
				`INSERT INTO grades (id, submission_id, teacher_id, grade, feedback, graded_at) VALUES ($1,$2,$3,$4,$5,$6)`,
				g.ID, g.SubmissionID, g.TeacherID, g.Value, g.Feedback, g.GradedAt.UnixMilli())
		case err == nil:
			g.ID = existing
			_, err = tx.ExecContext(ctx,
				`UPDATE grades SET teacher_id=$1, grade=$2, feedback=$3, graded_at=$4 WHERE id=$5`,
				g.TeacherID, g.Value, g.Feedback, g.GradedAt.UnixMilli(), g.ID)
		}
		if err != nil {
			return err
		}
		return syncx.AppendTx(ctx, tx, syncx.TypeGradeSaved, g.SubmissionID, g)
	})
	if err != nil {
		return Grade{}, err
	}
	return g, nil
}

func (s *SQLStore) GetBySubmission(ctx context.Context, submissionID string) (Grade, error) {
	var (
		g  Grade
		ts int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, submission_id, teacher_id, grade, feedback, graded_at FROM grades WHERE submission_id=$1`,
		submissionID).Scan(&g.ID, &g.SubmissionID, &g.TeacherID, &g.Value, &g.Feedback, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return Grade{}, ErrNotFound
	}
	if err != nil {
		return Grade{}, err
	}
	g.GradedAt = time.UnixMilli(ts).UTC()
	return g, nil
}
