package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-clab/internal/db"
	syncx "github.com/mind-engage/mindengage-clab/internal/sync"
)

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(h *sql.DB) *SQLStore {
	return &SQLStore{db: h, now: time.Now}
}

// Create inserts the record and its SubmissionCreated event in one transaction.
func (s *SQLStore) Create(ctx context.Context, n New) (string, error) {
	if err := n.validate(); err != nil {
		return "", err
	}
	var selected sql.NullString
	if n.SelectedOptions != nil {
		buf, err := json.Marshal(n.SelectedOptions)
		if err != nil {
			return "", err
		}
		selected = sql.NullString{String: string(buf), Valid: true}
	}
	id := uuid.NewString()
	at := s.now()
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO submissions (id,exercise_id,student_id,submitted_at,duration_sec,answer_text,selected_options)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			id, n.ExerciseID, n.StudentID, at.UnixMilli(), n.Duration, n.AnswerText, selected); err != nil {
			return err
		}
		return syncx.AppendTx(ctx, tx, syncx.TypeSubmissionCreated, id, map[string]any{
			"exercise_id": n.ExerciseID,
			"student_id":  n.StudentID,
			"duration":    n.Duration,
		})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

const selectCols = `SELECT id,exercise_id,student_id,submitted_at,duration_sec,answer_text,selected_options FROM submissions`

func (s *SQLStore) GetByID(ctx context.Context, id string) (Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx, selectCols+` WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return r, err
}

func (s *SQLStore) ListByExercise(ctx context.Context, exerciseID string) ([]Record, error) {
	return s.list(ctx, selectCols+` WHERE exercise_id=$1`, exerciseID)
}

func (s *SQLStore) ListByStudentAndExercise(ctx context.Context, studentID, exerciseID string) ([]Record, error) {
	return s.list(ctx, selectCols+` WHERE student_id=$1 AND exercise_id=$2`, studentID, exerciseID)
}

func (s *SQLStore) ListByStudent(ctx context.Context, studentID string) ([]Record, error) {
	return s.list(ctx, selectCols+` WHERE student_id=$1`, studentID)
}

// list returns rows newest first; ordering is done in Go so every backend
// sorts the same way.
func (s *SQLStore) list(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return SortNewestFirst(out), nil
}

type scanner interface{ Scan(dest ...any) error }

func scanRecord(sc scanner) (Record, error) {
	var r Record
	var at int64
	var selected sql.NullString
	if err := sc.Scan(&r.ID, &r.ExerciseID, &r.StudentID, &at, &r.Duration, &r.AnswerText, &selected); err != nil {
		return Record{}, err
	}
	r.SubmittedAt = time.UnixMilli(at)
	if selected.Valid {
		r.SelectedOptions = []string{}
		if err := json.Unmarshal([]byte(selected.String), &r.SelectedOptions); err != nil {
			return Record{}, err
		}
	}
	return r, nil
}
