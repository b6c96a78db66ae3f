package course

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-clab/internal/db"
)

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(h *sql.DB) *SQLStore {
	return &SQLStore{db: h, now: time.Now}
}

// ---- subjects ----

func (s *SQLStore) CreateSubject(ctx context.Context, name string) (string, error) {
	if err := validateName("name", name); err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO subjects (id,name) VALUES ($1,$2)`, id, strings.TrimSpace(name))
	return id, err
}

func (s *SQLStore) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name FROM subjects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Subject{}
	for rows.Next() {
		var sub Subject
		if err := rows.Scan(&sub.ID, &sub.Name); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLStore) RenameSubject(ctx context.Context, id, name string) error {
	if err := validateName("name", name); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE subjects SET name=$1 WHERE id=$2`, strings.TrimSpace(name), id)
	return affected(res, err, ErrSubjectNotFound)
}

func (s *SQLStore) DeleteSubject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subjects WHERE id=$1`, id)
	return affected(res, err, ErrSubjectNotFound)
}

// ---- notions ----

func (s *SQLStore) CreateNotion(ctx context.Context, subjectID, name string) (string, error) {
	if err := validateName("name", name); err != nil {
		return "", err
	}
	if err := validateName("subject_id", subjectID); err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notions (id,subject_id,name,created_at) VALUES ($1,$2,$3,$4)`,
		id, subjectID, strings.TrimSpace(name), s.now().UnixMilli())
	return id, err
}

func (s *SQLStore) ListNotions(ctx context.Context, subjectID string) ([]Notion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,subject_id,name,created_at FROM notions WHERE subject_id=$1 ORDER BY name`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Notion{}
	for rows.Next() {
		var n Notion
		var created int64
		if err := rows.Scan(&n.ID, &n.SubjectID, &n.Name, &created); err != nil {
			return nil, err
		}
		n.CreatedAt = time.UnixMilli(created)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLStore) RenameNotion(ctx context.Context, id, name string) error {
	if err := validateName("name", name); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE notions SET name=$1 WHERE id=$2`, strings.TrimSpace(name), id)
	return affected(res, err, ErrNotionNotFound)
}

func (s *SQLStore) DeleteNotion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notions WHERE id=$1`, id)
	return affected(res, err, ErrNotionNotFound)
}

// ---- lessons ----

func (s *SQLStore) CreateLesson(ctx context.Context, l Lesson) (string, error) {
	if err := validateName("title", l.Title); err != nil {
		return "", err
	}
	if err := validateName("subject_id", l.SubjectID); err != nil {
		return "", err
	}
	id := uuid.NewString()
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lessons (id,subject_id,title,created_by,created_at) VALUES ($1,$2,$3,$4,$5)`,
			id, l.SubjectID, strings.TrimSpace(l.Title), l.CreatedBy, s.now().UnixMilli()); err != nil {
			return err
		}
		return putLessonNotions(ctx, tx, id, l.Notions)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLStore) GetLesson(ctx context.Context, id string) (Lesson, error) {
	var l Lesson
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id,subject_id,title,created_by,created_at FROM lessons WHERE id=$1`, id).
		Scan(&l.ID, &l.SubjectID, &l.Title, &l.CreatedBy, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Lesson{}, ErrLessonNotFound
	}
	if err != nil {
		return Lesson{}, err
	}
	l.CreatedAt = time.UnixMilli(created)
	l.Notions, err = s.lessonNotions(ctx, id)
	return l, err
}

func (s *SQLStore) ListLessons(ctx context.Context, subjectID string) ([]Lesson, error) {
	q := `SELECT id,subject_id,title,created_by,created_at FROM lessons`
	var args []any
	if subjectID != "" {
		q += ` WHERE subject_id=$1`
		args = append(args, subjectID)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	out := []Lesson{}
	for rows.Next() {
		var l Lesson
		var created int64
		if err := rows.Scan(&l.ID, &l.SubjectID, &l.Title, &l.CreatedBy, &created); err != nil {
			rows.Close()
			return nil, err
		}
		l.CreatedAt = time.UnixMilli(created)
		out = append(out, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// notions are loaded after the cursor closes: sqlite runs on one connection
	for i := range out {
		if out[i].Notions, err = s.lessonNotions(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *SQLStore) UpdateLesson(ctx context.Context, id string, p LessonPatch) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM lessons WHERE id=$1`, id).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrLessonNotFound
			}
			return err
		}
		if p.Title != nil {
			if err := validateName("title", *p.Title); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `UPDATE lessons SET title=$1 WHERE id=$2`, strings.TrimSpace(*p.Title), id); err != nil {
				return err
			}
		}
		if p.SubjectID != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE lessons SET subject_id=$1 WHERE id=$2`, *p.SubjectID, id); err != nil {
				return err
			}
		}
		if p.Notions != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM lesson_notions WHERE lesson_id=$1`, id); err != nil {
				return err
			}
			return putLessonNotions(ctx, tx, id, *p.Notions)
		}
		return nil
	})
}

// DeleteLesson removes a lesson and everything hanging off its exercises.
func (s *SQLStore) DeleteLesson(ctx context.Context, id string) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM grades WHERE submission_id IN (SELECT s.id FROM submissions s JOIN exercises e ON e.id=s.exercise_id WHERE e.lesson_id=$1)`,
			`DELETE FROM submissions WHERE exercise_id IN (SELECT id FROM exercises WHERE lesson_id=$1)`,
			`DELETE FROM exercise_options WHERE exercise_id IN (SELECT id FROM exercises WHERE lesson_id=$1)`,
			`DELETE FROM exercises WHERE lesson_id=$1`,
			`DELETE FROM lesson_notions WHERE lesson_id=$1`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM lessons WHERE id=$1`, id)
		return affected(res, err, ErrLessonNotFound)
	})
}

func (s *SQLStore) lessonNotions(ctx context.Context, lessonID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT notion_id FROM lesson_notions WHERE lesson_id=$1 ORDER BY notion_id`, lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func putLessonNotions(ctx context.Context, tx *sql.Tx, lessonID string, notions []string) error {
	seen := map[string]bool{}
	for _, n := range notions {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		if _, err := tx.ExecContext(ctx, `INSERT INTO lesson_notions (lesson_id,notion_id) VALUES ($1,$2)`, lessonID, n); err != nil {
			return err
		}
	}
	return nil
}

// ---- exercises ----

func (s *SQLStore) CreateExercise(ctx context.Context, e Exercise, opts []Option) (string, error) {
	kept, err := ValidateExercise(e, opts)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM lessons WHERE id=$1`, e.LessonID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrLessonNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO exercises (id,lesson_id,kind,title,prompt,time_limit_min,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			id, e.LessonID, string(e.Kind), strings.TrimSpace(e.Title), e.Prompt, nullMinutes(e.TimeLimitMinutes), s.now().UnixMilli()); err != nil {
			return err
		}
		return insertOptions(ctx, tx, id, kept)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLStore) GetExercise(ctx context.Context, id string) (Exercise, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,lesson_id,kind,title,prompt,time_limit_min,created_at FROM exercises WHERE id=$1`, id)
	e, err := scanExercise(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Exercise{}, ErrExerciseNotFound
	}
	return e, err
}

func (s *SQLStore) ListExercises(ctx context.Context, lessonID string) ([]Exercise, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,lesson_id,kind,title,prompt,time_limit_min,created_at FROM exercises WHERE lesson_id=$1`, lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Exercise{}
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *SQLStore) UpdateExercise(ctx context.Context, e Exercise, opts []Option) error {
	kept, err := ValidateExercise(e, opts)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE exercises SET kind=$1, title=$2, prompt=$3, time_limit_min=$4 WHERE id=$5`,
			string(e.Kind), strings.TrimSpace(e.Title), e.Prompt, nullMinutes(e.TimeLimitMinutes), e.ID)
		if err := affected(res, err, ErrExerciseNotFound); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM exercise_options WHERE exercise_id=$1`, e.ID); err != nil {
			return err
		}
		return insertOptions(ctx, tx, e.ID, kept)
	})
}

func (s *SQLStore) DeleteExercise(ctx context.Context, id string) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM grades WHERE submission_id IN (SELECT id FROM submissions WHERE exercise_id=$1)`,
			`DELETE FROM submissions WHERE exercise_id=$1`,
			`DELETE FROM exercise_options WHERE exercise_id=$1`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM exercises WHERE id=$1`, id)
		return affected(res, err, ErrExerciseNotFound)
	})
}

func (s *SQLStore) ListOptions(ctx context.Context, exerciseID string) ([]Option, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,exercise_id,option_text,is_correct FROM exercise_options WHERE exercise_id=$1`, exerciseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Option{}
	for rows.Next() {
		var o Option
		var correct int
		if err := rows.Scan(&o.ID, &o.ExerciseID, &o.Text, &correct); err != nil {
			return nil, err
		}
		o.Correct = correct != 0
		out = append(out, o)
	}
	return out, rows.Err()
}

func insertOptions(ctx context.Context, tx *sql.Tx, exerciseID string, opts []Option) error {
	for _, o := range opts {
		id := o.ID
		if id == "" {
			id = uuid.NewString()
		}
		correct := 0
		if o.Correct {
			correct = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO exercise_options (id,exercise_id,option_text,is_correct) VALUES ($1,$2,$3,$4)`,
			id, exerciseID, o.Text, correct); err != nil {
			return err
		}
	}
	return nil
}

type scanner interface{ Scan(dest ...any) error }

func scanExercise(r scanner) (Exercise, error) {
	var e Exercise
	var kind string
	var limit sql.NullInt64
	var created int64
	if err := r.Scan(&e.ID, &e.LessonID, &kind, &e.Title, &e.Prompt, &limit, &created); err != nil {
		return Exercise{}, err
	}
	e.Kind = Kind(kind)
	if limit.Valid {
		e.TimeLimitMinutes = Minutes(int(limit.Int64))
	}
	e.CreatedAt = time.UnixMilli(created)
	return e, nil
}

func nullMinutes(m *int) sql.NullInt64 {
	if m == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*m), Valid: true}
}

func affected(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
