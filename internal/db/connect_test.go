package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func openMem(t *testing.T) *sql.DB {
	t.Helper()
	h, err := Open(context.Background(), DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestParseDriver(t *testing.T) {
	for in, want := range map[string]Driver{"": DriverSQLite, "sqlite3": DriverSQLite, "PGX": DriverPostgres, "postgres": DriverPostgres} {
		got, err := ParseDriver(in)
		if err != nil || got != want {
			t.Fatalf("ParseDriver(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDriver("mysql"); err == nil {
		t.Fatalf("expected error for mysql")
	}
}

func TestOpenEnsuresSchemaIdempotently(t *testing.T) {
	h := openMem(t)
	if err := ensureSchema(context.Background(), h, DriverSQLite); err != nil {
		t.Fatalf("second ensureSchema: %v", err)
	}
	for _, tbl := range []string{"users", "subjects", "notions", "lessons", "lesson_notions", "exercises", "exercise_options", "submissions", "grades", "event_log"} {
		var n int
		if err := h.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=$1`, tbl).Scan(&n); err != nil || n != 1 {
			t.Fatalf("table %s missing (n=%d err=%v)", tbl, n, err)
		}
	}
}

func TestWithTxCommitAndRollback(t *testing.T) {
	h := openMem(t)
	ctx := context.Background()

	err := WithTx(ctx, h, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO subjects (id,name) VALUES ('s1','C')`)
		return err
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	boom := errors.New("boom")
	err = WithTx(ctx, h, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO subjects (id,name) VALUES ('s2','Pointers')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var n int
	if err := h.QueryRow(`SELECT COUNT(*) FROM subjects`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 subject after rollback, got %d", n)
	}
}
