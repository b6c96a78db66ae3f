package syncx_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/mind-engage/mindengage-clab/internal/db"
	syncx "github.com/mind-engage/mindengage-clab/internal/sync"
)

func TestAppendAndSince(t *testing.T) {
	ctx := context.Background()
	h, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer h.Close()
	repo := syncx.NewEventRepo(h)

	if err := repo.Append(ctx, syncx.Event{Type: syncx.TypeSubmissionCreated, Key: "s1", DataJSON: `{}`}); err != nil {
		t.Fatalf("append: %v", err)
	}
	err = db.WithTx(ctx, h, func(tx *sql.Tx) error {
		return syncx.AppendTx(ctx, tx, syncx.TypeGradeSaved, "s1", map[string]int{"grade": 17})
	})
	if err != nil {
		t.Fatalf("append tx: %v", err)
	}

	all, err := repo.Since(ctx, 0, 0)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("want 2 events, got %d", len(all))
	}
	if all[0].Type != syncx.TypeSubmissionCreated || all[1].Type != syncx.TypeGradeSaved {
		t.Fatalf("unexpected order: %+v", all)
	}
	if all[1].DataJSON != `{"grade":17}` || all[1].SiteID != "local" {
		t.Fatalf("unexpected event: %+v", all[1])
	}

	rest, err := repo.Since(ctx, all[0].Seq, 10)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(rest) != 1 || rest[0].Seq != all[1].Seq {
		t.Fatalf("want only the second event, got %+v", rest)
	}
}

func TestAppendTxRollsBackWithWrite(t *testing.T) {
	ctx := context.Background()
	h, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer h.Close()

	_ = db.WithTx(ctx, h, func(tx *sql.Tx) error {
		if err := syncx.AppendTx(ctx, tx, syncx.TypeGradeSaved, "s2", nil); err != nil {
			return err
		}
		return errors.New("grade rejected")
	})
	got, err := syncx.NewEventRepo(h).Since(ctx, 0, 10)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("rolled back event is visible: %+v", got)
	}
}
