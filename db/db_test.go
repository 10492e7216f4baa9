package db

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/onnwee/streamcast/dispatch"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set; skipping postgres test")
	}
	db, err := Connect(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE command_audit`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

func TestConnect_NoDSN(t *testing.T) {
	if _, err := Connect(context.Background(), ""); !errors.Is(err, ErrNoDSN) {
		t.Errorf("Connect(\"\") error = %v, want ErrNoDSN", err)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 2; i++ {
		if err := Migrate(context.Background(), db); err != nil {
			t.Fatalf("migrate run %d: %v", i+1, err)
		}
	}
}

func TestAuditLog_RecordAndRecent(t *testing.T) {
	db := openTestDB(t)
	log := NewAuditLog(db)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	entries := []dispatch.AuditEntry{
		{CorrelationID: "c1", Platform: "twitch", Command: "switch", CallerID: 1, Outcome: "success", Detail: "Scene A", CreatedAt: base},
		{CorrelationID: "c2", Platform: "telegram", Command: "addmod", CallerID: math.MaxUint64, Outcome: "error", Detail: "permission_denied", CreatedAt: base.Add(time.Minute)},
	}
	for _, e := range entries {
		if err := log.RecordCommand(ctx, e); err != nil {
			t.Fatalf("RecordCommand: %v", err)
		}
	}

	got, err := log.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(got))
	}
	if got[0].CorrelationID != "c2" || got[0].CallerID != math.MaxUint64 {
		t.Errorf("newest entry = %+v", got[0])
	}
	if !got[1].CreatedAt.Equal(base) {
		t.Errorf("created_at = %v, want %v", got[1].CreatedAt, base)
	}
}
