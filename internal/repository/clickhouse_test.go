package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDefaultConnectionConfig(t *testing.T) {
	cfg := DefaultConnectionConfig()

	if len(cfg.Hosts) != 1 || cfg.Hosts[0] != "localhost:9000" {
		t.Errorf("unexpected hosts: %v", cfg.Hosts)
	}
	if cfg.Database != "gtstats" {
		t.Errorf("expected database gtstats, got %s", cfg.Database)
	}
	if cfg.Username != "default" {
		t.Errorf("expected username default, got %s", cfg.Username)
	}
	if cfg.Password != "" {
		t.Error("expected empty password")
	}
	if cfg.MaxOpenConns != 10 {
		t.Errorf("expected max open conns 10, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 5 {
		t.Errorf("expected max idle conns 5, got %d", cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime != time.Hour {
		t.Errorf("expected conn max lifetime 1h, got %v", cfg.ConnMaxLifetime)
	}
	if cfg.DialTimeout != 10*time.Second {
		t.Errorf("expected dial timeout 10s, got %v", cfg.DialTimeout)
	}
	if cfg.Debug {
		t.Error("expected debug false")
	}
}

func TestNewClickHouseRepository_Defaults(t *testing.T) {
	repo := NewClickHouseRepository(nil, "", nil)

	if repo == nil {
		t.Fatal("expected non-nil repository")
	}
	if repo.logger == nil {
		t.Error("expected default logger to be set")
	}
	if repo.database != "gtstats" {
		t.Errorf("expected default database gtstats, got %s", repo.database)
	}

	if got := NewClickHouseRepository(nil, "tennis", nil).database; got != "tennis" {
		t.Errorf("expected configured database, got %s", got)
	}
}

func TestCreateActionsTableDDL(t *testing.T) {
	if !strings.Contains(createActionsTable, "%s.match_actions") {
		t.Fatal("expected DDL to be parameterised on the database")
	}
	for _, column := range []string{"event_id", "match_id", "action", "applied", "snapshot", "timestamp"} {
		if !strings.Contains(createActionsTable, column) {
			t.Errorf("expected column %s in DDL", column)
		}
	}
}

func TestClickHouseRepository_Close_NilConnection(t *testing.T) {
	repo := &ClickHouseRepository{}

	if err := repo.Close(); err != nil {
		t.Errorf("expected nil error for nil connection, got: %v", err)
	}
}

func TestClickHouseRepository_InsertBatch_EmptyBatch(t *testing.T) {
	repo := NewClickHouseRepository(nil, "", nil)

	// Empty batch should return nil without touching the connection.
	if err := repo.InsertBatch(context.Background(), nil); err != nil {
		t.Errorf("expected nil error for empty batch, got: %v", err)
	}
}

func TestClickHouseRepository_EmptyMatchID(t *testing.T) {
	repo := NewClickHouseRepository(nil, "", nil)

	tally, err := repo.GetActionTally(context.Background(), "")
	if !errors.Is(err, ErrEmptyMatchID) {
		t.Errorf("expected ErrEmptyMatchID, got %v", err)
	}
	if tally != nil {
		t.Error("expected nil tally for empty matchID")
	}

	snapshot, err := repo.GetLatestSnapshot(context.Background(), "")
	if !errors.Is(err, ErrEmptyMatchID) {
		t.Errorf("expected ErrEmptyMatchID, got %v", err)
	}
	if snapshot != nil {
		t.Error("expected nil snapshot for empty matchID")
	}
}

func BenchmarkDefaultConnectionConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultConnectionConfig()
	}
}
