package store

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestOpenMemory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := Open(context.Background(), " Memory ", logger)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	defer s.Close()

	ids, err := s.ListTenantIDs(context.Background())
	if err != nil {
		t.Fatalf("list tenants: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected an empty store, got %v", ids)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := Open(context.Background(), "cassandra", logger)
	if err == nil || !strings.Contains(err.Error(), "cassandra") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}

func TestOpenPostgresRequiresURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := Open(context.Background(), BackendPostgres, logger); err == nil {
		t.Fatal("expected an error without DATABASE_URL")
	}
}
