package repository

import (
	"errors"
	"testing"

	"funnel_backend/internal/leads/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapWriteErrorTurnsSerializationFailuresIntoConflicts(t *testing.T) {
	err := mapWriteError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestMapWriteErrorKeepsDomainErrors(t *testing.T) {
	invalid := &domain.InvalidTransitionError{From: domain.StateClient, To: domain.StateNew}
	err := mapWriteError(invalid)

	var target *domain.InvalidTransitionError
	if !errors.As(err, &target) {
		t.Fatalf("expected invalid transition to pass through, got %v", err)
	}
	if errors.Is(err, domain.ErrConflict) {
		t.Fatal("policy errors must not be reported as conflicts")
	}
}
