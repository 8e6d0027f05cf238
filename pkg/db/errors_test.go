package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsUniqueViolationPgError(t *testing.T) {
	err := fmt.Errorf("create: %w", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "idx_transactions_reference",
	})

	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation without constraint filter")
	}
	if !IsUniqueViolation(err, "idx_transactions_reference") {
		t.Fatalf("expected match on the violated constraint")
	}
	if IsUniqueViolation(err, "idx_sessions_active_pair") {
		t.Fatalf("unexpected match on a different constraint")
	}

	notUnique := &pgconn.PgError{Code: "23503"}
	if IsUniqueViolation(notUnique, "") {
		t.Fatalf("foreign key violation misread as unique violation")
	}
}

func TestIsUniqueViolationPqError(t *testing.T) {
	err := &pq.Error{Code: "23505", Constraint: "idx_accounts_phone"}

	if !IsUniqueViolation(err, "idx_accounts_phone") {
		t.Fatalf("expected match on the violated constraint")
	}
	if IsUniqueViolation(err, "idx_transactions_reference") {
		t.Fatalf("unexpected match on a different constraint")
	}
}

func TestIsUniqueViolationStringFallback(t *testing.T) {
	named := errors.New(`duplicate key value violates unique constraint "idx_transactions_reference"`)
	if !IsUniqueViolation(named, "idx_transactions_reference") {
		t.Fatalf("expected match when the message names the constraint")
	}

	// A generic duplicate message must not be claimed for a specific
	// constraint it never mentions.
	generic := errors.New("UNIQUE constraint failed: accounts.phone")
	if IsUniqueViolation(generic, "idx_transactions_reference") {
		t.Fatalf("generic duplicate misattributed to a named constraint")
	}
	if !IsUniqueViolation(generic, "") {
		t.Fatalf("expected generic duplicate to match without a constraint filter")
	}

	if IsUniqueViolation(nil, "") {
		t.Fatalf("nil error misread as unique violation")
	}
	if IsUniqueViolation(errors.New("connection reset"), "") {
		t.Fatalf("unrelated error misread as unique violation")
	}
}
