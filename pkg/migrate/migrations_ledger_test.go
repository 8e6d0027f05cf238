package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTransactionsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_transactions_table.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no transactions migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS transactions",
		"CHECK (net = gross - commission)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_reference",
		"DROP TABLE IF EXISTS transactions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestAccountsMigrationGuardsBalance(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_accounts_table.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no accounts migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS accounts",
		"CHECK (balance >= 0)",
		"CHECK (commission_pct >= 0 AND commission_pct <= 100)",
		"DROP TABLE IF EXISTS accounts",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
