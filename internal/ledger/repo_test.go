package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lumea-app/lumea-backend/pkg/db/models"
	"github.com/lumea-app/lumea-backend/pkg/enums"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/pagination"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	accounts := `
CREATE TABLE IF NOT EXISTS accounts (
  id TEXT PRIMARY KEY,
  role TEXT NOT NULL DEFAULT 'user',
  status TEXT NOT NULL DEFAULT 'active',
  name TEXT NOT NULL,
  phone TEXT NOT NULL UNIQUE,
  email TEXT,
  balance INTEGER NOT NULL DEFAULT 0,
  last_active_at DATETIME,
  commission_pct INTEGER NOT NULL DEFAULT 20,
  chat_rate INTEGER NOT NULL DEFAULT 0,
  voice_rate INTEGER NOT NULL DEFAULT 0,
  video_rate INTEGER NOT NULL DEFAULT 0,
  languages TEXT,
  bio TEXT,
  payout_details TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	transactions := `
CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'completed',
  payer_account_id TEXT,
  payee_account_id TEXT,
  gross INTEGER NOT NULL,
  commission INTEGER NOT NULL DEFAULT 0,
  net INTEGER NOT NULL,
  reference TEXT NOT NULL UNIQUE,
  description TEXT NOT NULL DEFAULT '',
  metadata TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(accounts).Error)
	require.NoError(t, db.Exec(transactions).Error)
	return db
}

func newAccount(t *testing.T, db *gorm.DB, balance int64) *models.Account {
	t.Helper()

	account := &models.Account{
		ID:            uuid.New(),
		Role:          enums.AccountRoleUser,
		Status:        enums.AccountStatusActive,
		Name:          "Test Account",
		Phone:         "+91" + uuid.NewString()[:12],
		Balance:       balance,
		CommissionPct: 20,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func newTransaction(t *testing.T, db *gorm.DB, payer, payee *uuid.UUID, kind enums.TransactionKind, reference string, created time.Time) *models.Transaction {
	t.Helper()

	transaction := &models.Transaction{
		ID:             uuid.New(),
		Kind:           kind,
		Status:         enums.TransactionStatusCompleted,
		PayerAccountID: payer,
		PayeeAccountID: payee,
		Gross:          100,
		Commission:     20,
		Net:            80,
		Reference:      reference,
		CreatedAt:      created,
	}
	require.NoError(t, db.Create(transaction).Error)
	return transaction
}

func TestRepositoryCreditBalance(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	account := newAccount(t, db, 50)

	require.NoError(t, repo.CreditBalance(context.Background(), account.ID, 30))

	var updated models.Account
	require.NoError(t, db.First(&updated, "id = ?", account.ID).Error)
	assert.Equal(t, int64(80), updated.Balance)

	err := repo.CreditBalance(context.Background(), uuid.New(), 10)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	err = repo.CreditBalance(context.Background(), account.ID, 0)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidAmount))
}

func TestRepositoryDebitBalanceGuardsOverdraw(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	account := newAccount(t, db, 100)

	require.NoError(t, repo.DebitBalance(context.Background(), account.ID, 60))

	// The second debit must evaluate against the already-debited balance,
	// not the balance its caller may have read before the first debit.
	err := repo.DebitBalance(context.Background(), account.ID, 60)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance))

	var updated models.Account
	require.NoError(t, db.First(&updated, "id = ?", account.ID).Error)
	assert.Equal(t, int64(40), updated.Balance)

	require.NoError(t, repo.DebitBalance(context.Background(), account.ID, 40))
	require.NoError(t, db.First(&updated, "id = ?", account.ID).Error)
	assert.Equal(t, int64(0), updated.Balance)

	err = repo.DebitBalance(context.Background(), uuid.New(), 10)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRepositoryDebitBalanceConcurrentOverdraw(t *testing.T) {
	db := setupLedgerTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps sqlite's writer lock out of the way; the
	// guarded UPDATE is what decides which debit wins.
	sqlDB.SetMaxOpenConns(1)

	repo := NewRepository(db)
	account := newAccount(t, db, 100)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.DebitBalance(context.Background(), account.ID, 60)
		}()
	}
	wg.Wait()
	close(errs)

	failures := 0
	for err := range errs {
		if err != nil {
			require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance))
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	var updated models.Account
	require.NoError(t, db.First(&updated, "id = ?", account.ID).Error)
	assert.Equal(t, int64(40), updated.Balance)
}

func TestRepositoryLockAccount(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	account := newAccount(t, db, 75)

	locked, err := repo.LockAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, locked.ID)
	assert.Equal(t, int64(75), locked.Balance)

	_, err = repo.LockAccount(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRepositoryUniqueReference(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	account := newAccount(t, db, 0)

	first := &models.Transaction{
		ID:             uuid.New(),
		Kind:           enums.TransactionKindRecharge,
		Status:         enums.TransactionStatusCompleted,
		PayeeAccountID: &account.ID,
		Gross:          100,
		Net:            100,
		Reference:      "recharge_abc",
	}
	require.NoError(t, repo.CreateTransaction(context.Background(), first))

	duplicate := &models.Transaction{
		ID:             uuid.New(),
		Kind:           enums.TransactionKindRecharge,
		Status:         enums.TransactionStatusCompleted,
		PayeeAccountID: &account.ID,
		Gross:          100,
		Net:            100,
		Reference:      "recharge_abc",
	}
	err := repo.CreateTransaction(context.Background(), duplicate)
	require.Error(t, err)

	found, err := repo.FindTransactionByReference(context.Background(), "recharge_abc")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestRepositoryListTransactionsPagination(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	payer := newAccount(t, db, 0)
	payee := newAccount(t, db, 0)
	other := newAccount(t, db, 0)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		newTransaction(t, db, &payer.ID, &payee.ID, enums.TransactionKindSessionPayment, uuid.NewString(), base.Add(time.Duration(i)*time.Minute))
	}
	newTransaction(t, db, &other.ID, nil, enums.TransactionKindWithdrawal, uuid.NewString(), base.Add(time.Hour))

	page, cursor, err := repo.ListTransactions(context.Background(), ListTransactionsParams{
		AccountID: &payer.ID,
		Limit:     2,
	})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, cursor)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	rest, next, err := repo.ListTransactions(context.Background(), ListTransactionsParams{
		AccountID: &payer.ID,
		Limit:     2,
		Cursor:    cursor,
	})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, next)

	// The two pages tile the history: no row lost or repeated at the boundary.
	seen := map[uuid.UUID]bool{page[0].ID: true, page[1].ID: true, rest[0].ID: true}
	assert.Len(t, seen, 3)

	kind := enums.TransactionKindWithdrawal
	withdrawals, _, err := repo.ListTransactions(context.Background(), ListTransactionsParams{
		Kind:  &kind,
		Limit: pagination.DefaultLimit,
	})
	require.NoError(t, err)
	require.Len(t, withdrawals, 1)
}

func TestRepositoryUpdateTransactionStatus(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	account := newAccount(t, db, 0)

	transaction := newTransaction(t, db, &account.ID, nil, enums.TransactionKindWithdrawal, "withdrawal_x", time.Now().UTC())
	require.NoError(t, repo.UpdateTransactionStatus(context.Background(), transaction.ID, enums.TransactionStatusRefunded))

	updated, err := repo.FindTransactionByID(context.Background(), transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusRefunded, updated.Status)

	err = repo.UpdateTransactionStatus(context.Background(), uuid.New(), enums.TransactionStatusFailed)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
