package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lumea-app/lumea-backend/pkg/db/models"
	"github.com/lumea-app/lumea-backend/pkg/enums"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/pagination"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubLedgerRepo struct {
	balances     map[uuid.UUID]int64
	transactions []*models.Transaction
	createErr    error
}

func newStubLedgerRepo() *stubLedgerRepo {
	return &stubLedgerRepo{balances: map[uuid.UUID]int64{}}
}

func (s *stubLedgerRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubLedgerRepo) LockAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	balance, ok := s.balances[accountID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	return &models.Account{ID: accountID, Balance: balance}, nil
}

func (s *stubLedgerRepo) CreditBalance(ctx context.Context, accountID uuid.UUID, amount int64) error {
	if _, ok := s.balances[accountID]; !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	s.balances[accountID] += amount
	return nil
}

func (s *stubLedgerRepo) DebitBalance(ctx context.Context, accountID uuid.UUID, amount int64) error {
	balance, ok := s.balances[accountID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	if balance < amount {
		return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "balance does not cover the requested debit")
	}
	s.balances[accountID] = balance - amount
	return nil
}

func (s *stubLedgerRepo) CreateTransaction(ctx context.Context, transaction *models.Transaction) error {
	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.transactions {
		if existing.Reference == transaction.Reference {
			return errors.New(`duplicate key value violates unique constraint "idx_transactions_reference"`)
		}
	}
	transaction.ID = uuid.New()
	s.transactions = append(s.transactions, transaction)
	return nil
}

func (s *stubLedgerRepo) FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	for _, transaction := range s.transactions {
		if transaction.ID == id {
			return transaction, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
}

func (s *stubLedgerRepo) FindTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	for _, transaction := range s.transactions {
		if transaction.Reference == reference {
			return transaction, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
}

func (s *stubLedgerRepo) ListTransactions(ctx context.Context, params ListTransactionsParams) ([]models.Transaction, *pagination.Cursor, error) {
	var out []models.Transaction
	for _, transaction := range s.transactions {
		out = append(out, *transaction)
	}
	return out, nil, nil
}

func (s *stubLedgerRepo) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error {
	for _, transaction := range s.transactions {
		if transaction.ID == id {
			transaction.Status = status
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
}

func TestServiceCreditRecordsCompletedTransaction(t *testing.T) {
	repo := newStubLedgerRepo()
	accountID := uuid.New()
	repo.balances[accountID] = 10

	svc, err := NewService(stubTxRunner{}, repo)
	require.NoError(t, err)

	transaction, err := svc.Credit(context.Background(), CreditInput{
		AccountID: accountID,
		Amount:    100,
		Kind:      enums.TransactionKindRecharge,
		Reference: "recharge_order_1",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, transaction.Status)
	assert.Equal(t, int64(100), transaction.Net)
	assert.Equal(t, int64(110), repo.balances[accountID])
}

func TestServiceCreditDuplicateReference(t *testing.T) {
	repo := newStubLedgerRepo()
	accountID := uuid.New()
	repo.balances[accountID] = 0

	svc, err := NewService(stubTxRunner{}, repo)
	require.NoError(t, err)

	input := CreditInput{
		AccountID: accountID,
		Amount:    50,
		Kind:      enums.TransactionKindRecharge,
		Reference: "recharge_order_2",
	}
	_, err = svc.Credit(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Credit(context.Background(), input)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDuplicateReference))
	assert.Equal(t, int64(50), repo.balances[accountID])
}

func TestServiceDebitInsufficientBalance(t *testing.T) {
	repo := newStubLedgerRepo()
	accountID := uuid.New()
	repo.balances[accountID] = 30

	svc, err := NewService(stubTxRunner{}, repo)
	require.NoError(t, err)

	_, err = svc.Debit(context.Background(), DebitInput{
		AccountID: accountID,
		Amount:    31,
		Kind:      enums.TransactionKindWithdrawal,
		Reference: "withdrawal_1",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance))
	assert.Empty(t, repo.transactions)
	assert.Equal(t, int64(30), repo.balances[accountID])
}

func TestServiceDebitReservationCarriesCommission(t *testing.T) {
	repo := newStubLedgerRepo()
	accountID := uuid.New()
	repo.balances[accountID] = 500

	svc, err := NewService(stubTxRunner{}, repo)
	require.NoError(t, err)

	transaction, err := svc.Debit(context.Background(), DebitInput{
		AccountID:  accountID,
		Amount:     200,
		Commission: 20,
		Kind:       enums.TransactionKindWithdrawal,
		Status:     enums.TransactionStatusPending,
		Reference:  "withdrawal_res_1",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPending, transaction.Status)
	assert.Equal(t, int64(200), transaction.Gross)
	assert.Equal(t, int64(20), transaction.Commission)
	assert.Equal(t, int64(180), transaction.Net)
	assert.Equal(t, int64(300), repo.balances[accountID])

	require.NoError(t, svc.UpdateStatusTx(context.Background(), nil, transaction.ID, enums.TransactionStatusCompleted))
	assert.Equal(t, enums.TransactionStatusCompleted, repo.transactions[0].Status)
}

func TestServiceTransferSplitsBalances(t *testing.T) {
	repo := newStubLedgerRepo()
	payerID := uuid.New()
	payeeID := uuid.New()
	repo.balances[payerID] = 100
	repo.balances[payeeID] = 5

	svc, err := NewService(stubTxRunner{}, repo)
	require.NoError(t, err)

	transaction, err := svc.Transfer(context.Background(), TransferInput{
		PayerID:    payerID,
		PayeeID:    payeeID,
		Gross:      20,
		Commission: 4,
		Kind:       enums.TransactionKindSessionPayment,
		Reference:  "session_xyz",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(20), transaction.Gross)
	assert.Equal(t, int64(4), transaction.Commission)
	assert.Equal(t, int64(16), transaction.Net)
	assert.Equal(t, int64(80), repo.balances[payerID])
	assert.Equal(t, int64(21), repo.balances[payeeID])
}

func TestServiceTransferValidation(t *testing.T) {
	repo := newStubLedgerRepo()
	svc, err := NewService(stubTxRunner{}, repo)
	require.NoError(t, err)

	sameID := uuid.New()
	_, err = svc.Transfer(context.Background(), TransferInput{
		PayerID:   sameID,
		PayeeID:   sameID,
		Gross:     10,
		Kind:      enums.TransactionKindGiftPayment,
		Reference: "gift_1",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Transfer(context.Background(), TransferInput{
		PayerID:    uuid.New(),
		PayeeID:    uuid.New(),
		Gross:      10,
		Commission: 11,
		Kind:       enums.TransactionKindGiftPayment,
		Reference:  "gift_2",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidCommission))

	_, err = svc.Transfer(context.Background(), TransferInput{
		PayerID:   uuid.New(),
		PayeeID:   uuid.New(),
		Gross:     10,
		Kind:      "tip",
		Reference: "gift_3",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Transfer(context.Background(), TransferInput{
		PayerID:   uuid.New(),
		PayeeID:   uuid.New(),
		Gross:     10,
		Kind:      enums.TransactionKindGiftPayment,
		Reference: "  ",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestServiceTransferInsufficientBalanceAborts(t *testing.T) {
	repo := newStubLedgerRepo()
	payerID := uuid.New()
	payeeID := uuid.New()
	repo.balances[payerID] = 10
	repo.balances[payeeID] = 0

	svc, err := NewService(stubTxRunner{}, repo)
	require.NoError(t, err)

	_, err = svc.Transfer(context.Background(), TransferInput{
		PayerID:   payerID,
		PayeeID:   payeeID,
		Gross:     25,
		Kind:      enums.TransactionKindSessionPayment,
		Reference: "session_short",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance))
	assert.Equal(t, int64(0), repo.balances[payeeID])
}
