package wallet

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lumea-app/lumea-backend/internal/ledger"
	"github.com/lumea-app/lumea-backend/pkg/db/models"
	"github.com/lumea-app/lumea-backend/pkg/enums"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/outbox"
	"github.com/lumea-app/lumea-backend/pkg/pagination"
)

const testGatewaySecret = "gateway-secret"

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubLedgerRepo struct {
	balances     map[uuid.UUID]int64
	transactions []*models.Transaction
}

func newStubLedgerRepo() *stubLedgerRepo {
	return &stubLedgerRepo{balances: map[uuid.UUID]int64{}}
}

func (s *stubLedgerRepo) WithTx(tx *gorm.DB) ledger.Repository { return s }

func (s *stubLedgerRepo) LockAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	return &models.Account{ID: accountID, Balance: s.balances[accountID]}, nil
}

func (s *stubLedgerRepo) CreditBalance(ctx context.Context, accountID uuid.UUID, amount int64) error {
	s.balances[accountID] += amount
	return nil
}

func (s *stubLedgerRepo) DebitBalance(ctx context.Context, accountID uuid.UUID, amount int64) error {
	if s.balances[accountID] < amount {
		return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "balance does not cover the requested debit")
	}
	s.balances[accountID] -= amount
	return nil
}

func (s *stubLedgerRepo) CreateTransaction(ctx context.Context, transaction *models.Transaction) error {
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

func (s *stubLedgerRepo) ListTransactions(ctx context.Context, params ledger.ListTransactionsParams) ([]models.Transaction, *pagination.Cursor, error) {
	var out []models.Transaction
	for _, transaction := range s.transactions {
		if params.AccountID != nil {
			id := *params.AccountID
			payer := transaction.PayerAccountID != nil && *transaction.PayerAccountID == id
			payee := transaction.PayeeAccountID != nil && *transaction.PayeeAccountID == id
			if !payer && !payee {
				continue
			}
		}
		out = append(out, *transaction)
	}
	return out, nil, nil
}

func (s *stubLedgerRepo) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error {
	transaction, err := s.FindTransactionByID(ctx, id)
	if err != nil {
		return err
	}
	transaction.Status = status
	return nil
}

type stubAccounts struct {
	accounts map[uuid.UUID]*models.Account
}

func (s *stubAccounts) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, ok := s.accounts[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	return account, nil
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type walletFixture struct {
	svc     Service
	ledger  *stubLedgerRepo
	outbox  *stubOutbox
	account *models.Account
}

func newWalletFixture(t *testing.T) *walletFixture {
	t.Helper()
	account := &models.Account{ID: uuid.New(), Role: enums.AccountRoleUser, Status: enums.AccountStatusActive}
	ledgerRepo := newStubLedgerRepo()
	ledgerService, err := ledger.NewService(stubTxRunner{}, ledgerRepo)
	require.NoError(t, err)
	ob := &stubOutbox{}
	svc, err := NewService(ServiceParams{
		Tx:            stubTxRunner{},
		Ledger:        ledgerService,
		Accounts:      &stubAccounts{accounts: map[uuid.UUID]*models.Account{account.ID: account}},
		Outbox:        ob,
		GatewaySecret: testGatewaySecret,
	})
	require.NoError(t, err)
	return &walletFixture{svc: svc, ledger: ledgerRepo, outbox: ob, account: account}
}

func signRecharge(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testGatewaySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestConfirmRechargeCreditsCoinsPlusBonus(t *testing.T) {
	f := newWalletFixture(t)

	transaction, err := f.svc.ConfirmRecharge(context.Background(), ConfirmRechargeInput{
		AccountID: f.account.ID,
		PlanID:    "standard",
		OrderID:   "order_123",
		PaymentID: "pay_456",
		Signature: signRecharge("order_123", "pay_456"),
	})
	require.NoError(t, err)

	// standard pack: 500 coins + 50 bonus.
	assert.Equal(t, int64(550), transaction.Net)
	assert.Equal(t, enums.TransactionKindRecharge, transaction.Kind)
	assert.Equal(t, "order_123", transaction.Reference)
	assert.Equal(t, int64(550), f.ledger.balances[f.account.ID])

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, enums.EventWalletRecharged, f.outbox.events[0].EventType)
}

func TestConfirmRechargeRejectsBadSignature(t *testing.T) {
	f := newWalletFixture(t)

	_, err := f.svc.ConfirmRecharge(context.Background(), ConfirmRechargeInput{
		AccountID: f.account.ID,
		PlanID:    "basic",
		OrderID:   "order_123",
		PaymentID: "pay_456",
		Signature: "forged",
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
	assert.Zero(t, f.ledger.balances[f.account.ID])
}

func TestConfirmRechargeRejectsUnknownPlan(t *testing.T) {
	f := newWalletFixture(t)

	_, err := f.svc.ConfirmRecharge(context.Background(), ConfirmRechargeInput{
		AccountID: f.account.ID,
		PlanID:    "mega",
		OrderID:   "order_123",
		PaymentID: "pay_456",
		Signature: signRecharge("order_123", "pay_456"),
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestConfirmRechargeReplayReturnsOriginalCredit(t *testing.T) {
	f := newWalletFixture(t)

	input := ConfirmRechargeInput{
		AccountID: f.account.ID,
		PlanID:    "basic",
		OrderID:   "order_777",
		PaymentID: "pay_777",
		Signature: signRecharge("order_777", "pay_777"),
	}
	first, err := f.svc.ConfirmRecharge(context.Background(), input)
	require.NoError(t, err)

	replay, err := f.svc.ConfirmRecharge(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)

	// The balance moved exactly once.
	assert.Equal(t, int64(100), f.ledger.balances[f.account.ID])
}

func TestTransactionsFiltersByAccount(t *testing.T) {
	f := newWalletFixture(t)

	_, err := f.svc.ConfirmRecharge(context.Background(), ConfirmRechargeInput{
		AccountID: f.account.ID,
		PlanID:    "basic",
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: signRecharge("order_1", "pay_1"),
	})
	require.NoError(t, err)

	transactions, _, err := f.svc.Transactions(context.Background(), f.account.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "order_1", transactions[0].Reference)
}

func TestAdjustAppliesManualCorrection(t *testing.T) {
	f := newWalletFixture(t)
	adminID := uuid.New()

	credit, err := f.svc.Adjust(context.Background(), AdjustInput{
		AccountID: f.account.ID,
		AdminID:   adminID,
		Delta:     200,
		Reason:    "support goodwill credit",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionKindManualAdjustment, credit.Kind)
	assert.Equal(t, int64(200), credit.Net)
	assert.Equal(t, int64(200), f.ledger.balances[f.account.ID])

	debit, err := f.svc.Adjust(context.Background(), AdjustInput{
		AccountID: f.account.ID,
		AdminID:   adminID,
		Delta:     -50,
		Reason:    "duplicate credit reversal",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionKindManualAdjustment, debit.Kind)
	assert.Equal(t, int64(150), f.ledger.balances[f.account.ID])

	require.Len(t, f.outbox.events, 2)
	assert.Equal(t, enums.EventBalanceAdjusted, f.outbox.events[0].EventType)
	assert.Equal(t, enums.EventBalanceAdjusted, f.outbox.events[1].EventType)
}

func TestAdjustCannotOverdraw(t *testing.T) {
	f := newWalletFixture(t)

	_, err := f.svc.Adjust(context.Background(), AdjustInput{
		AccountID: f.account.ID,
		AdminID:   uuid.New(),
		Delta:     -10,
		Reason:    "erroneous credit clawback",
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance))
	assert.Zero(t, f.ledger.balances[f.account.ID])
	assert.Empty(t, f.outbox.events)
}

func TestAdjustValidation(t *testing.T) {
	f := newWalletFixture(t)

	_, err := f.svc.Adjust(context.Background(), AdjustInput{
		AccountID: f.account.ID,
		AdminID:   uuid.New(),
		Delta:     0,
		Reason:    "noop",
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidAmount))

	_, err = f.svc.Adjust(context.Background(), AdjustInput{
		AccountID: f.account.ID,
		AdminID:   uuid.New(),
		Delta:     100,
		Reason:    "   ",
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestPlanCatalog(t *testing.T) {
	plans := Plans()
	require.Len(t, plans, 4)
	assert.Equal(t, "basic", plans[0].ID)

	_, ok := PlanByID("ultimate")
	assert.True(t, ok)
	_, ok = PlanByID("unknown")
	assert.False(t, ok)
}
