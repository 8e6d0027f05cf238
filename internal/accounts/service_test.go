package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lumea-app/lumea-backend/pkg/db/models"
	dbtypes "github.com/lumea-app/lumea-backend/pkg/db/types"
	"github.com/lumea-app/lumea-backend/pkg/enums"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/pagination"
)

type stubAccountsRepo struct {
	byID            map[uuid.UUID]*models.Account
	byPhone         map[string]*models.Account
	createErr       error
	missFirstLookup bool
}

func newStubAccountsRepo() *stubAccountsRepo {
	return &stubAccountsRepo{
		byID:    map[uuid.UUID]*models.Account{},
		byPhone: map[string]*models.Account{},
	}
}

func (s *stubAccountsRepo) add(account *models.Account) {
	s.byID[account.ID] = account
	s.byPhone[account.Phone] = account
}

func (s *stubAccountsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubAccountsRepo) Create(ctx context.Context, account *models.Account) error {
	if s.createErr != nil {
		return s.createErr
	}
	account.ID = uuid.New()
	s.add(account)
	return nil
}

func (s *stubAccountsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, ok := s.byID[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	copied := *account
	return &copied, nil
}

func (s *stubAccountsRepo) FindByPhone(ctx context.Context, phone string) (*models.Account, error) {
	if s.missFirstLookup {
		s.missFirstLookup = false
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	account, ok := s.byPhone[phone]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	copied := *account
	return &copied, nil
}

func (s *stubAccountsRepo) Update(ctx context.Context, account *models.Account) error {
	s.add(account)
	return nil
}

func (s *stubAccountsRepo) ListHosts(ctx context.Context, params ListHostsParams) ([]models.Account, *pagination.Cursor, error) {
	var hosts []models.Account
	for _, account := range s.byID {
		if account.Role == enums.AccountRoleHost && account.Status == enums.AccountStatusActive {
			hosts = append(hosts, *account)
		}
	}
	return hosts, nil, nil
}

func (s *stubAccountsRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.AccountStatus) error {
	account, ok := s.byID[id]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	account.Status = status
	return nil
}

func newHost(repo *stubAccountsRepo) *models.Account {
	host := &models.Account{
		ID:            uuid.New(),
		Role:          enums.AccountRoleHost,
		Status:        enums.AccountStatusActive,
		Name:          "Host",
		Phone:         "+911234567890",
		CommissionPct: 20,
		VoiceRate:     10,
	}
	repo.add(host)
	return host
}

func TestEnsureAccountCreatesOnFirstAuth(t *testing.T) {
	repo := newStubAccountsRepo()
	svc, err := NewService(repo)
	require.NoError(t, err)

	account, err := svc.EnsureAccount(context.Background(), EnsureAccountInput{
		Phone: " +919999999999 ",
		Name:  "New User",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.AccountRoleUser, account.Role)
	assert.Equal(t, "+919999999999", account.Phone)

	again, err := svc.EnsureAccount(context.Background(), EnsureAccountInput{Phone: "+919999999999"})
	require.NoError(t, err)
	assert.Equal(t, account.ID, again.ID)
}

func TestEnsureAccountRaceFallsBackToReread(t *testing.T) {
	repo := newStubAccountsRepo()
	svc, err := NewService(repo)
	require.NoError(t, err)

	// The insert loses the race, but the winner's row is readable by the
	// time the service re-reads.
	winner := &models.Account{ID: uuid.New(), Role: enums.AccountRoleUser, Status: enums.AccountStatusActive, Phone: "+918888888888"}
	repo.createErr = errors.New("UNIQUE constraint failed: accounts.phone")
	repo.byPhone[winner.Phone] = winner
	repo.missFirstLookup = true

	account, err := svc.EnsureAccount(context.Background(), EnsureAccountInput{Phone: winner.Phone})
	require.NoError(t, err)
	assert.Equal(t, winner.ID, account.ID)
}

func TestUpdateRates(t *testing.T) {
	repo := newStubAccountsRepo()
	svc, err := NewService(repo)
	require.NoError(t, err)
	host := newHost(repo)

	chat := int64(5)
	video := int64(25)
	updated, err := svc.UpdateRates(context.Background(), host.ID, UpdateRatesInput{
		ChatRate:  &chat,
		VideoRate: &video,
		Languages: []string{"hindi", "english"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), updated.ChatRate)
	assert.Equal(t, int64(10), updated.VoiceRate)
	assert.Equal(t, int64(25), updated.VideoRate)
	assert.Len(t, updated.Languages, 2)

	negative := int64(-1)
	_, err = svc.UpdateRates(context.Background(), host.ID, UpdateRatesInput{ChatRate: &negative})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidAmount))
}

func TestUpdateRatesRejectsNonHost(t *testing.T) {
	repo := newStubAccountsRepo()
	svc, err := NewService(repo)
	require.NoError(t, err)

	user := &models.Account{ID: uuid.New(), Role: enums.AccountRoleUser, Status: enums.AccountStatusActive, Phone: "+917777777777"}
	repo.add(user)

	rate := int64(10)
	_, err = svc.UpdateRates(context.Background(), user.ID, UpdateRatesInput{ChatRate: &rate})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func TestUpdatePayoutDetails(t *testing.T) {
	repo := newStubAccountsRepo()
	svc, err := NewService(repo)
	require.NoError(t, err)
	host := newHost(repo)

	_, err = svc.UpdatePayoutDetails(context.Background(), host.ID, dbtypes.PayoutDetails{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	updated, err := svc.UpdatePayoutDetails(context.Background(), host.ID, dbtypes.PayoutDetails{
		HolderName:    "Host Name",
		AccountNumber: "000111222333",
		IFSC:          "HDFC0000123",
		BankName:      "HDFC",
	})
	require.NoError(t, err)
	require.True(t, updated.HasPayoutDetails())
}

func TestDeactivate(t *testing.T) {
	repo := newStubAccountsRepo()
	svc, err := NewService(repo)
	require.NoError(t, err)
	host := newHost(repo)

	require.NoError(t, svc.Deactivate(context.Background(), host.ID))
	assert.Equal(t, enums.AccountStatusDeactivated, repo.byID[host.ID].Status)

	err = svc.Deactivate(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
