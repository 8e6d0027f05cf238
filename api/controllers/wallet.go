package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lumea-app/lumea-backend/api/responses"
	"github.com/lumea-app/lumea-backend/api/validators"
	"github.com/lumea-app/lumea-backend/internal/wallet"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/logger"
	"github.com/lumea-app/lumea-backend/pkg/pagination"
)

// WalletBalance returns the caller's coin balance.
func WalletBalance(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		accountID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.Balance(r.Context(), accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"account_id": account.ID,
			"balance":    account.Balance,
		})
	}
}

// WalletTransactions returns the caller's ledger history, newest first.
func WalletTransactions(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		accountID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		transactions, next, err := svc.Transactions(r.Context(), accountID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := map[string]any{"transactions": transactions}
		if next != nil {
			payload["next_cursor"] = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, payload)
	}
}

// WalletPlans serves the recharge pack catalog.
func WalletPlans(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"plans": wallet.Plans()})
	}
}

type rechargeCallbackBody struct {
	AccountID string `json:"account_id" validate:"required,uuid"`
	PlanID    string `json:"plan_id" validate:"required"`
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// WalletRechargeCallback is the payment gateway's server-to-server
// confirmation. It is unauthenticated; the HMAC signature is the credential.
func WalletRechargeCallback(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		var body rechargeCallbackBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		accountID, err := uuid.Parse(body.AccountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account id"))
			return
		}

		transaction, err := svc.ConfirmRecharge(r.Context(), wallet.ConfirmRechargeInput{
			AccountID: accountID,
			PlanID:    body.PlanID,
			OrderID:   body.OrderID,
			PaymentID: body.PaymentID,
			Signature: body.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"transaction_id": transaction.ID,
			"coins":          transaction.Net,
			"reference":      transaction.Reference,
		})
	}
}
