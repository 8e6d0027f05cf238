package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumea-app/lumea-backend/api/responses"
	"github.com/lumea-app/lumea-backend/api/validators"
	"github.com/lumea-app/lumea-backend/internal/withdrawals"
	"github.com/lumea-app/lumea-backend/pkg/enums"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/logger"
	"github.com/lumea-app/lumea-backend/pkg/pagination"
)

// AdminWithdrawalList is the review queue: all withdrawals, filterable by
// payee, status, and creation window.
func AdminWithdrawalList(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor, err := pagination.ParseCursor(strings.TrimSpace(r.URL.Query().Get("cursor")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := withdrawals.ListParams{
			Limit:  limit,
			Cursor: cursor,
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("payee_id")); raw != "" {
			payeeID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payee id"))
				return
			}
			params.PayeeID = &payeeID
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseWithdrawalStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid withdrawal status"))
				return
			}
			params.Status = &status
		}
		if params.CreatedAfter, err = parseTimeQuery(r, "created_after"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.CreatedBefore, err = parseTimeQuery(r, "created_before"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, next, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := map[string]any{"withdrawals": items}
		if next != nil {
			payload["next_cursor"] = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, payload)
	}
}

type withdrawalProcessBody struct {
	Action          string `json:"action" validate:"required,oneof=approve reject"`
	Reason          string `json:"reason" validate:"omitempty,max=500"`
	PayoutReference string `json:"payout_reference" validate:"omitempty,max=128"`
}

// AdminWithdrawalProcess records the admin decision on a pending withdrawal.
// A rejection refunds the reserved coins in the same transaction.
func AdminWithdrawalProcess(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
			return
		}
		adminID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		withdrawalID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid withdrawal id"))
			return
		}

		var body withdrawalProcessBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		withdrawal, err := svc.Process(r.Context(), withdrawals.ProcessInput{
			WithdrawalID:    withdrawalID,
			AdminID:         adminID,
			Action:          withdrawals.Action(body.Action),
			Reason:          validators.SanitizeString(body.Reason, 500),
			PayoutReference: strings.TrimSpace(body.PayoutReference),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, withdrawal)
	}
}

type withdrawalCompleteBody struct {
	PayoutReference string `json:"payout_reference" validate:"required,min=4,max=128"`
}

// AdminWithdrawalComplete marks a processing withdrawal paid once the bank
// transfer lands, recording the payout reference (UTR).
func AdminWithdrawalComplete(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
			return
		}
		withdrawalID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid withdrawal id"))
			return
		}

		var body withdrawalCompleteBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		withdrawal, err := svc.Complete(r.Context(), withdrawalID, strings.TrimSpace(body.PayoutReference))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, withdrawal)
	}
}

func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key+" timestamp")
	}
	return &ts, nil
}
