package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lumea-app/lumea-backend/api/responses"
	"github.com/lumea-app/lumea-backend/api/validators"
	"github.com/lumea-app/lumea-backend/internal/gifts"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/logger"
	"github.com/lumea-app/lumea-backend/pkg/pagination"
)

// GiftCatalog lists the active gifts, optionally filtered by category.
func GiftCatalog(svc gifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gift service unavailable"))
			return
		}

		category := validators.SanitizeString(r.URL.Query().Get("category"), 64)
		items, err := svc.List(r.Context(), category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"gifts": items})
	}
}

type giftSendBody struct {
	PayeeID        string  `json:"payee_id" validate:"required,uuid"`
	GiftID         string  `json:"gift_id" validate:"required,uuid"`
	Quantity       int64   `json:"quantity" validate:"omitempty,min=1,max=100"`
	SessionID      *string `json:"session_id" validate:"omitempty,uuid"`
	IdempotencyKey string  `json:"idempotency_key" validate:"required,min=8,max=128"`
}

// GiftSend purchases and settles a gift in one step.
func GiftSend(svc gifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gift service unavailable"))
			return
		}
		payerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body giftSendBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payeeID, err := uuid.Parse(body.PayeeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payee id"))
			return
		}
		giftID, err := uuid.Parse(body.GiftID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gift id"))
			return
		}

		input := gifts.SendInput{
			PayerID:        payerID,
			PayeeID:        payeeID,
			GiftID:         giftID,
			Quantity:       body.Quantity,
			IdempotencyKey: strings.TrimSpace(body.IdempotencyKey),
		}
		if body.SessionID != nil {
			sessionID, err := uuid.Parse(*body.SessionID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid session id"))
				return
			}
			input.SessionID = &sessionID
		}

		result, err := svc.Send(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"gift":        result.Gift,
			"transaction": result.Transaction,
			"quantity":    result.Quantity,
		})
	}
}

// GiftHistory lists gift transactions the caller sent or received.
func GiftHistory(svc gifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gift service unavailable"))
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

		transactions, next, err := svc.History(r.Context(), accountID, params)
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
