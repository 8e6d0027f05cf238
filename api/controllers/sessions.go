package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumea-app/lumea-backend/api/responses"
	"github.com/lumea-app/lumea-backend/api/validators"
	"github.com/lumea-app/lumea-backend/internal/sessions"
	"github.com/lumea-app/lumea-backend/pkg/enums"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/logger"
	"github.com/lumea-app/lumea-backend/pkg/pagination"
)

type sessionStartBody struct {
	PayeeID     string `json:"payee_id" validate:"required,uuid"`
	ServiceType string `json:"service_type" validate:"required,oneof=chat voice video"`
}

// SessionStart opens a metered session from the caller to a host.
func SessionStart(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}
		payerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body sessionStartBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payeeID, err := uuid.Parse(body.PayeeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payee id"))
			return
		}
		serviceType, err := enums.ParseServiceType(body.ServiceType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid service type"))
			return
		}

		session, err := svc.Start(r.Context(), sessions.StartInput{
			PayerID:     payerID,
			PayeeID:     payeeID,
			ServiceType: serviceType,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// SessionEnd settles an active session initiated by either participant.
func SessionEnd(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}
		accountID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid session id"))
			return
		}

		outcome, err := svc.End(r.Context(), sessions.EndInput{
			SessionID: sessionID,
			ActorID:   accountID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"session":         outcome.Session,
			"result":          outcome.Result,
			"billed_units":    outcome.BilledUnits,
			"shortfall_units": outcome.ShortfallUnits,
			"gross":           outcome.Gross,
			"commission":      outcome.Commission,
			"net":             outcome.Net,
			"transaction_id":  outcome.TransactionID,
		})
	}
}

// SessionCancel voids a session before any billable unit elapses.
func SessionCancel(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}
		accountID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid session id"))
			return
		}

		session, err := svc.Cancel(r.Context(), sessionID, accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// SessionHistory lists the caller's sessions, newest first. Accepts an
// optional status filter.
func SessionHistory(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
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
		cursor, err := pagination.ParseCursor(strings.TrimSpace(r.URL.Query().Get("cursor")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := sessions.ListSessionsParams{
			AccountID: accountID,
			Limit:     limit,
			Cursor:    cursor,
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseSessionStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid session status"))
				return
			}
			params.Status = &status
		}

		items, next, err := svc.History(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := map[string]any{"sessions": items}
		if next != nil {
			payload["next_cursor"] = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, payload)
	}
}
