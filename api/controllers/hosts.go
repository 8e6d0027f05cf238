package controllers

import (
	"net/http"
	"strings"

	"github.com/lumea-app/lumea-backend/api/responses"
	"github.com/lumea-app/lumea-backend/api/validators"
	"github.com/lumea-app/lumea-backend/internal/accounts"
	"github.com/lumea-app/lumea-backend/internal/presence"
	dbtypes "github.com/lumea-app/lumea-backend/pkg/db/types"
	"github.com/lumea-app/lumea-backend/pkg/enums"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/logger"
	"github.com/lumea-app/lumea-backend/pkg/pagination"
)

// HostDirectory lists active hosts with optional service and language filters.
func HostDirectory(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable"))
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

		params := accounts.ListHostsParams{
			Language: validators.SanitizeString(r.URL.Query().Get("language"), 32),
			Limit:    limit,
			Cursor:   cursor,
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("service")); raw != "" {
			serviceType, err := enums.ParseServiceType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid service type"))
				return
			}
			params.Service = &serviceType
		}

		hosts, next, err := svc.ListHosts(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := map[string]any{"hosts": hosts}
		if next != nil {
			payload["next_cursor"] = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, payload)
	}
}

type hostRatesBody struct {
	ChatRate  *int64   `json:"chat_rate" validate:"omitempty,min=1,max=1000"`
	VoiceRate *int64   `json:"voice_rate" validate:"omitempty,min=1,max=1000"`
	VideoRate *int64   `json:"video_rate" validate:"omitempty,min=1,max=1000"`
	Languages []string `json:"languages" validate:"omitempty,max=10,dive,min=2,max=32"`
	Bio       *string  `json:"bio" validate:"omitempty,max=500"`
}

// HostUpdateRates lets a host adjust their per-minute rate card. Rate changes
// apply to new sessions only.
func HostUpdateRates(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable"))
			return
		}
		hostID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body hostRatesBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.UpdateRates(r.Context(), hostID, accounts.UpdateRatesInput{
			ChatRate:  body.ChatRate,
			VoiceRate: body.VoiceRate,
			VideoRate: body.VideoRate,
			Languages: body.Languages,
			Bio:       body.Bio,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}

type hostPayoutDetailsBody struct {
	HolderName    string  `json:"holder_name" validate:"required,min=2,max=128"`
	AccountNumber string  `json:"account_number" validate:"required,min=6,max=24"`
	IFSC          string  `json:"ifsc" validate:"required,len=11"`
	BankName      string  `json:"bank_name" validate:"required,min=2,max=128"`
	UPIID         *string `json:"upi_id" validate:"omitempty,max=128"`
}

// HostUpdatePayoutDetails captures the bank destination withdrawals pay to.
func HostUpdatePayoutDetails(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable"))
			return
		}
		hostID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body hostPayoutDetailsBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.UpdatePayoutDetails(r.Context(), hostID, dbtypes.PayoutDetails{
			HolderName:    strings.TrimSpace(body.HolderName),
			AccountNumber: strings.TrimSpace(body.AccountNumber),
			IFSC:          strings.ToUpper(strings.TrimSpace(body.IFSC)),
			BankName:      strings.TrimSpace(body.BankName),
			UPIID:         body.UPIID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}

type presenceHeartbeatBody struct {
	Status string `json:"status" validate:"required,oneof=online busy offline"`
}

// HostPresenceHeartbeat refreshes the host's availability flag. Missing two
// heartbeats in a row drops the host out of the directory.
func HostPresenceHeartbeat(svc presence.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "presence service unavailable"))
			return
		}
		hostID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body presenceHeartbeatBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParsePresenceStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid presence status"))
			return
		}

		if err := svc.Heartbeat(r.Context(), hostID, status); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": status})
	}
}
