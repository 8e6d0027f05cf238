package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumea-app/lumea-backend/api/responses"
	"github.com/lumea-app/lumea-backend/api/validators"
	"github.com/lumea-app/lumea-backend/internal/wallet"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/logger"
)

type balanceAdjustBody struct {
	Delta  int64  `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// AdminBalanceAdjust applies a manual coin correction to an account, recorded
// as a manual_adjustment transaction attributed to the acting admin.
func AdminBalanceAdjust(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		adminID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		accountID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account id"))
			return
		}

		var body balanceAdjustBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transaction, err := svc.Adjust(r.Context(), wallet.AdjustInput{
			AccountID: accountID,
			AdminID:   adminID,
			Delta:     body.Delta,
			Reason:    validators.SanitizeString(body.Reason, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"transaction_id": transaction.ID,
			"account_id":     accountID,
			"delta":          body.Delta,
		})
	}
}
