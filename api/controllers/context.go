package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/lumea-app/lumea-backend/api/middleware"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
)

// actorID resolves the authenticated account from the request context.
func actorID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.AccountIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing account context")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid account context")
	}
	return id, nil
}
