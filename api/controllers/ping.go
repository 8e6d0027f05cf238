package controllers

import (
	"net/http"

	"github.com/lumea-app/lumea-backend/api/middleware"
	"github.com/lumea-app/lumea-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if account := middleware.AccountIDFromContext(r.Context()); account != "" {
			payload["account_id"] = account
		}
		responses.WriteSuccess(w, payload)
	}
}

func AdminPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "admin", "status": "ok"}
		if account := middleware.AccountIDFromContext(r.Context()); account != "" {
			payload["account_id"] = account
		}
		responses.WriteSuccess(w, payload)
	}
}
