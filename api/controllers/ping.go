package controllers

import (
	"net/http"

	"github.com/streampass/streampass-backend/api/middleware"
	"github.com/streampass/streampass-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if viewer := middleware.ViewerIDFromContext(r.Context()); viewer != "" {
			payload["viewer_id"] = viewer
		}
		responses.WriteSuccess(w, payload)
	}
}
