// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for the content API.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/olegiv/ocms-pages/internal/service"
)

// Request headers identifying the caller.
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderActorID  = "X-Actor-ID"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyActor is the context key for the resolved service.Actor.
const ContextKeyActor ContextKey = "actor"

// APIError represents a JSON error response for the API.
type APIError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// WriteAPIError writes a JSON error response.
func WriteAPIError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	apiErr := APIError{}
	apiErr.Error.Code = code
	apiErr.Error.Message = message

	_ = json.NewEncoder(w).Encode(apiErr)
}

// RequireActor resolves the tenant and actor from request headers and
// rejects the request with 400 when either is missing.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := service.Actor{
			TenantID: strings.TrimSpace(r.Header.Get(HeaderTenantID)),
			ActorID:  strings.TrimSpace(r.Header.Get(HeaderActorID)),
		}
		switch {
		case actor.TenantID == "":
			WriteAPIError(w, http.StatusBadRequest, "bad_request", "Missing "+HeaderTenantID+" header")
			return
		case actor.ActorID == "":
			WriteAPIError(w, http.StatusBadRequest, "bad_request", "Missing "+HeaderActorID+" header")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyActor, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetActor returns the actor stored by RequireActor.
func GetActor(r *http.Request) (service.Actor, bool) {
	actor, ok := r.Context().Value(ContextKeyActor).(service.Actor)
	return actor, ok
}
