/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/fleetsign/fleetsign/internal/auth"
	"github.com/fleetsign/fleetsign/internal/models"
)

const tokenTTL = 24 * time.Hour

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TerminalID string `json:"terminal_id,omitempty"`
}

type loginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// Login authenticates a user and issues a JWT. Terminal accounts include
// their terminal id in the token and are marked online.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		a.respondError(w, http.StatusBadRequest, "email and password required")
		return
	}

	var user models.User
	if err := a.db.WithContext(r.Context()).Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			a.respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		a.logger.Error().Err(err).Msg("login user lookup failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		a.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	claims := auth.Claims{UserID: user.ID, Role: string(user.Role)}
	if user.Role == models.RoleTerminal {
		claims.TerminalID = req.TerminalID
	}

	token, err := auth.Issue(a.jwtSecret, claims, tokenTTL)
	if err != nil {
		a.logger.Error().Err(err).Msg("token issue failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if claims.TerminalID != "" {
		a.presence.MarkOnline(r.Context(), claims.TerminalID)
	}

	a.logger.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("login")
	a.respondJSON(w, http.StatusOK, loginResponse{Token: token, Role: string(user.Role)})
}

// Logout marks a terminal offline. For admin sessions it is a no-op on the
// server; the client discards its token.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		a.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if claims.TerminalID != "" {
		a.presence.MarkOffline(r.Context(), claims.TerminalID)
	}

	a.respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
