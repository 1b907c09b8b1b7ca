/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fleetsign/fleetsign/internal/models"
)

type advertiserRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Plan   string `json:"plan"`
	Active *bool  `json:"active,omitempty"`
}

// AdvertiserList returns all advertisers ordered by name.
func (a *API) AdvertiserList(w http.ResponseWriter, r *http.Request) {
	var advertisers []models.Advertiser
	if err := a.db.WithContext(r.Context()).Order("name").Find(&advertisers).Error; err != nil {
		a.logger.Error().Err(err).Msg("advertiser list failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.respondJSON(w, http.StatusOK, advertisers)
}

// AdvertiserCreate registers a new advertiser.
func (a *API) AdvertiserCreate(w http.ResponseWriter, r *http.Request) {
	var req advertiserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		a.respondError(w, http.StatusBadRequest, "name required")
		return
	}

	advertiser := models.Advertiser{
		ID:     uuid.NewString(),
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Plan:   req.Plan,
		Active: true,
	}
	if req.Active != nil {
		advertiser.Active = *req.Active
	}

	if err := a.db.WithContext(r.Context()).Create(&advertiser).Error; err != nil {
		a.logger.Error().Err(err).Msg("advertiser create failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.respondJSON(w, http.StatusCreated, advertiser)
}

// AdvertiserGet returns one advertiser by id.
func (a *API) AdvertiserGet(w http.ResponseWriter, r *http.Request) {
	var advertiser models.Advertiser
	err := a.db.WithContext(r.Context()).First(&advertiser, "id = ?", chi.URLParam(r, "id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			a.respondError(w, http.StatusNotFound, "advertiser not found")
			return
		}
		a.logger.Error().Err(err).Msg("advertiser get failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.respondJSON(w, http.StatusOK, advertiser)
}

// AdvertiserUpdate overwrites an advertiser's profile fields.
func (a *API) AdvertiserUpdate(w http.ResponseWriter, r *http.Request) {
	var advertiser models.Advertiser
	err := a.db.WithContext(r.Context()).First(&advertiser, "id = ?", chi.URLParam(r, "id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			a.respondError(w, http.StatusNotFound, "advertiser not found")
			return
		}
		a.logger.Error().Err(err).Msg("advertiser get failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var req advertiserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != "" {
		advertiser.Name = req.Name
	}
	if req.Email != "" {
		advertiser.Email = req.Email
	}
	if req.Phone != "" {
		advertiser.Phone = req.Phone
	}
	if req.Plan != "" {
		advertiser.Plan = req.Plan
	}
	if req.Active != nil {
		advertiser.Active = *req.Active
	}

	if err := a.db.WithContext(r.Context()).Save(&advertiser).Error; err != nil {
		a.logger.Error().Err(err).Msg("advertiser update failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.respondJSON(w, http.StatusOK, advertiser)
}

// AdvertiserDelete removes an advertiser record. Playlist entries labeled
// with them are untouched.
func (a *API) AdvertiserDelete(w http.ResponseWriter, r *http.Request) {
	result := a.db.WithContext(r.Context()).Delete(&models.Advertiser{}, "id = ?", chi.URLParam(r, "id"))
	if result.Error != nil {
		a.logger.Error().Err(result.Error).Msg("advertiser delete failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if result.RowsAffected == 0 {
		a.respondError(w, http.StatusNotFound, "advertiser not found")
		return
	}
	a.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
