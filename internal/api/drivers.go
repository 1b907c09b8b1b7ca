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

type driverRequest struct {
	Name       string `json:"name"`
	Vehicle    string `json:"vehicle"`
	Phone      string `json:"phone"`
	TerminalID string `json:"terminal_id"`
}

// DriverList returns all drivers ordered by name.
func (a *API) DriverList(w http.ResponseWriter, r *http.Request) {
	var drivers []models.Driver
	if err := a.db.WithContext(r.Context()).Order("name").Find(&drivers).Error; err != nil {
		a.logger.Error().Err(err).Msg("driver list failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.respondJSON(w, http.StatusOK, drivers)
}

// DriverCreate registers a new driver.
func (a *API) DriverCreate(w http.ResponseWriter, r *http.Request) {
	var req driverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		a.respondError(w, http.StatusBadRequest, "name required")
		return
	}

	driver := models.Driver{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Vehicle:    req.Vehicle,
		Phone:      req.Phone,
		TerminalID: req.TerminalID,
	}

	if err := a.db.WithContext(r.Context()).Create(&driver).Error; err != nil {
		a.logger.Error().Err(err).Msg("driver create failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.respondJSON(w, http.StatusCreated, driver)
}

// DriverGet returns one driver by id.
func (a *API) DriverGet(w http.ResponseWriter, r *http.Request) {
	var driver models.Driver
	err := a.db.WithContext(r.Context()).First(&driver, "id = ?", chi.URLParam(r, "id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			a.respondError(w, http.StatusNotFound, "driver not found")
			return
		}
		a.logger.Error().Err(err).Msg("driver get failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.respondJSON(w, http.StatusOK, driver)
}

// DriverUpdate overwrites a driver's profile fields.
func (a *API) DriverUpdate(w http.ResponseWriter, r *http.Request) {
	var driver models.Driver
	err := a.db.WithContext(r.Context()).First(&driver, "id = ?", chi.URLParam(r, "id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			a.respondError(w, http.StatusNotFound, "driver not found")
			return
		}
		a.logger.Error().Err(err).Msg("driver get failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var req driverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != "" {
		driver.Name = req.Name
	}
	if req.Vehicle != "" {
		driver.Vehicle = req.Vehicle
	}
	if req.Phone != "" {
		driver.Phone = req.Phone
	}
	if req.TerminalID != "" {
		driver.TerminalID = req.TerminalID
	}

	if err := a.db.WithContext(r.Context()).Save(&driver).Error; err != nil {
		a.logger.Error().Err(err).Msg("driver update failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.respondJSON(w, http.StatusOK, driver)
}

// DriverDelete removes a driver record.
func (a *API) DriverDelete(w http.ResponseWriter, r *http.Request) {
	result := a.db.WithContext(r.Context()).Delete(&models.Driver{}, "id = ?", chi.URLParam(r, "id"))
	if result.Error != nil {
		a.logger.Error().Err(result.Error).Msg("driver delete failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if result.RowsAffected == 0 {
		a.respondError(w, http.StatusNotFound, "driver not found")
		return
	}
	a.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
