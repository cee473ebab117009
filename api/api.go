/*
 *  Consent sync service tracks the lineage of consent decisions
 *  Copyright (C) 2021 Consent lineage community
 *
 *  This program is free software: you can redistribute it and/or modify
 *  it under the terms of the GNU General Public License as published by
 *  the Free Software Foundation, either version 3 of the License, or
 *  (at your option) any later version.
 *
 *  This program is distributed in the hope that it will be useful,
 *  but WITHOUT ANY WARRANTY; without even the implied warranty of
 *  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 *  GNU General Public License for more details.
 *
 *  You should have received a copy of the GNU General Public License
 *  along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/consent-lineage/consent-sync-service/domain"
	"github.com/consent-lineage/consent-sync-service/engine"
)

// Wrapper binds the HTTP surface to the validity engine.
type Wrapper struct {
	Engine *engine.Engine
	// RequestedScopes are the purposes this deployment asks consent
	// for; the scope matrix checks them against each payload.
	RequestedScopes []string
}

// EchoRouter is the minimal router surface the handlers need.
type EchoRouter interface {
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

func RegisterHandlers(router EchoRouter, wrapper *Wrapper) {
	router.POST(SyncPath, wrapper.SyncConsent)
	router.GET(RecordPath, wrapper.GetConsent)
}

// SyncConsent receives one submission attempt, converts the wire form to
// the internal record and hands it to the validity engine.
func (wrapper *Wrapper) SyncConsent(ctx echo.Context) error {
	syncRequest := &SyncRequest{}
	if err := ctx.Bind(syncRequest); err != nil {
		ctx.Logger().Error("Could not unmarshal json body:", err)
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing required fields."})
	}

	if syncRequest.ConsentString == "" || syncRequest.Timestamp == "" || syncRequest.DeviceID == "" {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing required fields."})
	}

	record, err := apiRequest2Internal(*syncRequest)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, SyncResponse{
			Status:  StatusFailure,
			Message: "timestamps must be RFC3339 UTC",
		})
	}

	result, err := wrapper.Engine.Receive(ctx.Request().Context(), record, wrapper.RequestedScopes)
	if err != nil {
		return failure(ctx, err)
	}

	message := engine.ResultGranted
	switch {
	case result.Duplicate:
		message = engine.ResultDuplicate
	case result.Reconsent:
		message = engine.ResultExpired
	case result.Decision != domain.DecisionGranted:
		message = engine.ResultDenied
	}

	return ctx.JSON(http.StatusOK, SyncResponse{
		Status:      StatusSuccess,
		Message:     message,
		Decision:    string(result.Decision),
		ValidatedAt: result.Record.ValidatedAt.UTC().Format(time.RFC3339),
	})
}

// GetConsent returns the authoritative record for a device.
func (wrapper *Wrapper) GetConsent(ctx echo.Context) error {
	record, exists, err := wrapper.Engine.Authoritative(ctx.Request().Context(), ctx.Param("deviceId"))
	if err != nil {
		return failure(ctx, err)
	}
	if !exists {
		return ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "no consent record for device"})
	}
	return ctx.JSON(http.StatusOK, record)
}

func failure(ctx echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrMissingField):
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing required fields."})
	case errors.Is(err, domain.ErrInvalidTimestamp):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSuperseded):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrValidityCheckFailed):
		status = http.StatusUnprocessableEntity
	}
	return ctx.JSON(status, SyncResponse{Status: StatusFailure, Message: err.Error()})
}

// Convert the public wire type to the internal record. The conversion
// refuses anything that is not RFC3339; epoch or local-time formats never
// cross this boundary.
func apiRequest2Internal(request SyncRequest) (domain.ConsentRecord, error) {
	createdAt, err := time.Parse(time.RFC3339, request.Timestamp)
	if err != nil {
		return domain.ConsentRecord{}, err
	}
	record := domain.NewConsentRecord(request.DeviceID, []byte(request.ConsentString), createdAt)
	record.State = domain.StateSubmitted

	if request.StoredAt != "" {
		storedAt, err := time.Parse(time.RFC3339, request.StoredAt)
		if err != nil {
			return domain.ConsentRecord{}, err
		}
		record.StoredAt = storedAt.UTC()
	}

	if request.RequestAt != "" {
		requestAt, err := time.Parse(time.RFC3339, request.RequestAt)
		if err != nil {
			return domain.ConsentRecord{}, err
		}
		record.RequestAt = requestAt.UTC()
	} else {
		record.RequestAt = domain.TimeNow()
	}
	return record, nil
}
