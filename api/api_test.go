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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/consent-lineage/consent-sync-service/engine"
	"github.com/consent-lineage/consent-sync-service/lineage"
	"github.com/consent-lineage/consent-sync-service/policy"
	"github.com/consent-lineage/consent-sync-service/store"
)

func testWrapper() (*Wrapper, *lineage.MemoryLog) {
	log := lineage.NewMemoryLog()
	e := engine.New(store.NewMemoryStore(), store.NewTTLDedup(), policy.PurposeMatrix{}, log)
	return &Wrapper{Engine: e}, log
}

func syncCall(t *testing.T, wrapper *Wrapper, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, SyncPath, strings.NewReader(body))
	request.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	recorder := httptest.NewRecorder()
	ctx := echo.New().NewContext(request, recorder)
	return recorder, wrapper.SyncConsent(ctx)
}

func TestWrapper_SyncConsent(t *testing.T) {

	t.Run("a first submission is acknowledged with a granted decision", func(t *testing.T) {
		wrapper, log := testWrapper()

		recorder, err := syncCall(t, wrapper, `{"consentString":"abc123","timestamp":"2024-10-24T11:01:00Z","deviceId":"1234-5678-ABCD"}`)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, recorder.Code)

		var response SyncResponse
		assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.Equal(t, StatusSuccess, response.Status)
		assert.Equal(t, "granted", response.Decision)

		entries := log.Entries()
		if assert.Len(t, entries, 1) {
			assert.Equal(t, "Access granted", entries[0].Result)
			assert.Equal(t, "1234-5678-ABCD", entries[0].UserID)
			assert.Equal(t, "abc123", entries[0].ConsentString)
		}
	})

	t.Run("it handles a missing consentString", func(t *testing.T) {
		wrapper, _ := testWrapper()

		recorder, err := syncCall(t, wrapper, `{"timestamp":"2024-10-24T11:01:00Z","deviceId":"1234-5678-ABCD"}`)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.JSONEq(t, `{"error": "Missing required fields."}`, recorder.Body.String())
	})

	t.Run("it handles a missing timestamp", func(t *testing.T) {
		wrapper, _ := testWrapper()

		recorder, err := syncCall(t, wrapper, `{"consentString":"abc123","deviceId":"1234-5678-ABCD"}`)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.JSONEq(t, `{"error": "Missing required fields."}`, recorder.Body.String())
	})

	t.Run("it handles a missing deviceId", func(t *testing.T) {
		wrapper, _ := testWrapper()

		recorder, err := syncCall(t, wrapper, `{"consentString":"abc123","timestamp":"2024-10-24T11:01:00Z"}`)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.JSONEq(t, `{"error": "Missing required fields."}`, recorder.Body.String())
	})

	t.Run("it refuses a non RFC3339 timestamp", func(t *testing.T) {
		wrapper, _ := testWrapper()

		recorder, err := syncCall(t, wrapper, `{"consentString":"abc123","timestamp":"1729767660","deviceId":"1234-5678-ABCD"}`)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)

		var response SyncResponse
		assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.Equal(t, StatusFailure, response.Status)
	})

	t.Run("a retransmission is acknowledged as a duplicate", func(t *testing.T) {
		wrapper, log := testWrapper()
		body := `{"consentString":"abc123","timestamp":"2024-10-24T11:01:00Z","deviceId":"1234-5678-ABCD","requestAt":"2024-10-24T11:02:00Z"}`

		first, err := syncCall(t, wrapper, body)
		assert.NoError(t, err)
		recorder, err := syncCall(t, wrapper, body)
		assert.NoError(t, err)

		assert.Equal(t, http.StatusOK, recorder.Code)
		var firstResponse, response SyncResponse
		assert.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResponse))
		assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.Equal(t, engine.ResultDuplicate, response.Message)
		// The duplicate answer repeats the authoritative validated_at.
		assert.Equal(t, firstResponse.ValidatedAt, response.ValidatedAt)
		assert.Len(t, log.Entries(), 2)
	})

	t.Run("a stale submission is refused as superseded", func(t *testing.T) {
		wrapper, _ := testWrapper()

		_, err := syncCall(t, wrapper, `{"consentString":"abc123","timestamp":"2024-10-24T11:01:00Z","deviceId":"1234-5678-ABCD"}`)
		assert.NoError(t, err)
		recorder, err := syncCall(t, wrapper, `{"consentString":"old456","timestamp":"2024-10-24T10:00:00Z","deviceId":"1234-5678-ABCD"}`)
		assert.NoError(t, err)

		assert.Equal(t, http.StatusConflict, recorder.Code)
		var response SyncResponse
		assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.Equal(t, StatusFailure, response.Status)
	})
}

func TestWrapper_GetConsent(t *testing.T) {

	getCall := func(t *testing.T, wrapper *Wrapper, deviceID string) (*httptest.ResponseRecorder, error) {
		t.Helper()
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		recorder := httptest.NewRecorder()
		ctx := echo.New().NewContext(request, recorder)
		ctx.SetPath(RecordPath)
		ctx.SetParamNames("deviceId")
		ctx.SetParamValues(deviceID)
		return recorder, wrapper.GetConsent(ctx)
	}

	t.Run("an unknown device yields 404", func(t *testing.T) {
		wrapper, _ := testWrapper()
		recorder, err := getCall(t, wrapper, "1234-5678-ABCD")
		assert.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("a synced device yields its authoritative record", func(t *testing.T) {
		wrapper, _ := testWrapper()
		_, err := syncCall(t, wrapper, `{"consentString":"abc123","timestamp":"2024-10-24T11:01:00Z","deviceId":"1234-5678-ABCD"}`)
		assert.NoError(t, err)

		recorder, err := getCall(t, wrapper, "1234-5678-ABCD")
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"state":"validated"`)
	})
}
