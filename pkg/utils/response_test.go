package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondServerErrorHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondServerError(rec, "Server error", errors.New("db down"), false)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Server error", body["message"])
	assert.NotContains(t, body, "error")
}

func TestRespondServerErrorExposesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondServerError(rec, "Server error", errors.New("db down"), true)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "db down", body["error"])
}
