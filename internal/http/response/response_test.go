package response_test

import (
	"encoding/json/v2"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	domainerrors "github.com/pagemark/pagemark-server/internal/errors"
	"github.com/pagemark/pagemark-server/internal/http/response"
	"github.com/pagemark/pagemark-server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Success(rec, map[string]string{"key": "value"}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	envelope := decodeEnvelope(t, rec)
	assert.True(t, envelope.Success)
	assert.Empty(t, envelope.Error)
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Error(rec, http.StatusBadRequest, "bad input", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.False(t, envelope.Success)
	assert.Equal(t, "bad input", envelope.Error)
}

func TestNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	response.NoContent(rec)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestHandleErrorMapsStoreErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	response.HandleError(rec, store.ErrNotFound.WithMessage("event missing"), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "event missing", envelope.Error)
}

func TestHandleErrorMapsDomainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	response.HandleError(rec, domainerrors.Validation("surface_id is required"), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "surface_id is required", envelope.Error)
}

func TestHandleErrorUnknownBecomes500(t *testing.T) {
	rec := httptest.NewRecorder()
	response.HandleError(rec, errors.New("boom"), nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "internal server error", envelope.Error)
}
