package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteApprovalError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteApprovalError(rec, "Your landlord account is not approved yet", "PENDING")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "PENDING", body["approvalStatus"])
}

func TestWriteErrorOmitsApprovalStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusForbidden, "Access denied")

	body := decode(t, rec)
	_, present := body["approvalStatus"]
	assert.False(t, present)
}

func TestWriteInternalErrorVerbosity(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteInternalError(rec, errors.New("pq: connection refused"), false)
	body := decode(t, rec)
	_, present := body["detail"]
	assert.False(t, present)

	rec = httptest.NewRecorder()
	WriteInternalError(rec, errors.New("pq: connection refused"), true)
	body = decode(t, rec)
	assert.Equal(t, "pq: connection refused", body["detail"])
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteSuccess(rec, map[string]string{"hello": "world"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
}
