package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chainvault/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Note  string `json:"note,omitempty"`
	Count int    `json:"count"`
}

func TestCheckBlankFields(t *testing.T) {
	assert.NoError(t, CheckBlankFields(sample{Name: "x"}))
	assert.NoError(t, CheckBlankFields(&sample{Name: "x"}))

	err := CheckBlankFields(sample{Name: "  "})
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	assert.Contains(t, err.Error(), "name is required")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var dst sample
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	assert.False(t, DecodeJSON(rec, req, &dst))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","count":2}`))
	require.True(t, DecodeJSON(rec, req, &dst))
	assert.Equal(t, 2, dst.Count)
}
