package binder_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/storefront/pkg/binder"
)

type checkoutRequest struct {
	OrderID string   `json:"orderId"`
	Tags    []string `json:"tags"`
}

func newJSONRequest(body, contentType string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	return r
}

func TestJSON(t *testing.T) {
	t.Parallel()
	bind := binder.JSON()

	t.Run("decodes and trims", func(t *testing.T) {
		t.Parallel()
		var req checkoutRequest
		err := bind(newJSONRequest(`{"orderId":"  abc ","tags":[" x "]}`, "application/json; charset=utf-8"), &req)
		require.NoError(t, err)
		assert.Equal(t, "abc", req.OrderID)
		assert.Equal(t, []string{"x"}, req.Tags)
	})

	tests := []struct {
		name        string
		body        string
		contentType string
		wantErr     error
	}{
		{name: "missing content type", body: `{}`, wantErr: binder.ErrMissingContentType},
		{name: "wrong media type", body: `{}`, contentType: "text/plain", wantErr: binder.ErrUnsupportedMediaType},
		{name: "unknown field", body: `{"price":1}`, contentType: "application/json", wantErr: binder.ErrFailedToParseJSON},
		{name: "empty body", body: ``, contentType: "application/json", wantErr: binder.ErrFailedToParseJSON},
		{name: "trailing data", body: `{"orderId":"a"}{}`, contentType: "application/json", wantErr: binder.ErrFailedToParseJSON},
		{name: "too large", body: `{"orderId":"` + strings.Repeat("a", binder.DefaultMaxJSONSize) + `"}`, contentType: "application/json", wantErr: binder.ErrFailedToParseJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var req checkoutRequest
			err := bind(newJSONRequest(tt.body, tt.contentType), &req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPath(t *testing.T) {
	t.Parallel()

	type orderPath struct {
		ID    string `path:"id"`
		Other string
	}

	r := httptest.NewRequest(http.MethodGet, "/orders/o-1", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "o-1")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	var req orderPath
	require.NoError(t, binder.Path()(r, &req))
	assert.Equal(t, "o-1", req.ID)
	assert.Empty(t, req.Other)

	var notStruct string
	assert.ErrorIs(t, binder.Path()(r, &notStruct), binder.ErrFailedToParsePath)
}
