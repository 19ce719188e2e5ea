package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stylebot/server/internal/domain/billing"
	"github.com/stylebot/server/internal/infra/config"
)

func TestHTTPBackend_Generate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"result_url":"https://cdn/out.png"}`))
	}))
	defer srv.Close()

	b := NewHTTPBackend(srv.Client(), config.BackendConfig{Endpoint: srv.URL + "/", APIKey: "sk-test", Timeout: time.Second})
	url, err := b.Generate(context.Background(), &Request{UserID: 42, Service: billing.ServiceImage, Prompt: "portrait", Style: "ghibli"})

	require.NoError(t, err)
	assert.Equal(t, "https://cdn/out.png", url)
	assert.Equal(t, generateRequest{Prompt: "portrait", Style: "ghibli", User: "42"}, got)
}

func TestHTTPBackend_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"api error", http.StatusBadRequest, `{"error":{"code":"nsfw","message":"rejected"}}`, "backend error nsfw: rejected"},
		{"bad status", http.StatusBadGateway, `<html>`, "unexpected status code: 502"},
		{"empty result", http.StatusOK, `{}`, ErrEmptyResult.Error()},
		{"bad json", http.StatusOK, `not json`, "unmarshal response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			b := NewHTTPBackend(srv.Client(), config.BackendConfig{Endpoint: srv.URL})
			url, err := b.Generate(context.Background(), &Request{UserID: 1})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, url)
		})
	}
}

func TestHTTPBackend_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	b := NewHTTPBackend(srv.Client(), config.BackendConfig{Endpoint: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := b.Generate(context.Background(), &Request{UserID: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
