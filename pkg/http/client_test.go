package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "churnscope-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "7", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":"2026.10.1"}`))
	}))
	defer srv.Close()

	c := NewClient(WithUserAgent("churnscope-test"))
	var out struct {
		Version string `json:"version"`
	}
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL,
		QueryParams: map[string][]string{"limit": {"7"}},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "2026.10.1", out.Version)

	var raw []byte
	require.NoError(t, c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, &raw))
	assert.JSONEq(t, `{"version":"2026.10.1"}`, string(raw))
}

func TestClientRejectsErrorsAndOversizedBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	c := NewClient(WithMaxBodyBytes(16))
	var raw []byte

	err := c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL + "/missing"}, &raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	err = c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL + "/big"}, &raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}
