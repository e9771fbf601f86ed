package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/sources", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{"items":[]}}`)
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig(srv.URL)
	resp, err := api.Get("/sources")
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(resp.Data))
}

func TestAPIClient_Post(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req ScrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://docs.example.com", req.URL)

		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"data":{"url":"https://docs.example.com","status":"queued"}}`)
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig(srv.URL)
	resp, err := api.Post("/scrape", ScrapeRequest{URL: "https://docs.example.com"})
	require.NoError(t, err)

	var status ScrapeStatus
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.Equal(t, "queued", status.Status)
}

func TestAPIClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"error":"a crawl for this source is already running"}`)
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig(srv.URL)
	_, err := api.Post("/scrape", ScrapeRequest{URL: "https://docs.example.com"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "already running")
}

func TestAPIClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig(srv.URL)
	_, err := api.Get("/sources")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestAPIClient_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig(srv.URL)
	resp, err := api.Delete("/sessions/sess-1")
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
}
