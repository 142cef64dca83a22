package listings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchByMLSIDReturnsFirstRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Property", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("$filter"), "384921")
		assert.Equal(t, "Bearer reso-key", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{"PropertyID": "384921", "ListPrice": 450000},
				{"PropertyID": "384921", "ListPrice": 999999},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(context.Background(), Config{Endpoint: srv.URL, APIKey: "reso-key"}, 0)
	listing, err := client.FetchByMLSID(context.Background(), "384921")
	require.NoError(t, err)
	require.NotNil(t, listing)
	assert.Equal(t, float64(450000), listing["ListPrice"])
}

func TestFetchByMLSIDNoMatchReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"value": []any{}})
	}))
	defer srv.Close()

	client := NewClient(context.Background(), Config{Endpoint: srv.URL}, 0)
	listing, err := client.FetchByMLSID(context.Background(), "000")
	require.NoError(t, err)
	assert.Nil(t, listing)
}

func TestFetchByMLSIDServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(context.Background(), Config{Endpoint: srv.URL}, 0)
	_, err := client.FetchByMLSID(context.Background(), "123")
	assert.Error(t, err)
}

func TestFetchByMLSIDMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewClient(context.Background(), Config{Endpoint: srv.URL}, 0)
	_, err := client.FetchByMLSID(context.Background(), "123")
	assert.Error(t, err)
}
