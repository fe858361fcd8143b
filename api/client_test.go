package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sibylline/appkit/api"
	"github.com/stretchr/testify/require"
)

func TestClient_Get(t *testing.T) {
	t.Run("ok envelope returns data", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/members/7", r.URL.Path)
			require.Equal(t, "full", r.URL.Query().Get("mode"))
			w.Write([]byte(`{"status":"OK","data":{"id":7,"name":"alice"}}`))
		}))
		defer server.Close()

		client := api.New(server.URL)
		data, err := client.Get(context.Background(), "members/7", map[string]string{"mode": "full"})
		require.NoError(t, err)

		record, ok := data.(map[string]any)
		require.True(t, ok)
		require.Equal(t, "alice", record["name"])
	})

	t.Run("failure envelope surfaces message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"KO","message":"membre inconnu"}`))
		}))
		defer server.Close()

		client := api.New(server.URL)
		_, err := client.Get(context.Background(), "members/7", nil)
		require.Error(t, err)

		var apiErr *api.Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "KO", apiErr.Status)
		require.Contains(t, apiErr.Error(), "membre inconnu")
	})

	t.Run("http error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := api.New(server.URL)
		_, err := client.Get(context.Background(), "members", nil)

		var apiErr *api.Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusBadGateway, apiErr.HTTPCode)
	})
}

func TestClient_Headers(t *testing.T) {
	var gotAuth, gotStructure string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotStructure = r.Header.Get("Structure")
		w.Write([]byte(`{"status":"OK","data":[]}`))
	}))
	defer server.Close()

	client := api.New(server.URL)
	client.SetBearerToken("jwt-token")
	client.SetStructure("42")

	_, err := client.Get(context.Background(), "members", nil)
	require.NoError(t, err)
	require.Equal(t, "jwt-token", gotAuth)
	require.Equal(t, "42", gotStructure)

	client.ClearBearerToken()
	client.ClearStructure()

	_, err = client.Get(context.Background(), "members", nil)
	require.NoError(t, err)
	require.Empty(t, gotAuth)
	require.Empty(t, gotStructure)
}

func TestClient_PostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "1", r.URL.Query().Get("api_hierarchy"))
		require.NoError(t, r.ParseForm())
		require.Equal(t, "alice", r.PostFormValue("name"))
		require.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded"))
		w.Write([]byte(`{"status":"OK","data":{"id":7,"name":"alice"}}`))
	}))
	defer server.Close()

	client := api.New(server.URL)
	data, err := client.PostForm(context.Background(), "members/7", map[string]string{"name": "alice"})
	require.NoError(t, err)
	require.NotNil(t, data)
}

func TestClient_SetEndpoint(t *testing.T) {
	client := api.New("")

	t.Run("empty host rejected", func(t *testing.T) {
		err := client.SetEndpoint("", true)
		require.ErrorIs(t, err, api.ErrEndpointUndefined)
		require.Empty(t, client.BaseURL())
	})

	t.Run("scheme follows tls flag", func(t *testing.T) {
		require.NoError(t, client.SetEndpoint("api.example.org", true))
		require.Equal(t, "https://api.example.org", client.BaseURL())

		require.NoError(t, client.SetEndpoint("localhost:8080", false))
		require.Equal(t, "http://localhost:8080", client.BaseURL())
	})
}
