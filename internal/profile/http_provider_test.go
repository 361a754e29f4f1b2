package profile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPProviderLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/profile", r.URL.Path)
		require.Equal(t, "Bearer backend-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"email": "user@example.com",
			"email_verified": true,
			"puffs_per_day": 120,
			"goal_speed": 90,
			"money_per_month": 80,
			"currency": "PLN"
		}`))
	}))
	defer server.Close()

	provider, err := NewHTTPProvider(server.URL, WithBearerToken("backend-token"))
	require.NoError(t, err)

	prof, err := provider.Lookup(context.Background())
	require.NoError(t, err)
	require.Equal(t, "user@example.com", prof.Email)
	require.True(t, prof.EmailVerified)
	require.Equal(t, 90, prof.GoalSpeedDays)
	require.Equal(t, "PLN", prof.Currency)
}

func TestHTTPProviderLookupFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	provider, err := NewHTTPProvider(server.URL)
	require.NoError(t, err)

	_, err = provider.Lookup(context.Background())
	require.Error(t, err)
}

func TestHTTPProviderRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPProvider("   ")
	require.Error(t, err)
}
