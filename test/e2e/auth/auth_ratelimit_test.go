package auth_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carelinkhq/carelink/internal/auth/guard"
	"github.com/carelinkhq/carelink/pkg/httpx"
)

// TestRegisterAdmissionLimit verifies the Redis fixed-window counters cap
// registrations per source IP.
func TestRegisterAdmissionLimit(t *testing.T) {
	client := setupServiceWithLimits(t, guard.AdmissionConfig{
		RegisterLimit: 5,
		LoginLimit:    1000,
		Window:        time.Hour,
	})
	ctx := t.Context()

	for i := 0; i < 5; i++ {
		_, err := client.Register(ctx, registerRequest(fmt.Sprintf("user%d@example.com", i)))
		require.NoError(t, err, "registration %d should be within budget", i+1)
	}

	_, err := client.Register(ctx, registerRequest("user6@example.com"))
	assertAPIError(t, err, http.StatusTooManyRequests, httpx.CodeRateLimitExceeded)
}

// TestLoginAdmissionLimit verifies failed login attempts burn budget and
// the window caps further attempts, successful or not.
func TestLoginAdmissionLimit(t *testing.T) {
	client := setupServiceWithLimits(t, guard.AdmissionConfig{
		RegisterLimit: 1000,
		LoginLimit:    10,
		Window:        time.Hour,
	})
	ctx := t.Context()

	_, err := client.Register(ctx, registerRequest(testEmail))
	require.NoError(t, err)

	// Nine failed guesses plus one good login exhaust the budget.
	for i := 0; i < 9; i++ {
		_, err := client.Login(ctx, loginRequest(testEmail, "wrong guess"))
		assertAPIError(t, err, http.StatusUnauthorized, httpx.CodeInvalidCredentials)
	}
	_, err = client.Login(ctx, loginRequest(testEmail, testPassword))
	require.NoError(t, err)

	// The eleventh attempt is throttled even with valid credentials.
	_, err = client.Login(ctx, loginRequest(testEmail, testPassword))
	assertAPIError(t, err, http.StatusTooManyRequests, httpx.CodeRateLimitExceeded)
}
