package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-reservation/internal/logger"
	"ms-reservation/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

func protected(roles ...string) http.Handler {
	log := logger.Discard()
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(UserID(r.Context())))
	})
	return Authenticate(testSecret, log)(Authorize(log, roles...)(final))
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body utils.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Message
}

func TestAuthenticateMissingToken(t *testing.T) {
	rec := httptest.NewRecorder()
	protected().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cancel/x", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required", errorMessage(t, rec))
}

func TestAuthenticateInvalidToken(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"garbage", func(t *testing.T) string { return "not-a-jwt" }},
		{"wrong secret", func(t *testing.T) string {
			tok, err := IssueToken("other-secret", "u1", "admin", time.Hour)
			require.NoError(t, err)
			return tok
		}},
		{"expired", func(t *testing.T) string {
			tok, err := IssueToken(testSecret, "u1", "admin", -time.Minute)
			require.NoError(t, err)
			return tok
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/cancel/x", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token(t))
			rec := httptest.NewRecorder()
			protected().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "Invalid token", errorMessage(t, rec))
		})
	}
}

func TestAuthorizeRoles(t *testing.T) {
	admin, err := IssueToken(testSecret, "u-admin", "admin", time.Hour)
	require.NoError(t, err)
	user, err := IssueToken(testSecret, "u-user", "user", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/cancel/x", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	protected("admin").ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-admin", rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/cancel/x", nil)
	req.Header.Set("Authorization", "Bearer "+user)
	rec = httptest.NewRecorder()
	protected("admin").ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Unauthorized access", errorMessage(t, rec))

	rec = httptest.NewRecorder()
	protected().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtractTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	_, err := ExtractTokenFromRequest(req)
	assert.Error(t, err)

	req.Header.Set("Authorization", "bearer abc")
	tok, err := ExtractTokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}
