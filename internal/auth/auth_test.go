package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/skillassess/internal/rbac"
)

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("0123456789abcdef")
	tok, err := a.IssueJWT("admin", rbac.RoleAdmin)
	require.NoError(t, err)

	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "admin", c.Subject)
	assert.Equal(t, rbac.RoleAdmin, c.Role)
}

func TestParseRejectsForeignAndExpiredTokens(t *testing.T) {
	a := NewAuthService("0123456789abcdef")

	other := NewAuthService("fedcba9876543210")
	tok, err := other.IssueJWT("admin", rbac.RoleAdmin)
	require.NoError(t, err)
	_, err = a.Parse(tok)
	assert.ErrorIs(t, err, ErrBadToken)

	past := NewAuthService("0123456789abcdef").WithTTL(time.Minute)
	past.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, err = past.IssueJWT("admin", rbac.RoleAdmin)
	require.NoError(t, err)
	_, err = a.Parse(tok)
	assert.ErrorIs(t, err, ErrBadToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: rbac.RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.Parse(unsigned)
	assert.ErrorIs(t, err, ErrBadToken)
}

func hashOf(t *testing.T, pw string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func login(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body)))
	return rr
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func TestLoginHandler(t *testing.T) {
	a := NewAuthService("0123456789abcdef")
	h := LoginHandler(a, Account{User: "admin", PassHash: hashOf(t, "s3cret")})

	rr := login(t, h, `{"username":"admin","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var out tokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, int(defaultTTL.Seconds()), out.ExpiresIn)
	c, err := a.Parse(out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, c.Role)
	assert.Equal(t, "admin", c.Subject)

	for _, body := range []string{
		`{"username":"admin","password":"nope"}`,
		`{"username":"root","password":"s3cret"}`,
	} {
		assert.Equal(t, http.StatusUnauthorized, login(t, h, body).Code, body)
	}
	assert.Equal(t, http.StatusBadRequest, login(t, h, `{`).Code)
	assert.Equal(t, http.StatusUnauthorized, login(t, LoginHandler(a), `{"username":"","password":""}`).Code)
}

func TestLoginIssuesAccountRoleAndTTL(t *testing.T) {
	a := NewAuthService("0123456789abcdef").WithTTL(30 * time.Minute)
	h := LoginHandler(a,
		Account{User: "admin", PassHash: hashOf(t, "root-pw"), Role: rbac.RoleAdmin},
		Account{User: "ops", PassHash: hashOf(t, "ops-pw"), Role: rbac.RoleIssuer},
	)

	rr := login(t, h, `{"username":"ops","password":"ops-pw"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var out tokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, 1800, out.ExpiresIn)

	c, err := a.Parse(out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleIssuer, c.Role)
	assert.Equal(t, "ops", c.Subject)
	require.NotNil(t, c.ExpiresAt)
	assert.WithinDuration(t, c.IssuedAt.Add(30*time.Minute), c.ExpiresAt.Time, time.Second)

	// one account's password does not open another
	assert.Equal(t, http.StatusUnauthorized, login(t, h, `{"username":"ops","password":"root-pw"}`).Code)
}

func TestJWTMiddlewareAttachesRole(t *testing.T) {
	a := NewAuthService("0123456789abcdef")
	var role, sub string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = rbac.RoleFromContext(r.Context())
		sub = SubjectFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	tok, err := a.IssueJWT("ops", rbac.RoleIssuer)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, rbac.RoleIssuer, role)
	assert.Equal(t, "ops", sub)
}
