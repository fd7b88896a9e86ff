package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/skillassess/internal/rbac"
)

func writeErr(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Account is a configured issuer login. Tokens issued to it carry Role;
// an empty Role means rbac.RoleAdmin.
type Account struct {
	User     string
	PassHash string // bcrypt
	Role     string
}

func findAccount(accounts []Account, user string) (Account, bool) {
	for _, acc := range accounts {
		if acc.User == user {
			return acc, true
		}
	}
	return Account{}, false
}

// LoginHandler serves POST /api/auth/login {"username": "...", "password": "..."}.
func LoginHandler(a *AuthService, accounts ...Account) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, "bad json")
			return
		}
		acc, known := findAccount(accounts, req.Username)
		hash := acc.PassHash
		if !known && len(accounts) > 0 {
			// compare a hash even for unknown users so timing does not leak names
			hash = accounts[0].PassHash
		}
		hashErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password))
		if !known || hashErr != nil {
			writeErr(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		role := acc.Role
		if role == "" {
			role = rbac.RoleAdmin
		}
		tok, err := a.IssueJWT(acc.User, role)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "issue token")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": tok,
			"token_type":   "Bearer",
			"expires_in":   int(a.TTL().Seconds()),
		})
	}
}

// JWTMiddleware requires a bearer token and puts its subject and role on
// the request context for rbac.Require.
func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				writeErr(w, http.StatusUnauthorized, "missing bearer")
				return
			}
			c, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				writeErr(w, http.StatusUnauthorized, "bad token")
				return
			}
			ctx := rbac.WithRole(WithSubject(r.Context(), c.Subject), c.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
