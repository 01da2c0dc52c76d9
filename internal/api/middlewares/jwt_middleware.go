package middlewares

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chainvault/internal/models"
	"chainvault/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
)

// tokenFrom reads the bearer token from the Authorization header, falling
// back to the "Bearer" cookie browsers send on websocket upgrades.
func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := r.Cookie("Bearer"); err == nil {
		return strings.TrimSpace(strings.TrimPrefix(cookie.Value, "Bearer "))
	}
	return ""
}

// JWTMiddleware verifies an HS256 token and stores uid, role and email on the
// request context.
func JWTMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFrom(r)
			if token == "" {
				utils.WriteError(w, "Unauthorized: Missing Bearer token", http.StatusUnauthorized)
				return
			}

			parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (any, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					utils.WriteError(w, "token expired", http.StatusUnauthorized)
					return
				}
				utils.WriteError(w, "invalid login token", http.StatusUnauthorized)
				return
			}

			claims, ok := parsedToken.Claims.(jwt.MapClaims)
			if !ok || !parsedToken.Valid {
				utils.WriteError(w, "invalid login token", http.StatusUnauthorized)
				return
			}

			userID := claimString(claims["uid"])
			if userID == "" {
				utils.WriteError(w, "invalid login token", http.StatusUnauthorized)
				return
			}
			role := models.RoleUser
			if claimString(claims["role"]) == string(models.RoleAdmin) {
				role = models.RoleAdmin
			}

			ctx := utils.WithIdentity(r.Context(), userID, role, claimString(claims["email"]))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects callers whose token does not carry the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if utils.RoleFrom(r.Context()) != models.RoleAdmin {
			utils.WriteError(w, "admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// claimString accepts string ids as well as the numeric ids older tokens carry.
func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	}
	return ""
}
