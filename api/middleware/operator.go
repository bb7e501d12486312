package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pledgeforge/backerstore-backend/api/responses"
	"github.com/pledgeforge/backerstore-backend/pkg/config"
	pkgerrors "github.com/pledgeforge/backerstore-backend/pkg/errors"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
)

const operatorRole = "operator"

type operatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// OperatorAuth gates the admin surface behind an HS256 bearer token carrying
// the operator role.
func OperatorAuth(cfg config.OperatorConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if strings.TrimSpace(cfg.JWTSecret) == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "operator auth not configured"))
				return
			}

			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token required"))
				return
			}
			raw := strings.TrimSpace(header[len("bearer "):])

			claims := &operatorClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(cfg.JWTSecret), nil
			}, jwt.WithIssuer(cfg.JWTIssuer), jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid operator token"))
				return
			}
			if claims.Role != operatorRole {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "operator role required"))
				return
			}

			if logg != nil {
				ctx = logg.WithActorRole(ctx, operatorRole)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
