package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/martabakCode/lofi-backend-sub001/internal/domain/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const actorCtxKey = "lofi.actor"

// Claims is the access token payload issued by the identity service.
type Claims struct {
	jwt.RegisteredClaims
	Roles    []string `json:"roles"`
	BranchID string   `json:"branch_id,omitempty"`
}

// ActorMiddleware verifies the HS256 bearer token and stores the resulting
// auth.Actor on the context. Unknown role names are ignored.
func ActorMiddleware(secret []byte, issuer string) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return jsonError(c, http.StatusUnauthorized, "missing bearer token")
			}
			var claims Claims
			_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return secret, nil })
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token expired"
				}
				return jsonError(c, http.StatusUnauthorized, msg)
			}
			if claims.Subject == "" {
				return jsonError(c, http.StatusUnauthorized, "token has no subject")
			}
			c.Set(actorCtxKey, claims.actor())
			return next(c)
		}
	}
}

func (c Claims) actor() auth.Actor {
	a := auth.Actor{ID: c.Subject, BranchID: c.BranchID}
	for _, r := range c.Roles {
		if role, ok := auth.ParseRole(r); ok {
			a.Roles = append(a.Roles, role)
		}
	}
	return a
}

func bearer(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

// ActorFrom returns the actor set by ActorMiddleware.
func ActorFrom(c echo.Context) (auth.Actor, bool) {
	a, ok := c.Get(actorCtxKey).(auth.Actor)
	return a, ok
}

// WithActor is for handlers mounted without ActorMiddleware, mainly tests.
func WithActor(c echo.Context, a auth.Actor) { c.Set(actorCtxKey, a) }
