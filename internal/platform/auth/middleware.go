package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
)

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

// DevUserID is the identity assumed by DevAuthMiddleware when no override is sent.
var DevUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Claims is the access token payload. Subject must be the app_user id.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey switches verification to HS256 with a shared secret.
	SigningKey []byte
	Skipper    func(c echo.Context) bool
	Logger     zerolog.Logger
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	var keyFunc jwt.Keyfunc
	methods := []string{"RS256"}
	if len(cfg.SigningKey) > 0 {
		methods = []string{"HS256"}
		keyFunc = func(*jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }
	} else {
		jwksURL := cfg.JWKSURL
		if jwksURL == "" && cfg.Issuer != "" {
			discovered, err := DiscoverJWKSURL(cfg.Issuer)
			if err != nil {
				cfg.Logger.Warn().Err(err).Str("issuer", cfg.Issuer).Msg("OIDC discovery failed")
			}
			jwksURL = discovered
		}
		keyFunc = NewJWKSCache(jwksURL, defaultJWKSCacheTTL).KeyFunc()
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods(methods)}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, keyFunc, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			uid, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "token subject is not a user id")
			}

			c.Set("user_id", uid.String())
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), uid, claims.Roles)))
			return next(c)
		}
	}
}

// DevAuthMiddleware trusts X-Dev-User-ID and X-Dev-Role headers and falls back
// to an admin identity. Only mounted when ENV=development.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid := DevUserID
			if h := c.Request().Header.Get("X-Dev-User-ID"); h != "" {
				parsed, err := uuid.Parse(h)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid X-Dev-User-ID")
				}
				uid = parsed
			}
			role := RoleAdmin
			if h := c.Request().Header.Get("X-Dev-Role"); h != "" {
				role = h
			}

			c.Set("user_id", uid.String())
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), uid, []string{role})))
			return next(c)
		}
	}
}

// WithIdentity binds the caller's id and roles to ctx.
func WithIdentity(ctx context.Context, userID uuid.UUID, roles []string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRolesKey, roles)
}

func UserIDFromContext(ctx context.Context) uuid.UUID {
	uid, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}
